package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Report is an archived misclassified frame.
type Report struct {
	ID        string    `json:"id"`
	Emotion   string    `json:"emotion"`
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// ReportRepository provides access to misclassification reports.
type ReportRepository struct {
	db *sql.DB
}

// Reports returns the report repository for this store.
func (s *Store) Reports() *ReportRepository {
	return &ReportRepository{db: s.db}
}

// Create inserts a report. An empty ID is replaced with a new UUID.
func (r *ReportRepository) Create(rep *Report) error {
	if rep.ID == "" {
		rep.ID = uuid.New().String()
	}
	if rep.CreatedAt.IsZero() {
		rep.CreatedAt = time.Now()
	}

	_, err := r.db.Exec(
		`INSERT INTO reports (id, emotion, path, size, created_at) VALUES (?, ?, ?, ?, ?)`,
		rep.ID, rep.Emotion, rep.Path, rep.Size, rep.CreatedAt,
	)
	return err
}

// GetByID retrieves a report by its ID.
func (r *ReportRepository) GetByID(id string) (*Report, error) {
	rep := &Report{}
	err := r.db.QueryRow(
		`SELECT id, emotion, path, size, created_at FROM reports WHERE id = ?`,
		id,
	).Scan(&rep.ID, &rep.Emotion, &rep.Path, &rep.Size, &rep.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return rep, nil
}

// List returns up to limit reports, newest first. A non-positive limit
// returns every report.
func (r *ReportRepository) List(limit int) ([]*Report, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := r.db.Query(
		`SELECT id, emotion, path, size, created_at FROM reports
		 ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reports := []*Report{}
	for rows.Next() {
		rep := &Report{}
		if err := rows.Scan(&rep.ID, &rep.Emotion, &rep.Path, &rep.Size, &rep.CreatedAt); err != nil {
			return nil, err
		}
		reports = append(reports, rep)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return reports, nil
}

// CountByEmotion returns the number of reports per emotion label.
func (r *ReportRepository) CountByEmotion() (map[string]int, error) {
	rows, err := r.db.Query(`SELECT emotion, COUNT(*) FROM reports GROUP BY emotion`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			emotion string
			n       int
		)
		if err := rows.Scan(&emotion, &n); err != nil {
			return nil, err
		}
		counts[emotion] = n
	}

	return counts, rows.Err()
}
