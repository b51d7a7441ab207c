package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Feedback is a free-text feedback entry.
type Feedback struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// FeedbackRepository provides access to feedback entries.
type FeedbackRepository struct {
	db *sql.DB
}

// Feedback returns the feedback repository for this store.
func (s *Store) Feedback() *FeedbackRepository {
	return &FeedbackRepository{db: s.db}
}

// Create inserts a feedback entry. An empty ID is replaced with a new UUID.
func (r *FeedbackRepository) Create(f *Feedback) error {
	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now()
	}

	_, err := r.db.Exec(
		`INSERT INTO feedback (id, message, created_at) VALUES (?, ?, ?)`,
		f.ID, f.Message, f.CreatedAt,
	)
	return err
}

// GetByID retrieves a feedback entry by its ID.
func (r *FeedbackRepository) GetByID(id string) (*Feedback, error) {
	f := &Feedback{}
	err := r.db.QueryRow(
		`SELECT id, message, created_at FROM feedback WHERE id = ?`,
		id,
	).Scan(&f.ID, &f.Message, &f.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return f, nil
}

// List returns up to limit entries, newest first. A non-positive limit
// returns every entry.
func (r *FeedbackRepository) List(limit int) ([]*Feedback, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := r.db.Query(
		`SELECT id, message, created_at FROM feedback
		 ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []*Feedback{}
	for rows.Next() {
		f := &Feedback{}
		if err := rows.Scan(&f.ID, &f.Message, &f.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, f)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return entries, nil
}

// Count returns the number of feedback entries.
func (r *FeedbackRepository) Count() (int, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM feedback`).Scan(&n)
	return n, err
}
