package store

import (
	"errors"
	"testing"
	"time"
)

func TestFeedbackRepository_CreateAndGet(t *testing.T) {
	repo := newTestStore(t).Feedback()

	f := &Feedback{Message: "the happy label is too eager"}
	if err := repo.Create(f); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if f.ID == "" {
		t.Fatal("Create() should assign an ID")
	}
	if f.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set after create")
	}

	got, err := repo.GetByID(f.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Message != f.Message {
		t.Errorf("Message = %q, want %q", got.Message, f.Message)
	}
}

func TestFeedbackRepository_GetByID_NotFound(t *testing.T) {
	repo := newTestStore(t).Feedback()

	_, err := repo.GetByID("missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID() error = %v, want ErrNotFound", err)
	}
}

func TestFeedbackRepository_ListNewestFirst(t *testing.T) {
	repo := newTestStore(t).Feedback()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	for i, msg := range []string{"first", "second", "third"} {
		err := repo.Create(&Feedback{Message: msg, CreatedAt: base.Add(time.Duration(i) * time.Minute)})
		if err != nil {
			t.Fatalf("Create(%q) error = %v", msg, err)
		}
	}

	all, err := repo.List(0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("List(0) returned %d entries, want 3", len(all))
	}
	if all[0].Message != "third" || all[2].Message != "first" {
		t.Errorf("List order = [%s %s %s], want newest first", all[0].Message, all[1].Message, all[2].Message)
	}

	limited, err := repo.List(2)
	if err != nil {
		t.Fatalf("List(2) error = %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("List(2) returned %d entries, want 2", len(limited))
	}
}

func TestFeedbackRepository_ListEmpty(t *testing.T) {
	entries, err := newTestStore(t).Feedback().List(10)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if entries == nil || len(entries) != 0 {
		t.Errorf("List() = %v, want empty non-nil slice", entries)
	}
}

func TestReportRepository_CreateAndCount(t *testing.T) {
	repo := newTestStore(t).Reports()

	reports := []*Report{
		{Emotion: "happy", Path: "submittedEmotions/happy/happy_20240501-120000.jpg", Size: 1200},
		{Emotion: "happy", Path: "submittedEmotions/happy/happy_20240501-120001.jpg", Size: 1300},
		{Emotion: "sad", Path: "submittedEmotions/sad/sad_20240501-120002.jpg", Size: 900},
	}
	for _, r := range reports {
		if err := repo.Create(r); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	got, err := repo.GetByID(reports[2].ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Emotion != "sad" || got.Size != 900 {
		t.Errorf("GetByID() = %+v", got)
	}

	counts, err := repo.CountByEmotion()
	if err != nil {
		t.Fatalf("CountByEmotion() error = %v", err)
	}
	if counts["happy"] != 2 || counts["sad"] != 1 || len(counts) != 2 {
		t.Errorf("CountByEmotion() = %v", counts)
	}

	list, err := repo.List(1)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 1 {
		t.Errorf("List(1) returned %d reports, want 1", len(list))
	}
}

func TestReportRepository_GetByID_NotFound(t *testing.T) {
	_, err := newTestStore(t).Reports().GetByID("missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID() error = %v, want ErrNotFound", err)
	}
}

func TestSettingsRepository(t *testing.T) {
	repo := newTestStore(t).Settings()

	if _, err := repo.Get("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
	if !repo.GetBool(SettingClassificationEnabled, true) {
		t.Error("GetBool() should return the default when unset")
	}

	if err := repo.SetBool(SettingClassificationEnabled, false); err != nil {
		t.Fatalf("SetBool() error = %v", err)
	}
	if repo.GetBool(SettingClassificationEnabled, true) {
		t.Error("GetBool() = true after SetBool(false)")
	}

	// Overwrite
	if err := repo.Set(SettingClassificationEnabled, "true"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if !repo.GetBool(SettingClassificationEnabled, false) {
		t.Error("GetBool() = false after Set(true)")
	}

	if err := repo.Set("garbled", "maybe"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if !repo.GetBool("garbled", true) {
		t.Error("GetBool() should fall back to the default for unparsable values")
	}
}
