// Package feedback records operator feedback and archives frames reported as
// misclassified.
package feedback

import (
	"errors"
	"fmt"
	"os"
	"sync"
)

// LogFileName is the name of the feedback log inside the data directory.
const LogFileName = "feedback_log.txt"

// ErrEmptyFeedback is returned when the submitted feedback text is empty.
var ErrEmptyFeedback = errors.New("feedback cannot be empty")

// Log is an append-only text log with one "Feedback: <text>" line per entry.
type Log struct {
	path string
	mu   sync.Mutex
}

// NewLog returns a Log writing to path. The file is created on first append.
func NewLog(path string) *Log {
	return &Log{path: path}
}

// Path returns the log file path.
func (l *Log) Path() string {
	return l.path
}

// Append writes one entry. Text is written verbatim, without trimming.
func (l *Log) Append(text string) error {
	if text == "" {
		return ErrEmptyFeedback
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open feedback log: %w", err)
	}

	if _, err := fmt.Fprintf(f, "Feedback: %s\n", text); err != nil {
		f.Close()
		return fmt.Errorf("write feedback log: %w", err)
	}
	return f.Close()
}
