// Package history keeps the ordered list of generations, newest first.
// Entries start as pending placeholders and are either completed once or
// removed.
package history

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/yoockh/lumina/internal/models"
)

var (
	ErrNotFound   = errors.New("history entry not found")
	ErrNotPending = errors.New("history entry already complete")
)

type List struct {
	mu      sync.Mutex
	entries []models.HistoryEntry
}

func New() *List {
	return &List{}
}

// AddPending inserts n placeholders at the front, in the order returned.
func (l *List) AddPending(prompt string, rec models.FieldRecord, n int) []models.HistoryEntry {
	if n <= 0 {
		return nil
	}
	now := time.Now().UTC()
	out := make([]models.HistoryEntry, n)
	for i := range out {
		out[i] = models.HistoryEntry{
			ID:        uuid.NewString(),
			Prompt:    prompt,
			Record:    rec,
			Status:    models.StatusPending,
			Timestamp: now,
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(append(make([]models.HistoryEntry, 0, len(out)+len(l.entries)), out...), l.entries...)
	return append([]models.HistoryEntry(nil), out...)
}

// Complete attaches the result to a pending entry.
func (l *List) Complete(id, imageURL string) (models.HistoryEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	i := l.index(id)
	if i < 0 {
		return models.HistoryEntry{}, ErrNotFound
	}
	if l.entries[i].Status != models.StatusPending {
		return models.HistoryEntry{}, ErrNotPending
	}
	l.entries[i].Status = models.StatusComplete
	l.entries[i].ImageURL = imageURL
	return l.entries[i], nil
}

// Remove deletes an entry; it reports whether anything was removed.
func (l *List) Remove(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	i := l.index(id)
	if i < 0 {
		return false
	}
	l.entries = append(l.entries[:i:i], l.entries[i+1:]...)
	return true
}

func (l *List) Get(id string) (models.HistoryEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	i := l.index(id)
	if i < 0 {
		return models.HistoryEntry{}, ErrNotFound
	}
	return l.entries[i], nil
}

func (l *List) Snapshot() []models.HistoryEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]models.HistoryEntry(nil), l.entries...)
}

func (l *List) index(id string) int {
	for i := range l.entries {
		if l.entries[i].ID == id {
			return i
		}
	}
	return -1
}
