package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/yoockh/lumina/internal/history"
	"github.com/yoockh/lumina/internal/models"
	"github.com/yoockh/lumina/internal/session"
)

type hookRecorder struct {
	mu        sync.Mutex
	active    bool
	presented []models.Result
	failed    []error
	notices   []models.Notice
}

func (h *hookRecorder) hooks() BatchHooks {
	return BatchHooks{
		Present: func(_ session.ID, res models.Result) bool {
			h.mu.Lock()
			defer h.mu.Unlock()
			if !h.active {
				return false
			}
			h.presented = append(h.presented, res)
			return true
		},
		Fail: func(_ session.ID, err error) bool {
			h.mu.Lock()
			defer h.mu.Unlock()
			if !h.active {
				return false
			}
			h.failed = append(h.failed, err)
			return true
		},
		Notify: func(n models.Notice) {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.notices = append(h.notices, n)
		},
	}
}

func waitBatch(t *testing.T, b *Batch) {
	t.Helper()
	select {
	case <-b.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("batch did not settle")
	}
}

func TestBatchPartialFailureIsolated(t *testing.T) {
	images := newFakeImages()
	images.fail[1] = errors.New("quota")
	hist := history.New()
	rec := &hookRecorder{active: true}

	b := NewBatchCoordinator(images, hist, rec.hooks(), quietLogger()).
		Run(context.Background(), "s1", "fox", foxRecord, 4)

	if got := len(hist.Snapshot()); got != 4 {
		t.Fatalf("placeholders = %d, want 4 before any result", got)
	}
	waitBatch(t, b)

	var failedID string
	for _, it := range b.Items() {
		if it.Status == models.StatusFailed {
			failedID = it.ID
		}
	}
	if failedID == "" {
		t.Fatal("no failed item recorded")
	}

	entries := hist.Snapshot()
	if len(entries) != 3 {
		t.Fatalf("history has %d entries, want 3", len(entries))
	}
	for _, e := range entries {
		if e.Status != models.StatusComplete || e.ImageURL == "" {
			t.Errorf("entry %+v not complete", e)
		}
		if e.ID == failedID {
			t.Errorf("failed item %s still in history", failedID)
		}
	}

	if len(rec.presented) != 1 {
		t.Fatalf("presented %d results, want 1", len(rec.presented))
	}
	// first success in dispatch order
	items := b.Items()
	first := items[0]
	if first.Status != models.StatusComplete {
		first = items[1]
	}
	if rec.presented[0].HistoryID != first.ID {
		t.Errorf("presented %s, want first success %s", rec.presented[0].HistoryID, first.ID)
	}
	if len(rec.notices) != 0 {
		t.Errorf("unexpected notices %+v", rec.notices)
	}
}

func TestBatchStaleSessionNotifies(t *testing.T) {
	images := newFakeImages()
	images.fail[0] = errors.New("quota")
	rec := &hookRecorder{active: false}

	b := NewBatchCoordinator(images, history.New(), rec.hooks(), quietLogger()).
		Run(context.Background(), "s1", "fox", foxRecord, 3)
	waitBatch(t, b)

	if len(rec.presented) != 0 {
		t.Error("stale batch wrote to the view")
	}
	if len(rec.notices) != 1 {
		t.Fatalf("notices = %+v, want exactly one summary", rec.notices)
	}
	n := rec.notices[0]
	if n.Kind != models.NoticeBatch || n.Successes != 2 || !n.Reclaimable() {
		t.Errorf("notice = %+v", n)
	}
	if n.Result.Record != foxRecord || n.Result.ImageURL == "" {
		t.Errorf("notice result = %+v", n.Result)
	}
}

func TestBatchAllFailed(t *testing.T) {
	for _, active := range []bool{true, false} {
		images := newFakeImages()
		for i := 0; i < 2; i++ {
			images.fail[i] = errors.New("quota")
		}
		hist := history.New()
		rec := &hookRecorder{active: active}

		b := NewBatchCoordinator(images, hist, rec.hooks(), quietLogger()).
			Run(context.Background(), "s1", "fox", foxRecord, 2)
		waitBatch(t, b)

		if len(hist.Snapshot()) != 0 {
			t.Errorf("active=%v: history not emptied: %+v", active, hist.Snapshot())
		}
		wantFail := 0
		if active {
			wantFail = 1
		}
		if len(rec.failed) != wantFail {
			t.Errorf("active=%v: failures shown = %d, want %d", active, len(rec.failed), wantFail)
		}
		if len(rec.notices) != 0 || len(rec.presented) != 0 {
			t.Errorf("active=%v: unexpected notices %+v / presented %+v", active, rec.notices, rec.presented)
		}
	}
}
