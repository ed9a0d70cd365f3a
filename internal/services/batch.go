package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/yoockh/lumina/internal/history"
	"github.com/yoockh/lumina/internal/models"
	"github.com/yoockh/lumina/internal/session"
)

// BatchHooks connect a batch to the workspace that started it.
type BatchHooks struct {
	// HistoryChanged runs after every history mutation.
	HistoryChanged func()
	// Present shows res if sid is still active and reports whether it did.
	Present func(sid session.ID, res models.Result) bool
	// Fail shows a failure state if sid is still active.
	Fail func(sid session.ID, err error) bool
	// Notify queues a notice for a superseded session.
	Notify func(n models.Notice)
}

// BatchCoordinator renders one record several times in parallel. Each item
// owns one history placeholder and resolves it independently.
type BatchCoordinator struct {
	images  ImageService
	history *history.List
	hooks   BatchHooks
	log     logrus.FieldLogger
}

func NewBatchCoordinator(images ImageService, hist *history.List, hooks BatchHooks, log logrus.FieldLogger) *BatchCoordinator {
	return &BatchCoordinator{images: images, history: hist, hooks: hooks, log: log}
}

// Batch tracks one Run.
type Batch struct {
	SessionID session.ID

	mu    sync.Mutex
	items []models.BatchItem
	done  chan struct{}
}

func (b *Batch) Items() []models.BatchItem {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]models.BatchItem(nil), b.items...)
}

// Done is closed once every item has settled and the outcome was routed.
func (b *Batch) Done() <-chan struct{} { return b.done }

func (b *Batch) set(i int, status, url string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items[i].Status = status
	b.items[i].ImageURL = url
	if err != nil {
		b.items[i].Err = err.Error()
	}
}

// Run inserts k placeholders at the front of history, then dispatches k
// renders at once and returns without waiting. sid is the session the
// batch reports back to.
func (c *BatchCoordinator) Run(ctx context.Context, sid session.ID, prompt string, rec models.FieldRecord, k int) *Batch {
	placeholders := c.history.AddPending(prompt, rec, k)
	b := &Batch{SessionID: sid, items: make([]models.BatchItem, len(placeholders)), done: make(chan struct{})}
	for i, p := range placeholders {
		b.items[i] = models.BatchItem{ID: p.ID, Index: i, Record: rec, Status: models.StatusPending}
	}
	c.historyChanged()

	var wg sync.WaitGroup
	wg.Add(len(placeholders))
	for i, p := range placeholders {
		go func(i int, id string) {
			defer wg.Done()
			url, err := c.images.Generate(ctx, rec, nil)
			if err != nil {
				c.history.Remove(id)
				b.set(i, models.StatusFailed, "", err)
				c.log.WithError(err).WithField("item", id).Warn("batch item failed")
			} else {
				if _, cerr := c.history.Complete(id, url); cerr != nil {
					// deleted by the user while rendering
					c.log.WithError(cerr).WithField("item", id).Debug("batch placeholder gone")
				}
				b.set(i, models.StatusComplete, url, nil)
			}
			c.historyChanged()
		}(i, p.ID)
	}

	go func() {
		wg.Wait()
		c.settle(b, prompt, rec)
		close(b.done)
	}()
	return b
}

func (c *BatchCoordinator) settle(b *Batch, prompt string, rec models.FieldRecord) {
	items := b.Items()

	var first *models.BatchItem
	successes := 0
	var lastErr string
	for i := range items {
		switch items[i].Status {
		case models.StatusComplete:
			successes++
			if first == nil {
				first = &items[i]
			}
		case models.StatusFailed:
			lastErr = items[i].Err
		}
	}

	log := c.log.WithFields(logrus.Fields{"session_id": b.SessionID, "successes": successes, "size": len(items)})

	if first == nil {
		err := fmt.Errorf("all %d images failed: %s", len(items), lastErr)
		if c.hooks.Fail == nil || !c.hooks.Fail(b.SessionID, err) {
			log.Warn("batch failed after its session was superseded")
		}
		return
	}

	res := models.Result{Prompt: prompt, Record: rec, ImageURL: first.ImageURL, HistoryID: first.ID}
	if c.hooks.Present != nil && c.hooks.Present(b.SessionID, res) {
		log.Info("batch presented")
		return
	}
	if c.hooks.Notify != nil {
		c.hooks.Notify(models.Notice{
			SessionID: string(b.SessionID),
			Kind:      models.NoticeBatch,
			Message:   fmt.Sprintf("%d of %d variations ready", successes, len(items)),
			Successes: successes,
			Result:    &res,
		})
	}
	log.Info("batch finished in background")
}

func (c *BatchCoordinator) historyChanged() {
	if c.hooks.HistoryChanged != nil {
		c.hooks.HistoryChanged()
	}
}
