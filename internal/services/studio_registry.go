package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yoockh/lumina/internal/cache"
	"github.com/yoockh/lumina/internal/events"
	"github.com/yoockh/lumina/internal/models"
	"github.com/yoockh/lumina/internal/session"
	"github.com/yoockh/lumina/internal/utils"
)

const DefaultStudioIdle = time.Hour

type studioEntry struct {
	studio   *Studio
	lastUsed time.Time
}

// Studios hands out one Studio per workspace id. Get creates on first use;
// Lookup never does. Sweep drops studios that sat idle.
type Studios struct {
	bg   context.Context
	deps StudioDeps
	now  func() time.Time

	mu sync.Mutex
	m  map[string]*studioEntry
}

func NewStudios(bg context.Context, d StudioDeps) *Studios {
	// shared so that subscribers and inbox reads do not depend on a
	// particular Studio instance
	if d.Bus == nil {
		d.Bus = events.NewMemoryBus()
	}
	if d.Log == nil {
		d.Log = logrus.StandardLogger()
	}
	if d.NewInbox == nil {
		notices := cache.NewMemoryCache()
		d.NewInbox = func(ws string) session.Inbox { return session.NewCachedInbox(notices, ws, 0) }
	}
	return &Studios{bg: bg, deps: d, now: time.Now, m: make(map[string]*studioEntry)}
}

func (r *Studios) Get(workspace string) *Studio {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.m[workspace]
	if !ok {
		e = &studioEntry{studio: NewStudio(r.bg, workspace, r.deps)}
		r.m[workspace] = e
	}
	e.lastUsed = r.now()
	return e.studio
}

func (r *Studios) Lookup(workspace string) (*Studio, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.m[workspace]
	if !ok {
		return nil, false
	}
	e.lastUsed = r.now()
	return e.studio, true
}

// Inbox opens the workspace's notices without creating a Studio.
func (r *Studios) Inbox(workspace string) session.Inbox {
	return r.deps.NewInbox(workspace)
}

// Subscribe streams the workspace's events whether or not its Studio exists.
func (r *Studios) Subscribe(ctx context.Context, workspace string) (<-chan []byte, func(), error) {
	return r.deps.Bus.Subscribe(ctx, workspace)
}

// Sweep removes studios unused for longer than idle that have no work in
// flight, and returns how many it removed.
func (r *Studios) Sweep(idle time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := r.now().Add(-idle)
	n := 0
	for ws, e := range r.m {
		if e.lastUsed.Before(cutoff) && !e.studio.Busy() {
			delete(r.m, ws)
			n++
		}
	}
	return n
}

// RunSweeper calls Sweep every interval until ctx is done.
func (r *Studios) RunSweeper(ctx context.Context, every, idle time.Duration) {
	if idle <= 0 {
		idle = DefaultStudioIdle
	}
	if every <= 0 {
		every = idle / 4
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := r.Sweep(idle); n > 0 {
				r.deps.Log.WithField("removed", n).Debug("idle studios swept")
			}
		}
	}
}

func (r *Studios) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.m)
}

// Notices lists a workspace's notices without creating its studio.
func (r *Studios) Notices(ctx context.Context, workspace string) ([]models.Notice, error) {
	if s, ok := r.Lookup(workspace); ok {
		return s.Notices(ctx)
	}
	list, err := r.Inbox(workspace).List(ctx)
	if err != nil {
		return nil, inboxError("Studios.Notices", err)
	}
	return list, nil
}

// Reclaim creates the studio only when the notice exists.
func (r *Studios) Reclaim(ctx context.Context, workspace, noticeID string) (session.ID, error) {
	s, ok := r.Lookup(workspace)
	if !ok {
		if _, err := r.Inbox(workspace).Get(ctx, noticeID); err != nil {
			return "", inboxError("Studios.Reclaim", err)
		}
		s = r.Get(workspace)
	}
	return s.Reclaim(ctx, noticeID)
}

func (r *Studios) DismissNotice(ctx context.Context, workspace, noticeID string) error {
	if s, ok := r.Lookup(workspace); ok {
		return s.DismissNotice(ctx, noticeID)
	}
	if err := r.Inbox(workspace).Dismiss(ctx, noticeID); err != nil {
		return inboxError("Studios.DismissNotice", err)
	}
	return nil
}

func inboxError(op string, err error) error {
	if errors.Is(err, session.ErrNoticeNotFound) {
		return utils.E(utils.CodeNotFound, op, "notification not found", err)
	}
	return utils.E(utils.CodeUnavailable, op, "notification store unavailable", err)
}
