package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/yoockh/lumina/internal/cache"
	"github.com/yoockh/lumina/internal/models"
)

var ErrNoticeNotFound = errors.New("notice not found")

// Inbox keeps background outcomes until the user reclaims or dismisses them.
// List returns newest first.
type Inbox interface {
	Put(ctx context.Context, n models.Notice) (models.Notice, error)
	Get(ctx context.Context, id string) (models.Notice, error)
	Take(ctx context.Context, id string) (models.Notice, error)
	Dismiss(ctx context.Context, id string) error
	List(ctx context.Context) ([]models.Notice, error)
}

// stamp fills the server-assigned fields.
func stamp(n models.Notice) models.Notice {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	return n
}

func find(list []models.Notice, id string) int {
	for i := range list {
		if list[i].ID == id {
			return i
		}
	}
	return -1
}

// CachedInbox stores one workspace's notices as a JSON list under a single
// cache key, refreshed to ttl on every write. Writers are serialised per
// process only.
type CachedInbox struct {
	mu    sync.Mutex
	cache cache.Cache
	key   string
	ttl   time.Duration
}

func NewCachedInbox(c cache.Cache, workspace string, ttl time.Duration) *CachedInbox {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &CachedInbox{cache: c, key: "studio:" + workspace + ":notices", ttl: ttl}
}

func (b *CachedInbox) load(ctx context.Context) ([]models.Notice, error) {
	var list []models.Notice
	if _, err := b.cache.GetJSON(ctx, b.key, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (b *CachedInbox) save(ctx context.Context, list []models.Notice) error {
	if len(list) == 0 {
		return b.cache.Del(ctx, b.key)
	}
	return b.cache.SetJSON(ctx, b.key, list, b.ttl)
}

func (b *CachedInbox) Put(ctx context.Context, n models.Notice) (models.Notice, error) {
	n = stamp(n)
	b.mu.Lock()
	defer b.mu.Unlock()

	list, err := b.load(ctx)
	if err != nil {
		return models.Notice{}, err
	}
	if err := b.save(ctx, append([]models.Notice{n}, list...)); err != nil {
		return models.Notice{}, err
	}
	return n, nil
}

func (b *CachedInbox) Get(ctx context.Context, id string) (models.Notice, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	list, err := b.load(ctx)
	if err != nil {
		return models.Notice{}, err
	}
	i := find(list, id)
	if i < 0 {
		return models.Notice{}, ErrNoticeNotFound
	}
	return list[i], nil
}

func (b *CachedInbox) Take(ctx context.Context, id string) (models.Notice, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	list, err := b.load(ctx)
	if err != nil {
		return models.Notice{}, err
	}
	i := find(list, id)
	if i < 0 {
		return models.Notice{}, ErrNoticeNotFound
	}
	n := list[i]
	if err := b.save(ctx, append(list[:i:i], list[i+1:]...)); err != nil {
		return models.Notice{}, err
	}
	return n, nil
}

func (b *CachedInbox) Dismiss(ctx context.Context, id string) error {
	_, err := b.Take(ctx, id)
	return err
}

func (b *CachedInbox) List(ctx context.Context) ([]models.Notice, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.load(ctx)
}
