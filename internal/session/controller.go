// Package session decides which in-flight request may write to the view a
// workspace is looking at.
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/yoockh/lumina/internal/models"
)

// ID identifies one top-level user action.
type ID string

var ErrNotReclaimable = errors.New("notice has no result to reclaim")

// Controller holds the single active session. Superseded sessions keep
// running; they just lose the right to mutate shared state.
type Controller struct {
	mu     sync.Mutex
	active ID
}

func NewController() *Controller {
	return &Controller{}
}

// Begin starts a new session and demotes the previous one.
func (c *Controller) Begin() ID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.begin()
}

func (c *Controller) begin() ID {
	c.active = ID(uuid.NewString())
	return c.active
}

func (c *Controller) IsActive(id ID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return id != "" && id == c.active
}

func (c *Controller) Active() ID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Do runs fn only if id is still active, holding the controller for the
// duration so no Begin can interleave. fn must not call back into c.
func (c *Controller) Do(id ID, fn func()) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if id == "" || id != c.active {
		return false
	}
	fn()
	return true
}

// Reclaim removes a notice from inbox, begins a new session and applies the
// notice's result under it as if it had just arrived.
func (c *Controller) Reclaim(ctx context.Context, inbox Inbox, noticeID string, apply func(ID, models.Result)) (ID, error) {
	n, err := inbox.Get(ctx, noticeID)
	if err != nil {
		return "", err
	}
	if !n.Reclaimable() {
		return "", ErrNotReclaimable
	}
	if n, err = inbox.Take(ctx, noticeID); err != nil {
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.begin()
	apply(id, *n.Result)
	return id, nil
}
