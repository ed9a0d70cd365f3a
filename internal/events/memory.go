package events

import (
	"context"
	"sync"
)

const subscriberBuffer = 64

type MemoryBus struct {
	mu   sync.Mutex
	subs map[string]map[chan []byte]struct{}
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[string]map[chan []byte]struct{})}
}

func (b *MemoryBus) Publish(_ context.Context, workspace string, ev Event) error {
	payload, err := encode(ev)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs[channel(workspace)] {
		select {
		case ch <- payload:
		default: // slow subscriber
		}
	}
	return nil
}

func (b *MemoryBus) Subscribe(ctx context.Context, workspace string) (<-chan []byte, func(), error) {
	key := channel(workspace)
	ch := make(chan []byte, subscriberBuffer)

	b.mu.Lock()
	if b.subs[key] == nil {
		b.subs[key] = make(map[chan []byte]struct{})
	}
	b.subs[key][ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs[key], ch)
			if len(b.subs[key]) == 0 {
				delete(b.subs, key)
			}
			close(ch)
		})
	}
	go func() {
		<-ctx.Done()
		cancel()
	}()
	return ch, cancel, nil
}

func (b *MemoryBus) subscribers(workspace string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[channel(workspace)])
}
