package events

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
)

// RedisBus lets every server instance push a workspace's events to its own
// websocket clients.
type RedisBus struct {
	rdb redis.UniversalClient
}

func NewRedisBus(rdb redis.UniversalClient) *RedisBus {
	return &RedisBus{rdb: rdb}
}

func (b *RedisBus) Publish(ctx context.Context, workspace string, ev Event) error {
	payload, err := encode(ev)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, channel(workspace), payload).Err()
}

func (b *RedisBus) Subscribe(ctx context.Context, workspace string) (<-chan []byte, func(), error) {
	ps := b.rdb.Subscribe(ctx, channel(workspace))
	// wait for the subscription to be confirmed so no publish is missed
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, nil, err
	}

	out := make(chan []byte, subscriberBuffer)
	ctx, stop := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer close(out)
		for {
			m, err := ps.ReceiveMessage(ctx)
			if err != nil {
				return
			}
			select {
			case out <- []byte(m.Payload):
			default:
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			stop()
			_ = ps.Close()
			<-done
		})
	}
	return out, cancel, nil
}
