package cache

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// ReloadChannel carries the ids of decks whose narrations changed outside
// the API process.
const ReloadChannel = "narr:reload"

// ReloadBus announces narration changes made by the worker so the API can
// reload live presentation sessions.
type ReloadBus struct {
	rdb redis.UniversalClient
}

// NewReloadBus wraps rdb.
func NewReloadBus(rdb redis.UniversalClient) *ReloadBus {
	return &ReloadBus{rdb: rdb}
}

// PublishReload announces that deckID has new active narrations.
func (b *ReloadBus) PublishReload(ctx context.Context, deckID string) error {
	return b.rdb.Publish(ctx, ReloadChannel, deckID).Err()
}

// Listen calls fn for every announced deck until ctx is done. It returns
// once the subscription fails to start or ctx ends.
func (b *ReloadBus) Listen(ctx context.Context, fn func(ctx context.Context, deckID string)) error {
	sub := b.rdb.Subscribe(ctx, ReloadChannel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			if msg.Payload != "" {
				fn(ctx, msg.Payload)
			}
		}
	}
}
