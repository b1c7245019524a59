// Package realtime turns change notifications for the leads table into
// feed reloads. The message payload is only a trigger: no diff is read
// from it, every live session simply refetches.
package realtime

import (
	"context"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// Reloader is what a notification triggers. Satisfied by feed.Registry.
type Reloader interface {
	ReloadAll(ctx context.Context)
}

type Subscriber struct {
	rdb      *redis.Client
	channel  string
	reloader Reloader
	log      *zap.SugaredLogger
}

func NewSubscriber(rdb *redis.Client, channel string, reloader Reloader, log *zap.SugaredLogger) *Subscriber {
	return &Subscriber{
		rdb:      rdb,
		channel:  channel,
		reloader: reloader,
		log:      log,
	}
}

// Run consumes the change channel until ctx is cancelled. Subscription
// errors end the loop; the caller decides whether to restart.
func (s *Subscriber) Run(ctx context.Context) error {
	pubsub := s.rdb.Subscribe(ctx, s.channel)
	defer pubsub.Close()

	// Fail fast if the subscription could not be established.
	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			s.handle(ctx, msg.Payload)
		}
	}
}

func (s *Subscriber) handle(ctx context.Context, payload string) {
	s.log.Debugw("realtime: change notification", "payload", payload)
	s.reloader.ReloadAll(ctx)
}
