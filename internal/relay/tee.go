package relay

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/playcrack/trivia/internal/game"
)

const publishTimeout = 5 * time.Second

// EventPublisher is the sink side of the tee.
type EventPublisher interface {
	Publish(ctx context.Context, ev *game.Event) error
}

// Tee is a game.Broadcaster that forwards to the real broadcaster and mirrors
// every broadcast event to the publisher. Publish failures are logged and
// never affect client delivery.
type Tee struct {
	next game.Broadcaster
	pub  EventPublisher
}

// NewTee wraps next with an event mirror.
func NewTee(next game.Broadcaster, pub EventPublisher) *Tee {
	return &Tee{next: next, pub: pub}
}

func (t *Tee) Broadcast(ev *game.Event, channels ...game.Channel) {
	t.next.Broadcast(ev, channels...)
	t.mirror(ev)
}

// Send is point-to-point (ranking replies, admin feedback); those are not
// mirrored to the stream.
func (t *Tee) Send(connID string, ev *game.Event) {
	t.next.Send(connID, ev)
}

func (t *Tee) mirror(ev *game.Event) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()

		if err := t.pub.Publish(ctx, ev); err != nil {
			log.Warn().Err(err).Str("event", string(ev.Type)).Msg("event mirror publish failed")
		}
	}()
}
