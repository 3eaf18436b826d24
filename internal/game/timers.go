package game

import (
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/playcrack/trivia/internal/models"
)

// Clock is the time source for question timers.
// In production, use clockwork.NewRealClock(). In tests, a FakeClock.
type Clock interface {
	Now() time.Time
	NewTimer(d time.Duration) clockwork.Timer
}

type timerKind int

const (
	timerQuestion timerKind = iota // T1: the question's answer window
	timerGrace                     // T2: tolerance window after time-up
)

// timerToken is a cancellable handle for one armed timer. The session holds
// at most one pending token; every transition that supersedes it must cancel
// the token before arming a new one, or a stale timer fires against a newer
// question.
type timerToken struct {
	kind     timerKind
	question *models.Question
	timer    clockwork.Timer
	stopCh   chan struct{}
}

// armTimer schedules a one-shot timer that, on expiry, enqueues a timerFired
// command back into the coordinator loop. Expiry and cancellation race by
// nature; the loop re-checks token identity before acting, so a fire that
// slips past cancel is ignored.
func (c *Coordinator) armTimer(kind timerKind, q *models.Question, d time.Duration) *timerToken {
	token := &timerToken{
		kind:     kind,
		question: q,
		timer:    c.clock.NewTimer(d),
		stopCh:   make(chan struct{}),
	}

	go func() {
		select {
		case <-token.timer.Chan():
			select {
			case c.cmdCh <- cmdTimerFired{token: token}:
			case <-token.stopCh:
			}
		case <-token.stopCh:
		}
	}()

	return token
}

// cancel stops the timer and releases its goroutine.
func (t *timerToken) cancel() {
	stopAndDrainTimer(t.timer)
	close(t.stopCh)
}

// stopAndDrainTimer safely stops a timer and drains its channel to prevent
// goroutine leaks, per the time.Timer.Stop() documentation.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}
