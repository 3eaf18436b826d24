package game

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/playcrack/trivia/internal/models"
)

// Directory is what the coordinator needs from the player directory and
// ranking view.
type Directory interface {
	// FindOrCreate returns the durable record for a display name, creating it
	// with score 0 on first join.
	FindOrCreate(ctx context.Context, name string) (*models.Player, error)
	// Credit adds delta to the player's persisted score.
	Credit(ctx context.Context, name string, delta int) (*models.Player, error)
	// ResetScores zeroes every score.
	ResetScores(ctx context.Context) error
	// TopN returns the leaderboard: score descending, ties by name ascending.
	TopN(ctx context.Context, n int) ([]models.RankingEntry, error)
}

// Config holds the coordinator's timing and scoring defaults.
type Config struct {
	// DefaultTimeLimit is armed when a question carries no time limit.
	DefaultTimeLimit time.Duration
	// GraceWindow is the tolerance window after time-up during which late
	// answers are still credited before the question clears.
	GraceWindow time.Duration
	// DefaultPoints is credited when a question carries no point value.
	DefaultPoints int
	// RankingSize caps broadcast leaderboards.
	RankingSize int
	// Clock defaults to the real clock.
	Clock Clock
}

// session is the single game-round context. Owned exclusively by the
// coordinator loop; never touched from other goroutines.
type session struct {
	active  bool
	current *models.Question
	pending *timerToken
}

// Coordinator owns the session state machine. All inbound messages are
// funneled through one command channel and processed in arrival order by Run,
// so handlers never race each other; the only other concurrency is the armed
// timer, which re-enters through the same channel.
type Coordinator struct {
	dir   Directory
	bus   Broadcaster
	clock Clock
	cfg   Config

	cmdCh chan command

	session session
	// handles maps a volatile connection ID to the durable player name.
	handles map[string]string
}

// NewCoordinator creates the session coordinator. Call Run to start it.
func NewCoordinator(dir Directory, bus Broadcaster, cfg Config) *Coordinator {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.DefaultTimeLimit <= 0 {
		cfg.DefaultTimeLimit = 10 * time.Second
	}
	if cfg.GraceWindow <= 0 {
		cfg.GraceWindow = 3 * time.Second
	}
	if cfg.DefaultPoints <= 0 {
		cfg.DefaultPoints = 10
	}
	if cfg.RankingSize <= 0 {
		cfg.RankingSize = 10
	}

	return &Coordinator{
		dir:     dir,
		bus:     bus,
		clock:   cfg.Clock,
		cfg:     cfg,
		cmdCh:   make(chan command, 256),
		handles: make(map[string]string),
	}
}

type command interface{ isCommand() }

type cmdStart struct{ connID string }
type cmdEnd struct{}
type cmdNextQuestion struct{ question models.Question }
type cmdResetScores struct{ connID string }
type cmdJoin struct{ connID, name string }
type cmdAnswer struct {
	connID     string
	questionID int64
	answerID   int64
}
type cmdDisconnect struct{ connID string }
type cmdRankingGet struct{ connID string }
type cmdTimerFired struct{ token *timerToken }
type cmdState struct{ reply chan StateSnapshot }

func (cmdStart) isCommand()        {}
func (cmdEnd) isCommand()          {}
func (cmdNextQuestion) isCommand() {}
func (cmdResetScores) isCommand()  {}
func (cmdJoin) isCommand()         {}
func (cmdAnswer) isCommand()       {}
func (cmdDisconnect) isCommand()   {}
func (cmdRankingGet) isCommand()   {}
func (cmdTimerFired) isCommand()   {}
func (cmdState) isCommand()        {}

// Start handles the moderator's start_game command.
func (c *Coordinator) Start(connID string) { c.enqueue(cmdStart{connID: connID}) }

// End handles the moderator's end_game command.
func (c *Coordinator) End() { c.enqueue(cmdEnd{}) }

// NextQuestion handles the moderator's next_question command.
func (c *Coordinator) NextQuestion(q models.Question) { c.enqueue(cmdNextQuestion{question: q}) }

// ResetScores handles the moderator's reset_scores command.
func (c *Coordinator) ResetScores(connID string) { c.enqueue(cmdResetScores{connID: connID}) }

// Join handles a participant's join command.
func (c *Coordinator) Join(connID, name string) { c.enqueue(cmdJoin{connID: connID, name: name}) }

// Answer handles a participant's submit_answer command.
func (c *Coordinator) Answer(connID string, questionID, answerID int64) {
	c.enqueue(cmdAnswer{connID: connID, questionID: questionID, answerID: answerID})
}

// Disconnect detaches a connection. The player record and score are retained.
func (c *Coordinator) Disconnect(connID string) { c.enqueue(cmdDisconnect{connID: connID}) }

// RankingGet replies with the current ranking to the requesting connection.
func (c *Coordinator) RankingGet(connID string) { c.enqueue(cmdRankingGet{connID: connID}) }

// StateSnapshot is a read-only view of the session, served through the loop
// so it is always consistent.
type StateSnapshot struct {
	Active            bool
	CurrentQuestionID int64
	QuestionOpen      bool
}

// State returns a consistent snapshot of the session.
func (c *Coordinator) State() StateSnapshot {
	reply := make(chan StateSnapshot, 1)
	c.cmdCh <- cmdState{reply: reply}
	return <-reply
}

func (c *Coordinator) enqueue(cmd command) {
	select {
	case c.cmdCh <- cmd:
	default:
		// The loop is wedged or flooded. This is a fire-and-forget control
		// surface: dropping beats blocking a connection's read pump.
		log.Warn().Str("command", commandName(cmd)).Msg("command channel full, dropping command")
	}
}

// Run processes commands until ctx is cancelled.
func (c *Coordinator) Run(ctx context.Context) {
	log.Info().Msg("session coordinator started")

	for {
		select {
		case <-ctx.Done():
			c.cancelPendingTimer()
			log.Info().Msg("session coordinator shutting down")
			return
		case cmd := <-c.cmdCh:
			c.dispatch(ctx, cmd)
		}
	}
}

func (c *Coordinator) dispatch(ctx context.Context, cmd command) {
	switch v := cmd.(type) {
	case cmdStart:
		c.handleStart(ctx, v.connID)
	case cmdEnd:
		c.handleEnd(ctx)
	case cmdNextQuestion:
		c.handleNextQuestion(v.question)
	case cmdResetScores:
		c.handleResetScores(ctx, v.connID)
	case cmdJoin:
		c.handleJoin(ctx, v.connID, v.name)
	case cmdAnswer:
		c.handleAnswer(ctx, v)
	case cmdDisconnect:
		delete(c.handles, v.connID)
	case cmdRankingGet:
		c.handleRankingGet(ctx, v.connID)
	case cmdTimerFired:
		c.handleTimerFired(v.token)
	case cmdState:
		v.reply <- c.snapshot()
	}
}

func (c *Coordinator) snapshot() StateSnapshot {
	s := StateSnapshot{Active: c.session.active}
	if c.session.current != nil {
		s.QuestionOpen = true
		s.CurrentQuestionID = c.session.current.ID
	}
	return s
}

// handleStart begins a fresh round. Persisted scores are preserved: the
// directory is the reconnection identity, and the moderator wipes it with an
// explicit reset_scores command instead.
func (c *Coordinator) handleStart(ctx context.Context, connID string) {
	c.cancelPendingTimer()
	c.session.active = true
	c.session.current = nil

	log.Info().Msg("game started")

	c.broadcast(EventGameStarted, struct{}{}, ChannelPlayer, ChannelProjection)
	c.broadcastRanking(ctx)
	c.feedback(connID, "game started")
}

func (c *Coordinator) handleEnd(ctx context.Context) {
	if !c.session.active {
		return
	}
	c.cancelPendingTimer()
	c.session.active = false
	c.session.current = nil

	ranking, err := c.dir.TopN(ctx, c.cfg.RankingSize)
	if err != nil {
		log.Error().Err(err).Msg("final ranking lookup failed")
		ranking = nil
	}

	log.Info().Int("ranking_entries", len(ranking)).Msg("game over")

	c.broadcast(EventGameOver, GameOverPayload{FinalRanking: ranking}, ChannelPlayer, ChannelProjection)
}

func (c *Coordinator) handleNextQuestion(q models.Question) {
	if !c.session.active {
		return
	}
	c.cancelPendingTimer()
	c.session.current = &q

	limit := time.Duration(q.TimeLimitSec) * time.Second
	if limit <= 0 {
		limit = c.cfg.DefaultTimeLimit
	}
	// Arm before broadcasting: once clients see the question, the window is
	// guaranteed to be running.
	c.session.pending = c.armTimer(timerQuestion, c.session.current, limit)

	log.Info().
		Int64("question_id", q.ID).
		Dur("time_limit", limit).
		Msg("question opened")

	c.broadcast(EventNewQuestion, &q, ChannelPlayer, ChannelProjection)
}

func (c *Coordinator) handleResetScores(ctx context.Context, connID string) {
	if err := c.dir.ResetScores(ctx); err != nil {
		log.Error().Err(err).Msg("score reset failed")
		c.feedback(connID, "score reset failed")
		return
	}

	log.Info().Msg("scores reset")

	c.broadcast(EventScoresReset, struct{}{}, ChannelPlayer, ChannelProjection)
	c.broadcastRanking(ctx)
	c.feedback(connID, "scores reset")
}

// handleJoin attaches a connection to a durable player record, creating it on
// first join. Joins are allowed at any time, including mid-question; a
// reconnect under the same name resumes the same score.
func (c *Coordinator) handleJoin(ctx context.Context, connID, name string) {
	if name == "" {
		return
	}

	p, err := c.dir.FindOrCreate(ctx, name)
	if err != nil {
		log.Error().Err(err).Str("name", name).Msg("player join failed")
		return
	}
	c.handles[connID] = p.Name

	log.Info().Str("name", p.Name).Int("score", p.Score).Msg("player joined")

	c.broadcastRanking(ctx)
}

// handleAnswer validates a submission against the open question and credits
// the score on a match. Every rejection is a silent no-op.
func (c *Coordinator) handleAnswer(ctx context.Context, cmd cmdAnswer) {
	if !c.session.active {
		return
	}
	q := c.session.current
	if q == nil || q.ID != cmd.questionID {
		return
	}
	name, ok := c.handles[cmd.connID]
	if !ok {
		return
	}
	if cmd.answerID != int64(q.CorrectOption) {
		return
	}

	points := q.Points
	if points <= 0 {
		points = c.cfg.DefaultPoints
	}

	// No guard against repeat submissions for the same question: each
	// matching submission credits again, matching upstream behavior. Changing
	// this needs a product decision, not a code one.
	p, err := c.dir.Credit(ctx, name, points)
	if err != nil {
		log.Error().Err(err).Str("name", name).Msg("score credit failed")
		return
	}

	log.Info().
		Str("name", name).
		Int("points", points).
		Int("total", p.Score).
		Int64("question_id", q.ID).
		Msg("correct answer")

	c.broadcastRanking(ctx)
}

func (c *Coordinator) handleRankingGet(ctx context.Context, connID string) {
	ranking, err := c.dir.TopN(ctx, c.cfg.RankingSize)
	if err != nil {
		log.Error().Err(err).Msg("ranking lookup failed")
		return
	}
	ev, err := NewEvent(EventUpdateRanking, ranking)
	if err != nil {
		log.Error().Err(err).Msg("encode ranking failed")
		return
	}
	c.bus.Send(connID, ev)
}

// handleTimerFired processes T1 and T2 expiries. A token that is no longer
// the session's pending timer is stale (a newer command superseded it) and is
// ignored.
func (c *Coordinator) handleTimerFired(token *timerToken) {
	if c.session.pending != token {
		return
	}
	c.session.pending = nil

	switch token.kind {
	case timerQuestion:
		// Time is up, but keep the question open for a short grace window so
		// answers in flight when the limit hit are still credited. Arm before
		// broadcasting, same as question open.
		c.session.pending = c.armTimer(timerGrace, token.question, c.cfg.GraceWindow)

		log.Info().Int64("question_id", token.question.ID).Msg("question time up")

		c.broadcast(EventTimeUp, TimeUpPayload{QuestionID: token.question.ID}, ChannelPlayer)
		c.broadcast(EventRevealAnswer, RevealAnswerPayload{
			QuestionID:    token.question.ID,
			CorrectOption: int64(token.question.CorrectOption),
		}, ChannelProjection)

	case timerGrace:
		// Only clear if the open question is still the one that armed this
		// grace timer; the moderator may already have advanced.
		if c.session.current == token.question {
			c.session.current = nil
			log.Info().Int64("question_id", token.question.ID).Msg("answer window closed")
		}
	}
}

func (c *Coordinator) cancelPendingTimer() {
	if c.session.pending != nil {
		c.session.pending.cancel()
		c.session.pending = nil
	}
}

func (c *Coordinator) broadcastRanking(ctx context.Context) {
	ranking, err := c.dir.TopN(ctx, c.cfg.RankingSize)
	if err != nil {
		log.Error().Err(err).Msg("ranking lookup failed")
		return
	}
	c.broadcast(EventUpdateRanking, ranking, ChannelPlayer)
}

func (c *Coordinator) broadcast(t EventType, payload any, channels ...Channel) {
	ev, err := NewEvent(t, payload)
	if err != nil {
		log.Error().Err(err).Str("event", string(t)).Msg("encode event failed")
		return
	}
	c.bus.Broadcast(ev, channels...)
}

func (c *Coordinator) feedback(connID, msg string) {
	if connID == "" {
		return
	}
	ev, err := NewEvent(EventAdminFeedback, AdminFeedbackPayload{Message: msg})
	if err != nil {
		return
	}
	c.bus.Send(connID, ev)
}

func commandName(cmd command) string {
	switch cmd.(type) {
	case cmdStart:
		return "start_game"
	case cmdEnd:
		return "end_game"
	case cmdNextQuestion:
		return "next_question"
	case cmdResetScores:
		return "reset_scores"
	case cmdJoin:
		return "join"
	case cmdAnswer:
		return "submit_answer"
	case cmdDisconnect:
		return "disconnect"
	case cmdRankingGet:
		return "ranking_get"
	case cmdTimerFired:
		return "timer_fired"
	case cmdState:
		return "state"
	default:
		return "unknown"
	}
}
