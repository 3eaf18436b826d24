package game

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/playcrack/trivia/internal/models"
)

// Channel is a logical broadcast group. A connection subscribes to exactly
// one channel based on the role it declares at connect time.
type Channel string

const (
	ChannelPlayer     Channel = "player"
	ChannelAdmin      Channel = "admin"
	ChannelProjection Channel = "projection"
)

// EventType identifies an outbound event.
type EventType string

const (
	EventGameStarted   EventType = "game_started"
	EventNewQuestion   EventType = "new_question"
	EventTimeUp        EventType = "time_up"
	EventRevealAnswer  EventType = "reveal_answer"
	EventUpdateRanking EventType = "update_ranking"
	EventGameOver      EventType = "game_over"
	EventScoresReset   EventType = "scores_reset"
	EventAdminFeedback EventType = "admin_feedback"
)

// Event is the outbound envelope pushed to clients.
type Event struct {
	ID        string          `json:"id"`
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// NewEvent wraps a payload in an event envelope.
func NewEvent(t EventType, payload any) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", t, err)
	}
	return &Event{
		ID:        uuid.New().String(),
		Type:      t,
		Timestamp: time.Now(),
		Data:      data,
	}, nil
}

// TimeUpPayload tells players the answer window for a question is closing.
type TimeUpPayload struct {
	QuestionID int64 `json:"question_id"`
}

// RevealAnswerPayload tells the projection which option was correct.
type RevealAnswerPayload struct {
	QuestionID    int64 `json:"question_id"`
	CorrectOption int64 `json:"correct_option"`
}

// GameOverPayload carries the final leaderboard.
type GameOverPayload struct {
	FinalRanking []models.RankingEntry `json:"final_ranking"`
}

// AdminFeedbackPayload is an informational reply on the admin channel.
type AdminFeedbackPayload struct {
	Message string `json:"message"`
}

// Broadcaster pushes events out to connected clients. The gateway hub is the
// production implementation; tests use a capturing fake.
type Broadcaster interface {
	// Broadcast delivers the event to every connection on the given channels.
	Broadcast(ev *Event, channels ...Channel)
	// Send delivers the event to a single connection.
	Send(connID string, ev *Event)
}
