package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/playcrack/trivia/internal/game"
	"github.com/playcrack/trivia/internal/models"
)

// Dispatcher is what the gateway needs from the session coordinator.
type Dispatcher interface {
	Start(connID string)
	End()
	NextQuestion(q models.Question)
	ResetScores(connID string)
	Join(connID, name string)
	Answer(connID string, questionID, answerID int64)
	Disconnect(connID string)
	RankingGet(connID string)
}

// clientMessage is the inbound envelope.
type clientMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Inbound message types per channel. A connection may only send the types
// its channel allows; everything else is silently dropped.
const (
	msgJoin         = "join"
	msgSubmitAnswer = "submit_answer"
	msgRankingGet   = "ranking_get"
	msgStartGame    = "start_game"
	msgEndGame      = "end_game"
	msgNextQuestion = "next_question"
	msgResetScores  = "reset_scores"
)

var allowedMessages = map[game.Channel]map[string]bool{
	game.ChannelPlayer: {
		msgJoin:         true,
		msgSubmitAnswer: true,
		msgRankingGet:   true,
	},
	game.ChannelAdmin: {
		msgStartGame:    true,
		msgEndGame:      true,
		msgNextQuestion: true,
		msgResetScores:  true,
	},
	game.ChannelProjection: {},
}

type joinPayload struct {
	Name string `json:"name"`
}

type submitAnswerPayload struct {
	QuestionID models.FlexInt `json:"questionId"`
	AnswerID   models.FlexInt `json:"answerId"`
}

// HandleWS upgrades a client declaring its role via the role query parameter.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	role := r.URL.Query().Get("role")
	channel := game.Channel(role)
	switch channel {
	case game.ChannelPlayer, game.ChannelAdmin, game.ChannelProjection:
	default:
		http.Error(w, "role must be player, admin or projection", http.StatusBadRequest)
		return
	}

	if err := h.Upgrade(w, r, channel); err != nil {
		log.Error().Err(err).Str("role", role).Msg("websocket upgrade failed")
		// Upgrade already wrote the HTTP error response.
	}
}

// HandleStats reports live connection counts per channel.
func (h *Hub) HandleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.ConnectionCounts()); err != nil {
		log.Error().Err(err).Msg("write stats response")
	}
}

// RegisterRoutes registers the websocket HTTP routes.
func (h *Hub) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", h.HandleWS)
	mux.HandleFunc("/ws/stats", h.HandleStats)
}

// handleClientMessage decodes an inbound message and forwards it to the
// coordinator. Malformed messages and types a channel may not send are
// dropped without a reply; this is a fire-and-forget control surface.
func (h *Hub) handleClientMessage(c *Connection, raw []byte) {
	var msg clientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		log.Debug().Err(err).Str("connection_id", c.ID).Msg("malformed client message")
		return
	}

	if !allowedMessages[c.Channel][msg.Type] {
		log.Debug().
			Str("connection_id", c.ID).
			Str("channel", string(c.Channel)).
			Str("type", msg.Type).
			Msg("message type not allowed on channel")
		return
	}

	switch msg.Type {
	case msgJoin:
		var p joinPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil || p.Name == "" {
			return
		}
		h.dispatcher.Join(c.ID, p.Name)

	case msgSubmitAnswer:
		var p submitAnswerPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return
		}
		h.dispatcher.Answer(c.ID, int64(p.QuestionID), int64(p.AnswerID))

	case msgRankingGet:
		h.dispatcher.RankingGet(c.ID)

	case msgStartGame:
		h.dispatcher.Start(c.ID)

	case msgEndGame:
		h.dispatcher.End()

	case msgNextQuestion:
		var q models.Question
		if err := json.Unmarshal(msg.Payload, &q); err != nil {
			log.Debug().Err(err).Str("connection_id", c.ID).Msg("malformed question payload")
			return
		}
		h.dispatcher.NextQuestion(q)

	case msgResetScores:
		h.dispatcher.ResetScores(c.ID)
	}
}
