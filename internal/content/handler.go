package content

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/playcrack/trivia/internal/models"
)

// QuestionSource is the narrow interface the HTTP layer consumes.
type QuestionSource interface {
	ListQuestions(ctx context.Context) ([]models.Question, error)
	CreateQuestion(ctx context.Context, q models.Question) (*models.Question, error)
}

// SettingsSource is the narrow interface for game customization values.
type SettingsSource interface {
	GetSettings(ctx context.Context) (models.Settings, error)
	UpdateSettings(ctx context.Context, settings models.Settings) error
}

// Handler serves the question and settings REST API used by the admin panel
// and the frontends.
type Handler struct {
	questions QuestionSource
	settings  SettingsSource
}

// NewHandler creates the content API handler.
func NewHandler(questions QuestionSource, settings SettingsSource) *Handler {
	return &Handler{questions: questions, settings: settings}
}

// RegisterRoutes registers the REST routes.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/questions", h.handleQuestions)
	mux.HandleFunc("/api/settings", h.handleSettings)
}

func (h *Handler) handleQuestions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		questions, err := h.questions.ListQuestions(r.Context())
		if err != nil {
			log.Error().Err(err).Msg("list questions failed")
			http.Error(w, "server error", http.StatusInternalServerError)
			return
		}
		if questions == nil {
			// The admin panel expects a JSON array even when no questions
			// exist yet.
			questions = []models.Question{}
		}
		writeJSON(w, http.StatusOK, questions)

	case http.MethodPost:
		var q models.Question
		if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
			http.Error(w, "invalid question payload", http.StatusBadRequest)
			return
		}
		created, err := h.questions.CreateQuestion(r.Context(), q)
		if err != nil {
			log.Error().Err(err).Msg("create question failed")
			http.Error(w, "server error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusCreated, created)

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleSettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		settings, err := h.settings.GetSettings(r.Context())
		if err != nil {
			log.Error().Err(err).Msg("get settings failed")
			http.Error(w, "server error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, settings)

	case http.MethodPost:
		var settings models.Settings
		if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
			http.Error(w, "invalid settings payload", http.StatusBadRequest)
			return
		}
		if err := h.settings.UpdateSettings(r.Context(), settings); err != nil {
			log.Error().Err(err).Msg("update settings failed")
			http.Error(w, "server error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "settings saved"})

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write json response")
	}
}
