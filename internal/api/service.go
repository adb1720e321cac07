// Package api exposes the service over HTTP and MCP: text generation,
// feedback submission, status, and authenticated admin listings.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kalambet/seald/internal/adapt"
	"github.com/kalambet/seald/internal/feedback"
	"github.com/kalambet/seald/internal/model"
	"github.com/kalambet/seald/internal/storage"
)

const maxRequestBodySize = 1 << 20 // 1MB

// Generator serves completions from the live model.
type Generator interface {
	Generate(ctx context.Context, prompt string, maxTokens int) (string, error)
	State() model.State
}

// FeedbackSink accepts corrections and reports aggregate status.
type FeedbackSink interface {
	SubmitFeedback(ctx context.Context, rec feedback.Record) (string, error)
	Status() (adapt.Status, error)
}

// InteractionStore lists persisted history for the admin surface.
type InteractionStore interface {
	SaveInteraction(i storage.Interaction) error
	ListInteractions(limit, offset int) ([]storage.Interaction, error)
	ListAdaptationEvents() ([]storage.AdaptationEvent, error)
}

// Deps holds the handler's collaborators.
type Deps struct {
	Models       Generator
	Coordinator  FeedbackSink
	Store        InteractionStore
	FeedbackPath string // JSONL journal, read by the admin feedback listing
	MaxTokens    int
	AdminToken   string
	Logger       *slog.Logger
}

// NewHandler returns the HTTP handler for the whole REST surface.
func NewHandler(deps Deps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Get("/health", handleHealth)
	r.Post("/api/generate", handleGenerate(deps))
	r.Post("/api/submit_feedback", handleSubmitFeedback(deps))
	r.Get("/api/status", handleStatus(deps))

	// Admin listings require the API token.
	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.AdminToken))
		r.Get("/interactions", handleListInteractions(deps))
		r.Get("/adaptations", handleListAdaptations(deps))
		r.Get("/feedback", handleListFeedback(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

type generateRequest struct {
	Prompt    string `json:"prompt"`
	MaxTokens int    `json:"max_tokens,omitempty"`
}

type generateResponse struct {
	ID         string `json:"id"`
	Completion string `json:"completion"`
	Adapter    string `json:"adapter,omitempty"`
}

func handleGenerate(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Prompt == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "prompt is required")
			return
		}
		maxTokens := req.MaxTokens
		if maxTokens <= 0 {
			maxTokens = deps.MaxTokens
		}

		start := time.Now()
		completion, err := deps.Models.Generate(r.Context(), req.Prompt, maxTokens)
		if err != nil {
			if errors.Is(err, model.ErrNotReady) {
				httpError(w, http.StatusServiceUnavailable, "service_unavailable", "model is not ready")
				return
			}
			httpError(w, http.StatusInternalServerError, "api_error", "generation failed: %v", err)
			return
		}

		state := deps.Models.State()
		id := uuid.New().String()
		// History is best effort; a full disk must not fail the completion.
		if err := deps.Store.SaveInteraction(storage.Interaction{
			ID:         id,
			CreatedAt:  time.Now().UTC(),
			Prompt:     req.Prompt,
			Completion: completion,
			Adapter:    state.ActiveAdapter,
			DurationMs: time.Since(start).Milliseconds(),
		}); err != nil {
			deps.Logger.Error("saving interaction", "id", id, "error", err)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(generateResponse{
			ID:         id,
			Completion: completion,
			Adapter:    state.ActiveAdapter,
		})
	}
}

type submitFeedbackRequest struct {
	Prompt              string `json:"prompt"`
	OriginalCompletion  string `json:"original_completion"`
	CorrectedCompletion string `json:"corrected_completion"`
}

func handleSubmitFeedback(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req submitFeedbackRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Prompt == "" || req.CorrectedCompletion == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error",
				"prompt and corrected_completion are required")
			return
		}

		msg, err := deps.Coordinator.SubmitFeedback(r.Context(), feedback.Record{
			ID:                  uuid.New().String(),
			CreatedAt:           time.Now().UTC(),
			Prompt:              req.Prompt,
			OriginalCompletion:  req.OriginalCompletion,
			CorrectedCompletion: req.CorrectedCompletion,
		})
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "submitting feedback: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"message": msg})
	}
}

func handleStatus(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := deps.Coordinator.Status()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "reading status: %v", err)
			return
		}
		if st.AdaptationLog == nil {
			st.AdaptationLog = []storage.AdaptationEvent{}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(st)
	}
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
