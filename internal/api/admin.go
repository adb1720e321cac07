package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/kalambet/seald/internal/feedback"
	"github.com/kalambet/seald/internal/storage"
)

const defaultPageSize = 50

func queryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

func handleListInteractions(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := queryInt(r, "limit", defaultPageSize)
		offset := queryInt(r, "offset", 0)

		items, err := deps.Store.ListInteractions(limit, offset)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "listing interactions: %v", err)
			return
		}
		if items == nil {
			items = []storage.Interaction{}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"interactions": items})
	}
}

func handleListAdaptations(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		events, err := deps.Store.ListAdaptationEvents()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "listing adaptations: %v", err)
			return
		}
		if events == nil {
			events = []storage.AdaptationEvent{}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"adaptations": events})
	}
}

func handleListFeedback(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		records, err := feedback.ReadAll(deps.FeedbackPath)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "reading feedback journal: %v", err)
			return
		}
		if records == nil {
			records = []feedback.Record{}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"feedback": records})
	}
}
