package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nikhilbhutani/kbengine/internal/engine"
	"github.com/nikhilbhutani/kbengine/internal/scope"
	"github.com/nikhilbhutani/kbengine/internal/search"
)

type SearchHandler struct {
	eng *engine.Engine
}

func NewSearchHandler(eng *engine.Engine) *SearchHandler {
	return &SearchHandler{eng: eng}
}

type searchRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k,omitempty"`
}

func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	ownerScope := scope.FromContext(r.Context())

	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Query == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query required"})
		return
	}
	if req.TopK <= 0 {
		req.TopK = 10
	}

	resp, err := h.eng.Search(r.Context(), ownerScope, req.Query, req.TopK)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, search.ErrTimeout) {
			status = http.StatusGatewayTimeout
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *SearchHandler) Answer(w http.ResponseWriter, r *http.Request) {
	ownerScope := scope.FromContext(r.Context())

	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Query == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query required"})
		return
	}

	resp, err := h.eng.AnswerQuery(r.Context(), ownerScope, req.Query, req.TopK)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, resp)
}
