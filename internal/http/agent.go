package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/nextlevelbuilder/agentgate/internal/dispatch"
	"github.com/nextlevelbuilder/agentgate/internal/providers"
	"github.com/nextlevelbuilder/agentgate/internal/store"
	"github.com/nextlevelbuilder/agentgate/pkg/protocol"
)

type executeRequest struct {
	Task    string         `json:"task"`
	Model   string         `json:"model"`
	Options map[string]any `json:"options,omitempty"`
}

// handleExecute is the batch path: the whole run, or one error. The token
// is checked by the dispatcher, after the model.
func (h *Handler) handleExecute(w http.ResponseWriter, r *http.Request) {
	token := extractBearerToken(r)

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	var req executeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Task == "" || req.Model == "" {
		writeError(w, http.StatusBadRequest, protocol.ErrInvalidRequest, "Invalid request format", "")
		return
	}
	if req.Options == nil {
		req.Options = map[string]any{}
	}

	result, err := h.dispatcher.Execute(r.Context(), token, providers.TaskRequest{
		Model:   req.Model,
		Task:    req.Task,
		Options: req.Options,
	})
	if err != nil {
		info := dispatch.Classify(err, req.Model)
		if info.Status >= http.StatusInternalServerError {
			slog.Error("agent execute failed", "model", req.Model, "status", info.Status, "error", err)
		}
		if info.Code == protocol.ErrUnauthorized {
			w.Header().Set("WWW-Authenticate", "Bearer")
		}
		if info.Code == protocol.ErrMissingAPIKey {
			w.Header().Set(protocol.HeaderErrorCode, protocol.ErrMissingAPIKey)
			w.Header().Set(protocol.HeaderProvider, info.Provider)
		}
		writeError(w, info.Status, info.Code, info.Message, info.Provider)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleInteractions(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	list, err := h.history.ListRecent(r.Context(), store.UserIDFromContext(r.Context()), limit)
	if err != nil {
		slog.Error("list interactions failed", "error", err)
		writeError(w, http.StatusInternalServerError, protocol.ErrInternal, "Internal server error", "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"interactions": list})
}
