// Package http serves the REST surface: batch task execution, account and
// API key management, and the upgrade route for streaming sessions.
package http

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"time"

	"github.com/nextlevelbuilder/agentgate/internal/providers"
	"github.com/nextlevelbuilder/agentgate/internal/store"
	"github.com/nextlevelbuilder/agentgate/pkg/protocol"
)

const maxRequestBodySize = 1 << 20 // 1MB

// TaskDispatcher runs one batch task; *dispatch.Dispatcher satisfies it.
type TaskDispatcher interface {
	Execute(ctx context.Context, token string, req providers.TaskRequest) (*providers.TaskResult, error)
}

// InteractionHistory lists a user's recent interactions.
type InteractionHistory interface {
	ListRecent(ctx context.Context, userID string, limit int) ([]store.InteractionLog, error)
}

// Deps wires the handler. Streaming, KeyList, History and Sessions are
// optional; their routes are not mounted when nil.
type Deps struct {
	Dispatcher     TaskDispatcher
	Accounts       Accounts
	Keys           KeyVault
	KeyList        ProviderLister
	History        InteractionHistory
	Streaming      http.Handler
	Sessions       func() int
	AllowedOrigins []string
	Version        string
}

// Handler is the root HTTP handler.
type Handler struct {
	dispatcher TaskDispatcher
	accounts   Accounts
	keys       KeyVault
	keyList    ProviderLister
	history    InteractionHistory
	sessions   func() int
	origins    []string
	version    string
	started    time.Time
	mux        *http.ServeMux
}

func NewHandler(d Deps) *Handler {
	h := &Handler{
		dispatcher: d.Dispatcher,
		accounts:   d.Accounts,
		keys:       d.Keys,
		keyList:    d.KeyList,
		history:    d.History,
		sessions:   d.Sessions,
		origins:    d.AllowedOrigins,
		version:    d.Version,
		started:    time.Now(),
		mux:        http.NewServeMux(),
	}

	h.mux.HandleFunc("GET /health", h.handleHealth)
	h.mux.HandleFunc("POST /api/agent/execute", h.handleExecute)
	if d.Streaming != nil {
		h.mux.Handle("GET /api/agent/ws", d.Streaming)
	}
	if h.history != nil {
		h.mux.HandleFunc("GET /api/agent/interactions", h.requireUser(h.handleInteractions))
	}

	h.mux.HandleFunc("POST /api/auth/signup", h.handleSignup)
	h.mux.HandleFunc("POST /api/auth/token", h.handleToken)
	h.mux.HandleFunc("GET /api/auth/me", h.requireUser(h.handleMe))
	h.mux.HandleFunc("POST /api/auth/api-keys", h.requireUser(h.handleStoreKey))
	h.mux.HandleFunc("GET /api/auth/api-keys/{provider}", h.requireUser(h.handleHasKey))
	if h.keyList != nil {
		h.mux.HandleFunc("GET /api/auth/api-keys", h.requireUser(h.handleListKeys))
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if origin := r.Header.Get("Origin"); origin != "" && h.originAllowed(origin) {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		if slices.Contains(h.origins, origin) {
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}
		w.Header().Set("Access-Control-Expose-Headers", protocol.HeaderErrorCode+", "+protocol.HeaderProvider)
		w.Header().Add("Vary", "Origin")
		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) originAllowed(origin string) bool {
	return len(h.origins) == 0 || slices.Contains(h.origins, "*") || slices.Contains(h.origins, origin)
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	body := map[string]any{
		"status":   "ok",
		"protocol": protocol.ProtocolVersion,
		"uptime_s": int(time.Since(h.started).Seconds()),
	}
	if h.version != "" {
		body["version"] = h.version
	}
	if h.sessions != nil {
		body["sessions"] = h.sessions()
	}
	writeJSON(w, http.StatusOK, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message, provider string) {
	writeJSON(w, status, protocol.ErrorBody{Error: protocol.ErrorShape{Code: code, Message: message, Provider: provider}})
}
