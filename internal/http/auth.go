package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/nextlevelbuilder/agentgate/internal/auth"
	"github.com/nextlevelbuilder/agentgate/internal/credentials"
	"github.com/nextlevelbuilder/agentgate/internal/providers"
	"github.com/nextlevelbuilder/agentgate/internal/store"
	"github.com/nextlevelbuilder/agentgate/pkg/protocol"
)

// Accounts is the user registry and token issuer; *auth.Service satisfies it.
type Accounts interface {
	Signup(ctx context.Context, email, password, name string) (*store.UserData, error)
	Login(ctx context.Context, email, password string) (*auth.Session, error)
	Verify(ctx context.Context, token string) (string, error)
	CurrentUser(ctx context.Context, token string) (*store.UserData, error)
}

// KeyVault stores provider keys; *credentials.Gateway satisfies it.
type KeyVault interface {
	Store(ctx context.Context, userID string, provider providers.Provider, apiKey string) error
	HasKey(ctx context.Context, userID string, provider providers.Provider) (bool, error)
}

// ProviderLister lists the providers a user has keys for.
type ProviderLister interface {
	ListProviders(ctx context.Context, userID string) ([]string, error)
}

// extractBearerToken extracts a bearer token from the Authorization header.
func extractBearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) < len("Bearer ") || !strings.EqualFold(h[:len("Bearer ")], "Bearer ") {
		return ""
	}
	return strings.TrimSpace(h[len("Bearer "):])
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	writeError(w, http.StatusUnauthorized, protocol.ErrUnauthorized, "Invalid authentication credentials", "")
}

// requireUser verifies the bearer token and puts the user ID in the request
// context.
func (h *Handler) requireUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := extractBearerToken(r)
		if token == "" {
			writeUnauthorized(w)
			return
		}
		userID, err := h.accounts.Verify(r.Context(), token)
		if err != nil || userID == "" {
			slog.Warn("security.auth_failed", "path", r.URL.Path, "remote", r.RemoteAddr)
			writeUnauthorized(w)
			return
		}
		next(w, r.WithContext(store.WithUserID(r.Context(), userID)))
	}
}

type signupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

func toUserResponse(u *store.UserData) userResponse {
	return userResponse{ID: u.ID.String(), Email: u.Email, Name: u.Name}
}

func (h *Handler) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	u, err := h.accounts.Signup(r.Context(), strings.TrimSpace(req.Email), req.Password, strings.TrimSpace(req.Name))
	switch {
	case errors.Is(err, store.ErrAlreadyExists):
		writeError(w, http.StatusConflict, protocol.ErrInvalidRequest, "Email already registered", "")
		return
	case errors.Is(err, store.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, protocol.ErrInvalidRequest, strings.TrimPrefix(err.Error(), store.ErrInvalidInput.Error()+": "), "")
		return
	case err != nil:
		slog.Error("signup failed", "error", err)
		writeError(w, http.StatusInternalServerError, protocol.ErrInternal, "Internal server error", "")
		return
	}
	writeJSON(w, http.StatusCreated, toUserResponse(u))
}

// handleToken accepts an OAuth2-style password form or the same fields as
// JSON. "username" is the email address.
func (h *Handler) handleToken(w http.ResponseWriter, r *http.Request) {
	var email, password string
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var req struct {
			Username string `json:"username"`
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		email, password = req.Username, req.Password
		if email == "" {
			email = req.Email
		}
	} else {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		if err := r.ParseForm(); err != nil {
			writeError(w, http.StatusBadRequest, protocol.ErrInvalidRequest, "Invalid request format", "")
			return
		}
		email, password = r.PostFormValue("username"), r.PostFormValue("password")
	}

	if email == "" || password == "" {
		writeError(w, http.StatusBadRequest, protocol.ErrInvalidRequest, "username and password are required", "")
		return
	}

	sess, err := h.accounts.Login(r.Context(), strings.TrimSpace(email), password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		w.Header().Set("WWW-Authenticate", "Bearer")
		writeError(w, http.StatusUnauthorized, protocol.ErrUnauthorized, "Incorrect email or password", "")
		return
	}
	if err != nil {
		slog.Error("login failed", "error", err)
		writeError(w, http.StatusInternalServerError, protocol.ErrInternal, "Internal server error", "")
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	u, err := h.accounts.CurrentUser(r.Context(), extractBearerToken(r))
	if err != nil {
		writeUnauthorized(w)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(u))
}

type apiKeyRequest struct {
	Provider string `json:"provider"`
	APIKey   string `json:"api_key"`
}

func (h *Handler) handleStoreKey(w http.ResponseWriter, r *http.Request) {
	var req apiKeyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	userID := store.UserIDFromContext(r.Context())
	p := providers.Provider(strings.ToLower(strings.TrimSpace(req.Provider)))

	err := h.keys.Store(r.Context(), userID, p, req.APIKey)
	switch {
	case errors.Is(err, credentials.ErrInvalidProvider):
		writeError(w, http.StatusBadRequest, protocol.ErrInvalidRequest, "Unknown provider: "+req.Provider, "")
		return
	case errors.Is(err, credentials.ErrEmptyKey):
		writeError(w, http.StatusBadRequest, protocol.ErrInvalidRequest, "api_key is required", "")
		return
	case err != nil:
		slog.Error("store api key failed", "user_id", userID, "provider", p, "error", err)
		writeError(w, http.StatusInternalServerError, protocol.ErrInternal, "Internal server error", "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "provider": p})
}

func (h *Handler) handleHasKey(w http.ResponseWriter, r *http.Request) {
	p := providers.Provider(strings.ToLower(r.PathValue("provider")))
	if !p.Valid() {
		writeError(w, http.StatusBadRequest, protocol.ErrInvalidRequest, "Unknown provider: "+r.PathValue("provider"), "")
		return
	}
	ok, err := h.keys.HasKey(r.Context(), store.UserIDFromContext(r.Context()), p)
	if err != nil {
		slog.Error("check api key failed", "provider", p, "error", err)
		writeError(w, http.StatusInternalServerError, protocol.ErrInternal, "Internal server error", "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"has_key": ok})
}

func (h *Handler) handleListKeys(w http.ResponseWriter, r *http.Request) {
	list, err := h.keyList.ListProviders(r.Context(), store.UserIDFromContext(r.Context()))
	if err != nil {
		slog.Error("list api keys failed", "error", err)
		writeError(w, http.StatusInternalServerError, protocol.ErrInternal, "Internal server error", "")
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"providers": list})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, protocol.ErrInvalidRequest, "Invalid request format", "")
		return false
	}
	return true
}
