package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/nextlevelbuilder/agentgate/internal/store"
)

// ErrInvalidCredentials is returned by Login for unknown email or wrong password.
var ErrInvalidCredentials = errors.New("incorrect email or password")

// Session is what Login returns to the client.
type Session struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	UserID      string    `json:"user_id"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Service implements signup/login and the store.IdentityStore contract.
type Service struct {
	users  store.UserStore
	tokens *TokenManager
	cost   int
}

func NewService(users store.UserStore, tokens *TokenManager) *Service {
	return &Service{users: users, tokens: tokens, cost: bcrypt.DefaultCost}
}

// Signup validates and registers a new user.
func (s *Service) Signup(ctx context.Context, email, password, name string) (*store.UserData, error) {
	if err := store.ValidateSignup(email, password); err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := &store.UserData{Email: email, Name: name, PasswordHash: string(hash)}
	if err := s.users.CreateUser(ctx, u); err != nil {
		return nil, err
	}
	slog.Info("user registered", "user", u.ID)
	return u, nil
}

// Login checks the password and issues an access token.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	u, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		slog.Warn("security.login_failed", "user", u.ID)
		return nil, ErrInvalidCredentials
	}

	token, expires, err := s.tokens.Issue(u.ID.String(), u.Email)
	if err != nil {
		return nil, err
	}
	return &Session{AccessToken: token, TokenType: "bearer", UserID: u.ID.String(), ExpiresAt: expires}, nil
}

// Verify implements store.IdentityStore: the token must be valid and its
// subject must still be a registered user.
func (s *Service) Verify(ctx context.Context, token string) (string, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return "", err
	}
	if _, err := s.users.GetUserByID(ctx, claims.Subject); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrInvalidToken
		}
		return "", err
	}
	return claims.Subject, nil
}

// CurrentUser resolves a token to the full user record.
func (s *Service) CurrentUser(ctx context.Context, token string) (*store.UserData, error) {
	id, err := s.Verify(ctx, token)
	if err != nil {
		return nil, err
	}
	return s.users.GetUserByID(ctx, id)
}
