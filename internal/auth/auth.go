// Package auth signs users in and keeps their identity in the session store.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/raphaelgruber/helpdesk-go/internal/client"
	"github.com/raphaelgruber/helpdesk-go/internal/store"
)

// ErrNotLoggedIn is returned when no identity is stored.
var ErrNotLoggedIn = errors.New("not logged in")

// Gateway is the slice of the backend client used for login.
type Gateway interface {
	Login(ctx context.Context, email, name string) (*client.User, error)
}

// Service manages the signed-in identity.
type Service struct {
	gateway Gateway
	store   store.Store
	logger  *slog.Logger
}

// NewService creates an auth service.
func NewService(gateway Gateway, s store.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{gateway: gateway, store: s, logger: logger}
}

// Login signs in and persists user_id, email and name.
func (s *Service) Login(ctx context.Context, email, name string) (*client.User, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, client.NewValidationError("email", "email is required")
	}
	if !strings.Contains(email, "@") {
		return nil, client.NewValidationError("email", "email must contain @")
	}

	user, err := s.gateway.Login(ctx, email, strings.TrimSpace(name))
	if err != nil {
		return nil, err
	}

	for key, value := range map[string]string{
		store.KeyUserID: user.UserID,
		store.KeyEmail:  user.Email,
		store.KeyName:   user.Name,
	} {
		if err := s.store.Save(key, value); err != nil {
			return nil, fmt.Errorf("persist identity: %w", err)
		}
	}

	s.logger.Info("logged in", "user_id", user.UserID)
	return user, nil
}

// Current returns the stored identity, or ErrNotLoggedIn.
func (s *Service) Current() (*client.User, error) {
	userID, ok := s.store.Load(store.KeyUserID)
	if !ok || userID == "" {
		return nil, ErrNotLoggedIn
	}
	email, _ := s.store.Load(store.KeyEmail)
	name, _ := s.store.Load(store.KeyName)
	return &client.User{UserID: userID, Email: email, Name: name}, nil
}

// Logout wipes the whole session store, chat hints included.
func (s *Service) Logout() error {
	if err := s.store.Clear(); err != nil {
		return fmt.Errorf("clear session store: %w", err)
	}
	s.logger.Info("logged out")
	return nil
}
