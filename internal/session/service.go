package session

import (
	"context"
	"errors"
	"strings"

	"github.com/angelmondragon/storefront-checkout/internal/keylock"
	"github.com/angelmondragon/storefront-checkout/pkg/auth"
	"github.com/angelmondragon/storefront-checkout/pkg/config"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
)

// Service manages the auth state persisted for each storefront session.
// Writes for one session are serialized.
type Service struct {
	store Store
	jwt   config.JWTConfig
	locks *keylock.Registry
	logg  *logger.Logger
}

func NewService(store Store, jwtCfg config.JWTConfig, logg *logger.Logger) (*Service, error) {
	if store == nil {
		return nil, errors.New("auth state store required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Service{store: store, jwt: jwtCfg, locks: keylock.New(), logg: logg}, nil
}

func (s *Service) locked(ctx context.Context, sessionKey string, fn func() error) error {
	unlock, err := s.locks.Lock(ctx, sessionKey)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeCanceled, err, "session lock not acquired")
	}
	defer unlock()
	return fn()
}

// Get returns the stored state. A stored token that no longer verifies is
// cleared and the session reported as anonymous.
func (s *Service) Get(ctx context.Context, sessionKey string) (AuthState, error) {
	state, found, err := s.store.Load(ctx, sessionKey)
	if err != nil {
		return AuthState{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load auth state")
	}
	if !found {
		return AuthState{}, nil
	}
	if state.IsAuthenticated {
		if _, err := auth.ParseAccessToken(s.jwt, state.Token); err != nil {
			s.logg.Warn(s.logg.WithFields(ctx, map[string]any{"session_id": sessionKey, "error": err.Error()}), "session.token_expired")
			if clearErr := s.ClearToken(ctx, sessionKey, state.Token); clearErr != nil {
				return AuthState{}, clearErr
			}
			state.Token = ""
			state.IsAuthenticated = false
		}
	}
	return state, nil
}

// SignIn verifies token and stores it with the user it describes.
func (s *Service) SignIn(ctx context.Context, sessionKey, token string) (AuthState, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return AuthState{}, pkgerrors.New(pkgerrors.CodeValidation, "token is required").WithDetails(map[string]string{"token": "is required"})
	}
	claims, err := auth.ParseAccessToken(s.jwt, token)
	if err != nil {
		return AuthState{}, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid access token")
	}
	state := AuthState{
		User: &User{
			ID:    claims.UserID(),
			Email: claims.Email,
			Name:  claims.Name,
			Role:  claims.Role,
		},
		Token:           token,
		IsAuthenticated: true,
	}
	err = s.locked(ctx, sessionKey, func() error {
		if err := s.store.Save(ctx, sessionKey, state); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save auth state")
		}
		return nil
	})
	if err != nil {
		return AuthState{}, err
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{"session_id": sessionKey, "user_id": state.User.ID}), "session.signed_in")
	return state, nil
}

// SignOut drops the whole auth blob.
func (s *Service) SignOut(ctx context.Context, sessionKey string) error {
	return s.locked(ctx, sessionKey, func() error {
		if err := s.store.Delete(ctx, sessionKey); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete auth state")
		}
		return nil
	})
}

// Token returns the bearer token of an authenticated session, or "".
func (s *Service) Token(ctx context.Context, sessionKey string) (string, error) {
	state, found, err := s.store.Load(ctx, sessionKey)
	if err != nil || !found || !state.IsAuthenticated {
		return "", err
	}
	return state.Token, nil
}

// ClearToken forgets token and marks the session anonymous. A different
// stored token belongs to a later sign-in and is left alone. The user profile
// stays so the login form can be prefilled.
func (s *Service) ClearToken(ctx context.Context, sessionKey, token string) error {
	return s.locked(ctx, sessionKey, func() error {
		state, found, err := s.store.Load(ctx, sessionKey)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load auth state")
		}
		if !found || state.Token != token {
			return nil
		}
		state.Token = ""
		state.IsAuthenticated = false
		if err := s.store.Save(ctx, sessionKey, state); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save auth state")
		}
		return nil
	})
}
