package auth

import (
	"context"
	"sync"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/goliatone/go-command"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

type SigninMessage struct {
	Email      string                `json:"email"`
	Password   string                `json:"password"`
	OnResponse func(*SigninResponse) `json:"-"`
}

func (e SigninMessage) Type() string { return "user.signin" }

// Validate will run validation rules
func (e SigninMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Email, validation.Required, is.Email),
		validation.Field(&e.Password, validation.Required),
	)
}

type SigninHandler struct {
	service *AccountService
}

var _ command.Commander[SigninMessage] = (*SigninHandler)(nil)

func NewSigninHandler(service *AccountService) *SigninHandler {
	return &SigninHandler{service: service}
}

func (h *SigninHandler) Execute(ctx context.Context, event SigninMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during signin")
	default:
		res, err := h.service.Signin(ctx, event)
		if err != nil {
			return err
		}
		if event.OnResponse != nil {
			event.OnResponse(res)
		}
		return nil
	}
}

// Signin checks credentials and stores a fresh session token, replacing
// any previous one. Unknown email, unverified account and wrong password
// all fail with ErrInvalidCredentials.
func (s *AccountService) Signin(ctx context.Context, event SigninMessage) (*SigninResponse, error) {
	if err := event.Validate(); err != nil {
		return nil, NewInvalidInputError(err)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	user, err := s.repo.Users().GetByEmail(ctx, event.Email)
	if err != nil {
		if goerrors.Is(err, ErrUserNotFound) {
			s.compareDummyHash(event.Password)
			s.emit(ctx, ActivityEventLoginFailure, nil, "", "", map[string]any{
				"email":  NormalizeEmail(event.Email),
				"reason": "unknown_email",
			})
			return nil, ErrInvalidCredentials
		}
		return nil, NewProcessingError(err, "failed to look up user")
	}

	from := CurrentState(user)
	to, err := NextState(from, EventSignin)
	if err != nil {
		s.compareDummyHash(event.Password)
		s.emit(ctx, ActivityEventLoginFailure, user, from, from, map[string]any{"reason": "unverified"})
		return nil, ErrInvalidCredentials
	}

	if err := s.hasher.ComparePasswordAndHash(event.Password, user.PasswordHash); err != nil {
		s.emit(ctx, ActivityEventLoginFailure, user, from, from, map[string]any{"reason": "password_mismatch"})
		return nil, ErrInvalidCredentials
	}

	token, expiresAt, err := s.tokenService.Generate(user.ID.String())
	if err != nil {
		return nil, NewProcessingError(err, "failed to issue session token")
	}

	if err := s.repo.Users().SetToken(ctx, user.ID, token); err != nil {
		return nil, NewProcessingError(err, "failed to store session token")
	}
	user.Token = token

	s.emit(ctx, ActivityEventLoginSuccess, user, from, to, map[string]any{
		"expires_at": expiresAt,
	})

	return &SigninResponse{
		Token: token,
		User:  NewUserResponse(user),
	}, nil
}

// dummyHash is compared on signin failures that never reach the stored
// hash, so every rejected signin pays for one hash comparison.
type dummyHash struct {
	once sync.Once
	hash string
}

func (s *AccountService) compareDummyHash(password string) {
	s.dummy.once.Do(func() {
		hash, err := s.hasher.HashPassword(uuid.NewString())
		if err != nil {
			s.logger.Error("failed to build dummy password hash", "error", err)
			return
		}
		s.dummy.hash = hash
	})
	if s.dummy.hash != "" {
		_ = s.hasher.ComparePasswordAndHash(password, s.dummy.hash)
	}
}
