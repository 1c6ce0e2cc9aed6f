package auth

import (
	"context"

	"github.com/goliatone/go-command"
	goerrors "github.com/goliatone/go-errors"
)

type SignoutMessage struct {
	User *User
}

func (e SignoutMessage) Type() string { return "user.signout" }

func (e SignoutMessage) Validate() error {
	if e.User == nil {
		return ErrNotAuthorized
	}
	return nil
}

type SignoutHandler struct {
	service *AccountService
}

var _ command.Commander[SignoutMessage] = (*SignoutHandler)(nil)

func NewSignoutHandler(service *AccountService) *SignoutHandler {
	return &SignoutHandler{service: service}
}

func (h *SignoutHandler) Execute(ctx context.Context, event SignoutMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during signout")
	default:
		return h.service.Signout(ctx, event.User)
	}
}

// Current returns the public view of an authenticated user.
func (s *AccountService) Current(_ context.Context, user *User) (*UserResponse, error) {
	if user == nil {
		return nil, ErrNotAuthorized
	}
	res := NewUserResponse(user)
	return &res, nil
}

// Signout clears the stored session token. Tokens issued before this call
// stop authenticating even though they have not expired.
func (s *AccountService) Signout(ctx context.Context, user *User) error {
	if err := (SignoutMessage{User: user}).Validate(); err != nil {
		return err
	}

	from := CurrentState(user)
	to, err := NextState(from, EventSignout)
	if err != nil {
		return ErrNotAuthorized
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.repo.Users().SetToken(ctx, user.ID, ""); err != nil {
		if goerrors.Is(err, ErrUserNotFound) {
			return ErrNotAuthorized
		}
		return NewProcessingError(err, "failed to clear session token")
	}
	user.Token = ""

	s.emit(ctx, ActivityEventLogout, user, from, to, nil)

	return nil
}
