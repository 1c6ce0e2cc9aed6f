package auth

import (
	"context"
	"strings"

	"github.com/goliatone/go-command"
	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

const verificationSuccessMessage = "Verification successful"

type VerifyMessage struct {
	Token      string                 `json:"verificationToken"`
	OnResponse func(*MessageResponse) `json:"-"`
}

func (e VerifyMessage) Type() string { return "user.verify" }

// Validate rejects an empty token the same way as an unknown one.
func (e VerifyMessage) Validate() error {
	if strings.TrimSpace(e.Token) == "" {
		return ErrUserNotFound
	}
	return nil
}

type VerifyHandler struct {
	service *AccountService
}

var _ command.Commander[VerifyMessage] = (*VerifyHandler)(nil)

func NewVerifyHandler(service *AccountService) *VerifyHandler {
	return &VerifyHandler{service: service}
}

func (h *VerifyHandler) Execute(ctx context.Context, event VerifyMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during email verification")
	default:
		res, err := h.service.Verify(ctx, event)
		if err != nil {
			return err
		}
		if event.OnResponse != nil {
			event.OnResponse(res)
		}
		return nil
	}
}

// Verify consumes a verification token. Tokens are single use: once the
// account is verified the token is cleared and any later attempt with it
// reports ErrUserNotFound.
func (s *AccountService) Verify(ctx context.Context, event VerifyMessage) (*MessageResponse, error) {
	if err := event.Validate(); err != nil {
		return nil, err
	}
	token := strings.TrimSpace(event.Token)

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var (
		user     *User
		from, to AccountState
	)

	err := s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		user, err = s.repo.Users().GetByVerificationTokenTx(ctx, tx, token)
		if err != nil {
			return err
		}

		from = CurrentState(user)
		if to, err = NextState(from, EventVerify); err != nil {
			return ErrUserNotFound
		}

		return s.repo.Users().MarkVerifiedTx(ctx, tx, user.ID, token)
	})
	if err != nil {
		if goerrors.Is(err, ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, NewProcessingError(err, "failed to verify user")
	}

	s.emit(ctx, ActivityEventVerified, user, from, to, nil)

	return &MessageResponse{Message: verificationSuccessMessage}, nil
}
