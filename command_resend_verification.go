package auth

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/goliatone/go-command"
	goerrors "github.com/goliatone/go-errors"
)

const verificationSentMessage = "Verification email sent"

type ResendVerificationMessage struct {
	Email      string                 `json:"email"`
	OnResponse func(*MessageResponse) `json:"-"`
}

func (e ResendVerificationMessage) Type() string { return "user.verify.resend" }

// Validate will run validation rules
func (e ResendVerificationMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Email, validation.Required, is.Email),
	)
}

type ResendVerificationHandler struct {
	service *AccountService
}

var _ command.Commander[ResendVerificationMessage] = (*ResendVerificationHandler)(nil)

func NewResendVerificationHandler(service *AccountService) *ResendVerificationHandler {
	return &ResendVerificationHandler{service: service}
}

func (h *ResendVerificationHandler) Execute(ctx context.Context, event ResendVerificationMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during verification resend")
	default:
		res, err := h.service.ResendVerification(ctx, event)
		if err != nil {
			return err
		}
		if event.OnResponse != nil {
			event.OnResponse(res)
		}
		return nil
	}
}

// ResendVerification mails the stored verification token again. No new
// token is generated so earlier links keep working.
func (s *AccountService) ResendVerification(ctx context.Context, event ResendVerificationMessage) (*MessageResponse, error) {
	if err := event.Validate(); err != nil {
		return nil, NewInvalidInputError(err)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	user, err := s.repo.Users().GetByEmail(ctx, event.Email)
	if err != nil {
		if goerrors.Is(err, ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, NewProcessingError(err, "failed to look up user")
	}

	state := CurrentState(user)
	if _, err := NextState(state, EventResend); err != nil {
		return nil, ErrAlreadyVerified
	}

	if user.VerificationToken == "" {
		return nil, NewProcessingError(
			goerrors.New("verification token missing", goerrors.CategoryInternal),
			"failed to resend verification email",
		)
	}

	msg := NewVerificationEmail(s.config.GetBaseURL(), user.Email, user.VerificationToken)
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.logger.Error("resend failed to send verification email", "email", user.Email, "error", err)
		return nil, NewProcessingError(err, "failed to send verification email")
	}

	s.emit(ctx, ActivityEventVerificationResent, user, state, state, nil)

	return &MessageResponse{Message: verificationSentMessage}, nil
}
