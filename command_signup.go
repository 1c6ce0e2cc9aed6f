package auth

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/goliatone/go-command"
	goerrors "github.com/goliatone/go-errors"
)

// MinPasswordLength is the shortest password accepted at signup.
const MinPasswordLength = 6

type SignupMessage struct {
	Email        string                `json:"email"`
	Password     string                `json:"password"`
	Subscription string                `json:"subscription,omitempty"`
	Extra        map[string]any        `json:"-"`
	OnResponse   func(*SignupResponse) `json:"-"`
}

func (e SignupMessage) Type() string { return "user.signup" }

// Validate will run validation rules
func (e SignupMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Email, validation.Required, is.Email),
		validation.Field(&e.Password, validation.Required, validation.Length(MinPasswordLength, 0)),
		validation.Field(&e.Subscription, validation.In(subscriptionValues()...)),
	)
}

type SignupHandler struct {
	service *AccountService
}

var _ command.Commander[SignupMessage] = (*SignupHandler)(nil)

func NewSignupHandler(service *AccountService) *SignupHandler {
	return &SignupHandler{service: service}
}

func (h *SignupHandler) Execute(ctx context.Context, event SignupMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during signup")
	default:
		res, err := h.service.Signup(ctx, event)
		if err != nil {
			return err
		}
		if event.OnResponse != nil {
			event.OnResponse(res)
		}
		return nil
	}
}

// Signup registers an unverified user and mails the verification link.
// A mail failure leaves the user in place so the address can be confirmed
// later through ResendVerification.
func (s *AccountService) Signup(ctx context.Context, event SignupMessage) (*SignupResponse, error) {
	if err := event.Validate(); err != nil {
		return nil, NewInvalidInputError(err)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	email := NormalizeEmail(event.Email)

	existing, err := s.repo.Users().GetByEmail(ctx, email)
	switch {
	case err == nil && existing != nil:
		return nil, ErrEmailInUse
	case err != nil && !goerrors.Is(err, ErrUserNotFound):
		return nil, NewProcessingError(err, "failed to look up user")
	}

	hash, err := s.hasher.HashPassword(event.Password)
	if err != nil {
		return nil, NewProcessingError(err, "failed to hash password")
	}

	verificationToken, err := s.verifications.Generate()
	if err != nil {
		return nil, NewProcessingError(err, "failed to generate verification token")
	}

	subscription := event.Subscription
	if subscription == "" {
		subscription = s.defaultSubscription()
	}

	user := &User{
		Email:             email,
		PasswordHash:      hash,
		Subscription:      subscription,
		AvatarURL:         GravatarURL(email),
		VerificationToken: verificationToken,
	}
	for k, v := range event.Extra {
		user.AddMetadata(k, v)
	}

	if user, err = s.repo.Users().Create(ctx, user); err != nil {
		if goerrors.Is(err, ErrEmailInUse) {
			return nil, ErrEmailInUse
		}
		return nil, NewProcessingError(err, "failed to create user")
	}

	s.emit(ctx, ActivityEventSignup, user, "", StateUnverified, nil)

	msg := NewVerificationEmail(s.config.GetBaseURL(), user.Email, verificationToken)
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.logger.Error("signup failed to send verification email", "email", user.Email, "error", err)
		return nil, NewProcessingError(err, "failed to send verification email")
	}

	return &SignupResponse{User: NewUserResponse(user)}, nil
}

func subscriptionValues() []any {
	out := make([]any, len(Subscriptions))
	for i, sub := range Subscriptions {
		out[i] = sub
	}
	return out
}
