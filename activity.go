package auth

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventSignup             ActivityEventType = "auth.signup"
	ActivityEventVerified           ActivityEventType = "auth.email.verified"
	ActivityEventVerificationResent ActivityEventType = "auth.email.verification_resent"
	ActivityEventLoginSuccess       ActivityEventType = "auth.login.success"
	ActivityEventLoginFailure       ActivityEventType = "auth.login.failure"
	ActivityEventLogout             ActivityEventType = "auth.logout"
	ActivityEventAvatarUpdated      ActivityEventType = "auth.avatar.updated"
)

// ActivityEvent captures audit-friendly information about an action.
type ActivityEvent struct {
	EventType  ActivityEventType
	UserID     string
	Email      string
	FromState  AccountState
	ToState    AccountState
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

// NewLoggerActivitySink writes every event to logger at info level.
func NewLoggerActivitySink(logger Logger) ActivitySink {
	logger = normalizeLogger(logger)
	return ActivitySinkFunc(func(ctx context.Context, event ActivityEvent) error {
		logger.Info("activity",
			"event", string(event.EventType),
			"user_id", event.UserID,
			"email", event.Email,
			"from", string(event.FromState),
			"to", string(event.ToState),
			"at", event.OccurredAt.Format(time.RFC3339),
		)
		return nil
	})
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}
