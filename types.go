package auth

import (
	"context"
	"fmt"
	"time"
)

// Logger is the structured logger used across the package. Arguments
// after the message are key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config holds auth options
type Config interface {
	GetSigningKey() string
	GetIssuer() string
	GetTokenExpiration() time.Duration
	GetBaseURL() string
	GetDefaultSubscription() string
	GetPasswordHashCost() int
	GetAvatarSize() int
	GetContextKey() string
	GetAuthScheme() string
}

// PasswordAuthenticator authenticates passwords
type PasswordAuthenticator interface {
	HashPassword(password string) (string, error)
	ComparePasswordAndHash(password, hash string) error
}

// VerificationTokenGenerator creates single use opaque tokens used to
// confirm ownership of an email address.
type VerificationTokenGenerator interface {
	Generate() (string, error)
}

// Message is an outgoing email.
type Message struct {
	To      string
	Subject string
	HTML    string
}

// Mailer delivers notification emails.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// ImageResizer normalizes an image file in place.
type ImageResizer interface {
	Resize(ctx context.Context, path string, width, height int) error
}

// AvatarStore moves a processed avatar out of temporary storage and
// returns the public reference for it. Remove deletes a reference
// returned by Store.
type AvatarStore interface {
	Store(ctx context.Context, tmpPath, filename string) (string, error)
	Remove(ctx context.Context, ref string) error
}

type defLogger struct{}

func (d defLogger) Debug(msg string, args ...any) {
	d.print("DBG", msg, args...)
}

func (d defLogger) Info(msg string, args ...any) {
	d.print("INF", msg, args...)
}

func (d defLogger) Warn(msg string, args ...any) {
	d.print("WRN", msg, args...)
}

func (d defLogger) Error(msg string, args ...any) {
	d.print("ERR", msg, args...)
}

func (defLogger) print(level, msg string, args ...any) {
	line := append([]any{"[" + level + "] AUTH", msg}, args...)
	fmt.Println(line...)
}

func normalizeLogger(l Logger) Logger {
	if l == nil {
		return defLogger{}
	}
	return l
}
