package auth

import (
	"fmt"
	"html"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// VerificationPath is the route prefix embedded in verification links.
const VerificationPath = "/api/users/verify/"

// UUIDTokenGenerator produces random v4 UUIDs without dashes.
type UUIDTokenGenerator struct{}

var _ VerificationTokenGenerator = UUIDTokenGenerator{}

// Generate returns a new opaque verification token.
func (UUIDTokenGenerator) Generate() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return strings.ReplaceAll(id.String(), "-", ""), nil
}

// VerificationTokenGeneratorFunc adapts a function into a VerificationTokenGenerator.
type VerificationTokenGeneratorFunc func() (string, error)

// Generate satisfies VerificationTokenGenerator.
func (f VerificationTokenGeneratorFunc) Generate() (string, error) {
	return f()
}

// VerificationLink builds the public link that consumes token.
func VerificationLink(baseURL, token string) string {
	return strings.TrimRight(baseURL, "/") + VerificationPath + url.PathEscape(token)
}

// NewVerificationEmail renders the verification message for email.
func NewVerificationEmail(baseURL, email, token string) Message {
	link := html.EscapeString(VerificationLink(baseURL, token))
	return Message{
		To:      email,
		Subject: "Verify email",
		HTML:    fmt.Sprintf(`<a target="_blank" href="%s">Click to verify email</a>`, link),
	}
}
