package auth

import (
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeInvalidInput       = "INVALID_INPUT"
	TextCodeEmailInUse         = "EMAIL_IN_USE"
	TextCodeInvalidCreds       = "INVALID_CREDENTIALS"
	TextCodeNotAuthorized      = "NOT_AUTHORIZED"
	TextCodeUserNotFound       = "USER_NOT_FOUND"
	TextCodeAlreadyVerified    = "ALREADY_VERIFIED"
	TextCodeEmptyPassword      = "EMPTY_PASSWORD"
	TextCodeTokenExpired       = "TOKEN_EXPIRED"
	TextCodeTokenMalformed     = "TOKEN_MALFORMED"
	TextCodeProcessingFailure  = "PROCESSING_FAILURE"
	TextCodeAvatarRequired     = "AVATAR_REQUIRED"
	TextCodeInvalidTransition  = "INVALID_ACCOUNT_TRANSITION"
	TextCodeRequestBodyInvalid = "INVALID_REQUEST_BODY"
)

// ErrEmailInUse is returned when signing up with a registered address.
var ErrEmailInUse = goerrors.New("Email in use", goerrors.CategoryConflict).
	WithTextCode(TextCodeEmailInUse).
	WithCode(goerrors.CodeConflict)

// ErrInvalidCredentials is shared by unknown email, unverified account and
// wrong password so callers cannot tell which one failed.
var ErrInvalidCredentials = goerrors.New("Email or password is wrong", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCreds).
	WithCode(goerrors.CodeUnauthorized)

// ErrNotAuthorized is returned by the request authenticator.
var ErrNotAuthorized = goerrors.New("Not authorized", goerrors.CategoryAuth).
	WithTextCode(TextCodeNotAuthorized).
	WithCode(goerrors.CodeUnauthorized)

// ErrUserNotFound is returned for unknown users and verification tokens.
var ErrUserNotFound = goerrors.New("User not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeUserNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrAlreadyVerified is returned when resending to a verified account.
var ErrAlreadyVerified = goerrors.New("Verification has already been passed", goerrors.CategoryBadInput).
	WithTextCode(TextCodeAlreadyVerified).
	WithCode(goerrors.CodeBadRequest)

// ErrNoEmptyString is returned when hashing an empty password.
var ErrNoEmptyString = goerrors.New("password must not be empty", goerrors.CategoryValidation).
	WithTextCode(TextCodeEmptyPassword).
	WithCode(goerrors.CodeBadRequest)

// ErrMismatchedHashAndPassword is returned when a password does not match its hash.
var ErrMismatchedHashAndPassword = goerrors.New("the credentials provided are invalid", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCreds).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenExpired is returned for session tokens past their expiry.
var ErrTokenExpired = goerrors.New("token is expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenMalformed is returned for tokens that cannot be parsed or verified.
var ErrTokenMalformed = goerrors.New("token is malformed", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(goerrors.CodeUnauthorized)

// ErrAvatarRequired is returned when the avatar upload has no file.
var ErrAvatarRequired = goerrors.New("Avatar file is required", goerrors.CategoryBadInput).
	WithTextCode(TextCodeAvatarRequired).
	WithCode(goerrors.CodeBadRequest)

// IsTokenExpiredError reports whether err is an expired session token,
// either our sentinel (wrapped or not) or the jwt parser error.
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	return goerrors.Is(err, ErrTokenExpired) ||
		goerrors.Is(err, jwt.ErrTokenExpired) ||
		hasTextCode(err, TextCodeTokenExpired)
}

// IsMalformedError reports whether err is a token that could not be parsed
// or verified.
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	return goerrors.Is(err, ErrTokenMalformed) ||
		goerrors.Is(err, jwt.ErrTokenMalformed) ||
		hasTextCode(err, TextCodeTokenMalformed)
}

func hasTextCode(err error, code string) bool {
	var richErr *goerrors.Error
	return goerrors.As(err, &richErr) && richErr.TextCode == code
}

// NewInvalidInputError wraps a validator failure so its message reaches the caller.
func NewInvalidInputError(err error) *goerrors.Error {
	msg := "invalid input"
	if err != nil {
		msg = err.Error()
	}

	richErr := goerrors.New(msg, goerrors.CategoryValidation).
		WithTextCode(TextCodeInvalidInput).
		WithCode(goerrors.CodeBadRequest)

	var fields validation.Errors
	if goerrors.As(err, &fields) && len(fields) > 0 {
		meta := make(map[string]any, len(fields))
		for field, ferr := range fields {
			meta[field] = ferr.Error()
		}
		richErr = richErr.WithMetadata(map[string]any{"fields": meta})
	}

	return richErr
}

// NewProcessingError wraps a collaborator failure (store, mailer, resizer,
// filesystem) at the operation boundary.
func NewProcessingError(err error, msg string) *goerrors.Error {
	return goerrors.Wrap(err, goerrors.CategoryInternal, msg).
		WithTextCode(TextCodeProcessingFailure).
		WithCode(goerrors.CodeInternal)
}

// HTTPStatus resolves the status code carried by err. Rich errors without
// an explicit code fall back to their category, anything else is a 500.
func HTTPStatus(err error) int {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return http.StatusInternalServerError
	}

	if richErr.Code > 0 {
		return richErr.Code
	}

	switch richErr.Category {
	case goerrors.CategoryValidation, goerrors.CategoryBadInput:
		return http.StatusBadRequest
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
