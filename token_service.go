package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
)

// DefaultTokenExpiration is the session lifetime used when none is configured.
const DefaultTokenExpiration = 23 * time.Hour

// TokenService issues and validates session tokens
type TokenService interface {
	Generate(userID string) (string, time.Time, error)
	SignClaims(claims *JWTClaims) (string, error)
	Validate(tokenString string) (AuthClaims, error)
}

// TokenServiceImpl implements the TokenService interface
type TokenServiceImpl struct {
	signingKey      []byte
	tokenExpiration time.Duration
	issuer          string
	logger          Logger
	now             func() time.Time
}

// TokenServiceOption customizes the token service.
type TokenServiceOption func(*TokenServiceImpl)

// WithTokenClock injects the clock used for iat/exp (useful for tests).
func WithTokenClock(now func() time.Time) TokenServiceOption {
	return func(ts *TokenServiceImpl) {
		if now != nil {
			ts.now = now
		}
	}
}

// NewTokenService creates a new TokenService instance
func NewTokenService(signingKey []byte, tokenExpiration time.Duration, issuer string, logger Logger, opts ...TokenServiceOption) *TokenServiceImpl {
	if tokenExpiration <= 0 {
		tokenExpiration = DefaultTokenExpiration
	}

	ts := &TokenServiceImpl{
		signingKey:      signingKey,
		tokenExpiration: tokenExpiration,
		issuer:          issuer,
		logger:          normalizeLogger(logger),
		now:             time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(ts)
		}
	}

	return ts
}

// NewTokenServiceFromConfig builds a TokenService from the auth Config.
func NewTokenServiceFromConfig(cfg Config, logger Logger) *TokenServiceImpl {
	return NewTokenService(
		[]byte(cfg.GetSigningKey()),
		cfg.GetTokenExpiration(),
		cfg.GetIssuer(),
		logger,
	)
}

// Generate creates a signed token carrying userID, returning its expiry.
func (ts *TokenServiceImpl) Generate(userID string) (string, time.Time, error) {
	if userID == "" {
		return "", time.Time{}, goerrors.New("user id is required", goerrors.CategoryBadInput)
	}

	now := ts.now()
	expiresAt := now.Add(ts.tokenExpiration)

	claims := &JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		UID: userID,
	}

	ensureTokenID(&claims.RegisteredClaims)

	token, err := ts.SignClaims(claims)
	if err != nil {
		return "", time.Time{}, err
	}

	return token, expiresAt, nil
}

// SignClaims signs arbitrary JWT claims using the configured signing key.
func (ts *TokenServiceImpl) SignClaims(claims *JWTClaims) (string, error) {
	if claims == nil {
		return "", goerrors.New("claims must not be nil", goerrors.CategoryInternal)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedString, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign JWT")
	}

	return signedString, nil
}

// Validate parses and validates a token string, returning structured claims
func (ts *TokenServiceImpl) Validate(tokenString string) (AuthClaims, error) {
	parserOptions := []jwt.ParserOption{
		jwt.WithTimeFunc(ts.now),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	}
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Error("token service validate encountered unexpected signing method", "alg", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.signingKey, nil
	}, parserOptions...)

	if err != nil {
		if goerrors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenMalformed
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid || claims.UserID() == "" {
		ts.logger.Error("token service could not decode claims")
		return nil, ErrTokenMalformed
	}

	return claims, nil
}
