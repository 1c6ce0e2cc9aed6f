package auth

import (
	"context"
	"crypto/subtle"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// DefaultOperationTimeout bounds every workflow operation.
const DefaultOperationTimeout = 10 * time.Second

// AccountService runs the signup, verification, session and avatar workflows.
type AccountService struct {
	repo          RepositoryManager
	config        Config
	hasher        PasswordAuthenticator
	tokenService  TokenService
	verifications VerificationTokenGenerator
	mailer        Mailer
	avatars       *AvatarProcessor
	logger        Logger
	activitySink  ActivitySink
	timeout       time.Duration
	now           func() time.Time
	dummy         *dummyHash
}

// NewAccountService returns a new AccountService
func NewAccountService(repo RepositoryManager, opts Config) *AccountService {
	logger := defLogger{}
	return &AccountService{
		repo:          repo,
		config:        opts,
		hasher:        NewBcryptHasher(opts.GetPasswordHashCost()),
		tokenService:  NewTokenServiceFromConfig(opts, logger),
		verifications: UUIDTokenGenerator{},
		mailer:        noopMailer{logger: logger},
		logger:        logger,
		activitySink:  noopActivitySink{},
		timeout:       DefaultOperationTimeout,
		now:           time.Now,
		dummy:         &dummyHash{},
	}
}

func (s *AccountService) WithLogger(logger Logger) *AccountService {
	s.logger = normalizeLogger(logger)
	if ts, ok := s.tokenService.(*TokenServiceImpl); ok {
		ts.logger = s.logger
	}
	if m, ok := s.mailer.(noopMailer); ok {
		m.logger = s.logger
		s.mailer = m
	}
	return s
}

// WithMailer sets the sender used for verification emails.
func (s *AccountService) WithMailer(mailer Mailer) *AccountService {
	if mailer != nil {
		s.mailer = mailer
	}
	return s
}

// WithPasswordAuthenticator replaces the default bcrypt hasher.
func (s *AccountService) WithPasswordAuthenticator(hasher PasswordAuthenticator) *AccountService {
	if hasher != nil {
		s.hasher = hasher
		s.dummy = &dummyHash{}
	}
	return s
}

// WithTokenService replaces the session token issuer.
func (s *AccountService) WithTokenService(ts TokenService) *AccountService {
	if ts != nil {
		s.tokenService = ts
	}
	return s
}

// WithVerificationTokenGenerator replaces the verification token source.
func (s *AccountService) WithVerificationTokenGenerator(gen VerificationTokenGenerator) *AccountService {
	if gen != nil {
		s.verifications = gen
	}
	return s
}

// WithAvatarProcessor enables avatar uploads.
func (s *AccountService) WithAvatarProcessor(p *AvatarProcessor) *AccountService {
	s.avatars = p
	return s
}

// WithActivitySink configures an ActivitySink for emitting account events.
func (s *AccountService) WithActivitySink(sink ActivitySink) *AccountService {
	s.activitySink = normalizeActivitySink(sink)
	return s
}

// WithTimeout overrides DefaultOperationTimeout.
func (s *AccountService) WithTimeout(timeout time.Duration) *AccountService {
	if timeout > 0 {
		s.timeout = timeout
	}
	return s
}

// WithClock injects the clock used for activity timestamps.
func (s *AccountService) WithClock(now func() time.Time) *AccountService {
	if now != nil {
		s.now = now
	}
	return s
}

// TokenService returns the TokenService instance used by this service
func (s *AccountService) TokenService() TokenService {
	return s.tokenService
}

// Authenticate resolves a bearer header into the signed in user. The token
// must verify and must still be the one stored for the user, so a signout
// revokes it before it expires.
func (s *AccountService) Authenticate(ctx context.Context, header string) (*User, error) {
	token, ok := parseBearer(header, s.authScheme())
	if !ok {
		return nil, ErrNotAuthorized
	}

	claims, err := s.tokenService.Validate(token)
	if err != nil {
		s.logger.Debug("authenticate token rejected", "error", err)
		return nil, ErrNotAuthorized
	}

	id, err := uuid.Parse(claims.UserID())
	if err != nil {
		return nil, ErrNotAuthorized
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	user, err := s.repo.Users().GetByID(ctx, id.String())
	if err != nil {
		if goerrors.Is(err, ErrUserNotFound) {
			return nil, ErrNotAuthorized
		}
		s.logger.Error("authenticate failed to load user", "error", err)
		return nil, NewProcessingError(err, "failed to load user")
	}

	if !user.HasSession() || subtle.ConstantTimeCompare([]byte(user.Token), []byte(token)) != 1 {
		return nil, ErrNotAuthorized
	}

	return user, nil
}

func (s *AccountService) authScheme() string {
	if scheme := strings.TrimSpace(s.config.GetAuthScheme()); scheme != "" {
		return scheme
	}
	return "Bearer"
}

func (s *AccountService) defaultSubscription() Subscription {
	if sub := s.config.GetDefaultSubscription(); IsSubscription(sub) {
		return sub
	}
	return SubscriptionStarter
}

func (s *AccountService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

func (s *AccountService) emit(ctx context.Context, eventType ActivityEventType, user *User, from, to AccountState, metadata map[string]any) {
	event := ActivityEvent{
		EventType:  eventType,
		FromState:  from,
		ToState:    to,
		Metadata:   metadata,
		OccurredAt: s.now(),
	}
	if user != nil {
		event.UserID = user.ID.String()
		event.Email = user.Email
	}

	if err := s.activitySink.Record(ctx, event); err != nil {
		s.logger.Warn("activity sink failed", "event", string(eventType), "error", err)
	}
}

func parseBearer(header, scheme string) (string, bool) {
	header = strings.TrimSpace(header)
	prefix, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(prefix, scheme) {
		return "", false
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}
	return token, true
}

type noopMailer struct {
	logger Logger
}

func (m noopMailer) Send(_ context.Context, msg Message) error {
	normalizeLogger(m.logger).Warn("no mailer configured, dropping message", "to", msg.To, "subject", msg.Subject)
	return nil
}
