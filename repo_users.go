package auth

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Users is the credential store
type Users interface {
	repository.Repository[*User]

	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error)
	GetByVerificationToken(ctx context.Context, token string) (*User, error)
	GetByVerificationTokenTx(ctx context.Context, tx bun.IDB, token string) (*User, error)

	MarkVerified(ctx context.Context, id uuid.UUID, token string) error
	MarkVerifiedTx(ctx context.Context, tx bun.IDB, id uuid.UUID, token string) error
	SetToken(ctx context.Context, id uuid.UUID, token string) error
	SetTokenTx(ctx context.Context, tx bun.IDB, id uuid.UUID, token string) error
	SetAvatar(ctx context.Context, id uuid.UUID, avatarURL string) error
	SetAvatarTx(ctx context.Context, tx bun.IDB, id uuid.UUID, avatarURL string) error
}

type users struct {
	repository.Repository[*User]
	db                  *bun.DB
	defaultSubscription Subscription
	now                 func() time.Time
}

var (
	_ Users                        = (*users)(nil)
	_ repository.Repository[*User] = (*users)(nil)
)

type UsersOption func(*users)

// WithDefaultSubscription sets the tier assigned to users created without one.
func WithDefaultSubscription(sub Subscription) UsersOption {
	return func(u *users) {
		if IsSubscription(sub) {
			u.defaultSubscription = sub
		}
	}
}

// WithUsersClock injects the clock used for timestamps.
func WithUsersClock(now func() time.Time) UsersOption {
	return func(u *users) {
		if now != nil {
			u.now = now
		}
	}
}

func NewUsersRepository(db *bun.DB, opts ...UsersOption) Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	repoUsers := &users{
		Repository:          repo,
		db:                  db,
		defaultSubscription: SubscriptionStarter,
		now:                 time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(repoUsers)
		}
	}

	return repoUsers
}

func (a *users) GetByID(ctx context.Context, id string, criteria ...repository.SelectCriteria) (*User, error) {
	return a.GetByIDTx(ctx, a.db, id, criteria...)
}

func (a *users) GetByIDTx(ctx context.Context, tx bun.IDB, id string, criteria ...repository.SelectCriteria) (*User, error) {
	uid, err := uuid.Parse(id)
	if err != nil || uid == uuid.Nil {
		return nil, ErrUserNotFound
	}

	record, err := a.Repository.GetByIDTx(ctx, tx, uid.String(), criteria...)
	if err != nil {
		return nil, queryError(err, "id", id)
	}
	return record, nil
}

func (a *users) GetByEmail(ctx context.Context, email string) (*User, error) {
	return a.GetByEmailTx(ctx, a.db, email)
}

func (a *users) GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, ErrUserNotFound
	}

	record, err := a.Repository.GetByIdentifierTx(ctx, tx, email)
	if err != nil {
		return nil, queryError(err, "email", email)
	}
	return record, nil
}

func (a *users) GetByVerificationToken(ctx context.Context, token string) (*User, error) {
	return a.GetByVerificationTokenTx(ctx, a.db, token)
}

func (a *users) GetByVerificationTokenTx(ctx context.Context, tx bun.IDB, token string) (*User, error) {
	// a cleared token is stored as the empty string and must never match
	if strings.TrimSpace(token) == "" {
		return nil, ErrUserNotFound
	}

	record, err := a.Repository.GetTx(ctx, tx, repository.SelectBy("verification_token", "=", token))
	if err != nil {
		return nil, queryError(err, "verification_token", token)
	}
	return record, nil
}

func (a *users) Create(ctx context.Context, record *User) (*User, error) {
	return a.CreateTx(ctx, a.db, record)
}

// CreateTx applies the account defaults before inserting. A unique index
// violation on email is reported as ErrEmailInUse.
func (a *users) CreateTx(ctx context.Context, tx bun.IDB, record *User) (*User, error) {
	if record == nil {
		return nil, goerrors.New("user record is required", goerrors.CategoryBadInput)
	}

	a.prepareUserDefaults(record)

	created, err := a.Repository.CreateTx(ctx, tx, record)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrEmailInUse
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create user")
	}

	return created, nil
}

func (a *users) MarkVerified(ctx context.Context, id uuid.UUID, token string) error {
	return a.MarkVerifiedTx(ctx, a.db, id, token)
}

// MarkVerifiedTx flips the verify flag and clears the token in a single
// statement. The token must still match so a concurrent verification of
// the same token can only succeed once.
func (a *users) MarkVerifiedTx(ctx context.Context, tx bun.IDB, id uuid.UUID, token string) error {
	if strings.TrimSpace(token) == "" {
		return ErrUserNotFound
	}

	_, err := a.Repository.UpdateTx(ctx, tx, &User{ID: id},
		repository.UpdateSetColumn("verify", true),
		repository.UpdateSetColumn("verification_token", ""),
		repository.UpdateSetColumn("updated_at", a.now()),
		repository.UpdateBy("verification_token", "=", token),
	)
	if err != nil {
		return updateError(err, "verify", id)
	}

	return nil
}

func (a *users) SetToken(ctx context.Context, id uuid.UUID, token string) error {
	return a.SetTokenTx(ctx, a.db, id, token)
}

func (a *users) SetTokenTx(ctx context.Context, tx bun.IDB, id uuid.UUID, token string) error {
	return a.updateColumn(ctx, tx, id, "token", token)
}

func (a *users) SetAvatar(ctx context.Context, id uuid.UUID, avatarURL string) error {
	return a.SetAvatarTx(ctx, a.db, id, avatarURL)
}

func (a *users) SetAvatarTx(ctx context.Context, tx bun.IDB, id uuid.UUID, avatarURL string) error {
	return a.updateColumn(ctx, tx, id, "avatar_url", avatarURL)
}

func (a *users) updateColumn(ctx context.Context, tx bun.IDB, id uuid.UUID, column string, value any) error {
	if id == uuid.Nil {
		return ErrUserNotFound
	}

	_, err := a.Repository.UpdateTx(ctx, tx, &User{ID: id},
		repository.UpdateSetColumn(column, value),
		repository.UpdateSetColumn("updated_at", a.now()),
	)
	if err != nil {
		return updateError(err, column, id)
	}

	return nil
}

func (a *users) prepareUserDefaults(record *User) {
	record.Email = NormalizeEmail(record.Email)

	if !IsSubscription(record.Subscription) {
		record.Subscription = a.defaultSubscription
	}

	now := a.now()
	if record.CreatedAt == nil {
		record.CreatedAt = &now
	}
	if record.UpdatedAt == nil {
		record.UpdatedAt = &now
	}
}

func queryError(err error, column string, value any) error {
	if repository.IsRecordNotFound(err) {
		return ErrUserNotFound
	}
	return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to query user").
		WithMetadata(map[string]any{column: value})
}

func updateError(err error, column string, id uuid.UUID) error {
	if repository.IsRecordNotFound(err) {
		return ErrUserNotFound
	}

	return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update user").
		WithMetadata(map[string]any{"column": column, "id": id.String()})
}

// isUniqueViolation recognizes unique index failures from sqlite and postgres.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "sqlstate 23505")
}
