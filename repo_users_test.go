package auth_test

import (
	"context"
	"testing"
	"time"

	auth "github.com/goliatone/go-userauth"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestUser(email, verificationToken string) *auth.User {
	return &auth.User{
		Email:             email,
		PasswordHash:      "hash",
		VerificationToken: verificationToken,
	}
}

func TestUsers_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := auth.NewUsersRepository(newTestDB(t),
		auth.WithDefaultSubscription(auth.SubscriptionPro),
		auth.WithUsersClock(func() time.Time { return now }),
	)

	created, err := repo.Create(ctx, newTestUser(" Ann@Example.com ", "tok-1"))
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, created.ID)
	assert.Equal(t, "ann@example.com", created.Email)
	assert.Equal(t, auth.SubscriptionPro, created.Subscription)
	assert.False(t, created.Verified)

	byID, err := repo.GetByID(ctx, created.ID.String())
	require.NoError(t, err)
	assert.Equal(t, created.Email, byID.Email)
	assert.Equal(t, "tok-1", byID.VerificationToken)
	assert.Equal(t, auth.SubscriptionPro, byID.Subscription)

	byEmail, err := repo.GetByEmail(ctx, "ANN@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byEmail.ID)

	byIdentifier, err := repo.GetByIdentifier(ctx, created.ID.String())
	require.NoError(t, err)
	assert.Equal(t, created.Email, byIdentifier.Email)

	byToken, err := repo.GetByVerificationToken(ctx, "tok-1")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byToken.ID)
}

func TestUsers_NotFound(t *testing.T) {
	ctx := context.Background()
	repo := auth.NewUsersRepository(newTestDB(t))

	_, err := repo.GetByID(ctx, uuid.New().String())
	assert.ErrorIs(t, err, auth.ErrUserNotFound)

	_, err = repo.GetByID(ctx, uuid.Nil.String())
	assert.ErrorIs(t, err, auth.ErrUserNotFound)

	_, err = repo.GetByID(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, auth.ErrUserNotFound)

	_, err = repo.GetByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, auth.ErrUserNotFound)

	_, err = repo.GetByVerificationToken(ctx, "missing")
	assert.ErrorIs(t, err, auth.ErrUserNotFound)
}

func TestUsers_EmptyVerificationTokenNeverMatches(t *testing.T) {
	ctx := context.Background()
	repo := auth.NewUsersRepository(newTestDB(t))

	// a verified user has an empty token column
	_, err := repo.Create(ctx, newTestUser("a@example.com", ""))
	require.NoError(t, err)

	_, err = repo.GetByVerificationToken(ctx, "")
	assert.ErrorIs(t, err, auth.ErrUserNotFound)

	_, err = repo.GetByVerificationToken(ctx, "   ")
	assert.ErrorIs(t, err, auth.ErrUserNotFound)
}

func TestUsers_UniqueEmail(t *testing.T) {
	ctx := context.Background()
	repo := auth.NewUsersRepository(newTestDB(t))

	_, err := repo.Create(ctx, newTestUser("dup@example.com", "a"))
	require.NoError(t, err)

	_, err = repo.Create(ctx, newTestUser("DUP@example.com", "b"))
	assert.ErrorIs(t, err, auth.ErrEmailInUse)
}

func TestUsers_MarkVerifiedIsSingleUse(t *testing.T) {
	ctx := context.Background()
	repo := auth.NewUsersRepository(newTestDB(t))

	user, err := repo.Create(ctx, newTestUser("v@example.com", "verify-me"))
	require.NoError(t, err)

	assert.ErrorIs(t, repo.MarkVerified(ctx, user.ID, "wrong"), auth.ErrUserNotFound)
	require.NoError(t, repo.MarkVerified(ctx, user.ID, "verify-me"))
	assert.ErrorIs(t, repo.MarkVerified(ctx, user.ID, "verify-me"), auth.ErrUserNotFound)
	assert.ErrorIs(t, repo.MarkVerified(ctx, user.ID, ""), auth.ErrUserNotFound)

	stored, err := repo.GetByID(ctx, user.ID.String())
	require.NoError(t, err)
	assert.True(t, stored.Verified)
	assert.Empty(t, stored.VerificationToken)

	_, err = repo.GetByVerificationToken(ctx, "verify-me")
	assert.ErrorIs(t, err, auth.ErrUserNotFound)
}

func TestUsers_SetTokenAndAvatar(t *testing.T) {
	ctx := context.Background()
	repo := auth.NewUsersRepository(newTestDB(t))

	user, err := repo.Create(ctx, newTestUser("s@example.com", "t"))
	require.NoError(t, err)

	require.NoError(t, repo.SetToken(ctx, user.ID, "session-1"))
	require.NoError(t, repo.SetAvatar(ctx, user.ID, "avatars/me.png"))

	stored, err := repo.GetByID(ctx, user.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "session-1", stored.Token)
	assert.Equal(t, "avatars/me.png", stored.AvatarURL)

	require.NoError(t, repo.SetToken(ctx, user.ID, ""))
	stored, err = repo.GetByID(ctx, user.ID.String())
	require.NoError(t, err)
	assert.Empty(t, stored.Token)

	assert.ErrorIs(t, repo.SetToken(ctx, uuid.New(), "x"), auth.ErrUserNotFound)
	assert.ErrorIs(t, repo.SetAvatar(ctx, uuid.New(), "x"), auth.ErrUserNotFound)
}

func TestUsers_MetadataPersists(t *testing.T) {
	ctx := context.Background()
	repo := auth.NewUsersRepository(newTestDB(t))

	user := newTestUser("m@example.com", "t")
	user.AddMetadata("name", "Ann")

	created, err := repo.Create(ctx, user)
	require.NoError(t, err)

	stored, err := repo.GetByID(ctx, created.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "Ann", stored.Metadata["name"])
}

func TestRepositoryManager(t *testing.T) {
	repo := auth.NewRepositoryManager(newTestDB(t))
	assert.NoError(t, repo.Validate())
	assert.NotPanics(t, repo.MustValidate)
	assert.NotNil(t, repo.Users())

	assert.Error(t, auth.NewRepositoryManager(nil).Validate())
}
