package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLocalStore_MovesFileUnderAvatars(t *testing.T) {
	tmp := t.TempDir()
	public := t.TempDir()
	src := writeTemp(t, tmp, "upload.png", "img")

	store := NewLocalStore(public)
	ref, err := store.Store(context.Background(), src, "42_avatar.png")
	require.NoError(t, err)

	assert.Equal(t, "avatars/42_avatar.png", ref)

	_, err = os.Stat(src)
	assert.True(t, os.IsNotExist(err), "temporary file should be gone")

	data, err := os.ReadFile(filepath.Join(public, "avatars", "42_avatar.png"))
	require.NoError(t, err)
	assert.Equal(t, "img", string(data))
}

func TestLocalStore_StripsDirectories(t *testing.T) {
	tmp := t.TempDir()
	public := t.TempDir()
	src := writeTemp(t, tmp, "upload.png", "img")

	ref, err := NewLocalStore(public).Store(context.Background(), src, "../../etc/passwd")
	require.NoError(t, err)
	assert.Equal(t, "avatars/passwd", ref)
}

func TestLocalStore_MissingSource(t *testing.T) {
	_, err := NewLocalStore(t.TempDir()).Store(context.Background(), "/does/not/exist.png", "a.png")
	assert.Error(t, err)
}

func TestLocalStore_Remove(t *testing.T) {
	public := t.TempDir()
	src := writeTemp(t, t.TempDir(), "upload.png", "img")

	store := NewLocalStore(public)
	ref, err := store.Store(context.Background(), src, "42_avatar.png")
	require.NoError(t, err)

	require.NoError(t, store.Remove(context.Background(), ref))

	_, err = os.Stat(filepath.Join(public, "avatars", "42_avatar.png"))
	assert.True(t, os.IsNotExist(err))

	// already gone
	assert.NoError(t, store.Remove(context.Background(), ref))
	assert.Error(t, store.Remove(context.Background(), ""))
}

type MockObjectAPI struct {
	mock.Mock
}

func (m *MockObjectAPI) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	body, _ := io.ReadAll(in.Body)
	args := m.Called(aws.ToString(in.Bucket), aws.ToString(in.Key), aws.ToString(in.ContentType), string(body))
	if out, ok := args.Get(0).(*s3.PutObjectOutput); ok {
		return out, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockObjectAPI) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	args := m.Called(aws.ToString(in.Bucket), aws.ToString(in.Key))
	if out, ok := args.Get(0).(*s3.DeleteObjectOutput); ok {
		return out, args.Error(1)
	}
	return nil, args.Error(1)
}

func TestS3Store_UploadsAndRemovesTemp(t *testing.T) {
	src := writeTemp(t, t.TempDir(), "upload.png", "img")

	client := &MockObjectAPI{}
	client.On("PutObject", "vault", "avatars/42_avatar.png", "image/png", "img").
		Return(&s3.PutObjectOutput{}, nil).Once()

	store := NewS3Store(client, S3Config{Bucket: "vault"})
	ref, err := store.Store(context.Background(), src, "42_avatar.png")
	require.NoError(t, err)

	assert.Equal(t, "avatars/42_avatar.png", ref)
	_, err = os.Stat(src)
	assert.True(t, os.IsNotExist(err))
	client.AssertExpectations(t)
}

func TestS3Store_PublicURL(t *testing.T) {
	src := writeTemp(t, t.TempDir(), "upload.jpg", "img")

	client := &MockObjectAPI{}
	client.On("PutObject", "vault", "avatars/a.jpg", "image/jpeg", "img").
		Return(&s3.PutObjectOutput{}, nil)

	store := NewS3Store(client, S3Config{Bucket: "vault", PublicURL: "https://cdn.example.com/"})
	ref, err := store.Store(context.Background(), src, "a.jpg")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/avatars/a.jpg", ref)
}

func TestS3Store_UploadFailureKeepsTemp(t *testing.T) {
	src := writeTemp(t, t.TempDir(), "upload.png", "img")

	client := &MockObjectAPI{}
	client.On("PutObject", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("access denied"))

	_, err := NewS3Store(client, S3Config{Bucket: "vault"}).Store(context.Background(), src, "a.png")
	require.Error(t, err)

	_, statErr := os.Stat(src)
	assert.NoError(t, statErr)
}

func TestS3Store_Remove(t *testing.T) {
	client := &MockObjectAPI{}
	client.On("DeleteObject", "vault", "avatars/a.jpg").
		Return(&s3.DeleteObjectOutput{}, nil).Once()

	store := NewS3Store(client, S3Config{Bucket: "vault", PublicURL: "https://cdn.example.com/"})
	require.NoError(t, store.Remove(context.Background(), "https://cdn.example.com/avatars/a.jpg"))
	client.AssertExpectations(t)
}

func TestS3Store_RemoveFailure(t *testing.T) {
	client := &MockObjectAPI{}
	client.On("DeleteObject", "vault", "avatars/a.png").
		Return(nil, errors.New("access denied"))

	err := NewS3Store(client, S3Config{Bucket: "vault"}).Remove(context.Background(), "avatars/a.png")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to delete avatar")
}
