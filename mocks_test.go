package auth_test

import (
	"context"
	"database/sql"
	"image"
	"image/color"
	"image/png"
	"os"
	"sync"
	"testing"
	"time"

	auth "github.com/goliatone/go-userauth"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// MockConfig implements auth.Config
type MockConfig struct {
	mock.Mock
}

func (m *MockConfig) GetSigningKey() string {
	return m.Called().String(0)
}

func (m *MockConfig) GetIssuer() string {
	return m.Called().String(0)
}

func (m *MockConfig) GetTokenExpiration() time.Duration {
	return m.Called().Get(0).(time.Duration)
}

func (m *MockConfig) GetBaseURL() string {
	return m.Called().String(0)
}

func (m *MockConfig) GetDefaultSubscription() string {
	return m.Called().String(0)
}

func (m *MockConfig) GetPasswordHashCost() int {
	return m.Called().Int(0)
}

func (m *MockConfig) GetAvatarSize() int {
	return m.Called().Int(0)
}

func (m *MockConfig) GetContextKey() string {
	return m.Called().String(0)
}

func (m *MockConfig) GetAuthScheme() string {
	return m.Called().String(0)
}

func newMockConfig() *MockConfig {
	return newMockConfigWithCost(4)
}

func newMockConfigWithCost(cost int) *MockConfig {
	mockConfig := new(MockConfig)
	mockConfig.On("GetSigningKey").Return("test-signing-key")
	mockConfig.On("GetIssuer").Return("test-issuer")
	mockConfig.On("GetTokenExpiration").Return(auth.DefaultTokenExpiration)
	mockConfig.On("GetBaseURL").Return("http://localhost:3000")
	mockConfig.On("GetDefaultSubscription").Return(auth.SubscriptionStarter)
	mockConfig.On("GetPasswordHashCost").Return(cost)
	mockConfig.On("GetAvatarSize").Return(auth.DefaultAvatarSize)
	mockConfig.On("GetContextKey").Return("user")
	mockConfig.On("GetAuthScheme").Return("Bearer")
	return mockConfig
}

// MockMailer implements auth.Mailer
type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) Send(ctx context.Context, msg auth.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

// MockLogger implements auth.Logger for testing
type MockLogger struct {
	mock.Mock
}

func (m *MockLogger) Debug(format string, args ...any) {
	m.Called(format, args)
}

func (m *MockLogger) Info(format string, args ...any) {
	m.Called(format, args)
}

func (m *MockLogger) Warn(format string, args ...any) {
	m.Called(format, args)
}

func (m *MockLogger) Error(format string, args ...any) {
	m.Called(format, args)
}

// recordingMailer keeps every message it was asked to send.
type recordingMailer struct {
	mu   sync.Mutex
	sent []auth.Message
	err  error
}

func (r *recordingMailer) Send(_ context.Context, msg auth.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, msg)
	return r.err
}

func (r *recordingMailer) last() auth.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sent) == 0 {
		return auth.Message{}
	}
	return r.sent[len(r.sent)-1]
}

func (r *recordingMailer) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

type capturingSink struct {
	mu     sync.Mutex
	events []auth.ActivityEvent
}

func (c *capturingSink) Record(_ context.Context, evt auth.ActivityEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, evt)
	return nil
}

func (c *capturingSink) types() []auth.ActivityEventType {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]auth.ActivityEventType, 0, len(c.events))
	for _, e := range c.events {
		out = append(out, e.EventType)
	}
	return out
}

// stubStore moves nothing and reports a fixed reference.
type stubStore struct {
	err     error
	calls   int
	removed []string
}

func (s *stubStore) Store(_ context.Context, tmpPath, filename string) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return "avatars/" + filename, nil
}

func (s *stubStore) Remove(_ context.Context, ref string) error {
	s.removed = append(s.removed, ref)
	return nil
}

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { db.Close() })

	require.NoError(t, auth.Migrate(context.Background(), db, nopLogger{}))
	return db
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func imageSize(t *testing.T, path string) (int, int) {
	t.Helper()

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	require.NoError(t, err)
	return cfg.Width, cfg.Height
}
