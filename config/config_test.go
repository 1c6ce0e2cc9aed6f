package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	auth "github.com/goliatone/go-userauth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ auth.Config = Config{}

func envMap(m map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, "3000", c.Port)
	assert.Equal(t, 23*time.Hour, c.TokenExpiration)
	assert.Equal(t, "starter", c.DefaultSubscription)
	assert.Zero(t, c.PasswordHashCost)
	assert.Equal(t, 250, c.AvatarSize)
	assert.Equal(t, AvatarStorageLocal, c.AvatarStorage)
	assert.Equal(t, "smtp.ukr.net", c.SMTPHost)
	assert.Equal(t, 465, c.SMTPPort)
	assert.Equal(t, "Bearer", c.AuthScheme)
	assert.Empty(t, c.SigningKey)
}

func TestLoad_RequiresSigningKey(t *testing.T) {
	_, err := Load(Options{Lookup: envMap(nil)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SigningKey")
}

func TestLoad_EnvironmentOverlay(t *testing.T) {
	cfg, err := Load(Options{Lookup: envMap(map[string]string{
		"JWT_SECRET":     "secret",
		"PORT":           "8081",
		"BASE_URL":       "https://api.example.com",
		"SMTP_PORT":      "587",
		"SMTP_USER":      "robot@example.com",
		"JWT_EXPIRATION": "2h",
		"RATE_LIMIT":     "2.5",
	})})
	require.NoError(t, err)

	assert.Equal(t, "secret", cfg.GetSigningKey())
	assert.Equal(t, ":8081", cfg.ListenAddr())
	assert.Equal(t, "https://api.example.com", cfg.GetBaseURL())
	assert.Equal(t, 587, cfg.SMTPPort)
	assert.Equal(t, "robot@example.com", cfg.MailSender())
	assert.Equal(t, 2*time.Hour, cfg.GetTokenExpiration())
	assert.Equal(t, 2.5, cfg.RateLimit)
}

func TestLoad_FlagsWinOverEnvironment(t *testing.T) {
	cfg, err := Load(Options{
		Lookup: envMap(map[string]string{"JWT_SECRET": "from-env", "PORT": "8081"}),
		Args:   []string{"-s", "from-flag", "-p", "9090", "-t", "30m"},
	})
	require.NoError(t, err)

	assert.Equal(t, "from-flag", cfg.SigningKey)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 30*time.Minute, cfg.TokenExpiration)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "bad int", env: map[string]string{"JWT_SECRET": "x", "SMTP_PORT": "abc"}},
		{name: "bad duration", env: map[string]string{"JWT_SECRET": "x", "JWT_EXPIRATION": "forever"}},
		{name: "bad subscription", env: map[string]string{"JWT_SECRET": "x", "DEFAULT_SUBSCRIPTION": "gold"}},
		{name: "s3 without bucket", env: map[string]string{"JWT_SECRET": "x", "AVATAR_STORAGE": "s3"}},
		{name: "unknown storage", env: map[string]string{"JWT_SECRET": "x", "AVATAR_STORAGE": "ftp"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(Options{Lookup: envMap(tt.env)})
			assert.Error(t, err)
		})
	}
}

func TestLoad_DotEnvFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(file, []byte("JWT_SECRET=dotenv-secret\nS3_BUCKET=avatars\n"), 0o600))

	t.Cleanup(func() {
		os.Unsetenv("JWT_SECRET")
		os.Unsetenv("S3_BUCKET")
	})

	cfg, err := Load(Options{EnvFiles: []string{file, filepath.Join(dir, "missing.env")}})
	require.NoError(t, err)

	assert.Equal(t, "dotenv-secret", cfg.SigningKey)
	assert.Equal(t, "avatars", cfg.S3Bucket)
}
