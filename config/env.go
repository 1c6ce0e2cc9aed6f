package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// loadDotEnv reads the given .env files into the process environment.
// Variables already set win. Missing files are not an error.
func loadDotEnv(files ...string) error {
	for _, file := range files {
		if _, err := os.Stat(file); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return err
		}
		if err := godotenv.Load(file); err != nil {
			return fmt.Errorf("load %s: %w", file, err)
		}
	}
	return nil
}

// parseEnv overlays values from environment variables.
func parseEnv(c *Config, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	str("PORT", &c.Port)
	str("DB_DSN", &c.DatabaseDSN)
	str("BASE_URL", &c.BaseURL)
	str("PUBLIC_DIR", &c.PublicDir)
	str("TMP_DIR", &c.TempDir)

	str("JWT_SECRET", &c.SigningKey)
	str("JWT_ISSUER", &c.Issuer)
	str("DEFAULT_SUBSCRIPTION", &c.DefaultSubscription)
	str("AUTH_CONTEXT_KEY", &c.ContextKey)
	str("AUTH_SCHEME", &c.AuthScheme)

	str("AVATAR_STORAGE", &c.AvatarStorage)
	str("S3_BUCKET", &c.S3Bucket)
	str("S3_REGION", &c.S3Region)
	str("S3_ENDPOINT", &c.S3Endpoint)
	str("S3_ACCESS_KEY", &c.S3AccessKey)
	str("S3_SECRET_KEY", &c.S3SecretKey)

	str("SMTP_HOST", &c.SMTPHost)
	str("SMTP_USER", &c.SMTPUser)
	str("SMTP_PASSWORD", &c.SMTPPassword)
	str("MAIL_FROM", &c.MailFrom)

	str("LOG_FORMAT", &c.LogFormat)
	str("LOG_LEVEL", &c.LogLevel)

	if v, ok := lookup("JWT_EXPIRATION"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("JWT_EXPIRATION: %w", err)
		}
		c.TokenExpiration = d
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"SMTP_PORT", &c.SMTPPort},
		{"BCRYPT_COST", &c.PasswordHashCost},
		{"AVATAR_SIZE", &c.AvatarSize},
		{"RATE_BURST", &c.RateBurst},
	}
	for _, it := range ints {
		v, ok := lookup(it.key)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", it.key, err)
		}
		*it.dst = n
	}

	if v, ok := lookup("RATE_LIMIT"); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("RATE_LIMIT: %w", err)
		}
		c.RateLimit = f
	}

	return nil
}
