// Package config loads the server settings from defaults, an optional
// .env file, environment variables and command-line flags, in that order.
package config

import (
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

const (
	AvatarStorageLocal = "local"
	AvatarStorageS3    = "s3"
)

// Config holds runtime settings for the user service.
type Config struct {
	Port        string
	DatabaseDSN string
	BaseURL     string
	PublicDir   string
	TempDir     string

	SigningKey          string
	Issuer              string
	TokenExpiration     time.Duration
	DefaultSubscription string
	PasswordHashCost    int
	ContextKey          string
	AuthScheme          string

	AvatarSize    int
	AvatarStorage string
	S3Bucket      string
	S3Region      string
	S3Endpoint    string
	S3AccessKey   string
	S3SecretKey   string

	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	MailFrom     string

	RateLimit float64
	RateBurst int

	LogFormat string
	LogLevel  string
}

// LoadDefaults populates Config with development defaults.
// The signing key is left empty on purpose and must be provided.
func (c *Config) LoadDefaults() {
	c.Port = "3000"
	c.DatabaseDSN = "file:userauth.db?cache=shared&_pragma=foreign_keys(1)"
	c.BaseURL = "http://localhost:3000"
	c.PublicDir = "public"
	c.TempDir = "tmp"

	c.TokenExpiration = 23 * time.Hour
	c.DefaultSubscription = "starter"
	// zero picks the hasher's build default
	c.PasswordHashCost = 0
	c.ContextKey = "user"
	c.AuthScheme = "Bearer"

	c.AvatarSize = 250
	c.AvatarStorage = AvatarStorageLocal
	c.S3Region = "us-east-1"

	c.SMTPHost = "smtp.ukr.net"
	c.SMTPPort = 465

	c.RateLimit = 1
	c.RateBurst = 5

	c.LogFormat = "text"
	c.LogLevel = "info"
}

// Validate will run validation rules
func (c Config) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.Port, validation.Required, is.Port),
		validation.Field(&c.DatabaseDSN, validation.Required),
		validation.Field(&c.BaseURL, validation.Required, is.URL),
		validation.Field(&c.SigningKey, validation.Required),
		validation.Field(&c.TokenExpiration, validation.Required),
		validation.Field(&c.DefaultSubscription, validation.Required, validation.In("starter", "pro", "business")),
		validation.Field(&c.PasswordHashCost, validation.Min(0), validation.Max(31)),
		validation.Field(&c.AvatarSize, validation.Required, validation.Min(1)),
		validation.Field(&c.AvatarStorage, validation.Required, validation.In(AvatarStorageLocal, AvatarStorageS3)),
		validation.Field(&c.LogFormat, validation.In("text", "json")),
		validation.Field(&c.LogLevel, validation.In("debug", "info", "warn", "error")),
	)
	if err != nil {
		return err
	}

	if c.AvatarStorage == AvatarStorageS3 {
		return validation.ValidateStruct(&c,
			validation.Field(&c.S3Bucket, validation.Required),
			validation.Field(&c.S3Region, validation.Required),
		)
	}

	return nil
}

// ListenAddr returns the address passed to fiber's Listen.
func (c Config) ListenAddr() string {
	if strings.Contains(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}

// MailSender returns the From address, defaulting to the SMTP account.
func (c Config) MailSender() string {
	if c.MailFrom != "" {
		return c.MailFrom
	}
	return c.SMTPUser
}

func (c Config) GetSigningKey() string {
	return c.SigningKey
}

func (c Config) GetIssuer() string {
	return c.Issuer
}

func (c Config) GetTokenExpiration() time.Duration {
	return c.TokenExpiration
}

func (c Config) GetBaseURL() string {
	return c.BaseURL
}

func (c Config) GetDefaultSubscription() string {
	return c.DefaultSubscription
}

func (c Config) GetPasswordHashCost() int {
	return c.PasswordHashCost
}

func (c Config) GetAvatarSize() int {
	return c.AvatarSize
}

func (c Config) GetContextKey() string {
	return c.ContextKey
}

func (c Config) GetAuthScheme() string {
	return c.AuthScheme
}
