package auth

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Subscription is the user's plan tier
type Subscription = string

const (
	// SubscriptionStarter is the default tier
	SubscriptionStarter Subscription = "starter"
	// SubscriptionPro is the paid tier
	SubscriptionPro Subscription = "pro"
	// SubscriptionBusiness is the team tier
	SubscriptionBusiness Subscription = "business"
)

// Subscriptions lists every valid tier.
var Subscriptions = []Subscription{
	SubscriptionStarter,
	SubscriptionPro,
	SubscriptionBusiness,
}

// IsSubscription reports whether s is a known tier.
func IsSubscription(s string) bool {
	for _, sub := range Subscriptions {
		if sub == s {
			return true
		}
	}
	return false
}

// User is the user model
type User struct {
	bun.BaseModel     `bun:"table:users,alias:usr"`
	ID                uuid.UUID      `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Email             string         `bun:"email,notnull,unique" json:"email,omitempty"`
	PasswordHash      string         `bun:"password_hash,notnull" json:"-"`
	Subscription      Subscription   `bun:"subscription,notnull" json:"subscription,omitempty"`
	AvatarURL         string         `bun:"avatar_url" json:"avatarURL,omitempty"`
	Token             string         `bun:"token" json:"-"`
	Verified          bool           `bun:"verify,notnull" json:"verify"`
	VerificationToken string         `bun:"verification_token" json:"-"`
	Metadata          map[string]any `bun:"metadata,type:json" json:"metadata,omitempty"`
	CreatedAt         *time.Time     `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt         *time.Time     `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// AddMetadata will append information to a metadata attribute
func (u *User) AddMetadata(key string, val any) *User {
	if u.Metadata == nil {
		u.Metadata = make(map[string]any)
	}
	u.Metadata[key] = val
	return u
}

// HasSession reports whether the user holds a live session token.
func (u *User) HasSession() bool {
	return u != nil && u.Token != ""
}

// NormalizeEmail lower cases and trims an address so lookups and the
// unique index agree on a single representation.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// UserResponse is the public projection of a user.
type UserResponse struct {
	Email        string `json:"email"`
	Subscription string `json:"subscription"`
}

// NewUserResponse builds the public projection for user.
func NewUserResponse(user *User) UserResponse {
	if user == nil {
		return UserResponse{}
	}
	return UserResponse{
		Email:        user.Email,
		Subscription: user.Subscription,
	}
}

// SignupResponse is returned after a successful registration.
type SignupResponse struct {
	User UserResponse `json:"user"`
}

// SigninResponse carries the issued session token.
type SigninResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

// MessageResponse is a plain confirmation payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// AvatarResponse carries the new avatar reference.
type AvatarResponse struct {
	AvatarURL string `json:"avatarURL"`
}
