package models

import "time"

// Session is a server-side login. Only the SHA-256 digest of the opaque
// token handed to the client is stored.
type Session struct {
	Base
	UserID    string    `gorm:"type:uuid;not null;index" json:"user_id"`
	TokenHash string    `gorm:"size:64;uniqueIndex;not null" json:"-"`
	ExpiresAt time.Time `gorm:"not null;index" json:"expires_at"`
	UserAgent string    `json:"user_agent,omitempty"`
	IPAddress string    `json:"ip_address,omitempty"`

	// User is filled in by the session lookup that guards each request.
	User *User `gorm:"-" json:"-"`
}

// IsExpired reports whether the session is no longer valid at now.
func (s *Session) IsExpired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}
