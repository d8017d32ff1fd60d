// Package model defines the data structures used throughout the application.
// In Go, we use structs to represent our data — similar to classes in other languages,
// but without inheritance. Go favours composition over inheritance.
package model

import "time"

// User represents a registered account on the platform.
//
// Accounts are created either with email/password (PasswordHash set) or via
// GitHub OAuth (GitHubID set, PasswordHash empty). Both paths share the same
// internal xid-based ID, so nothing downstream cares how the account was made.
//
// The Private flag gates profile visibility: apps, followers and overlap
// matching for a private user are only exposed to accepted followers.
// Following a private user goes through a friend request first.
type User struct {
	ID           string    `json:"id"          db:"id"`
	Username     string    `json:"username"    db:"username"`
	Email        string    `json:"email"       db:"email"`
	PasswordHash string    `json:"-"           db:"password_hash"` // never serialized
	GitHubID     int64     `json:"-"           db:"github_id"`     // 0 for local accounts
	DisplayName  string    `json:"displayName" db:"display_name"`
	AvatarURL    string    `json:"avatarUrl"   db:"avatar_url"`
	Bio          string    `json:"bio"         db:"bio"`
	Private      bool      `json:"private"     db:"private"`
	CreatedAt    time.Time `json:"createdAt"   db:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt"   db:"updated_at"`
}

// UserSummary is the slice of a User that's safe to embed in other payloads
// (recommendation "shared users", follower lists, notification actors).
// It intentionally omits email and the private flag.
type UserSummary struct {
	ID          string `json:"id"          db:"id"`
	Username    string `json:"username"    db:"username"`
	DisplayName string `json:"displayName" db:"display_name"`
	AvatarURL   string `json:"avatarUrl"   db:"avatar_url"`
}

// Summary converts a full User to its public summary form.
func (u *User) Summary() UserSummary {
	return UserSummary{
		ID:          u.ID,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		AvatarURL:   u.AvatarURL,
	}
}

// Name returns the best human-readable name for the user: the display name
// if set, otherwise the username. Used when generating notification and
// recommendation text.
func (u UserSummary) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Username
}
