package model

import "time"

// NotificationType enumerates every event that can alert a user.
type NotificationType string

const (
	NotificationNewFollower           NotificationType = "new_follower"
	NotificationNewApp                NotificationType = "new_app"
	NotificationProfileLike           NotificationType = "profile_like"
	NotificationFriendRequest         NotificationType = "friend_request"
	NotificationFriendRequestAccepted NotificationType = "friend_request_accepted"
)

// Notification is the persisted record of an alert to one user. The row is
// the source of truth — it is written before any live push is attempted, so
// an offline recipient still sees it on their next poll. Once created, only
// IsRead ever changes.
//
// RelatedUserID/RelatedAppID point at the actor and subject of the event
// where they exist (e.g. who followed you, which app became visible).
// Metadata is a freeform JSON blob for anything type-specific the client
// wants (stored as raw text, never interpreted by the server).
type Notification struct {
	ID            string           `json:"id"            db:"id"`
	UserID        string           `json:"userId"        db:"user_id"`
	Type          NotificationType `json:"type"          db:"type"`
	Content       string           `json:"content"       db:"content"`
	RelatedUserID string           `json:"relatedUserId,omitempty" db:"related_user_id"`
	RelatedAppID  string           `json:"relatedAppId,omitempty"  db:"related_app_id"`
	Metadata      string           `json:"metadata,omitempty"      db:"metadata"`
	IsRead        bool             `json:"isRead"        db:"is_read"`
	CreatedAt     time.Time        `json:"createdAt"     db:"created_at"`
}
