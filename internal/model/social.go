package model

import "time"

// Follow is a directed edge: follower → following. The pair is unique and a
// user can never follow themselves (enforced in both the service layer and
// a table constraint).
type Follow struct {
	ID          string    `json:"id"          db:"id"`
	FollowerID  string    `json:"followerId"  db:"follower_id"`
	FollowingID string    `json:"followingId" db:"following_id"`
	CreatedAt   time.Time `json:"createdAt"   db:"created_at"`
}

// FriendRequestStatus is the lifecycle of a FriendRequest.
type FriendRequestStatus string

const (
	FriendRequestPending  FriendRequestStatus = "pending"
	FriendRequestAccepted FriendRequestStatus = "accepted"
	FriendRequestDeclined FriendRequestStatus = "declined"
)

// FriendRequest is the gate in front of private profiles. Trying to follow
// a private user creates a pending request to them instead of a follow
// edge; accepting it creates the edge, declining just closes the request.
// At most one pending request may exist per (from, to) pair.
type FriendRequest struct {
	ID          string              `json:"id"          db:"id"`
	FromUserID  string              `json:"fromUserId"  db:"from_user_id"`
	ToUserID    string              `json:"toUserId"    db:"to_user_id"`
	Status      FriendRequestStatus `json:"status"      db:"status"`
	CreatedAt   time.Time           `json:"createdAt"   db:"created_at"`
	RespondedAt *time.Time          `json:"respondedAt" db:"responded_at"`
	From        UserSummary         `json:"from"`
}
