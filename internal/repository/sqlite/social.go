package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/appdeck/internal/apperror"
	"github.com/sakif/appdeck/internal/model"
	"github.com/sakif/appdeck/internal/repository"
)

// compile-time checks
var (
	_ repository.FollowRepository        = (*DB)(nil)
	_ repository.FriendRequestRepository = (*DB)(nil)
	_ repository.ProfileLikeRepository   = (*DB)(nil)
)

// CreateFollow inserts a follow edge. The UNIQUE(follower_id, following_id)
// constraint makes a duplicate follow a Conflict, and the table CHECK
// rejects self-follows even if a caller slips past service validation.
func (db *DB) CreateFollow(ctx context.Context, follow *model.Follow) error {
	follow.ID = xid.New().String()
	follow.CreatedAt = time.Now()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO follows (id, follower_id, following_id, created_at)
		 VALUES (?, ?, ?, ?)`,
		follow.ID, follow.FollowerID, follow.FollowingID, follow.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("follow", follow.FollowingID)
		}
		return fmt.Errorf("sqlite: creating follow: %w", err)
	}

	return nil
}

func (db *DB) DeleteFollow(ctx context.Context, followerID, followingID string) error {
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM follows WHERE follower_id = ? AND following_id = ?`,
		followerID, followingID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: deleting follow: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("follow", followingID)
	}

	return nil
}

func (db *DB) FollowExists(ctx context.Context, followerID, followingID string) (bool, error) {
	var one int
	err := db.conn.QueryRowContext(ctx,
		`SELECT 1 FROM follows WHERE follower_id = ? AND following_id = ?`,
		followerID, followingID,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("sqlite: checking follow: %w", err)
	}
	return true, nil
}

func (db *DB) FollowerIDs(ctx context.Context, userID string) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT follower_id FROM follows WHERE following_id = ? ORDER BY created_at`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing follower ids of %s: %w", userID, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sqlite: scanning follower id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating follower ids: %w", err)
	}

	return ids, nil
}

func (db *DB) Followers(ctx context.Context, userID string) ([]model.UserSummary, error) {
	return db.followEdgeUsers(ctx,
		`SELECT u.id, u.username, u.display_name, u.avatar_url
		 FROM follows f JOIN users u ON u.id = f.follower_id
		 WHERE f.following_id = ? ORDER BY f.created_at DESC`, userID)
}

func (db *DB) Following(ctx context.Context, userID string) ([]model.UserSummary, error) {
	return db.followEdgeUsers(ctx,
		`SELECT u.id, u.username, u.display_name, u.avatar_url
		 FROM follows f JOIN users u ON u.id = f.following_id
		 WHERE f.follower_id = ? ORDER BY f.created_at DESC`, userID)
}

func (db *DB) followEdgeUsers(ctx context.Context, query, userID string) ([]model.UserSummary, error) {
	rows, err := db.conn.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing follow edges: %w", err)
	}
	defer rows.Close()

	var users []model.UserSummary
	for rows.Next() {
		var u model.UserSummary
		if err := rows.Scan(&u.ID, &u.Username, &u.DisplayName, &u.AvatarURL); err != nil {
			return nil, fmt.Errorf("sqlite: scanning follow edge user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating follow edges: %w", err)
	}

	return users, nil
}

// --- friend requests ---

func (db *DB) CreateFriendRequest(ctx context.Context, req *model.FriendRequest) error {
	req.ID = xid.New().String()
	req.Status = model.FriendRequestPending
	req.CreatedAt = time.Now()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO friend_requests (id, from_user_id, to_user_id, status, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		req.ID, req.FromUserID, req.ToUserID, req.Status, req.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("friend request", req.ToUserID)
		}
		return fmt.Errorf("sqlite: creating friend request: %w", err)
	}

	return nil
}

func (db *DB) GetFriendRequestByID(ctx context.Context, id string) (*model.FriendRequest, error) {
	var req model.FriendRequest
	var respondedAt sql.NullTime
	err := db.conn.QueryRowContext(ctx,
		`SELECT r.id, r.from_user_id, r.to_user_id, r.status, r.created_at, r.responded_at,
		        u.id, u.username, u.display_name, u.avatar_url
		 FROM friend_requests r JOIN users u ON u.id = r.from_user_id
		 WHERE r.id = ?`,
		id,
	).Scan(
		&req.ID, &req.FromUserID, &req.ToUserID, &req.Status, &req.CreatedAt,
		&respondedAt,
		&req.From.ID, &req.From.Username, &req.From.DisplayName, &req.From.AvatarURL,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("friend request", id)
		}
		return nil, fmt.Errorf("sqlite: getting friend request %s: %w", id, err)
	}
	if respondedAt.Valid {
		req.RespondedAt = &respondedAt.Time
	}
	return &req, nil
}

func (db *DB) PendingExists(ctx context.Context, fromUserID, toUserID string) (bool, error) {
	var one int
	err := db.conn.QueryRowContext(ctx,
		`SELECT 1 FROM friend_requests
		 WHERE from_user_id = ? AND to_user_id = ? AND status = 'pending'`,
		fromUserID, toUserID,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("sqlite: checking pending friend request: %w", err)
	}
	return true, nil
}

func (db *DB) ListPendingRequests(ctx context.Context, toUserID string) ([]model.FriendRequest, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT r.id, r.from_user_id, r.to_user_id, r.status, r.created_at,
		        u.id, u.username, u.display_name, u.avatar_url
		 FROM friend_requests r JOIN users u ON u.id = r.from_user_id
		 WHERE r.to_user_id = ? AND r.status = 'pending'
		 ORDER BY r.created_at DESC`,
		toUserID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing friend requests for %s: %w", toUserID, err)
	}
	defer rows.Close()

	var requests []model.FriendRequest
	for rows.Next() {
		var r model.FriendRequest
		if err := rows.Scan(
			&r.ID, &r.FromUserID, &r.ToUserID, &r.Status, &r.CreatedAt,
			&r.From.ID, &r.From.Username, &r.From.DisplayName, &r.From.AvatarURL,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning friend request: %w", err)
		}
		requests = append(requests, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating friend requests: %w", err)
	}

	return requests, nil
}

func (db *DB) SetRequestStatus(ctx context.Context, id string, status model.FriendRequestStatus, respondedAt time.Time) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE friend_requests SET status = ?, responded_at = ?
		 WHERE id = ? AND status = 'pending'`,
		status, respondedAt, id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating friend request %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		// Either the ID is bogus or the request was already answered.
		return apperror.NotFound("pending friend request", id)
	}

	return nil
}

// --- profile likes ---

// CreateProfileLike records a one-time like. The composite primary key
// turns a repeat like into a Conflict, which the service treats as "already
// liked" rather than a second notification.
func (db *DB) CreateProfileLike(ctx context.Context, likerID, likedUserID string) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO profile_likes (liker_id, liked_user_id, created_at)
		 VALUES (?, ?, ?)`,
		likerID, likedUserID, time.Now(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("profile like", likedUserID)
		}
		return fmt.Errorf("sqlite: creating profile like: %w", err)
	}
	return nil
}
