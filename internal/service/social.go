// The social graph: following, friend requests in front of private
// profiles, and profile likes. Every state change here that affects another
// user fires exactly one notification, and only on a genuine transition.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sakif/appdeck/internal/apperror"
	"github.com/sakif/appdeck/internal/model"
	"github.com/sakif/appdeck/internal/repository"
)

// SocialService manages follows, friend requests and likes.
type SocialService struct {
	users    repository.UserRepository
	follows  repository.FollowRepository
	requests repository.FriendRequestRepository
	likes    repository.ProfileLikeRepository
	notifier Notifier
	logger   *slog.Logger
}

// NewSocialService creates a SocialService.
func NewSocialService(
	users repository.UserRepository,
	follows repository.FollowRepository,
	requests repository.FriendRequestRepository,
	likes repository.ProfileLikeRepository,
	notifier Notifier,
	logger *slog.Logger,
) *SocialService {
	return &SocialService{
		users:    users,
		follows:  follows,
		requests: requests,
		likes:    likes,
		notifier: notifier,
		logger:   logger,
	}
}

// FollowOutcome tells the caller what a follow attempt produced: a live
// follow edge, or a pending request when the target is private.
type FollowOutcome struct {
	Following bool   `json:"following"`
	Requested bool   `json:"requested"`
	RequestID string `json:"requestId,omitempty"`
}

// Follow follows a public user directly, or files a friend request when the
// target profile is private. Repeats are idempotent: an existing follow or
// pending request is reported back without creating anything or notifying
// anyone again.
func (s *SocialService) Follow(ctx context.Context, followerID, targetID string) (*FollowOutcome, error) {
	if followerID == targetID {
		return nil, apperror.ValidationFailed("userId", "you cannot follow yourself")
	}

	target, err := s.users.GetUserByID(ctx, targetID)
	if err != nil {
		return nil, err
	}

	already, err := s.follows.FollowExists(ctx, followerID, targetID)
	if err != nil {
		return nil, fmt.Errorf("service/social: checking follow: %w", err)
	}
	if already {
		return &FollowOutcome{Following: true}, nil
	}

	follower, err := s.users.GetUserByID(ctx, followerID)
	if err != nil {
		return nil, fmt.Errorf("service/social: loading follower: %w", err)
	}

	if target.Private {
		return s.requestFollow(ctx, follower, target)
	}

	follow := &model.Follow{FollowerID: followerID, FollowingID: targetID}
	if err := s.follows.CreateFollow(ctx, follow); err != nil {
		// A concurrent identical follow is fine.
		if errors.Is(err, apperror.ErrConflict) {
			return &FollowOutcome{Following: true}, nil
		}
		return nil, fmt.Errorf("service/social: creating follow: %w", err)
	}

	s.notify(ctx, &model.Notification{
		UserID:        targetID,
		Type:          model.NotificationNewFollower,
		Content:       fmt.Sprintf("%s started following you", follower.Summary().Name()),
		RelatedUserID: followerID,
	})

	s.logger.Info("follow created",
		slog.String("followerID", followerID),
		slog.String("followingID", targetID),
	)
	return &FollowOutcome{Following: true}, nil
}

// requestFollow files the pending request gating a private profile.
func (s *SocialService) requestFollow(ctx context.Context, follower, target *model.User) (*FollowOutcome, error) {
	pending, err := s.requests.PendingExists(ctx, follower.ID, target.ID)
	if err != nil {
		return nil, fmt.Errorf("service/social: checking pending request: %w", err)
	}
	if pending {
		return &FollowOutcome{Requested: true}, nil
	}

	req := &model.FriendRequest{FromUserID: follower.ID, ToUserID: target.ID}
	if err := s.requests.CreateFriendRequest(ctx, req); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return &FollowOutcome{Requested: true}, nil
		}
		return nil, fmt.Errorf("service/social: creating friend request: %w", err)
	}

	s.notify(ctx, &model.Notification{
		UserID:        target.ID,
		Type:          model.NotificationFriendRequest,
		Content:       fmt.Sprintf("%s wants to follow you", follower.Summary().Name()),
		RelatedUserID: follower.ID,
		Metadata:      fmt.Sprintf(`{"requestId":%q}`, req.ID),
	})

	s.logger.Info("friend request created",
		slog.String("fromUserID", follower.ID),
		slog.String("toUserID", target.ID),
	)
	return &FollowOutcome{Requested: true, RequestID: req.ID}, nil
}

// Unfollow removes a follow edge. Not following is a NotFound.
func (s *SocialService) Unfollow(ctx context.Context, followerID, targetID string) error {
	return s.follows.DeleteFollow(ctx, followerID, targetID)
}

// Followers lists who follows the user, newest first.
func (s *SocialService) Followers(ctx context.Context, userID string) ([]model.UserSummary, error) {
	return s.follows.Followers(ctx, userID)
}

// Following lists who the user follows, newest first.
func (s *SocialService) Following(ctx context.Context, userID string) ([]model.UserSummary, error) {
	return s.follows.Following(ctx, userID)
}

// PendingRequests lists the friend requests waiting on the user.
func (s *SocialService) PendingRequests(ctx context.Context, userID string) ([]model.FriendRequest, error) {
	return s.requests.ListPendingRequests(ctx, userID)
}

// AcceptRequest accepts a pending friend request addressed to userID: the
// request closes, the follow edge appears, and the requester is told.
func (s *SocialService) AcceptRequest(ctx context.Context, userID, requestID string) error {
	req, err := s.loadOwnPendingRequest(ctx, userID, requestID)
	if err != nil {
		return err
	}

	if err := s.requests.SetRequestStatus(ctx, requestID, model.FriendRequestAccepted, time.Now()); err != nil {
		return err
	}

	follow := &model.Follow{FollowerID: req.FromUserID, FollowingID: req.ToUserID}
	if err := s.follows.CreateFollow(ctx, follow); err != nil && !errors.Is(err, apperror.ErrConflict) {
		return fmt.Errorf("service/social: creating follow after accept: %w", err)
	}

	accepter, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("service/social: loading accepter: %w", err)
	}
	s.notify(ctx, &model.Notification{
		UserID:        req.FromUserID,
		Type:          model.NotificationFriendRequestAccepted,
		Content:       fmt.Sprintf("%s accepted your follow request", accepter.Summary().Name()),
		RelatedUserID: userID,
	})

	s.logger.Info("friend request accepted",
		slog.String("requestID", requestID),
		slog.String("fromUserID", req.FromUserID),
	)
	return nil
}

// DeclineRequest declines a pending friend request addressed to userID.
// The requester is not notified of declines.
func (s *SocialService) DeclineRequest(ctx context.Context, userID, requestID string) error {
	if _, err := s.loadOwnPendingRequest(ctx, userID, requestID); err != nil {
		return err
	}
	if err := s.requests.SetRequestStatus(ctx, requestID, model.FriendRequestDeclined, time.Now()); err != nil {
		return err
	}

	s.logger.Info("friend request declined", slog.String("requestID", requestID))
	return nil
}

func (s *SocialService) loadOwnPendingRequest(ctx context.Context, userID, requestID string) (*model.FriendRequest, error) {
	req, err := s.requests.GetFriendRequestByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.ToUserID != userID {
		// Someone else's request; don't reveal that it exists.
		return nil, apperror.NotFound("friend request", requestID)
	}
	if req.Status != model.FriendRequestPending {
		return nil, apperror.Conflict("friend request", requestID)
	}
	return req, nil
}

// LikeProfile records a one-time like on another user's profile and
// notifies them. A repeat like is a conflict, never a second notification.
func (s *SocialService) LikeProfile(ctx context.Context, likerID, targetID string) error {
	if likerID == targetID {
		return apperror.ValidationFailed("userId", "you cannot like your own profile")
	}

	target, err := s.users.GetUserByID(ctx, targetID)
	if err != nil {
		return err
	}

	if err := s.likes.CreateProfileLike(ctx, likerID, targetID); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return &apperror.AppError{
				Err:     apperror.ErrConflict,
				Message: "you already liked this profile",
			}
		}
		return fmt.Errorf("service/social: creating profile like: %w", err)
	}

	liker, err := s.users.GetUserByID(ctx, likerID)
	if err != nil {
		return fmt.Errorf("service/social: loading liker: %w", err)
	}
	s.notify(ctx, &model.Notification{
		UserID:        target.ID,
		Type:          model.NotificationProfileLike,
		Content:       fmt.Sprintf("%s liked your profile", liker.Summary().Name()),
		RelatedUserID: likerID,
	})
	return nil
}

// notify dispatches best-effort: the social mutation already committed, so
// a failed notification is logged and swallowed rather than rolling back a
// follow that did happen.
func (s *SocialService) notify(ctx context.Context, n *model.Notification) {
	if err := s.notifier.Notify(ctx, n); err != nil {
		s.logger.Error("failed to dispatch notification",
			slog.String("type", string(n.Type)),
			slog.String("userID", n.UserID),
			slog.String("error", err.Error()),
		)
	}
}
