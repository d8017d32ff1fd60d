package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/appdeck/internal/apperror"
	"github.com/sakif/appdeck/internal/model"
	"github.com/sakif/appdeck/internal/repository"
)

const (
	MaxDisplayNameLength = 50
	MaxBioLength         = 500
)

// ProfileService serves public profile views and owner profile edits.
type ProfileService struct {
	users   repository.UserRepository
	follows repository.FollowRepository
	logger  *slog.Logger
}

// NewProfileService creates a ProfileService.
func NewProfileService(users repository.UserRepository, follows repository.FollowRepository, logger *slog.Logger) *ProfileService {
	return &ProfileService{users: users, follows: follows, logger: logger}
}

// ProfileView is the public view of a user. The summary fields, bio and
// counts are visible to everyone — the private flag gates apps and follower
// lists, not the profile's existence.
type ProfileView struct {
	User           model.UserSummary `json:"user"`
	Bio            string            `json:"bio"`
	Private        bool              `json:"private"`
	FollowerCount  int               `json:"followerCount"`
	FollowingCount int               `json:"followingCount"`
	IsFollowing    bool              `json:"isFollowing"`
	IsSelf         bool              `json:"isSelf"`
}

// Get returns the profile view of targetID as seen by viewerID.
func (s *ProfileService) Get(ctx context.Context, viewerID, targetID string) (*ProfileView, error) {
	target, err := s.users.GetUserByID(ctx, targetID)
	if err != nil {
		return nil, err
	}

	followers, err := s.follows.Followers(ctx, targetID)
	if err != nil {
		return nil, fmt.Errorf("service/profile: listing followers: %w", err)
	}
	following, err := s.follows.Following(ctx, targetID)
	if err != nil {
		return nil, fmt.Errorf("service/profile: listing following: %w", err)
	}

	view := &ProfileView{
		User:           target.Summary(),
		Bio:            target.Bio,
		Private:        target.Private,
		FollowerCount:  len(followers),
		FollowingCount: len(following),
		IsSelf:         viewerID == targetID,
	}
	if !view.IsSelf && viewerID != "" {
		view.IsFollowing, err = s.follows.FollowExists(ctx, viewerID, targetID)
		if err != nil {
			return nil, fmt.Errorf("service/profile: checking follow: %w", err)
		}
	}
	return view, nil
}

// UpdateProfileInput carries a partial profile edit; nil fields are left
// untouched.
type UpdateProfileInput struct {
	DisplayName *string `json:"displayName"`
	Bio         *string `json:"bio"`
	AvatarURL   *string `json:"avatarUrl"`
	Private     *bool   `json:"private"`
}

// Update applies a partial edit to the owner's profile and returns the
// updated record. Flipping Private to false takes effect immediately;
// pending friend requests stay pending and can still be accepted.
func (s *ProfileService) Update(ctx context.Context, userID string, input UpdateProfileInput) (*model.User, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if input.DisplayName != nil {
		name := strings.TrimSpace(*input.DisplayName)
		if len(name) > MaxDisplayNameLength {
			return nil, apperror.ValidationFailed("displayName",
				fmt.Sprintf("display name must be %d characters or less", MaxDisplayNameLength))
		}
		user.DisplayName = name
	}
	if input.Bio != nil {
		bio := strings.TrimSpace(*input.Bio)
		if len(bio) > MaxBioLength {
			return nil, apperror.ValidationFailed("bio",
				fmt.Sprintf("bio must be %d characters or less", MaxBioLength))
		}
		user.Bio = bio
	}
	if input.AvatarURL != nil {
		user.AvatarURL = strings.TrimSpace(*input.AvatarURL)
	}
	if input.Private != nil {
		user.Private = *input.Private
	}

	if err := s.users.UpdateProfile(ctx, user); err != nil {
		return nil, fmt.Errorf("service/profile: updating profile: %w", err)
	}

	s.logger.Info("profile updated", slog.String("userID", userID))
	return user, nil
}
