// Package repository defines the storage interfaces the service layer
// programs against. The concrete SQLite implementation lives in
// repository/sqlite; tests substitute in-memory mocks.
//
// All interfaces are implemented by the same *sqlite.DB, so the method
// names are domain-qualified (CreateUser, CreateFollow, ...) rather than
// overloading Create per interface.
package repository

import (
	"context"
	"time"

	"github.com/sakif/appdeck/internal/model"
)

// ListOptions carries pagination for list queries.
type ListOptions struct {
	Limit  int
	Offset int
}

// SharedApp is one (user, package) hit from the overlap query: some other
// user has one of the viewer's visible packages visible too.
type SharedApp struct {
	UserID      string
	PackageName string
}

// UserRepository manages user accounts.
type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	// UpsertGitHub inserts or refreshes an account keyed by its GitHub ID,
	// populating user.ID with the existing internal ID on update.
	UpsertGitHub(ctx context.Context, user *model.User) error
	// UpdateProfile persists displayName, avatarURL, bio and the private flag.
	UpdateProfile(ctx context.Context, user *model.User) error
	SummariesByIDs(ctx context.Context, ids []string) (map[string]model.UserSummary, error)
}

// AppRepository manages installed-app rows and the derived queries the
// recommendation and trending engines run over them.
type AppRepository interface {
	UpsertApp(ctx context.Context, app *model.InstalledApp) error
	DeleteApp(ctx context.Context, userID, packageName string) error
	GetApp(ctx context.Context, userID, packageName string) (*model.InstalledApp, error)
	ListAppsByUser(ctx context.Context, userID string, visibleOnly bool) ([]model.InstalledApp, error)
	// VisiblePackages returns just the package names the user has visible.
	VisiblePackages(ctx context.Context, userID string) ([]string, error)
	SetVisibility(ctx context.Context, userID, packageName string, visible bool) error
	// AddDiscoverCount bumps the approximate reach counter on one row.
	AddDiscoverCount(ctx context.Context, userID, packageName string, delta int64) error

	// SharedVisibleApps finds every other user holding at least one of the
	// given packages visible, one row per (user, package). Private users the
	// viewer doesn't follow are excluded at the query level.
	SharedVisibleApps(ctx context.Context, viewerID string, packages []string) ([]SharedApp, error)
	// VisibleAppsOfUsers returns all visible rows belonging to the given users.
	VisibleAppsOfUsers(ctx context.Context, userIDs []string) ([]model.InstalledApp, error)
	// Trending groups visible rows installed since the cutoff by package and
	// returns those with at least minInstalls, ordered by count descending
	// (package name breaks ties).
	Trending(ctx context.Context, since time.Time, minInstalls int) ([]model.TrendingApp, error)
	// LifetimeInstallCount counts all visible rows for a package, ignoring
	// any window. Used by the detail view's trending flag.
	LifetimeInstallCount(ctx context.Context, packageName string) (int, error)
	// AnyByPackage returns some user's row for the package, if one exists.
	// Used to seed catalog entries.
	AnyByPackage(ctx context.Context, packageName string) (*model.InstalledApp, error)
}

// CatalogRepository manages canonical per-package metadata.
type CatalogRepository interface {
	CreateCatalogEntry(ctx context.Context, entry *model.AppCatalogEntry) error
	GetCatalogEntry(ctx context.Context, packageName string) (*model.AppCatalogEntry, error)
}

// FollowRepository manages the directed follow graph.
type FollowRepository interface {
	CreateFollow(ctx context.Context, follow *model.Follow) error
	DeleteFollow(ctx context.Context, followerID, followingID string) error
	FollowExists(ctx context.Context, followerID, followingID string) (bool, error)
	// FollowerIDs returns the IDs of everyone following the given user.
	FollowerIDs(ctx context.Context, userID string) ([]string, error)
	Followers(ctx context.Context, userID string) ([]model.UserSummary, error)
	Following(ctx context.Context, userID string) ([]model.UserSummary, error)
}

// FriendRequestRepository manages pending requests to private profiles.
type FriendRequestRepository interface {
	CreateFriendRequest(ctx context.Context, req *model.FriendRequest) error
	GetFriendRequestByID(ctx context.Context, id string) (*model.FriendRequest, error)
	// PendingExists reports whether a pending request already exists for the pair.
	PendingExists(ctx context.Context, fromUserID, toUserID string) (bool, error)
	ListPendingRequests(ctx context.Context, toUserID string) ([]model.FriendRequest, error)
	SetRequestStatus(ctx context.Context, id string, status model.FriendRequestStatus, respondedAt time.Time) error
}

// NotificationRepository manages persisted notifications.
type NotificationRepository interface {
	CreateNotification(ctx context.Context, n *model.Notification) error
	ListNotifications(ctx context.Context, userID string, opts ListOptions) ([]model.Notification, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
	// MarkRead flips is_read on one notification, enforcing ownership.
	MarkRead(ctx context.Context, id, userID string) error
	MarkAllRead(ctx context.Context, userID string) error
}

// ProfileLikeRepository records one-time profile likes.
type ProfileLikeRepository interface {
	// CreateProfileLike inserts a like; returns apperror.ErrConflict if the
	// pair already exists.
	CreateProfileLike(ctx context.Context, likerID, likedUserID string) error
}

// CommentRepository manages comments on catalog entries.
type CommentRepository interface {
	CreateComment(ctx context.Context, comment *model.Comment) error
	ListCommentsByPackage(ctx context.Context, packageName string, opts ListOptions) ([]model.Comment, error)
}
