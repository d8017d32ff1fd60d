// App inventory logic: device sync, visibility sharing (with the follower
// fan-out that powers the "new app" feed), the lazily built catalog, and
// comments.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/appdeck/internal/apperror"
	"github.com/sakif/appdeck/internal/model"
	"github.com/sakif/appdeck/internal/repository"
)

const (
	MaxPackageNameLength = 255
	MaxAppNameLength     = 200
	MaxCommentLength     = 2000
	MaxSyncBatchSize     = 2000
)

// AppService handles everything that hangs off installed apps.
type AppService struct {
	apps     repository.AppRepository
	catalog  repository.CatalogRepository
	comments repository.CommentRepository
	users    repository.UserRepository
	follows  repository.FollowRepository
	notifier Notifier
	trending TrendingConfig
	logger   *slog.Logger
}

// NewAppService creates an AppService.
func NewAppService(
	apps repository.AppRepository,
	catalog repository.CatalogRepository,
	comments repository.CommentRepository,
	users repository.UserRepository,
	follows repository.FollowRepository,
	notifier Notifier,
	trending TrendingConfig,
	logger *slog.Logger,
) *AppService {
	return &AppService{
		apps:     apps,
		catalog:  catalog,
		comments: comments,
		users:    users,
		follows:  follows,
		notifier: notifier,
		trending: trending.withDefaults(),
		logger:   logger,
	}
}

// SyncApp is one app in a device snapshot.
type SyncApp struct {
	PackageName string    `json:"packageName"`
	AppName     string    `json:"appName"`
	IconURL     string    `json:"iconUrl"`
	Platform    string    `json:"platform"`
	InstalledAt time.Time `json:"installedAt"`
}

// SyncResult summarizes one sync call.
type SyncResult struct {
	Synced  int `json:"synced"`
	Removed int `json:"removed"`
}

// Sync reconciles the server's view of a user's device with a full
// snapshot: every reported app is upserted, every stored app missing from
// the snapshot is deleted. Survivors keep their visibility and discover
// count — re-syncing must never silently unshare an app.
//
// New rows start hidden. Sharing is an explicit act through the visibility
// endpoint, never a side effect of installing something.
func (s *AppService) Sync(ctx context.Context, userID string, snapshot []SyncApp) (*SyncResult, error) {
	if len(snapshot) > MaxSyncBatchSize {
		return nil, apperror.ValidationFailed("apps",
			fmt.Sprintf("sync payload must contain %d apps or fewer", MaxSyncBatchSize))
	}

	reported := make(map[string]struct{}, len(snapshot))
	for i, app := range snapshot {
		pkg := strings.TrimSpace(app.PackageName)
		if pkg == "" || len(pkg) > MaxPackageNameLength {
			return nil, apperror.ValidationFailed("packageName",
				fmt.Sprintf("apps[%d]: a package name of 1-%d characters is required", i, MaxPackageNameLength))
		}
		if app.Platform != "android" && app.Platform != "ios" {
			return nil, apperror.ValidationFailed("platform",
				fmt.Sprintf("apps[%d]: platform must be \"android\" or \"ios\"", i))
		}
		if len(app.AppName) > MaxAppNameLength {
			return nil, apperror.ValidationFailed("appName",
				fmt.Sprintf("apps[%d]: app name must be %d characters or less", i, MaxAppNameLength))
		}
		reported[pkg] = struct{}{}
	}

	existing, err := s.apps.ListAppsByUser(ctx, userID, false)
	if err != nil {
		return nil, fmt.Errorf("service/app: listing apps before sync: %w", err)
	}

	result := &SyncResult{}
	for _, app := range snapshot {
		row := &model.InstalledApp{
			UserID:      userID,
			PackageName: strings.TrimSpace(app.PackageName),
			AppName:     strings.TrimSpace(app.AppName),
			IconURL:     app.IconURL,
			Platform:    app.Platform,
			Visible:     false,
			InstalledAt: app.InstalledAt,
		}
		if err := s.apps.UpsertApp(ctx, row); err != nil {
			return nil, fmt.Errorf("service/app: syncing %s: %w", row.PackageName, err)
		}
		result.Synced++
	}

	for _, row := range existing {
		if _, ok := reported[row.PackageName]; ok {
			continue
		}
		if err := s.apps.DeleteApp(ctx, userID, row.PackageName); err != nil {
			return nil, fmt.Errorf("service/app: removing uninstalled %s: %w", row.PackageName, err)
		}
		result.Removed++
	}

	s.logger.Info("apps synced",
		slog.String("userID", userID),
		slog.Int("synced", result.Synced),
		slog.Int("removed", result.Removed),
	)
	return result, nil
}

// VisibilityChange is one requested flip in a bulk visibility update.
type VisibilityChange struct {
	PackageName string `json:"packageName"`
	Visible     bool   `json:"visible"`
}

// VisibilityResult reports what happened to one package.
type VisibilityResult struct {
	PackageName       string `json:"packageName"`
	Visible           bool   `json:"visible"`
	Changed           bool   `json:"changed"`
	NotifiedFollowers int    `json:"notifiedFollowers,omitempty"`
}

// SetVisibilityBulk applies a batch of visibility flips.
//
// Only genuine false→true transitions notify: the stored state is diffed
// per package, so re-sharing an already-visible app (or hiding a hidden
// one) is a no-op with Changed=false. Each newly visible app notifies every
// follower and bumps the app's discover count by the number of followers
// notified. A failed notification to one follower never stops the rest.
func (s *AppService) SetVisibilityBulk(ctx context.Context, userID string, changes []VisibilityChange) ([]VisibilityResult, error) {
	if len(changes) == 0 {
		return nil, apperror.ValidationFailed("changes", "at least one visibility change is required")
	}

	owner, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/app: loading owner: %w", err)
	}

	// One follower fetch serves the whole batch.
	var followerIDs []string
	results := make([]VisibilityResult, 0, len(changes))

	for _, change := range changes {
		pkg := strings.TrimSpace(change.PackageName)
		if pkg == "" {
			return nil, apperror.ValidationFailed("packageName", "package name is required")
		}

		app, err := s.apps.GetApp(ctx, userID, pkg)
		if err != nil {
			if errors.Is(err, apperror.ErrNotFound) {
				return nil, apperror.NotFound("installed app", pkg)
			}
			return nil, fmt.Errorf("service/app: loading %s: %w", pkg, err)
		}

		if app.Visible == change.Visible {
			results = append(results, VisibilityResult{PackageName: pkg, Visible: app.Visible})
			continue
		}

		if err := s.apps.SetVisibility(ctx, userID, pkg, change.Visible); err != nil {
			return nil, fmt.Errorf("service/app: setting visibility of %s: %w", pkg, err)
		}
		result := VisibilityResult{PackageName: pkg, Visible: change.Visible, Changed: true}

		if change.Visible {
			if followerIDs == nil {
				followerIDs, err = s.follows.FollowerIDs(ctx, userID)
				if err != nil {
					return nil, fmt.Errorf("service/app: listing followers: %w", err)
				}
			}
			result.NotifiedFollowers = s.notifyNewApp(ctx, owner, app, followerIDs)
		}

		results = append(results, result)
	}

	return results, nil
}

// notifyNewApp fans a "new app" notification out to the owner's followers
// and bumps the app's discover count by the number actually notified.
func (s *AppService) notifyNewApp(ctx context.Context, owner *model.User, app *model.InstalledApp, followerIDs []string) int {
	ownerName := owner.Summary().Name()
	notified := 0
	for _, followerID := range followerIDs {
		n := &model.Notification{
			UserID:        followerID,
			Type:          model.NotificationNewApp,
			Content:       fmt.Sprintf("%s shared a new app: %s", ownerName, app.AppName),
			RelatedUserID: owner.ID,
			RelatedAppID:  app.ID,
		}
		if err := s.notifier.Notify(ctx, n); err != nil {
			s.logger.Error("failed to notify follower of new app",
				slog.String("followerID", followerID),
				slog.String("packageName", app.PackageName),
				slog.String("error", err.Error()),
			)
			continue
		}
		notified++
	}

	if notified > 0 {
		if err := s.apps.AddDiscoverCount(ctx, owner.ID, app.PackageName, int64(notified)); err != nil {
			// The counter is approximate; losing an increment isn't worth
			// failing the whole flip.
			s.logger.Error("failed to bump discover count",
				slog.String("packageName", app.PackageName),
				slog.String("error", err.Error()),
			)
		}
	}
	return notified
}

// AppsOfUser lists a user's apps, enforcing profile privacy.
//
// Owners see everything including hidden rows. Everyone else sees visible
// rows only, and for a private profile only accepted followers see even
// those.
func (s *AppService) AppsOfUser(ctx context.Context, viewerID, targetID string) ([]model.InstalledApp, error) {
	if viewerID == targetID {
		return s.apps.ListAppsByUser(ctx, targetID, false)
	}

	target, err := s.users.GetUserByID(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if target.Private {
		following, err := s.follows.FollowExists(ctx, viewerID, targetID)
		if err != nil {
			return nil, fmt.Errorf("service/app: checking follow: %w", err)
		}
		if !following {
			return nil, apperror.Forbidden("this profile is private")
		}
	}

	return s.apps.ListAppsByUser(ctx, targetID, true)
}

// AppDetail is the catalog view of one package.
type AppDetail struct {
	Entry        model.AppCatalogEntry `json:"entry"`
	InstallCount int                   `json:"installCount"`
	IsTrending   bool                  `json:"isTrending"`
}

// Detail returns the catalog entry for a package, creating it on first
// touch, along with its lifetime visible-install count. IsTrending here
// uses the lifetime count against the configured threshold, unlike the
// trending list which is windowed.
func (s *AppService) Detail(ctx context.Context, packageName string) (*AppDetail, error) {
	entry, err := s.ensureCatalogEntry(ctx, packageName)
	if err != nil {
		return nil, err
	}

	count, err := s.apps.LifetimeInstallCount(ctx, packageName)
	if err != nil {
		return nil, fmt.Errorf("service/app: counting installs of %s: %w", packageName, err)
	}

	return &AppDetail{
		Entry:        *entry,
		InstallCount: count,
		IsTrending:   count >= s.trending.MinInstalls,
	}, nil
}

// ensureCatalogEntry returns the catalog row for a package, creating it
// lazily from whichever installed row we can find. A package nobody has
// installed still gets an entry (bare package name) so comments on it have
// somewhere to live.
func (s *AppService) ensureCatalogEntry(ctx context.Context, packageName string) (*model.AppCatalogEntry, error) {
	packageName = strings.TrimSpace(packageName)
	if packageName == "" {
		return nil, apperror.ValidationFailed("packageName", "package name is required")
	}

	entry, err := s.catalog.GetCatalogEntry(ctx, packageName)
	if err == nil {
		return entry, nil
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("service/app: loading catalog entry %s: %w", packageName, err)
	}

	entry = &model.AppCatalogEntry{
		PackageName: packageName,
		AppName:     packageName,
	}
	if seed, err := s.apps.AnyByPackage(ctx, packageName); err == nil {
		entry.AppName = seed.AppName
		entry.IconURL = seed.IconURL
	} else if !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("service/app: seeding catalog entry %s: %w", packageName, err)
	}

	if err := s.catalog.CreateCatalogEntry(ctx, entry); err != nil {
		// Two requests may race to create the same entry; the loser reads
		// the winner's row.
		if errors.Is(err, apperror.ErrConflict) {
			return s.catalog.GetCatalogEntry(ctx, packageName)
		}
		return nil, fmt.Errorf("service/app: creating catalog entry %s: %w", packageName, err)
	}
	return entry, nil
}

// Comments lists comments on a package, newest first.
func (s *AppService) Comments(ctx context.Context, packageName string, limit, offset int) ([]model.Comment, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	comments, err := s.comments.ListCommentsByPackage(ctx, strings.TrimSpace(packageName), repository.ListOptions{
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		return nil, fmt.Errorf("service/app: listing comments: %w", err)
	}
	return comments, nil
}

// AddComment posts a comment on a package, creating the catalog entry if
// this is the first activity the package has seen.
func (s *AppService) AddComment(ctx context.Context, userID, packageName, body string) (*model.Comment, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apperror.ValidationFailed("body", "comment body is required")
	}
	if len(body) > MaxCommentLength {
		return nil, apperror.ValidationFailed("body",
			fmt.Sprintf("comment must be %d characters or less", MaxCommentLength))
	}

	entry, err := s.ensureCatalogEntry(ctx, packageName)
	if err != nil {
		return nil, err
	}

	comment := &model.Comment{
		PackageName: entry.PackageName,
		UserID:      userID,
		Body:        body,
	}
	if err := s.comments.CreateComment(ctx, comment); err != nil {
		return nil, fmt.Errorf("service/app: creating comment: %w", err)
	}

	if author, err := s.users.GetUserByID(ctx, userID); err == nil {
		comment.Author = author.Summary()
	}

	s.logger.Info("comment posted",
		slog.String("userID", userID),
		slog.String("packageName", entry.PackageName),
	)
	return comment, nil
}
