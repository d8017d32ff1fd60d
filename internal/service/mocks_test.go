package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/sakif/appdeck/internal/apperror"
	"github.com/sakif/appdeck/internal/live"
	"github.com/sakif/appdeck/internal/model"
	"github.com/sakif/appdeck/internal/repository"
)

// =============================================================================
// MOCK STORE
// =============================================================================
//
// One in-memory struct implements every repository interface, the same way
// the real *sqlite.DB does. Hand-written rather than generated so failure
// injection and assertions stay obvious.

type mockStore struct {
	users    map[string]*model.User
	apps     map[string]map[string]*model.InstalledApp // userID → package → row
	catalog  map[string]*model.AppCatalogEntry
	follows  map[string]map[string]bool // followerID → followingID
	requests map[string]*model.FriendRequest
	likes    map[string]bool // "liker|liked"
	comments []*model.Comment
	notifs   []*model.Notification
	seq      int

	failCreateNotification error
}

func newMockStore() *mockStore {
	return &mockStore{
		users:    make(map[string]*model.User),
		apps:     make(map[string]map[string]*model.InstalledApp),
		catalog:  make(map[string]*model.AppCatalogEntry),
		follows:  make(map[string]map[string]bool),
		requests: make(map[string]*model.FriendRequest),
		likes:    make(map[string]bool),
	}
}

func (m *mockStore) nextID() string {
	m.seq++
	return fmt.Sprintf("id-%d", m.seq)
}

// --- seeding helpers ---

func (m *mockStore) addUser(id, username string, private bool) *model.User {
	u := &model.User{ID: id, Username: username, Email: username + "@example.com", Private: private}
	m.users[id] = u
	return u
}

func (m *mockStore) addApp(userID, pkg, name string, visible bool, installedAt time.Time) *model.InstalledApp {
	if m.apps[userID] == nil {
		m.apps[userID] = make(map[string]*model.InstalledApp)
	}
	app := &model.InstalledApp{
		ID:          m.nextID(),
		UserID:      userID,
		PackageName: pkg,
		AppName:     name,
		Platform:    "android",
		Visible:     visible,
		InstalledAt: installedAt,
		CreatedAt:   installedAt,
	}
	m.apps[userID][pkg] = app
	return app
}

func (m *mockStore) addFollow(followerID, followingID string) {
	if m.follows[followerID] == nil {
		m.follows[followerID] = make(map[string]bool)
	}
	m.follows[followerID][followingID] = true
}

// --- UserRepository ---

func (m *mockStore) CreateUser(_ context.Context, user *model.User) error {
	for _, u := range m.users {
		if u.Username == user.Username || u.Email == user.Email {
			return apperror.Conflict("user", user.Username)
		}
	}
	user.ID = m.nextID()
	user.CreatedAt = time.Now()
	m.users[user.ID] = user
	return nil
}

func (m *mockStore) GetUserByID(_ context.Context, id string) (*model.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	copied := *u
	return &copied, nil
}

func (m *mockStore) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, apperror.NotFound("user", email)
}

func (m *mockStore) GetUserByUsername(_ context.Context, username string) (*model.User, error) {
	for _, u := range m.users {
		if u.Username == username {
			copied := *u
			return &copied, nil
		}
	}
	return nil, apperror.NotFound("user", username)
}

func (m *mockStore) UpsertGitHub(_ context.Context, user *model.User) error {
	for _, u := range m.users {
		if u.GitHubID == user.GitHubID {
			u.Email = user.Email
			u.AvatarURL = user.AvatarURL
			*user = *u
			return nil
		}
	}
	user.ID = m.nextID()
	m.users[user.ID] = user
	return nil
}

func (m *mockStore) UpdateProfile(_ context.Context, user *model.User) error {
	stored, ok := m.users[user.ID]
	if !ok {
		return apperror.NotFound("user", user.ID)
	}
	stored.DisplayName = user.DisplayName
	stored.AvatarURL = user.AvatarURL
	stored.Bio = user.Bio
	stored.Private = user.Private
	return nil
}

func (m *mockStore) SummariesByIDs(_ context.Context, ids []string) (map[string]model.UserSummary, error) {
	result := make(map[string]model.UserSummary)
	for _, id := range ids {
		if u, ok := m.users[id]; ok {
			result[id] = u.Summary()
		}
	}
	return result, nil
}

// --- AppRepository ---

func (m *mockStore) UpsertApp(_ context.Context, app *model.InstalledApp) error {
	if m.apps[app.UserID] == nil {
		m.apps[app.UserID] = make(map[string]*model.InstalledApp)
	}
	if existing, ok := m.apps[app.UserID][app.PackageName]; ok {
		existing.AppName = app.AppName
		existing.IconURL = app.IconURL
		existing.Platform = app.Platform
		*app = *existing
		return nil
	}
	app.ID = m.nextID()
	if app.InstalledAt.IsZero() {
		app.InstalledAt = time.Now()
	}
	app.CreatedAt = time.Now()
	stored := *app
	m.apps[app.UserID][app.PackageName] = &stored
	return nil
}

func (m *mockStore) DeleteApp(_ context.Context, userID, packageName string) error {
	if _, ok := m.apps[userID][packageName]; !ok {
		return apperror.NotFound("installed app", packageName)
	}
	delete(m.apps[userID], packageName)
	return nil
}

func (m *mockStore) GetApp(_ context.Context, userID, packageName string) (*model.InstalledApp, error) {
	app, ok := m.apps[userID][packageName]
	if !ok {
		return nil, apperror.NotFound("installed app", packageName)
	}
	copied := *app
	return &copied, nil
}

func (m *mockStore) ListAppsByUser(_ context.Context, userID string, visibleOnly bool) ([]model.InstalledApp, error) {
	var result []model.InstalledApp
	for _, app := range m.apps[userID] {
		if visibleOnly && !app.Visible {
			continue
		}
		result = append(result, *app)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].PackageName < result[j].PackageName })
	return result, nil
}

func (m *mockStore) VisiblePackages(_ context.Context, userID string) ([]string, error) {
	var pkgs []string
	for pkg, app := range m.apps[userID] {
		if app.Visible {
			pkgs = append(pkgs, pkg)
		}
	}
	sort.Strings(pkgs)
	return pkgs, nil
}

func (m *mockStore) SetVisibility(_ context.Context, userID, packageName string, visible bool) error {
	app, ok := m.apps[userID][packageName]
	if !ok {
		return apperror.NotFound("installed app", packageName)
	}
	app.Visible = visible
	return nil
}

func (m *mockStore) AddDiscoverCount(_ context.Context, userID, packageName string, delta int64) error {
	app, ok := m.apps[userID][packageName]
	if !ok {
		return apperror.NotFound("installed app", packageName)
	}
	app.DiscoverCount += delta
	return nil
}

func (m *mockStore) SharedVisibleApps(_ context.Context, viewerID string, packages []string) ([]repository.SharedApp, error) {
	wanted := make(map[string]bool, len(packages))
	for _, pkg := range packages {
		wanted[pkg] = true
	}

	var hits []repository.SharedApp
	for userID, apps := range m.apps {
		if userID == viewerID {
			continue
		}
		owner, ok := m.users[userID]
		if ok && owner.Private && !m.follows[viewerID][userID] {
			continue
		}
		for pkg, app := range apps {
			if app.Visible && wanted[pkg] {
				hits = append(hits, repository.SharedApp{UserID: userID, PackageName: pkg})
			}
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].UserID != hits[j].UserID {
			return hits[i].UserID < hits[j].UserID
		}
		return hits[i].PackageName < hits[j].PackageName
	})
	return hits, nil
}

func (m *mockStore) VisibleAppsOfUsers(_ context.Context, userIDs []string) ([]model.InstalledApp, error) {
	var result []model.InstalledApp
	for _, userID := range userIDs {
		for _, app := range m.apps[userID] {
			if app.Visible {
				result = append(result, *app)
			}
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].UserID != result[j].UserID {
			return result[i].UserID < result[j].UserID
		}
		return result[i].PackageName < result[j].PackageName
	})
	return result, nil
}

func (m *mockStore) Trending(_ context.Context, since time.Time, minInstalls int) ([]model.TrendingApp, error) {
	type agg struct {
		count int
		name  string
		icon  string
	}
	counts := make(map[string]*agg)
	for _, apps := range m.apps {
		for pkg, app := range apps {
			if !app.Visible || app.InstalledAt.Before(since) {
				continue
			}
			a, ok := counts[pkg]
			if !ok {
				a = &agg{name: app.AppName, icon: app.IconURL}
				counts[pkg] = a
			}
			a.count++
		}
	}

	var result []model.TrendingApp
	for pkg, a := range counts {
		if a.count >= minInstalls {
			result = append(result, model.TrendingApp{
				PackageName:  pkg,
				AppName:      a.name,
				IconURL:      a.icon,
				InstallCount: a.count,
				IsTrending:   true,
			})
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].InstallCount != result[j].InstallCount {
			return result[i].InstallCount > result[j].InstallCount
		}
		return result[i].PackageName < result[j].PackageName
	})
	return result, nil
}

func (m *mockStore) LifetimeInstallCount(_ context.Context, packageName string) (int, error) {
	count := 0
	for _, apps := range m.apps {
		if app, ok := apps[packageName]; ok && app.Visible {
			count++
		}
	}
	return count, nil
}

func (m *mockStore) AnyByPackage(_ context.Context, packageName string) (*model.InstalledApp, error) {
	var userIDs []string
	for userID := range m.apps {
		userIDs = append(userIDs, userID)
	}
	sort.Strings(userIDs)
	for _, userID := range userIDs {
		if app, ok := m.apps[userID][packageName]; ok {
			copied := *app
			return &copied, nil
		}
	}
	return nil, apperror.NotFound("installed app", packageName)
}

// --- CatalogRepository + CommentRepository ---

func (m *mockStore) CreateCatalogEntry(_ context.Context, entry *model.AppCatalogEntry) error {
	if _, ok := m.catalog[entry.PackageName]; ok {
		return apperror.Conflict("catalog entry", entry.PackageName)
	}
	entry.ID = m.nextID()
	entry.CreatedAt = time.Now()
	stored := *entry
	m.catalog[entry.PackageName] = &stored
	return nil
}

func (m *mockStore) GetCatalogEntry(_ context.Context, packageName string) (*model.AppCatalogEntry, error) {
	entry, ok := m.catalog[packageName]
	if !ok {
		return nil, apperror.NotFound("catalog entry", packageName)
	}
	copied := *entry
	return &copied, nil
}

func (m *mockStore) CreateComment(_ context.Context, comment *model.Comment) error {
	comment.ID = m.nextID()
	comment.CreatedAt = time.Now()
	stored := *comment
	m.comments = append(m.comments, &stored)
	return nil
}

func (m *mockStore) ListCommentsByPackage(_ context.Context, packageName string, opts repository.ListOptions) ([]model.Comment, error) {
	var result []model.Comment
	for i := len(m.comments) - 1; i >= 0; i-- { // newest first
		if m.comments[i].PackageName == packageName {
			c := *m.comments[i]
			if u, ok := m.users[c.UserID]; ok {
				c.Author = u.Summary()
			}
			result = append(result, c)
		}
	}
	if opts.Offset > 0 && opts.Offset < len(result) {
		result = result[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(result) {
		result = result[:opts.Limit]
	}
	return result, nil
}

// --- FollowRepository ---

func (m *mockStore) CreateFollow(_ context.Context, follow *model.Follow) error {
	if m.follows[follow.FollowerID][follow.FollowingID] {
		return apperror.Conflict("follow", follow.FollowingID)
	}
	follow.ID = m.nextID()
	follow.CreatedAt = time.Now()
	m.addFollow(follow.FollowerID, follow.FollowingID)
	return nil
}

func (m *mockStore) DeleteFollow(_ context.Context, followerID, followingID string) error {
	if !m.follows[followerID][followingID] {
		return apperror.NotFound("follow", followingID)
	}
	delete(m.follows[followerID], followingID)
	return nil
}

func (m *mockStore) FollowExists(_ context.Context, followerID, followingID string) (bool, error) {
	return m.follows[followerID][followingID], nil
}

func (m *mockStore) FollowerIDs(_ context.Context, userID string) ([]string, error) {
	var ids []string
	for followerID, targets := range m.follows {
		if targets[userID] {
			ids = append(ids, followerID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *mockStore) Followers(ctx context.Context, userID string) ([]model.UserSummary, error) {
	ids, _ := m.FollowerIDs(ctx, userID)
	return m.summaries(ids), nil
}

func (m *mockStore) Following(_ context.Context, userID string) ([]model.UserSummary, error) {
	var ids []string
	for targetID := range m.follows[userID] {
		ids = append(ids, targetID)
	}
	sort.Strings(ids)
	return m.summaries(ids), nil
}

func (m *mockStore) summaries(ids []string) []model.UserSummary {
	var result []model.UserSummary
	for _, id := range ids {
		if u, ok := m.users[id]; ok {
			result = append(result, u.Summary())
		}
	}
	return result
}

// --- FriendRequestRepository ---

func (m *mockStore) CreateFriendRequest(_ context.Context, req *model.FriendRequest) error {
	req.ID = m.nextID()
	req.Status = model.FriendRequestPending
	req.CreatedAt = time.Now()
	stored := *req
	m.requests[req.ID] = &stored
	return nil
}

func (m *mockStore) GetFriendRequestByID(_ context.Context, id string) (*model.FriendRequest, error) {
	req, ok := m.requests[id]
	if !ok {
		return nil, apperror.NotFound("friend request", id)
	}
	copied := *req
	if u, ok := m.users[req.FromUserID]; ok {
		copied.From = u.Summary()
	}
	return &copied, nil
}

func (m *mockStore) PendingExists(_ context.Context, fromUserID, toUserID string) (bool, error) {
	for _, req := range m.requests {
		if req.FromUserID == fromUserID && req.ToUserID == toUserID && req.Status == model.FriendRequestPending {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockStore) ListPendingRequests(_ context.Context, toUserID string) ([]model.FriendRequest, error) {
	var result []model.FriendRequest
	for _, req := range m.requests {
		if req.ToUserID == toUserID && req.Status == model.FriendRequestPending {
			copied := *req
			if u, ok := m.users[req.FromUserID]; ok {
				copied.From = u.Summary()
			}
			result = append(result, copied)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *mockStore) SetRequestStatus(_ context.Context, id string, status model.FriendRequestStatus, respondedAt time.Time) error {
	req, ok := m.requests[id]
	if !ok || req.Status != model.FriendRequestPending {
		return apperror.NotFound("pending friend request", id)
	}
	req.Status = status
	req.RespondedAt = &respondedAt
	return nil
}

// --- ProfileLikeRepository ---

func (m *mockStore) CreateProfileLike(_ context.Context, likerID, likedUserID string) error {
	key := likerID + "|" + likedUserID
	if m.likes[key] {
		return apperror.Conflict("profile like", likedUserID)
	}
	m.likes[key] = true
	return nil
}

// --- NotificationRepository ---

func (m *mockStore) CreateNotification(_ context.Context, n *model.Notification) error {
	if m.failCreateNotification != nil {
		return m.failCreateNotification
	}
	n.ID = m.nextID()
	n.CreatedAt = time.Now()
	stored := *n
	m.notifs = append(m.notifs, &stored)
	return nil
}

func (m *mockStore) ListNotifications(_ context.Context, userID string, opts repository.ListOptions) ([]model.Notification, error) {
	var result []model.Notification
	for i := len(m.notifs) - 1; i >= 0; i-- { // newest first
		if m.notifs[i].UserID == userID {
			result = append(result, *m.notifs[i])
		}
	}
	if opts.Offset > 0 && opts.Offset < len(result) {
		result = result[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(result) {
		result = result[:opts.Limit]
	}
	return result, nil
}

func (m *mockStore) UnreadCount(_ context.Context, userID string) (int, error) {
	count := 0
	for _, n := range m.notifs {
		if n.UserID == userID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (m *mockStore) MarkRead(_ context.Context, id, userID string) error {
	for _, n := range m.notifs {
		if n.ID == id && n.UserID == userID {
			n.IsRead = true
			return nil
		}
	}
	return apperror.NotFound("notification", id)
}

func (m *mockStore) MarkAllRead(_ context.Context, userID string) error {
	for _, n := range m.notifs {
		if n.UserID == userID {
			n.IsRead = true
		}
	}
	return nil
}

// notificationsFor returns the stored notifications for one user, oldest
// first, for assertions.
func (m *mockStore) notificationsFor(userID string) []*model.Notification {
	var result []*model.Notification
	for _, n := range m.notifs {
		if n.UserID == userID {
			result = append(result, n)
		}
	}
	return result
}

// compile-time checks that the mock really covers every interface
var (
	_ repository.UserRepository          = (*mockStore)(nil)
	_ repository.AppRepository           = (*mockStore)(nil)
	_ repository.CatalogRepository       = (*mockStore)(nil)
	_ repository.FollowRepository        = (*mockStore)(nil)
	_ repository.FriendRequestRepository = (*mockStore)(nil)
	_ repository.NotificationRepository  = (*mockStore)(nil)
	_ repository.ProfileLikeRepository   = (*mockStore)(nil)
	_ repository.CommentRepository       = (*mockStore)(nil)
)

// =============================================================================
// MOCK BROADCASTER + NOTIFIER
// =============================================================================

type mockBroadcaster struct {
	sent map[string][]live.Message
}

func newMockBroadcaster() *mockBroadcaster {
	return &mockBroadcaster{sent: make(map[string][]live.Message)}
}

func (b *mockBroadcaster) BroadcastToUser(userID string, msg live.Message) int {
	b.sent[userID] = append(b.sent[userID], msg)
	return 1
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newNotifier wires a real NotificationService over the mock store so the
// other service tests exercise the persist-then-push path for real.
func newNotifier(store *mockStore, broadcaster *mockBroadcaster) *NotificationService {
	return NewNotificationService(store, broadcaster, testLogger())
}

// containsString is a tiny helper for message assertions.
func containsString(haystack, needle string) bool {
	return strings.Contains(haystack, needle)
}
