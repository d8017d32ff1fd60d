package service

import (
	"context"
	"testing"
	"time"
)

func newRecommendService(store *mockStore) *RecommendService {
	return NewRecommendService(store, store, TrendingConfig{}, testLogger())
}

// seedOverlap builds the standard fixture:
//
//	viewer   shares a, b, c (all visible)
//	close    shares all three and also has "new.app" visible  → overlap 3
//	distant  shares only a and has "new.app" + "other.app"    → overlap 1
func seedOverlap(store *mockStore) {
	now := time.Now()
	store.addUser("u-viewer", "viewer", false)
	store.addUser("u-close", "close", false)
	store.addUser("u-distant", "distant", false)

	for _, pkg := range []string{"com.a", "com.b", "com.c"} {
		store.addApp("u-viewer", pkg, pkg, true, now)
		store.addApp("u-close", pkg, pkg, true, now)
	}
	store.addApp("u-distant", "com.a", "com.a", true, now)

	store.addApp("u-close", "new.app", "NewApp", true, now)
	store.addApp("u-distant", "new.app", "NewApp", true, now)
	store.addApp("u-distant", "other.app", "OtherApp", true, now)
}

// =============================================================================
// COMPOSER
// =============================================================================

func TestRecommend_ScoresAndRanks(t *testing.T) {
	store := newMockStore()
	seedOverlap(store)
	svc := newRecommendService(store)

	result, err := svc.Recommend(context.Background(), "u-viewer")
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	if result.FallbackUsed {
		t.Fatal("FallbackUsed = true with overlap signal present")
	}
	if len(result.Recommendations) != 2 {
		t.Fatalf("got %d recommendations, want 2: %+v", len(result.Recommendations), result.Recommendations)
	}

	first, second := result.Recommendations[0], result.Recommendations[1]

	// new.app is held by both neighbors: score 3+1, best overlap 3 of 3
	// visible apps → matchScore 100.
	if first.PackageName != "new.app" {
		t.Errorf("first recommendation = %s, want new.app", first.PackageName)
	}
	if first.Score != 4 {
		t.Errorf("new.app score = %d, want 4", first.Score)
	}
	if first.MatchScore != 100 {
		t.Errorf("new.app matchScore = %d, want 100", first.MatchScore)
	}
	if len(first.SharedUsers) != 2 {
		t.Fatalf("new.app sharedUsers = %d, want 2", len(first.SharedUsers))
	}
	// Strongest neighbor first.
	if first.SharedUsers[0].ID != "u-close" {
		t.Errorf("first shared user = %s, want u-close", first.SharedUsers[0].ID)
	}
	if first.Reason != "2 similar people use this" {
		t.Errorf("new.app reason = %q", first.Reason)
	}

	// other.app is held only by the distant neighbor: score 1, best 1 of 3
	// → round(33.3) = 33.
	if second.PackageName != "other.app" {
		t.Errorf("second recommendation = %s, want other.app", second.PackageName)
	}
	if second.Score != 1 {
		t.Errorf("other.app score = %d, want 1", second.Score)
	}
	if second.MatchScore != 33 {
		t.Errorf("other.app matchScore = %d, want 33", second.MatchScore)
	}
	if second.Reason != "distant also uses this" {
		t.Errorf("other.app reason = %q", second.Reason)
	}
}

func TestRecommend_ExcludesInstalledEvenWhenHidden(t *testing.T) {
	store := newMockStore()
	seedOverlap(store)
	// The viewer has new.app installed but hidden — recommending it back
	// would be pointless.
	store.addApp("u-viewer", "new.app", "NewApp", false, time.Now())
	svc := newRecommendService(store)

	result, err := svc.Recommend(context.Background(), "u-viewer")
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	for _, rec := range result.Recommendations {
		if rec.PackageName == "new.app" {
			t.Error("recommended an app the viewer already has installed")
		}
	}
}

func TestRecommend_ExcludesUnfollowedPrivateUsers(t *testing.T) {
	store := newMockStore()
	now := time.Now()
	store.addUser("u-viewer", "viewer", false)
	hidden := store.addUser("u-hidden", "hidden", true)
	store.addApp("u-viewer", "com.a", "A", true, now)
	store.addApp("u-hidden", "com.a", "A", true, now)
	store.addApp("u-hidden", "secret.app", "Secret", true, now)
	svc := newRecommendService(store)

	// Not following the private user: no signal, so the feed falls back.
	result, err := svc.Recommend(context.Background(), "u-viewer")
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	if !result.FallbackUsed {
		t.Error("expected fallback when the only neighbor is private and unfollowed")
	}

	// Following them brings their apps into the pool.
	store.addFollow("u-viewer", hidden.ID)
	result, err = svc.Recommend(context.Background(), "u-viewer")
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	if result.FallbackUsed {
		t.Fatal("FallbackUsed = true after following the private neighbor")
	}
	if len(result.Recommendations) != 1 || result.Recommendations[0].PackageName != "secret.app" {
		t.Errorf("recommendations = %+v, want just secret.app", result.Recommendations)
	}
}

// =============================================================================
// FALLBACK
// =============================================================================

func TestRecommend_FallbackWhenNoVisibleApps(t *testing.T) {
	store := newMockStore()
	now := time.Now()
	store.addUser("u-viewer", "viewer", false)
	// Three users make popular.app trend (threshold default 3).
	for _, id := range []string{"u-1", "u-2", "u-3"} {
		store.addUser(id, id, false)
		store.addApp(id, "popular.app", "Popular", true, now)
	}
	svc := newRecommendService(store)

	result, err := svc.Recommend(context.Background(), "u-viewer")
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	if !result.FallbackUsed {
		t.Fatal("FallbackUsed = false, want true")
	}
	if len(result.Recommendations) != 1 {
		t.Fatalf("got %d fallback recommendations, want 1", len(result.Recommendations))
	}

	rec := result.Recommendations[0]
	if rec.PackageName != "popular.app" {
		t.Errorf("fallback package = %s, want popular.app", rec.PackageName)
	}
	if rec.Score != 0 || rec.MatchScore != 0 {
		t.Errorf("fallback scores = %d/%d, want 0/0", rec.Score, rec.MatchScore)
	}
	if rec.Reason != FallbackReason {
		t.Errorf("fallback reason = %q, want %q", rec.Reason, FallbackReason)
	}
	if !rec.IsTrending {
		t.Error("fallback entry not marked trending")
	}
}

func TestRecommend_FallbackWhenNoNeighbors(t *testing.T) {
	store := newMockStore()
	store.addUser("u-viewer", "viewer", false)
	store.addApp("u-viewer", "lonely.app", "Lonely", true, time.Now())
	svc := newRecommendService(store)

	result, err := svc.Recommend(context.Background(), "u-viewer")
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	if !result.FallbackUsed {
		t.Error("FallbackUsed = false for a viewer nobody overlaps with")
	}
	if len(result.Recommendations) != 0 {
		t.Errorf("got %d recommendations with nothing trending, want 0", len(result.Recommendations))
	}
}

// =============================================================================
// TRENDING
// =============================================================================

func TestTrending_ThresholdBoundary(t *testing.T) {
	store := newMockStore()
	now := time.Now()
	for i, id := range []string{"u-1", "u-2", "u-3"} {
		store.addUser(id, id, false)
		store.addApp(id, "at.threshold", "AtThreshold", true, now)
		if i < 2 {
			store.addApp(id, "below.threshold", "Below", true, now)
		}
	}
	svc := newRecommendService(store)

	apps, err := svc.Trending(context.Background())
	if err != nil {
		t.Fatalf("Trending() error = %v", err)
	}
	if len(apps) != 1 {
		t.Fatalf("got %d trending apps, want 1: %+v", len(apps), apps)
	}
	if apps[0].PackageName != "at.threshold" || apps[0].InstallCount != 3 {
		t.Errorf("trending = %+v, want at.threshold with 3 installs", apps[0])
	}
	if !apps[0].IsTrending {
		t.Error("trending entry not marked trending")
	}
}

func TestTrending_WindowExcludesOldInstalls(t *testing.T) {
	store := newMockStore()
	old := time.Now().Add(-48 * time.Hour)
	for _, id := range []string{"u-1", "u-2", "u-3"} {
		store.addUser(id, id, false)
		store.addApp(id, "stale.app", "Stale", true, old)
	}
	svc := newRecommendService(store)

	apps, err := svc.Trending(context.Background())
	if err != nil {
		t.Fatalf("Trending() error = %v", err)
	}
	if len(apps) != 0 {
		t.Errorf("got %d trending apps from outside the window, want 0", len(apps))
	}
}

func TestTrending_HiddenInstallsDoNotCount(t *testing.T) {
	store := newMockStore()
	now := time.Now()
	for i, id := range []string{"u-1", "u-2", "u-3"} {
		store.addUser(id, id, false)
		store.addApp(id, "half.hidden", "HalfHidden", i < 2, now)
	}
	svc := newRecommendService(store)

	apps, err := svc.Trending(context.Background())
	if err != nil {
		t.Fatalf("Trending() error = %v", err)
	}
	if len(apps) != 0 {
		t.Errorf("hidden install counted toward trending: %+v", apps)
	}
}

// =============================================================================
// NEIGHBOR RANKING
// =============================================================================

func TestSimilarUsers_RankedByOverlap(t *testing.T) {
	store := newMockStore()
	seedOverlap(store)
	svc := newRecommendService(store)

	neighbors, err := svc.SimilarUsers(context.Background(), "u-viewer", 0)
	if err != nil {
		t.Fatalf("SimilarUsers() error = %v", err)
	}
	if len(neighbors) != 2 {
		t.Fatalf("got %d neighbors, want 2", len(neighbors))
	}
	if neighbors[0].User.ID != "u-close" || neighbors[0].Overlap != 3 {
		t.Errorf("first neighbor = %s/%d, want u-close/3", neighbors[0].User.ID, neighbors[0].Overlap)
	}
	if neighbors[1].User.ID != "u-distant" || neighbors[1].Overlap != 1 {
		t.Errorf("second neighbor = %s/%d, want u-distant/1", neighbors[1].User.ID, neighbors[1].Overlap)
	}
}

// A strong match arriving "after" many weak ones must still rank first:
// the full set is sorted before any cap is applied.
func TestSimilarUsers_StrongLateMatchSurvivesCap(t *testing.T) {
	store := newMockStore()
	now := time.Now()
	store.addUser("u-viewer", "viewer", false)
	for _, pkg := range []string{"com.a", "com.b", "com.c", "com.d"} {
		store.addApp("u-viewer", pkg, pkg, true, now)
	}

	// Many weak neighbors with low user IDs (iteration would meet them
	// first), one strong neighbor with a high ID.
	for i := 0; i < 5; i++ {
		id := string(rune('a'+i)) + "-weak"
		store.addUser(id, id, false)
		store.addApp(id, "com.a", "com.a", true, now)
	}
	store.addUser("z-strong", "strong", false)
	for _, pkg := range []string{"com.a", "com.b", "com.c", "com.d"} {
		store.addApp("z-strong", pkg, pkg, true, now)
	}
	svc := newRecommendService(store)

	neighbors, err := svc.SimilarUsers(context.Background(), "u-viewer", 3)
	if err != nil {
		t.Fatalf("SimilarUsers() error = %v", err)
	}
	if len(neighbors) != 3 {
		t.Fatalf("got %d neighbors, want 3", len(neighbors))
	}
	if neighbors[0].User.ID != "z-strong" {
		t.Errorf("first neighbor = %s, want z-strong despite its late ID", neighbors[0].User.ID)
	}
}

func TestSimilarUsers_EmptyWithoutVisibleApps(t *testing.T) {
	store := newMockStore()
	store.addUser("u-viewer", "viewer", false)
	svc := newRecommendService(store)

	neighbors, err := svc.SimilarUsers(context.Background(), "u-viewer", 0)
	if err != nil {
		t.Fatalf("SimilarUsers() error = %v", err)
	}
	if len(neighbors) != 0 {
		t.Errorf("got %d neighbors for a viewer with no visible apps, want 0", len(neighbors))
	}
}

// =============================================================================
// MATCH SCORE BOUNDS
// =============================================================================

func TestMatchScore_AlwaysWithinBounds(t *testing.T) {
	for overlap := 0; overlap <= 20; overlap++ {
		for count := 0; count <= 10; count++ {
			score := matchScore(overlap, count)
			if score < 0 || score > 100 {
				t.Errorf("matchScore(%d, %d) = %d, out of [0,100]", overlap, count, score)
			}
		}
	}
	if got := matchScore(1, 3); got != 33 {
		t.Errorf("matchScore(1, 3) = %d, want 33", got)
	}
	if got := matchScore(2, 3); got != 67 {
		t.Errorf("matchScore(2, 3) = %d, want 67", got)
	}
}
