// Discovery logic: the overlap scorer ("who shares visible apps with me"),
// the windowed trending ranking, and the recommendation composer that turns
// both into an app feed.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/sakif/appdeck/internal/model"
	"github.com/sakif/appdeck/internal/repository"
)

const (
	// MaxNeighbors caps how many overlapping users feed the composer. The
	// full candidate set is sorted by overlap before the cap is applied, so
	// the strongest matches always survive no matter how they arrive.
	MaxNeighbors = 100

	// MaxRecommendations is the length of the composed feed.
	MaxRecommendations = 12

	// FallbackCount is how many trending apps stand in for a feed when the
	// viewer has no overlap signal at all.
	FallbackCount = 10

	// MaxSharedUsers is how many sample users each recommendation carries.
	MaxSharedUsers = 3

	// FallbackReason labels fallback entries.
	FallbackReason = "Popular right now"

	DefaultSimilarUsers = 20
)

// TrendingConfig tunes the trending aggregator.
type TrendingConfig struct {
	Window      time.Duration // how far back installs count; default 24h
	MinInstalls int           // minimum installs inside the window; default 3
}

func (c TrendingConfig) withDefaults() TrendingConfig {
	if c.Window <= 0 {
		c.Window = 24 * time.Hour
	}
	if c.MinInstalls <= 0 {
		c.MinInstalls = 3
	}
	return c
}

// RecommendService computes everything derived from the overlap graph.
// Nothing here is persisted — every request recomputes from current state.
type RecommendService struct {
	apps     repository.AppRepository
	users    repository.UserRepository
	trending TrendingConfig
	logger   *slog.Logger
}

// NewRecommendService creates a RecommendService.
func NewRecommendService(
	apps repository.AppRepository,
	users repository.UserRepository,
	trending TrendingConfig,
	logger *slog.Logger,
) *RecommendService {
	return &RecommendService{
		apps:     apps,
		users:    users,
		trending: trending.withDefaults(),
		logger:   logger,
	}
}

// neighbor is an overlap-graph edge before user summaries are attached.
type neighbor struct {
	userID  string
	overlap int
}

// neighbors runs the overlap scorer: every other user sharing at least one
// visible package with the viewer, ranked by how many they share. Private
// users the viewer does not follow never appear (excluded in the query).
//
// The ranking sorts the FULL candidate set by overlap descending (user ID
// ascending on ties) and only then caps at MaxNeighbors — capping first
// would let arrival order evict strong matches.
func (s *RecommendService) neighbors(ctx context.Context, viewerID string, visible []string) ([]neighbor, error) {
	if len(visible) == 0 {
		return nil, nil
	}

	shared, err := s.apps.SharedVisibleApps(ctx, viewerID, visible)
	if err != nil {
		return nil, fmt.Errorf("service/recommend: querying shared apps: %w", err)
	}

	counts := make(map[string]int)
	for _, hit := range shared {
		counts[hit.UserID]++
	}

	all := make([]neighbor, 0, len(counts))
	for userID, overlap := range counts {
		all = append(all, neighbor{userID: userID, overlap: overlap})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].overlap != all[j].overlap {
			return all[i].overlap > all[j].overlap
		}
		return all[i].userID < all[j].userID
	})

	if len(all) > MaxNeighbors {
		all = all[:MaxNeighbors]
	}
	return all, nil
}

// Trending returns the windowed install ranking: visible rows installed
// inside the configured window, grouped by package, kept when the count
// meets the threshold.
func (s *RecommendService) Trending(ctx context.Context) ([]model.TrendingApp, error) {
	since := time.Now().Add(-s.trending.Window)
	apps, err := s.apps.Trending(ctx, since, s.trending.MinInstalls)
	if err != nil {
		return nil, fmt.Errorf("service/recommend: querying trending: %w", err)
	}
	return apps, nil
}

// Recommend composes the viewer's app feed.
//
// With no visible apps or no neighbors there is no overlap signal, so the
// feed falls back to the top trending apps (score 0, reason
// "Popular right now", fallbackUsed=true). Otherwise candidates are the
// packages neighbors have visible that the viewer doesn't have installed at
// all; each is scored by the summed overlap of the neighbors holding it,
// while the 0-100 match score reflects only the single best neighbor. Any
// storage failure fails the whole request — no partial feeds.
func (s *RecommendService) Recommend(ctx context.Context, viewerID string) (*model.RecommendationResult, error) {
	visible, err := s.apps.VisiblePackages(ctx, viewerID)
	if err != nil {
		return nil, fmt.Errorf("service/recommend: listing visible packages: %w", err)
	}

	neighbors, err := s.neighbors(ctx, viewerID, visible)
	if err != nil {
		return nil, err
	}
	if len(neighbors) == 0 {
		return s.fallback(ctx)
	}

	// Exclude everything the viewer has installed, hidden rows included —
	// recommending an app the user already has is useless even if they
	// haven't shared it.
	owned, err := s.apps.ListAppsByUser(ctx, viewerID, false)
	if err != nil {
		return nil, fmt.Errorf("service/recommend: listing installed apps: %w", err)
	}
	ownedSet := make(map[string]struct{}, len(owned))
	for _, app := range owned {
		ownedSet[app.PackageName] = struct{}{}
	}

	overlapByUser := make(map[string]int, len(neighbors))
	neighborIDs := make([]string, 0, len(neighbors))
	for _, n := range neighbors {
		overlapByUser[n.userID] = n.overlap
		neighborIDs = append(neighborIDs, n.userID)
	}

	rows, err := s.apps.VisibleAppsOfUsers(ctx, neighborIDs)
	if err != nil {
		return nil, fmt.Errorf("service/recommend: listing neighbor apps: %w", err)
	}

	type candidate struct {
		rec     model.Recommendation
		best    int      // strongest single neighbor's overlap
		holders []string // neighbor IDs holding the app, insertion order
	}
	candidates := make(map[string]*candidate)
	for _, row := range rows {
		if _, have := ownedSet[row.PackageName]; have {
			continue
		}
		overlap := overlapByUser[row.UserID]

		c, ok := candidates[row.PackageName]
		if !ok {
			c = &candidate{rec: model.Recommendation{
				PackageName: row.PackageName,
				AppName:     row.AppName,
				IconURL:     row.IconURL,
			}}
			candidates[row.PackageName] = c
		}
		c.rec.Score += overlap
		if overlap > c.best {
			c.best = overlap
		}
		c.holders = append(c.holders, row.UserID)
	}

	if len(candidates) == 0 {
		return s.fallback(ctx)
	}

	// Rank candidates: summed score descending, package name breaking ties.
	ranked := make([]*candidate, 0, len(candidates))
	for _, c := range candidates {
		ranked = append(ranked, c)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].rec.Score != ranked[j].rec.Score {
			return ranked[i].rec.Score > ranked[j].rec.Score
		}
		return ranked[i].rec.PackageName < ranked[j].rec.PackageName
	})
	if len(ranked) > MaxRecommendations {
		ranked = ranked[:MaxRecommendations]
	}

	// Sample-user summaries for the surviving candidates, one batch query.
	// The strongest neighbors go first within each candidate.
	sampleIDs := make(map[string]struct{})
	for _, c := range ranked {
		sort.Slice(c.holders, func(i, j int) bool {
			oi, oj := overlapByUser[c.holders[i]], overlapByUser[c.holders[j]]
			if oi != oj {
				return oi > oj
			}
			return c.holders[i] < c.holders[j]
		})
		if len(c.holders) > MaxSharedUsers {
			c.holders = c.holders[:MaxSharedUsers]
		}
		for _, id := range c.holders {
			sampleIDs[id] = struct{}{}
		}
	}
	ids := make([]string, 0, len(sampleIDs))
	for id := range sampleIDs {
		ids = append(ids, id)
	}
	summaries, err := s.users.SummariesByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("service/recommend: loading sample users: %w", err)
	}

	trendingSet, err := s.trendingPackages(ctx)
	if err != nil {
		return nil, err
	}

	viewerAppCount := len(visible)
	recs := make([]model.Recommendation, 0, len(ranked))
	for _, c := range ranked {
		rec := c.rec
		rec.MatchScore = matchScore(c.best, viewerAppCount)
		_, rec.IsTrending = trendingSet[rec.PackageName]

		for _, id := range c.holders {
			if sum, ok := summaries[id]; ok {
				rec.SharedUsers = append(rec.SharedUsers, sum)
			}
		}
		rec.Reason = reason(rec.SharedUsers)
		recs = append(recs, rec)
	}

	return &model.RecommendationResult{Recommendations: recs}, nil
}

// matchScore maps the best neighbor's overlap to 0-100: the fraction of the
// viewer's visible apps that the best-matching neighbor shares, clamped.
func matchScore(bestOverlap, viewerAppCount int) int {
	if viewerAppCount == 0 {
		return 0
	}
	score := int(math.Round(float64(bestOverlap) / float64(viewerAppCount) * 100))
	if score > 100 {
		score = 100
	}
	return score
}

// reason builds the human-readable line under a recommendation.
func reason(sharedUsers []model.UserSummary) string {
	switch len(sharedUsers) {
	case 0:
		return "People similar to you use this"
	case 1:
		return fmt.Sprintf("%s also uses this", sharedUsers[0].Name())
	default:
		return fmt.Sprintf("%d similar people use this", len(sharedUsers))
	}
}

// fallback synthesizes a feed from trending when there's no overlap signal.
func (s *RecommendService) fallback(ctx context.Context) (*model.RecommendationResult, error) {
	trending, err := s.Trending(ctx)
	if err != nil {
		return nil, err
	}
	if len(trending) > FallbackCount {
		trending = trending[:FallbackCount]
	}

	recs := make([]model.Recommendation, 0, len(trending))
	for _, app := range trending {
		recs = append(recs, model.Recommendation{
			PackageName: app.PackageName,
			AppName:     app.AppName,
			IconURL:     app.IconURL,
			Reason:      FallbackReason,
			IsTrending:  true,
		})
	}
	return &model.RecommendationResult{Recommendations: recs, FallbackUsed: true}, nil
}

func (s *RecommendService) trendingPackages(ctx context.Context) (map[string]struct{}, error) {
	trending, err := s.Trending(ctx)
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(trending))
	for _, app := range trending {
		set[app.PackageName] = struct{}{}
	}
	return set, nil
}

// SimilarUsers returns the viewer's closest overlap neighbors with user
// summaries attached, for the "discover people" view.
func (s *RecommendService) SimilarUsers(ctx context.Context, viewerID string, limit int) ([]model.Neighbor, error) {
	if limit <= 0 {
		limit = DefaultSimilarUsers
	}
	if limit > MaxNeighbors {
		limit = MaxNeighbors
	}

	visible, err := s.apps.VisiblePackages(ctx, viewerID)
	if err != nil {
		return nil, fmt.Errorf("service/recommend: listing visible packages: %w", err)
	}

	neighbors, err := s.neighbors(ctx, viewerID, visible)
	if err != nil {
		return nil, err
	}
	if len(neighbors) > limit {
		neighbors = neighbors[:limit]
	}
	if len(neighbors) == 0 {
		return []model.Neighbor{}, nil
	}

	ids := make([]string, 0, len(neighbors))
	for _, n := range neighbors {
		ids = append(ids, n.userID)
	}
	summaries, err := s.users.SummariesByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("service/recommend: loading neighbor users: %w", err)
	}

	result := make([]model.Neighbor, 0, len(neighbors))
	for _, n := range neighbors {
		sum, ok := summaries[n.userID]
		if !ok {
			continue
		}
		result = append(result, model.Neighbor{User: sum, Overlap: n.overlap})
	}
	return result, nil
}
