package model

// The types in this file are derived, never persisted: each request
// recomputes them from the current database state.

// Neighbor is another user who shares at least one visible app with the
// viewer. Overlap is the number of packages both have visible.
type Neighbor struct {
	User    UserSummary `json:"user"`
	Overlap int         `json:"overlap"`
}

// Recommendation is one ranked app suggestion.
//
// Score is the raw ranking signal: the sum of the overlap counts of every
// neighbor holding the app, so an app shared by several close matches beats
// one shared by a single distant match.
//
// MatchScore is the 0–100 number shown to the user. It is based on the
// single best-matching neighbor only — summing here would let ten weak
// neighbors masquerade as one strong signal.
type Recommendation struct {
	PackageName string        `json:"packageName"`
	AppName     string        `json:"appName"`
	IconURL     string        `json:"iconUrl"`
	Score       int           `json:"score"`
	MatchScore  int           `json:"matchScore"`
	Reason      string        `json:"reason"`
	SharedUsers []UserSummary `json:"sharedUsers,omitempty"`
	IsTrending  bool          `json:"isTrending"`
}

// RecommendationResult is the full response for a discovery request.
// FallbackUsed is true when the viewer had no overlap signal at all and the
// list was synthesized from trending apps instead.
type RecommendationResult struct {
	Recommendations []Recommendation `json:"recommendations"`
	FallbackUsed    bool             `json:"fallbackUsed"`
}

// TrendingApp is one entry in the windowed install ranking. InstallCount is
// an exact count of visible (user, package) rows installed inside the
// window — the table's uniqueness constraint already deduplicates per user.
type TrendingApp struct {
	PackageName  string `json:"packageName"  db:"package_name"`
	AppName      string `json:"appName"      db:"app_name"`
	IconURL      string `json:"iconUrl"      db:"icon_url"`
	InstallCount int    `json:"installCount" db:"install_count"`
	IsTrending   bool   `json:"isTrending"`
}
