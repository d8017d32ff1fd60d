package model

import "time"

// InstalledApp is one app on one user's device, as reported by the client's
// sync payload. The (UserID, PackageName) pair is unique — syncing the same
// package twice updates the existing row rather than duplicating it.
//
// Visible controls whether the row participates in anything social:
// followers' feeds, overlap matching, trending counts. A hidden app exists
// only for its owner.
//
// DiscoverCount is an approximate "how many people were shown this" counter.
// It is bumped by follower count whenever the app flips to visible — it
// counts notification attempts, not confirmed deliveries.
type InstalledApp struct {
	ID            string    `json:"id"            db:"id"`
	UserID        string    `json:"userId"        db:"user_id"`
	PackageName   string    `json:"packageName"   db:"package_name"`
	AppName       string    `json:"appName"       db:"app_name"`
	IconURL       string    `json:"iconUrl"       db:"icon_url"`
	Platform      string    `json:"platform"      db:"platform"` // "android" or "ios"
	Visible       bool      `json:"visible"       db:"visible"`
	DiscoverCount int64     `json:"discoverCount" db:"discover_count"`
	InstalledAt   time.Time `json:"installedAt"   db:"installed_at"`
	CreatedAt     time.Time `json:"createdAt"     db:"created_at"`
}

// AppCatalogEntry is the canonical, user-independent record for a package.
// Rows are created lazily: the first time any detail view or comment touches
// a package we don't know yet, an entry is seeded from whichever
// InstalledApp row for that package we can find (or from the bare package
// name if nobody has it installed anymore).
type AppCatalogEntry struct {
	ID          string    `json:"id"          db:"id"`
	PackageName string    `json:"packageName" db:"package_name"`
	AppName     string    `json:"appName"     db:"app_name"`
	Category    string    `json:"category"    db:"category"`
	IconURL     string    `json:"iconUrl"     db:"icon_url"`
	StoreURL    string    `json:"storeUrl"    db:"store_url"`
	CreatedAt   time.Time `json:"createdAt"   db:"created_at"`
}

// Comment is a user comment on a catalog entry. Comments hang off the
// package name, not any single user's installed row, so they survive
// uninstalls.
type Comment struct {
	ID          string      `json:"id"          db:"id"`
	PackageName string      `json:"packageName" db:"package_name"`
	UserID      string      `json:"userId"      db:"user_id"`
	Body        string      `json:"body"        db:"body"`
	CreatedAt   time.Time   `json:"createdAt"   db:"created_at"`
	Author      UserSummary `json:"author"`
}
