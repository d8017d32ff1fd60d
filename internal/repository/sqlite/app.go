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

// compile-time check that *DB implements repository.AppRepository
var _ repository.AppRepository = (*DB)(nil)

const appColumns = `id, user_id, package_name, app_name, icon_url, platform,
	visible, discover_count, installed_at, created_at`

// UpsertApp inserts a row for (user, package) or refreshes the metadata of an
// existing one. Visibility and discover_count survive re-syncs: a device
// reporting an app the user already shared must not silently unshare it.
func (db *DB) UpsertApp(ctx context.Context, app *model.InstalledApp) error {
	var existing model.InstalledApp
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, visible, discover_count, installed_at, created_at
		 FROM installed_apps WHERE user_id = ? AND package_name = ?`,
		app.UserID, app.PackageName,
	).Scan(&existing.ID, &existing.Visible, &existing.DiscoverCount,
		&existing.InstalledAt, &existing.CreatedAt)

	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("sqlite: looking up installed app: %w", err)
	}

	if err == nil {
		app.ID = existing.ID
		app.Visible = existing.Visible
		app.DiscoverCount = existing.DiscoverCount
		app.InstalledAt = existing.InstalledAt
		app.CreatedAt = existing.CreatedAt
		_, err = db.conn.ExecContext(ctx,
			`UPDATE installed_apps SET app_name = ?, icon_url = ?, platform = ?
			 WHERE id = ?`,
			app.AppName, app.IconURL, app.Platform, app.ID,
		)
		if err != nil {
			return fmt.Errorf("sqlite: updating installed app %s: %w", app.ID, err)
		}
		return nil
	}

	app.ID = xid.New().String()
	if app.InstalledAt.IsZero() {
		app.InstalledAt = time.Now()
	}
	app.CreatedAt = time.Now()

	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO installed_apps (`+appColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		app.ID,
		app.UserID,
		app.PackageName,
		app.AppName,
		app.IconURL,
		app.Platform,
		app.Visible,
		app.DiscoverCount,
		app.InstalledAt,
		app.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating installed app: %w", err)
	}

	return nil
}

// DeleteApp removes a user's row for a package (uninstall sync).
func (db *DB) DeleteApp(ctx context.Context, userID, packageName string) error {
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM installed_apps WHERE user_id = ? AND package_name = ?`,
		userID, packageName,
	)
	if err != nil {
		return fmt.Errorf("sqlite: deleting installed app %s: %w", packageName, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("installed app", packageName)
	}

	return nil
}

func (db *DB) GetApp(ctx context.Context, userID, packageName string) (*model.InstalledApp, error) {
	var app model.InstalledApp
	err := db.conn.QueryRowContext(ctx,
		`SELECT `+appColumns+` FROM installed_apps
		 WHERE user_id = ? AND package_name = ?`,
		userID, packageName,
	).Scan(
		&app.ID, &app.UserID, &app.PackageName, &app.AppName, &app.IconURL,
		&app.Platform, &app.Visible, &app.DiscoverCount, &app.InstalledAt,
		&app.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("installed app", packageName)
		}
		return nil, fmt.Errorf("sqlite: getting installed app %s: %w", packageName, err)
	}
	return &app, nil
}

func (db *DB) ListAppsByUser(ctx context.Context, userID string, visibleOnly bool) ([]model.InstalledApp, error) {
	query := `SELECT ` + appColumns + ` FROM installed_apps WHERE user_id = ?`
	if visibleOnly {
		query += ` AND visible = 1`
	}
	query += ` ORDER BY app_name COLLATE NOCASE, package_name`

	rows, err := db.conn.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing apps for user %s: %w", userID, err)
	}
	defer rows.Close()

	return scanApps(rows)
}

func (db *DB) VisiblePackages(ctx context.Context, userID string) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT package_name FROM installed_apps
		 WHERE user_id = ? AND visible = 1`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing visible packages for %s: %w", userID, err)
	}
	defer rows.Close()

	var packages []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("sqlite: scanning package name: %w", err)
		}
		packages = append(packages, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating visible packages: %w", err)
	}

	return packages, nil
}

func (db *DB) SetVisibility(ctx context.Context, userID, packageName string, visible bool) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE installed_apps SET visible = ?
		 WHERE user_id = ? AND package_name = ?`,
		visible, userID, packageName,
	)
	if err != nil {
		return fmt.Errorf("sqlite: setting visibility of %s: %w", packageName, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("installed app", packageName)
	}

	return nil
}

func (db *DB) AddDiscoverCount(ctx context.Context, userID, packageName string, delta int64) error {
	_, err := db.conn.ExecContext(ctx,
		`UPDATE installed_apps SET discover_count = discover_count + ?
		 WHERE user_id = ? AND package_name = ?`,
		delta, userID, packageName,
	)
	if err != nil {
		return fmt.Errorf("sqlite: bumping discover count of %s: %w", packageName, err)
	}
	return nil
}

// SharedVisibleApps is the data half of the overlap scorer: one row per
// (other user, shared package) where the other user has one of the viewer's
// packages visible. Private users the viewer doesn't already follow are
// filtered out here, so the scorer never sees profiles it shouldn't.
func (db *DB) SharedVisibleApps(ctx context.Context, viewerID string, packages []string) ([]repository.SharedApp, error) {
	if len(packages) == 0 {
		return nil, nil
	}

	placeholders, args := inPlaceholders(packages)
	queryArgs := append([]any{viewerID}, args...)
	queryArgs = append(queryArgs, viewerID)

	rows, err := db.conn.QueryContext(ctx,
		`SELECT ia.user_id, ia.package_name
		 FROM installed_apps ia
		 JOIN users u ON u.id = ia.user_id
		 WHERE ia.visible = 1
		   AND ia.user_id != ?
		   AND ia.package_name IN (`+placeholders+`)
		   AND (u.private = 0 OR EXISTS (
		       SELECT 1 FROM follows f
		       WHERE f.follower_id = ? AND f.following_id = ia.user_id))`,
		queryArgs...,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: querying shared apps: %w", err)
	}
	defer rows.Close()

	var shared []repository.SharedApp
	for rows.Next() {
		var s repository.SharedApp
		if err := rows.Scan(&s.UserID, &s.PackageName); err != nil {
			return nil, fmt.Errorf("sqlite: scanning shared app: %w", err)
		}
		shared = append(shared, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating shared apps: %w", err)
	}

	return shared, nil
}

func (db *DB) VisibleAppsOfUsers(ctx context.Context, userIDs []string) ([]model.InstalledApp, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}

	placeholders, args := inPlaceholders(userIDs)
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+appColumns+` FROM installed_apps
		 WHERE visible = 1 AND user_id IN (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing apps of users: %w", err)
	}
	defer rows.Close()

	return scanApps(rows)
}

// Trending groups visible rows installed since the cutoff by package.
// Counts are exact row counts — the (user_id, package_name) uniqueness
// constraint already guarantees one row per user per app. HAVING applies
// the threshold in the database so we never ship sub-threshold groups.
func (db *DB) Trending(ctx context.Context, since time.Time, minInstalls int) ([]model.TrendingApp, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT package_name, MIN(app_name), MIN(icon_url), COUNT(*) AS installs
		 FROM installed_apps
		 WHERE visible = 1 AND installed_at >= ?
		 GROUP BY package_name
		 HAVING COUNT(*) >= ?
		 ORDER BY installs DESC, package_name ASC`,
		since, minInstalls,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: querying trending apps: %w", err)
	}
	defer rows.Close()

	var trending []model.TrendingApp
	for rows.Next() {
		var t model.TrendingApp
		if err := rows.Scan(&t.PackageName, &t.AppName, &t.IconURL, &t.InstallCount); err != nil {
			return nil, fmt.Errorf("sqlite: scanning trending app: %w", err)
		}
		t.IsTrending = true
		trending = append(trending, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating trending apps: %w", err)
	}

	return trending, nil
}

func (db *DB) LifetimeInstallCount(ctx context.Context, packageName string) (int, error) {
	var count int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM installed_apps
		 WHERE visible = 1 AND package_name = ?`,
		packageName,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("sqlite: counting installs of %s: %w", packageName, err)
	}
	return count, nil
}

// AnyByPackage returns an arbitrary (but deterministic) row for the
// package, preferring visible ones. Used to seed catalog entries with real
// metadata instead of a bare package name.
func (db *DB) AnyByPackage(ctx context.Context, packageName string) (*model.InstalledApp, error) {
	var app model.InstalledApp
	err := db.conn.QueryRowContext(ctx,
		`SELECT `+appColumns+` FROM installed_apps
		 WHERE package_name = ?
		 ORDER BY visible DESC, created_at ASC
		 LIMIT 1`,
		packageName,
	).Scan(
		&app.ID, &app.UserID, &app.PackageName, &app.AppName, &app.IconURL,
		&app.Platform, &app.Visible, &app.DiscoverCount, &app.InstalledAt,
		&app.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("app", packageName)
		}
		return nil, fmt.Errorf("sqlite: getting app %s: %w", packageName, err)
	}
	return &app, nil
}

func scanApps(rows *sql.Rows) ([]model.InstalledApp, error) {
	var apps []model.InstalledApp
	for rows.Next() {
		var a model.InstalledApp
		if err := rows.Scan(
			&a.ID, &a.UserID, &a.PackageName, &a.AppName, &a.IconURL,
			&a.Platform, &a.Visible, &a.DiscoverCount, &a.InstalledAt,
			&a.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning installed app: %w", err)
		}
		apps = append(apps, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating installed apps: %w", err)
	}
	return apps, nil
}
