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

// compile-time checks
var (
	_ repository.CatalogRepository = (*DB)(nil)
	_ repository.CommentRepository = (*DB)(nil)
)

// CreateCatalogEntry inserts a canonical package record. package_name is
// globally unique; two requests racing to lazily create the same entry
// resolve to one row and a Conflict the service swallows.
func (db *DB) CreateCatalogEntry(ctx context.Context, entry *model.AppCatalogEntry) error {
	entry.ID = xid.New().String()
	entry.CreatedAt = time.Now()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO apps_catalog (id, package_name, app_name, category, icon_url, store_url, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.PackageName,
		entry.AppName,
		entry.Category,
		entry.IconURL,
		entry.StoreURL,
		entry.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("catalog entry", entry.PackageName)
		}
		return fmt.Errorf("sqlite: creating catalog entry: %w", err)
	}

	return nil
}

func (db *DB) GetCatalogEntry(ctx context.Context, packageName string) (*model.AppCatalogEntry, error) {
	var entry model.AppCatalogEntry
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, package_name, app_name, category, icon_url, store_url, created_at
		 FROM apps_catalog WHERE package_name = ?`,
		packageName,
	).Scan(
		&entry.ID, &entry.PackageName, &entry.AppName, &entry.Category,
		&entry.IconURL, &entry.StoreURL, &entry.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("catalog entry", packageName)
		}
		return nil, fmt.Errorf("sqlite: getting catalog entry %s: %w", packageName, err)
	}
	return &entry, nil
}

func (db *DB) CreateComment(ctx context.Context, comment *model.Comment) error {
	comment.ID = xid.New().String()
	comment.CreatedAt = time.Now()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO comments (id, package_name, user_id, body, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		comment.ID,
		comment.PackageName,
		comment.UserID,
		comment.Body,
		comment.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating comment: %w", err)
	}

	return nil
}

func (db *DB) ListCommentsByPackage(ctx context.Context, packageName string, opts repository.ListOptions) ([]model.Comment, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT c.id, c.package_name, c.user_id, c.body, c.created_at,
		        u.id, u.username, u.display_name, u.avatar_url
		 FROM comments c JOIN users u ON u.id = c.user_id
		 WHERE c.package_name = ?
		 ORDER BY c.created_at DESC, c.id DESC
		 LIMIT ? OFFSET ?`,
		packageName, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing comments for %s: %w", packageName, err)
	}
	defer rows.Close()

	comments := make([]model.Comment, 0, limit)
	for rows.Next() {
		var c model.Comment
		if err := rows.Scan(
			&c.ID, &c.PackageName, &c.UserID, &c.Body, &c.CreatedAt,
			&c.Author.ID, &c.Author.Username, &c.Author.DisplayName, &c.Author.AvatarURL,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning comment: %w", err)
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating comments: %w", err)
	}

	return comments, nil
}
