package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/sakif/appdeck/internal/model"
)

// newTestDB opens an in-memory database with migrations applied.
func newTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})

	return db
}

func createTestUser(t *testing.T, db *DB, username string) *model.User {
	t.Helper()

	user := &model.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "not-a-real-hash",
	}
	if err := db.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("creating test user %s: %v", username, err)
	}

	return user
}

func createPrivateTestUser(t *testing.T, db *DB, username string) *model.User {
	t.Helper()

	user := createTestUser(t, db, username)
	user.Private = true
	if err := db.UpdateProfile(context.Background(), user); err != nil {
		t.Fatalf("making test user %s private: %v", username, err)
	}

	return user
}

func createTestApp(t *testing.T, db *DB, userID, packageName string, visible bool, installedAt time.Time) *model.InstalledApp {
	t.Helper()

	app := &model.InstalledApp{
		UserID:      userID,
		PackageName: packageName,
		AppName:     packageName,
		Platform:    "android",
		InstalledAt: installedAt,
	}
	if err := db.UpsertApp(context.Background(), app); err != nil {
		t.Fatalf("creating test app %s: %v", packageName, err)
	}
	if visible {
		if err := db.SetVisibility(context.Background(), userID, packageName, true); err != nil {
			t.Fatalf("making test app %s visible: %v", packageName, err)
		}
		app.Visible = true
	}

	return app
}

func createTestFollow(t *testing.T, db *DB, followerID, followingID string) {
	t.Helper()

	follow := &model.Follow{FollowerID: followerID, FollowingID: followingID}
	if err := db.CreateFollow(context.Background(), follow); err != nil {
		t.Fatalf("creating test follow: %v", err)
	}
}
