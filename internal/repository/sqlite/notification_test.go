package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/sakif/appdeck/internal/apperror"
	"github.com/sakif/appdeck/internal/model"
	"github.com/sakif/appdeck/internal/repository"
)

func createTestNotification(t *testing.T, db *DB, userID string, content string) *model.Notification {
	t.Helper()

	n := &model.Notification{
		UserID:  userID,
		Type:    model.NotificationNewFollower,
		Content: content,
	}
	if err := db.CreateNotification(context.Background(), n); err != nil {
		t.Fatalf("creating test notification: %v", err)
	}

	return n
}

// ===========================================================================
// CreateNotification / ListNotifications
// ===========================================================================

func TestCreateNotification_SetsIDAndTimestamp(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "alice")

	n := createTestNotification(t, db, user.ID, "bob started following you")

	if n.ID == "" {
		t.Error("expected a generated ID")
	}
	if n.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}
}

func TestListNotifications_NewestFirst(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "alice")
	createTestNotification(t, db, user.ID, "first")
	createTestNotification(t, db, user.ID, "second")
	createTestNotification(t, db, user.ID, "third")

	notifications, err := db.ListNotifications(context.Background(), user.ID, repository.ListOptions{})
	if err != nil {
		t.Fatalf("ListNotifications failed: %v", err)
	}

	if len(notifications) != 3 {
		t.Fatalf("expected 3 notifications, got %d", len(notifications))
	}
	if notifications[0].Content != "third" || notifications[2].Content != "first" {
		t.Errorf("expected newest first, got %s .. %s",
			notifications[0].Content, notifications[2].Content)
	}
}

func TestListNotifications_LimitAndOffset(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "alice")
	createTestNotification(t, db, user.ID, "first")
	createTestNotification(t, db, user.ID, "second")
	createTestNotification(t, db, user.ID, "third")

	page, err := db.ListNotifications(context.Background(), user.ID,
		repository.ListOptions{Limit: 2, Offset: 1})
	if err != nil {
		t.Fatalf("ListNotifications failed: %v", err)
	}

	if len(page) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(page))
	}
	if page[0].Content != "second" || page[1].Content != "first" {
		t.Errorf("unexpected page contents: %s, %s", page[0].Content, page[1].Content)
	}
}

func TestListNotifications_ScopedToUser(t *testing.T) {
	db := newTestDB(t)
	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")
	createTestNotification(t, db, alice.ID, "for alice")

	notifications, err := db.ListNotifications(context.Background(), bob.ID, repository.ListOptions{})
	if err != nil {
		t.Fatalf("ListNotifications failed: %v", err)
	}
	if len(notifications) != 0 {
		t.Errorf("expected no notifications for bob, got %d", len(notifications))
	}
}

// ===========================================================================
// Read state
// ===========================================================================

func TestMarkRead_OwnershipEnforced(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")
	n := createTestNotification(t, db, alice.ID, "for alice")

	// Someone else's ID reads as NotFound, not Forbidden.
	err := db.MarkRead(ctx, n.ID, bob.ID)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("expected ErrNotFound for foreign notification, got %v", err)
	}

	if err := db.MarkRead(ctx, n.ID, alice.ID); err != nil {
		t.Fatalf("MarkRead failed: %v", err)
	}

	count, err := db.UnreadCount(ctx, alice.ID)
	if err != nil {
		t.Fatalf("UnreadCount failed: %v", err)
	}
	if count != 0 {
		t.Errorf("expected 0 unread, got %d", count)
	}
}

func TestMarkAllRead(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	user := createTestUser(t, db, "alice")
	createTestNotification(t, db, user.ID, "one")
	createTestNotification(t, db, user.ID, "two")

	count, err := db.UnreadCount(ctx, user.ID)
	if err != nil {
		t.Fatalf("UnreadCount failed: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 unread, got %d", count)
	}

	if err := db.MarkAllRead(ctx, user.ID); err != nil {
		t.Fatalf("MarkAllRead failed: %v", err)
	}

	count, err = db.UnreadCount(ctx, user.ID)
	if err != nil {
		t.Fatalf("UnreadCount failed: %v", err)
	}
	if count != 0 {
		t.Errorf("expected 0 unread, got %d", count)
	}
}
