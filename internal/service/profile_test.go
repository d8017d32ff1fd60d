package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sakif/appdeck/internal/apperror"
)

func TestProfileGet_CountsAndFollowState(t *testing.T) {
	store := newMockStore()
	store.addUser("u-alice", "alice", false)
	store.addUser("u-bob", "bob", false)
	store.addUser("u-carol", "carol", false)
	store.addFollow("u-bob", "u-alice")
	store.addFollow("u-carol", "u-alice")
	store.addFollow("u-alice", "u-bob")
	svc := NewProfileService(store, store, testLogger())

	view, err := svc.Get(context.Background(), "u-bob", "u-alice")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if view.FollowerCount != 2 || view.FollowingCount != 1 {
		t.Errorf("counts = %d/%d, want 2 followers, 1 following", view.FollowerCount, view.FollowingCount)
	}
	if !view.IsFollowing || view.IsSelf {
		t.Errorf("view = %+v, want isFollowing and not self", view)
	}

	self, err := svc.Get(context.Background(), "u-alice", "u-alice")
	if err != nil {
		t.Fatalf("Get(self) error = %v", err)
	}
	if !self.IsSelf || self.IsFollowing {
		t.Errorf("self view = %+v", self)
	}
}

func TestProfileGet_UnknownUser(t *testing.T) {
	svc := NewProfileService(newMockStore(), newMockStore(), testLogger())
	if _, err := svc.Get(context.Background(), "u-1", "ghost"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("Get() error = %v, want not found", err)
	}
}

func TestProfileUpdate_Partial(t *testing.T) {
	store := newMockStore()
	u := store.addUser("u-alice", "alice", false)
	u.Bio = "original bio"
	svc := NewProfileService(store, store, testLogger())

	name := "  Alice A.  "
	private := true
	updated, err := svc.Update(context.Background(), "u-alice", UpdateProfileInput{
		DisplayName: &name,
		Private:     &private,
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.DisplayName != "Alice A." {
		t.Errorf("displayName = %q, want trimmed value", updated.DisplayName)
	}
	if !updated.Private {
		t.Error("private flag not applied")
	}
	// Fields not in the input stay put.
	if updated.Bio != "original bio" {
		t.Errorf("bio = %q, should be untouched", updated.Bio)
	}
}

func TestProfileUpdate_BioTooLong(t *testing.T) {
	store := newMockStore()
	store.addUser("u-alice", "alice", false)
	svc := NewProfileService(store, store, testLogger())

	bio := strings.Repeat("x", MaxBioLength+1)
	if _, err := svc.Update(context.Background(), "u-alice", UpdateProfileInput{Bio: &bio}); !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("Update() error = %v, want validation error", err)
	}
}
