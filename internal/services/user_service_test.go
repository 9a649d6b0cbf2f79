package services

import (
	"context"
	"errors"
	"testing"

	"circle-go/internal/models"
	"circle-go/internal/storage"
)

func TestOnboard(t *testing.T) {
	store := storage.NewMemoryStore()
	svc := NewUserService(store, store)
	ctx := context.Background()

	u := &models.User{Email: "a@b.co", Username: "a", FullName: "A", AvatarURL: "https://x/1.png"}
	if err := store.Create(ctx, u); err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err := svc.Onboard(ctx, u.ID, OnboardingInput{FullName: "A"})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("incomplete onboarding: %v", err)
	}

	got, err := svc.Onboard(ctx, u.ID, OnboardingInput{
		FullName: "Alice A",
		Bio:      "hello",
		FocusTag: "backend",
		TrackTag: "go",
		Location: "Berlin",
	})
	if err != nil {
		t.Fatalf("Onboard: %v", err)
	}
	if !got.IsOnboarded || got.Location != "Berlin" || got.AvatarURL != "https://x/1.png" {
		t.Fatalf("onboarded user = %+v", got)
	}

	stored, _ := store.GetByID(ctx, u.ID)
	if !stored.IsOnboarded || stored.FocusTag != "backend" {
		t.Fatalf("stored user not updated: %+v", stored)
	}

	if _, err := svc.Onboard(ctx, 999, OnboardingInput{FullName: "x", Bio: "x", FocusTag: "x", TrackTag: "x", Location: "x"}); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("unknown user: %v", err)
	}
}

func TestFriendsAndRecommendations(t *testing.T) {
	f := newWorkflowFixture(t, "alice", "bob", "carol", "dave")
	users := NewUserService(f.store, f.store)
	ctx := context.Background()

	req, _ := f.svc.SendFriendRequest(ctx, f.ids["alice"], f.ids["bob"])
	if _, err := f.svc.AcceptFriendRequest(ctx, f.ids["bob"], req.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}

	friends, err := users.GetFriends(ctx, f.ids["alice"])
	if err != nil {
		t.Fatalf("GetFriends: %v", err)
	}
	if len(friends) != 1 || friends[0].Username != "bob" {
		t.Fatalf("friends(alice) = %+v", friends)
	}

	recs, err := users.GetRecommendedUsers(ctx, f.ids["alice"])
	if err != nil {
		t.Fatalf("GetRecommendedUsers: %v", err)
	}
	names := map[string]bool{}
	for _, r := range recs {
		names[r.Username] = true
	}
	if names["alice"] || names["bob"] || !names["carol"] || !names["dave"] {
		t.Fatalf("recommended = %v", names)
	}
}

func TestGetUserProfileHidesHash(t *testing.T) {
	store := storage.NewMemoryStore()
	u := &models.User{Email: "a@b.co", Username: "a", PasswordHash: "hash"}
	_ = store.Create(context.Background(), u)

	got, err := NewUserService(store, store).GetUserProfile(context.Background(), u.ID)
	if err != nil {
		t.Fatalf("GetUserProfile: %v", err)
	}
	if got.PasswordHash != "" {
		t.Fatal("profile exposes password hash")
	}
}
