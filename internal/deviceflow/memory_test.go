package deviceflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func testSession(chatID, deviceCode string, ttl time.Duration) *Session {
	now := time.Now().UTC().Truncate(time.Second)
	return &Session{
		ChatID:          chatID,
		DeviceCode:      deviceCode,
		UserCode:        "U" + deviceCode[1:],
		VerificationURI: "https://idp/verify",
		ExpiresIn:       int(ttl.Seconds()),
		Interval:        5,
		CreatedAt:       now,
		ExpiresAt:       now.Add(ttl),
	}
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(time.Minute)

	if _, err := store.GetSession(ctx, "42"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("GetSession() on empty store error = %v, want %v", err, ErrSessionNotFound)
	}

	first := testSession("42", "D1", 10*time.Minute)
	if err := store.SaveSession(ctx, first); err != nil {
		t.Fatalf("SaveSession() error = %v", err)
	}

	got, err := store.GetSession(ctx, "42")
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if diff := cmp.Diff(first, got); diff != "" {
		t.Errorf("GetSession() mismatch (-want +got):\n%s", diff)
	}

	// Callers must not be able to mutate the stored session
	got.DeviceCode = "changed"
	again, _ := store.GetSession(ctx, "42")
	if again.DeviceCode != "D1" {
		t.Errorf("stored DeviceCode = %q after caller mutation, want %q", again.DeviceCode, "D1")
	}

	second := testSession("42", "D2", 10*time.Minute)
	if err := store.SaveSession(ctx, second); err != nil {
		t.Fatalf("SaveSession() error = %v", err)
	}
	got, _ = store.GetSession(ctx, "42")
	if got.DeviceCode != "D2" {
		t.Errorf("DeviceCode = %q after overwrite, want %q", got.DeviceCode, "D2")
	}

	if err := store.DeleteSession(ctx, "42"); err != nil {
		t.Fatalf("DeleteSession() error = %v", err)
	}
	if _, err := store.GetSession(ctx, "42"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("GetSession() after delete error = %v, want %v", err, ErrSessionNotFound)
	}
	if err := store.DeleteSession(ctx, "42"); err != nil {
		t.Errorf("DeleteSession() of missing session error = %v", err)
	}

	if err := store.CheckHealth(ctx); err != nil {
		t.Errorf("CheckHealth() error = %v", err)
	}
}

func TestMemoryStoreExpiry(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(time.Minute)

	if err := store.SaveSession(ctx, testSession("42", "D1", -time.Second)); !errors.Is(err, ErrSessionExpired) {
		t.Errorf("SaveSession() of expired session error = %v, want %v", err, ErrSessionExpired)
	}

	s := testSession("42", "D1", time.Hour)
	s.ExpiresAt = time.Now().Add(50 * time.Millisecond)
	if err := store.SaveSession(ctx, s); err != nil {
		t.Fatalf("SaveSession() error = %v", err)
	}

	time.Sleep(100 * time.Millisecond)
	if _, err := store.GetSession(ctx, "42"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("GetSession() after expiry error = %v, want %v", err, ErrSessionNotFound)
	}
}
