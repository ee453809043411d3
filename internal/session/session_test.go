package session

import (
	"testing"
	"time"

	"cocktail-voucher/internal/models"
)

func TestStoreLifecycle(t *testing.T) {
	store := NewStore()
	identity := models.IdentityToken{PhoneNumber: "555-0100", ParticipantName: "Ada"}

	sess := store.Create(identity, models.SessionState{})
	if sess.ID == "" {
		t.Fatal("Expected a session id")
	}

	got, ok := store.Get(sess.ID)
	if !ok || got.Identity != identity {
		t.Fatalf("Get = %+v, %v", got, ok)
	}

	got.State = got.State.WithAssignment(false, "Sunset Fizz")
	got.Alert = "hello"
	if !store.Save(got) {
		t.Fatal("Expected Save to succeed")
	}

	if alert := store.PopAlert(sess.ID); alert != "hello" {
		t.Errorf("Expected alert %q, got %q", "hello", alert)
	}
	if alert := store.PopAlert(sess.ID); alert != "" {
		t.Errorf("Expected alert to be shown once, got %q", alert)
	}

	again, _ := store.Get(sess.ID)
	if again.State.CocktailName != "Sunset Fizz" {
		t.Errorf("Expected saved state, got %+v", again.State)
	}

	store.Delete(sess.ID)
	if _, ok := store.Get(sess.ID); ok {
		t.Error("Expected session to be gone after Delete")
	}
	if store.Save(again) {
		t.Error("Expected Save of a deleted session to fail")
	}
}

func TestCleanUpInactive(t *testing.T) {
	store := NewStore()
	now := time.Date(2026, 10, 18, 20, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	old := store.Create(models.IdentityToken{PhoneNumber: "1"}, models.SessionState{})
	now = now.Add(90 * time.Minute)
	fresh := store.Create(models.IdentityToken{PhoneNumber: "2"}, models.SessionState{})
	now = now.Add(40 * time.Minute)

	if removed := store.CleanUpInactive(time.Hour); removed != 1 {
		t.Errorf("Expected 1 removed session, got %d", removed)
	}
	if _, ok := store.Get(old.ID); ok {
		t.Error("Expected idle session to be removed")
	}
	if _, ok := store.Get(fresh.ID); !ok {
		t.Error("Expected recent session to be kept")
	}
	if store.Len() != 1 {
		t.Errorf("Expected 1 session, got %d", store.Len())
	}
}
