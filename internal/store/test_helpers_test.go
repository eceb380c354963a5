package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/subvote/internal/model"
)

// testNow is a fixed wall-clock instant for deterministic timestamps.
var testNow = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

// createTestStore creates a new file-backed store in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// seedUser creates a user with a chat binding derived from the username.
func seedUser(t *testing.T, s *Store, username string) model.User {
	t.Helper()
	u, err := s.CreateUser(context.Background(), model.User{
		Username:   username,
		Email:      username + "@example.org",
		ChatUserID: "tg-" + username,
		CreatedAt:  testNow,
	})
	if err != nil {
		t.Fatalf("CreateUser(%q) failed: %v", username, err)
	}
	return u
}

// seedApplication inserts a pending create application whose deadline is window after testNow.
func seedApplication(t *testing.T, s *Store, u model.User, window time.Duration) model.Application {
	t.Helper()
	app := model.Application{
		UserID:         u.ID,
		Kind:           model.RequestCreate,
		Name:           "blog.example.org",
		RecordType:     model.RecordA,
		RecordValue:    "203.0.113.7",
		Purpose:        "personal blog",
		VotingDeadline: testNow.Add(window),
		CreatedAt:      testNow,
	}
	id, err := s.InsertApplication(context.Background(), app)
	if err != nil {
		t.Fatalf("InsertApplication() failed: %v", err)
	}
	got, err := s.GetApplication(context.Background(), id)
	if err != nil {
		t.Fatalf("GetApplication(%d) failed: %v", id, err)
	}
	return got
}
