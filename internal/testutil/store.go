package testutil

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/subvote/internal/model"
	"github.com/roach88/subvote/internal/store"
)

// Epoch is the fixed instant fake clocks start at in tests.
var Epoch = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

// NewStore opens a fresh SQLite store in a temp directory, closed on cleanup.
func NewStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "subvote.db"))
	if err != nil {
		t.Fatalf("store.Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// SeedUser creates a user named username with email username@example.org.
func SeedUser(t *testing.T, s *store.Store, username string, role model.Role) model.User {
	t.Helper()
	u, err := s.CreateUser(context.Background(), model.User{
		Username:  username,
		Email:     username + "@example.org",
		Role:      role,
		CreatedAt: Epoch,
	})
	if err != nil {
		t.Fatalf("CreateUser(%q) failed: %v", username, err)
	}
	return u
}

// SeedAdmin creates an admin bound to chatUserID.
func SeedAdmin(t *testing.T, s *store.Store, username, chatUserID string) model.User {
	t.Helper()
	u, err := s.CreateUser(context.Background(), model.User{
		Username:   username,
		Email:      username + "@example.org",
		Role:       model.RoleAdmin,
		ChatUserID: chatUserID,
		CreatedAt:  Epoch,
	})
	if err != nil {
		t.Fatalf("CreateUser(%q) failed: %v", username, err)
	}
	return u
}

// SeedApplication inserts a pending application for u. Zero fields of tmpl
// default to a create of blog.example.org A 203.0.113.7 closing 12h after Epoch.
func SeedApplication(t *testing.T, s *store.Store, u model.User, tmpl model.Application) model.Application {
	t.Helper()
	tmpl.UserID = u.ID
	if tmpl.Kind == "" {
		tmpl.Kind = model.RequestCreate
	}
	if tmpl.Name == "" {
		tmpl.Name = "blog.example.org"
	}
	if tmpl.RecordType == "" {
		tmpl.RecordType = model.RecordA
	}
	if tmpl.RecordValue == "" {
		tmpl.RecordValue = "203.0.113.7"
	}
	if tmpl.VotingDeadline.IsZero() {
		tmpl.VotingDeadline = Epoch.Add(12 * time.Hour)
	}
	if tmpl.CreatedAt.IsZero() {
		tmpl.CreatedAt = Epoch
	}

	ctx := context.Background()
	id, err := s.InsertApplication(ctx, tmpl)
	if err != nil {
		t.Fatalf("InsertApplication() failed: %v", err)
	}
	if tmpl.ReviewMessageID != "" {
		if err := s.SetReviewMessageID(ctx, id, tmpl.ReviewMessageID); err != nil {
			t.Fatalf("SetReviewMessageID() failed: %v", err)
		}
	}
	app, err := s.GetApplication(ctx, id)
	if err != nil {
		t.Fatalf("GetApplication(%d) failed: %v", id, err)
	}
	return app
}
