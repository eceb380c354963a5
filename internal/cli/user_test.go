package cli

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/subvote/internal/store"
	"github.com/roach88/subvote/internal/testutil"
)

func TestUserAdd(t *testing.T) {
	env := newCLIEnv(t)

	out, code := env.run(t, "user", "add", "alice", "Alice <alice@example.org>")
	assert.Equal(t, ExitSuccess, code)
	assert.Equal(t, "User alice (alice@example.org) is user\n", out)

	out, code = env.run(t, "user", "add", "carol", "carol@example.org", "--role", "admin")
	assert.Equal(t, ExitSuccess, code)
	assert.Equal(t, "User carol (carol@example.org) is admin\n", out)

	env.withStore(t, func(s *store.Store) {
		u, err := s.GetUserByUsername(context.Background(), "alice")
		require.NoError(t, err)
		assert.Equal(t, testutil.Epoch, u.CreatedAt)
	})
}

func TestUserAdd_Errors(t *testing.T) {
	env := newCLIEnv(t)
	_, code := env.run(t, "user", "add", "alice", "alice@example.org")
	require.Equal(t, ExitSuccess, code)

	tests := []struct {
		name     string
		args     []string
		wantKind string
	}{
		{"bad role", []string{"user", "add", "bob", "bob@example.org", "--role", "root"}, ErrCodeInvalid},
		{"bad email", []string{"user", "add", "bob", "not an address"}, ErrCodeInvalid},
		{"duplicate", []string{"user", "add", "alice", "other@example.org"}, ErrCodeStore},
		{"set role unknown user", []string{"user", "set-role", "bob", "admin"}, ErrCodeNotFound},
		{"set role bad role", []string{"user", "set-role", "alice", "root"}, ErrCodeInvalid},
		{"bind unknown user", []string{"user", "bind-token", "bob"}, ErrCodeNotFound},
		{"delete unknown user", []string{"user", "delete", "bob"}, ErrCodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, code := env.runJSON(t, tt.args...)
			assert.Equal(t, ExitCommandError, code)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantKind, resp.Error.Code)
		})
	}
}

func TestUserListAndSetRole(t *testing.T) {
	env := newCLIEnv(t)

	out, code := env.run(t, "user", "list")
	assert.Equal(t, ExitSuccess, code)
	assert.Equal(t, "No users.\n", out)

	_, code = env.run(t, "user", "add", "alice", "alice@example.org")
	require.Equal(t, ExitSuccess, code)

	out, code = env.run(t, "user", "set-role", "alice", "admin")
	assert.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, "is admin")

	resp, code := env.runJSON(t, "user", "list")
	assert.Equal(t, ExitSuccess, code)
	users := resp.Data.([]any)
	require.Len(t, users, 1)
	assert.Equal(t, "admin", users[0].(map[string]any)["role"])
	assert.NotContains(t, users[0], "BindToken")
}

func TestUserBindToken(t *testing.T) {
	env := newCLIEnv(t)
	_, code := env.run(t, "user", "add", "carol", "carol@example.org", "--role", "admin")
	require.Equal(t, ExitSuccess, code)

	resp, code := env.runJSON(t, "user", "bind-token", "carol")
	assert.Equal(t, ExitSuccess, code)
	data := resp.Data.(map[string]any)
	token := data["token"].(string)
	require.Len(t, token, 36)
	assert.Equal(t, "2026-03-14T10:00:00Z", data["expires_at"])

	env.withStore(t, func(s *store.Store) {
		ctx := context.Background()
		_, err := s.RedeemBindToken(ctx, token, "100", testutil.Epoch.Add(BindTokenTTL+time.Second))
		require.ErrorIs(t, err, store.ErrNotFound)

		u, err := s.RedeemBindToken(ctx, token, "100", testutil.Epoch.Add(30*time.Minute))
		require.NoError(t, err)
		assert.Equal(t, "carol", u.Username)

		admin, err := s.FindAdminByChatID(ctx, "100")
		require.NoError(t, err)
		assert.Equal(t, u.ID, admin.ID)
	})

	out, code := env.run(t, "user", "bind-token", "carol")
	assert.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, "  /bind ")
	assert.Contains(t, out, "before 2026-03-14 10:00 UTC")
}

func TestUserDelete(t *testing.T) {
	env := newCLIEnv(t)
	env.seedPending(t, "alice", testutil.Epoch)

	out, code := env.run(t, "user", "delete", "alice")
	assert.Equal(t, ExitSuccess, code)
	assert.Equal(t, "Deleted user alice\n", out)

	env.withStore(t, func(s *store.Store) {
		apps, err := s.ListApplications(context.Background(), store.ApplicationFilter{})
		require.NoError(t, err)
		assert.Empty(t, apps)

		_, err = s.GetUserByUsername(context.Background(), "alice")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})
}
