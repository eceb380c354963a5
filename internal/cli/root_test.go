package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/subvote/internal/model"
	"github.com/roach88/subvote/internal/store"
	"github.com/roach88/subvote/internal/testutil"
)

// cliEnv is a config file and database in a temp directory.
type cliEnv struct {
	configPath string
	dbPath     string
	now        time.Time
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	dir := t.TempDir()
	env := &cliEnv{
		configPath: filepath.Join(dir, "subvote.yaml"),
		dbPath:     filepath.Join(dir, "subvote.db"),
		now:        testutil.Epoch,
	}
	yaml := "database: " + env.dbPath + `
parent_domain: example.org
voting:
  quorum: 2
  window: 12h
dns:
  provider: memory
`
	require.NoError(t, os.WriteFile(env.configPath, []byte(yaml), 0o644))
	return env
}

// run executes the CLI against the env and returns stdout and the exit code.
func (e *cliEnv) run(t *testing.T, args ...string) (string, int) {
	t.Helper()
	cmd, opts := newRootCommand()
	opts.LookupEnv = func(string) (string, bool) { return "", false }
	opts.Now = func() time.Time { return e.now }

	var stdout, stderr bytes.Buffer
	all := append([]string{"--config", e.configPath, "--env-file", ""}, args...)
	code := execute(cmd, opts, all, &stdout, &stderr)
	return stdout.String(), code
}

// runJSON executes the CLI with --format json and decodes the response.
func (e *cliEnv) runJSON(t *testing.T, args ...string) (CLIResponse, int) {
	t.Helper()
	out, code := e.run(t, append([]string{"--format", "json"}, args...)...)
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), "output: %s", out)
	return resp, code
}

// withStore opens the env's database for seeding or inspection.
func (e *cliEnv) withStore(t *testing.T, fn func(s *store.Store)) {
	t.Helper()
	s, err := store.Open(e.dbPath)
	require.NoError(t, err)
	defer s.Close()
	fn(s)
}

func (e *cliEnv) seedPending(t *testing.T, username string, createdAt time.Time) int64 {
	t.Helper()
	var id int64
	e.withStore(t, func(s *store.Store) {
		u, err := s.GetUserByUsername(context.Background(), username)
		if err != nil {
			u = testutil.SeedUser(t, s, username, model.RoleUser)
		}
		id, err = s.InsertApplication(context.Background(), model.Application{
			UserID:         u.ID,
			Kind:           model.RequestCreate,
			Name:           "blog.example.org",
			RecordType:     model.RecordA,
			RecordValue:    "203.0.113.7",
			Purpose:        "personal blog",
			VotingDeadline: createdAt.Add(12 * time.Hour),
			CreatedAt:      createdAt,
		})
		require.NoError(t, err)
	})
	return id
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "subvote", cmd.Use)
	assert.Contains(t, cmd.Long, "Telegram")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := [][]string{
		{"serve"},
		{"sweep"},
		{"app", "list"},
		{"app", "show"},
		{"app", "force-approve"},
		{"app", "force-reject"},
		{"app", "expire-old"},
		{"app", "submit"},
		{"user", "add"},
		{"user", "list"},
		{"user", "set-role"},
		{"user", "bind-token"},
		{"user", "delete"},
		{"report", "list"},
		{"report", "ack"},
		{"report", "suspend"},
		{"report", "ignore"},
	}

	for _, path := range commands {
		t.Run(path[len(path)-1], func(t *testing.T) {
			subCmd, _, err := cmd.Find(path)
			require.NoError(t, err)
			assert.Equal(t, path[len(path)-1], subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "c", configFlag.Shorthand)

	envFlag := cmd.PersistentFlags().Lookup("env-file")
	require.NotNil(t, envFlag)
	assert.Equal(t, ".env", envFlag.DefValue)
}

func TestExecute_InvalidFormat(t *testing.T) {
	env := newCLIEnv(t)
	out, code := env.run(t, "--format", "yaml", "user", "list")
	assert.Equal(t, ExitCommandError, code)
	assert.Contains(t, out, "Error [E006]")
	assert.Contains(t, out, `invalid format "yaml"`)
}

func TestExecute_UnknownCommand(t *testing.T) {
	env := newCLIEnv(t)
	out, code := env.run(t, "frobnicate")
	assert.Equal(t, ExitCommandError, code)
	assert.Contains(t, out, "Error [E001]")
}

func TestExecute_BadConfig(t *testing.T) {
	env := newCLIEnv(t)
	require.NoError(t, os.WriteFile(env.configPath, []byte("dns:\n  provider: carrier-pigeon\n"), 0o644))

	resp, code := env.runJSON(t, "user", "list")
	assert.Equal(t, ExitCommandError, code)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeConfig, resp.Error.Code)
}

func TestSweepCommand(t *testing.T) {
	env := newCLIEnv(t)
	id := env.seedPending(t, "alice", testutil.Epoch)

	// Before the deadline nothing is due.
	out, code := env.run(t, "sweep")
	assert.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, "0 due")

	env.now = testutil.Epoch.Add(13 * time.Hour)
	resp, code := env.runJSON(t, "sweep")
	assert.Equal(t, ExitSuccess, code)
	data := resp.Data.(map[string]any)
	assert.EqualValues(t, 1, data["due"])
	assert.EqualValues(t, 1, data["expired"])

	env.withStore(t, func(s *store.Store) {
		app, err := s.GetApplication(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, model.StatusExpired, app.Status)
	})
}
