package decision

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestVoteError_Error(t *testing.T) {
	err := voteError(ErrCodeVoteWindowClosed, 7, "voting closed at %s", "2026-03-14 21:00 UTC")

	assert.Equal(t, "VOTE_WINDOW_CLOSED: voting closed at 2026-03-14 21:00 UTC (application=7)", err.Error())
}

func TestIsVoteError(t *testing.T) {
	wrapped := fmt.Errorf("handle callback: %w", voteError(ErrCodeUnauthorized, 1, "nope"))

	assert.True(t, IsVoteError(wrapped, ErrCodeUnauthorized))
	assert.True(t, IsVoteError(wrapped, ""))
	assert.False(t, IsVoteError(wrapped, ErrCodeInvalidVote))
	assert.False(t, IsVoteError(errors.New("plain"), ""))
	assert.False(t, IsVoteError(ErrAlreadyResolved, ""))
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	for name, mutate := range map[string]func(*Config){
		"zero quorum":    func(c *Config) { c.Quorum = 0 },
		"zero window":    func(c *Config) { c.VotingWindow = 0 },
		"negative sweep": func(c *Config) { c.SweepInterval = -1 },
		"zero ttl":       func(c *Config) { c.RecordTTL = 0 },
	} {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestSequenceGenerator(t *testing.T) {
	g := NewSequenceGenerator("run")

	assert.Equal(t, "run-1", g.Generate())
	assert.Equal(t, "run-2", g.Generate())
	assert.Len(t, UUIDv7Generator{}.Generate(), 36)
}

func TestClockFunc(t *testing.T) {
	at := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	var c Clock = ClockFunc(func() time.Time { return at })

	assert.Equal(t, at, c.Now())
}
