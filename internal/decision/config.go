package decision

import (
	"fmt"
	"time"
)

// Config holds the voting policy.
type Config struct {
	// Quorum is the vote count on either side that decides an application
	// before its deadline.
	Quorum int

	// VotingWindow is how long an application stays open for votes.
	VotingWindow time.Duration

	// SweepInterval is the period of the deadline sweep.
	SweepInterval time.Duration

	// RecordTTL is the TTL, in seconds, of materialized DNS records.
	RecordTTL int
}

// DefaultConfig returns the reference policy: quorum 2, 12h window, 60s sweep, 1h TTL.
func DefaultConfig() Config {
	return Config{
		Quorum:        2,
		VotingWindow:  12 * time.Hour,
		SweepInterval: time.Minute,
		RecordTTL:     3600,
	}
}

// Validate reports the first unusable setting.
func (c Config) Validate() error {
	if c.Quorum < 1 {
		return fmt.Errorf("quorum must be at least 1, got %d", c.Quorum)
	}
	if c.VotingWindow <= 0 {
		return fmt.Errorf("voting window must be positive, got %s", c.VotingWindow)
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("sweep interval must be positive, got %s", c.SweepInterval)
	}
	if c.RecordTTL < 1 {
		return fmt.Errorf("record ttl must be positive, got %d", c.RecordTTL)
	}
	return nil
}
