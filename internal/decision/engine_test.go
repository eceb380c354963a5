package decision

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/subvote/internal/model"
	"github.com/roach88/subvote/internal/store"
	"github.com/roach88/subvote/internal/testutil"
)

type harness struct {
	store    *store.Store
	provider *testutil.RecordingProvider
	channel  *testutil.RecordingChannel
	mailer   *testutil.RecordingMailer
	clock    *testutil.FakeClock
	engine   *Engine

	requester model.User
}

func newHarness(t *testing.T, cfgs ...Config) *harness {
	t.Helper()

	cfg := DefaultConfig()
	if len(cfgs) > 0 {
		cfg = cfgs[0]
	}
	require.NoError(t, cfg.Validate())

	h := &harness{
		store:    testutil.NewStore(t),
		provider: testutil.NewRecordingProvider(),
		channel:  &testutil.RecordingChannel{},
		mailer:   &testutil.RecordingMailer{},
		clock:    testutil.NewFakeClock(testutil.Epoch),
	}
	h.engine = New(h.store, h.provider, h.channel, h.mailer, cfg,
		WithClock(h.clock),
		WithIDGenerator(NewSequenceGenerator("res")),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	h.requester = testutil.SeedUser(t, h.store, "alice", model.RoleUser)
	return h
}

// pending seeds a pending create application with a review message.
func (h *harness) pending(t *testing.T) model.Application {
	t.Helper()
	return testutil.SeedApplication(t, h.store, h.requester, model.Application{
		Purpose:         "personal blog",
		ReviewMessageID: "55",
	})
}

func (h *harness) reload(t *testing.T, id int64) model.Application {
	t.Helper()
	app, err := h.store.GetApplication(context.Background(), id)
	require.NoError(t, err)
	return app
}

func (h *harness) votes(t *testing.T, id int64) []model.Vote {
	t.Helper()
	votes, err := h.store.ListVotes(context.Background(), id)
	require.NoError(t, err)
	return votes
}

func (h *harness) records(t *testing.T) []model.DNSRecord {
	t.Helper()
	recs, err := h.store.ListRecords(context.Background(), 0)
	require.NoError(t, err)
	return recs
}

// seedVote writes a vote directly, bypassing admin checks.
func (h *harness) seedVote(t *testing.T, appID int64, voter string, kind model.VoteKind) {
	t.Helper()
	recorded, err := h.store.UpsertVote(context.Background(), model.Vote{
		ApplicationID: appID, VoterID: voter, Kind: kind, CreatedAt: h.clock.Now(),
	})
	require.NoError(t, err)
	require.True(t, recorded)
}

// rewire rebuilds h.engine around channel and clock, keeping everything else.
func (h *harness) rewire(channel ReviewChannel, clock Clock) {
	h.engine = New(h.store, h.provider, channel, h.mailer, h.engine.Config(),
		WithClock(clock),
		WithIDGenerator(NewSequenceGenerator("res")),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
}
