package decision

import (
	"context"
	"log/slog"

	"github.com/roach88/subvote/internal/dnsprovider"
	"github.com/roach88/subvote/internal/model"
	"github.com/roach88/subvote/internal/review"
	"github.com/roach88/subvote/internal/store"
)

// ReviewChannel posts and edits the shared review message.
type ReviewChannel interface {
	PostReviewMessage(ctx context.Context, msg review.Message) (string, error)
	EditMessage(ctx context.Context, messageID string, msg review.Message) error
}

// Mailer delivers a direct message to one person.
type Mailer interface {
	NotifyUser(ctx context.Context, address, subject, body string) error
}

// Engine decides pending applications.
//
// Thread-safety: all methods are safe for concurrent use. Exclusivity of a
// resolution comes from store.ClaimApplication, not from the engine.
type Engine struct {
	store    *store.Store
	provider dnsprovider.Provider
	channel  ReviewChannel
	mailer   Mailer
	cfg      Config
	clock    Clock
	ids      IDGenerator
	logger   *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces the wall clock, for deterministic deadlines in tests.
func WithClock(c Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithIDGenerator replaces the UUIDv7 correlation id generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Engine) { e.ids = g }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// New creates an Engine.
//
// The config must already be validated; New does not re-check it.
func New(
	s *store.Store,
	provider dnsprovider.Provider,
	channel ReviewChannel,
	mailer Mailer,
	cfg Config,
	opts ...Option,
) *Engine {
	e := &Engine{
		store:    s,
		provider: provider,
		channel:  channel,
		mailer:   mailer,
		cfg:      cfg,
		clock:    SystemClock{},
		ids:      UUIDv7Generator{},
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Config returns the engine's voting policy.
func (e *Engine) Config() Config { return e.cfg }

// publishActive re-renders a pending application's review message from the
// stored row. A resolution that lands while the edit is in flight may be
// overwritten by it, so the row is read again afterwards and a resolved
// application gets its terminal form back. The review message therefore never
// ends interactive once the application has left pending.
func (e *Engine) publishActive(ctx context.Context, logger *slog.Logger, id int64) {
	app, err := e.store.GetApplication(ctx, id)
	if err != nil {
		logger.Warn("review message not updated: reload failed", "error", err)
		return
	}
	if app.Status != model.StatusPending {
		// The resolver publishes the terminal form.
		return
	}
	e.publish(ctx, logger, app)

	after, err := e.store.GetApplication(ctx, id)
	if err != nil {
		logger.Warn("review message not rechecked: reload failed", "error", err)
		return
	}
	if after.Status != model.StatusPending {
		logger.Debug("application resolved during review edit; republishing terminal form", "status", after.Status)
		e.publish(ctx, logger, after)
	}
}

// publish re-renders the review message of app from its current votes.
// A missing message id makes this a no-op. Failures are logged only.
func (e *Engine) publish(ctx context.Context, logger *slog.Logger, app model.Application) {
	if app.ReviewMessageID == "" {
		return
	}

	votes, err := e.store.ListVotes(ctx, app.ID)
	if err != nil {
		logger.Warn("review message not updated: list votes failed", "error", err)
		return
	}
	names, err := e.store.VoterNames(ctx, votes)
	if err != nil {
		// Render falls back to voter ids.
		logger.Warn("voter name lookup failed", "error", err)
	}

	if err := e.channel.EditMessage(ctx, app.ReviewMessageID, review.Render(app, votes, names)); err != nil {
		logger.Warn("review message edit failed",
			"message_id", app.ReviewMessageID,
			"error", err)
	}
}
