package submission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/roach88/subvote/internal/decision"
	"github.com/roach88/subvote/internal/dnsprovider"
	"github.com/roach88/subvote/internal/model"
	"github.com/roach88/subvote/internal/notify"
	"github.com/roach88/subvote/internal/review"
	"github.com/roach88/subvote/internal/store"
)

var (
	// ErrUserNotFound means the requesting user does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrRecordNotOwned means the record does not exist or belongs to someone else.
	// Both cases look the same to the caller.
	ErrRecordNotOwned = errors.New("record not found or not owned by user")
)

// Request is a user's desired record.
type Request struct {
	UserID  int64  `json:"user_id"`
	Name    string `json:"name"` // Label under the parent domain; "@" for the parent itself
	Type    string `json:"type"`
	Value   string `json:"value"`
	Purpose string `json:"purpose"`
}

// Service accepts submissions.
type Service struct {
	store    *store.Store
	provider dnsprovider.Provider
	channel  decision.ReviewChannel
	mailer   decision.Mailer
	parent   string
	window   time.Duration
	clock    decision.Clock
	logger   *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces the wall clock.
func WithClock(c decision.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// New creates a Service for names under parentDomain. Applications stay open
// for window.
func New(
	s *store.Store,
	provider dnsprovider.Provider,
	channel decision.ReviewChannel,
	mailer decision.Mailer,
	parentDomain string,
	window time.Duration,
	opts ...Option,
) (*Service, error) {
	parent, err := NormalizeDomain(parentDomain)
	if err != nil {
		return nil, fmt.Errorf("parent domain: %w", err)
	}
	if window <= 0 {
		return nil, fmt.Errorf("voting window must be positive, got %s", window)
	}

	svc := &Service{
		store:    s,
		provider: provider,
		channel:  channel,
		mailer:   mailer,
		parent:   parent,
		window:   window,
		clock:    decision.SystemClock{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// ParentDomain returns the normalized parent domain.
func (s *Service) ParentDomain() string { return s.parent }

// Submit files an application to create a new record.
func (s *Service) Submit(ctx context.Context, req Request) (model.Application, error) {
	app, err := s.validate(req)
	if err != nil {
		return model.Application{}, err
	}
	app.Kind = model.RequestCreate
	return s.file(ctx, app)
}

// SubmitUpdate files an application to change recordID, which must belong to
// the requesting user.
func (s *Service) SubmitUpdate(ctx context.Context, recordID string, req Request) (model.Application, error) {
	app, err := s.validate(req)
	if err != nil {
		return model.Application{}, err
	}
	if _, err := s.ownedRecord(ctx, req.UserID, recordID); err != nil {
		return model.Application{}, err
	}
	app.Kind = model.RequestUpdate
	app.TargetRecordID = recordID
	return s.file(ctx, app)
}

// DeleteRecord removes an owned record at the provider, then in the store.
// No vote is involved. If the provider call fails the store is untouched.
func (s *Service) DeleteRecord(ctx context.Context, userID int64, recordID string) error {
	rec, err := s.ownedRecord(ctx, userID, recordID)
	if err != nil {
		return err
	}

	if err := s.provider.DeleteRecord(ctx, rec.ID); err != nil {
		return fmt.Errorf("delete record %s: %w", rec.ID, err)
	}
	if err := s.store.DeleteRecord(ctx, rec.ID); err != nil {
		return fmt.Errorf("delete record %s: %w", rec.ID, err)
	}

	s.logger.Info("record deleted", "record_id", rec.ID, "name", rec.Name, "user_id", userID)
	return nil
}

func (s *Service) validate(req Request) (model.Application, error) {
	if strings.TrimSpace(req.Type) == "" {
		return model.Application{}, invalid("type", "must not be empty")
	}
	name, err := FullName(req.Name, s.parent)
	if err != nil {
		return model.Application{}, err
	}
	rt, value, err := normalizeRecord(req.Type, req.Value, name, s.parent)
	if err != nil {
		return model.Application{}, err
	}
	return model.Application{
		UserID:      req.UserID,
		Name:        name,
		RecordType:  rt,
		RecordValue: value,
		Purpose:     strings.TrimSpace(req.Purpose),
	}, nil
}

func (s *Service) ownedRecord(ctx context.Context, userID int64, recordID string) (model.DNSRecord, error) {
	rec, err := s.store.GetRecord(ctx, recordID)
	if errors.Is(err, store.ErrNotFound) {
		return model.DNSRecord{}, ErrRecordNotOwned
	}
	if err != nil {
		return model.DNSRecord{}, err
	}
	if rec.UserID != userID {
		return model.DNSRecord{}, ErrRecordNotOwned
	}
	return rec, nil
}

// file stores a pending application, posts its review message and confirms
// receipt. Only the store write can fail the submission; a missing review
// message or email is logged and the deadline sweep still decides.
func (s *Service) file(ctx context.Context, app model.Application) (model.Application, error) {
	if _, err := s.store.GetUser(ctx, app.UserID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return model.Application{}, fmt.Errorf("submit: user %d: %w", app.UserID, ErrUserNotFound)
		}
		return model.Application{}, fmt.Errorf("submit: %w", err)
	}

	now := s.clock.Now()
	app.CreatedAt = now
	app.VotingDeadline = now.Add(s.window)

	id, err := s.store.InsertApplication(ctx, app)
	if err != nil {
		return model.Application{}, fmt.Errorf("submit: %w", err)
	}
	app, err = s.store.GetApplication(ctx, id)
	if err != nil {
		return model.Application{}, fmt.Errorf("submit: %w", err)
	}

	logger := s.logger.With("application_id", app.ID)
	logger.Info("application submitted",
		"kind", app.Kind,
		"name", app.Name,
		"record_type", app.RecordType,
		"deadline", app.VotingDeadline)

	messageID, err := s.channel.PostReviewMessage(ctx, review.Render(app, nil, nil))
	switch {
	case err != nil:
		logger.Warn("review message not posted", "error", err)
	case messageID != "":
		if err := s.store.SetReviewMessageID(ctx, app.ID, messageID); err != nil {
			logger.Warn("review message id not saved", "message_id", messageID, "error", err)
		} else {
			app.ReviewMessageID = messageID
		}
	}

	if app.Email == "" {
		logger.Warn("requester has no email address; confirmation skipped", "user_id", app.UserID)
		return app, nil
	}
	mail := notify.SubmittedEmail(app)
	if err := s.mailer.NotifyUser(ctx, app.Email, mail.Subject, mail.Body); err != nil {
		logger.Warn("confirmation email failed", "to", app.Email, "error", err)
	}
	return app, nil
}
