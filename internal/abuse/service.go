package abuse

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/roach88/subvote/internal/decision"
	"github.com/roach88/subvote/internal/dnsprovider"
	"github.com/roach88/subvote/internal/model"
	"github.com/roach88/subvote/internal/review"
	"github.com/roach88/subvote/internal/store"
	"github.com/roach88/subvote/internal/submission"
)

var (
	// ErrReportClosed means the report was already suspended or ignored.
	ErrReportClosed = errors.New("abuse report already handled")

	// ErrNoRecord means no DNS record exists under the reported name.
	ErrNoRecord = errors.New("no dns record for reported name")
)

var openStatuses = []model.ReportStatus{model.ReportNew, model.ReportAcknowledged}

// Request is a complaint as filed by a reporter.
type Request struct {
	Name       string `json:"subdomain"` // Label under the parent domain, or a full name under it
	Reason     string `json:"reason"`
	Details    string `json:"details"`
	ReporterIP string `json:"-"`
}

// Suspension describes a suspended name.
type Suspension struct {
	Report   model.AbuseReport `json:"report"`
	RecordID string            `json:"record_id"`
}

// Service files and handles abuse reports.
type Service struct {
	store    *store.Store
	provider dnsprovider.Provider
	channel  decision.ReviewChannel
	parent   string
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

// New creates a Service for names under parentDomain.
func New(
	s *store.Store,
	provider dnsprovider.Provider,
	channel decision.ReviewChannel,
	parentDomain string,
	opts ...Option,
) (*Service, error) {
	parent, err := submission.NormalizeDomain(parentDomain)
	if err != nil {
		return nil, fmt.Errorf("parent domain: %w", err)
	}

	svc := &Service{
		store:    s,
		provider: provider,
		channel:  channel,
		parent:   parent,
		clock:    decision.SystemClock{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Report files a new abuse report and posts it for review. Only the store
// write can fail; a missing review message is logged.
func (s *Service) Report(ctx context.Context, req Request) (model.AbuseReport, error) {
	name, err := s.reportedName(req.Name)
	if err != nil {
		return model.AbuseReport{}, err
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return model.AbuseReport{}, &submission.ValidationError{Field: "reason", Message: "must not be empty"}
	}

	report := model.AbuseReport{
		Name:       name,
		Reason:     reason,
		Details:    strings.TrimSpace(req.Details),
		ReporterIP: req.ReporterIP,
		Status:     model.ReportNew,
		CreatedAt:  s.clock.Now(),
	}
	report.ID, err = s.store.InsertAbuseReport(ctx, report)
	if err != nil {
		return model.AbuseReport{}, fmt.Errorf("report abuse: %w", err)
	}

	logger := s.logger.With("report_id", report.ID)
	logger.Info("abuse report filed", "name", report.Name, "reason", report.Reason)

	messageID, err := s.channel.PostReviewMessage(ctx, review.RenderReport(report))
	switch {
	case err != nil:
		logger.Warn("report message not posted", "error", err)
	case messageID != "":
		if err := s.store.SetAbuseReportMessageID(ctx, report.ID, messageID); err != nil {
			logger.Warn("report message id not saved", "message_id", messageID, "error", err)
		} else {
			report.ReviewMessageID = messageID
		}
	}
	return report, nil
}

// Acknowledge marks a new report as seen by an admin. Acknowledging an
// acknowledged report is a no-op.
func (s *Service) Acknowledge(ctx context.Context, id int64) (model.AbuseReport, error) {
	moved, err := s.store.TransitionAbuseReport(ctx, id, []model.ReportStatus{model.ReportNew}, model.ReportAcknowledged)
	if err != nil {
		return model.AbuseReport{}, fmt.Errorf("acknowledge report %d: %w", id, err)
	}

	report, err := s.store.GetAbuseReport(ctx, id)
	if err != nil {
		return model.AbuseReport{}, fmt.Errorf("acknowledge report %d: %w", id, err)
	}
	if !moved {
		if report.Status == model.ReportAcknowledged {
			return report, nil
		}
		return report, fmt.Errorf("acknowledge report %d: %w", id, ErrReportClosed)
	}

	logger := s.logger.With("report_id", id)
	logger.Info("abuse report acknowledged")
	s.publish(ctx, logger, report)
	return report, nil
}

// Ignore closes an open report without touching DNS.
func (s *Service) Ignore(ctx context.Context, id int64) (model.AbuseReport, error) {
	moved, err := s.store.TransitionAbuseReport(ctx, id, openStatuses, model.ReportIgnored)
	if err != nil {
		return model.AbuseReport{}, fmt.Errorf("ignore report %d: %w", id, err)
	}

	report, err := s.store.GetAbuseReport(ctx, id)
	if err != nil {
		return model.AbuseReport{}, fmt.Errorf("ignore report %d: %w", id, err)
	}
	if !moved {
		return report, fmt.Errorf("ignore report %d: %w", id, ErrReportClosed)
	}

	logger := s.logger.With("report_id", id)
	logger.Info("abuse report ignored", "name", report.Name)
	s.publish(ctx, logger, report)
	return report, nil
}

// Suspend removes the reported name's record and closes the report.
//
// The report is claimed before the provider call. If the provider refuses the delete the claim
// is rolled back and the report stays open; once the provider delete
// succeeds the report stays resolved even if the store cleanup fails.
func (s *Service) Suspend(ctx context.Context, id int64) (Suspension, error) {
	report, err := s.store.GetAbuseReport(ctx, id)
	if err != nil {
		return Suspension{}, fmt.Errorf("suspend report %d: %w", id, err)
	}
	if !report.Status.IsOpen() {
		return Suspension{}, fmt.Errorf("suspend report %d: %w", id, ErrReportClosed)
	}

	rec, err := s.store.FindRecordByName(ctx, report.Name)
	if errors.Is(err, store.ErrNotFound) {
		return Suspension{}, fmt.Errorf("suspend %s: %w", report.Name, ErrNoRecord)
	}
	if err != nil {
		return Suspension{}, fmt.Errorf("suspend report %d: %w", id, err)
	}

	moved, err := s.store.TransitionAbuseReport(ctx, id, openStatuses, model.ReportResolved)
	if err != nil {
		return Suspension{}, fmt.Errorf("suspend report %d: %w", id, err)
	}
	if !moved {
		return Suspension{}, fmt.Errorf("suspend report %d: %w", id, ErrReportClosed)
	}

	ctx = context.WithoutCancel(ctx)
	logger := s.logger.With("report_id", id, "record_id", rec.ID, "name", rec.Name)

	if err := s.provider.DeleteRecord(ctx, rec.ID); err != nil {
		if _, revErr := s.store.TransitionAbuseReport(ctx, id, []model.ReportStatus{model.ReportResolved}, report.Status); revErr != nil {
			logger.Error("report left resolved after failed suspension", "error", revErr)
		}
		return Suspension{}, fmt.Errorf("suspend %s: %w", report.Name, err)
	}
	if err := s.store.DeleteRecord(ctx, rec.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
		logger.Error("record deleted at provider but not in store", "error", err)
	}

	report.Status = model.ReportResolved
	logger.Info("reported name suspended", "owner_id", rec.UserID)
	s.publish(ctx, logger, report)
	return Suspension{Report: report, RecordID: rec.ID}, nil
}

// reportedName accepts a label under the parent or a full name already under it.
func (s *Service) reportedName(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", &submission.ValidationError{Field: "subdomain", Message: "must not be empty"}
	}
	if full, err := submission.NormalizeDomain(raw); err == nil {
		if full == s.parent || strings.HasSuffix(full, "."+s.parent) {
			return full, nil
		}
	}
	full, err := submission.FullName(raw, s.parent)
	var ve *submission.ValidationError
	if errors.As(err, &ve) {
		return "", &submission.ValidationError{Field: "subdomain", Message: ve.Message}
	}
	return full, err
}

func (s *Service) publish(ctx context.Context, logger *slog.Logger, report model.AbuseReport) {
	if report.ReviewMessageID == "" {
		return
	}
	if err := s.channel.EditMessage(ctx, report.ReviewMessageID, review.RenderReport(report)); err != nil {
		logger.Warn("report message edit failed", "message_id", report.ReviewMessageID, "error", err)
	}
}
