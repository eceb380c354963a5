package decision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/subvote/internal/dnsprovider"
	"github.com/roach88/subvote/internal/model"
	"github.com/roach88/subvote/internal/notify"
	"github.com/roach88/subvote/internal/store"
)

// FailureReason replaces the decision reason when an approval could not be applied.
const FailureReason = model.FailureReason

// Resolution describes a resolution this caller won.
type Resolution struct {
	// ID correlates the resolution's log lines.
	ID string

	ApplicationID int64

	// Status is the final status: the claimed outcome, or error after compensation.
	Status model.Status

	// Reason is the externally visible decision reason.
	Reason string

	// RecordID is the provider id of the materialized record, approvals only.
	RecordID string

	// MaterializeErr is the DNS failure that caused compensation, if any.
	MaterializeErr error
}

// Resolve moves a pending application to outcome and applies the consequences.
//
// Steps, each its own failure domain:
//  1. Claim: compare-and-set pending -> outcome. Losing returns ErrAlreadyResolved.
//  2. Materialize (approved only): apply the DNS change and persist the record.
//     On failure the application is compensated into error.
//  3. Notify: email the requester. Failures are logged.
//  4. Publish: turn the review message into its terminal form. Failures are logged.
//
// Once the claim succeeds the remaining steps ignore cancellation of ctx.
func (e *Engine) Resolve(ctx context.Context, applicationID int64, reason string, outcome model.Outcome) (Resolution, error) {
	if !outcome.Valid() {
		return Resolution{}, fmt.Errorf("resolve application %d: invalid outcome %q", applicationID, outcome)
	}

	res := Resolution{
		ID:            e.ids.Generate(),
		ApplicationID: applicationID,
		Status:        outcome.Status(),
		Reason:        reason,
	}
	logger := e.logger.With(
		"resolution_id", res.ID,
		"application_id", applicationID,
		"outcome", outcome)

	// Kind, name and target never change after submission, so reading them
	// before the claim is safe. The claim alone decides who proceeds.
	app, err := e.store.GetApplication(ctx, applicationID)
	if errors.Is(err, store.ErrNotFound) {
		return Resolution{}, fmt.Errorf("resolve application %d: %w", applicationID, ErrApplicationNotFound)
	}
	if err != nil {
		return Resolution{}, fmt.Errorf("resolve application %d: %w", applicationID, err)
	}

	now := e.clock.Now()
	claimed, err := e.store.ClaimApplication(ctx, applicationID, outcome.Status(), reason, now)
	if err != nil {
		return Resolution{}, fmt.Errorf("resolve application %d: %w", applicationID, err)
	}
	if !claimed {
		logger.Debug("claim lost; application already resolved")
		return Resolution{}, ErrAlreadyResolved
	}

	ctx = context.WithoutCancel(ctx)
	app.Status = outcome.Status()
	app.Notes = reason
	app.ResolvedAt = &now

	if outcome == model.OutcomeApproved {
		recordID, err := e.materialize(ctx, logger, app)
		if err != nil {
			res.MaterializeErr = err
			e.compensate(ctx, logger, &app, err)
			res.Status = app.Status
			res.Reason = FailureReason
		} else {
			res.RecordID = recordID
		}
	}

	e.notifyRequester(ctx, logger, app, res.Reason)
	e.publish(ctx, logger, app)

	logger.Info("application resolved",
		"status", res.Status,
		"reason", res.Reason,
		"record_id", res.RecordID)
	return res, nil
}

// materialize applies an approved application at the DNS provider and in the store.
func (e *Engine) materialize(ctx context.Context, logger *slog.Logger, app model.Application) (string, error) {
	rec := dnsprovider.Record{
		Type:  app.RecordType,
		Name:  app.Name,
		Value: app.RecordValue,
		TTL:   e.cfg.RecordTTL,
	}

	switch app.Kind {
	case model.RequestCreate:
		id, err := e.provider.CreateRecord(ctx, rec)
		if err != nil {
			return "", fmt.Errorf("create record: %w", err)
		}
		err = e.store.InsertRecord(ctx, model.DNSRecord{
			ID:        id,
			UserID:    app.UserID,
			Type:      app.RecordType,
			Name:      app.Name,
			Value:     app.RecordValue,
			TTL:       rec.TTL,
			CreatedAt: e.clock.Now(),
		})
		if err != nil {
			// Don't leave a record at the provider that nothing tracks.
			if delErr := e.provider.DeleteRecord(ctx, id); delErr != nil {
				logger.Error("orphaned provider record after failed insert",
					"record_id", id,
					"error", delErr)
			}
			return "", fmt.Errorf("persist record %s: %w", id, err)
		}
		return id, nil

	case model.RequestUpdate:
		if app.TargetRecordID == "" {
			return "", errors.New("update application has no target record")
		}
		old, err := e.store.GetRecord(ctx, app.TargetRecordID)
		if err != nil {
			return "", fmt.Errorf("load target record: %w", err)
		}
		if err := e.provider.UpdateRecord(ctx, old.ID, rec); err != nil {
			return "", fmt.Errorf("update record: %w", err)
		}
		err = e.store.UpdateRecord(ctx, model.DNSRecord{
			ID:    old.ID,
			Type:  app.RecordType,
			Name:  app.Name,
			Value: app.RecordValue,
		})
		if err != nil {
			// Put the provider back the way the store still describes it.
			prev := dnsprovider.Record{Type: old.Type, Name: old.Name, Value: old.Value, TTL: old.TTL}
			if revErr := e.provider.UpdateRecord(ctx, old.ID, prev); revErr != nil {
				logger.Error("provider record diverged from store after failed update",
					"record_id", old.ID,
					"error", revErr)
			}
			return "", fmt.Errorf("persist record %s: %w", old.ID, err)
		}
		return old.ID, nil
	}

	return "", fmt.Errorf("unknown request kind %q", app.Kind)
}

// compensate moves a claimed approval to error. The application never returns
// to pending, so no trigger can retry it. The stored note keeps the cause for
// operators; the review message only ever shows FailureReason.
func (e *Engine) compensate(ctx context.Context, logger *slog.Logger, app *model.Application, cause error) {
	note := FailureReason + ": " + cause.Error()
	logger.Error("dns change failed; compensating approval",
		"provider_error", dnsprovider.IsProviderError(cause),
		"error", cause)

	if err := e.store.MarkApplicationFailed(ctx, app.ID, note); err != nil {
		logger.Error("compensation write failed; application left approved", "error", err)
	}
	app.Status = model.StatusError
	app.Notes = note
}

// notifyRequester sends the one email every terminal state produces.
func (e *Engine) notifyRequester(ctx context.Context, logger *slog.Logger, app model.Application, reason string) {
	if app.Email == "" {
		logger.Warn("requester has no email address; notification skipped", "user_id", app.UserID)
		return
	}
	mail := notify.OutcomeEmail(app, app.Status, reason)
	if err := e.mailer.NotifyUser(ctx, app.Email, mail.Subject, mail.Body); err != nil {
		logger.Warn("requester notification failed", "to", app.Email, "error", err)
	}
}
