package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/roach88/subvote/internal/abuse"
	"github.com/roach88/subvote/internal/decision"
	"github.com/roach88/subvote/internal/dnsprovider"
	"github.com/roach88/subvote/internal/model"
	"github.com/roach88/subvote/internal/review"
	"github.com/roach88/subvote/internal/store"
	"github.com/roach88/subvote/internal/submission"
	"github.com/roach88/subvote/internal/testutil"
)

// DefaultParentDomain is the parent domain when a scenario does not set one.
const DefaultParentDomain = "example.org"

// Harness is the scenario execution engine.
// It runs scenarios against fakes with a deterministic clock and ids.
type Harness struct {
	store       *store.Store
	engine      *decision.Engine
	submissions *submission.Service
	reports     *abuse.Service
	provider    *testutil.RecordingProvider
	channel     *testutil.RecordingChannel
	mailer      *testutil.RecordingMailer
	clock       *testutil.FakeClock
	users       map[string]model.User

	// Effects already traced, per fake.
	dnsSeen, postSeen, editSeen, mailSeen int
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database. The returned error is
// non-nil only when the scenario could not be executed; failed expectations
// are reported in the result.
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	cfg := decision.DefaultConfig()
	parent := DefaultParentDomain
	if p := scenario.Config; p != nil {
		if p.Quorum > 0 {
			cfg.Quorum = p.Quorum
		}
		if p.Window != "" {
			if cfg.VotingWindow, err = time.ParseDuration(p.Window); err != nil {
				return nil, fmt.Errorf("config.window: %w", err)
			}
		}
		if p.ParentDomain != "" {
			parent = p.ParentDomain
		}
	}

	h := &Harness{
		store:    st,
		provider: testutil.NewRecordingProvider(),
		channel:  &testutil.RecordingChannel{},
		mailer:   &testutil.RecordingMailer{},
		clock:    testutil.NewFakeClock(testutil.Epoch),
		users:    make(map[string]model.User),
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h.engine = decision.New(st, h.provider, h.channel, h.mailer, cfg,
		decision.WithClock(h.clock),
		decision.WithIDGenerator(decision.NewSequenceGenerator("resolution")),
		decision.WithLogger(logger))
	h.submissions, err = submission.New(st, h.provider, h.channel, h.mailer, parent, cfg.VotingWindow,
		submission.WithClock(h.clock),
		submission.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	h.reports, err = abuse.New(st, h.provider, h.channel, parent,
		abuse.WithClock(h.clock),
		abuse.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	ctx := context.Background()

	if err := h.createUsers(ctx, scenario.Users); err != nil {
		return nil, fmt.Errorf("failed to create users: %w", err)
	}

	result := NewResult()
	for i, step := range scenario.Flow {
		if err := h.executeStep(ctx, i, step, result); err != nil {
			return nil, fmt.Errorf("flow step %d (%s): %w", i, step.Invoke, err)
		}
	}

	actx := &AssertionContext{
		Store: st,
		Ctx:   ctx,
	}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}

	return result, nil
}

func (h *Harness) createUsers(ctx context.Context, users []UserSpec) error {
	for _, spec := range users {
		role := model.RoleUser
		if spec.Role != "" {
			role = model.Role(spec.Role)
		}
		email := spec.Email
		if email == "" {
			email = spec.Username + "@example.org"
		}
		u, err := h.store.CreateUser(ctx, model.User{
			Username:   spec.Username,
			Email:      email,
			Role:       role,
			ChatUserID: spec.ChatID,
			CreatedAt:  h.clock.Now(),
		})
		if err != nil {
			return err
		}
		h.users[spec.Username] = u
	}
	return nil
}

// executeStep runs one step, traces it with its outcome and effects, and
// checks its expect clause.
func (h *Harness) executeStep(ctx context.Context, index int, step FlowStep, result *Result) error {
	args := step.Args
	if args == nil {
		args = map[string]any{}
	}
	result.AddStep(step.Invoke, args)

	var (
		outcome string
		values  map[string]any
		err     error
	)
	switch step.Invoke {
	case StepSubmit:
		outcome, values, err = h.submit(ctx, args, "")
	case StepSubmitUpdate:
		var recordID string
		if recordID, err = stringArg(args, "record"); err == nil {
			outcome, values, err = h.submit(ctx, args, recordID)
		}
	case StepDeleteRecord:
		outcome, values, err = h.deleteRecord(ctx, args)
	case StepVote:
		outcome, values, err = h.vote(ctx, args)
	case StepResolve:
		outcome, values, err = h.resolve(ctx, args)
	case StepSweep:
		outcome, values, err = h.sweep(ctx)
	case StepAdvance:
		outcome, values, err = h.advance(args)
	case StepFailDNS:
		outcome, values, err = h.failDNS(args)
	case StepHealDNS:
		outcome, values, err = h.healDNS(args)
	case StepReportAbuse:
		outcome, values, err = h.reportAbuse(ctx, args)
	case StepSuspendReport:
		outcome, values, err = h.suspendReport(ctx, args)
	case StepIgnoreReport:
		outcome, values, err = h.ignoreReport(ctx, args)
	default:
		err = fmt.Errorf("unknown step %q", step.Invoke)
	}
	if err != nil {
		return err
	}

	result.AddOutcome(outcome, values)
	h.traceEffects(result)

	if step.Expect != nil {
		if outcome != step.Expect.Case {
			result.AddError(fmt.Sprintf("flow[%d] %s: expected case %q, got %q", index, step.Invoke, step.Expect.Case, outcome))
		} else if !matchArgs(values, step.Expect.Result) {
			result.AddError(fmt.Sprintf("flow[%d] %s: expected result %v, got %v", index, step.Invoke, step.Expect.Result, values))
		}
	}
	return nil
}

func (h *Harness) submit(ctx context.Context, args map[string]any, recordID string) (string, map[string]any, error) {
	req := submission.Request{
		UserID:  h.userID(optString(args, "user", "")),
		Name:    optString(args, "name", ""),
		Type:    optString(args, "type", string(model.RecordA)),
		Value:   optString(args, "value", ""),
		Purpose: optString(args, "purpose", ""),
	}

	var (
		app model.Application
		err error
	)
	if recordID == "" {
		app, err = h.submissions.Submit(ctx, req)
	} else {
		app, err = h.submissions.SubmitUpdate(ctx, recordID, req)
	}

	var ve *submission.ValidationError
	switch {
	case errors.As(err, &ve):
		return "ValidationError", map[string]any{"field": ve.Field}, nil
	case errors.Is(err, submission.ErrUserNotFound):
		return "UserNotFound", nil, nil
	case errors.Is(err, submission.ErrRecordNotOwned):
		return "NotOwned", nil, nil
	case err != nil:
		return "", nil, err
	}
	return "Success", map[string]any{
		"id":           app.ID,
		"kind":         string(app.Kind),
		"name":         app.Name,
		"record_type":  string(app.RecordType),
		"record_value": app.RecordValue,
		"status":       string(app.Status),
	}, nil
}

func (h *Harness) deleteRecord(ctx context.Context, args map[string]any) (string, map[string]any, error) {
	recordID, err := stringArg(args, "record")
	if err != nil {
		return "", nil, err
	}
	err = h.submissions.DeleteRecord(ctx, h.userID(optString(args, "user", "")), recordID)
	switch {
	case errors.Is(err, submission.ErrRecordNotOwned):
		return "NotOwned", nil, nil
	case dnsprovider.IsProviderError(err):
		return "ProviderError", nil, nil
	case err != nil:
		return "", nil, err
	}
	return "Success", nil, nil
}

func (h *Harness) vote(ctx context.Context, args map[string]any) (string, map[string]any, error) {
	id, err := intArg(args, "application")
	if err != nil {
		return "", nil, err
	}
	voter, err := stringArg(args, "voter")
	if err != nil {
		return "", nil, err
	}

	res, err := h.engine.CastVote(ctx, decision.VoteRequest{
		ApplicationID: id,
		VoterID:       voter,
		Kind:          model.VoteKind(optString(args, "kind", "")),
		MessageID:     optString(args, "message", ""),
	})
	var ve *decision.VoteError
	if errors.As(err, &ve) {
		return string(ve.Code), nil, nil
	}
	if err != nil {
		return "", nil, err
	}

	values := map[string]any{
		"approve": res.Tally.Approve,
		"deny":    res.Tally.Deny,
	}
	switch {
	case res.Resolution != nil:
		values["status"] = string(res.Resolution.Status)
		values["reason"] = res.Resolution.Reason
		return "FastTracked", values, nil
	case res.Outcome != "":
		return "AlreadyResolved", values, nil
	}
	return "Recorded", values, nil
}

func (h *Harness) resolve(ctx context.Context, args map[string]any) (string, map[string]any, error) {
	id, err := intArg(args, "application")
	if err != nil {
		return "", nil, err
	}
	outcome, err := stringArg(args, "outcome")
	if err != nil {
		return "", nil, err
	}

	res, err := h.engine.Resolve(ctx, id, optString(args, "reason", "resolved by scenario"), model.Outcome(outcome))
	switch {
	case errors.Is(err, decision.ErrAlreadyResolved):
		return "AlreadyResolved", nil, nil
	case errors.Is(err, decision.ErrApplicationNotFound):
		return "NotFound", nil, nil
	case err != nil:
		return "", nil, err
	}

	values := map[string]any{
		"status": string(res.Status),
		"reason": res.Reason,
	}
	if res.RecordID != "" {
		values["record_id"] = res.RecordID
	}
	return "Success", values, nil
}

func (h *Harness) sweep(ctx context.Context) (string, map[string]any, error) {
	report, err := h.engine.Sweep(ctx)
	if err != nil {
		return "", nil, err
	}
	return "Success", map[string]any{
		"due":      report.Due,
		"approved": report.Approved,
		"rejected": report.Rejected,
		"expired":  report.Expired,
		"errored":  report.Errored,
		"skipped":  report.Skipped,
		"failed":   report.Failed,
	}, nil
}

func (h *Harness) advance(args map[string]any) (string, map[string]any, error) {
	s, err := stringArg(args, "duration")
	if err != nil {
		return "", nil, err
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return "", nil, fmt.Errorf("duration: %w", err)
	}
	h.clock.Advance(d)
	return "Success", map[string]any{"now": h.clock.Now().Format(time.RFC3339)}, nil
}

func (h *Harness) failDNS(args map[string]any) (string, map[string]any, error) {
	op, err := stringArg(args, "op")
	if err != nil {
		return "", nil, err
	}
	h.provider.FailWith[op] = &dnsprovider.ProviderError{
		Provider: "memory",
		Op:       op,
		Status:   http.StatusServiceUnavailable,
		Payload:  optString(args, "message", "service unavailable"),
	}
	return "Success", nil, nil
}

func (h *Harness) healDNS(args map[string]any) (string, map[string]any, error) {
	op, err := stringArg(args, "op")
	if err != nil {
		return "", nil, err
	}
	delete(h.provider.FailWith, op)
	return "Success", nil, nil
}

func (h *Harness) reportAbuse(ctx context.Context, args map[string]any) (string, map[string]any, error) {
	report, err := h.reports.Report(ctx, abuse.Request{
		Name:    optString(args, "name", ""),
		Reason:  optString(args, "reason", ""),
		Details: optString(args, "details", ""),
	})
	var ve *submission.ValidationError
	switch {
	case errors.As(err, &ve):
		return "ValidationError", map[string]any{"field": ve.Field}, nil
	case err != nil:
		return "", nil, err
	}
	return "Success", map[string]any{
		"id":     report.ID,
		"name":   report.Name,
		"status": string(report.Status),
	}, nil
}

func (h *Harness) suspendReport(ctx context.Context, args map[string]any) (string, map[string]any, error) {
	id, err := intArg(args, "report")
	if err != nil {
		return "", nil, err
	}
	s, err := h.reports.Suspend(ctx, id)
	if outcome, ok := reportOutcome(err); ok {
		return outcome, nil, nil
	}
	if err != nil {
		return "", nil, err
	}
	return "Success", map[string]any{
		"record_id": s.RecordID,
		"status":    string(s.Report.Status),
	}, nil
}

func (h *Harness) ignoreReport(ctx context.Context, args map[string]any) (string, map[string]any, error) {
	id, err := intArg(args, "report")
	if err != nil {
		return "", nil, err
	}
	report, err := h.reports.Ignore(ctx, id)
	if outcome, ok := reportOutcome(err); ok {
		return outcome, nil, nil
	}
	if err != nil {
		return "", nil, err
	}
	return "Success", map[string]any{"status": string(report.Status)}, nil
}

func reportOutcome(err error) (string, bool) {
	switch {
	case errors.Is(err, abuse.ErrReportClosed):
		return "AlreadyHandled", true
	case errors.Is(err, abuse.ErrNoRecord):
		return "NoRecord", true
	case errors.Is(err, store.ErrNotFound):
		return "NotFound", true
	case dnsprovider.IsProviderError(err):
		return "ProviderError", true
	}
	return "", false
}

// traceEffects appends the effects observed since the last call, grouped
// by fake: dns, then review, then mail.
func (h *Harness) traceEffects(result *Result) {
	calls := h.provider.Calls()
	for _, c := range calls[h.dnsSeen:] {
		args := map[string]any{}
		if c.ID != "" {
			args["id"] = c.ID
		}
		if c.Op != "delete" {
			args["name"] = c.Record.Name
			args["type"] = string(c.Record.Type)
			args["value"] = c.Record.Value
		}
		result.AddEffect("dns."+c.Op, args)
	}
	h.dnsSeen = len(calls)

	posted := h.channel.Posted()
	for _, msg := range posted[h.postSeen:] {
		result.AddEffect("review.post", messageArgs(msg))
	}
	h.postSeen = len(posted)

	edits := h.channel.Edits()
	for _, e := range edits[h.editSeen:] {
		args := messageArgs(e.Message)
		args["message_id"] = e.MessageID
		result.AddEffect("review.edit", args)
	}
	h.editSeen = len(edits)

	sent := h.mailer.Sent()
	for _, m := range sent[h.mailSeen:] {
		result.AddEffect("mail.send", map[string]any{"to": m.To, "subject": m.Subject})
	}
	h.mailSeen = len(sent)
}

func messageArgs(msg review.Message) map[string]any {
	switch m := msg.(type) {
	case review.Active:
		return map[string]any{
			"application": m.ApplicationID,
			"state":       "active",
			"approve":     m.Tally.Approve,
			"deny":        m.Tally.Deny,
		}
	case review.Terminal:
		return map[string]any{
			"application": m.ApplicationID,
			"state":       "terminal",
			"status":      string(m.Status),
		}
	case review.Report:
		return map[string]any{
			"report": m.ReportID,
			"state":  "report",
			"status": string(m.Status),
		}
	}
	return map[string]any{}
}

// userID returns the id of a scenario user, or 0 if unknown.
func (h *Harness) userID(username string) int64 {
	return h.users[username].ID
}

func stringArg(args map[string]any, key string) (string, error) {
	v, ok := args[key]
	if !ok {
		return "", fmt.Errorf("missing arg %q", key)
	}
	return fmt.Sprint(v), nil
}

func optString(args map[string]any, key, def string) string {
	if v, ok := args[key]; ok {
		return fmt.Sprint(v)
	}
	return def
}

func intArg(args map[string]any, key string) (int64, error) {
	v, ok := args[key]
	if !ok {
		return 0, fmt.Errorf("missing arg %q", key)
	}
	n, ok := toInt64(v)
	if !ok {
		return 0, fmt.Errorf("arg %q: want integer, got %T", key, v)
	}
	return n, nil
}
