package testutil

import (
	"context"
	"strconv"
	"sync"

	"github.com/roach88/subvote/internal/dnsprovider"
	"github.com/roach88/subvote/internal/review"
)

// ProviderCall is one call observed by RecordingProvider.
type ProviderCall struct {
	Op     string // create, update or delete
	ID     string
	Record dnsprovider.Record
}

// RecordingProvider is an in-memory DNS provider that records calls and can
// be told to fail.
type RecordingProvider struct {
	*dnsprovider.Memory

	mu       sync.Mutex
	calls    []ProviderCall
	FailWith map[string]error // Keyed by op
	BeforeOp func(op string)  // Runs before every call
}

// NewRecordingProvider creates a provider that succeeds on every call.
func NewRecordingProvider() *RecordingProvider {
	return &RecordingProvider{Memory: dnsprovider.NewMemory(), FailWith: map[string]error{}}
}

func (p *RecordingProvider) record(c ProviderCall) error {
	if p.BeforeOp != nil {
		p.BeforeOp(c.Op)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, c)
	return p.FailWith[c.Op]
}

// CreateRecord implements dnsprovider.Provider.
func (p *RecordingProvider) CreateRecord(ctx context.Context, r dnsprovider.Record) (string, error) {
	if err := p.record(ProviderCall{Op: "create", Record: r}); err != nil {
		return "", err
	}
	return p.Memory.CreateRecord(ctx, r)
}

// UpdateRecord implements dnsprovider.Provider.
func (p *RecordingProvider) UpdateRecord(ctx context.Context, id string, r dnsprovider.Record) error {
	if err := p.record(ProviderCall{Op: "update", ID: id, Record: r}); err != nil {
		return err
	}
	return p.Memory.UpdateRecord(ctx, id, r)
}

// DeleteRecord implements dnsprovider.Provider.
func (p *RecordingProvider) DeleteRecord(ctx context.Context, id string) error {
	if err := p.record(ProviderCall{Op: "delete", ID: id}); err != nil {
		return err
	}
	return p.Memory.DeleteRecord(ctx, id)
}

// Calls returns a copy of the observed calls.
func (p *RecordingProvider) Calls() []ProviderCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]ProviderCall(nil), p.calls...)
}

// CallCount returns the number of calls of op.
func (p *RecordingProvider) CallCount(op string) int {
	n := 0
	for _, c := range p.Calls() {
		if c.Op == op {
			n++
		}
	}
	return n
}

// Edit is one EditMessage call observed by RecordingChannel.
type Edit struct {
	MessageID string
	Message   review.Message
}

// RecordingChannel is a review channel that records posts and edits.
type RecordingChannel struct {
	mu       sync.Mutex
	next     int
	posted   []review.Message
	edits    []Edit
	FailPost error
	FailEdit error
}

// PostReviewMessage records msg and returns ids "1", "2", ...
func (c *RecordingChannel) PostReviewMessage(_ context.Context, msg review.Message) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailPost != nil {
		return "", c.FailPost
	}
	c.next++
	c.posted = append(c.posted, msg)
	return strconv.Itoa(c.next), nil
}

// EditMessage records the edit.
func (c *RecordingChannel) EditMessage(_ context.Context, messageID string, msg review.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.edits = append(c.edits, Edit{MessageID: messageID, Message: msg})
	return c.FailEdit
}

// Posted returns a copy of posted messages.
func (c *RecordingChannel) Posted() []review.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]review.Message(nil), c.posted...)
}

// Edits returns a copy of observed edits.
func (c *RecordingChannel) Edits() []Edit {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Edit(nil), c.edits...)
}

// LastEdit returns the most recent edit, or false if there was none.
func (c *RecordingChannel) LastEdit() (Edit, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.edits) == 0 {
		return Edit{}, false
	}
	return c.edits[len(c.edits)-1], true
}

// Mail is one email observed by RecordingMailer.
type Mail struct {
	To      string
	Subject string
	Body    string
}

// RecordingMailer records emails instead of sending them.
type RecordingMailer struct {
	mu   sync.Mutex
	sent []Mail
	Fail error
}

// NotifyUser records the email. It still records when Fail is set.
func (m *RecordingMailer) NotifyUser(_ context.Context, address, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, Mail{To: address, Subject: subject, Body: body})
	return m.Fail
}

// Sent returns a copy of the recorded emails.
func (m *RecordingMailer) Sent() []Mail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Mail(nil), m.sent...)
}
