package review

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/roach88/subvote/internal/model"
)

// DeadlineLayout is how voting deadlines appear in review messages. Always UTC.
const DeadlineLayout = "2006-01-02 15:04 MST"

const rule = "----------------------------------------"

// Message is a rendered review message: Active, Terminal or Report.
type Message interface {
	// Text is the message body in Telegram HTML markup.
	Text() string

	// Actions are the interactive buttons. Empty for terminal messages.
	Actions() []Action

	isMessage()
}

// Action is one interactive button on a review message.
type Action struct {
	Label string
	Data  string // Callback payload, see EncodeVote
}

// Summary is the part of a review message shared by both forms.
type Summary struct {
	ApplicationID int64
	Kind          model.RequestKind
	Applicant     string
	Name          string
	RecordType    model.RecordType
	Value         string
	Purpose       string
	Deadline      time.Time
	Tally         model.Tally
	ApproveVoters []string
	DenyVoters    []string
}

// Active is the review message of a pending application.
type Active struct {
	Summary
}

// Terminal is the review message of a resolved application.
type Terminal struct {
	Summary
	Status model.Status
	Reason string
}

func (Active) isMessage()   {}
func (Terminal) isMessage() {}

// Text implements Message.
func (a Active) Text() string {
	return a.body(model.StatusPending)
}

// Actions implements Message.
func (a Active) Actions() []Action {
	return []Action{
		{Label: "👍 Approve", Data: EncodeVote(model.VoteApprove, a.ApplicationID)},
		{Label: "👎 Deny", Data: EncodeVote(model.VoteDeny, a.ApplicationID)},
	}
}

// Text implements Message.
func (t Terminal) Text() string {
	var b strings.Builder
	b.WriteString(t.body(t.Status))
	b.WriteString("\n\n<b>Result</b>: ")
	b.WriteString(html.EscapeString(t.Reason))
	return b.String()
}

// Actions implements Message. Terminal messages have none.
func (Terminal) Actions() []Action { return nil }

func (s Summary) body(status model.Status) string {
	title := "New subdomain application"
	if s.Kind == model.RequestUpdate {
		title = "Subdomain update request"
	}
	purpose := s.Purpose
	if strings.TrimSpace(purpose) == "" {
		purpose = "none"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "<b>%s</b> #%d\n", title, s.ApplicationID)
	b.WriteString(rule + "\n")
	fmt.Fprintf(&b, "<b>Applicant</b>: %s\n", html.EscapeString(s.Applicant))
	fmt.Fprintf(&b, "<b>Name</b>: <code>%s</code>\n", html.EscapeString(s.Name))
	fmt.Fprintf(&b, "<b>Type</b>: <code>%s</code>\n", s.RecordType)
	fmt.Fprintf(&b, "<b>Value</b>: <code>%s</code>\n", html.EscapeString(s.Value))
	fmt.Fprintf(&b, "<b>Purpose</b>: %s\n", html.EscapeString(purpose))
	fmt.Fprintf(&b, "<b>Status</b>: %s\n", status)
	fmt.Fprintf(&b, "<b>Voting closes</b>: %s\n", s.Deadline.UTC().Format(DeadlineLayout))
	b.WriteString("\n")
	fmt.Fprintf(&b, "<b>Approve</b>: %d (%s)\n", s.Tally.Approve, voterList(s.ApproveVoters))
	fmt.Fprintf(&b, "<b>Deny</b>: %d (%s)", s.Tally.Deny, voterList(s.DenyVoters))
	return b.String()
}

func voterList(names []string) string {
	if len(names) == 0 {
		return "none"
	}
	escaped := make([]string, len(names))
	for i, n := range names {
		escaped[i] = html.EscapeString(n)
	}
	return strings.Join(escaped, ", ")
}

// Render builds the review message for app from its current votes.
//
// names maps voter ids to display names; voters missing from it are shown by
// id. A pending application renders Active, anything else renders Terminal
// with the application's public resolution note as its reason.
func Render(app model.Application, votes []model.Vote, names map[string]string) Message {
	s := Summary{
		ApplicationID: app.ID,
		Kind:          app.Kind,
		Applicant:     app.Username,
		Name:          app.Name,
		RecordType:    app.RecordType,
		Value:         app.RecordValue,
		Purpose:       app.Purpose,
		Deadline:      app.VotingDeadline,
		Tally:         model.Count(votes),
	}
	for _, v := range votes {
		name, ok := names[v.VoterID]
		if !ok || name == "" {
			name = v.VoterID
		}
		switch v.Kind {
		case model.VoteApprove:
			s.ApproveVoters = append(s.ApproveVoters, name)
		case model.VoteDeny:
			s.DenyVoters = append(s.DenyVoters, name)
		}
	}

	if app.Status == model.StatusPending {
		return Active{Summary: s}
	}
	return Terminal{Summary: s, Status: app.Status, Reason: app.PublicNotes()}
}
