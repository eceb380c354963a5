package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/roach88/subvote/internal/abuse"
	"github.com/roach88/subvote/internal/decision"
	"github.com/roach88/subvote/internal/model"
)

const timeLayout = "2006-01-02 15:04 UTC"

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(timeLayout)
}

type applicationsView []model.Application

func (v applicationsView) RenderText(w io.Writer) error {
	if len(v) == 0 {
		_, err := fmt.Fprintln(w, "No applications.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tKIND\tNAME\tTYPE\tVALUE\tUSER\tDEADLINE")
	for _, a := range v {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			a.ID, a.Status, a.Kind, a.Name, a.RecordType, a.RecordValue, a.Username, formatTime(a.VotingDeadline))
	}
	return tw.Flush()
}

type applicationView model.Application

func (v applicationView) RenderText(w io.Writer) error {
	_, err := fmt.Fprintf(w, "Application #%d filed: %s %s %s (%s), voting closes %s\n",
		v.ID, v.Kind, v.Name, v.RecordType, v.RecordValue, formatTime(v.VotingDeadline))
	return err
}

type applicationDetailView struct {
	Application model.Application `json:"application"`
	Votes       []model.Vote      `json:"votes"`
	Tally       model.Tally       `json:"tally"`

	voterNames map[string]string
}

func (v applicationDetailView) RenderText(w io.Writer) error {
	a := v.Application
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "ID:\t%d\n", a.ID)
	fmt.Fprintf(tw, "Status:\t%s\n", a.Status)
	fmt.Fprintf(tw, "Kind:\t%s\n", a.Kind)
	if a.TargetRecordID != "" {
		fmt.Fprintf(tw, "Record:\t%s\n", a.TargetRecordID)
	}
	fmt.Fprintf(tw, "Name:\t%s\n", a.Name)
	fmt.Fprintf(tw, "Type:\t%s\n", a.RecordType)
	fmt.Fprintf(tw, "Value:\t%s\n", a.RecordValue)
	fmt.Fprintf(tw, "Purpose:\t%s\n", a.Purpose)
	fmt.Fprintf(tw, "User:\t%s <%s>\n", a.Username, a.Email)
	fmt.Fprintf(tw, "Created:\t%s\n", formatTime(a.CreatedAt))
	fmt.Fprintf(tw, "Deadline:\t%s\n", formatTime(a.VotingDeadline))
	if a.ResolvedAt != nil {
		fmt.Fprintf(tw, "Resolved:\t%s\n", formatTime(*a.ResolvedAt))
	}
	if a.Notes != "" {
		fmt.Fprintf(tw, "Notes:\t%s\n", a.Notes)
	}
	fmt.Fprintf(tw, "Votes:\t%s\n", v.Tally)
	for _, vote := range v.Votes {
		voter := vote.VoterID
		if name, ok := v.voterNames[vote.VoterID]; ok {
			voter = name
		}
		fmt.Fprintf(tw, "\t%s %s at %s\n", voter, vote.Kind, formatTime(vote.CreatedAt))
	}
	return tw.Flush()
}

type resolutionView decision.Resolution

func (v resolutionView) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID            string       `json:"resolution_id"`
		ApplicationID int64        `json:"application_id"`
		Status        model.Status `json:"status"`
		Reason        string       `json:"reason"`
		RecordID      string       `json:"record_id,omitempty"`
		Error         string       `json:"dns_error,omitempty"`
	}{
		ID:            v.ID,
		ApplicationID: v.ApplicationID,
		Status:        v.Status,
		Reason:        v.Reason,
		RecordID:      v.RecordID,
		Error:         errString(v.MaterializeErr),
	})
}

func (v resolutionView) RenderText(w io.Writer) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Application #%d is now %s: %s\n", v.ApplicationID, v.Status, v.Reason)
	if v.RecordID != "" {
		fmt.Fprintf(&b, "DNS record: %s\n", v.RecordID)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

type expireView struct {
	Before  time.Time `json:"before"`
	Expired []int64   `json:"expired"`
	Skipped []int64   `json:"skipped"`
	Failed  []int64   `json:"failed"`
}

func (v expireView) RenderText(w io.Writer) error {
	_, err := fmt.Fprintf(w, "Expired %d application(s) created before %s (%d skipped, %d failed)\n",
		len(v.Expired), formatTime(v.Before), len(v.Skipped), len(v.Failed))
	return err
}

type usersView []model.User

func (v usersView) RenderText(w io.Writer) error {
	if len(v) == 0 {
		_, err := fmt.Fprintln(w, "No users.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tUSERNAME\tEMAIL\tROLE\tTELEGRAM")
	for _, u := range v {
		chat := u.ChatUserID
		if chat == "" {
			chat = "-"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", u.ID, u.Username, u.Email, u.Role, chat)
	}
	return tw.Flush()
}

type userView model.User

func (v userView) RenderText(w io.Writer) error {
	_, err := fmt.Fprintf(w, "User %s (%s) is %s\n", v.Username, v.Email, v.Role)
	return err
}

type bindTokenView struct {
	Username  string    `json:"username"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (v bindTokenView) RenderText(w io.Writer) error {
	_, err := fmt.Fprintf(w, "Send this to the bot in a private chat before %s:\n\n  /bind %s\n",
		formatTime(v.ExpiresAt), v.Token)
	return err
}

type reportsView []model.AbuseReport

func (v reportsView) RenderText(w io.Writer) error {
	if len(v) == 0 {
		_, err := fmt.Fprintln(w, "No abuse reports.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tNAME\tREASON\tREPORTER\tCREATED")
	for _, r := range v {
		reporter := r.ReporterIP
		if reporter == "" {
			reporter = "-"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.Status, r.Name, r.Reason, reporter, formatTime(r.CreatedAt))
	}
	return tw.Flush()
}

type reportView model.AbuseReport

func (v reportView) RenderText(w io.Writer) error {
	_, err := fmt.Fprintf(w, "Report #%d on %s is now %s\n", v.ID, v.Name, v.Status)
	return err
}

type suspensionView abuse.Suspension

func (v suspensionView) RenderText(w io.Writer) error {
	_, err := fmt.Fprintf(w, "Suspended %s: record %s deleted, report #%d resolved\n",
		v.Report.Name, v.RecordID, v.Report.ID)
	return err
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
