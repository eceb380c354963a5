package review

import (
	"fmt"
	"html"
	"strings"

	"github.com/roach88/subvote/internal/model"
)

// Report is the review message of an abuse report. Open reports carry
// suspend and ignore actions; closed reports carry none.
type Report struct {
	ReportID   int64
	Name       string
	Reason     string
	Details    string
	ReporterIP string
	Status     model.ReportStatus
}

func (Report) isMessage() {}

// RenderReport builds the review message for r.
func RenderReport(r model.AbuseReport) Message {
	return Report{
		ReportID:   r.ID,
		Name:       r.Name,
		Reason:     r.Reason,
		Details:    r.Details,
		ReporterIP: r.ReporterIP,
		Status:     r.Status,
	}
}

// Text implements Message.
func (r Report) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>Abuse report</b> #%d\n", r.ReportID)
	b.WriteString(rule + "\n")
	fmt.Fprintf(&b, "<b>Reported name</b>: <code>%s</code>\n", html.EscapeString(r.Name))
	fmt.Fprintf(&b, "<b>Reason</b>: %s\n", html.EscapeString(r.Reason))
	fmt.Fprintf(&b, "<b>Details</b>: %s\n", html.EscapeString(orDefault(r.Details, "none")))
	fmt.Fprintf(&b, "<b>Reporter IP</b>: %s\n", html.EscapeString(orDefault(r.ReporterIP, "unknown")))
	fmt.Fprintf(&b, "<b>Status</b>: %s", r.Status)
	switch r.Status {
	case model.ReportAcknowledged:
		b.WriteString(" (acknowledged by an admin)")
	case model.ReportResolved:
		b.WriteString(" (name suspended)")
	case model.ReportIgnored:
		b.WriteString(" (ignored)")
	}
	return b.String()
}

// Actions implements Message.
func (r Report) Actions() []Action {
	if !r.Status.IsOpen() {
		return nil
	}
	return []Action{
		{Label: "⚡️ Suspend name", Data: EncodeReportAction(ReportSuspend, r.ReportID)},
		{Label: "🙈 Ignore", Data: EncodeReportAction(ReportIgnore, r.ReportID)},
	}
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
