package review

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/subvote/internal/model"
)

func phishReport(status model.ReportStatus) model.AbuseReport {
	return model.AbuseReport{
		ID:         3,
		Name:       "phish.example.org",
		Reason:     "phishing",
		Details:    "fake <bank> login",
		ReporterIP: "198.51.100.4",
		Status:     status,
	}
}

func TestRenderReport_Golden(t *testing.T) {
	bare := phishReport(model.ReportNew)
	bare.Details = ""
	bare.ReporterIP = ""

	tests := []struct {
		name   string
		report model.AbuseReport
	}{
		{name: "report_new", report: phishReport(model.ReportNew)},
		{name: "report_new_bare", report: bare},
		{name: "report_suspended", report: phishReport(model.ReportResolved)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := RenderReport(tt.report)
			newGoldie(t).Assert(t, tt.name, []byte(msg.Text()))
		})
	}
}

func TestRenderReport_ActionsOnlyWhileOpen(t *testing.T) {
	for _, status := range []model.ReportStatus{model.ReportNew, model.ReportAcknowledged} {
		actions := RenderReport(phishReport(status)).Actions()
		require.Len(t, actions, 2, status)
		assert.Equal(t, "report_suspend_3", actions[0].Data)
		assert.Equal(t, "report_ignore_3", actions[1].Data)
	}

	for _, status := range []model.ReportStatus{model.ReportResolved, model.ReportIgnored} {
		msg := RenderReport(phishReport(status))
		assert.Empty(t, msg.Actions(), status)
		assert.Contains(t, msg.Text(), "<b>Status</b>: "+string(status))
	}
}

func TestEncodeDecodeReportAction(t *testing.T) {
	data := EncodeReportAction(ReportIgnore, 9)
	assert.Equal(t, "report_ignore_9", data)
	assert.True(t, IsReportAction(data))
	assert.False(t, IsVote(data))

	action, id, err := DecodeReportAction(data)
	require.NoError(t, err)
	assert.Equal(t, ReportIgnore, action)
	assert.Equal(t, int64(9), id)

	for _, bad := range []string{"vote_approve_1", "report_suspend", "report_delete_1", "report_ignore_x", "report_ignore_0"} {
		_, _, err := DecodeReportAction(bad)
		assert.Error(t, err, bad)
	}
}
