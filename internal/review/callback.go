package review

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/subvote/internal/model"
)

const votePrefix = "vote_"

// EncodeVote builds the callback payload for a vote button: vote_<kind>_<id>.
func EncodeVote(kind model.VoteKind, applicationID int64) string {
	return fmt.Sprintf("%s%s_%d", votePrefix, kind, applicationID)
}

// IsVote reports whether data looks like a vote payload.
func IsVote(data string) bool {
	return strings.HasPrefix(data, votePrefix)
}

// DecodeVote parses a payload produced by EncodeVote.
func DecodeVote(data string) (model.VoteKind, int64, error) {
	rest, ok := strings.CutPrefix(data, votePrefix)
	if !ok {
		return "", 0, fmt.Errorf("decode vote %q: missing %q prefix", data, votePrefix)
	}
	kindStr, idStr, ok := strings.Cut(rest, "_")
	if !ok {
		return "", 0, fmt.Errorf("decode vote %q: missing application id", data)
	}
	kind, err := model.ParseVoteKind(kindStr)
	if err != nil {
		return "", 0, fmt.Errorf("decode vote %q: %w", data, err)
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		return "", 0, fmt.Errorf("decode vote %q: invalid application id", data)
	}
	return kind, id, nil
}

const reportPrefix = "report_"

// ReportAction is an admin decision on an abuse report.
type ReportAction string

const (
	ReportSuspend ReportAction = "suspend"
	ReportIgnore  ReportAction = "ignore"
)

// EncodeReportAction builds the callback payload for a report button:
// report_<action>_<id>.
func EncodeReportAction(action ReportAction, reportID int64) string {
	return fmt.Sprintf("%s%s_%d", reportPrefix, action, reportID)
}

// IsReportAction reports whether data looks like a report action payload.
func IsReportAction(data string) bool {
	return strings.HasPrefix(data, reportPrefix)
}

// DecodeReportAction parses a payload produced by EncodeReportAction.
func DecodeReportAction(data string) (ReportAction, int64, error) {
	rest, ok := strings.CutPrefix(data, reportPrefix)
	if !ok {
		return "", 0, fmt.Errorf("decode report action %q: missing %q prefix", data, reportPrefix)
	}
	actionStr, idStr, ok := strings.Cut(rest, "_")
	if !ok {
		return "", 0, fmt.Errorf("decode report action %q: missing report id", data)
	}
	action := ReportAction(actionStr)
	if action != ReportSuspend && action != ReportIgnore {
		return "", 0, fmt.Errorf("decode report action %q: unknown action %q", data, actionStr)
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		return "", 0, fmt.Errorf("decode report action %q: invalid report id", data)
	}
	return action, id, nil
}
