package model

import (
	"fmt"
	"strings"
	"time"
)

// Status is the lifecycle state of an Application.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusExpired  Status = "expired"
	StatusError    Status = "error"
)

// IsTerminal reports whether s is one of the states an application can never leave.
// StatusApproved is terminal for voting purposes; the executor that owns the
// claim may still compensate it into StatusError.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusApproved, StatusRejected, StatusExpired, StatusError:
		return true
	}
	return false
}

// ParseStatus validates a status string.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if st == StatusPending || st.IsTerminal() {
		return st, nil
	}
	return "", fmt.Errorf("unknown status %q", s)
}

// Outcome is a decision the executor may be asked to apply.
// It is the subset of Status reachable by a vote or a deadline.
type Outcome string

const (
	OutcomeApproved Outcome = Outcome(StatusApproved)
	OutcomeRejected Outcome = Outcome(StatusRejected)
	OutcomeExpired  Outcome = Outcome(StatusExpired)
)

// Status returns the application status the outcome claims.
func (o Outcome) Status() Status { return Status(o) }

// Valid reports whether o is one of the three decision outcomes.
func (o Outcome) Valid() bool {
	return o == OutcomeApproved || o == OutcomeRejected || o == OutcomeExpired
}

// RequestKind distinguishes a new record from a change to an existing one.
type RequestKind string

const (
	RequestCreate RequestKind = "create"
	RequestUpdate RequestKind = "update"
)

// RecordType is a DNS record type users may request.
type RecordType string

const (
	RecordA     RecordType = "A"
	RecordCNAME RecordType = "CNAME"
)

// ParseRecordType accepts "A" or "CNAME" in any case.
func ParseRecordType(s string) (RecordType, error) {
	switch RecordType(strings.ToUpper(strings.TrimSpace(s))) {
	case RecordA:
		return RecordA, nil
	case RecordCNAME:
		return RecordCNAME, nil
	}
	return "", fmt.Errorf("unsupported record type %q: only A and CNAME are allowed", s)
}

// VoteKind is an admin's stance on an application.
type VoteKind string

const (
	VoteApprove VoteKind = "approve"
	VoteDeny    VoteKind = "deny"
)

// ParseVoteKind validates a vote kind string.
func ParseVoteKind(s string) (VoteKind, error) {
	switch VoteKind(s) {
	case VoteApprove, VoteDeny:
		return VoteKind(s), nil
	}
	return "", fmt.Errorf("unknown vote kind %q", s)
}

// Role is a user's privilege level.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// ParseRole validates a role string.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleUser, RoleAdmin:
		return Role(s), nil
	}
	return "", fmt.Errorf("unknown role %q: must be admin or user", s)
}

// Application is a request to create or update a DNS record, subject to admin vote.
type Application struct {
	ID              int64       `json:"id"`
	UserID          int64       `json:"user_id"`
	Kind            RequestKind `json:"request_type"`
	TargetRecordID  string      `json:"target_dns_record_id,omitempty"` // Required for update, empty for create
	Name            string      `json:"name"`                           // Fully qualified, lower-case ASCII
	RecordType      RecordType  `json:"record_type"`
	RecordValue     string      `json:"record_value"`
	Purpose         string      `json:"purpose"`
	Status          Status      `json:"status"`
	Notes           string      `json:"admin_notes,omitempty"`
	VotingDeadline  time.Time   `json:"voting_deadline_at"`
	ReviewMessageID string      `json:"review_message_id,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	ResolvedAt      *time.Time  `json:"resolved_at,omitempty"`

	// Joined from users on reads; not stored on the application row.
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
}

// FailureReason is the resolution note shown for an application in StatusError.
// The stored note may carry the failure detail after it.
const FailureReason = "approved by vote but the DNS change failed; operator attention required"

// PublicNotes returns the resolution note fit for shared channels. A failed
// application shows FailureReason alone; the stored detail stays with operators.
func (a Application) PublicNotes() string {
	if a.Status == StatusError {
		return FailureReason
	}
	return a.Notes
}

// Vote is one admin's stance on one application.
type Vote struct {
	ApplicationID int64     `json:"application_id"`
	VoterID       string    `json:"voter_id"` // Chat user id of the admin
	Kind          VoteKind  `json:"vote_type"`
	CreatedAt     time.Time `json:"created_at"`
}

// Tally counts approve and deny votes.
type Tally struct {
	Approve int `json:"approve"`
	Deny    int `json:"deny"`
}

// Total is the number of votes cast.
func (t Tally) Total() int { return t.Approve + t.Deny }

// String renders the tally the way resolution reasons cite it.
func (t Tally) String() string {
	return fmt.Sprintf("approve=%d, deny=%d", t.Approve, t.Deny)
}

// Count tallies a vote list.
func Count(votes []Vote) Tally {
	var t Tally
	for _, v := range votes {
		switch v.Kind {
		case VoteApprove:
			t.Approve++
		case VoteDeny:
			t.Deny++
		}
	}
	return t
}

// DNSRecord is a materialized, currently-active record owned by a user.
type DNSRecord struct {
	ID        string     `json:"id"` // Provider-assigned identifier
	UserID    int64      `json:"user_id"`
	Type      RecordType `json:"type"`
	Name      string     `json:"name"`
	Value     string     `json:"content"`
	TTL       int        `json:"ttl"`
	CreatedAt time.Time  `json:"created_at"`
}

// User is an account that may submit applications or, as an admin, vote.
type User struct {
	ID                 int64      `json:"id"`
	Username           string     `json:"username"`
	Email              string     `json:"email"`
	Role               Role       `json:"role"`
	ChatUserID         string     `json:"telegram_user_id,omitempty"`
	BindToken          string     `json:"-"`
	BindTokenExpiresAt *time.Time `json:"-"`
	CreatedAt          time.Time  `json:"created_at"`
}

// IsAdmin reports whether the user may vote.
func (u User) IsAdmin() bool { return u.Role == RoleAdmin }

// ReportStatus is the lifecycle state of an AbuseReport.
type ReportStatus string

const (
	ReportNew          ReportStatus = "new"
	ReportAcknowledged ReportStatus = "acknowledged"
	ReportResolved     ReportStatus = "resolved" // The reported name was suspended
	ReportIgnored      ReportStatus = "ignored"
)

// IsOpen reports whether an admin may still act on the report.
func (s ReportStatus) IsOpen() bool {
	return s == ReportNew || s == ReportAcknowledged
}

// ParseReportStatus validates a report status string.
func ParseReportStatus(s string) (ReportStatus, error) {
	switch st := ReportStatus(s); st {
	case ReportNew, ReportAcknowledged, ReportResolved, ReportIgnored:
		return st, nil
	}
	return "", fmt.Errorf("unknown report status %q", s)
}

// AbuseReport is a complaint about a name under the parent domain.
type AbuseReport struct {
	ID              int64        `json:"id"`
	Name            string       `json:"subdomain"` // Fully qualified, lower-case ASCII
	Reason          string       `json:"reason"`
	Details         string       `json:"details,omitempty"`
	ReporterIP      string       `json:"reporter_ip,omitempty"`
	Status          ReportStatus `json:"status"`
	ReviewMessageID string       `json:"review_message_id,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
}
