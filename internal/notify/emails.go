package notify

import (
	"fmt"

	"github.com/roach88/subvote/internal/model"
)

// Email is a rendered subject and plain-text body.
type Email struct {
	Subject string
	Body    string
}

const signature = "\n\n-- \nsubvote"

// SubmittedEmail confirms that an application was received and is under review.
func SubmittedEmail(app model.Application) Email {
	return Email{
		Subject: fmt.Sprintf("Application received: %s", app.Name),
		Body: fmt.Sprintf(
			"Hello %s,\n\nWe received your request for %s (%s %s).\n"+
				"Admins will vote on it; voting closes at %s.\n"+
				"You will get another email once it is decided.",
			app.Username, app.Name, app.RecordType, app.RecordValue,
			app.VotingDeadline.UTC().Format("2006-01-02 15:04 MST"),
		) + signature,
	}
}

// ApprovedEmail announces that the record is live.
func ApprovedEmail(app model.Application) Email {
	return Email{
		Subject: fmt.Sprintf("Application approved: %s", app.Name),
		Body: fmt.Sprintf(
			"Hello %s,\n\nYour request for %s was approved and the DNS record is now active:\n\n"+
				"    %s %s %s\n\nDNS changes can take a few minutes to propagate.",
			app.Username, app.Name, app.Name, app.RecordType, app.RecordValue,
		) + signature,
	}
}

// RejectedEmail explains a rejection.
func RejectedEmail(app model.Application, reason string) Email {
	return Email{
		Subject: fmt.Sprintf("Application rejected: %s", app.Name),
		Body: fmt.Sprintf(
			"Hello %s,\n\nYour request for %s was rejected.\n\nReason: %s",
			app.Username, app.Name, reason,
		) + signature,
	}
}

// ExpiredEmail reports that no admin voted before the deadline.
func ExpiredEmail(app model.Application) Email {
	return Email{
		Subject: fmt.Sprintf("Application expired: %s", app.Name),
		Body: fmt.Sprintf(
			"Hello %s,\n\nYour request for %s expired because no admin voted before the deadline.\n"+
				"You are welcome to submit it again.",
			app.Username, app.Name,
		) + signature,
	}
}

// FailedEmail reports an approval whose DNS change could not be applied.
func FailedEmail(app model.Application) Email {
	return Email{
		Subject: fmt.Sprintf("Application could not be completed: %s", app.Name),
		Body: fmt.Sprintf(
			"Hello %s,\n\nYour request for %s was approved by the admins, but applying the DNS change failed.\n"+
				"No record was changed. An operator has been flagged to look into it; please contact the admins if you do not hear back.",
			app.Username, app.Name,
		) + signature,
	}
}

// OutcomeEmail picks the email for a terminal status.
func OutcomeEmail(app model.Application, status model.Status, reason string) Email {
	switch status {
	case model.StatusApproved:
		return ApprovedEmail(app)
	case model.StatusExpired:
		return ExpiredEmail(app)
	case model.StatusError:
		return FailedEmail(app)
	default:
		return RejectedEmail(app, reason)
	}
}
