package notify

import (
	"context"

	"github.com/roach88/subvote/internal/review"
)

// NopChannel is a review channel that posts nowhere. Posted messages get no id,
// so later edits are skipped by callers.
type NopChannel struct{}

// PostReviewMessage returns an empty id.
func (NopChannel) PostReviewMessage(context.Context, review.Message) (string, error) {
	return "", nil
}

// EditMessage does nothing.
func (NopChannel) EditMessage(context.Context, string, review.Message) error {
	return nil
}
