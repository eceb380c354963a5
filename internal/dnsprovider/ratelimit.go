package dnsprovider

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// Limited throttles calls to an underlying Provider with a token bucket.
// Calls block until a token is available or ctx is done.
type Limited struct {
	next Provider
	lim  *rate.Limiter
}

// WithRateLimit wraps p so that at most rps calls per second are made, with
// bursts up to burst. A non-positive rps disables limiting and returns p.
func WithRateLimit(p Provider, rps float64, burst int) Provider {
	if rps <= 0 {
		return p
	}
	if burst < 1 {
		burst = 1
	}
	return &Limited{next: p, lim: rate.NewLimiter(rate.Limit(rps), burst)}
}

// CreateRecord implements Provider.
func (l *Limited) CreateRecord(ctx context.Context, r Record) (string, error) {
	if err := l.wait(ctx, "create"); err != nil {
		return "", err
	}
	return l.next.CreateRecord(ctx, r)
}

// UpdateRecord implements Provider.
func (l *Limited) UpdateRecord(ctx context.Context, id string, r Record) error {
	if err := l.wait(ctx, "update"); err != nil {
		return err
	}
	return l.next.UpdateRecord(ctx, id, r)
}

// DeleteRecord implements Provider.
func (l *Limited) DeleteRecord(ctx context.Context, id string) error {
	if err := l.wait(ctx, "delete"); err != nil {
		return err
	}
	return l.next.DeleteRecord(ctx, id)
}

func (l *Limited) wait(ctx context.Context, op string) error {
	if err := l.lim.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit %s record: %w", op, err)
	}
	return nil
}
