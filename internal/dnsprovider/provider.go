// Package dnsprovider adapts third-party DNS authorities to one small interface.
//
// Implementations:
//   - Cloudflare: v4 REST API over net/http
//   - DigitalOcean: godo client authenticated with an oauth2 static token
//   - Memory: in-process records, for local runs and tests
//
// Limited wraps any Provider with a token-bucket rate limit.
package dnsprovider

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/subvote/internal/model"
)

// Provider creates, updates and deletes records at a DNS authority.
// Record ids are opaque provider-assigned strings.
type Provider interface {
	CreateRecord(ctx context.Context, r Record) (string, error)
	UpdateRecord(ctx context.Context, id string, r Record) error
	DeleteRecord(ctx context.Context, id string) error
}

// Record is the provider-facing view of a DNS record.
type Record struct {
	Type  model.RecordType
	Name  string // Fully qualified, lower-case ASCII
	Value string
	TTL   int
}

// ProviderError is a failed provider call.
type ProviderError struct {
	// Provider names the authority, e.g. "cloudflare".
	Provider string

	// Op is the failed operation: create, update or delete.
	Op string

	// Status is the HTTP status code, or 0 if no response was received.
	Status int

	// Payload is the diagnostic body or message returned by the provider.
	Payload string

	// Err is the underlying transport error, if any.
	Err error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s %s record: %s", e.Provider, e.Op, e.Payload)
	}
	return fmt.Sprintf("%s %s record: status %d: %s", e.Provider, e.Op, e.Status, e.Payload)
}

// Unwrap returns the underlying transport error.
func (e *ProviderError) Unwrap() error { return e.Err }

// IsProviderError returns true if err is or wraps a *ProviderError.
func IsProviderError(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}
