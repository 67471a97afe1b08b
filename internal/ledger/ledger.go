// Package ledger persists escalated messages for human review.
package ledger

import (
	"context"

	"github.com/nhle/mailbot/internal/model"
)

// Ledger is the durable append-only record of escalated messages.
//
// Single-writer contract: exactly one pipeline process appends; records
// are never updated or deleted by this system. A human operator retires
// them out of band.
type Ledger interface {
	// Append durably stores one review record.
	Append(ctx context.Context, rec model.ReviewRecord) error

	// ReadAll returns every record in insertion order. An absent or
	// empty store yields zero records, not an error.
	ReadAll(ctx context.Context) ([]model.ReviewRecord, error)

	// Close releases the underlying store.
	Close() error
}
