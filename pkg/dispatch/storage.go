package dispatch

import (
	"context"
	"time"

	"github.com/dmitrymomot/notifykit/pkg/notify"
)

// Storage persists notification records. The dispatcher creates a record
// before the first attempt and updates it as per-channel results settle,
// so a record is always retrievable even when delivery is still in flight.
type Storage interface {
	// Create stores a new notification record.
	Create(ctx context.Context, rec notify.Record) error

	// Update replaces the stored record with the given snapshot.
	Update(ctx context.Context, rec notify.Record) error

	// Get retrieves a single record by ID.
	Get(ctx context.Context, id string) (*notify.Record, error)

	// List returns records for a recipient, newest first.
	List(ctx context.Context, recipientID string, opts ListOptions) ([]notify.Record, error)
}

// ListOptions provides filtering and pagination options for listing records.
type ListOptions struct {
	Limit  int        // Maximum number of records to return (0 = no limit)
	Offset int        // Number of records to skip for pagination
	Types  []string   // If specified, only return records of these notification types
	Since  *time.Time // If specified, only return records created after this time
}
