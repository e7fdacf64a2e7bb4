package ports

import "context"

// DedupStore gates side-effecting work on already-handled items. Adapters may
// be process-local (re-processing after restart accepted) or sqlite-backed
// when durability across restarts is wanted.
type DedupStore interface {
	Seen(ctx context.Context, key string) (bool, error)
	Mark(ctx context.Context, key string) error
}

// DeliveryRecord is one webhook delivery, kept for audit.
type DeliveryRecord struct {
	DeliveryID string
	Event      string
	Action     string
	PRNumber   int
	ReceivedAt string
}

// DeliveryLog records webhook deliveries best-effort; failures must not
// affect request handling.
type DeliveryLog interface {
	Record(ctx context.Context, rec DeliveryRecord) error
}
