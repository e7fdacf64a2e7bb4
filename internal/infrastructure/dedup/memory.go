package dedup

import (
	"context"
	"errors"
	"strings"
	"sync"

	"minerva/internal/errs"
	"minerva/internal/ports"
)

// MemoryStore is the process-lifetime dedup ledger. Losing it on restart is
// an accepted cost; each unit of work stays retriable from mailbox state.
type MemoryStore struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

var _ ports.DedupStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{seen: make(map[string]struct{})}
}

func (s *MemoryStore) Seen(ctx context.Context, key string) (bool, error) {
	if ctx == nil {
		return false, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return false, errs.Wrap(err, "check context")
	}

	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return false, errors.New("key is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.seen[trimmed]
	return ok, nil
}

func (s *MemoryStore) Mark(ctx context.Context, key string) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}

	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return errors.New("key is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen[trimmed] = struct{}{}
	return nil
}

// NopDeliveryLog discards delivery records; used with the memory store.
type NopDeliveryLog struct{}

var _ ports.DeliveryLog = (*NopDeliveryLog)(nil)

func (NopDeliveryLog) Record(_ context.Context, _ ports.DeliveryRecord) error {
	return nil
}
