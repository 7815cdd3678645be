package dispatch

import (
	"context"
	"slices"
	"sync"

	"github.com/dmitrymomot/notifykit/pkg/notify"
)

// MemoryStorage is an in-memory implementation of the Storage interface.
// Suitable for development and testing; production deployments plug in a
// database-backed implementation.
type MemoryStorage struct {
	mu          sync.RWMutex
	records     map[string]notify.Record
	byRecipient map[string][]string // recipientID -> record IDs in creation order
}

// NewMemoryStorage creates a new in-memory record storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		records:     make(map[string]notify.Record),
		byRecipient: make(map[string][]string),
	}
}

func (s *MemoryStorage) Create(ctx context.Context, rec notify.Record) error {
	if rec.ID == "" {
		return ErrRecordNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[rec.ID] = cloneRecord(rec)
	recipientID := rec.Request.Recipient.ID
	s.byRecipient[recipientID] = append(s.byRecipient[recipientID], rec.ID)
	return nil
}

func (s *MemoryStorage) Update(ctx context.Context, rec notify.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[rec.ID]; !ok {
		return ErrRecordNotFound
	}
	s.records[rec.ID] = cloneRecord(rec)
	return nil
}

func (s *MemoryStorage) Get(ctx context.Context, id string) (*notify.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, ErrRecordNotFound
	}
	out := cloneRecord(rec)
	return &out, nil
}

func (s *MemoryStorage) List(ctx context.Context, recipientID string, opts ListOptions) ([]notify.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byRecipient[recipientID]
	filtered := make([]notify.Record, 0, len(ids))
	// Walk newest first: IDs are appended in creation order.
	for i := len(ids) - 1; i >= 0; i-- {
		rec, ok := s.records[ids[i]]
		if !ok {
			continue
		}
		if len(opts.Types) > 0 && !slices.Contains(opts.Types, rec.Request.Type) {
			continue
		}
		if opts.Since != nil && rec.CreatedAt.Before(*opts.Since) {
			continue
		}
		filtered = append(filtered, cloneRecord(rec))
	}

	if opts.Offset > 0 {
		if opts.Offset >= len(filtered) {
			return []notify.Record{}, nil
		}
		filtered = filtered[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(filtered) {
		filtered = filtered[:opts.Limit]
	}
	return filtered, nil
}

// cloneRecord deep-copies the results map so stored state never aliases
// a record the dispatcher is still mutating.
func cloneRecord(rec notify.Record) notify.Record {
	results := make(map[notify.Channel]notify.DeliveryResult, len(rec.Results))
	for ch, res := range rec.Results {
		results[ch] = res
	}
	rec.Results = results
	return rec
}
