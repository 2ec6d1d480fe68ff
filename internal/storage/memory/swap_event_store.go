package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"token-auction-lab/internal/domain"
	"token-auction-lab/internal/storage"
)

// SwapEventStore is an in-memory implementation of storage.SwapEventStore.
type SwapEventStore struct {
	mu     sync.RWMutex
	data   map[string]*domain.SwapEventRecord // keyed by sale_id|seq
	nextID int64
}

// NewSwapEventStore creates a new in-memory swap event store.
func NewSwapEventStore() *SwapEventStore {
	return &SwapEventStore{data: make(map[string]*domain.SwapEventRecord)}
}

func swapEventKey(saleID string, seq int64) string {
	return fmt.Sprintf("%s|%d", saleID, seq)
}

// Insert adds a new swap event. Returns ErrDuplicateKey if (sale_id, seq) exists.
func (s *SwapEventStore) Insert(_ context.Context, e *domain.SwapEventRecord) error {
	if e == nil || e.SaleID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(e)
}

// InsertBulk adds multiple events atomically. Fails entire batch on any duplicate.
func (s *SwapEventStore) InsertBulk(_ context.Context, events []*domain.SwapEventRecord) error {
	if len(events) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(events))
	for _, e := range events {
		if e == nil || e.SaleID == "" {
			return storage.ErrInvalidInput
		}
		key := swapEventKey(e.SaleID, e.Seq)
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, e := range events {
		if err := s.insertLocked(e); err != nil {
			return err
		}
	}
	return nil
}

func (s *SwapEventStore) insertLocked(e *domain.SwapEventRecord) error {
	key := swapEventKey(e.SaleID, e.Seq)
	if _, exists := s.data[key]; exists {
		return storage.ErrDuplicateKey
	}
	s.nextID++
	copy := *e
	copy.ID = s.nextID
	s.data[key] = &copy
	return nil
}

// GetBySaleID retrieves all events for a sale, ordered by seq ASC.
func (s *SwapEventStore) GetBySaleID(_ context.Context, saleID string) ([]*domain.SwapEventRecord, error) {
	return s.collect(func(e *domain.SwapEventRecord) bool {
		return e.SaleID == saleID
	})
}

// GetByEpoch retrieves a sale's events for one epoch, ordered by seq ASC.
func (s *SwapEventStore) GetByEpoch(_ context.Context, saleID string, epoch int64) ([]*domain.SwapEventRecord, error) {
	return s.collect(func(e *domain.SwapEventRecord) bool {
		return e.SaleID == saleID && e.Epoch == epoch
	})
}

func (s *SwapEventStore) collect(match func(*domain.SwapEventRecord) bool) ([]*domain.SwapEventRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.SwapEventRecord
	for _, e := range s.data {
		if match(e) {
			copy := *e
			result = append(result, &copy)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Seq < result[j].Seq
	})
	return result, nil
}

var _ storage.SwapEventStore = (*SwapEventStore)(nil)
