package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"token-auction-lab/internal/domain"
	"token-auction-lab/internal/storage"
)

// RebalanceStore is an in-memory implementation of storage.RebalanceStore.
type RebalanceStore struct {
	mu   sync.RWMutex
	data map[string]*domain.RebalanceRecord // keyed by sale_id|epoch
}

// NewRebalanceStore creates a new in-memory rebalance store.
func NewRebalanceStore() *RebalanceStore {
	return &RebalanceStore{data: make(map[string]*domain.RebalanceRecord)}
}

func rebalanceKey(saleID string, epoch int64) string {
	return fmt.Sprintf("%s|%d", saleID, epoch)
}

// Insert adds one rebalance record. Returns ErrDuplicateKey if
// (sale_id, epoch) exists.
func (s *RebalanceStore) Insert(_ context.Context, rec *domain.RebalanceRecord) error {
	if rec == nil || rec.SaleID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := rebalanceKey(rec.SaleID, rec.Epoch)
	if _, exists := s.data[key]; exists {
		return storage.ErrDuplicateKey
	}
	copy := *rec
	copy.Slugs = append([]domain.SlugSnapshot(nil), rec.Slugs...)
	s.data[key] = &copy
	return nil
}

// GetBySaleID retrieves all rebalances for a sale, ordered by epoch ASC.
func (s *RebalanceStore) GetBySaleID(_ context.Context, saleID string) ([]*domain.RebalanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.RebalanceRecord
	for _, rec := range s.data {
		if rec.SaleID == saleID {
			copy := *rec
			copy.Slugs = append([]domain.SlugSnapshot(nil), rec.Slugs...)
			result = append(result, &copy)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Epoch < result[j].Epoch
	})
	return result, nil
}

var _ storage.RebalanceStore = (*RebalanceStore)(nil)
