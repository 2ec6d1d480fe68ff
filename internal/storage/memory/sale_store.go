// Package memory provides in-memory storage implementations, used by
// tests and the --use-memory escape hatch of the commands.
package memory

import (
	"context"
	"sort"
	"sync"

	"token-auction-lab/internal/domain"
	"token-auction-lab/internal/storage"
)

// SaleStore is an in-memory implementation of storage.SaleStore.
type SaleStore struct {
	mu   sync.RWMutex
	data map[string]*domain.SaleRecord
}

// NewSaleStore creates a new in-memory sale store.
func NewSaleStore() *SaleStore {
	return &SaleStore{data: make(map[string]*domain.SaleRecord)}
}

// Insert adds a new sale. Returns ErrDuplicateKey if sale_id exists.
func (s *SaleStore) Insert(_ context.Context, rec *domain.SaleRecord) error {
	if rec == nil || rec.SaleID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[rec.SaleID]; exists {
		return storage.ErrDuplicateKey
	}
	copy := *rec
	s.data[rec.SaleID] = &copy
	return nil
}

// GetByID retrieves a sale by its ID. Returns ErrNotFound if not exists.
func (s *SaleStore) GetByID(_ context.Context, saleID string) (*domain.SaleRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.data[saleID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	copy := *rec
	return &copy, nil
}

// UpdateState overwrites the mutable state columns of an existing sale.
func (s *SaleStore) UpdateState(_ context.Context, rec *domain.SaleRecord) error {
	if rec == nil || rec.SaleID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.data[rec.SaleID]
	if !ok {
		return storage.ErrNotFound
	}
	existing.Status = rec.Status
	existing.TotalTokensSold = rec.TotalTokensSold
	existing.TotalProceeds = rec.TotalProceeds
	existing.CurrentEpoch = rec.CurrentEpoch
	existing.Failed = rec.Failed
	existing.UpdatedAt = rec.UpdatedAt
	return nil
}

// List retrieves all sales ordered by created_at ASC.
func (s *SaleStore) List(_ context.Context) ([]*domain.SaleRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.SaleRecord, 0, len(s.data))
	for _, rec := range s.data {
		copy := *rec
		result = append(result, &copy)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt != result[j].CreatedAt {
			return result[i].CreatedAt < result[j].CreatedAt
		}
		return result[i].SaleID < result[j].SaleID
	})
	return result, nil
}

var _ storage.SaleStore = (*SaleStore)(nil)
