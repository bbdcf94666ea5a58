package repositories

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/japanesestudent/media-uploader/internal/models"
)

// memoryRepository keeps media records in process memory.
// It backs the development backend when no database is configured.
type memoryRepository struct {
	mu      sync.RWMutex
	records map[string]models.MediaRecord
}

// NewMemoryRepository creates an empty in-memory media repository
func NewMemoryRepository() *memoryRepository {
	return &memoryRepository{records: make(map[string]models.MediaRecord)}
}

func (r *memoryRepository) Create(ctx context.Context, record *models.MediaRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[record.ID] = *record
	return nil
}

func (r *memoryRepository) GetByID(ctx context.Context, id string) (*models.MediaRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.records[id]
	if !ok {
		return nil, models.ErrMediaNotFound
	}
	return &record, nil
}

func (r *memoryRepository) ListByScope(ctx context.Context, scope models.OwnerScope) ([]models.MediaRecord, error) {
	return r.filter(func(rec models.MediaRecord) bool {
		return rec.Scope == scope && rec.Status != models.AssetStatusFailed
	}), nil
}

func (r *memoryRepository) ListStale(ctx context.Context, cutoff time.Time) ([]models.MediaRecord, error) {
	return r.filter(func(rec models.MediaRecord) bool {
		if !rec.Scope.IsCourse() {
			return false
		}
		return rec.Status == models.AssetStatusFailed ||
			(rec.Status == models.AssetStatusPending && rec.CreatedAt.Before(cutoff))
	}), nil
}

func (r *memoryRepository) UpdateStatus(ctx context.Context, id string, status models.AssetStatus, size *int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.records[id]
	if !ok {
		return models.ErrMediaNotFound
	}
	record.Status = status
	if size != nil {
		record.FileSize = models.Int64Ptr(*size)
	}
	record.UpdatedAt = time.Now().UTC()
	r.records[id] = record
	return nil
}

func (r *memoryRepository) DeleteByID(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[id]; !ok {
		return models.ErrMediaNotFound
	}
	delete(r.records, id)
	return nil
}

func (r *memoryRepository) filter(keep func(models.MediaRecord) bool) []models.MediaRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	records := make([]models.MediaRecord, 0)
	for _, rec := range r.records {
		if keep(rec) {
			records = append(records, rec)
		}
	}
	slices.SortFunc(records, func(a, b models.MediaRecord) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return records
}
