// Package assets keeps the merged local view of course and unit media
package assets

import (
	"cmp"
	"slices"
	"sync"

	"github.com/japanesestudent/media-uploader/internal/models"
)

// Store holds media assets per owner scope. Every change bumps a version counter;
// removals remember the version they happened at so a listing fetched earlier
// cannot bring a removed asset back.
//
// A Store is safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	scopes  map[models.OwnerScope]*scopeAssets
	version uint64
}

type scopeAssets struct {
	byID    map[string]*record
	seq     uint64
	removed map[string]uint64
}

type record struct {
	asset models.MediaAsset
	seq   uint64
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{scopes: make(map[models.OwnerScope]*scopeAssets)}
}

func (s *Store) scope(scope models.OwnerScope) *scopeAssets {
	sa, ok := s.scopes[scope]
	if !ok {
		sa = &scopeAssets{
			byID:    make(map[string]*record),
			removed: make(map[string]uint64),
		}
		s.scopes[scope] = sa
	}
	return sa
}

// Upsert inserts the asset or replaces the one with the same id, keeping its position
func (s *Store) Upsert(asset models.MediaAsset) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.version++
	s.put(s.scope(asset.Scope), asset)
}

func (s *Store) put(sa *scopeAssets, asset models.MediaAsset) {
	delete(sa.removed, asset.ID)
	if rec, ok := sa.byID[asset.ID]; ok {
		rec.asset = asset
		return
	}
	sa.seq++
	sa.byID[asset.ID] = &record{asset: asset, seq: sa.seq}
}

// Merge upserts listed assets of scope. Assets removed after version since are
// skipped. A listed asset without a size or URLs keeps the ones already stored.
//
// Returns the assets as stored.
func (s *Store) Merge(scope models.OwnerScope, assets []models.MediaAsset, since uint64) []models.MediaAsset {
	s.mu.Lock()
	defer s.mu.Unlock()

	sa := s.scope(scope)
	merged := make([]models.MediaAsset, 0, len(assets))
	for _, asset := range assets {
		if removedAt, ok := sa.removed[asset.ID]; ok && removedAt > since {
			continue
		}

		asset.Scope = scope
		if rec, ok := sa.byID[asset.ID]; ok {
			if asset.FileSize == nil {
				asset.FileSize = rec.asset.FileSize
			}
			if asset.TransferURLs.IsEmpty() {
				asset.TransferURLs = rec.asset.TransferURLs
			}
		}

		s.version++
		s.put(sa, asset)
		merged = append(merged, asset)
	}
	return merged
}

// Remove deletes the asset and returns whether it was present
func (s *Store) Remove(scope models.OwnerScope, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.version++
	sa := s.scope(scope)
	sa.removed[id] = s.version

	if _, ok := sa.byID[id]; !ok {
		return false
	}
	delete(sa.byID, id)
	return true
}

// Get returns the asset with id
func (s *Store) Get(scope models.OwnerScope, id string) (models.MediaAsset, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sa, ok := s.scopes[scope]
	if !ok {
		return models.MediaAsset{}, false
	}
	rec, ok := sa.byID[id]
	if !ok {
		return models.MediaAsset{}, false
	}
	return rec.asset, true
}

// ForScope returns the assets of scope in insertion order
func (s *Store) ForScope(scope models.OwnerScope) []models.MediaAsset {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sa, ok := s.scopes[scope]
	if !ok {
		return []models.MediaAsset{}
	}

	records := make([]*record, 0, len(sa.byID))
	for _, rec := range sa.byID {
		records = append(records, rec)
	}
	slices.SortFunc(records, func(a, b *record) int {
		return cmp.Compare(a.seq, b.seq)
	})

	result := make([]models.MediaAsset, 0, len(records))
	for _, rec := range records {
		result = append(result, rec.asset)
	}
	return result
}

// IDs returns the ids known for scope
func (s *Store) IDs(scope models.OwnerScope) map[string]struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make(map[string]struct{})
	if sa, ok := s.scopes[scope]; ok {
		for id := range sa.byID {
			ids[id] = struct{}{}
		}
	}
	return ids
}

// Version returns the change counter
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}
