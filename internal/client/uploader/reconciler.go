package uploader

import (
	"context"

	"github.com/japanesestudent/media-uploader/internal/models"
)

// Reconciler merges the backend's authoritative media listing into local state
type Reconciler struct {
	backend Backend
	store   AssetStore
}

// NewReconciler creates a new reconciler
func NewReconciler(backend Backend, store AssetStore) *Reconciler {
	return &Reconciler{backend: backend, store: store}
}

// Reconcile lists the media of scope and merges the assets not known locally.
// Ids in refresh are treated as unknown so their canonical copies replace the
// optimistic ones inserted during the batch. Assets removed locally while the
// listing was in flight are not brought back.
//
// Returns the merged assets; a failed listing is returned as *ReconciliationError.
func (r *Reconciler) Reconcile(ctx context.Context, scope models.OwnerScope, refresh []string) ([]models.MediaAsset, error) {
	since := r.store.Version()

	listed, err := r.backend.ListMedia(ctx, scope)
	if err != nil {
		return nil, &ReconciliationError{Scope: scope.String(), Err: err}
	}

	known := r.store.IDs(scope)
	for _, id := range refresh {
		delete(known, id)
	}

	fresh := make([]models.MediaAsset, 0, len(listed))
	for _, asset := range listed {
		if asset.ID == "" {
			continue
		}
		if _, ok := known[asset.ID]; ok {
			continue
		}
		// a listing that repeats an id counts once
		known[asset.ID] = struct{}{}
		asset.Scope = scope
		fresh = append(fresh, asset)
	}

	if len(fresh) == 0 {
		return []models.MediaAsset{}, nil
	}
	return r.store.Merge(scope, fresh, since), nil
}
