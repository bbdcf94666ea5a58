package uploader

import (
	"fmt"

	"github.com/japanesestudent/media-uploader/internal/models"
)

// Outcome is the aggregate outcome of a batch
type Outcome string

const (
	OutcomeAllSucceeded Outcome = "all_succeeded"
	OutcomePartial      Outcome = "partial"
	OutcomeAllFailed    Outcome = "all_failed"
)

// FailedFile describes one file that did not upload
type FailedFile struct {
	Name      string `json:"name"`
	Reason    string `json:"reason,omitempty"`
	Cancelled bool   `json:"cancelled,omitempty"`
	Err       error  `json:"-"`
}

// BatchResult is the outcome of one UploadBatch call
type BatchResult struct {
	SucceededIDs []string     `json:"succeededIds"`
	FailedNames  []string     `json:"failedNames"`
	Failures     []FailedFile `json:"failures,omitempty"`

	// Entries is the ledger as it stood when the pipelines settled, before it was cleared.
	// Failed entries identify the files to resubmit as a new batch.
	Entries []LedgerEntry `json:"entries"`

	// Reconciled holds the assets merged from the authoritative listing
	Reconciled []models.MediaAsset `json:"reconciled,omitempty"`
	// ReconcileErr is set when the listing failed; per-file results stay valid
	ReconcileErr error `json:"-"`
}

// Outcome classifies the batch
func (r *BatchResult) Outcome() Outcome {
	switch {
	case len(r.FailedNames) == 0:
		return OutcomeAllSucceeded
	case len(r.SucceededIDs) == 0:
		return OutcomeAllFailed
	default:
		return OutcomePartial
	}
}

// Summary returns "N succeeded, M failed"
func (r *BatchResult) Summary() string {
	return fmt.Sprintf("%d succeeded, %d failed", len(r.SucceededIDs), len(r.FailedNames))
}

// Message returns the aggregate status line shown to the user
func (r *BatchResult) Message() string {
	switch r.Outcome() {
	case OutcomeAllSucceeded:
		return fmt.Sprintf("%d succeeded", len(r.SucceededIDs))
	case OutcomeAllFailed:
		return "all failed"
	default:
		return r.Summary()
	}
}

// FailedEntries returns the ledger entries that ended failed
func (r *BatchResult) FailedEntries() []LedgerEntry {
	failed := make([]LedgerEntry, 0, len(r.FailedNames))
	for _, entry := range r.Entries {
		if entry.Status == StatusFailed {
			failed = append(failed, entry)
		}
	}
	return failed
}
