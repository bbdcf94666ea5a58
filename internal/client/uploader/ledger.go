package uploader

import (
	"fmt"
	"sort"
	"sync"
)

// EntryStatus is the state of one file in a batch
type EntryStatus string

const (
	StatusPending    EntryStatus = "pending"
	StatusInProgress EntryStatus = "in_progress"
	StatusSuccessful EntryStatus = "successful"
	StatusFailed     EntryStatus = "failed"
)

// IsTerminal reports whether no further writes are accepted for the status
func (s EntryStatus) IsTerminal() bool {
	return s == StatusSuccessful || s == StatusFailed
}

// LedgerEntry is the progress record of one file
type LedgerEntry struct {
	Key      string      `json:"key"`
	MediaID  string      `json:"mediaId,omitempty"`
	Name     string      `json:"name"`
	Progress int         `json:"progress"`
	Status   EntryStatus `json:"status"`
	Reason   string      `json:"reason,omitempty"`

	seq int
}

// localKey is the batch-local key of the file at index i
func localKey(i int) string {
	return fmt.Sprintf("local:%d", i)
}

// Ledger tracks the files of one batch call. Entries start under a batch-local key
// and move to the media id once negotiation succeeds. Terminal entries reject
// further progress and status writes.
//
// A Ledger is safe for concurrent use.
type Ledger struct {
	mu       sync.Mutex
	entries  map[string]*LedgerEntry
	seq      int
	listener func(LedgerEntry)
}

// LedgerOption configures a Ledger
type LedgerOption func(*Ledger)

// WithLedgerListener registers fn to receive a copy of every entry after it changes.
// fn runs with the ledger locked and must not call back into it.
func WithLedgerListener(fn func(LedgerEntry)) LedgerOption {
	return func(l *Ledger) {
		l.listener = fn
	}
}

// NewLedger creates an empty ledger
func NewLedger(opts ...LedgerOption) *Ledger {
	l := &Ledger{entries: make(map[string]*LedgerEntry)}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Add writes a pending entry under key
func (l *Ledger) Add(key, name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.entries[key]; ok {
		return fmt.Errorf("ledger entry %s already exists", key)
	}

	l.seq++
	entry := &LedgerEntry{Key: key, Name: name, Status: StatusPending, seq: l.seq}
	l.entries[key] = entry
	l.notify(entry)
	return nil
}

// Rekey moves the entry from its local key to mediaID. A non-terminal entry becomes
// in_progress in the same step. The returned copy tells the caller whether the entry
// had already been failed, e.g. by a cancellation racing the negotiation.
func (l *Ledger) Rekey(from, mediaID string) (LedgerEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.entries[from]
	if !ok {
		return LedgerEntry{}, fmt.Errorf("ledger entry %s not found", from)
	}
	if _, taken := l.entries[mediaID]; taken && mediaID != from {
		return LedgerEntry{}, fmt.Errorf("ledger entry %s already exists", mediaID)
	}

	delete(l.entries, from)
	entry.Key = mediaID
	entry.MediaID = mediaID
	if !entry.Status.IsTerminal() {
		entry.Status = StatusInProgress
	}
	l.entries[mediaID] = entry
	l.notify(entry)
	return *entry, nil
}

// SetProgress records a 0-100 progress value. It returns false when the entry
// is missing or terminal.
func (l *Ledger) SetProgress(key string, progress int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.entries[key]
	if !ok || entry.Status.IsTerminal() {
		return false
	}

	progress = min(max(progress, 0), 100)
	if progress == entry.Progress {
		return true
	}
	entry.Progress = progress
	l.notify(entry)
	return true
}

// SetStatus records a status with an optional failure reason. It returns false when
// the entry is missing or already terminal.
func (l *Ledger) SetStatus(key string, status EntryStatus, reason string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.entries[key]
	if !ok || entry.Status.IsTerminal() {
		return false
	}

	entry.Status = status
	entry.Reason = reason
	if status == StatusSuccessful {
		entry.Progress = 100
	}
	l.notify(entry)
	return true
}

// FailNonTerminal marks every pending or in_progress entry failed and returns them
func (l *Ledger) FailNonTerminal() []LedgerEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	failed := make([]LedgerEntry, 0)
	for _, entry := range l.entries {
		if entry.Status.IsTerminal() {
			continue
		}
		entry.Status = StatusFailed
		entry.Reason = ""
		l.notify(entry)
		failed = append(failed, *entry)
	}
	sortEntries(failed)
	return failed
}

// Get returns a copy of the entry under key
func (l *Ledger) Get(key string) (LedgerEntry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.entries[key]
	if !ok {
		return LedgerEntry{}, false
	}
	return *entry, true
}

// Snapshot returns copies of all entries in the order they were added
func (l *Ledger) Snapshot() []LedgerEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries := make([]LedgerEntry, 0, len(l.entries))
	for _, entry := range l.entries {
		entries = append(entries, *entry)
	}
	sortEntries(entries)
	return entries
}

// Len returns the number of entries
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Reset discards all entries
func (l *Ledger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = make(map[string]*LedgerEntry)
	l.seq = 0
}

func (l *Ledger) notify(entry *LedgerEntry) {
	if l.listener != nil {
		l.listener(*entry)
	}
}

func sortEntries(entries []LedgerEntry) {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].seq < entries[j].seq
	})
}
