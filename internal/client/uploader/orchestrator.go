package uploader

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/japanesestudent/media-uploader/internal/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	taskFinalize       = "finalize"
	taskNotifyComplete = "notify_completed"
	taskNotifyFailed   = "notify_failed"
)

// Orchestrator runs upload batches: one negotiate, transport and finalize pipeline
// per file, all files concurrently, followed by a single reconciliation.
type Orchestrator struct {
	backend     Backend
	store       AssetStore
	negotiator  *Negotiator
	transporter *Transporter
	finalizer   *Finalizer
	reconciler  *Reconciler
	logger      *zap.Logger
	observer    Observer
	maxParallel int

	mu      sync.Mutex
	batches map[*batch]struct{}

	detached sync.WaitGroup
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithObserver sets the metrics observer
func WithObserver(observer Observer) Option {
	return func(o *Orchestrator) {
		if observer != nil {
			o.observer = observer
		}
	}
}

// WithMaxParallel limits how many files of a batch run at once; 0 means no limit
func WithMaxParallel(n int) Option {
	return func(o *Orchestrator) {
		o.maxParallel = n
	}
}

// WithHTTPClient sets the client used for storage PUTs
func WithHTTPClient(client *http.Client) Option {
	return func(o *Orchestrator) {
		o.transporter = NewTransporter(client)
	}
}

// New creates a new orchestrator
func New(backend Backend, store AssetStore, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		backend:     backend,
		store:       store,
		negotiator:  NewNegotiator(backend),
		transporter: NewTransporter(nil),
		finalizer:   NewFinalizer(backend),
		reconciler:  NewReconciler(backend, store),
		logger:      zap.NewNop(),
		observer:    nopObserver{},
		batches:     make(map[*batch]struct{}),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// batch is the state of one UploadBatch call
type batch struct {
	scope   models.OwnerScope
	kind    models.MediaKind
	ledger  *Ledger
	cancels *cancellationSet
}

// fileResult is the outcome of one pipeline
type fileResult struct {
	name    string
	mediaID string
	err     error
}

// UploadBatch uploads files to scope. Every file runs its own pipeline; a failing
// file never stops its siblings. After all pipelines settle the scope is reconciled
// once and the ledger is cleared before returning.
//
// ledger receives the per-file progress while the batch runs; nil means a private ledger.
// Cancelling ctx has the same effect as CancelAll for this batch.
//
// Returns an error only for invalid input; per-file failures are reported in the result.
func (o *Orchestrator) UploadBatch(ctx context.Context, scope models.OwnerScope, kind models.MediaKind, files []File, ledger *Ledger) (*BatchResult, error) {
	if err := scope.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scope: %w", err)
	}
	if !kind.IsValid() {
		return nil, fmt.Errorf("invalid media kind: %q", kind)
	}
	if len(files) == 0 {
		return nil, ErrNoFiles
	}
	if ledger == nil {
		ledger = NewLedger()
	}
	if ledger.Len() != 0 {
		return nil, ErrLedgerInUse
	}
	defer ledger.Reset()

	b := &batch{scope: scope, kind: kind, ledger: ledger, cancels: newCancellationSet()}
	for i, file := range files {
		if err := ledger.Add(localKey(i), file.Name); err != nil {
			return nil, fmt.Errorf("failed to prepare ledger: %w", err)
		}
	}

	// calls keep ctx values but are cancelled only through the batch's cancellation set
	callCtx := context.WithoutCancel(ctx)

	o.register(b)
	cancelled := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		defer close(cancelled)
		o.cancelBatch(callCtx, b)
	})

	o.logger.Info("upload batch started",
		zap.Stringer("scope", scope),
		zap.String("kind", string(kind)),
		zap.Int("files", len(files)),
	)

	results := make([]fileResult, len(files))
	var g errgroup.Group
	if o.maxParallel > 0 {
		g.SetLimit(o.maxParallel)
	}
	for i, file := range files {
		g.Go(func() error {
			results[i] = o.runPipeline(callCtx, b, localKey(i), file)
			return nil
		})
	}
	g.Wait()

	// a cancellation already running must schedule its notifications before Wait can return
	if !stop() {
		<-cancelled
	}
	b.cancels.close()
	o.unregister(b)

	result := &BatchResult{
		SucceededIDs: make([]string, 0, len(files)),
		FailedNames:  make([]string, 0),
		Entries:      ledger.Snapshot(),
	}
	for _, res := range results {
		if res.err == nil {
			result.SucceededIDs = append(result.SucceededIDs, res.mediaID)
			continue
		}
		result.FailedNames = append(result.FailedNames, res.name)
		result.Failures = append(result.Failures, FailedFile{
			Name:      res.name,
			Reason:    UserMessage(res.err),
			Cancelled: IsCancelled(res.err),
			Err:       res.err,
		})
	}

	reconciled, err := o.reconciler.Reconcile(ctx, scope, result.SucceededIDs)
	if err != nil {
		o.logger.Warn("failed to reconcile media after batch", zap.Stringer("scope", scope), zap.Error(err))
		result.ReconcileErr = err
	}
	result.Reconciled = reconciled

	o.observer.RecordBatch(scope.Type, result.Outcome())
	o.logger.Info("upload batch finished",
		zap.Stringer("scope", scope),
		zap.String("outcome", string(result.Outcome())),
		zap.String("summary", result.Summary()),
	)

	return result, nil
}

// runPipeline negotiates, transports and schedules the follow-up calls of one file
func (o *Orchestrator) runPipeline(ctx context.Context, b *batch, key string, file File) fileResult {
	start := time.Now()
	res := fileResult{name: file.Name}
	log := o.logger.With(zap.Stringer("scope", b.scope), zap.String("file", file.Name))

	finish := func(err error) fileResult {
		res.err = err
		o.observer.RecordFile(b.scope.Type, b.kind, err, file.Size, time.Since(start))
		return res
	}

	// negotiate
	callCtx, release, err := b.cancels.track(ctx)
	if err != nil {
		b.ledger.SetStatus(key, StatusFailed, "")
		return finish(err)
	}
	handle, err := o.negotiator.Negotiate(callCtx, b.scope, b.kind, file)
	release()
	if err != nil {
		if !IsCancelled(err) {
			log.Warn("upload negotiation failed", zap.Error(err))
		}
		b.ledger.SetStatus(key, StatusFailed, UserMessage(err))
		return finish(err)
	}

	entry, err := b.ledger.Rekey(key, handle.MediaID)
	if err != nil {
		err = &NegotiationError{FileName: file.Name, Err: err}
		log.Warn("upload negotiation returned a duplicate media id", zap.Error(err))
		b.ledger.SetStatus(key, StatusFailed, UserMessage(err))
		return finish(err)
	}
	key = handle.MediaID
	res.mediaID = handle.MediaID
	log = log.With(zap.String("media_id", handle.MediaID))

	if entry.Status.IsTerminal() {
		// cancelled while negotiating; the entry had no media id when it was failed
		o.notifyFailed(ctx, b.scope, handle.MediaID)
		return finish(ErrCancelled)
	}

	// transport
	callCtx, release, err = b.cancels.track(ctx)
	if err != nil {
		return finish(err)
	}
	err = o.transporter.Transport(callCtx, handle.UploadURL, file, func(loaded, total int64) {
		b.ledger.SetProgress(key, percent(loaded, total))
	})
	release()
	if err != nil {
		if !b.ledger.SetStatus(key, StatusFailed, UserMessage(err)) {
			return finish(ErrCancelled)
		}
		log.Warn("upload transport failed", zap.Error(err))
		if !IsCancelled(err) {
			o.notifyFailed(ctx, b.scope, handle.MediaID)
		}
		return finish(err)
	}

	if !b.ledger.SetStatus(key, StatusSuccessful, "") {
		// a cancellation failed the entry while the last bytes were in flight
		return finish(ErrCancelled)
	}

	o.store.Upsert(models.MediaAsset{
		ID:          handle.MediaID,
		Scope:       b.scope,
		Kind:        b.kind,
		DisplayName: file.displayName(),
		FileName:    file.Name,
		FileType:    file.contentType(),
		FileSize:    models.Int64Ptr(file.Size),
		Status:      models.AssetStatusUploaded,
		TransferURLs: models.TransferURLs{
			StorageURL: stripQuery(handle.UploadURL),
		},
	})

	if b.scope.IsUnit() {
		o.detach(ctx, taskFinalize, func(ctx context.Context) error {
			return o.finalizer.Finalize(ctx, b.scope, handle.MediaID, file.Size)
		})
	} else {
		o.detach(ctx, taskNotifyComplete, func(ctx context.Context) error {
			return o.backend.NotifyUploadStatus(ctx, b.scope, handle.MediaID, models.UploadStatusCompleted)
		})
	}

	log.Debug("upload transport succeeded", zap.Int64("size", file.Size))
	return finish(nil)
}

// CancelAll aborts every in-flight call of the active batches of scope and marks
// their pending and in_progress entries failed. For course media the backend is told
// the uploads failed so it can collect them. Calls already past transport keep running.
//
// Returns the number of entries failed; a second call returns 0.
func (o *Orchestrator) CancelAll(ctx context.Context, scope models.OwnerScope) int {
	o.mu.Lock()
	batches := make([]*batch, 0, len(o.batches))
	for b := range o.batches {
		if b.scope == scope {
			batches = append(batches, b)
		}
	}
	o.mu.Unlock()

	total := 0
	for _, b := range batches {
		total += o.cancelBatch(ctx, b)
	}
	return total
}

func (o *Orchestrator) cancelBatch(ctx context.Context, b *batch) int {
	// close first so no call starts after the ledger is failed, fail the ledger
	// before aborting so pipelines see their entries already terminal
	handles, ok := b.cancels.close()
	if !ok {
		return 0
	}
	failed := b.ledger.FailNonTerminal()
	for _, cancel := range handles {
		cancel()
	}

	for _, entry := range failed {
		if entry.MediaID != "" {
			o.notifyFailed(ctx, b.scope, entry.MediaID)
		}
	}

	if len(failed) > 0 {
		o.observer.RecordCancellation(b.scope.Type, len(failed))
		o.logger.Info("upload batch cancelled",
			zap.Stringer("scope", b.scope),
			zap.Int("entries", len(failed)),
		)
	}
	return len(failed)
}

// notifyFailed reports a failed course upload; unit media have no pending state on the backend
func (o *Orchestrator) notifyFailed(ctx context.Context, scope models.OwnerScope, mediaID string) {
	if !scope.IsCourse() {
		return
	}
	o.detach(ctx, taskNotifyFailed, func(ctx context.Context) error {
		return o.backend.NotifyUploadStatus(ctx, scope, mediaID, models.UploadStatusFailed)
	})
}

// detach runs fn in the background. Its error is logged and counted, never returned.
func (o *Orchestrator) detach(ctx context.Context, task string, fn func(context.Context) error) {
	ctx = context.WithoutCancel(ctx)
	o.detached.Add(1)
	go func() {
		defer o.detached.Done()
		if err := fn(ctx); err != nil {
			o.logger.Warn("detached upload task failed", zap.String("task", task), zap.Error(err))
			o.observer.RecordDetachedFailure(task)
		}
	}()
}

// Wait blocks until all detached finalize and notification calls have returned
func (o *Orchestrator) Wait() {
	o.detached.Wait()
}

// DeleteAsset removes the asset from the backend, then from local state
func (o *Orchestrator) DeleteAsset(ctx context.Context, scope models.OwnerScope, id string) error {
	if err := scope.Validate(); err != nil {
		return fmt.Errorf("invalid scope: %w", err)
	}
	if id == "" {
		return fmt.Errorf("media id is required")
	}

	if err := o.backend.DeleteMedia(ctx, scope, id); err != nil {
		return fmt.Errorf("failed to delete media %s: %w", id, err)
	}
	o.store.Remove(scope, id)
	return nil
}

// Assets returns the merged local assets of scope
func (o *Orchestrator) Assets(scope models.OwnerScope) []models.MediaAsset {
	return o.store.ForScope(scope)
}

// Refresh reconciles scope outside a batch, replacing every known asset with its
// canonical copy, and returns the merged assets of the scope
func (o *Orchestrator) Refresh(ctx context.Context, scope models.OwnerScope) ([]models.MediaAsset, error) {
	if err := scope.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scope: %w", err)
	}

	known := o.store.IDs(scope)
	refresh := make([]string, 0, len(known))
	for id := range known {
		refresh = append(refresh, id)
	}

	if _, err := o.reconciler.Reconcile(ctx, scope, refresh); err != nil {
		return nil, err
	}
	return o.store.ForScope(scope), nil
}

// Active reports whether a batch of scope is running
func (o *Orchestrator) Active(scope models.OwnerScope) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	for b := range o.batches {
		if b.scope == scope {
			return true
		}
	}
	return false
}

func (o *Orchestrator) register(b *batch) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.batches[b] = struct{}{}
}

func (o *Orchestrator) unregister(b *batch) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.batches, b)
}

// stripQuery drops the signature query of a storage URL
func stripQuery(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}
