package uploader

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/japanesestudent/media-uploader/internal/client/assets"
	"github.com/japanesestudent/media-uploader/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	zapobserver "go.uber.org/zap/zaptest/observer"
)

type orchestratorFixture struct {
	orch     *Orchestrator
	backend  *mockBackend
	storage  *fakeStorage
	store    *assets.Store
	observer *recordingObserver
	logs     *zapobserver.ObservedLogs
}

func setupOrchestrator(t *testing.T, opts ...Option) *orchestratorFixture {
	t.Helper()
	log := &eventLog{}
	storage := newFakeStorage(t, log)
	backend := newMockBackend(storage.URL)
	backend.log = log
	store := assets.NewStore()
	observer := newRecordingObserver()
	core, logs := zapobserver.New(zapcore.DebugLevel)

	opts = append([]Option{
		WithHTTPClient(storage.Client()),
		WithObserver(observer),
		WithLogger(zap.New(core)),
	}, opts...)

	return &orchestratorFixture{
		orch:     New(backend, store, opts...),
		backend:  backend,
		storage:  storage,
		store:    store,
		observer: observer,
		logs:     logs,
	}
}

func videoFiles(names ...string) []File {
	files := make([]File, 0, len(names))
	for _, name := range names {
		files = append(files, testFile(name, "content of "+name))
	}
	return files
}

type batchOutcome struct {
	result *BatchResult
	err    error
}

func uploadAsync(ctx context.Context, f *orchestratorFixture, scope models.OwnerScope, files []File, ledger *Ledger) <-chan batchOutcome {
	done := make(chan batchOutcome, 1)
	go func() {
		result, err := f.orch.UploadBatch(ctx, scope, models.MediaKindVideo, files, ledger)
		done <- batchOutcome{result: result, err: err}
	}()
	return done
}

func waitBatch(t *testing.T, done <-chan batchOutcome) *BatchResult {
	t.Helper()
	select {
	case out := <-done:
		require.NoError(t, out.err)
		return out.result
	case <-time.After(5 * time.Second):
		t.Fatal("upload batch did not finish")
		return nil
	}
}

func TestNew(t *testing.T) {
	orch := New(newMockBackend(""), assets.NewStore())

	assert.NotNil(t, orch)
	assert.NotNil(t, orch.negotiator)
	assert.NotNil(t, orch.transporter)
	assert.NotNil(t, orch.finalizer)
	assert.NotNil(t, orch.reconciler)
}

func TestOrchestrator_UploadBatch_AllSucceed(t *testing.T) {
	f := setupOrchestrator(t)
	scope := models.UnitScope("u1")
	ledger := NewLedger()
	files := videoFiles("a.mp4", "b.mp4", "c.mp4")

	result, err := f.orch.UploadBatch(context.Background(), scope, models.MediaKindVideo, files, ledger)
	require.NoError(t, err)
	f.orch.Wait()

	assert.Equal(t, "3 succeeded, 0 failed", result.Summary())
	assert.Equal(t, OutcomeAllSucceeded, result.Outcome())
	assert.Len(t, result.SucceededIDs, 3)
	assert.Empty(t, result.FailedNames)
	assert.GreaterOrEqual(t, len(result.Reconciled), 3)
	assert.Equal(t, 1, f.backend.listCalls)
	assert.Equal(t, 0, ledger.Len())

	for _, entry := range result.Entries {
		assert.Equal(t, StatusSuccessful, entry.Status)
		assert.Equal(t, 100, entry.Progress)
	}

	for _, file := range files {
		id := f.backend.idFor(file.Name)
		require.NotEmpty(t, id)
		assert.Equal(t, "content of "+file.Name, string(f.storage.body(id)))

		asset, ok := f.store.Get(scope, id)
		require.True(t, ok)
		assert.Equal(t, "http://cdn.test/"+id, asset.Preferred())
		assert.Equal(t, file.Size, asset.SizeOrZero())
	}

	assert.Len(t, f.backend.finalizations(), 3)
	assert.Empty(t, f.backend.notifications())
	assert.Equal(t, 3, f.observer.files["succeeded"])
	assert.Equal(t, []Outcome{OutcomeAllSucceeded}, f.observer.batches)
}

func TestOrchestrator_FinalizeAfterTransport(t *testing.T) {
	f := setupOrchestrator(t)

	result, err := f.orch.UploadBatch(context.Background(), models.UnitScope("u1"), models.MediaKindVideo, videoFiles("a.mp4", "b.mp4"), nil)
	require.NoError(t, err)
	f.orch.Wait()

	require.Len(t, result.SucceededIDs, 2)
	for _, id := range result.SucceededIDs {
		put := f.backend.log.index("put:" + id)
		finalize := f.backend.log.index("finalize:" + id)
		require.NotEqual(t, -1, put)
		require.NotEqual(t, -1, finalize)
		assert.Less(t, put, finalize, "finalize of %s before its transport", id)
	}
}

func TestOrchestrator_UploadBatch_OneNegotiationFails(t *testing.T) {
	f := setupOrchestrator(t)
	f.backend.intentErrs["b.mp4"] = errors.New("backend unavailable")
	ledger := NewLedger()

	result, err := f.orch.UploadBatch(context.Background(), models.UnitScope("u1"), models.MediaKindVideo, videoFiles("a.mp4", "b.mp4", "c.mp4"), ledger)
	require.NoError(t, err)
	f.orch.Wait()

	assert.Equal(t, OutcomePartial, result.Outcome())
	assert.Len(t, result.SucceededIDs, 2)
	assert.Equal(t, []string{"b.mp4"}, result.FailedNames)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, "could not start upload", result.Failures[0].Reason)
	assert.False(t, result.Failures[0].Cancelled)

	statuses := map[string]EntryStatus{}
	for _, entry := range result.Entries {
		statuses[entry.Name] = entry.Status
	}
	assert.Equal(t, map[string]EntryStatus{
		"a.mp4": StatusSuccessful,
		"b.mp4": StatusFailed,
		"c.mp4": StatusSuccessful,
	}, statuses)
	assert.Equal(t, 0, ledger.Len())
	assert.Len(t, f.backend.finalizations(), 2)
}

func TestOrchestrator_UploadBatch_PayloadTooLarge(t *testing.T) {
	f := setupOrchestrator(t)
	f.storage.limit = 10
	scope := models.CourseScope("c1")
	files := []File{
		FileFromBytes("small.pdf", "application/pdf", []byte("tiny")),
		FileFromBytes("large.pdf", "application/pdf", []byte(strings.Repeat("x", 64))),
	}

	result, err := f.orch.UploadBatch(context.Background(), scope, models.MediaKindSlide, files, nil)
	require.NoError(t, err)
	f.orch.Wait()

	assert.Equal(t, "1 succeeded, 1 failed", result.Summary())
	assert.Equal(t, []string{"large.pdf"}, result.FailedNames)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, "File too large", result.Failures[0].Reason)

	for _, entry := range result.Entries {
		switch entry.Name {
		case "small.pdf":
			assert.Equal(t, StatusSuccessful, entry.Status)
		case "large.pdf":
			assert.Equal(t, StatusFailed, entry.Status)
			assert.Equal(t, "File too large", entry.Reason)
		}
	}

	assert.ElementsMatch(t, []notifyCall{
		{mediaID: f.backend.idFor("small.pdf"), status: models.UploadStatusCompleted},
		{mediaID: f.backend.idFor("large.pdf"), status: models.UploadStatusFailed},
	}, f.backend.notifications())
	assert.Empty(t, f.backend.finalizations())
}

func TestOrchestrator_UploadBatch_StorageError(t *testing.T) {
	f := setupOrchestrator(t)
	f.storage.respond("media-1", http.StatusInternalServerError, "disk full")

	result, err := f.orch.UploadBatch(context.Background(), models.UnitScope("u1"), models.MediaKindVideo, videoFiles("a.mp4"), nil)
	require.NoError(t, err)
	f.orch.Wait()

	assert.Equal(t, OutcomeAllFailed, result.Outcome())
	assert.Equal(t, "all failed", result.Message())
	assert.Equal(t, "upload failed", result.Failures[0].Reason)
	assert.Empty(t, f.backend.notifications())
	assert.Empty(t, f.backend.finalizations())
}

func TestOrchestrator_FinalizeFailureKeepsSuccess(t *testing.T) {
	f := setupOrchestrator(t)
	f.backend.finalizeErr = errors.New("connection reset")
	scope := models.UnitScope("u1")

	result, err := f.orch.UploadBatch(context.Background(), scope, models.MediaKindVideo, videoFiles("a.mp4"), nil)
	require.NoError(t, err)
	f.orch.Wait()

	assert.Equal(t, OutcomeAllSucceeded, result.Outcome())
	require.Len(t, result.Entries, 1)
	assert.Equal(t, StatusSuccessful, result.Entries[0].Status)
	assert.Empty(t, result.Failures)

	asset, ok := f.store.Get(scope, result.SucceededIDs[0])
	require.True(t, ok)
	assert.Equal(t, int64(len("content of a.mp4")), asset.SizeOrZero())

	assert.Equal(t, []string{taskFinalize}, f.observer.failures())
	warnings := f.logs.FilterMessage("detached upload task failed").All()
	require.Len(t, warnings, 1)
	assert.Equal(t, zapcore.WarnLevel, warnings[0].Level)
}

func TestOrchestrator_CancelAll_DuringTransport(t *testing.T) {
	tests := []struct {
		name          string
		scope         models.OwnerScope
		expectNotices bool
	}{
		{name: "course media are reported failed", scope: models.CourseScope("c1"), expectNotices: true},
		{name: "unit media are not reported", scope: models.UnitScope("u1")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupOrchestrator(t)
			f.storage.holdRequests()

			var events atomic.Int64
			ledger := NewLedger(WithLedgerListener(func(LedgerEntry) { events.Add(1) }))

			done := uploadAsync(context.Background(), f, tt.scope, videoFiles("a.mp4", "b.mp4"), ledger)
			started := f.storage.waitStarted(t, 2)
			require.True(t, f.orch.Active(tt.scope))

			for _, entry := range ledger.Snapshot() {
				assert.Equal(t, StatusInProgress, entry.Status)
			}

			cancelled := f.orch.CancelAll(context.Background(), tt.scope)
			eventsAtCancel := events.Load()

			assert.Equal(t, 2, cancelled)
			for _, entry := range ledger.Snapshot() {
				assert.Equal(t, StatusFailed, entry.Status)
			}

			result := waitBatch(t, done)
			f.orch.Wait()

			assert.Equal(t, eventsAtCancel, events.Load())
			assert.Equal(t, OutcomeAllFailed, result.Outcome())
			for _, failure := range result.Failures {
				assert.True(t, failure.Cancelled)
				assert.Empty(t, failure.Reason)
			}
			assert.Equal(t, 0, ledger.Len())
			assert.False(t, f.orch.Active(tt.scope))
			assert.Equal(t, 0, f.orch.CancelAll(context.Background(), tt.scope))
			assert.Empty(t, f.backend.finalizations())

			if !tt.expectNotices {
				assert.Empty(t, f.backend.notifications())
				return
			}
			expected := make([]notifyCall, 0, len(started))
			for _, id := range started {
				expected = append(expected, notifyCall{mediaID: id, status: models.UploadStatusFailed})
			}
			assert.ElementsMatch(t, expected, f.backend.notifications())
			assert.Equal(t, 2, f.observer.cancelled)
		})
	}
}

func TestOrchestrator_ContextCancelStopsBatch(t *testing.T) {
	f := setupOrchestrator(t)
	f.storage.holdRequests()
	ctx, cancel := context.WithCancel(context.Background())
	scope := models.CourseScope("c1")

	done := uploadAsync(ctx, f, scope, videoFiles("a.mp4"), nil)
	started := f.storage.waitStarted(t, 1)
	cancel()

	result := waitBatch(t, done)
	f.orch.Wait()

	assert.Equal(t, OutcomeAllFailed, result.Outcome())
	assert.True(t, result.Failures[0].Cancelled)
	assert.Equal(t, []notifyCall{{mediaID: started[0], status: models.UploadStatusFailed}}, f.backend.notifications())
}

func TestOrchestrator_CancelAll_DuringNegotiation(t *testing.T) {
	f := setupOrchestrator(t)
	entered := make(chan struct{}, 1)
	gate := make(chan struct{})
	f.backend.intentHook = func(ctx context.Context, file models.UploadIntentFile) error {
		entered <- struct{}{}
		<-gate
		return nil
	}
	scope := models.CourseScope("c1")

	done := uploadAsync(context.Background(), f, scope, videoFiles("a.mp4"), nil)
	<-entered

	assert.Equal(t, 1, f.orch.CancelAll(context.Background(), scope))
	f.orch.Wait()
	assert.Empty(t, f.backend.notifications())

	// the backend still issues the media id after the cancellation
	close(gate)
	result := waitBatch(t, done)
	f.orch.Wait()

	assert.Equal(t, OutcomeAllFailed, result.Outcome())
	assert.True(t, result.Failures[0].Cancelled)
	assert.Equal(t, []notifyCall{{mediaID: "media-1", status: models.UploadStatusFailed}}, f.backend.notifications())
	assert.Nil(t, f.storage.body("media-1"))
}

func TestOrchestrator_MaxParallel(t *testing.T) {
	f := setupOrchestrator(t, WithMaxParallel(1))

	result, err := f.orch.UploadBatch(context.Background(), models.UnitScope("u1"), models.MediaKindVideo, videoFiles("a.mp4", "b.mp4", "c.mp4", "d.mp4"), nil)
	require.NoError(t, err)

	assert.Len(t, result.SucceededIDs, 4)
}

func TestOrchestrator_UploadBatch_InvalidInput(t *testing.T) {
	busy := NewLedger()
	busy.Add(localKey(0), "other.mp4")

	tests := []struct {
		name        string
		scope       models.OwnerScope
		kind        models.MediaKind
		files       []File
		ledger      *Ledger
		expectedErr error
	}{
		{
			name:  "invalid scope",
			scope: models.OwnerScope{Type: "lesson", ID: "1"},
			kind:  models.MediaKindVideo,
			files: videoFiles("a.mp4"),
		},
		{
			name:  "invalid kind",
			scope: models.UnitScope("u1"),
			kind:  "audio",
			files: videoFiles("a.mp4"),
		},
		{
			name:        "no files",
			scope:       models.UnitScope("u1"),
			kind:        models.MediaKindVideo,
			expectedErr: ErrNoFiles,
		},
		{
			name:        "ledger in use",
			scope:       models.UnitScope("u1"),
			kind:        models.MediaKindVideo,
			files:       videoFiles("a.mp4"),
			ledger:      busy,
			expectedErr: ErrLedgerInUse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupOrchestrator(t)

			result, err := f.orch.UploadBatch(context.Background(), tt.scope, tt.kind, tt.files, tt.ledger)

			require.Error(t, err)
			assert.Nil(t, result)
			if tt.expectedErr != nil {
				assert.ErrorIs(t, err, tt.expectedErr)
			}
			assert.Empty(t, f.backend.intents)
			assert.Equal(t, 0, f.backend.listCalls)
		})
	}

	assert.Equal(t, 1, busy.Len())
}

func TestOrchestrator_ReconcileFailure(t *testing.T) {
	f := setupOrchestrator(t)
	f.backend.listErr = errors.New("listing timed out")
	scope := models.UnitScope("u1")

	result, err := f.orch.UploadBatch(context.Background(), scope, models.MediaKindVideo, videoFiles("a.mp4"), nil)
	require.NoError(t, err)
	f.orch.Wait()

	assert.Equal(t, OutcomeAllSucceeded, result.Outcome())
	var reconcileErr *ReconciliationError
	assert.True(t, errors.As(result.ReconcileErr, &reconcileErr))
	assert.Empty(t, result.Reconciled)

	// the optimistic copy stays without the signed query
	asset, ok := f.store.Get(scope, result.SucceededIDs[0])
	require.True(t, ok)
	assert.Equal(t, fmt.Sprintf("%s/upload/%s", f.storage.URL, result.SucceededIDs[0]), asset.StorageURL)
	assert.Equal(t, models.AssetStatusUploaded, asset.Status)
}

func TestOrchestrator_DeleteAsset(t *testing.T) {
	scope := models.UnitScope("u1")

	tests := []struct {
		name        string
		id          string
		deleteErr   error
		expectError bool
		expectKept  bool
	}{
		{name: "success", id: "m1"},
		{name: "backend failure keeps the asset", id: "m1", deleteErr: errors.New("forbidden"), expectError: true, expectKept: true},
		{name: "empty id", id: "", expectError: true, expectKept: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupOrchestrator(t)
			f.backend.deleteErr = tt.deleteErr
			f.store.Upsert(models.MediaAsset{ID: "m1", Scope: scope})

			err := f.orch.DeleteAsset(context.Background(), scope, tt.id)

			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			_, ok := f.store.Get(scope, "m1")
			assert.Equal(t, tt.expectKept, ok)
		})
	}
}

func TestOrchestrator_Refresh(t *testing.T) {
	f := setupOrchestrator(t)
	scope := models.CourseScope("c1")
	f.store.Upsert(models.MediaAsset{ID: "a", Scope: scope, DisplayName: "stale"})
	f.backend.listing = []models.MediaAsset{
		{ID: "a", DisplayName: "fresh"},
		{ID: "b", DisplayName: "new"},
	}

	got, err := f.orch.Refresh(context.Background(), scope)
	require.NoError(t, err)
	again, err := f.orch.Refresh(context.Background(), scope)
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, "fresh", got[0].DisplayName)
	assert.Equal(t, got, again)
	assert.Equal(t, got, f.orch.Assets(scope))
}

func TestStripQuery(t *testing.T) {
	assert.Equal(t, "http://s/upload/m1", stripQuery("http://s/upload/m1?X-Amz-Signature=abc#frag"))
	assert.Equal(t, "http://s/upload/m1", stripQuery("http://s/upload/m1"))
}
