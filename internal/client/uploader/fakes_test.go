package uploader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/japanesestudent/media-uploader/internal/models"
)

// eventLog records the order of storage and backend calls across goroutines
type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, fmt.Sprintf(format, args...))
}

func (l *eventLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

func (l *eventLog) index(event string) int {
	for i, e := range l.all() {
		if e == event {
			return i
		}
	}
	return -1
}

type notifyCall struct {
	mediaID string
	status  models.UploadStatus
}

type finalizeCall struct {
	mediaID string
	size    int64
}

// mockBackend is a thread-safe Backend that issues sequential media ids
type mockBackend struct {
	mu sync.Mutex

	storageURL string
	log        *eventLog

	intentErrs  map[string]error
	intentHook  func(ctx context.Context, file models.UploadIntentFile) error
	finalizeErr error
	listErr     error
	deleteErr   error
	notifyErr   error

	// listing overrides the generated listing when set
	listing []models.MediaAsset

	next      int
	intents   []models.UploadIntentFile
	issued    map[string]models.UploadIntentFile
	finalized []finalizeCall
	notified  []notifyCall
	deleted   []string
	listCalls int
}

func newMockBackend(storageURL string) *mockBackend {
	return &mockBackend{
		storageURL: storageURL,
		log:        &eventLog{},
		intentErrs: make(map[string]error),
		issued:     make(map[string]models.UploadIntentFile),
	}
}

func (m *mockBackend) CreateUploadIntent(ctx context.Context, scope models.OwnerScope, kind models.MediaKind, file models.UploadIntentFile) (*models.UploadIntentResponse, error) {
	m.mu.Lock()
	m.intents = append(m.intents, file)
	err := m.intentErrs[file.FileName]
	hook := m.intentHook
	m.mu.Unlock()

	if hook != nil {
		if err := hook(ctx, file); err != nil {
			return nil, err
		}
	}
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.next++
	id := fmt.Sprintf("media-%d", m.next)
	m.issued[id] = file
	m.mu.Unlock()

	entry := models.UploadIntentEntry{UploadURL: m.storageURL + "/upload/" + id + "?sig=secret"}
	switch {
	case scope.IsUnit():
		entry.ID = id
	case kind == models.MediaKindSlide:
		entry.SlideID = id
	default:
		entry.VideoID = id
	}
	return &models.UploadIntentResponse{Files: []models.UploadIntentEntry{entry}}, nil
}

func (m *mockBackend) FinalizeUpload(ctx context.Context, scope models.OwnerScope, mediaID string, size int64) error {
	m.log.add("finalize:%s", mediaID)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finalized = append(m.finalized, finalizeCall{mediaID: mediaID, size: size})
	return m.finalizeErr
}

func (m *mockBackend) ListMedia(ctx context.Context, scope models.OwnerScope) ([]models.MediaAsset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	if m.listErr != nil {
		return nil, m.listErr
	}
	if m.listing != nil {
		return append([]models.MediaAsset(nil), m.listing...), nil
	}

	assets := make([]models.MediaAsset, 0, len(m.issued))
	for i := 1; i <= m.next; i++ {
		id := fmt.Sprintf("media-%d", i)
		file, ok := m.issued[id]
		if !ok {
			continue
		}
		assets = append(assets, models.MediaAsset{
			ID:       id,
			FileName: file.FileName,
			Status:   models.AssetStatusReady,
			TransferURLs: models.TransferURLs{
				PublicURL: "http://cdn.test/" + id,
			},
		})
	}
	return assets, nil
}

func (m *mockBackend) DeleteMedia(ctx context.Context, scope models.OwnerScope, mediaID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.deleted = append(m.deleted, mediaID)
	delete(m.issued, mediaID)
	return nil
}

func (m *mockBackend) NotifyUploadStatus(ctx context.Context, scope models.OwnerScope, mediaID string, status models.UploadStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notified = append(m.notified, notifyCall{mediaID: mediaID, status: status})
	return m.notifyErr
}

func (m *mockBackend) notifications() []notifyCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]notifyCall(nil), m.notified...)
}

func (m *mockBackend) finalizations() []finalizeCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]finalizeCall(nil), m.finalized...)
}

func (m *mockBackend) idFor(fileName string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, file := range m.issued {
		if file.FileName == fileName {
			return id
		}
	}
	return ""
}

type storageResponse struct {
	status int
	body   string
}

// fakeStorage accepts PUT /upload/{id}. Responses can be overridden per id and
// requests can be held open until released or aborted by the client.
type fakeStorage struct {
	*httptest.Server

	mu          sync.Mutex
	log         *eventLog
	responses   map[string]storageResponse
	received    map[string][]byte
	contentType map[string]string

	// limit rejects bodies larger than it with a 413 when positive
	limit int

	hold    bool
	release chan struct{}
	started chan string
}

func newFakeStorage(t *testing.T, log *eventLog) *fakeStorage {
	t.Helper()
	s := &fakeStorage{
		log:         log,
		responses:   make(map[string]storageResponse),
		received:    make(map[string][]byte),
		contentType: make(map[string]string),
		release:     make(chan struct{}),
		started:     make(chan string, 64),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(func() {
		s.unblock()
		s.Close()
	})
	return s
}

func (s *fakeStorage) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut || !strings.HasPrefix(r.URL.Path, "/upload/") {
		http.NotFound(w, r)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/upload/")

	data, err := io.ReadAll(r.Body)
	if err != nil {
		return
	}

	s.mu.Lock()
	hold := s.hold
	resp, override := s.responses[id]
	limit := s.limit
	s.mu.Unlock()

	if hold {
		s.started <- id
		select {
		case <-r.Context().Done():
			return
		case <-s.release:
		}
	}

	if !override && limit > 0 && len(data) > limit {
		resp, override = storageResponse{status: http.StatusRequestEntityTooLarge, body: `{"error":"File too large"}`}, true
	}
	if override {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(resp.status)
		io.WriteString(w, resp.body)
		return
	}

	s.mu.Lock()
	s.received[id] = data
	s.contentType[id] = r.Header.Get("Content-Type")
	s.mu.Unlock()
	s.log.add("put:%s", id)
	w.WriteHeader(http.StatusOK)
}

func (s *fakeStorage) holdRequests() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hold = true
}

func (s *fakeStorage) respond(id string, status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses[id] = storageResponse{status: status, body: body}
}

func (s *fakeStorage) unblock() {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.release:
	default:
		close(s.release)
	}
}

func (s *fakeStorage) waitStarted(t *testing.T, n int) []string {
	t.Helper()
	ids := make([]string, 0, n)
	for len(ids) < n {
		select {
		case id := <-s.started:
			ids = append(ids, id)
		case <-time.After(5 * time.Second):
			t.Fatalf("only %d of %d uploads reached storage", len(ids), n)
		}
	}
	return ids
}

func (s *fakeStorage) body(id string) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.received[id]
}

// recordingObserver counts observer calls
type recordingObserver struct {
	mu               sync.Mutex
	files            map[string]int
	batches          []Outcome
	detachedFailures []string
	cancelled        int
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{files: make(map[string]int)}
}

func (o *recordingObserver) RecordFile(scope models.ScopeType, kind models.MediaKind, err error, bytes int64, duration time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.files[fileOutcome(err)]++
}

func (o *recordingObserver) RecordBatch(scope models.ScopeType, outcome Outcome) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.batches = append(o.batches, outcome)
}

func (o *recordingObserver) RecordDetachedFailure(task string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.detachedFailures = append(o.detachedFailures, task)
}

func (o *recordingObserver) RecordCancellation(scope models.ScopeType, entries int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cancelled += entries
}

func (o *recordingObserver) failures() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.detachedFailures...)
}

// memoryStore is a minimal AssetStore for tests that do not need removal tracking
type memoryStore struct {
	mu      sync.Mutex
	order   []string
	assets  map[string]models.MediaAsset
	removed map[string]uint64
	version uint64
}

func newMemoryStore() *memoryStore {
	return &memoryStore{assets: make(map[string]models.MediaAsset), removed: make(map[string]uint64)}
}

func (s *memoryStore) Upsert(asset models.MediaAsset) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.version++
	s.put(asset)
}

func (s *memoryStore) put(asset models.MediaAsset) {
	delete(s.removed, asset.ID)
	if _, ok := s.assets[asset.ID]; !ok {
		s.order = append(s.order, asset.ID)
	}
	s.assets[asset.ID] = asset
}

func (s *memoryStore) Merge(scope models.OwnerScope, assets []models.MediaAsset, since uint64) []models.MediaAsset {
	s.mu.Lock()
	defer s.mu.Unlock()
	merged := make([]models.MediaAsset, 0, len(assets))
	for _, asset := range assets {
		if at, ok := s.removed[asset.ID]; ok && at > since {
			continue
		}
		s.version++
		asset.Scope = scope
		s.put(asset)
		merged = append(merged, asset)
	}
	return merged
}

func (s *memoryStore) Remove(scope models.OwnerScope, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.version++
	s.removed[id] = s.version
	if _, ok := s.assets[id]; !ok {
		return false
	}
	delete(s.assets, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

func (s *memoryStore) ForScope(scope models.OwnerScope) []models.MediaAsset {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]models.MediaAsset, 0, len(s.order))
	for _, id := range s.order {
		if asset := s.assets[id]; asset.Scope == scope {
			result = append(result, asset)
		}
	}
	return result
}

func (s *memoryStore) IDs(scope models.OwnerScope) map[string]struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make(map[string]struct{})
	for id, asset := range s.assets {
		if asset.Scope == scope {
			ids[id] = struct{}{}
		}
	}
	return ids
}

func (s *memoryStore) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

func testFile(name string, data string) File {
	return FileFromBytes(name, "video/mp4", []byte(data))
}
