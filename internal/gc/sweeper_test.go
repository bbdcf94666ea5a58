package gc

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type mockTarget struct {
	mu      sync.Mutex
	cutoffs []time.Time
	removed int
	err     error
	calls   chan struct{}
}

func (m *mockTarget) SweepOrphans(ctx context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	m.cutoffs = append(m.cutoffs, cutoff)
	m.mu.Unlock()
	if m.calls != nil {
		select {
		case m.calls <- struct{}{}:
		default:
		}
	}
	return m.removed, m.err
}

func TestNewSweeper(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	target := &mockTarget{}

	s, err := NewSweeper(target, "@every 10m", time.Hour, logger)

	require.NoError(t, err)
	assert.NotNil(t, s)
	assert.Equal(t, target, s.target)
	assert.Equal(t, time.Hour, s.pendingTTL)

	_, err = NewSweeper(target, "not a schedule", time.Hour, logger)
	assert.Error(t, err)
}

func TestSweeper_RunOnce(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	target := &mockTarget{removed: 3}
	s, err := NewSweeper(target, "@every 1h", 30*time.Minute, zap.New(core))
	require.NoError(t, err)
	now := time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	assert.Equal(t, 3, s.RunOnce(context.Background()))
	require.Len(t, target.cutoffs, 1)
	assert.Equal(t, now.Add(-30*time.Minute), target.cutoffs[0])
	assert.Equal(t, 1, logs.FilterMessage("orphan sweep finished").Len())

	target.err = errors.New("storage down")
	target.removed = 1
	assert.Equal(t, 1, s.RunOnce(context.Background()))
	assert.Equal(t, 1, logs.FilterMessage("orphan sweep finished with errors").Len())
}

func TestSweeper_StartStop(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	target := &mockTarget{calls: make(chan struct{}, 1)}
	s, err := NewSweeper(target, "@every 1s", time.Hour, logger)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	s.Start(ctx)

	select {
	case <-target.calls:
	case <-time.After(5 * time.Second):
		t.Fatal("sweep did not run")
	}

	cancel()
	assert.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return !s.started
	}, 2*time.Second, 10*time.Millisecond)
	s.Stop()
}
