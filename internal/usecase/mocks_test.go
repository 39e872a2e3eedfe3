package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"adlens/internal/domain"
	"adlens/pkg/logger"
	"adlens/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/mock"
)

type mockActorClient struct {
	mock.Mock
}

func (m *mockActorClient) Run(ctx context.Context, actorID string, input domain.RunInput, timeout time.Duration) (*domain.RunHandle, error) {
	args := m.Called(ctx, actorID, input, timeout)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RunHandle), args.Error(1)
}

func (m *mockActorClient) ListItems(ctx context.Context, datasetID string, limit int) ([]domain.RawRecord, error) {
	args := m.Called(ctx, datasetID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.RawRecord), args.Error(1)
}

type recordingHistory struct {
	mu    sync.Mutex
	items []domain.SearchHistoryItem
}

func (h *recordingHistory) SaveSearch(ctx context.Context, item domain.SearchHistoryItem) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.items = append(h.items, item)
	return nil
}

func (h *recordingHistory) GetCachedSearch(ctx context.Context, provider domain.Provider, brand string) (*domain.SearchHistoryItem, error) {
	return nil, domain.ErrSearchNotFound
}

func (h *recordingHistory) saved() []domain.SearchHistoryItem {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]domain.SearchHistoryItem(nil), h.items...)
}

// recordingSleeper captures backoff delays without waiting.
type recordingSleeper struct {
	delays []time.Duration
}

func (s *recordingSleeper) sleep(ctx context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return ctx.Err()
}

func newTestMetrics() *metrics.Metrics {
	return metrics.New(prometheus.NewRegistry())
}

func newTestRetry(t *testing.T, client domain.ActorClient, policy RetryPolicy) (*RetryController, *recordingSleeper) {
	t.Helper()
	sleeper := &recordingSleeper{}
	r := NewRetryController(client, policy, logger.Discard(), newTestMetrics())
	r.sleep = sleeper.sleep
	return r, sleeper
}

func rawRecords(docs ...string) []domain.RawRecord {
	out := make([]domain.RawRecord, 0, len(docs))
	for _, d := range docs {
		out = append(out, domain.RawRecord(d))
	}
	return out
}
