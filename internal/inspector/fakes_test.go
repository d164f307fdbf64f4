package inspector

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/agiledigital-labs/sleuthbot/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func testRequest(target string) domain.InvestigationRequest {
	end := time.Date(2021, 4, 10, 12, 0, 0, 0, time.UTC)
	return domain.InvestigationRequest{
		CorrelationID: "corr-1",
		ThreadKey:     "1618056000.000100",
		Origin:        "slack",
		Channel:       "C024BE91L",
		CallerToken:   "xoxb-test",
		TargetText:    target,
		Window:        domain.WindowEndingAt(end, 15*time.Minute),
	}
}

// memReporter collects notifications instead of crossing a bus.
type memReporter struct {
	mu   sync.Mutex
	sent []domain.OutgoingNotification
}

func (r *memReporter) Report(n domain.OutgoingNotification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return nil
}

func (r *memReporter) notifications() []domain.OutgoingNotification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.OutgoingNotification(nil), r.sent...)
}

type fakeDirectory struct {
	locators []string
	err      error
	queries  []domain.ResourceQuery
}

func (d *fakeDirectory) Search(_ context.Context, q domain.ResourceQuery) ([]string, error) {
	d.queries = append(d.queries, q)
	return d.locators, d.err
}

type fakeDeploymentStore struct {
	record domain.DeploymentRecord
	err    error
}

func (s *fakeDeploymentStore) DescribeDeployment(_ context.Context, name string) (domain.DeploymentRecord, error) {
	return s.record, s.err
}

type fakeAuditStore struct {
	pages map[string]domain.AuditPage
	err   error
}

func (s *fakeAuditStore) LookupEvents(_ context.Context, q domain.AuditLookup) (domain.AuditPage, error) {
	if s.err != nil {
		return domain.AuditPage{}, s.err
	}
	return s.pages[q.NextToken], nil
}

type fakeLogService struct {
	queryID   string
	startErr  error
	polls     []domain.LogQueryPoll
	pollErr   error
	started   []domain.LogQuery
	pollCalls int
}

func (s *fakeLogService) StartQuery(_ context.Context, q domain.LogQuery) (string, error) {
	s.started = append(s.started, q)
	return s.queryID, s.startErr
}

func (s *fakeLogService) GetQueryResults(_ context.Context, queryID string) (domain.LogQueryPoll, error) {
	if s.pollErr != nil {
		return domain.LogQueryPoll{}, s.pollErr
	}
	idx := s.pollCalls
	if idx >= len(s.polls) {
		idx = len(s.polls) - 1
	}
	s.pollCalls++
	return s.polls[idx], nil
}

type fakeMetricsStore struct {
	sums map[string]float64
	err  error
}

func (s *fakeMetricsStore) ErrorSum(_ context.Context, resource string, _ domain.TimeWindow) (float64, error) {
	if s.err != nil {
		return 0, s.err
	}
	return s.sums[resource], nil
}
