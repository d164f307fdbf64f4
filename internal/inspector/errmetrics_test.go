package inspector

import (
	"context"
	"strings"
	"testing"
)

func newMetricsInspector(store *fakeMetricsStore, dir *fakeDirectory, reporter Reporter) *MetricsInspector {
	resolver := NewResolver(dir, "", []string{"function"}, testLogger())
	return NewMetricsInspector(store, resolver, reporter, testLogger())
}

func TestMetricsInspector_ReportsSuspiciousResources(t *testing.T) {
	dir := &fakeDirectory{locators: []string{
		functionLocator("payments-handler"),
		functionLocator("payments-worker"),
		functionLocator("payments-cron"),
	}}
	store := &fakeMetricsStore{sums: map[string]float64{
		"payments-handler": 12,
		"payments-worker":  0,
		"payments-cron":    3,
	}}
	reporter := &memReporter{}

	insp := newMetricsInspector(store, dir, reporter)
	if err := insp.Inspect(context.Background(), testRequest("payments-service")); err != nil {
		t.Fatalf("inspect: %v", err)
	}

	got := reporter.notifications()
	if len(got) != 1 {
		t.Fatalf("notifications = %d, want 1", len(got))
	}
	block := got[0].Blocks[0]
	if !strings.Contains(block.Text, "suspicious metrics") {
		t.Errorf("unexpected header: %q", block.Text)
	}
	wantFields := []string{"*payments-handler*", "12", "*payments-cron*", "3"}
	if len(block.Fields) != len(wantFields) {
		t.Fatalf("fields = %v, want %v", block.Fields, wantFields)
	}
	for i, f := range wantFields {
		if block.Fields[i] != f {
			t.Errorf("field %d = %q, want %q", i, block.Fields[i], f)
		}
	}
}

func TestMetricsInspector_AllClear(t *testing.T) {
	dir := &fakeDirectory{locators: []string{functionLocator("payments-handler")}}
	store := &fakeMetricsStore{sums: map[string]float64{}}
	reporter := &memReporter{}

	insp := newMetricsInspector(store, dir, reporter)
	if err := insp.Inspect(context.Background(), testRequest("payments-service")); err != nil {
		t.Fatalf("inspect: %v", err)
	}

	got := reporter.notifications()
	if len(got) != 1 {
		t.Fatalf("notifications = %d, want 1", len(got))
	}
	if !strings.Contains(got[0].Blocks[0].Text, "looking good") {
		t.Errorf("unexpected message: %q", got[0].Blocks[0].Text)
	}
}

func TestMetricsInspector_NoResources(t *testing.T) {
	reporter := &memReporter{}
	insp := newMetricsInspector(&fakeMetricsStore{}, &fakeDirectory{}, reporter)
	if err := insp.Inspect(context.Background(), testRequest("ghost-stack")); err != nil {
		t.Fatalf("inspect: %v", err)
	}

	got := reporter.notifications()
	if len(got) != 1 {
		t.Fatalf("notifications = %d, want 1", len(got))
	}
	if !strings.Contains(got[0].Blocks[0].Text, "couldn't find any resources") {
		t.Errorf("unexpected message: %q", got[0].Blocks[0].Text)
	}
}

func TestWelcomeInspector_Acknowledges(t *testing.T) {
	reporter := &memReporter{}
	req := testRequest("payments-service")
	if err := NewWelcomeInspector(reporter).Inspect(context.Background(), req); err != nil {
		t.Fatalf("inspect: %v", err)
	}

	got := reporter.notifications()
	if len(got) != 1 {
		t.Fatalf("notifications = %d, want 1", len(got))
	}
	if got[0].OriginalRequest.CorrelationID != req.CorrelationID {
		t.Error("acknowledgment must carry the original request")
	}
	if !strings.Contains(got[0].Blocks[0].Text, "sending some inspectors out") {
		t.Errorf("unexpected message: %q", got[0].Blocks[0].Text)
	}
}
