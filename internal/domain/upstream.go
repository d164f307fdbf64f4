package domain

import (
	"context"
	"time"
)

// ResourceQuery is a tag-based lookup against the resource directory.
type ResourceQuery struct {
	TypeFilters []string
	TagKey      string
	TagValue    string
}

// ResourceDirectory finds the resource locators carrying a given tag.
// An empty result is a normal outcome, not an error.
type ResourceDirectory interface {
	Search(ctx context.Context, q ResourceQuery) ([]string, error)
}

// LogQuery describes one asynchronous log search.
type LogQuery struct {
	LogGroups []string
	Window    TimeWindow
	Filter    string
	Limit     int
}

// LogQueryStatus is the lifecycle of an asynchronous log query.
type LogQueryStatus string

const (
	LogQueryScheduled LogQueryStatus = "Scheduled"
	LogQueryRunning   LogQueryStatus = "Running"
	LogQueryComplete  LogQueryStatus = "Complete"
	LogQueryFailed    LogQueryStatus = "Failed"
	LogQueryCancelled LogQueryStatus = "Cancelled"
)

// Terminal reports whether the query has finished, successfully or not.
func (s LogQueryStatus) Terminal() bool {
	switch s {
	case LogQueryComplete, LogQueryFailed, LogQueryCancelled:
		return true
	}
	return false
}

// LogField is one column of a result row.
type LogField struct {
	Field string
	Value string
}

// LogQueryPoll is a snapshot of a running query. Rows is populated only once
// Status is Complete.
type LogQueryPoll struct {
	Status LogQueryStatus
	Rows   [][]LogField
}

// LogQueryService starts asynchronous log searches and reports on them.
type LogQueryService interface {
	StartQuery(ctx context.Context, q LogQuery) (string, error)
	GetQueryResults(ctx context.Context, queryID string) (LogQueryPoll, error)
}

// AuditLookup is one page request against the audit event store.
type AuditLookup struct {
	Window    TimeWindow
	NextToken string
}

// AuditEvent is a single change-audit record.
type AuditEvent struct {
	ID        string
	Name      string
	Time      time.Time
	Actor     string
	Source    string
	RawDetail string // source-specific JSON payload, parsed by detail extractors
}

// AuditPage is one page of audit events. A non-empty NextToken means more
// pages remain.
type AuditPage struct {
	Events    []AuditEvent
	NextToken string
}

// AuditEventStore serves paginated audit history.
type AuditEventStore interface {
	LookupEvents(ctx context.Context, q AuditLookup) (AuditPage, error)
}

// DeploymentRecord is the outcome of a deployment-history lookup. Found is
// false when the target is unknown to the store.
type DeploymentRecord struct {
	Found        bool
	Name         string
	LastDeployed time.Time
}

// DeploymentStore answers "when was this thing last deployed".
type DeploymentStore interface {
	DescribeDeployment(ctx context.Context, name string) (DeploymentRecord, error)
}

// MetricsStore sums a resource's error-count series over a window.
type MetricsStore interface {
	ErrorSum(ctx context.Context, resource string, w TimeWindow) (float64, error)
}
