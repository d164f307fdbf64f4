// Package upstream implements the diagnostic query interfaces over the JSON
// gateway that fronts the log engine, audit store, deployment history,
// metrics store and resource directory.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/agiledigital-labs/sleuthbot/internal/domain"
)

const defaultTimeout = 30 * time.Second

// Client talks to the diagnostics gateway. It implements every query
// interface the inspectors depend on.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

var (
	_ domain.ResourceDirectory = (*Client)(nil)
	_ domain.LogQueryService   = (*Client)(nil)
	_ domain.AuditEventStore   = (*Client)(nil)
	_ domain.DeploymentStore   = (*Client)(nil)
	_ domain.MetricsStore      = (*Client)(nil)
)

// NewClient builds a gateway client. A zero timeout falls back to 30s.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 5,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		logger: logger,
	}
}

// Search implements domain.ResourceDirectory.
func (c *Client) Search(ctx context.Context, q domain.ResourceQuery) ([]string, error) {
	payload := map[string]any{
		"typeFilters": q.TypeFilters,
		"tagKey":      q.TagKey,
		"tagValue":    q.TagValue,
	}
	var out struct {
		ResourceLocators []string `json:"resourceLocators"`
	}
	if err := c.postJSON(ctx, "/v1/resources/search", payload, &out); err != nil {
		return nil, fmt.Errorf("search resources: %w", err)
	}
	return out.ResourceLocators, nil
}

// StartQuery implements domain.LogQueryService.
func (c *Client) StartQuery(ctx context.Context, q domain.LogQuery) (string, error) {
	payload := map[string]any{
		"logGroups": q.LogGroups,
		"startTime": q.Window.StartTime,
		"endTime":   q.Window.EndTime,
		"filter":    q.Filter,
		"limit":     q.Limit,
	}
	var out struct {
		QueryID string `json:"queryId"`
	}
	if err := c.postJSON(ctx, "/v1/logs/queries", payload, &out); err != nil {
		return "", fmt.Errorf("start log query: %w", err)
	}
	if out.QueryID == "" {
		return "", fmt.Errorf("start log query: gateway returned no query id")
	}
	return out.QueryID, nil
}

// GetQueryResults implements domain.LogQueryService.
func (c *Client) GetQueryResults(ctx context.Context, queryID string) (domain.LogQueryPoll, error) {
	payload := map[string]any{"queryId": queryID}
	var out struct {
		Status string `json:"status"`
		Rows   [][]struct {
			Field string `json:"field"`
			Value string `json:"value"`
		} `json:"rows"`
	}
	if err := c.postJSON(ctx, "/v1/logs/query-results", payload, &out); err != nil {
		return domain.LogQueryPoll{}, fmt.Errorf("get log query results: %w", err)
	}

	poll := domain.LogQueryPoll{Status: domain.LogQueryStatus(out.Status)}
	for _, row := range out.Rows {
		fields := make([]domain.LogField, 0, len(row))
		for _, f := range row {
			fields = append(fields, domain.LogField{Field: f.Field, Value: f.Value})
		}
		poll.Rows = append(poll.Rows, fields)
	}
	return poll, nil
}

// LookupEvents implements domain.AuditEventStore.
func (c *Client) LookupEvents(ctx context.Context, q domain.AuditLookup) (domain.AuditPage, error) {
	payload := map[string]any{
		"startTime": q.Window.StartTime,
		"endTime":   q.Window.EndTime,
	}
	if q.NextToken != "" {
		payload["nextToken"] = q.NextToken
	}
	var out struct {
		Events []struct {
			ID     string          `json:"id"`
			Name   string          `json:"name"`
			Time   time.Time       `json:"time"`
			Actor  string          `json:"actor"`
			Source string          `json:"source"`
			Detail json.RawMessage `json:"detail"`
		} `json:"events"`
		NextToken string `json:"nextToken"`
	}
	if err := c.postJSON(ctx, "/v1/audit/events", payload, &out); err != nil {
		return domain.AuditPage{}, fmt.Errorf("lookup audit events: %w", err)
	}

	page := domain.AuditPage{NextToken: out.NextToken}
	for _, ev := range out.Events {
		page.Events = append(page.Events, domain.AuditEvent{
			ID:        ev.ID,
			Name:      ev.Name,
			Time:      ev.Time,
			Actor:     ev.Actor,
			Source:    ev.Source,
			RawDetail: string(ev.Detail),
		})
	}
	return page, nil
}

// DescribeDeployment implements domain.DeploymentStore. An unknown target is
// reported through Found, not through an error.
func (c *Client) DescribeDeployment(ctx context.Context, name string) (domain.DeploymentRecord, error) {
	payload := map[string]any{"name": name}
	var out struct {
		Found        bool      `json:"found"`
		Name         string    `json:"name"`
		LastDeployed time.Time `json:"lastDeployed"`
	}
	if err := c.postJSON(ctx, "/v1/deployments/describe", payload, &out); err != nil {
		return domain.DeploymentRecord{}, fmt.Errorf("describe deployment: %w", err)
	}
	return domain.DeploymentRecord{Found: out.Found, Name: out.Name, LastDeployed: out.LastDeployed}, nil
}

// ErrorSum implements domain.MetricsStore.
func (c *Client) ErrorSum(ctx context.Context, resource string, w domain.TimeWindow) (float64, error) {
	payload := map[string]any{
		"resource":  resource,
		"statistic": "sum",
		"startTime": w.StartTime,
		"endTime":   w.EndTime,
	}
	var out struct {
		Sum float64 `json:"sum"`
	}
	if err := c.postJSON(ctx, "/v1/metrics/errors", payload, &out); err != nil {
		return 0, fmt.Errorf("sum error metrics: %w", err)
	}
	return out.Sum, nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return fmt.Errorf("%s returned HTTP %d: %s", path, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
