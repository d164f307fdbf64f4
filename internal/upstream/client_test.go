package upstream

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/agiledigital-labs/sleuthbot/internal/domain"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewClient(srv.URL, time.Second, logger)
}

func TestSearchDecodesLocators(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		io.WriteString(w, `{"resourceLocators":["arn:aws:lambda:ap-southeast-2:123:function:orders-api"]}`)
	}))

	locators, err := c.Search(context.Background(), domain.ResourceQuery{
		TypeFilters: []string{"function"},
		TagKey:      "deployment-group",
		TagValue:    "orders",
	})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if gotPath != "/v1/resources/search" {
		t.Errorf("path = %q", gotPath)
	}
	if gotBody["tagValue"] != "orders" {
		t.Errorf("tagValue = %v", gotBody["tagValue"])
	}
	if len(locators) != 1 || !strings.Contains(locators[0], "orders-api") {
		t.Errorf("locators = %v", locators)
	}
}

func TestStartQueryRejectsEmptyID(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{}`)
	}))

	_, err := c.StartQuery(context.Background(), domain.LogQuery{LogGroups: []string{"/aws/lambda/orders"}})
	if err == nil || !strings.Contains(err.Error(), "no query id") {
		t.Errorf("err = %v, want missing query id failure", err)
	}
}

func TestGetQueryResultsMapsRows(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{
			"status": "Complete",
			"rows": [[
				{"field": "@log", "value": "/aws/lambda/orders"},
				{"field": "@message", "value": "ERROR boom"}
			]]
		}`)
	}))

	poll, err := c.GetQueryResults(context.Background(), "q-1")
	if err != nil {
		t.Fatalf("get results: %v", err)
	}
	if poll.Status != domain.LogQueryComplete {
		t.Errorf("status = %q", poll.Status)
	}
	if len(poll.Rows) != 1 || len(poll.Rows[0]) != 2 {
		t.Fatalf("rows = %v", poll.Rows)
	}
	if poll.Rows[0][1].Value != "ERROR boom" {
		t.Errorf("message value = %q", poll.Rows[0][1].Value)
	}
}

func TestLookupEventsCarriesToken(t *testing.T) {
	var gotBody map[string]any
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		io.WriteString(w, `{
			"events": [{
				"id": "ev-1",
				"name": "UpdateFunctionCode20150331v2",
				"time": "2021-04-10T11:50:00Z",
				"actor": "deployer",
				"source": "lambda.amazonaws.com",
				"detail": {"responseElements": {"functionName": "orders-api"}}
			}],
			"nextToken": "page-2"
		}`)
	}))

	window := mustWindow(t)
	page, err := c.LookupEvents(context.Background(), domain.AuditLookup{Window: window, NextToken: "page-1"})
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if gotBody["nextToken"] != "page-1" {
		t.Errorf("nextToken sent = %v", gotBody["nextToken"])
	}
	if page.NextToken != "page-2" {
		t.Errorf("nextToken returned = %q", page.NextToken)
	}
	if len(page.Events) != 1 {
		t.Fatalf("events = %v", page.Events)
	}
	ev := page.Events[0]
	if ev.Name != "UpdateFunctionCode20150331v2" || ev.Actor != "deployer" {
		t.Errorf("event = %+v", ev)
	}
	if !strings.Contains(ev.RawDetail, "orders-api") {
		t.Errorf("raw detail = %q", ev.RawDetail)
	}
}

func TestDescribeDeploymentNotFound(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"found": false}`)
	}))

	rec, err := c.DescribeDeployment(context.Background(), "ghost-stack")
	if err != nil {
		t.Fatalf("describe: %v", err)
	}
	if rec.Found {
		t.Error("unknown stack must report Found=false, not an error")
	}
}

func TestErrorSum(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"sum": 12}`)
	}))

	sum, err := c.ErrorSum(context.Background(), "orders-api", mustWindow(t))
	if err != nil {
		t.Fatalf("error sum: %v", err)
	}
	if sum != 12 {
		t.Errorf("sum = %v, want 12", sum)
	}
}

func TestNon200SurfacesBody(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "directory unavailable", http.StatusBadGateway)
	}))

	_, err := c.Search(context.Background(), domain.ResourceQuery{TagKey: "k", TagValue: "v"})
	if err == nil {
		t.Fatal("expected error for HTTP 502")
	}
	if !strings.Contains(err.Error(), "502") || !strings.Contains(err.Error(), "directory unavailable") {
		t.Errorf("err = %v, want status and body snippet", err)
	}
}

func mustWindow(t *testing.T) domain.TimeWindow {
	t.Helper()
	end := time.Date(2021, 4, 10, 12, 0, 0, 0, time.UTC)
	return domain.WindowEndingAt(end, 15*time.Minute)
}
