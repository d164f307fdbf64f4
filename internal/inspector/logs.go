package inspector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/agiledigital-labs/sleuthbot/internal/domain"
	"github.com/agiledigital-labs/sleuthbot/internal/flow"
	"github.com/agiledigital-labs/sleuthbot/internal/metrics"
)

// DefaultLogResultLimit caps how many log rows one investigation pulls back.
const DefaultLogResultLimit = 20

// logFilterExpression keeps only error-level entries, newest first, capped at
// the result limit.
func logFilterExpression(limit int) string {
	return fmt.Sprintf(`fields @log, @message
| filter @message LIKE /ERROR/
| limit %d
| sort @timestamp desc`, limit)
}

// LogsOptions tunes the log inspector. Zero values take the defaults.
type LogsOptions struct {
	ResultLimit    int
	LogGroupPrefix string
	Poll           flow.PollOptions
}

// LogInspector resolves the target to its resources, runs an asynchronous
// error-log query over them, polls it to completion and reports the rows.
type LogInspector struct {
	logs     domain.LogQueryService
	resolver *Resolver
	reporter Reporter
	opts     LogsOptions
	logger   *slog.Logger
}

// NewLogInspector builds the inspector.
func NewLogInspector(logs domain.LogQueryService, resolver *Resolver, reporter Reporter, opts LogsOptions, logger *slog.Logger) *LogInspector {
	if opts.ResultLimit <= 0 {
		opts.ResultLimit = DefaultLogResultLimit
	}
	return &LogInspector{
		logs:     logs,
		resolver: resolver,
		reporter: reporter,
		opts:     opts,
		logger:   logger,
	}
}

func (i *LogInspector) Name() string { return "log" }

// Inspect runs the log search for one request. Zero resolved resources short
// circuits before any query service call is made.
func (i *LogInspector) Inspect(ctx context.Context, req domain.InvestigationRequest) error {
	names, err := i.resolver.Resolve(ctx, req.TargetText)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		return i.send(req, fmt.Sprintf(
			"📃 Log Inspector here! I couldn't find any resources for %s, so no logs from me.", req.TargetText))
	}

	groups := make([]string, len(names))
	for idx, name := range names {
		groups[idx] = i.opts.LogGroupPrefix + name
	}
	i.logger.Info("starting log query", "correlation_id", req.CorrelationID, "log_groups", groups)

	queryID, err := i.logs.StartQuery(ctx, domain.LogQuery{
		LogGroups: groups,
		Window:    req.Window,
		Filter:    logFilterExpression(i.opts.ResultLimit),
		Limit:     i.opts.ResultLimit,
	})
	if err != nil {
		return fmt.Errorf("start log query: %w", err)
	}

	var lastStatus domain.LogQueryStatus
	result, err := flow.Poll(ctx, func(ctx context.Context) (domain.LogQueryPoll, bool, error) {
		poll, err := i.logs.GetQueryResults(ctx, queryID)
		if err != nil {
			return domain.LogQueryPoll{}, false, err
		}
		lastStatus = poll.Status
		return poll, poll.Status.Terminal(), nil
	}, i.opts.Poll)
	if errors.Is(err, flow.ErrPollExhausted) {
		metrics.PollExhausted()
		return fmt.Errorf("log query %s never finished, last status %q: %w", queryID, lastStatus, err)
	}
	if err != nil {
		return fmt.Errorf("poll log query %s: %w", queryID, err)
	}
	if result.Status != domain.LogQueryComplete {
		return fmt.Errorf("log query %s finished with status %q", queryID, result.Status)
	}

	lines := formatLogRows(result.Rows)
	i.logger.Info("log rows retrieved", "correlation_id", req.CorrelationID, "rows", len(lines))
	if len(lines) == 0 {
		return i.send(req, "📃 Log Inspector here! I didn't find any suspicious logs in the window. Looking good!")
	}

	return i.reporter.Report(domain.OutgoingNotification{
		OriginalRequest: req,
		PlainText: "📃 Log Inspector here! I've fetched you some logs that might be relevant.\n\n```\n" +
			strings.Join(lines, "\n") + "\n```",
	})
}

func (i *LogInspector) send(req domain.InvestigationRequest, message string) error {
	return i.reporter.Report(domain.OutgoingNotification{
		OriginalRequest: req,
		Blocks:          []domain.Block{domain.SectionBlock(message)},
	})
}

// formatLogRows renders each row as "<log> <message>", falling back to
// UNKNOWN for missing columns.
func formatLogRows(rows [][]domain.LogField) []string {
	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		logName, message := "UNKNOWN", "UNKNOWN"
		for _, field := range row {
			switch field.Field {
			case "@log":
				logName = field.Value
			case "@message":
				message = field.Value
			}
		}
		lines = append(lines, logName+" "+message)
	}
	return lines
}
