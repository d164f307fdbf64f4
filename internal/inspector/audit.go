package inspector

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/agiledigital-labs/sleuthbot/internal/domain"
	"github.com/agiledigital-labs/sleuthbot/internal/flow"
)

// DefaultChunkSize keeps each audit notification one block under the 50-block
// platform ceiling, leaving room for the header.
const DefaultChunkSize = 49

// DetailExtractor pulls a source-specific display detail out of an audit
// event's raw payload, scoped to the investigation target. The second return
// is false when the event contributes no detail line.
type DetailExtractor func(targetScope, rawDetail string) (string, bool)

// FunctionDetailExtractor reads a function-style audit payload and quotes the
// function name when it matches the target scope.
func FunctionDetailExtractor(targetScope, rawDetail string) (string, bool) {
	if rawDetail == "" {
		return "", false
	}
	var payload struct {
		ResponseElements struct {
			FunctionName string `json:"functionName"`
		} `json:"responseElements"`
	}
	if err := json.Unmarshal([]byte(rawDetail), &payload); err != nil {
		return "", false
	}
	name := payload.ResponseElements.FunctionName
	if name == "" || !strings.Contains(name, targetScope) {
		return "", false
	}
	return "`" + name + "`", true
}

// AuditOptions tunes the audit inspector. Zero values take the defaults.
type AuditOptions struct {
	ChunkSize int
	Fetch     flow.FetchOptions
}

// AuditInspector pages through the audit trail for the window, keeps events
// from the configured sources, and posts them as formatted lines, chunked to
// fit the channel's block ceiling.
type AuditInspector struct {
	store      domain.AuditEventStore
	reporter   Reporter
	extractors map[string]DetailExtractor // event source -> extractor
	chunkSize  int
	fetchOpts  flow.FetchOptions
	logger     *slog.Logger
}

// NewAuditInspector builds the inspector. Only events whose source is a key
// of extractors are reported; a nil extractor value keeps the source but
// contributes no detail line.
func NewAuditInspector(store domain.AuditEventStore, reporter Reporter, extractors map[string]DetailExtractor, opts AuditOptions, logger *slog.Logger) *AuditInspector {
	chunkSize := opts.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &AuditInspector{
		store:      store,
		reporter:   reporter,
		extractors: extractors,
		chunkSize:  chunkSize,
		fetchOpts:  opts.Fetch,
		logger:     logger,
	}
}

func (i *AuditInspector) Name() string { return "audit" }

// Inspect drains the audit trail for the window and reports matching events.
func (i *AuditInspector) Inspect(ctx context.Context, req domain.InvestigationRequest) error {
	events, err := flow.FetchAll(ctx, func(ctx context.Context, token string) (flow.Page[domain.AuditEvent], error) {
		page, err := i.store.LookupEvents(ctx, domain.AuditLookup{Window: req.Window, NextToken: token})
		if err != nil {
			return flow.Page[domain.AuditEvent]{}, err
		}
		return flow.Page[domain.AuditEvent]{Items: page.Events, NextToken: page.NextToken}, nil
	}, i.fetchOpts)
	if err != nil {
		return fmt.Errorf("audit lookup: %w", err)
	}

	lines := i.formatEvents(req.TargetText, events)
	i.logger.Info("audit events collected",
		"correlation_id", req.CorrelationID,
		"total", len(events),
		"matching", len(lines),
	)

	if len(lines) == 0 {
		return i.reporter.Report(domain.OutgoingNotification{
			OriginalRequest: req,
			Blocks: []domain.Block{
				domain.SectionBlock("🔎 Audit Inspector here! I couldn't find any audit events in the window. Nothing to report."),
			},
		})
	}

	for _, group := range flow.Chunk(lines, i.chunkSize) {
		blocks := make([]domain.Block, 0, len(group)+1)
		blocks = append(blocks, domain.SectionBlock("🔎 Audit Inspector here! I've fetched you some audit events that might be relevant. Hope it helps!"))
		for _, line := range group {
			blocks = append(blocks, domain.SectionBlock(line))
		}
		if err := i.reporter.Report(domain.OutgoingNotification{OriginalRequest: req, Blocks: blocks}); err != nil {
			return err
		}
	}
	return nil
}

// formatEvents keeps events from configured sources and renders each into one
// display line, in the order the store returned them.
func (i *AuditInspector) formatEvents(targetScope string, events []domain.AuditEvent) []string {
	var lines []string
	for _, event := range events {
		extractor, known := i.extractors[event.Source]
		if !known {
			continue
		}

		line := fmt.Sprintf("*Event*: %s\n*Time*: %s\n*User*: %s\n*Source*: %s",
			stripTrailingDigits(event.Name),
			event.Time.UTC().Format(time.RFC3339),
			event.Actor,
			sourceShortName(event.Source),
		)
		if extractor != nil {
			if detail, ok := extractor(targetScope, event.RawDetail); ok {
				line += "\n" + detail
			}
		}
		lines = append(lines, line)
	}
	return lines
}

// stripTrailingDigits cuts an event name at its first digit, dropping the
// API-version suffix audit stores append.
func stripTrailingDigits(name string) string {
	for i, r := range name {
		if unicode.IsDigit(r) {
			return name[:i]
		}
	}
	return name
}

// sourceShortName keeps only the first dot-segment of an event source.
func sourceShortName(source string) string {
	if idx := strings.IndexByte(source, '.'); idx >= 0 {
		return source[:idx]
	}
	return source
}
