package inspector

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/agiledigital-labs/sleuthbot/internal/domain"
)

// MetricsInspector sums each resolved resource's error series over the window
// and reports the ones that misbehaved.
type MetricsInspector struct {
	store    domain.MetricsStore
	resolver *Resolver
	reporter Reporter
	logger   *slog.Logger
}

// NewMetricsInspector builds the inspector.
func NewMetricsInspector(store domain.MetricsStore, resolver *Resolver, reporter Reporter, logger *slog.Logger) *MetricsInspector {
	return &MetricsInspector{store: store, resolver: resolver, reporter: reporter, logger: logger}
}

func (i *MetricsInspector) Name() string { return "metrics" }

// Inspect reports a name/count table of resources with errors, or an
// all-clear when every sum is zero.
func (i *MetricsInspector) Inspect(ctx context.Context, req domain.InvestigationRequest) error {
	names, err := i.resolver.Resolve(ctx, req.TargetText)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		return i.send(req, domain.SectionBlock(fmt.Sprintf(
			"📈 Metrics Inspector here! I couldn't find any resources for %s, so no metrics from me.", req.TargetText)))
	}

	// Resolver order is kept so repeated investigations render the same table.
	var suspicious []string
	var counts []float64
	for _, name := range names {
		sum, err := i.store.ErrorSum(ctx, name, req.Window)
		if err != nil {
			return fmt.Errorf("error sum for %q: %w", name, err)
		}
		if sum > 0 {
			suspicious = append(suspicious, name)
			counts = append(counts, sum)
		}
	}
	i.logger.Info("metrics summed",
		"correlation_id", req.CorrelationID,
		"resources", len(names),
		"suspicious", len(suspicious),
	)

	if len(suspicious) == 0 {
		return i.send(req, domain.SectionBlock(
			"📈 Metrics Inspector here! Your metrics are looking good. Nothing to see here!"))
	}

	fields := make([]string, 0, 2*len(suspicious))
	for idx, name := range suspicious {
		fields = append(fields,
			"*"+name+"*",
			strconv.FormatFloat(counts[idx], 'f', -1, 64),
		)
	}
	return i.send(req, domain.Block{
		Type:   domain.BlockSection,
		Text:   "📈 Metrics Inspector here! I've found some suspicious metrics. Take a look:",
		Fields: fields,
	})
}

func (i *MetricsInspector) send(req domain.InvestigationRequest, block domain.Block) error {
	return i.reporter.Report(domain.OutgoingNotification{
		OriginalRequest: req,
		Blocks:          []domain.Block{block},
	})
}
