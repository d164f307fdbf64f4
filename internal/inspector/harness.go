package inspector

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/agiledigital-labs/sleuthbot/internal/domain"
	"github.com/agiledigital-labs/sleuthbot/internal/metrics"
)

// Harness runs one inspector against the fan-out topic. Records in its queue
// are handled strictly one at a time, and a failing or panicking inspection is
// converted into a best-effort apology notification instead of crashing the
// consumer loop or leaking the error back onto the bus.
type Harness struct {
	inspector Inspector
	bus       domain.MessageBus
	reporter  Reporter
	logger    *slog.Logger
}

// NewHarness wires inspector to the bus and reporter.
func NewHarness(inspector Inspector, bus domain.MessageBus, reporter Reporter, logger *slog.Logger) *Harness {
	return &Harness{
		inspector: inspector,
		bus:       bus,
		reporter:  reporter,
		logger:    logger.With("inspector", inspector.Name()),
	}
}

// Run consumes investigation requests until ctx is cancelled or the bus
// closes. Each delivery is fully processed, retries and pagination included,
// before the next one starts.
func (h *Harness) Run(ctx context.Context) {
	deliveries := h.bus.Subscribe(domain.TopicInvestigationRequested, h.inspector.Name())
	h.logger.Info("inspector started")

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("inspector stopping")
			return
		case d, ok := <-deliveries:
			if !ok {
				h.logger.Info("bus closed, inspector stopping")
				return
			}
			h.handle(ctx, d)
		}
	}
}

func (h *Harness) handle(ctx context.Context, d domain.Delivery) {
	var req domain.InvestigationRequest
	if err := json.Unmarshal(d.Payload, &req); err != nil {
		h.logger.Error("undecodable investigation request dropped", "err", err)
		return
	}

	h.logger.Info("inspecting",
		"correlation_id", req.CorrelationID,
		"target", req.TargetText,
		"window", req.Window.String(),
	)

	start := time.Now()
	err := h.inspect(ctx, req)
	metrics.ObserveInspection(h.inspector.Name(), time.Since(start))

	if err != nil {
		h.logger.Error("inspection failed", "correlation_id", req.CorrelationID, "err", err)
		metrics.InspectorFailed(h.inspector.Name())
		h.apologize(req)
	}
}

// inspect invokes the inspector with panic recovery so a broken inspector
// takes the apology path like any other failure.
func (h *Harness) inspect(ctx context.Context, req domain.InvestigationRequest) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("inspector panic: %v", r)
		}
	}()
	return h.inspector.Inspect(ctx, req)
}

func (h *Harness) apologize(req domain.InvestigationRequest) {
	n := domain.OutgoingNotification{
		OriginalRequest: req,
		Blocks: []domain.Block{
			domain.SectionBlock(fmt.Sprintf(
				":cry: The %s inspector is having some issues at the moment. Hopefully it feels better soon.",
				h.inspector.Name(),
			)),
		},
	}
	if err := h.reporter.Report(n); err != nil {
		h.logger.Error("could not deliver apology", "correlation_id", req.CorrelationID, "err", err)
	}
}
