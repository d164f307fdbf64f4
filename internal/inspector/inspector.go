// Package inspector contains the independent diagnostic workers that consume
// an investigation request and report findings back into the originating
// thread, plus the harness that isolates their failures.
package inspector

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/agiledigital-labs/sleuthbot/internal/domain"
)

// Inspector is one category of diagnostic check. Name doubles as the bus
// consumer id, so each inspector drains its own queue independently.
type Inspector interface {
	Name() string
	Inspect(ctx context.Context, req domain.InvestigationRequest) error
}

// Reporter sends a finished notification towards the notifier.
type Reporter interface {
	Report(n domain.OutgoingNotification) error
}

// BusReporter publishes notifications onto the fan-in topic.
type BusReporter struct {
	bus domain.MessageBus
}

// NewBusReporter wraps bus as a Reporter.
func NewBusReporter(bus domain.MessageBus) *BusReporter {
	return &BusReporter{bus: bus}
}

// Report serializes n and publishes it to the findings topic.
func (r *BusReporter) Report(n domain.OutgoingNotification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	if err := r.bus.Publish(domain.TopicInvestigationFindings, payload); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}
