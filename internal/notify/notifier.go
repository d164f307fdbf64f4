// Package notify drains the fan-in topic and delivers each notification back
// into the thread that started its investigation.
package notify

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/agiledigital-labs/sleuthbot/internal/domain"
	"github.com/agiledigital-labs/sleuthbot/internal/metrics"
)

const consumerName = "notifier"

// Notifier is the single consumer of the findings topic. Notifications are
// posted in bus delivery order; there is no cross-notification batching or
// reordering, and inspectors race each other by design.
type Notifier struct {
	bus     domain.MessageBus
	posters map[string]domain.Poster
	logger  *slog.Logger
}

// New creates a notifier delivering through the given posters, keyed by
// poster name.
func New(bus domain.MessageBus, posters []domain.Poster, logger *slog.Logger) *Notifier {
	byName := make(map[string]domain.Poster, len(posters))
	for _, p := range posters {
		byName[p.Name()] = p
	}
	return &Notifier{bus: bus, posters: byName, logger: logger}
}

// Run consumes findings until ctx is cancelled or the bus closes.
// Undeliverable notifications are logged and dropped; they never go back onto
// the bus.
func (n *Notifier) Run(ctx context.Context) {
	deliveries := n.bus.Subscribe(domain.TopicInvestigationFindings, consumerName)
	n.logger.Info("notifier started", "posters", len(n.posters))

	for {
		select {
		case <-ctx.Done():
			n.logger.Info("notifier stopping")
			return
		case d, ok := <-deliveries:
			if !ok {
				n.logger.Info("bus closed, notifier stopping")
				return
			}
			n.handle(ctx, d)
		}
	}
}

func (n *Notifier) handle(ctx context.Context, d domain.Delivery) {
	var notification domain.OutgoingNotification
	if err := json.Unmarshal(d.Payload, &notification); err != nil {
		n.logger.Error("undecodable notification dropped", "err", err)
		return
	}

	req := notification.OriginalRequest
	poster, ok := n.posters[req.Origin]
	if !ok {
		n.logger.Error("no poster for origin, notification dropped",
			"origin", req.Origin,
			"correlation_id", req.CorrelationID,
		)
		return
	}

	err := poster.PostThreadReply(ctx, req.Channel, req.ThreadKey, notification.Blocks, notification.PlainText)
	if err != nil {
		n.logger.Error("could not post notification",
			"origin", req.Origin,
			"channel", req.Channel,
			"correlation_id", req.CorrelationID,
			"err", err,
		)
		return
	}

	metrics.NotificationPosted(req.Origin)
	n.logger.Debug("notification posted",
		"origin", req.Origin,
		"correlation_id", req.CorrelationID,
		"blocks", len(notification.Blocks),
	)
}
