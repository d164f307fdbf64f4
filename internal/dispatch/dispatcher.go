// Package dispatch turns chat triggers into investigation requests on the
// fan-out topic.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/agiledigital-labs/sleuthbot/internal/domain"
	"github.com/agiledigital-labs/sleuthbot/internal/metrics"
)

// Replies posted synchronously back to the caller.
const (
	AckText      = "🕵️ SleuthBot is on the case! Updates will be posted in a thread. Stand by!"
	GuidanceText = "Sorry, I need something to investigate. Try `/investigate <service-name>`."
)

// ErrNoSubject means the trigger carried nothing investigable; the caller
// gets the guidance reply and nothing is published.
var ErrNoSubject = errors.New("no investigable subject")

// DefaultLookback is how far back a fresh investigation looks.
const DefaultLookback = 15 * time.Minute

// Command is a slash-command trigger, already acknowledged by the channel.
// ThreadKey identifies the ack message so inspector findings land under it.
type Command struct {
	Origin      string
	ChannelID   string
	CallerToken string
	Text        string
	ThreadKey   string
	Meta        json.RawMessage // raw trigger payload + ack response
}

// ThreadReply is a reply inside an existing incident thread, continuing the
// investigation around the parent event's timestamp.
type ThreadReply struct {
	Origin      string
	ChannelID   string
	CallerToken string
	Text        string
	ThreadKey   string
	EventTime   time.Time
	Meta        json.RawMessage
}

// Dispatcher validates triggers, assembles investigation requests and
// publishes each exactly once to the fan-out topic.
type Dispatcher struct {
	bus      domain.MessageBus
	lookback time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

// New creates a dispatcher. A non-positive lookback takes DefaultLookback.
func New(bus domain.MessageBus, lookback time.Duration, logger *slog.Logger) *Dispatcher {
	if lookback <= 0 {
		lookback = DefaultLookback
	}
	return &Dispatcher{
		bus:      bus,
		lookback: lookback,
		now:      time.Now,
		logger:   logger,
	}
}

// Validate reports ErrNoSubject when cmd has nothing to investigate. Channels
// call this before posting the ack, so the guidance reply can go out instead.
func (d *Dispatcher) Validate(cmd Command) error {
	if cmd.Text == "" {
		return ErrNoSubject
	}
	return nil
}

// Dispatch publishes a fresh investigation over the window [now - lookback,
// now].
func (d *Dispatcher) Dispatch(ctx context.Context, cmd Command) (domain.InvestigationRequest, error) {
	if err := d.Validate(cmd); err != nil {
		return domain.InvestigationRequest{}, err
	}

	req := domain.InvestigationRequest{
		CorrelationID: uuid.NewString(),
		ThreadKey:     cmd.ThreadKey,
		Origin:        cmd.Origin,
		Channel:       cmd.ChannelID,
		CallerToken:   cmd.CallerToken,
		TargetText:    cmd.Text,
		Window:        domain.WindowEndingAt(d.now(), d.lookback),
		Meta:          cmd.Meta,
	}
	return req, d.publish(req)
}

// Continue publishes a continuation investigation, its window derived from
// the parent event's timestamp rather than from "now".
func (d *Dispatcher) Continue(ctx context.Context, reply ThreadReply) (domain.InvestigationRequest, error) {
	if reply.EventTime.IsZero() {
		return domain.InvestigationRequest{}, ErrNoSubject
	}

	req := domain.InvestigationRequest{
		CorrelationID: uuid.NewString(),
		ThreadKey:     reply.ThreadKey,
		Origin:        reply.Origin,
		Channel:       reply.ChannelID,
		CallerToken:   reply.CallerToken,
		TargetText:    reply.Text,
		Window:        domain.WindowEndingAt(reply.EventTime, d.lookback),
		Meta:          reply.Meta,
	}
	return req, d.publish(req)
}

func (d *Dispatcher) publish(req domain.InvestigationRequest) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode investigation request: %w", err)
	}
	if err := d.bus.Publish(domain.TopicInvestigationRequested, payload); err != nil {
		return fmt.Errorf("publish investigation request: %w", err)
	}

	metrics.InvestigationStarted()
	d.logger.Info("investigation dispatched",
		"correlation_id", req.CorrelationID,
		"origin", req.Origin,
		"target", req.TargetText,
		"window", req.Window.String(),
	)
	return nil
}

// WindowDescription renders the continuation reply telling the caller which
// interval is being searched.
func WindowDescription(w domain.TimeWindow) string {
	return fmt.Sprintf("We will start looking for errors between %s and %s",
		w.StartTime.Format(time.RFC3339), w.EndTime.Format(time.RFC3339))
}
