// Package channel holds the chat-platform adapters: each one feeds triggers
// to the dispatcher and implements domain.Poster for threaded replies.
package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"github.com/agiledigital-labs/sleuthbot/internal/dispatch"
	"github.com/agiledigital-labs/sleuthbot/internal/domain"
)

const defaultSlashCommand = "/investigate"

// Slack connects over Socket Mode: slash commands and thread replies come in,
// inspector findings go back out as threaded Block Kit messages.
type Slack struct {
	botToken string
	appToken string
	command  string

	client     *slack.Client
	socket     *socketmode.Client
	dispatcher *dispatch.Dispatcher
	logger     *slog.Logger
	botUID     string // the bot's own user ID, to avoid investigating itself
}

// SlackConfig configures the Slack channel.
type SlackConfig struct {
	BotToken string
	AppToken string
	Command  string // slash command to react to, default /investigate
	Logger   *slog.Logger
}

// NewSlack creates the Slack channel adapter.
func NewSlack(cfg SlackConfig) *Slack {
	if cfg.Command == "" {
		cfg.Command = defaultSlashCommand
	}
	return &Slack{
		botToken: cfg.BotToken,
		appToken: cfg.AppToken,
		command:  cfg.Command,
		logger:   cfg.Logger,
	}
}

func (s *Slack) Name() string { return "slack" }

// Start connects via Socket Mode and feeds triggers to the dispatcher until
// ctx is cancelled.
func (s *Slack) Start(ctx context.Context, dispatcher *dispatch.Dispatcher) error {
	s.dispatcher = dispatcher

	api := slack.New(
		s.botToken,
		slack.OptionAppLevelToken(s.appToken),
	)
	s.client = api

	authResp, err := api.AuthTest()
	if err != nil {
		return fmt.Errorf("slack auth: %w", err)
	}
	s.botUID = authResp.UserID
	s.logger.Info("slack bot connected", "user", authResp.User, "user_id", authResp.UserID)

	socketClient := socketmode.New(api)
	s.socket = socketClient

	go func() {
		for evt := range socketClient.Events {
			switch evt.Type {
			case socketmode.EventTypeSlashCommand:
				cmd, ok := evt.Data.(slack.SlashCommand)
				if !ok {
					continue
				}
				// Ack inside Slack's 3s window before any investigating starts.
				socketClient.Ack(*evt.Request)
				s.handleSlashCommand(ctx, cmd)

			case socketmode.EventTypeEventsAPI:
				eventsAPIEvent, ok := evt.Data.(slackevents.EventsAPIEvent)
				if !ok {
					continue
				}
				socketClient.Ack(*evt.Request)
				s.handleEventsAPI(ctx, eventsAPIEvent)

			default:
				// Acknowledge unknown events to prevent Socket Mode disconnection.
				if evt.Request != nil {
					socketClient.Ack(*evt.Request)
				}
			}
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		errCh <- socketClient.RunContext(ctx)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("slack bot disconnecting")
		return nil
	case err := <-errCh:
		return fmt.Errorf("slack socket mode: %w", err)
	}
}

func (s *Slack) handleSlashCommand(ctx context.Context, cmd slack.SlashCommand) {
	if cmd.Command != s.command {
		return
	}
	target := strings.TrimSpace(cmd.Text)

	s.logger.Info("slack slash command",
		"command", cmd.Command,
		"user", cmd.UserID,
		"channel", cmd.ChannelID,
	)

	if err := s.dispatcher.Validate(dispatch.Command{Text: target}); err != nil {
		if !errors.Is(err, dispatch.ErrNoSubject) {
			s.logger.Error("slash command rejected", "err", err)
		}
		s.postPlain(ctx, cmd.ChannelID, dispatch.GuidanceText)
		return
	}

	// The ack message opens the thread every finding replies into.
	_, threadKey, err := s.client.PostMessageContext(ctx, cmd.ChannelID,
		slack.MsgOptionBlocks(slack.NewSectionBlock(
			slack.NewTextBlockObject(slack.MarkdownType, dispatch.AckText, false, false), nil, nil)),
		slack.MsgOptionText("SleuthBot is on the case!", false),
	)
	if err != nil {
		s.logger.Error("could not post ack message", "channel", cmd.ChannelID, "err", err)
		return
	}

	meta, _ := json.Marshal(map[string]any{
		"rawPayload":  cmd,
		"rawResponse": map[string]string{"channel": cmd.ChannelID, "ts": threadKey},
	})
	_, err = s.dispatcher.Dispatch(ctx, dispatch.Command{
		Origin:      s.Name(),
		ChannelID:   cmd.ChannelID,
		CallerToken: s.botToken,
		Text:        target,
		ThreadKey:   threadKey,
		Meta:        meta,
	})
	if err != nil {
		s.logger.Error("could not dispatch investigation", "err", err)
	}
}

func (s *Slack) handleEventsAPI(ctx context.Context, event slackevents.EventsAPIEvent) {
	if event.Type != slackevents.CallbackEvent {
		return
	}
	ev, ok := event.InnerEvent.Data.(*slackevents.MessageEvent)
	if !ok {
		return
	}
	// Ignore the bot's own messages and edits; only thread replies continue
	// an investigation.
	if ev.User == s.botUID || ev.User == "" || ev.SubType != "" || ev.ThreadTimeStamp == "" {
		return
	}

	eventTime, err := slackTimestamp(ev.ThreadTimeStamp)
	if err != nil {
		s.logger.Error("bad thread timestamp", "ts", ev.ThreadTimeStamp, "err", err)
		return
	}

	meta, _ := json.Marshal(map[string]any{"rawPayload": ev})
	req, err := s.dispatcher.Continue(ctx, dispatch.ThreadReply{
		Origin:      s.Name(),
		ChannelID:   ev.Channel,
		CallerToken: s.botToken,
		Text:        strings.TrimSpace(ev.Text),
		ThreadKey:   ev.ThreadTimeStamp,
		EventTime:   eventTime,
		Meta:        meta,
	})
	if err != nil {
		s.logger.Error("could not continue investigation", "err", err)
		return
	}

	if err := s.PostThreadReply(ctx, ev.Channel, ev.ThreadTimeStamp, nil, dispatch.WindowDescription(req.Window)); err != nil {
		s.logger.Error("could not post window description", "channel", ev.Channel, "err", err)
	}
}

// PostThreadReply implements domain.Poster with Block Kit sections.
func (s *Slack) PostThreadReply(ctx context.Context, channel, threadKey string, blocks []domain.Block, text string) error {
	opts := []slack.MsgOption{slack.MsgOptionTS(threadKey)}
	if len(blocks) > 0 {
		opts = append(opts, slack.MsgOptionBlocks(renderSlackBlocks(blocks)...))
		if text == "" {
			text = "More findings for you to look at"
		}
	}
	opts = append(opts, slack.MsgOptionText(text, false))

	_, _, err := s.client.PostMessageContext(ctx, channel, opts...)
	if err != nil {
		return fmt.Errorf("slack post to %s: %w", channel, err)
	}
	return nil
}

func (s *Slack) postPlain(ctx context.Context, channel, text string) {
	if _, _, err := s.client.PostMessageContext(ctx, channel, slack.MsgOptionText(text, false)); err != nil {
		s.logger.Error("slack send failed", "channel", channel, "err", err)
	}
}

func renderSlackBlocks(blocks []domain.Block) []slack.Block {
	out := make([]slack.Block, 0, len(blocks))
	for _, b := range blocks {
		text := b.Text
		if b.Type == domain.BlockPreformatted {
			text = "```\n" + text + "\n```"
		}
		var textObj *slack.TextBlockObject
		if text != "" {
			textObj = slack.NewTextBlockObject(slack.MarkdownType, text, false, false)
		}
		var fields []*slack.TextBlockObject
		for _, f := range b.Fields {
			fields = append(fields, slack.NewTextBlockObject(slack.MarkdownType, f, false, false))
		}
		out = append(out, slack.NewSectionBlock(textObj, fields, nil))
	}
	return out
}

// slackTimestamp parses Slack's "seconds.sequence" message timestamps.
func slackTimestamp(ts string) (time.Time, error) {
	seconds, _, _ := strings.Cut(ts, ".")
	unix, err := strconv.ParseInt(seconds, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse slack timestamp %q: %w", ts, err)
	}
	return time.Unix(unix, 0).UTC(), nil
}
