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

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/agiledigital-labs/sleuthbot/internal/dispatch"
	"github.com/agiledigital-labs/sleuthbot/internal/domain"
)

const telegramCommand = "investigate"

// Telegram is the long-polling Telegram adapter. Findings reply to the ack
// message, which stands in for a thread.
type Telegram struct {
	token string

	bot        *tgbotapi.BotAPI
	dispatcher *dispatch.Dispatcher
	logger     *slog.Logger
}

// TelegramConfig configures the Telegram channel.
type TelegramConfig struct {
	Token  string
	Logger *slog.Logger
}

// NewTelegram creates the Telegram channel adapter.
func NewTelegram(cfg TelegramConfig) *Telegram {
	return &Telegram{token: cfg.Token, logger: cfg.Logger}
}

func (t *Telegram) Name() string { return "telegram" }

// Start connects to Telegram and polls for updates until ctx is cancelled.
func (t *Telegram) Start(ctx context.Context, dispatcher *dispatch.Dispatcher) error {
	t.dispatcher = dispatcher

	bot, err := tgbotapi.NewBotAPI(t.token)
	if err != nil {
		return fmt.Errorf("telegram bot init: %w", err)
	}
	t.bot = bot
	t.logger.Info("telegram bot connected",
		"username", bot.Self.UserName,
		"id", bot.Self.ID,
	)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("telegram channel stopping")
			bot.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message != nil {
				t.handleMessage(ctx, update.Message)
			}
		}
	}
}

func (t *Telegram) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	switch {
	case msg.IsCommand() && msg.Command() == telegramCommand:
		t.handleCommand(ctx, msg)
	case msg.ReplyToMessage != nil:
		t.handleReply(ctx, msg)
	}
}

func (t *Telegram) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	target := strings.TrimSpace(msg.CommandArguments())

	t.logger.Info("telegram command",
		"user", msg.From.ID,
		"chat", msg.Chat.ID,
	)

	if err := t.dispatcher.Validate(dispatch.Command{Text: target}); err != nil {
		if !errors.Is(err, dispatch.ErrNoSubject) {
			t.logger.Error("command rejected", "err", err)
		}
		t.sendPlain(msg.Chat.ID, 0, dispatch.GuidanceText)
		return
	}

	ack := tgbotapi.NewMessage(msg.Chat.ID, dispatch.AckText)
	sent, err := t.bot.Send(ack)
	if err != nil {
		t.logger.Error("could not post ack message", "chat", msg.Chat.ID, "err", err)
		return
	}

	meta, _ := json.Marshal(map[string]any{"rawPayload": msg, "rawResponse": sent})
	_, err = t.dispatcher.Dispatch(ctx, dispatch.Command{
		Origin:      t.Name(),
		ChannelID:   strconv.FormatInt(msg.Chat.ID, 10),
		CallerToken: t.token,
		Text:        target,
		ThreadKey:   strconv.Itoa(sent.MessageID),
		Meta:        meta,
	})
	if err != nil {
		t.logger.Error("could not dispatch investigation", "err", err)
	}
}

func (t *Telegram) handleReply(ctx context.Context, msg *tgbotapi.Message) {
	parent := msg.ReplyToMessage
	eventTime := time.Unix(int64(parent.Date), 0).UTC()

	meta, _ := json.Marshal(map[string]any{"rawPayload": msg})
	req, err := t.dispatcher.Continue(ctx, dispatch.ThreadReply{
		Origin:      t.Name(),
		ChannelID:   strconv.FormatInt(msg.Chat.ID, 10),
		CallerToken: t.token,
		Text:        strings.TrimSpace(msg.Text),
		ThreadKey:   strconv.Itoa(parent.MessageID),
		EventTime:   eventTime,
		Meta:        meta,
	})
	if err != nil {
		t.logger.Error("could not continue investigation", "err", err)
		return
	}

	t.sendPlain(msg.Chat.ID, parent.MessageID, dispatch.WindowDescription(req.Window))
}

// PostThreadReply implements domain.Poster. Blocks flatten to plain text
// since Telegram has no structured message segments.
func (t *Telegram) PostThreadReply(_ context.Context, channel, threadKey string, blocks []domain.Block, text string) error {
	chatID, err := strconv.ParseInt(channel, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid telegram chat id %q: %w", channel, err)
	}
	replyTo, err := strconv.Atoi(threadKey)
	if err != nil {
		return fmt.Errorf("invalid telegram thread key %q: %w", threadKey, err)
	}

	body := FlattenBlocks(blocks)
	if body == "" {
		body = text
	}
	if body == "" {
		return nil
	}

	out := tgbotapi.NewMessage(chatID, body)
	out.ReplyToMessageID = replyTo
	if _, err := t.bot.Send(out); err != nil {
		return fmt.Errorf("telegram send to %d: %w", chatID, err)
	}
	return nil
}

func (t *Telegram) sendPlain(chatID int64, replyTo int, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if replyTo != 0 {
		msg.ReplyToMessageID = replyTo
	}
	if _, err := t.bot.Send(msg); err != nil {
		t.logger.Error("telegram send failed", "chat", chatID, "err", err)
	}
}

// FlattenBlocks renders structured blocks as plain text, fields as
// label/value pairs on one line each.
func FlattenBlocks(blocks []domain.Block) string {
	var parts []string
	for _, b := range blocks {
		var lines []string
		if b.Text != "" {
			lines = append(lines, b.Text)
		}
		for i := 0; i+1 < len(b.Fields); i += 2 {
			lines = append(lines, b.Fields[i]+": "+b.Fields[i+1])
		}
		if len(lines) > 0 {
			parts = append(parts, strings.Join(lines, "\n"))
		}
	}
	return strings.Join(parts, "\n\n")
}
