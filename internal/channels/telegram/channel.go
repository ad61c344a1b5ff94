// Package telegram adapts the bot core to Telegram via the telego
// library: long polling for updates, an admin-id gate, and a
// notification sink with formatting fallbacks.
package telegram

import (
	"context"
	"fmt"

	"github.com/mymmrac/telego"

	"github.com/aatumaykin/skillbot/internal/channels"
	"github.com/aatumaykin/skillbot/internal/config"
	"github.com/aatumaykin/skillbot/internal/logger"
	"github.com/aatumaykin/skillbot/internal/messages"
)

// Handlers receive gated updates from the channel. Both are called
// from the polling goroutine, so one message is fully handled before
// the next is looked at.
type Handlers struct {
	OnMessage  func(ctx context.Context, in channels.Incoming)
	OnCallback func(ctx context.Context, cb channels.Callback)
}

// Channel is the Telegram transport: one bot, one admin chat.
type Channel struct {
	cfg      config.TelegramConfig
	logger   *logger.Logger
	handlers Handlers

	bot  *telego.Bot
	sink *Sink
}

func New(cfg config.TelegramConfig, handlers Handlers, log *logger.Logger) *Channel {
	return &Channel{
		cfg:      cfg,
		logger:   log,
		handlers: handlers,
	}
}

// Sink returns the outbound side. Valid after Start.
func (c *Channel) Sink() *Sink {
	return c.sink
}

// Start connects the bot and begins long polling. It blocks until
// ctx is cancelled or polling fails to start.
func (c *Channel) Start(ctx context.Context) error {
	if c.cfg.Token == "" {
		return fmt.Errorf("telegram token is required")
	}
	if c.cfg.AdminID == 0 {
		return fmt.Errorf("telegram admin_id is required")
	}

	bot, err := telego.NewBot(c.cfg.Token)
	if err != nil {
		return fmt.Errorf("failed to initialize telegram bot: %w", err)
	}
	c.bot = bot
	c.sink = NewSink(bot, c.cfg.AdminID, c.cfg.SendTimeoutSeconds, c.logger)

	botUser, err := bot.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("failed to get bot info: %w", err)
	}

	c.logger.Info("Telegram bot connected",
		logger.Field{Key: "bot_id", Value: botUser.ID},
		logger.Field{Key: "username", Value: botUser.Username})

	if err := c.registerCommands(ctx); err != nil {
		c.logger.Error("Failed to register bot commands", err)
	}

	updates, err := bot.UpdatesViaLongPolling(ctx, &telego.GetUpdatesParams{Timeout: 30})
	if err != nil {
		return fmt.Errorf("failed to start long polling: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Telegram polling stopped")
			return nil
		case update, ok := <-updates:
			if !ok {
				c.logger.Info("Telegram updates channel closed")
				return nil
			}
			c.handleUpdate(ctx, update)
		}
	}
}

func (c *Channel) registerCommands(ctx context.Context) error {
	return c.bot.SetMyCommands(ctx, &telego.SetMyCommandsParams{
		Commands: []telego.BotCommand{
			{Command: "help", Description: "Command list"},
			{Command: "model", Description: "Switch the LLM provider"},
			{Command: "skills", Description: "List and toggle skills"},
			{Command: "status", Description: "Bot status"},
			{Command: "jobs", Description: "Scheduled jobs"},
			{Command: "teach", Description: "Teach a new skill"},
			{Command: "reload", Description: "Reload skills from disk"},
			{Command: "clear", Description: "Clear conversation history"},
		},
	})
}

// handleUpdate gates and dispatches one update. Messages are handled
// synchronously so the single conversation stays ordered.
func (c *Channel) handleUpdate(ctx context.Context, update telego.Update) {
	if update.CallbackQuery != nil {
		c.handleCallback(ctx, update.CallbackQuery)
		return
	}

	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}

	if msg.From.ID != c.cfg.AdminID {
		c.logger.Warn("Message from unauthorized user",
			logger.Field{Key: "user_id", Value: msg.From.ID},
			logger.Field{Key: "username", Value: msg.From.Username})

		_, err := c.bot.SendMessage(ctx, &telego.SendMessageParams{
			ChatID: telego.ChatID{ID: msg.Chat.ID},
			Text:   messages.Unauthorized,
		})
		if err != nil {
			c.logger.Debug("Failed to notify unauthorized user",
				logger.Field{Key: "error", Value: err.Error()})
		}
		return
	}

	in := channels.Incoming{
		Text:      msg.Text,
		MessageID: msg.MessageID,
	}

	if len(msg.Photo) > 0 {
		// The last size is the largest.
		in.PhotoFileID = msg.Photo[len(msg.Photo)-1].FileID
		if in.Text == "" {
			in.Text = msg.Caption
		}
	}

	if in.Text == "" && in.PhotoFileID == "" {
		return
	}

	if c.handlers.OnMessage != nil {
		c.handlers.OnMessage(ctx, in)
	}
}

func (c *Channel) handleCallback(ctx context.Context, cq *telego.CallbackQuery) {
	err := c.bot.AnswerCallbackQuery(ctx, &telego.AnswerCallbackQueryParams{
		CallbackQueryID: cq.ID,
	})
	if err != nil {
		c.logger.Debug("Failed to answer callback query",
			logger.Field{Key: "error", Value: err.Error()})
	}

	if cq.From.ID != c.cfg.AdminID {
		c.logger.Warn("Callback from unauthorized user",
			logger.Field{Key: "user_id", Value: cq.From.ID})
		return
	}

	cb := channels.Callback{Data: cq.Data}
	if cq.Message != nil {
		cb.MessageID = cq.Message.GetMessageID()
	}

	if c.handlers.OnCallback != nil {
		c.handlers.OnCallback(ctx, cb)
	}
}
