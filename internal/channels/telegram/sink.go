package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mymmrac/telego"
	telegoapi "github.com/mymmrac/telego/telegoapi"

	"github.com/aatumaykin/skillbot/internal/channels"
	"github.com/aatumaykin/skillbot/internal/logger"
)

// typingInterval refreshes the chat action; Telegram drops the
// indicator after about five seconds.
const typingInterval = 3 * time.Second

// Sink delivers messages to the admin chat. It picks a parse mode
// from the content and degrades HTML to plain text when Telegram
// rejects the entities, so a formatting mishap never loses an answer.
type Sink struct {
	bot    *telego.Bot
	chatID int64

	timeout time.Duration
	logger  *logger.Logger
	client  *http.Client
}

func NewSink(bot *telego.Bot, chatID int64, sendTimeoutSeconds int, log *logger.Logger) *Sink {
	timeout := time.Duration(sendTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Sink{
		bot:     bot,
		chatID:  chatID,
		timeout: timeout,
		logger:  log,
		client:  &http.Client{Timeout: timeout},
	}
}

// Send delivers text to the admin chat.
func (s *Sink) Send(ctx context.Context, text string) (channels.MessageRef, error) {
	return s.send(ctx, text, nil)
}

// SendWithKeyboard delivers text with an inline keyboard attached.
func (s *Sink) SendWithKeyboard(ctx context.Context, text string, keyboard [][]channels.Button) (channels.MessageRef, error) {
	return s.send(ctx, text, buildKeyboard(keyboard))
}

func (s *Sink) send(ctx context.Context, text string, markup *telego.InlineKeyboardMarkup) (channels.MessageRef, error) {
	sendCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	params := &telego.SendMessageParams{
		ChatID:      telego.ChatID{ID: s.chatID},
		ReplyMarkup: markup,
	}
	params.Text, params.ParseMode = renderOutgoing(text)

	msg, err := s.bot.SendMessage(sendCtx, params)
	if err != nil && isEntityError(err) {
		s.logger.Warn("Telegram rejected entities, falling back to plain text",
			logger.Field{Key: "error", Value: err.Error()})

		params.Text = StripFormatting(text)
		params.ParseMode = ""
		msg, err = s.bot.SendMessage(sendCtx, params)
	}
	if err != nil {
		return channels.MessageRef{}, fmt.Errorf("failed to send message: %w", err)
	}

	return channels.MessageRef{ChatID: msg.Chat.ID, MessageID: msg.MessageID}, nil
}

// Edit replaces the text of a previously sent message.
func (s *Sink) Edit(ctx context.Context, ref channels.MessageRef, text string) error {
	return s.edit(ctx, ref, text, nil)
}

// EditWithKeyboard replaces text and keyboard of a sent message.
func (s *Sink) EditWithKeyboard(ctx context.Context, ref channels.MessageRef, text string, keyboard [][]channels.Button) error {
	return s.edit(ctx, ref, text, buildKeyboard(keyboard))
}

func (s *Sink) edit(ctx context.Context, ref channels.MessageRef, text string, markup *telego.InlineKeyboardMarkup) error {
	sendCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	params := &telego.EditMessageTextParams{
		ChatID:      telego.ChatID{ID: ref.ChatID},
		MessageID:   ref.MessageID,
		ReplyMarkup: markup,
	}
	params.Text, params.ParseMode = renderOutgoing(text)

	_, err := s.bot.EditMessageText(sendCtx, params)
	if err != nil && isEntityError(err) {
		params.Text = StripFormatting(text)
		params.ParseMode = ""
		_, err = s.bot.EditMessageText(sendCtx, params)
	}
	if err != nil {
		return fmt.Errorf("failed to edit message: %w", err)
	}

	return nil
}

// DownloadAttachment fetches a file by Telegram file id.
func (s *Sink) DownloadAttachment(ctx context.Context, fileID string) ([]byte, string, error) {
	file, err := s.bot.GetFile(ctx, &telego.GetFileParams{FileID: fileID})
	if err != nil {
		return nil, "", fmt.Errorf("failed to resolve file: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.bot.FileDownloadURL(file.FilePath), nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create download request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("file download returned %s", resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read file body: %w", err)
	}

	return data, http.DetectContentType(data), nil
}

// IndicateActivity shows the typing indicator until the returned
// stop function is called. Failures are logged and ignored.
func (s *Sink) IndicateActivity(ctx context.Context) func() {
	typingCtx, cancel := context.WithCancel(ctx)

	go func() {
		ticker := time.NewTicker(typingInterval)
		defer ticker.Stop()

		s.sendTyping(typingCtx)
		for {
			select {
			case <-typingCtx.Done():
				return
			case <-ticker.C:
				s.sendTyping(typingCtx)
			}
		}
	}()

	return cancel
}

func (s *Sink) sendTyping(ctx context.Context) {
	err := s.bot.SendChatAction(ctx, &telego.SendChatActionParams{
		ChatID: telego.ChatID{ID: s.chatID},
		Action: telego.ChatActionTyping,
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Debug("Failed to send typing action",
			logger.Field{Key: "error", Value: err.Error()})
	}
}

// renderOutgoing picks text and parse mode from the content.
func renderOutgoing(text string) (string, string) {
	switch DetectContentType(text) {
	case ContentTypeCode, ContentTypeMarkdown:
		return MarkdownToHTML(text), telego.ModeHTML
	default:
		return text, ""
	}
}

// isEntityError reports a 400 caused by unparseable message entities.
func isEntityError(err error) bool {
	var telErr *telegoapi.Error
	if !errors.As(err, &telErr) || telErr.ErrorCode != 400 {
		return false
	}

	desc := telErr.Description
	return strings.Contains(desc, "can't parse entities") ||
		strings.Contains(desc, "Can't find end of the entity") ||
		strings.Contains(desc, "wrong number of entities") ||
		strings.Contains(desc, "specified new message entity")
}

// buildKeyboard converts neutral buttons to the telego markup.
func buildKeyboard(keyboard [][]channels.Button) *telego.InlineKeyboardMarkup {
	if len(keyboard) == 0 {
		return nil
	}

	markup := &telego.InlineKeyboardMarkup{
		InlineKeyboard: make([][]telego.InlineKeyboardButton, len(keyboard)),
	}
	for i, row := range keyboard {
		buttons := make([]telego.InlineKeyboardButton, len(row))
		for j, b := range row {
			buttons[j] = telego.InlineKeyboardButton{Text: b.Text, CallbackData: b.Data}
		}
		markup.InlineKeyboard[i] = buttons
	}

	return markup
}
