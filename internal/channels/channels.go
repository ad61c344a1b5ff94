// Package channels defines the transport-neutral surface the bot
// core talks to. The core never imports a concrete transport; it
// sends through a NotificationSink and receives Incoming values.
package channels

import "context"

// MessageRef identifies a sent message so it can be edited later.
type MessageRef struct {
	ChatID    int64
	MessageID int
}

// Button is one inline-keyboard button: visible text plus the
// callback payload routed back to the command handler.
type Button struct {
	Text string
	Data string
}

// Incoming is one user message normalized for the core.
type Incoming struct {
	Text string

	// PhotoFileID is set when the message carries a photo; the
	// transport can download it via DownloadAttachment.
	PhotoFileID string

	// MessageID of the original message, for edits.
	MessageID int
}

// Callback is one inline-keyboard press.
type Callback struct {
	Data      string
	MessageID int
}

// NotificationSink delivers bot output to the chat. Implementations
// own formatting fallbacks; callers hand over plain or markdown text
// and never deal with transport errors beyond the returned error.
type NotificationSink interface {
	Send(ctx context.Context, text string) (MessageRef, error)
	SendWithKeyboard(ctx context.Context, text string, keyboard [][]Button) (MessageRef, error)
	Edit(ctx context.Context, ref MessageRef, text string) error
	EditWithKeyboard(ctx context.Context, ref MessageRef, text string, keyboard [][]Button) error

	// DownloadAttachment fetches a file by transport file id,
	// returning the bytes and mime type.
	DownloadAttachment(ctx context.Context, fileID string) ([]byte, string, error)

	// IndicateActivity starts a best-effort typing indicator and
	// returns a stop function. Always safe to call the stop func.
	IndicateActivity(ctx context.Context) func()
}
