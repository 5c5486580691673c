package genshinpresenter

import (
	"context"

	"github.com/kapu/genshin-telegram-bot/internal/tgram"
)

// SendTextFunc delivers a plain text message to a chat.
type SendTextFunc func(ctx context.Context, chatID int64, text string) error

// SendMarkdownFunc delivers a MarkdownV2 message, optionally with a keyboard.
type SendMarkdownFunc func(ctx context.Context, chatID int64, text string, kb *tgram.InlineKeyboardMarkup) error

// SendPhotoFunc delivers a PNG with a caption.
type SendPhotoFunc func(ctx context.Context, chatID int64, png []byte, caption string) error

// EditTextFunc rewrites an existing message in place.
type EditTextFunc func(ctx context.Context, chatID int64, messageID int64, text string, kb *tgram.InlineKeyboardMarkup, markdown bool) error

// AckFunc acknowledges a callback query so the client stops its spinner.
type AckFunc func(ctx context.Context, callbackID string) error

// Presenter delivers formatted replies through injected send functions so
// the dispatcher never touches the connector client directly.
type Presenter struct {
	sendText     SendTextFunc
	sendMarkdown SendMarkdownFunc
	sendPhoto    SendPhotoFunc
	editText     EditTextFunc
	ack          AckFunc
}

func NewPresenter(text SendTextFunc, markdown SendMarkdownFunc, photo SendPhotoFunc, edit EditTextFunc, ack AckFunc) *Presenter {
	return &Presenter{sendText: text, sendMarkdown: markdown, sendPhoto: photo, editText: edit, ack: ack}
}

// Deliver sends one reply as exactly one connector message.
func (p *Presenter) Deliver(ctx context.Context, chatID int64, r Reply) error {
	if len(r.PhotoPNG) > 0 {
		return p.sendPhoto(ctx, chatID, r.PhotoPNG, r.Caption)
	}
	// keyboard replies are always built as MarkdownV2 by the formatter,
	// so plain text never reaches a parse-mode send
	if r.Markdown {
		return p.sendMarkdown(ctx, chatID, r.Text, r.Keyboard)
	}
	return p.sendText(ctx, chatID, r.Text)
}

// Edit replaces a previously sent message with a new reply body. Used by
// callback handlers that page between views.
func (p *Presenter) Edit(ctx context.Context, chatID, messageID int64, r Reply) error {
	return p.editText(ctx, chatID, messageID, r.Text, r.Keyboard, r.Markdown)
}

// Ack confirms receipt of a callback query.
func (p *Presenter) Ack(ctx context.Context, callbackID string) error {
	return p.ack(ctx, callbackID)
}
