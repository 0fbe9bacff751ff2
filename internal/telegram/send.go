package telegram

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/memohai/mediadrop/internal/media"
)

var errUnexpectedMedia = errors.New("telegram returned an unexpected media kind")

// SendText posts text to chatID, replying to replyTo when it is set, and
// returns the new message id.
func (b *Bot) SendText(ctx context.Context, chatID int64, replyTo int, text string) (int, error) {
	message := tgbotapi.NewMessage(chatID, text)
	message.DisableWebPagePreview = true
	if replyTo > 0 {
		message.ReplyToMessageID = replyTo
	}
	sent, err := b.send(ctx, message)
	if err != nil {
		return 0, err
	}
	return sent.MessageID, nil
}

// EditText replaces the text of a message the bot sent earlier.
func (b *Bot) EditText(ctx context.Context, chatID int64, messageID int, text string) error {
	_, err := b.send(ctx, tgbotapi.NewEditMessageText(chatID, messageID, text))
	return err
}

// Delete removes a message the bot sent earlier.
func (b *Bot) Delete(ctx context.Context, chatID int64, messageID int) error {
	_, err := b.request(ctx, tgbotapi.NewDeleteMessage(chatID, messageID))
	return err
}

// Upload streams h to chatID as audio or video and returns the file id
// Telegram assigned to it.
func (b *Bot) Upload(ctx context.Context, chatID int64, replyTo int, h *media.Handle) (string, error) {
	file := tgbotapi.FileReader{Name: h.TakeFilename(), Reader: h}
	sent, err := b.send(ctx, b.mediaConfig(chatID, replyTo, h.Kind, file))
	if err != nil {
		return "", err
	}
	switch {
	case h.Kind == media.Audio && sent.Audio != nil:
		return sent.Audio.FileID, nil
	case h.Kind == media.Video && sent.Video != nil:
		return sent.Video.FileID, nil
	default:
		return "", fmt.Errorf("%w: wanted %s", errUnexpectedMedia, h.Kind)
	}
}

// SendCached re-sends a previous upload by its file id.
func (b *Bot) SendCached(ctx context.Context, chatID int64, replyTo int, kind media.Kind, id string) error {
	_, err := b.send(ctx, b.mediaConfig(chatID, replyTo, kind, tgbotapi.FileID(id)))
	return err
}

func (b *Bot) mediaConfig(chatID int64, replyTo int, kind media.Kind, file tgbotapi.RequestFileData) tgbotapi.Chattable {
	if kind == media.Audio {
		audio := tgbotapi.NewAudio(chatID, file)
		audio.Caption = b.caption
		if replyTo > 0 {
			audio.ReplyToMessageID = replyTo
		}
		return audio
	}
	video := tgbotapi.NewVideo(chatID, file)
	video.Caption = b.caption
	if replyTo > 0 {
		video.ReplyToMessageID = replyTo
	}
	return video
}
