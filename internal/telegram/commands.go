package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/memohai/mediadrop/internal/delivery"
	"github.com/memohai/mediadrop/internal/logger"
	"github.com/memohai/mediadrop/internal/media"
)

type command struct {
	name        string
	description string
}

// publicCommands are advertised to every user; owner commands are not.
var publicCommands = []command{
	{"help", "Show this message"},
	{"video", "Download a video via the provided link"},
	{"audio", "Download audio via the provided link"},
}

func botCommands() []tgbotapi.BotCommand {
	out := make([]tgbotapi.BotCommand, 0, len(publicCommands))
	for _, c := range publicCommands {
		out = append(out, tgbotapi.BotCommand{Command: c.name, Description: c.description})
	}
	return out
}

// HelpText lists the public commands.
func HelpText() string {
	var b strings.Builder
	b.WriteString("Available commands:\n\n")
	for _, c := range publicCommands {
		fmt.Fprintf(&b, "/%s - %s\n", c.name, c.description)
	}
	return b.String()
}

// parseCommand extracts the command name and its arguments. Commands
// addressed to another bot ("/video@other_bot") are rejected.
func (b *Bot) parseCommand(msg *tgbotapi.Message) (string, string, bool) {
	if msg == nil || !msg.IsCommand() {
		return "", "", false
	}
	name, target, addressed := strings.Cut(msg.CommandWithAt(), "@")
	if addressed && !strings.EqualFold(target, b.username) {
		return "", "", false
	}
	return name, msg.CommandArguments(), true
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) error {
	msg := update.Message
	if msg == nil || msg.Chat == nil {
		return nil
	}
	if msg.From != nil && b.stats != nil {
		b.stats.RecordBotUser(msg.From.ID)
	}
	name, args, ok := b.parseCommand(msg)
	if !ok {
		return nil
	}
	chatID := msg.Chat.ID
	b.logger.Info("command received",
		slog.Int64("chat_id", chatID),
		slog.String("command", name),
		slog.String("args", args),
	)

	owner := chatID == b.ownerID
	switch {
	case name == "resetstats" && owner:
		if b.stats != nil {
			b.stats.Reset()
		}
		return b.sendStats(ctx, chatID)
	case name == "stats" && owner:
		return b.sendStats(ctx, chatID)
	case name == "logs" && owner:
		return b.sendLogs(ctx, chatID)
	case name == "loglevel" && owner:
		return b.setLogLevel(ctx, chatID, args)
	case name == "help":
		_, err := b.SendText(ctx, chatID, 0, HelpText())
		return err
	case name == "video":
		return b.deliver(ctx, msg, args, media.Video)
	case name == "audio":
		return b.deliver(ctx, msg, args, media.Audio)
	default:
		return nil
	}
}

func (b *Bot) deliver(ctx context.Context, msg *tgbotapi.Message, link string, kind media.Kind) error {
	err := b.deliverer.Deliver(ctx, delivery.Request{
		ChatID:  msg.Chat.ID,
		ReplyTo: msg.MessageID,
		Link:    link,
		Kind:    kind,
	})
	if media.KindOf(err) != nil {
		// Already reported to the user.
		return nil
	}
	return err
}

func (b *Bot) sendStats(ctx context.Context, chatID int64) error {
	text := "stats are disabled"
	if b.stats != nil {
		text = b.stats.String()
	}
	_, err := b.SendText(ctx, chatID, 0, text)
	return err
}

func (b *Bot) sendLogs(ctx context.Context, chatID int64) error {
	var entries []string
	if b.ring != nil {
		entries = b.ring.Drain()
	}
	if len(entries) == 0 {
		_, err := b.SendText(ctx, chatID, 0, "No logs available")
		return err
	}
	for _, chunk := range logger.Batch(entries, logger.MaxEntryLen) {
		if _, err := b.SendText(ctx, chatID, 0, chunk); err != nil {
			return err
		}
	}
	return nil
}

func (b *Bot) setLogLevel(ctx context.Context, chatID int64, args string) error {
	level, err := logger.ParseLevel(args)
	if err != nil {
		_, sendErr := b.SendText(ctx, chatID, 0, "Error: "+err.Error())
		return sendErr
	}
	if b.ring != nil {
		b.ring.SetLevel(level)
	}
	_, err = b.SendText(ctx, chatID, 0, "Max log level is now "+level.String())
	return err
}
