package telegram

import (
	"fmt"
	"log/slog"
	"strings"
)

// slogBotLogger adapts slog.Logger to tgbotapi.BotLogger so library logs go through slog.
// The library only logs in debug mode, so records are kept at debug level
// unless they report a failure.
type slogBotLogger struct {
	log *slog.Logger
}

func (s *slogBotLogger) Println(v ...any) {
	s.emit(fmt.Sprint(v...))
}

func (s *slogBotLogger) Printf(format string, v ...any) {
	s.emit(fmt.Sprintf(format, v...))
}

func (s *slogBotLogger) emit(msg string) {
	msg = strings.TrimSpace(msg)
	if strings.Contains(strings.ToLower(msg), "fail") || strings.Contains(strings.ToLower(msg), "error") {
		s.log.Warn(msg)
		return
	}
	s.log.Debug(msg)
}
