// Package logger defines the logging interface the sync engine components
// share, plus a zerolog-backed default implementation.
package logger

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Logger accepts a message followed by alternating key/value pairs.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
	Info(msg string, args ...any)
	Debug(msg string, args ...any)
}

// ZerologLogger adapts a zerolog.Logger to the Logger interface.
type ZerologLogger struct {
	logger zerolog.Logger
}

// New creates a ZerologLogger writing structured JSON to w.
// A nil writer defaults to stderr.
func New(w io.Writer) *ZerologLogger {
	if w == nil {
		w = os.Stderr
	}
	l := zerolog.New(w).With().Timestamp().Logger()
	return &ZerologLogger{logger: l}
}

// FromZerolog wraps an already configured zerolog.Logger.
func FromZerolog(l zerolog.Logger) *ZerologLogger {
	return &ZerologLogger{logger: l}
}

func (z *ZerologLogger) Error(msg string, args ...any) {
	z.emit(z.logger.Error(), msg, args)
}

func (z *ZerologLogger) Warn(msg string, args ...any) {
	z.emit(z.logger.Warn(), msg, args)
}

func (z *ZerologLogger) Info(msg string, args ...any) {
	z.emit(z.logger.Info(), msg, args)
}

func (z *ZerologLogger) Debug(msg string, args ...any) {
	z.emit(z.logger.Debug(), msg, args)
}

func (z *ZerologLogger) emit(ev *zerolog.Event, msg string, args []any) {
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		ev = ev.Interface(key, args[i+1])
	}
	ev.Msg(msg)
}

// Nop discards everything. Useful as a test default.
func Nop() *ZerologLogger {
	return &ZerologLogger{logger: zerolog.Nop()}
}
