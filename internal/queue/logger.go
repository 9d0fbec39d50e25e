package queue

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger routes asynq's own logging through zerolog.
type Logger struct {
	l zerolog.Logger
}

func NewLogger() *Logger {
	return &Logger{l: log.With().Str("component", "asynq").Logger()}
}

func (l *Logger) Debug(args ...interface{}) { l.l.Debug().Msg(fmt.Sprint(args...)) }
func (l *Logger) Info(args ...interface{})  { l.l.Info().Msg(fmt.Sprint(args...)) }
func (l *Logger) Warn(args ...interface{})  { l.l.Warn().Msg(fmt.Sprint(args...)) }
func (l *Logger) Error(args ...interface{}) { l.l.Error().Msg(fmt.Sprint(args...)) }
func (l *Logger) Fatal(args ...interface{}) { l.l.Fatal().Msg(fmt.Sprint(args...)) }
