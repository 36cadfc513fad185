package logger

import (
	"os"

	"github.com/rs/zerolog"
)

// Nop until Init runs so library code can log unconditionally.
var log = zerolog.Nop()

func Init(env string) {
	log = zerolog.New(os.Stdout).With().Timestamp().Logger()

	switch env {
	case "production":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	log.Info().Msg("logger initialized")
}

func Debug(msg string, fields map[string]any) {
	log.Debug().Fields(fields).Msg(msg)
}

func Info(msg string, fields map[string]any) {
	log.Info().Fields(fields).Msg(msg)
}

func Warn(msg string, fields map[string]any) {
	log.Warn().Fields(fields).Msg(msg)
}

func Error(msg string, fields map[string]any) {
	log.Error().Fields(fields).Msg(msg)
}

func Fatal(msg string, fields map[string]any) {
	log.Fatal().Fields(fields).Msg(msg)
}
