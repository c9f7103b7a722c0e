package logger

import (
	"io"
	"os"
	"strings"

	"repair-marketplace/internal/config"

	"github.com/sirupsen/logrus"
)

// Logger обёртка над logrus.Logger
type Logger struct {
	*logrus.Logger
}

// New создает логгер по конфигурации
func New(cfg *config.LoggerConfig) *Logger {
	log := logrus.New()

	level, err := logrus.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	if strings.ToLower(cfg.Format) == "text" {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		log.SetFormatter(&logrus.JSONFormatter{})
	}

	log.SetOutput(os.Stdout)
	if cfg.File != "" {
		file, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			log.WithError(err).Warn("Failed to open log file, using stdout")
		} else {
			log.SetOutput(io.MultiWriter(os.Stdout, file))
		}
	}

	return &Logger{Logger: log}
}

// Nop возвращает логгер, который ничего не пишет
func Nop() *Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return &Logger{Logger: log}
}
