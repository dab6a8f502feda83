package logging

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

// Decode lets envconfig reject unknown formats at startup.
func (f *LogFormat) Decode(value string) error {
	switch LogFormat(value) {
	case LogFormatText, LogFormatJSON:
		*f = LogFormat(value)
		return nil
	default:
		return fmt.Errorf("unsupported log format %q (must be 'text' or 'json')", value)
	}
}

func NewLogger(format LogFormat) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)

	switch format {
	case LogFormatJSON:
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	if lvl, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		logger.SetLevel(lvl)
	}

	return logger
}
