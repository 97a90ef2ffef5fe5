package logger

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

var Logger *logrus.Logger

func init() {
	Logger = logrus.New()
	Logger.SetOutput(os.Stdout)
	Logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	// Default level
	Logger.SetLevel(logrus.InfoLevel)

	// Override from env, e.g., LOG_LEVEL=debug
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		if parsedLevel, err := logrus.ParseLevel(strings.ToLower(level)); err == nil {
			Logger.SetLevel(parsedLevel)
		}
	}
}

// SetLevel overrides the log level, e.g. from configuration. Unknown values
// are ignored and the current level kept.
func SetLevel(level string) {
	if parsedLevel, err := logrus.ParseLevel(strings.ToLower(level)); err == nil {
		Logger.SetLevel(parsedLevel)
	}
}

// WithComponent adds a component field to the logger
func WithComponent(component string) *logrus.Entry {
	return Logger.WithField("component", component)
}

// WithDataset adds component and dataset fields, the common shape for
// per-dataset log lines across the acquisition layer.
func WithDataset(component, dataset string) *logrus.Entry {
	return Logger.WithFields(logrus.Fields{
		"component": component,
		"dataset":   dataset,
	})
}
