package utils

import (
	"os"

	"github.com/sirupsen/logrus"
)

// timestampLayout keeps log timestamps sortable and millisecond-precise
// across both formatters.
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Logger is the process-wide logger. Components grab it through GetLogger
// rather than holding their own instances so level and output changes
// apply everywhere at once.
var Logger *logrus.Logger

// InitLogger configures the global logger from the logging section of the
// config. format is "json" or "text"; output "file" routes to the given
// path, anything else goes to stdout.
func InitLogger(level, format, output, file string) error {
	l := logrus.New()

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		return NewAppError(ErrCodeConfiguration, "invalid log level", level)
	}
	l.SetLevel(parsed)

	switch format {
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: timestampLayout})
	default:
		l.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: timestampLayout,
		})
	}

	if output == "file" && file != "" {
		f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return NewAppError(ErrCodeConfiguration, "failed to open log file", err.Error())
		}
		l.SetOutput(f)
	} else {
		l.SetOutput(os.Stdout)
	}

	Logger = l
	return nil
}

// GetLogger returns the global logger, initializing a JSON stdout logger
// at info level when InitLogger has not run yet.
func GetLogger() *logrus.Logger {
	if Logger == nil {
		InitLogger("info", "json", "stdout", "")
	}
	return Logger
}
