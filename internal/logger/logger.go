package logger

import (
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

var Log *logrus.Logger

func init() {
	Log = logrus.New()

	// Set output to stdout
	Log.SetOutput(os.Stdout)

	// Set log level from environment or default to Info
	SetLevel(os.Getenv("LOG_LEVEL"))

	// Use JSON formatter for structured logs
	Log.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02 15:04:05",
	})
}

// SetLevel applies a textual log level; unknown values fall back to info.
// Called again after .env has been loaded, since init runs before that.
func SetLevel(level string) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		Log.SetLevel(logrus.DebugLevel)
	case "info":
		Log.SetLevel(logrus.InfoLevel)
	case "warn", "warning":
		Log.SetLevel(logrus.WarnLevel)
	case "error":
		Log.SetLevel(logrus.ErrorLevel)
	default:
		Log.SetLevel(logrus.InfoLevel)
	}
}

// FromRequest returns an entry carrying the request id assigned by the router.
func FromRequest(r *http.Request) *logrus.Entry {
	entry := logrus.NewEntry(Log)
	if r == nil {
		return entry
	}
	if id := middleware.GetReqID(r.Context()); id != "" {
		entry = entry.WithField("request_id", id)
	}
	return entry.WithFields(logrus.Fields{
		"method": r.Method,
		"path":   r.URL.Path,
	})
}
