package logging

import (
	"io"
	"os"
	"strings"

	"emperror.dev/errors"
	log "github.com/sirupsen/logrus"
)

// Setup configures the package-level logrus logger. When file is non-empty the
// log goes there; the returned closer must be called on shutdown.
func Setup(level, format, file string) (io.Closer, error) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nil, errors.WrapIf(err, "invalid log level")
	}
	log.SetLevel(lvl)

	switch strings.ToLower(format) {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	case "", "text":
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	default:
		return nil, errors.NewWithDetails("invalid log format", "format", format)
	}

	if file == "" {
		log.SetOutput(os.Stderr)
		return io.NopCloser(nil), nil
	}
	f, err := os.OpenFile(file, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, errors.WrapIfWithDetails(err, "open log file", "file", file)
	}
	log.SetOutput(f)
	return f, nil
}
