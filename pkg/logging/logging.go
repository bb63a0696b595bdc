package logging

import (
	"io"
	"strings"

	"github.com/sirupsen/logrus"
)

// New returns a JSON logger at level. Unknown levels fall back to info.
func New(level string, out io.Writer) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	if out != nil {
		logger.SetOutput(out)
	}
	lvl, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)

	// Init helpers in db and cache use the package-level logger.
	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetLevel(lvl)
	if out != nil {
		logrus.SetOutput(out)
	}
	return logger
}
