package nandprog

import (
	"io"

	"github.com/sirupsen/logrus"
)

// The package logger. Discards everything until SetLogger is called.
var pkgLog logrus.FieldLogger = nullLogger()

func nullLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// SetLogger sets the logger used internally by the package. Passing nil
// restores the discarding logger.
func SetLogger(l logrus.FieldLogger) {
	if l == nil {
		l = nullLogger()
	}
	pkgLog = l
}
