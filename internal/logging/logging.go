package logging

import (
	"io"

	logrusr "github.com/bombsimon/logrusr/v3"
	"github.com/go-logr/logr"
	"github.com/sirupsen/logrus"
)

// New returns a logr.Logger backed by logrus writing text lines to w.
// Info and V(0) messages show by default, verbose enables V(1) and quiet
// keeps only errors.
func New(w io.Writer, verbose, quiet bool) logr.Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetFormatter(&logrus.TextFormatter{
		DisableTimestamp: !verbose,
	})

	// logrusr maps V(n) to logrus level Info+n
	switch {
	case quiet:
		l.SetLevel(logrus.ErrorLevel)
	case verbose:
		l.SetLevel(logrus.TraceLevel)
	default:
		l.SetLevel(logrus.InfoLevel)
	}

	return logrusr.New(l)
}
