// Package logrus adapts a *logrus.Entry to batchcache.Logger.
package logrus

import (
	"github.com/sirupsen/logrus"
	"github.com/unkn0wn-root/batchcache"
)

var _ batchcache.Logger = Logger{}

type Logger struct{ E *logrus.Entry }

// New wraps l; component is attached to every entry when non-empty.
func New(l *logrus.Logger, component string) Logger {
	e := logrus.NewEntry(l)
	if component != "" {
		e = e.WithField("component", component)
	}
	return Logger{E: e}
}

func (l Logger) Debug(msg string, f batchcache.Fields) { l.with(f).Debug(msg) }
func (l Logger) Info(msg string, f batchcache.Fields)  { l.with(f).Info(msg) }
func (l Logger) Warn(msg string, f batchcache.Fields)  { l.with(f).Warn(msg) }
func (l Logger) Error(msg string, f batchcache.Fields) { l.with(f).Error(msg) }

func (l Logger) with(f batchcache.Fields) *logrus.Entry {
	if len(f) == 0 {
		return l.E
	}
	if err, ok := f["err"].(error); ok {
		rest := make(logrus.Fields, len(f))
		for k, v := range f {
			if k != "err" {
				rest[k] = v
			}
		}
		return l.E.WithError(err).WithFields(rest)
	}
	return l.E.WithFields(logrus.Fields(f))
}
