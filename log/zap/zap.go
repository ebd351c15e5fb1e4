// Package zap adapts a *zap.Logger to batchcache.Logger.
package zap

import (
	"sort"

	"github.com/unkn0wn-root/batchcache"
	"go.uber.org/zap"
)

var _ batchcache.Logger = Logger{}

type Logger struct{ L *zap.Logger }

func New(l *zap.Logger) Logger {
	if l == nil {
		l = zap.NewNop()
	}
	return Logger{L: l.WithOptions(zap.AddCallerSkip(1))}
}

func (z Logger) Debug(msg string, f batchcache.Fields) { z.L.Debug(msg, fields(f)...) }
func (z Logger) Info(msg string, f batchcache.Fields)  { z.L.Info(msg, fields(f)...) }
func (z Logger) Warn(msg string, f batchcache.Fields)  { z.L.Warn(msg, fields(f)...) }
func (z Logger) Error(msg string, f batchcache.Fields) { z.L.Error(msg, fields(f)...) }

// fields sorts keys so the encoded order is stable across calls.
func fields(f batchcache.Fields) []zap.Field {
	if len(f) == 0 {
		return nil
	}
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]zap.Field, 0, len(f))
	for _, k := range keys {
		if err, ok := f[k].(error); ok {
			out = append(out, zap.NamedError(k, err))
			continue
		}
		out = append(out, zap.Any(k, f[k]))
	}
	return out
}
