// Package zerolog adapts a zerolog.Logger to batchcache.Logger.
package zerolog

import (
	"github.com/rs/zerolog"
	"github.com/unkn0wn-root/batchcache"
)

var _ batchcache.Logger = Logger{}

type Logger struct{ L zerolog.Logger }

func (z Logger) Debug(msg string, f batchcache.Fields) { with(z.L.Debug(), f).Msg(msg) }
func (z Logger) Info(msg string, f batchcache.Fields)  { with(z.L.Info(), f).Msg(msg) }
func (z Logger) Warn(msg string, f batchcache.Fields)  { with(z.L.Warn(), f).Msg(msg) }
func (z Logger) Error(msg string, f batchcache.Fields) { with(z.L.Error(), f).Msg(msg) }

// with is safe on a nil event (level disabled).
func with(e *zerolog.Event, f batchcache.Fields) *zerolog.Event {
	if e == nil || len(f) == 0 {
		return e
	}
	if err, ok := f["err"].(error); ok {
		e = e.Err(err)
		rest := make(map[string]any, len(f)-1)
		for k, v := range f {
			if k != "err" {
				rest[k] = v
			}
		}
		return e.Fields(rest)
	}
	return e.Fields(map[string]any(f))
}
