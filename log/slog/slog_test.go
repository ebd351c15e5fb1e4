package slog

import (
	"bytes"
	stdslog "log/slog"
	"strings"
	"testing"

	"github.com/unkn0wn-root/batchcache"
)

func TestTextOutput(t *testing.T) {
	var buf bytes.Buffer
	h := stdslog.NewTextHandler(&buf, &stdslog.HandlerOptions{
		Level: stdslog.LevelInfo,
		ReplaceAttr: func(_ []string, a stdslog.Attr) stdslog.Attr {
			if a.Key == stdslog.TimeKey {
				return stdslog.Attr{}
			}
			return a
		},
	})
	l := Logger{L: stdslog.New(h)}

	l.Debug("hidden", nil)
	l.Warn("stale completion", batchcache.Fields{"epoch": 2, "batch_epoch": 1})

	got := strings.TrimSpace(buf.String())
	want := `level=WARN msg="stale completion" batch_epoch=1 epoch=2`
	if got != want {
		t.Fatalf("got  %q\nwant %q", got, want)
	}
}
