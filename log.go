package actuatord

import (
	"io"
	"log/slog"
	"regexp"
	"sync"

	"github.com/mdouchement/logger"
)

// A LockedWriter serializes writes to the log sink shared by every loop.
// The lock is never held across anything but the underlying write.
type LockedWriter struct {
	sync sync.Mutex
	w    io.Writer
}

func NewLockedWriter(w io.Writer) *LockedWriter {
	return &LockedWriter{w: w}
}

func (w *LockedWriter) Write(p []byte) (int, error) {
	w.sync.Lock()
	defer w.sync.Unlock()

	return w.w.Write(p)
}

// NewLogger returns the process logger writing through a LockedWriter.
func NewLogger(w io.Writer, debug bool) logger.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	h := logger.NewSlogTextHandler(NewLockedWriter(w), &logger.SlogTextOption{
		Level:            level,
		ForceColors:      true,
		ForceFormatting:  true,
		PrefixRE:         regexp.MustCompile(`^(\[.*?\])\s`),
		DisableTimestamp: true, // Provided by journalctl
	})
	return logger.WrapSlogHandler(h)
}
