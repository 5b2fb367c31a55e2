// Package logging builds the slog loggers used by ray. Records go to stdout
// and, when a directory is configured, to one file per day in that
// directory. The directory is kept under a size cap by deleting the oldest
// files.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/docker/go-units"
)

const (
	// DefaultMaxSize caps a log directory when nothing else is configured.
	DefaultMaxSize int64 = 5 * units.MiB
	// MinMaxSize is the smallest accepted cap.
	MinMaxSize int64 = units.MiB
)

// Options configures a logger.
type Options struct {
	Level  string // debug, info, warn or error
	Format string // text or json
	// Dir receives daily log files. Empty disables file output.
	Dir string
	// MaxSize caps Dir in bytes. Zero means DefaultMaxSize.
	MaxSize int64
	// Stdout defaults to os.Stdout.
	Stdout io.Writer
}

// ParseLevel maps a level name to a slog level. Unknown names are info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ParseSize parses a human readable size such as "5MB" or "512k". Sizes are
// binary, so "5MB" is 5 MiB. A plain number is a count of bytes.
func ParseSize(s string) (int64, error) {
	n, err := units.RAMInBytes(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	if n < MinMaxSize {
		return 0, fmt.Errorf("size %s is below the minimum of %s", units.BytesSize(float64(n)), units.BytesSize(float64(MinMaxSize)))
	}
	return n, nil
}

// New returns a logger configured by opts. The returned closer releases the
// log file and must be called when the logger is no longer used.
func New(opts Options) (*slog.Logger, io.Closer, error) {
	var out io.Writer = os.Stdout
	if opts.Stdout != nil {
		out = opts.Stdout
	}

	var closer io.Closer = nopCloser{}
	if opts.Dir != "" {
		maxSize := opts.MaxSize
		if maxSize == 0 {
			maxSize = DefaultMaxSize
		}
		if maxSize < MinMaxSize {
			return nil, nil, fmt.Errorf("log dir size %s is below the minimum of %s", units.BytesSize(float64(maxSize)), units.BytesSize(float64(MinMaxSize)))
		}
		file, err := NewDailyFile(opts.Dir, maxSize)
		if err != nil {
			return nil, nil, err
		}
		out = io.MultiWriter(out, file)
		closer = file
	}

	handlerOpts := &slog.HandlerOptions{Level: ParseLevel(opts.Level)}
	var handler slog.Handler
	if strings.ToLower(opts.Format) == "json" {
		handler = slog.NewJSONHandler(out, handlerOpts)
	} else {
		handler = slog.NewTextHandler(out, handlerOpts)
	}

	return slog.New(handler), closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
