package observability

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/recodarr/recodarr/internal/config"
)

// Log file names within the log directory.
const (
	AppLogFile        = "recodarr.log"
	TranscoderLogFile = "transcoder.log"
	ErrorLogFile      = "errors.log"
	StatsFile         = "statistics.jsonl"
)

// LogSet owns the on-disk log layout: the application log, a dedicated
// transcoder output log, an error log that mirrors error-level records from
// the application log, and the NDJSON statistics file.
type LogSet struct {
	dir        string
	app        *RotatingWriter
	transcoder *RotatingWriter
	errors     *RotatingWriter

	appLogger        *slog.Logger
	transcoderLogger *slog.Logger
	stats            *StatsLog
}

// NewLogSet creates the log directory and opens all sinks.
func NewLogSet(cfg config.LoggingConfig, dir string) (*LogSet, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}

	maxSize := cfg.MaxSize.Bytes()
	app, err := NewRotatingWriter(filepath.Join(dir, AppLogFile), maxSize, cfg.Backups)
	if err != nil {
		return nil, err
	}
	transcoder, err := NewRotatingWriter(filepath.Join(dir, TranscoderLogFile), maxSize, cfg.Backups)
	if err != nil {
		app.Close()
		return nil, err
	}
	errlog, err := NewRotatingWriter(filepath.Join(dir, ErrorLogFile), maxSize, cfg.Backups)
	if err != nil {
		app.Close()
		transcoder.Close()
		return nil, err
	}

	ls := &LogSet{
		dir:        dir,
		app:        app,
		transcoder: transcoder,
		errors:     errlog,
		stats:      NewStatsLog(filepath.Join(dir, StatsFile)),
	}

	// Application records go to stdout and the app log; error-level records
	// are mirrored into the error log.
	main := NewLoggerWithWriter(cfg, io.MultiWriter(os.Stdout, app)).Handler()
	errCfg := cfg
	errCfg.Level = "error"
	mirror := NewLoggerWithWriter(errCfg, errlog).Handler()
	ls.appLogger = slog.New(teeHandler{primary: main, mirror: mirror})

	// Raw transcoder output is verbose; keep it out of the app log entirely.
	tCfg := cfg
	tCfg.Level = "debug"
	ls.transcoderLogger = NewLoggerWithWriter(tCfg, transcoder)

	return ls, nil
}

// Logger returns the application logger.
func (ls *LogSet) Logger() *slog.Logger { return ls.appLogger }

// TranscoderLogger returns the logger for raw transcoder output.
func (ls *LogSet) TranscoderLogger() *slog.Logger { return ls.transcoderLogger }

// Stats returns the NDJSON statistics sink.
func (ls *LogSet) Stats() *StatsLog { return ls.stats }

// Close closes all sinks.
func (ls *LogSet) Close() error {
	var firstErr error
	for _, c := range []*RotatingWriter{ls.app, ls.transcoder, ls.errors} {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// TailResult is a page of log lines for the log viewer.
type TailResult struct {
	Lines   []string `json:"lines"`
	Total   int      `json:"total"`
	Showing int      `json:"showing"`
	LogType string   `json:"log_type"`
}

// Tail returns the last n lines of the named log, optionally filtered by
// level ("ALL" or empty disables filtering). logType is one of
// "app", "transcoder", "errors".
func (ls *LogSet) Tail(logType string, n int, level string) (*TailResult, error) {
	var name string
	switch logType {
	case "app":
		name = AppLogFile
	case "transcoder":
		name = TranscoderLogFile
	case "errors":
		name = ErrorLogFile
	default:
		return nil, fmt.Errorf("unknown log type %q", logType)
	}

	f, err := os.Open(filepath.Join(ls.dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return &TailResult{Lines: []string{}, LogType: logType}, nil
		}
		return nil, fmt.Errorf("opening %s log: %w", logType, err)
	}
	defer f.Close()

	needle := ""
	if level != "" && !strings.EqualFold(level, "all") {
		needle = "level=" + strings.ToUpper(level)
	}

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if needle != "" && !strings.Contains(line, needle) {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading %s log: %w", logType, err)
	}

	total := len(lines)
	if n > 0 && len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return &TailResult{Lines: lines, Total: total, Showing: len(lines), LogType: logType}, nil
}

// teeHandler forwards records to a primary handler and mirrors them to a
// second handler (the error log, which filters by its own level).
type teeHandler struct {
	primary slog.Handler
	mirror  slog.Handler
}

func (h teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.primary.Enabled(ctx, level) || h.mirror.Enabled(ctx, level)
}

func (h teeHandler) Handle(ctx context.Context, r slog.Record) error {
	var firstErr error
	if h.primary.Enabled(ctx, r.Level) {
		firstErr = h.primary.Handle(ctx, r.Clone())
	}
	if h.mirror.Enabled(ctx, r.Level) {
		if err := h.mirror.Handle(ctx, r.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (h teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return teeHandler{primary: h.primary.WithAttrs(attrs), mirror: h.mirror.WithAttrs(attrs)}
}

func (h teeHandler) WithGroup(name string) slog.Handler {
	return teeHandler{primary: h.primary.WithGroup(name), mirror: h.mirror.WithGroup(name)}
}
