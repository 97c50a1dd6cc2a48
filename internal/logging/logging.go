// Package logging builds the process logger and the statement hook that
// feeds it.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
)

// New returns a logger writing to w at the given level ("debug", "info",
// "warn", "error") in the given format ("text" or "json").
func New(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("logging: %w", err)
	}
	opts := &slog.HandlerOptions{Level: lvl}

	switch format {
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("logging: unknown format %q", format)
	}
}

// StatementLogger is an orm.Logger that writes every statement at debug
// level. Arguments are included only when sensitive is set, since they
// carry row data.
type StatementLogger struct {
	logger    *slog.Logger
	sensitive bool
}

// NewStatementLogger returns a StatementLogger writing to l.
func NewStatementLogger(l *slog.Logger, sensitive bool) *StatementLogger {
	return &StatementLogger{logger: l, sensitive: sensitive}
}

func (s *StatementLogger) Log(ctx context.Context, query string, args ...any) {
	if !s.logger.Enabled(ctx, slog.LevelDebug) {
		return
	}
	attrs := []slog.Attr{slog.String("sql", query)}
	if s.sensitive {
		attrs = append(attrs, slog.Any("args", args))
	} else if len(args) > 0 {
		attrs = append(attrs, slog.Int("params", len(args)))
	}
	s.logger.LogAttrs(ctx, slog.LevelDebug, "executing statement", attrs...)
}
