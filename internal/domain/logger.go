package domain

import (
	"context"
	"fmt"
	"io"

	"goa.design/clue/log"
)

// Logger is the structured diagnostic sink injected into server components.
// Log calls never influence whether an operation succeeds.
type Logger interface {
	Debug(ctx context.Context, msg string, keyvals ...interface{})
	Info(ctx context.Context, msg string, keyvals ...interface{})
	Warn(ctx context.Context, msg string, keyvals ...interface{})
	Error(ctx context.Context, err error, msg string, keyvals ...interface{})
}

// NewLogContext returns a context carrying a clue logger configured from
// cfg that writes to w. An empty format picks terminal output when stdout is
// a terminal and JSON otherwise. Entries are written as they are logged.
func NewLogContext(cfg LoggingConfig, w io.Writer) context.Context {
	format := log.FormatJSON
	switch cfg.Format {
	case "terminal":
		format = log.FormatTerminal
	case "":
		if log.IsTerminal() {
			format = log.FormatTerminal
		}
	}
	ctx := log.Context(context.Background(),
		log.WithFormat(format),
		log.WithOutput(w),
		log.WithDisableBuffering(unbuffered))
	if cfg.Debug {
		ctx = log.Context(ctx, log.WithDebug())
	}
	return ctx
}

func unbuffered(context.Context) bool { return true }

// ClueLogger delegates to goa.design/clue/log. Format, output and debug
// settings are read from the logger stored in the context by log.Context.
type ClueLogger struct {
	base context.Context
}

// NewClueLogger returns a Logger backed by the clue logger configured on
// base. Contexts passed to the log methods that carry no clue logger fall
// back to base.
func NewClueLogger(base context.Context) *ClueLogger {
	return &ClueLogger{base: base}
}

// Debug emits a debug-level message.
func (l *ClueLogger) Debug(ctx context.Context, msg string, keyvals ...interface{}) {
	log.Debug(l.ctx(ctx), fielders(msg, keyvals)...)
}

// Info emits an info-level message.
func (l *ClueLogger) Info(ctx context.Context, msg string, keyvals ...interface{}) {
	log.Info(l.ctx(ctx), fielders(msg, keyvals)...)
}

// Warn emits a warning-level message.
func (l *ClueLogger) Warn(ctx context.Context, msg string, keyvals ...interface{}) {
	log.Warn(l.ctx(ctx), fielders(msg, keyvals)...)
}

// Error emits an error-level message.
func (l *ClueLogger) Error(ctx context.Context, err error, msg string, keyvals ...interface{}) {
	log.Error(l.ctx(ctx), err, fielders(msg, keyvals)...)
}

// ctx merges the clue logger of base into ctx so cancellation and values of
// ctx are kept while the configured output is used.
func (l *ClueLogger) ctx(ctx context.Context) context.Context {
	if ctx == nil {
		return l.base
	}
	if l.base == nil {
		return ctx
	}
	return log.WithContext(ctx, l.base)
}

func fielders(msg string, keyvals []interface{}) []log.Fielder {
	fs := make([]log.Fielder, 0, 1+len(keyvals)/2)
	fs = append(fs, log.KV{K: "msg", V: msg})
	for i := 0; i < len(keyvals); i += 2 {
		k := fmt.Sprint(keyvals[i])
		var v interface{}
		if i+1 < len(keyvals) {
			v = keyvals[i+1]
		}
		fs = append(fs, log.KV{K: k, V: v})
	}
	return fs
}

// NopLogger discards everything.
type NopLogger struct{}

func (NopLogger) Debug(context.Context, string, ...interface{})        {}
func (NopLogger) Info(context.Context, string, ...interface{})         {}
func (NopLogger) Warn(context.Context, string, ...interface{})         {}
func (NopLogger) Error(context.Context, error, string, ...interface{}) {}
