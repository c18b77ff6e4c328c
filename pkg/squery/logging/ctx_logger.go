package logging

import (
	"context"
	"io"

	"go.opentelemetry.io/otel/trace"

	"github.com/sllt/squery/pkg/squery/datasource"
)

// traceMarker is the key of the trailing argument extractTraceID moves into the
// entry's trace_id field.
const traceMarker = "__trace_id__"

// ContextLogger tags every entry with the trace ID of one span. The SQL wrapper
// builds one per statement from the statement's span context.
type ContextLogger struct {
	base    datasource.Logger
	traceID string
}

// NewContextLogger returns base tagged with the trace ID of the span in ctx. When
// ctx carries no valid span base is returned as is. A nil base discards.
func NewContextLogger(ctx context.Context, base datasource.Logger) datasource.Logger {
	if base == nil {
		return &logger{level: FATAL + 1, normalOut: io.Discard, errorOut: io.Discard}
	}

	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return base
	}

	return &ContextLogger{base: base, traceID: sc.TraceID().String()}
}

func (l *ContextLogger) tag(args []any) []any {
	return append(args, map[string]any{traceMarker: l.traceID})
}

// write keeps the caller of the ContextLogger method in the entry when base is
// a logger of this package.
func (l *ContextLogger) write(level Level, format string, args []any) {
	if b, ok := l.base.(*logger); ok {
		b.logfWithSkip(2, level, format, l.tag(args)...)
		return
	}

	args = l.tag(args)

	switch {
	case level == DEBUG && format == "":
		l.base.Debug(args...)
	case level == DEBUG:
		l.base.Debugf(format, args...)
	case level == INFO && format == "":
		l.base.Info(args...)
	case level == INFO:
		l.base.Infof(format, args...)
	case level == WARN && format == "":
		l.base.Warn(args...)
	case level == WARN:
		l.base.Warnf(format, args...)
	case format == "":
		l.base.Error(args...)
	default:
		l.base.Errorf(format, args...)
	}
}

func (l *ContextLogger) Debug(args ...any)            { l.write(DEBUG, "", args) }
func (l *ContextLogger) Debugf(f string, args ...any) { l.write(DEBUG, f, args) }
func (l *ContextLogger) Info(args ...any)             { l.write(INFO, "", args) }
func (l *ContextLogger) Infof(f string, args ...any)  { l.write(INFO, f, args) }
func (l *ContextLogger) Warn(args ...any)             { l.write(WARN, "", args) }
func (l *ContextLogger) Warnf(f string, args ...any)  { l.write(WARN, f, args) }
func (l *ContextLogger) Error(args ...any)            { l.write(ERROR, "", args) }
func (l *ContextLogger) Errorf(f string, args ...any) { l.write(ERROR, f, args) }
