package log

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"
)

type contextTracerKey struct{}

// ContextTracer collects log actions of a single operation and submits
// them as one block when the operation finishes.
type ContextTracer struct {
	sync.Mutex
	actions []*action
}

type action struct {
	timestamp time.Time
	level     Severity
	msg       string
	file      string
	line      int
}

var key = contextTracerKey{}

// AddTracer adds a ContextTracer to the returned context, if tracing is
// enabled and the context does not already hold one.
func AddTracer(ctx context.Context) (context.Context, *ContextTracer) {
	if ctx != nil && fastcheck(TraceLevel) {
		tracer, ok := ctx.Value(key).(*ContextTracer)
		if ok {
			return ctx, tracer
		}
		tracer = &ContextTracer{}
		return context.WithValue(ctx, key, tracer), tracer
	}
	return ctx, nil
}

// Tracer returns the ContextTracer of the given context, or nil. All
// ContextTracer methods may be called on a nil tracer.
func Tracer(ctx context.Context) *ContextTracer {
	if ctx != nil {
		tracer, ok := ctx.Value(key).(*ContextTracer)
		if ok {
			return tracer
		}
	}
	return nil
}

func (ct *ContextTracer) logTrace(level Severity, msg string) {
	_, file, line, ok := runtime.Caller(2)
	if !ok {
		file = ""
		line = 0
	}

	ct.Lock()
	defer ct.Unlock()
	ct.actions = append(ct.actions, &action{
		timestamp: time.Now(),
		level:     level,
		msg:       msg,
		file:      file,
		line:      line,
	})
}

// Trace adds a trace-level action to the tracer.
func (ct *ContextTracer) Trace(msg string) {
	if ct == nil {
		Trace(msg)
		return
	}
	ct.logTrace(TraceLevel, msg)
}

// Tracef adds a trace-level action to the tracer.
func (ct *ContextTracer) Tracef(format string, things ...interface{}) {
	if ct == nil {
		Tracef(format, things...)
		return
	}
	ct.logTrace(TraceLevel, fmt.Sprintf(format, things...))
}

// Debugf adds a debug-level action to the tracer.
func (ct *ContextTracer) Debugf(format string, things ...interface{}) {
	if ct == nil {
		Debugf(format, things...)
		return
	}
	ct.logTrace(DebugLevel, fmt.Sprintf(format, things...))
}

// Warningf adds a warning-level action to the tracer.
func (ct *ContextTracer) Warningf(format string, things ...interface{}) {
	if ct == nil {
		Warningf(format, things...)
		return
	}
	ct.logTrace(WarningLevel, fmt.Sprintf(format, things...))
}

// Errorf adds an error-level action to the tracer.
func (ct *ContextTracer) Errorf(format string, things ...interface{}) {
	if ct == nil {
		Errorf(format, things...)
		return
	}
	ct.logTrace(ErrorLevel, fmt.Sprintf(format, things...))
}

// Submit submits the collected actions as one log block with the given
// closing message.
func (ct *ContextTracer) Submit(format string, things ...interface{}) {
	if ct == nil {
		Infof(format, things...)
		return
	}
	if fastcheck(TraceLevel) {
		submitLine(TraceLevel, fmt.Sprintf(format, things...), ct)
	}
}
