package log

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tevino/abool"
)

// Severity describes a log level.
type Severity uint32

// Log levels.
const (
	TraceLevel    Severity = 1
	DebugLevel    Severity = 2
	InfoLevel     Severity = 3
	WarningLevel  Severity = 4
	ErrorLevel    Severity = 5
	CriticalLevel Severity = 6
)

type logLine struct {
	msg       string
	tracer    *ContextTracer
	level     Severity
	timestamp time.Time
	file      string
	line      int
}

var (
	logBuffer = make(chan *logLine, 1024)

	logLevel = uint32(InfoLevel)

	started        = abool.NewBool(false)
	shutdownSignal = make(chan struct{})
	shutdownDone   sync.WaitGroup
)

// SetLogLevel sets a new log level.
func SetLogLevel(level Severity) {
	atomic.StoreUint32(&logLevel, uint32(level))
}

// GetLogLevel returns the current log level.
func GetLogLevel() Severity {
	return Severity(atomic.LoadUint32(&logLevel))
}

// ParseLevel returns the level severity of a log level name. An unknown
// name parses to 0.
func ParseLevel(level string) Severity {
	switch strings.ToLower(level) {
	case "trace":
		return TraceLevel
	case "debug":
		return DebugLevel
	case "info":
		return InfoLevel
	case "warning":
		return WarningLevel
	case "error":
		return ErrorLevel
	case "critical":
		return CriticalLevel
	}
	return 0
}

// Start starts the logging system. Logs submitted before start are
// buffered and written once the writer is running.
func Start() error {
	if !started.SetToIf(false, true) {
		return nil
	}
	shutdownDone.Add(1)
	go writer()
	return nil
}

// Shutdown writes all pending log lines and stops the logging system.
func Shutdown() {
	if !started.SetToIf(true, false) {
		return
	}
	close(shutdownSignal)
	shutdownDone.Wait()
}

func fastcheck(level Severity) bool {
	return uint32(level) >= atomic.LoadUint32(&logLevel)
}

func submitLine(level Severity, msg string, tracer *ContextTracer) {
	// get file and line of the original caller
	_, file, line, ok := runtime.Caller(2)
	if !ok {
		file = ""
		line = 0
	}

	ll := &logLine{
		msg:       msg,
		tracer:    tracer,
		level:     level,
		timestamp: time.Now(),
		file:      file,
		line:      line,
	}

	select {
	case logBuffer <- ll:
	default:
		// Buffer is full, drop the oldest line instead of blocking the
		// submitting goroutine.
		select {
		case <-logBuffer:
		default:
		}
		select {
		case logBuffer <- ll:
		default:
		}
	}
}

func writer() {
	defer shutdownDone.Done()
	for {
		select {
		case line := <-logBuffer:
			writeLine(line)
		case <-shutdownSignal:
			// drain before returning
			for {
				select {
				case line := <-logBuffer:
					writeLine(line)
				default:
					return
				}
			}
		}
	}
}

func writeLine(line *logLine) {
	fmt.Fprintln(os.Stdout, formatLine(line, usesColor()))
}

// Trace is used to log tiny steps. Log traces to context if you can!
func Trace(msg string) {
	if fastcheck(TraceLevel) {
		submitLine(TraceLevel, msg, nil)
	}
}

// Tracef is used to log tiny steps. Log traces to context if you can!
func Tracef(format string, things ...interface{}) {
	if fastcheck(TraceLevel) {
		submitLine(TraceLevel, fmt.Sprintf(format, things...), nil)
	}
}

// Debug is used to log unexpected but recoverable events.
func Debug(msg string) {
	if fastcheck(DebugLevel) {
		submitLine(DebugLevel, msg, nil)
	}
}

// Debugf is used to log unexpected but recoverable events.
func Debugf(format string, things ...interface{}) {
	if fastcheck(DebugLevel) {
		submitLine(DebugLevel, fmt.Sprintf(format, things...), nil)
	}
}

// Info is used to log mildly significant events.
func Info(msg string) {
	if fastcheck(InfoLevel) {
		submitLine(InfoLevel, msg, nil)
	}
}

// Infof is used to log mildly significant events.
func Infof(format string, things ...interface{}) {
	if fastcheck(InfoLevel) {
		submitLine(InfoLevel, fmt.Sprintf(format, things...), nil)
	}
}

// Warning is used to log errors that might affect the outcome of an operation.
func Warning(msg string) {
	if fastcheck(WarningLevel) {
		submitLine(WarningLevel, msg, nil)
	}
}

// Warningf is used to log errors that might affect the outcome of an operation.
func Warningf(format string, things ...interface{}) {
	if fastcheck(WarningLevel) {
		submitLine(WarningLevel, fmt.Sprintf(format, things...), nil)
	}
}

// Error is used to log errors that break or affect an operation.
func Error(msg string) {
	if fastcheck(ErrorLevel) {
		submitLine(ErrorLevel, msg, nil)
	}
}

// Errorf is used to log errors that break or affect an operation.
func Errorf(format string, things ...interface{}) {
	if fastcheck(ErrorLevel) {
		submitLine(ErrorLevel, fmt.Sprintf(format, things...), nil)
	}
}

// Critical is used to log errors that break the program.
func Critical(msg string) {
	if fastcheck(CriticalLevel) {
		submitLine(CriticalLevel, msg, nil)
	}
}

// Criticalf is used to log errors that break the program.
func Criticalf(format string, things ...interface{}) {
	if fastcheck(CriticalLevel) {
		submitLine(CriticalLevel, fmt.Sprintf(format, things...), nil)
	}
}
