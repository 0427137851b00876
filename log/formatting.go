package log

import (
	"fmt"
	"os"
	"runtime"
	"strings"
)

const (
	rightArrow = "▶"

	colorEndSeq = "\033[0m"
)

func (s Severity) String() string {
	switch s {
	case TraceLevel:
		return "TRAC"
	case DebugLevel:
		return "DEBU"
	case InfoLevel:
		return "INFO"
	case WarningLevel:
		return "WARN"
	case ErrorLevel:
		return "ERRO"
	case CriticalLevel:
		return "CRIT"
	default:
		return "NONE"
	}
}

func (s Severity) color() string {
	switch s {
	case DebugLevel:
		return "\033[37m"
	case InfoLevel:
		return "\033[96m"
	case WarningLevel:
		return "\033[93m"
	case ErrorLevel:
		return "\033[91m"
	case CriticalLevel:
		return "\033[95m"
	default:
		return ""
	}
}

func usesColor() bool {
	if runtime.GOOS == "windows" {
		return false
	}
	return os.Getenv("NO_COLOR") == ""
}

func shortFile(file string) string {
	// keep package/file only
	idx := strings.LastIndex(file, "/")
	if idx < 0 {
		return file
	}
	idx = strings.LastIndex(file[:idx], "/")
	if idx < 0 {
		return file
	}
	return file[idx+1:]
}

func formatLine(line *logLine, useColor bool) string {
	colorStart := ""
	colorEnd := ""
	if useColor {
		colorStart = line.level.color()
		colorEnd = colorEndSeq
	}

	var fLine string
	if line.line == 0 {
		fLine = fmt.Sprintf(
			"%s%s ? %s %s%s %s",
			colorStart, line.timestamp.Format("060102 15:04:05.000"),
			rightArrow, line.level.String(), colorEnd, line.msg,
		)
	} else {
		fLine = fmt.Sprintf(
			"%s%s %s:%03d %s %s%s %s",
			colorStart, line.timestamp.Format("060102 15:04:05.000"),
			shortFile(line.file), line.line,
			rightArrow, line.level.String(), colorEnd, line.msg,
		)
	}

	if line.tracer != nil && len(line.tracer.actions) > 0 {
		fLine += fmt.Sprintf(" Σ=%s", line.timestamp.Sub(line.tracer.actions[0].timestamp))
		for _, action := range line.tracer.actions {
			fLine += fmt.Sprintf(
				"\n%s%s %s:%03d %s %s%s %s",
				colorStart, action.timestamp.Format("060102 15:04:05.000"),
				shortFile(action.file), action.line,
				rightArrow, action.level.String(), colorEnd, action.msg,
			)
		}
	}

	return fLine
}
