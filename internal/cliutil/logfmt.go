package cliutil

import (
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/term"

	"github.com/Paintersrp/reaper/internal/config"
	"github.com/Paintersrp/reaper/internal/supervisor"
)

// NewLogger builds the supervisor's logger. The auto format selects text when
// out is a terminal and JSON otherwise.
func NewLogger(out io.Writer, level logrus.Level, format string) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetLevel(level)

	if format == config.LogFormatAuto {
		format = config.LogFormatJSON
		if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
			format = config.LogFormatText
		}
	}
	switch format {
	case config.LogFormatJSON:
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime: "ts",
				logrus.FieldKeyMsg:  "msg",
			},
		})
	default:
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger
}

// LogRecord is the structured form of a supervisor event.
type LogRecord struct {
	Timestamp time.Time
	Level     logrus.Level
	Message   string
	Fields    logrus.Fields
}

// NewLogRecord converts a supervisor event into a log record.
func NewLogRecord(event supervisor.Event) LogRecord {
	record := LogRecord{
		Timestamp: event.Timestamp,
		Level:     eventLevel(event),
		Message:   eventMessage(event),
		Fields:    logrus.Fields{"event": string(event.Type)},
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now()
	}
	if event.PID != 0 {
		record.Fields["pid"] = event.PID
	}
	if event.Signal != 0 {
		record.Fields["signal"] = event.Signal.String()
	}
	if event.Status != nil {
		record.Fields["status"] = event.Status.String()
	}
	if event.Type == supervisor.EventTypeScan || event.Type == supervisor.EventTypeDone {
		record.Fields["count"] = event.Count
	}
	if event.Err != nil {
		record.Fields[logrus.ErrorKey] = event.Err.Error()
	}
	return record
}

// LogEvent writes a supervisor event through logger.
func LogEvent(logger *logrus.Logger, event supervisor.Event) {
	if logger == nil {
		return
	}
	record := NewLogRecord(event)
	logger.WithFields(record.Fields).WithTime(record.Timestamp).Log(record.Level, record.Message)
}

func eventLevel(event supervisor.Event) logrus.Level {
	switch event.Type {
	case supervisor.EventTypeLaunchFailed:
		return logrus.ErrorLevel
	case supervisor.EventTypeScan, supervisor.EventTypeKilled, supervisor.EventTypeSwept:
		return logrus.DebugLevel
	}
	if event.Failed() {
		return logrus.WarnLevel
	}
	return logrus.InfoLevel
}

func eventMessage(event supervisor.Event) string {
	switch event.Type {
	case supervisor.EventTypeSubreaper:
		if event.Failed() {
			return "could not register as child subreaper, orphans will not be adopted"
		}
		return "registered as child subreaper"
	case supervisor.EventTypeLaunched:
		return "launched primary child"
	case supervisor.EventTypeLaunchFailed:
		return "could not launch primary child"
	case supervisor.EventTypeRelayed:
		return "relayed " + event.Message + " to primary child"
	case supervisor.EventTypeRelayFailed:
		return "could not relay " + event.Message + " to primary child"
	case supervisor.EventTypePrimaryExited:
		return "primary child exited"
	case supervisor.EventTypeWaitFailed:
		return "waiting for primary child failed"
	case supervisor.EventTypeSwept:
		return "collected exited orphan"
	case supervisor.EventTypeSweepFailed:
		return "orphan sweep failed"
	case supervisor.EventTypeScan:
		return "scanned children"
	case supervisor.EventTypeKilled:
		return "killed descendant"
	case supervisor.EventTypeKillFailed:
		return "could not kill descendant"
	case supervisor.EventTypeReaped:
		return "reaped descendant"
	case supervisor.EventTypeReapFailed:
		return "waiting for descendant failed"
	case supervisor.EventTypeDone:
		return "no descendants left"
	}
	if event.Message != "" {
		return event.Message
	}
	return string(event.Type)
}
