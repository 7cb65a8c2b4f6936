// Package logx provides structured key/value logging for the network
// selection core. Messages carry a component field plus alternating
// key/value pairs, e.g. logger.Info("registered", "capability", cap).
package logx

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Logger wraps a logrus entry with a fixed component field.
type Logger struct {
	entry *logrus.Entry
}

// NewLogger creates a logger at the given level ("debug", "info", "warn",
// "error") for a component. Unknown levels fall back to info.
func NewLogger(level, component string) *Logger {
	return NewLoggerWithOutput(level, component, os.Stderr)
}

// NewLoggerWithOutput is NewLogger with an explicit output writer; tests use
// it to capture or discard output.
func NewLoggerWithOutput(level, component string, out io.Writer) *Logger {
	l := logrus.New()
	l.SetOutput(out)
	l.SetFormatter(&logrus.JSONFormatter{})

	lvl, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)

	entry := logrus.NewEntry(l)
	if component != "" {
		entry = entry.WithField("component", component)
	}
	return &Logger{entry: entry}
}

// WithComponent returns a logger that logs under a different component name
// but shares the underlying output and level.
func (lg *Logger) WithComponent(component string) *Logger {
	return &Logger{entry: lg.entry.WithField("component", component)}
}

func (lg *Logger) Debug(msg string, kv ...interface{}) { lg.log(logrus.DebugLevel, msg, kv) }
func (lg *Logger) Info(msg string, kv ...interface{})  { lg.log(logrus.InfoLevel, msg, kv) }
func (lg *Logger) Warn(msg string, kv ...interface{})  { lg.log(logrus.WarnLevel, msg, kv) }
func (lg *Logger) Error(msg string, kv ...interface{}) { lg.log(logrus.ErrorLevel, msg, kv) }

func (lg *Logger) log(level logrus.Level, msg string, kv []interface{}) {
	entry := lg.entry
	if len(kv) > 0 {
		fields := make(logrus.Fields, len(kv)/2+1)
		for i := 0; i+1 < len(kv); i += 2 {
			key, ok := kv[i].(string)
			if !ok {
				key = fmt.Sprintf("arg%d", i)
			}
			fields[key] = kv[i+1]
		}
		if len(kv)%2 != 0 {
			fields["extra"] = kv[len(kv)-1]
		}
		entry = entry.WithFields(fields)
	}
	entry.Log(level, msg)
}
