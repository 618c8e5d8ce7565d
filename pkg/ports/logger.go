// Package ports defines the interfaces between the encoder pipeline and its adapters.
package ports

import "fmt"

// LogLevel orders log messages by severity. LevelQuiet is above every real level.
type LogLevel int

const (
	LevelDebug LogLevel = iota // per-frame encoder decisions
	LevelInfo                  // stream-level progress
	LevelWarn                  // recoverable problems, e.g. a forced intra refresh
	LevelError                 // failures that stop the run
	LevelQuiet
)

var levelNames = [...]string{"debug", "info", "warn", "error", "quiet"}

func (l LogLevel) String() string {
	if l < LevelDebug || l > LevelQuiet {
		return fmt.Sprintf("LogLevel(%d)", int(l))
	}
	return levelNames[l]
}

// ParseLogLevel maps a level name to its LogLevel. The empty string means info.
func ParseLogLevel(s string) (LogLevel, error) {
	if s == "" {
		return LevelInfo, nil
	}
	for i, name := range levelNames {
		if name == s {
			return LogLevel(i), nil
		}
	}
	return LevelInfo, fmt.Errorf("unknown log level %q (want debug, info, warn, error or quiet)", s)
}

// Logger writes leveled messages. msg is a lexicon key; adapters translate it
// and then apply args as format arguments.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})

	// WithComponent returns a Logger tagging messages with component. Tags nest:
	// the encoder logs as "encoder" and its motion estimator as "encoder/hme".
	WithComponent(component string) Logger
}
