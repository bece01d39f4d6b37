package sdbx

import "sync"

// LoggerFunc is a function type for receiving log messages from the
// package. Messages are formatted with fmt.Sprintf semantics.
type LoggerFunc func(msg string, args ...any)

var (
	logMu    sync.Mutex
	logFn    LoggerFunc
	logLevel = LogLvlNotice
)

// SetLogger sets the logger and log level for the package and returns
// the previous level. Passing LogLvlDoNotChange keeps the current level.
// A nil logger disables logging.
func SetLogger(logger LoggerFunc, level LogLvl) LogLvl {
	logMu.Lock()
	defer logMu.Unlock()
	prev := logLevel
	logFn = logger
	if level != LogLvlDoNotChange {
		logLevel = level
	}
	return prev
}

func logf(level LogLvl, msg string, args ...any) {
	logMu.Lock()
	fn, cur := logFn, logLevel
	logMu.Unlock()
	if fn == nil || level > cur {
		return
	}
	fn(msg, args...)
}
