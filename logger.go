package reactor

import (
	"log"
	"os"
)

// Logger is the minimal logging surface the core depends on. Any
// application logger that can be adapted to a single Printf method
// satisfies it.
type Logger interface {
	Printf(format string, args ...interface{})
}

type stdLogger struct {
	*log.Logger
}

func (l *stdLogger) Printf(format string, args ...interface{}) {
	l.Logger.Printf(format, args...)
}

var defaultLogger Logger = &stdLogger{log.New(os.Stderr, "[reactor] ", log.LstdFlags)}

// sniffErrorAndLog logs a non-nil error at the given logger without
// propagating it; used for best-effort cleanup paths (closing loops,
// closing listeners) where the caller has no useful recourse.
func sniffErrorAndLog(logger Logger, err error) {
	if err != nil {
		logger.Printf("%v", err)
	}
}
