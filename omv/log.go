package omv

import "time"

// ModeFlag is the lowest severity written to the log.
type ModeFlag uint

const (
	DebugMode ModeFlag = iota
	InfoMode
	WarningMode
	ErrorMode
	CriticalMode
	SilentMode
)

var (
	// Verbose writes debug messages at any mode but SilentMode.  Set by the
	// --verbose flag.
	Verbose bool

	mode ModeFlag = InfoMode
)

// Logger is the backend behind the package-level logging functions.  Every
// message is a printf format; callers end it with a newline.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warningf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Criticalf(format string, args ...interface{})

	// Shutdown flushes and closes the log file, if any.
	Shutdown()
}

// SetLogMode sets the lowest severity written.  SilentMode drops everything,
// e.g. SetLogMode(WarningMode) keeps only skipped shapes and failures.
func SetLogMode(newMode ModeFlag) {
	mode = newMode
}

// LogMode returns the lowest severity written.
func LogMode() ModeFlag {
	return mode
}

func enabled(level ModeFlag) bool {
	if level == DebugMode && Verbose {
		return mode != SilentMode
	}
	return mode <= level
}

// Debugf logs per-request detail such as chosen API versions and cache hits.
func Debugf(format string, args ...interface{}) {
	if enabled(DebugMode) {
		logger.Debugf(format, args...)
	}
}

// Infof logs progress such as channels loaded and ROIs created.
func Infof(format string, args ...interface{}) {
	if enabled(InfoMode) {
		logger.Infof(format, args...)
	}
}

// Warningf logs annotations that could not be exported as drawn.
func Warningf(format string, args ...interface{}) {
	if enabled(WarningMode) {
		logger.Warningf(format, args...)
	}
}

// Errorf logs failed remote reads and saves.
func Errorf(format string, args ...interface{}) {
	if enabled(ErrorMode) {
		logger.Errorf(format, args...)
	}
}

func Criticalf(format string, args ...interface{}) {
	if enabled(CriticalMode) {
		logger.Criticalf(format, args...)
	}
}

// Shutdown closes the rotating log file before the process exits.
func Shutdown() {
	logger.Shutdown()
}

// TimeLog times one remote operation: a plane read, a chunk read, an ROI
// save or a whole image load.  Its messages take no trailing newline; the
// elapsed time is appended.
//
//	timedLog := omv.NewTimeLog()
//	p, err := store.GetPlane(ctx, z, c, t)
//	timedLog.Debugf("read plane %s", coord)
type TimeLog struct {
	logger Logger
	start  time.Time
}

func NewTimeLog() TimeLog {
	return TimeLog{logger, time.Now()}
}

// Elapsed returns the time since the TimeLog was created.
func (t TimeLog) Elapsed() time.Duration {
	return time.Since(t.start)
}

func (t TimeLog) timed(format string, args []interface{}) (string, []interface{}) {
	return format + ": %s\n", append(args, time.Since(t.start))
}

func (t TimeLog) Debugf(format string, args ...interface{}) {
	if enabled(DebugMode) {
		msg, vals := t.timed(format, args)
		t.logger.Debugf(msg, vals...)
	}
}

func (t TimeLog) Infof(format string, args ...interface{}) {
	if enabled(InfoMode) {
		msg, vals := t.timed(format, args)
		t.logger.Infof(msg, vals...)
	}
}

func (t TimeLog) Warningf(format string, args ...interface{}) {
	if enabled(WarningMode) {
		msg, vals := t.timed(format, args)
		t.logger.Warningf(msg, vals...)
	}
}

func (t TimeLog) Errorf(format string, args ...interface{}) {
	if enabled(ErrorMode) {
		msg, vals := t.timed(format, args)
		t.logger.Errorf(msg, vals...)
	}
}
