package logging

import (
	"fmt"
	"os"
)

// TextPosition is a 1-based line/column selection in a source file
type TextPosition struct {
	StartLn, StartCol int
	EndLn, EndCol     int
}

// LogContext carries the per-file information diagnostics are reported
// against
type LogContext struct {
	FilePath string
}

// Enumeration of the different compile message kinds
const (
	LMKName = iota
	LMKDef
	LMKArg
	LMKTyping
	LMKImmut
	LMKMove
	LMKBorrow
	LMKLifetime
	LMKSyntax
	LMKToken
	LMKUsage
)

// CompileMessage is a diagnostic produced against user code
type CompileMessage struct {
	Message  string
	Kind     int
	Position *TextPosition
	Context  *LogContext
	IsError  bool
}

// String renders the message in the machine diagnostic format
// `file:line:col: error: <message>`
func (cm *CompileMessage) String() string {
	sev := "error"
	if !cm.IsError {
		sev = "warning"
	}

	if cm.Position == nil {
		return fmt.Sprintf("%s: %s: %s", cm.Context.FilePath, sev, cm.Message)
	}

	return fmt.Sprintf("%s:%d:%d: %s: %s",
		cm.Context.FilePath, cm.Position.StartLn, cm.Position.StartCol, sev, cm.Message)
}

// Enumeration of the different log levels
const (
	LogLevelSilent  = iota // no output at all
	LogLevelError          // only errors and the closing notification
	LogLevelWarning        // errors, warnings, and the closing message
	LogLevelVerbose        // everything, including progress (DEFAULT)
)

// Logger stores and displays the output of one compilation.  Compile errors
// are printed as they are reported and retained so that callers (and tests)
// can inspect them afterwards.
type Logger struct {
	LogLevel int

	errors   []*CompileMessage
	warnings []*CompileMessage
}

// NewLogger creates a logger with the given log level name; anything
// unrecognized defaults to verbose
func NewLogger(loglevelname string) *Logger {
	var loglevel int
	switch loglevelname {
	case "silent":
		loglevel = LogLevelSilent
	case "error":
		loglevel = LogLevelError
	case "warning":
		loglevel = LogLevelWarning
	default:
		loglevel = LogLevelVerbose
	}

	return &Logger{LogLevel: loglevel}
}

// LogCompileError logs a compilation error (user-induced, bad code)
func (l *Logger) LogCompileError(lctx *LogContext, message string, kind int, pos *TextPosition) {
	cm := &CompileMessage{
		Message:  message,
		Kind:     kind,
		Position: pos,
		Context:  lctx,
		IsError:  true,
	}
	l.errors = append(l.errors, cm)

	if l.LogLevel > LogLevelSilent {
		displayEndPhase(false)
		fmt.Fprintln(os.Stderr, cm.String())
	}
}

// LogCompileWarning logs a compilation warning (user-induced, problematic
// code).  Warnings are held back and displayed at the end of compilation.
func (l *Logger) LogCompileWarning(lctx *LogContext, message string, kind int, pos *TextPosition) {
	l.warnings = append(l.warnings, &CompileMessage{
		Message:  message,
		Kind:     kind,
		Position: pos,
		Context:  lctx,
		IsError:  false,
	})
}

// ErrorCount returns the number of errors reported so far
func (l *Logger) ErrorCount() int {
	return len(l.errors)
}

// ShouldProceed indicates whether the compilation has encountered any errors
// yet.  Later phases consult this before starting.
func (l *Logger) ShouldProceed() bool {
	return len(l.errors) == 0
}

// Errors returns the compile errors reported so far
func (l *Logger) Errors() []*CompileMessage {
	return l.errors
}

// Finish displays the warnings held back during compilation and the closing
// success/failure message
func (l *Logger) Finish() {
	if l.LogLevel >= LogLevelWarning {
		for _, w := range l.warnings {
			fmt.Fprintln(os.Stderr, w.String())
		}
	}

	if l.LogLevel >= LogLevelError {
		displayCompilationFinished(len(l.errors) == 0, len(l.errors), len(l.warnings))
	}
}

// LogFatal reports a fatal internal error: the compiler did something it was
// not supposed to.  This is distinct from user-visible diagnostics and is
// unrecoverable.
func LogFatal(message string) {
	displayFatalError(message)
	panic("fatal: " + message)
}
