package report

import (
	"fmt"
	"os"

	"github.com/google/uuid"
)

// Reporter accumulates diagnostics and optimization trace messages for a
// single compilation run.  It is created by the driver and passed explicitly
// into every phase; recoverable failures are collected rather than stopping
// compilation so that every definition gets a chance to report.
type Reporter struct {
	// The selected log level.  Must be one of the enumerated log levels.
	logLevel int

	// runID identifies this compilation run in the trace stream.
	runID string

	// errors and warnings accumulated during the run.
	errors   []*Failure
	warnings []*Failure

	// trace records optimization decisions, independent of diagnostics.
	trace []string
}

// Enumeration of the different possible log levels.
const (
	LogLevelSilent  = iota // Displays no output.
	LogLevelError          // Displays only errors to the user.
	LogLevelWarn           // Displays warnings and errors to the user.
	LogLevelVerbose        // Displays all messages including the trace stream.
)

// NewReporter creates a new reporter with the given log level.
func NewReporter(logLevel int) *Reporter {
	return &Reporter{
		logLevel: logLevel,
		runID:    uuid.New().String(),
	}
}

// RunID returns the unique id of this compilation run.
func (r *Reporter) RunID() string {
	return r.runID
}

// Report records a recoverable failure.  Checking continues after the current
// definition.
func (r *Reporter) Report(f *Failure) {
	r.errors = append(r.errors, f)
}

// Errorf records a recoverable failure built from a position and a format
// string.
func (r *Reporter) Errorf(pos *Position, msg string, args ...interface{}) {
	r.Report(Raise(pos, msg, args...))
}

// Warnf records a non-fatal warning such as an ambiguous type variable.
func (r *Reporter) Warnf(pos *Position, msg string, args ...interface{}) {
	r.warnings = append(r.warnings, Raise(pos, msg, args...))
}

// Tracef records an optimization decision in the trace stream.  Trace
// messages never affect correctness or the exit status.
func (r *Reporter) Tracef(msg string, args ...interface{}) {
	r.trace = append(r.trace, fmt.Sprintf(msg, args...))
}

// Fatal reports an unrecoverable configuration or environment error and
// exits.  This is not used for erroneous input programs.
func (r *Reporter) Fatal(msg string, args ...interface{}) {
	if r.logLevel > LogLevelSilent {
		displayFatal(fmt.Sprintf(msg, args...))
	}

	os.Exit(1)
}

// AnyErrors returns whether any errors have been accumulated.
func (r *Reporter) AnyErrors() bool {
	return len(r.errors) > 0
}

// ErrorCount returns the number of accumulated errors.
func (r *Reporter) ErrorCount() int {
	return len(r.errors)
}

// WarningCount returns the number of accumulated warnings.
func (r *Reporter) WarningCount() int {
	return len(r.warnings)
}

// Trace returns the accumulated trace stream.
func (r *Reporter) Trace() []string {
	return r.trace
}

// Flush displays every accumulated diagnostic, honoring the log level.  It is
// called once by the driver after the pipeline halts.
func (r *Reporter) Flush() {
	if r.logLevel >= LogLevelWarn {
		for _, w := range r.warnings {
			displayDiagnostic("warning", w)
		}
	}

	if r.logLevel >= LogLevelError {
		for _, e := range r.errors {
			displayDiagnostic("error", e)
		}
	}

	if r.logLevel == LogLevelVerbose {
		displayTrace(r.runID, r.trace)
	}
}
