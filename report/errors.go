package report

import (
	"fmt"
	"os"
)

// Failure is a recoverable compilation failure: a positioned message that can
// be accumulated by a Reporter so that unrelated definitions still get
// checked.
type Failure struct {
	// The position of the construct that failed to check.
	Pos *Position

	// The failure message.
	Message string
}

func (f *Failure) Error() string {
	return f.Message
}

// Raise creates a new positioned failure.
func Raise(pos *Position, msg string, args ...interface{}) *Failure {
	return &Failure{Pos: pos, Message: fmt.Sprintf(msg, args...)}
}

// -----------------------------------------------------------------------------

// ICE reports an internal compiler error: a violated pipeline invariant such
// as a malformed duplicate-argument request or an argument-length mismatch.
// These indicate a bug in the compiler, never erroneous input, and are always
// fatal regardless of log level.
func ICE(msg string, args ...interface{}) {
	displayICE(fmt.Sprintf(msg, args...))
	os.Exit(-1)
}

// CatchFailure catches a *Failure thrown by a `panic` during processing of a
// single definition or SCC and reports it through the given reporter.  Any
// other panic value is re-raised as an internal compiler error.
// NB: This function must ALWAYS be deferred.
func CatchFailure(r *Reporter) {
	if x := recover(); x != nil {
		if f, ok := x.(*Failure); ok {
			r.Report(f)
		} else {
			ICE("%v", x)
		}
	}
}
