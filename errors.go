package benchpipe

import (
	"fmt"
	"strings"
	"time"
)

// ExitError reports a command that failed to start or exited with a
// non-zero code.
type ExitError struct {
	// Log contains captured diagnostic output, usually stderr.
	Log []byte

	// Err is the underlying error, if any.
	Err error

	// Code is the exit code. A value of 0 does not indicate success:
	// it means the command never ran.
	Code int
}

func (e *ExitError) Error() string {
	var sb strings.Builder
	if e.Err != nil {
		sb.WriteString(e.Err.Error())
	} else {
		fmt.Fprintf(&sb, "exit status %d", e.Code)
	}
	if len(e.Log) > 0 {
		sb.WriteString(
			"\n\t" +
				strings.TrimSuffix(
					strings.ReplaceAll(string(e.Log), "\n", "\n\t"),
					"\n\t",
				),
		)
	}
	return sb.String()
}

func (e *ExitError) Unwrap() error { return e.Err }

// TimeoutError reports that [Proc.Wait] gave up before the process
// exited. The local supervising process has been force-killed as a
// side effect; a relayed remote process may still be running until an
// explicit [Proc.Stop].
type TimeoutError struct {
	// After is the time the process had been running when the
	// deadline expired.
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("benchpipe: process timed out after %s", e.After)
}

// AlreadyFinishedError reports a [Proc.Stop] on a handle that is
// already terminal.
type AlreadyFinishedError struct {
	// Code is the exit code the process finished with.
	Code int
}

func (e *AlreadyFinishedError) Error() string {
	return fmt.Sprintf(
		"benchpipe: cannot stop: process already finished with code %d",
		e.Code,
	)
}

// CorrelationError reports that [Proc.Stop] could not map the local
// relay process to the remote process it supervises. Stop treats it
// as a warning and falls back to local process-group signalling.
type CorrelationError struct {
	Err error
}

func (e *CorrelationError) Error() string {
	return fmt.Sprintf("benchpipe: remote pid correlation failed: %v", e.Err)
}

func (e *CorrelationError) Unwrap() error { return e.Err }
