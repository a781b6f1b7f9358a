package benchpipe

import (
	"errors"
	"io"
	"os"

	"lesiw.io/prefix"
)

var (
	// Trace receives one line per spawned command, before any I/O
	// begins. It defaults to [io.Discard]; set it to [ShTrace] or any
	// other writer to echo commands in set -x style.
	Trace io.Writer = io.Discard

	// ShTrace writes "+ "-prefixed lines to standard error.
	ShTrace = prefix.NewWriter("+ ", stderr)

	stderr io.Writer = os.Stderr
)

// ErrClosedEarly reports that a hook observed its input channel close
// before the expected terminal marker. Hook functions return it so
// the failure surfaces from the dependent [ResultHook.Result].
var ErrClosedEarly = errors.New("benchpipe: channel closed prematurely")
