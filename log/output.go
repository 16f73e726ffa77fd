package log

import (
	"io"
	"os"
)

// OutputWriter is where log lines are written. Tests may swap it out to
// capture output; production always uses stderr.
var OutputWriter io.Writer = os.Stderr
