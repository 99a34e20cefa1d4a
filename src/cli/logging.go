// Package cli contains helper functions related to flag parsing and logging
// for the sake binary. Flag parsing and help-text formatting are external
// collaborators per the spec; this package only supplies the thin plumbing
// the main entrypoint needs.
package cli

import (
	"os"

	"golang.org/x/term"
	oplogging "gopkg.in/op/go-logging.v1"

	"github.com/sakebuild/sake/src/cli/logging"
)

var log = logging.Log

// StdErrIsATerminal is true if the process' stderr is an interactive TTY.
var StdErrIsATerminal = term.IsTerminal(int(os.Stderr.Fd()))

// A Verbosity is used as a flag to define logging verbosity.
type Verbosity logging.Level

// InitLogging initialises the logging backend at the given verbosity.
// Quiet mode (see Settings.Quiet) does not touch this: it only affects
// whether formula stdout/stderr is streamed, log output always goes to stderr.
func InitLogging(verbosity Verbosity) {
	level := oplogging.Level(verbosity)
	backend := oplogging.NewLogBackend(os.Stderr, "", 0)
	formatted := oplogging.NewBackendFormatter(backend, logFormatter(StdErrIsATerminal))
	leveled := oplogging.AddModuleLevel(formatted)
	leveled.SetLevel(level, "")
	oplogging.SetBackend(leveled)
}

func logFormatter(coloured bool) oplogging.Formatter {
	formatStr := "%{time:15:04:05.000} %{level:7s}: %{message}"
	if coloured {
		formatStr = "%{color}" + formatStr + "%{color:reset}"
	}
	return oplogging.MustStringFormatter(formatStr)
}
