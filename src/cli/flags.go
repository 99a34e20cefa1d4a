package cli

import (
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/thought-machine/go-flags"
)

// ParseFlagsOrDie parses the app's flags and dies if unsuccessful.
// Any arguments the parser leaves over are returned to the caller,
// which decides whether they are an error.
func ParseFlagsOrDie(appname, version string, data interface{}) (*flags.Parser, []string) {
	parser := flags.NewNamedParser(path.Base(os.Args[0]), flags.HelpFlag|flags.PassDoubleDash)
	parser.AddGroup(appname+" options", "", data)
	extraArgs, err := parser.ParseArgs(os.Args[1:])
	if err != nil {
		if ferr, ok := err.(*flags.Error); ok && ferr.Type == flags.ErrHelp {
			parser.WriteHelp(os.Stderr)
			os.Exit(0)
		}
		if ferr, ok := err.(*flags.Error); ok && strings.Contains(ferr.Message, "`version'") {
			fmt.Printf("%s version %s\n", appname, version)
			os.Exit(0)
		}
		parser.WriteHelp(os.Stderr)
		fmt.Fprintf(os.Stderr, "\nError: %s\n", err)
		os.Exit(1)
	}
	return parser, extraArgs
}
