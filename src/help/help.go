// Package help formats the target listing sake prints when invoked
// with `help` (§6): top-level names sorted
// alphabetically, a meta-target's children sorted and indented beneath
// it, names containing whitespace quoted, the reserved `clean` and
// `visual` commands listed last, and the synthetic `all` root never
// printed.
//
// Grounded on the teacher's src/help/help.go topic listing (sorted
// index, per-entry one-line summary), adapted from Please's
// BUILD-rule help topics to sake's flat target/meta-target listing.
package help

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/sakebuild/sake/src/core"
)

// reservedTrailer lists the built-in commands printed after every
// Sakefile-declared entry, in this fixed order.
var reservedTrailer = []struct{ Name, Help string }{
	{"clean", "remove all declared outputs and the fingerprint store"},
	{"visual", "print or render the dependency graph"},
}

// Print writes the formatted target listing for sf to w.
func Print(sf *core.Sakefile, w io.Writer) {
	names := make([]string, 0, len(sf.Entries))
	byName := map[string]*core.Entry{}
	for _, e := range sf.Entries {
		if e.Name == core.RootTargetName {
			continue
		}
		names = append(names, e.Name)
		byName[e.Name] = e
	}
	sort.Strings(names)

	for _, name := range names {
		e := byName[name]
		if e.Atom != nil {
			fmt.Fprintf(w, "%s\t%s\n", quote(name), e.Atom.Help)
			continue
		}
		fmt.Fprintf(w, "%s\t%s\n", quote(name), e.Meta.Help)
		children := make([]string, len(e.Meta.Children))
		for i, c := range e.Meta.Children {
			children[i] = c.Name
		}
		sort.Strings(children)
		byChild := map[string]*core.Target{}
		for _, c := range e.Meta.Children {
			byChild[c.Name] = c
		}
		for _, cn := range children {
			fmt.Fprintf(w, "    %s\t%s\n", quote(cn), byChild[cn].Help)
		}
	}

	for _, r := range reservedTrailer {
		fmt.Fprintf(w, "%s\t%s\n", quote(r.Name), r.Help)
	}
}

// quote wraps name in double quotes if it contains whitespace.
func quote(name string) string {
	if strings.ContainsAny(name, " \t\n") {
		return `"` + name + `"`
	}
	return name
}
