// Package preprocess implements Sakefile preprocessing: macro expansion,
// include resolution, and CLI macro overrides (§4.1). Grounded on the
// teacher's general "read once, resolve depth-first, de-duplicate by
// path" structuring of subinclude loading (src/parse/init.go), though
// Please's own macro mechanism is its BUILD language's subinclude, not
// a line-oriented text preprocessor — this package is otherwise a
// from-scratch line scanner, since no pack library implements this
// directive syntax (see DESIGN.md).
package preprocess

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/sakebuild/sake/src/core"
)

var macroDefRe = regexp.MustCompile(`^#!\s*([A-Za-z_][A-Za-z0-9_]*)\s*(\?=|=|or)\s*(.*)$`)
var includeRe = regexp.MustCompile(`^#<\s*(\S+)\s*(optional|or\s+.*)?$`)
var nameRe = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// Result is the outcome of preprocessing one file: its expanded text,
// plus the (recursively) expanded text of every file it included.
type Result struct {
	Text     string
	Includes map[string]*Result
}

// Macros holds the live macro table threaded through a preprocessing run.
// CLI overrides are seeded in before any file is read, so they always win.
type Macros struct {
	values map[string]string
	fromCLI map[string]bool
}

// NewMacros seeds the macro table with CLI-supplied overrides (§4.1
// ordering rule: CLI overrides take precedence over both `=` and `?=`).
func NewMacros(cliOverrides map[string]string) *Macros {
	m := &Macros{values: map[string]string{}, fromCLI: map[string]bool{}}
	for k, v := range cliOverrides {
		m.values[k] = v
		m.fromCLI[k] = true
	}
	return m
}

func (m *Macros) set(name, value string, conditional bool) error {
	if m.fromCLI[name] {
		return nil // CLI overrides always win.
	}
	if conditional {
		if _, ok := m.values[name]; ok {
			return nil
		}
	}
	m.values[name] = value
	return nil
}

func (m *Macros) get(name string) (string, bool) {
	v, ok := m.values[name]
	return v, ok
}

// Process preprocesses the Sakefile at path and every file it includes,
// returning the fully expanded document and all resolved includes.
func Process(path string, macros *Macros) (*Result, error) {
	text, err := readFile(path)
	if err != nil {
		return nil, core.Wrapf(core.MissingFile, err, "cannot read Sakefile %s", path)
	}
	seen := map[string]bool{path: true}
	return process(path, text, macros, seen)
}

func readFile(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func process(path, text string, macros *Macros, seen map[string]bool) (*Result, error) {
	res := &Result{Includes: map[string]*Result{}}
	var out strings.Builder
	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)

		if m := macroDefRe.FindStringSubmatch(trimmed); m != nil {
			name, op, rawValue := m[1], m[2], m[3]
			if op == "or" {
				if _, ok := macros.get(name); !ok {
					return nil, core.Errorf(core.InvalidMacro, "required macro %s is undefined: %s", name, rawValue)
				}
				continue
			}
			value := substitute(rawValue, macros)
			if err := macros.set(name, value, op == "?="); err != nil {
				return nil, err
			}
			continue
		}

		if m := includeRe.FindStringSubmatch(trimmed); m != nil {
			incPath, modifier := m[1], strings.TrimSpace(m[2])
			incPath = substitute(incPath, macros)
			if !filepath.IsAbs(incPath) {
				incPath = filepath.Join(filepath.Dir(path), incPath)
			}
			if seen[incPath] {
				continue
			}
			incText, err := readFile(incPath)
			if err != nil {
				if modifier == "optional" {
					continue
				}
				if strings.HasPrefix(modifier, "or") {
					fmt.Println(strings.TrimSpace(strings.TrimPrefix(modifier, "or")))
					continue
				}
				return nil, core.Wrapf(core.MissingInclude, err, "cannot read included file %s", incPath)
			}
			seen[incPath] = true
			incResult, err := process(incPath, incText, macros, seen)
			if err != nil {
				return nil, err
			}
			// Inline the included file's expanded text at the point of
			// the directive, the way a BUILD-style subinclude pulls a
			// dependency's declarations into the including file's own
			// scope — a target or macro declared only in an included
			// file must still end up in the parsed Sakefile. res.Includes
			// is kept alongside as a record of what was resolved, from
			// which a caller (e.g. `sake watch`) can learn every file
			// that contributed to the build, not just the top-level one.
			out.WriteString(incResult.Text)
			res.Includes[incPath] = incResult
			for p, r := range incResult.Includes {
				res.Includes[p] = r
			}
			continue
		}

		out.WriteString(substitute(line, macros))
		out.WriteByte('\n')
	}
	if err := scanner.Err(); err != nil {
		return nil, core.Wrapf(core.ParseError, err, "failed to scan %s", path)
	}
	res.Text = out.String()
	return res, nil
}

// substitute expands every $NAME / ${NAME} occurrence and unescapes $$.
func substitute(line string, macros *Macros) string {
	const escapeSentinel = "\x00DOLLAR\x00"
	line = strings.ReplaceAll(line, "$$", escapeSentinel)
	line = nameRe.ReplaceAllStringFunc(line, func(match string) string {
		sub := nameRe.FindStringSubmatch(match)
		name := sub[1]
		if name == "" {
			name = sub[2]
		}
		if v, ok := macros.get(name); ok {
			return v
		}
		return match
	})
	return strings.ReplaceAll(line, escapeSentinel, "$")
}
