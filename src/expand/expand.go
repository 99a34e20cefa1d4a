// Package expand implements the target expander (§4.2): it rewrites a
// parsed Sakefile so that only concrete targets remain, expanding
// `%name`/`%{name}` patterns into one target per filesystem-matched
// substitution tuple. Plain `*`/`?` wildcards in dependencies are left
// untouched here; those are resolved later at graph-build time (§4.2,
// §9 design notes: "keep the two mechanisms strictly separate").
//
// Grounded on the teacher's src/fs/glob.go matcher split (a compiled
// regex matcher vs. the builtin filesystem matcher) and src/core/glob.go's
// pattern-to-regex conversion, adapted to sake's `%name` delimiters
// instead of `**`.
package expand

import (
	"regexp"
	"sort"
	"strings"

	"github.com/sakebuild/sake/src/core"
	"github.com/sakebuild/sake/src/fs"
)

var patternTokenRe = regexp.MustCompile(`%%|%\{([A-Za-z_][A-Za-z0-9_]*)\}|%([A-Za-z_][A-Za-z0-9_]*)`)

// Expand rewrites sf in place-equivalent fashion, returning a new
// Sakefile whose entries contain only concrete targets.
func Expand(sf *core.Sakefile, root string) (*core.Sakefile, error) {
	out := &core.Sakefile{Roots: sf.Roots}
	for _, e := range sf.Entries {
		if e.Atom != nil {
			concrete, err := expandTarget(e.Atom, root)
			if err != nil {
				return nil, err
			}
			for _, t := range concrete {
				out.Entries = append(out.Entries, &core.Entry{Name: t.Name, Atom: t})
			}
			continue
		}
		meta := &core.MetaTarget{Name: e.Meta.Name, Help: e.Meta.Help}
		for _, child := range e.Meta.Children {
			concrete, err := expandTarget(child, root)
			if err != nil {
				return nil, err
			}
			for _, t := range concrete {
				t.Parent = e.Meta.Name
				meta.Children = append(meta.Children, t)
			}
		}
		out.Entries = append(out.Entries, &core.Entry{Name: e.Name, Meta: meta})
	}
	return out, nil
}

func expandTarget(t *core.Target, root string) ([]*core.Target, error) {
	vars := patternVars(t.Name, t.Formula, t.Dependencies, t.Output)
	if len(vars) == 0 {
		return []*core.Target{t}, nil
	}
	if !strings.Contains(t.Name, "%") {
		return nil, core.Errorf(core.IntegrityError,
			"target %q uses patterns in its dependencies but not in its own name", t.Name)
	}
	if len(t.Output) == 0 {
		return nil, core.Errorf(core.IntegrityError,
			"target %q uses patterns but declares no 'output'", t.Name)
	}

	patternedDeps := make([]string, 0, len(t.Dependencies))
	for _, d := range t.Dependencies {
		if strings.Contains(d, "%") {
			patternedDeps = append(patternedDeps, d)
		}
	}

	candidates := map[string]map[string]bool{}
	for _, name := range vars {
		candidates[name] = map[string]bool{}
	}
	for _, dep := range patternedDeps {
		re, names := compilePattern(dep)
		if err := fs.WalkFiles(root, func(relPath string) error {
			m := re.FindStringSubmatch(relPath)
			if m == nil {
				return nil
			}
			for i, name := range names {
				candidates[name][m[i+1]] = true
			}
			return nil
		}); err != nil {
			return nil, core.Wrapf(core.MissingFile, err, "failed to enumerate files for pattern %q", dep)
		}
	}

	tuples := cartesian(vars, candidates)
	var out []*core.Target
	for _, tuple := range tuples {
		valid := true
		for _, dep := range patternedDeps {
			if !fs.FileExists(joinRoot(root, substituteVars(dep, tuple))) {
				valid = false
				break
			}
		}
		if !valid {
			continue
		}
		out = append(out, &core.Target{
			Name:         substituteVars(t.Name, tuple),
			Help:         t.Help,
			Formula:      substituteVars(t.Formula, tuple),
			Dependencies: substituteVarsList(t.Dependencies, tuple),
			Output:       substituteVarsList(t.Output, tuple),
		})
	}
	return out, nil
}

func joinRoot(root, rel string) string {
	if root == "" {
		return rel
	}
	return root + "/" + rel
}

// patternVars returns the sorted, de-duplicated set of pattern variable
// names used anywhere in a target's fields.
func patternVars(fields ...interface{}) []string {
	seen := map[string]bool{}
	collect := func(s string) {
		for _, m := range patternTokenRe.FindAllStringSubmatch(s, -1) {
			if m[0] == "%%" {
				continue
			}
			name := m[1]
			if name == "" {
				name = m[2]
			}
			seen[name] = true
		}
	}
	for _, f := range fields {
		switch v := f.(type) {
		case string:
			collect(v)
		case []string:
			for _, s := range v {
				collect(s)
			}
		}
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// compilePattern converts one pattern string into a regex with one
// capture group per variable occurrence, returning the variable names
// in occurrence order. If a variable repeats within the same string,
// each occurrence gets its own group and the regex does not require
// them to match the same text.
func compilePattern(pattern string) (*regexp.Regexp, []string) {
	var out strings.Builder
	var names []string
	out.WriteString("^")
	last := 0
	for _, loc := range patternTokenRe.FindAllStringIndex(pattern, -1) {
		out.WriteString(regexp.QuoteMeta(pattern[last:loc[0]]))
		tok := pattern[loc[0]:loc[1]]
		if tok == "%%" {
			out.WriteString(regexp.QuoteMeta("%"))
		} else {
			name := strings.Trim(tok, "%{}")
			names = append(names, name)
			out.WriteString(`([^/]+)`)
		}
		last = loc[1]
	}
	out.WriteString(regexp.QuoteMeta(pattern[last:]))
	out.WriteString("$")
	return regexp.MustCompile(out.String()), names
}

func substituteVars(s string, tuple map[string]string) string {
	return patternTokenRe.ReplaceAllStringFunc(s, func(tok string) string {
		if tok == "%%" {
			return "%"
		}
		name := strings.Trim(tok, "%{}")
		return tuple[name]
	})
}

func substituteVarsList(ss []string, tuple map[string]string) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = substituteVars(s, tuple)
	}
	return out
}

// cartesian builds the Cartesian product of every variable's candidate
// value set, sorted by variable name then value for determinism.
func cartesian(vars []string, candidates map[string]map[string]bool) []map[string]string {
	if len(vars) == 0 {
		return nil
	}
	sortedValues := make(map[string][]string, len(vars))
	for _, v := range vars {
		vals := make([]string, 0, len(candidates[v]))
		for val := range candidates[v] {
			vals = append(vals, val)
		}
		sort.Strings(vals)
		if len(vals) == 0 {
			return nil
		}
		sortedValues[v] = vals
	}
	tuples := []map[string]string{{}}
	for _, v := range vars {
		var next []map[string]string
		for _, t := range tuples {
			for _, val := range sortedValues[v] {
				nt := make(map[string]string, len(t)+1)
				for k, v2 := range t {
					nt[k] = v2
				}
				nt[v] = val
				next = append(next, nt)
			}
		}
		tuples = next
	}
	return tuples
}
