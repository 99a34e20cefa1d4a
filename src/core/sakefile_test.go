package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSakefileAtomicTarget(t *testing.T) {
	text := `
all:
  - report

report:
  help: build the report
  dependencies:
    - data.csv
  formula: cat data.csv > report.txt
  output:
    - report.txt
`
	sf, err := ParseSakefile(text)
	require.NoError(t, err)
	assert.Equal(t, []string{"report"}, sf.Roots)
	require.Len(t, sf.Entries, 1)

	e := sf.Lookup("report")
	require.NotNil(t, e)
	require.NotNil(t, e.Atom)
	assert.Equal(t, "build the report", e.Atom.Help)
	assert.Equal(t, "cat data.csv > report.txt", e.Atom.Formula)
	assert.Equal(t, []string{"data.csv"}, e.Atom.Dependencies)
	assert.Equal(t, []string{"report.txt"}, e.Atom.Output)
}

func TestParseSakefileMetaTarget(t *testing.T) {
	text := `
build:
  help: build everything
  compile:
    help: compile sources
    formula: go build ./...
    output:
      - bin/app
  lint:
    help: run the linter
    formula: golangci-lint run
    output:
      - .lint-ok
`
	sf, err := ParseSakefile(text)
	require.NoError(t, err)
	require.Len(t, sf.Entries, 1)

	e := sf.Lookup("build")
	require.NotNil(t, e)
	require.NotNil(t, e.Meta)
	assert.Equal(t, "build everything", e.Meta.Help)
	require.Len(t, e.Meta.Children, 2)
	assert.Equal(t, "compile", e.Meta.Children[0].Name)
	assert.Equal(t, "build", e.Meta.Children[0].Parent)
	assert.Equal(t, "lint", e.Meta.Children[1].Name)

	names, ok := sf.ExpandName("build")
	require.True(t, ok)
	assert.Equal(t, []string{"compile", "lint"}, names)
}

func TestParseSakefileMissingFormulaIsError(t *testing.T) {
	text := `
group:
  help: a meta-target with a broken child
  broken:
    help: has no formula
`
	_, err := ParseSakefile(text)
	require.Error(t, err)
	serr, ok := err.(*Error)
	require.True(t, ok)
	assert.Equal(t, IntegrityError, serr.Kind)
}

func TestParseSakefileMissingHelpIsError(t *testing.T) {
	text := `
broken:
  formula: echo hi
  output:
    - out.txt
`
	_, err := ParseSakefile(text)
	require.Error(t, err)
}
