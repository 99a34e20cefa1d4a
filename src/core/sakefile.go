package core

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// ParseSakefile parses the preprocessed Sakefile text (macros and includes
// already expanded) into a Sakefile, preserving declaration order — the
// source treats the Sakefile as an ordered mapping wherever the help
// listing or the declaration-order tie-break matters (§9 design notes).
func ParseSakefile(text string) (*Sakefile, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(text), &doc); err != nil {
		return nil, Wrapf(ParseError, err, "failed to parse Sakefile YAML")
	}
	if len(doc.Content) == 0 {
		return &Sakefile{}, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, Errorf(ParseError, "Sakefile must be a YAML mapping at the top level")
	}

	sf := &Sakefile{}
	for i := 0; i < len(root.Content); i += 2 {
		keyNode, valNode := root.Content[i], root.Content[i+1]
		name := keyNode.Value
		if name == RootTargetName {
			roots, err := decodeStringList(valNode)
			if err != nil {
				return nil, Wrapf(ParseError, err, "invalid 'all' entry")
			}
			sf.Roots = roots
			continue
		}
		entry, err := parseEntry(name, valNode)
		if err != nil {
			return nil, err
		}
		sf.Entries = append(sf.Entries, entry)
	}
	return sf, nil
}

func parseEntry(name string, node *yaml.Node) (*Entry, error) {
	if node.Kind != yaml.MappingNode {
		return nil, Errorf(ParseError, "target %q must be a mapping", name)
	}
	if hasKey(node, "formula") {
		atom, err := decodeAtom(name, node)
		if err != nil {
			return nil, err
		}
		return &Entry{Name: name, Atom: atom}, nil
	}
	// Meta-target: "help" plus one or more child atoms.
	meta := &MetaTarget{Name: name}
	for i := 0; i < len(node.Content); i += 2 {
		k, v := node.Content[i], node.Content[i+1]
		if k.Value == "help" {
			meta.Help = v.Value
			continue
		}
		child, err := decodeAtom(k.Value, v)
		if err != nil {
			return nil, err
		}
		child.Parent = name
		meta.Children = append(meta.Children, child)
	}
	if meta.Help == "" {
		return nil, Errorf(IntegrityError, "meta-target %q is missing required 'help'", name)
	}
	if len(meta.Children) == 0 {
		return nil, Errorf(ParseError, "meta-target %q has no child targets", name)
	}
	return &Entry{Name: name, Meta: meta}, nil
}

func decodeAtom(name string, node *yaml.Node) (*Target, error) {
	var raw struct {
		Help         string   `yaml:"help"`
		Formula      string   `yaml:"formula"`
		Dependencies []string `yaml:"dependencies"`
		Output       []string `yaml:"output"`
	}
	if err := node.Decode(&raw); err != nil {
		return nil, Wrapf(ParseError, err, "failed to parse target %q", name)
	}
	if raw.Help == "" && name != RootTargetName {
		return nil, Errorf(IntegrityError, "target %q is missing required 'help'", name)
	}
	if raw.Formula == "" {
		return nil, Errorf(IntegrityError, "target %q has no 'formula'", name)
	}
	return &Target{
		Name:         name,
		Help:         raw.Help,
		Formula:      raw.Formula,
		Dependencies: raw.Dependencies,
		Output:       raw.Output,
	}, nil
}

func hasKey(node *yaml.Node, key string) bool {
	for i := 0; i < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return true
		}
	}
	return false
}

func decodeStringList(node *yaml.Node) ([]string, error) {
	if node.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("expected a sequence of target names")
	}
	out := make([]string, len(node.Content))
	for i, n := range node.Content {
		out[i] = n.Value
	}
	return out, nil
}
