// Package preset describes launch presets: a named trainer invocation with
// positional parameters, an ordered override list and optional variants.
package preset

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/xkilldash9x/rglaunch/internal/launcher"
	"github.com/xkilldash9x/rglaunch/internal/overrides"
)

// Parameter kinds.
const (
	KindBool   = "bool"
	KindString = "string"
)

// VariantROS is the variant selected by the --ros switch.
const VariantROS = "ros"

var (
	ErrUnknownPreset  = errors.New("unknown preset")
	ErrUnknownVariant = errors.New("unknown variant")
	ErrUnknownParam   = errors.New("unknown parameter")
	ErrTooManyArgs    = errors.New("too many arguments")
	ErrInvalidPreset  = errors.New("invalid preset")
)

var (
	namePattern  = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.\-]*$`)
	paramPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

// Param is a positional parameter of a preset.
type Param struct {
	Name        string `yaml:"name" json:"name"`
	Kind        string `yaml:"kind" json:"kind"`
	Default     string `yaml:"default" json:"default"`
	Description string `yaml:"description" json:"description,omitempty"`
}

// Variant is a named block of overrides merged over the preset's own.
type Variant struct {
	Name        string
	Description string
	Overrides   *overrides.Set
}

// Preset is a parsed, validated preset definition.
type Preset struct {
	Name        string
	Description string
	// Command replaces the configured trainer command when set.
	Command     []string
	Params      []Param
	Overrides   *overrides.Set
	Variants    map[string]*Variant
	Launcher    launcher.Flags
	Checkpoints map[string]string
	// Source is where the preset was loaded from.
	Source string
}

type document struct {
	Name        string                 `yaml:"name"`
	Description string                 `yaml:"description"`
	Command     []string               `yaml:"command"`
	Params      []Param                `yaml:"params"`
	Overrides   yaml.Node              `yaml:"overrides"`
	Variants    map[string]variantNode `yaml:"variants"`
	Launcher    launcher.Flags         `yaml:"launcher"`
	Checkpoints map[string]string      `yaml:"checkpoints"`
}

type variantNode struct {
	Description string    `yaml:"description"`
	Overrides   yaml.Node `yaml:"overrides"`
}

// Parse decodes and validates a preset document. Unknown fields are rejected.
func Parse(data []byte, source string) (*Preset, error) {
	var doc document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidPreset, source, err)
	}

	p := &Preset{
		Name:        doc.Name,
		Description: doc.Description,
		Command:     doc.Command,
		Params:      doc.Params,
		Variants:    make(map[string]*Variant, len(doc.Variants)),
		Launcher:    doc.Launcher,
		Checkpoints: doc.Checkpoints,
		Source:      source,
	}
	if p.Checkpoints == nil {
		p.Checkpoints = map[string]string{}
	}

	var err error
	if p.Overrides, err = decodeOverrides(&doc.Overrides); err != nil {
		return nil, fmt.Errorf("%w: %s: overrides: %v", ErrInvalidPreset, source, err)
	}
	for name, vn := range doc.Variants {
		set, err := decodeOverrides(&vn.Overrides)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: variant %q: %v", ErrInvalidPreset, source, name, err)
		}
		p.Variants[name] = &Variant{Name: name, Description: vn.Description, Overrides: set}
	}

	for i := range p.Params {
		if p.Params[i].Kind == "" {
			p.Params[i].Kind = KindString
		}
	}

	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}
	return p, nil
}

// decodeOverrides reads an ordered mapping of key paths to scalar values.
func decodeOverrides(node *yaml.Node) (*overrides.Set, error) {
	set := &overrides.Set{}
	if node.Kind == 0 {
		return set, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: expected a mapping of key paths to values", node.Line)
	}

	seen := make(map[string]bool)
	for i := 0; i+1 < len(node.Content); i += 2 {
		k, v := node.Content[i], node.Content[i+1]
		if v.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("line %d: value of %q must be a scalar; quote lists and maps", v.Line, k.Value)
		}

		o, err := splitKey(k.Value)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", k.Line, err)
		}
		if seen[o.Key] {
			return nil, fmt.Errorf("line %d: duplicate key path %q", k.Line, o.Key)
		}
		seen[o.Key] = true

		o.Value = v.Value
		if v.Tag == "!!null" {
			o.Value = ""
			if o.Kind != overrides.Delete {
				o.Value = "null"
			}
		}
		set.Put(o)
	}
	return set, nil
}

// splitKey separates the +, ++ or ~ marker from a key path. Template references
// are allowed in the key; the path is checked once they are rendered.
func splitKey(raw string) (overrides.Override, error) {
	o, err := overrides.Parse(raw + "=")
	if err == nil {
		return overrides.Override{Kind: o.Kind, Key: o.Key}, nil
	}
	refs, perr := overrides.Placeholders(raw)
	if perr != nil {
		return overrides.Override{}, perr
	}
	if len(refs) == 0 {
		return overrides.Override{}, err
	}

	probe, rerr := overrides.Render(raw, func(overrides.Ref) (string, error) { return "x", nil })
	if rerr != nil {
		return overrides.Override{}, rerr
	}
	o, err = overrides.Parse(probe + "=")
	if err != nil {
		return overrides.Override{}, err
	}
	kindLen := len(probe) - len(o.Key)
	return overrides.Override{Kind: o.Kind, Key: raw[kindLen:]}, nil
}

// Validate checks names, parameter kinds and that every template refers to a
// declared parameter.
func (p *Preset) Validate() error {
	if !namePattern.MatchString(p.Name) {
		return fmt.Errorf("%w: bad name %q", ErrInvalidPreset, p.Name)
	}

	declared := make(map[string]bool, len(p.Params))
	for _, param := range p.Params {
		if !paramPattern.MatchString(param.Name) {
			return fmt.Errorf("%w: bad parameter name %q", ErrInvalidPreset, param.Name)
		}
		if declared[param.Name] {
			return fmt.Errorf("%w: parameter %q declared twice", ErrInvalidPreset, param.Name)
		}
		declared[param.Name] = true
		if param.Kind != KindBool && param.Kind != KindString {
			return fmt.Errorf("%w: parameter %q has kind %q, want bool or string", ErrInvalidPreset, param.Name, param.Kind)
		}
	}

	check := func(where string, set *overrides.Set) error {
		for _, o := range set.Items() {
			for _, text := range []string{o.Key, o.Value} {
				refs, err := overrides.Placeholders(text)
				if err != nil {
					return fmt.Errorf("%w: %s: %v", ErrInvalidPreset, where, err)
				}
				for _, ref := range refs {
					if ref.Scope == overrides.ScopeParam && !declared[ref.Name] {
						return fmt.Errorf("%w: %s: %q refers to %s", ErrUnknownParam, where, o.Key, ref)
					}
				}
			}
		}
		return nil
	}

	if err := check("overrides", p.Overrides); err != nil {
		return err
	}
	for name, v := range p.Variants {
		if err := check("variant "+name, v.Overrides); err != nil {
			return err
		}
	}
	return nil
}

// VariantNames returns the variant names in sorted order.
func (p *Preset) VariantNames() []string {
	names := make([]string, 0, len(p.Variants))
	for name := range p.Variants {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
