package preset

import (
	"fmt"
	"os"

	"github.com/xkilldash9x/rglaunch/internal/launcher"
	"github.com/xkilldash9x/rglaunch/internal/overrides"
)

// ResolveBool normalizes a boolean parameter. Only the literal "false" is false;
// anything else, including an empty or unrecognized token, is "true".
func ResolveBool(s string) string {
	if s == "false" {
		return "false"
	}
	return "true"
}

// Binding is a parameter with its resolved value.
type Binding struct {
	Name  string `json:"name"`
	Value string `json:"value"`
	// Defaulted is set when no positional argument was given for the parameter.
	Defaulted bool `json:"defaulted"`
}

// Request holds everything the caller supplies on top of the preset itself.
type Request struct {
	// Args are positional values bound to the preset's parameters in order.
	Args []string
	// Variant selects a variant block, "" for none.
	Variant string
	// Set holds extra override tokens applied after the preset's own.
	Set []string
	// Checkpoints maps checkpoint names to paths and wins over the preset defaults.
	Checkpoints map[string]string
	// Flags are merged over the preset's launcher flags.
	Flags launcher.Flags
	// LookupEnv resolves ${env:NAME}; os.LookupEnv when nil.
	LookupEnv func(string) (string, bool)
}

// Resolution is a preset bound to concrete arguments.
type Resolution struct {
	Preset    *Preset
	Variant   string
	Params    []Binding
	Overrides *overrides.Set
	Flags     launcher.Flags
}

// ParamMap returns the bound parameters keyed by name.
func (r *Resolution) ParamMap() map[string]string {
	m := make(map[string]string, len(r.Params))
	for _, b := range r.Params {
		m[b.Name] = b.Value
	}
	return m
}

// Resolve binds req to the preset and assembles the override list: the preset's
// overrides in declared order, then the variant, then req.Set, then the seed
// sweep. A later entry for an existing key path replaces it in place.
func (p *Preset) Resolve(req Request) (*Resolution, error) {
	if len(req.Args) > len(p.Params) {
		return nil, fmt.Errorf("%w: preset %q takes %d, got %d", ErrTooManyArgs, p.Name, len(p.Params), len(req.Args))
	}

	res := &Resolution{
		Preset:  p,
		Variant: req.Variant,
		Flags:   p.Launcher.Merge(req.Flags),
	}

	values := make(map[string]string, len(p.Params))
	for i, param := range p.Params {
		b := Binding{Name: param.Name, Value: param.Default, Defaulted: true}
		if i < len(req.Args) {
			b.Value, b.Defaulted = req.Args[i], false
		}
		if param.Kind == KindBool {
			b.Value = ResolveBool(b.Value)
		}
		values[b.Name] = b.Value
		res.Params = append(res.Params, b)
	}

	lookupEnv := req.LookupEnv
	if lookupEnv == nil {
		lookupEnv = os.LookupEnv
	}
	resolve := func(ref overrides.Ref) (string, error) {
		switch ref.Scope {
		case overrides.ScopeCheckpoint:
			if path, ok := req.Checkpoints[ref.Name]; ok {
				return path, nil
			}
			return p.Checkpoints[ref.Name], nil
		case overrides.ScopeEnv:
			v, _ := lookupEnv(ref.Name)
			return v, nil
		default:
			v, ok := values[ref.Name]
			if !ok {
				return "", fmt.Errorf("%w: %s", ErrUnknownParam, ref)
			}
			return v, nil
		}
	}

	set := &overrides.Set{}
	if err := putRendered(set, p.Overrides, resolve); err != nil {
		return nil, err
	}

	if req.Variant != "" {
		v, ok := p.Variants[req.Variant]
		if !ok {
			return nil, fmt.Errorf("%w: preset %q has no variant %q", ErrUnknownVariant, p.Name, req.Variant)
		}
		if err := putRendered(set, v.Overrides, resolve); err != nil {
			return nil, err
		}
	}

	extra, err := overrides.ParseAll(req.Set)
	if err != nil {
		return nil, err
	}
	if err := putRendered(set, extra, resolve); err != nil {
		return nil, err
	}

	if seeds := res.Flags.SeedValue(); seeds != "" {
		seed := overrides.Override{Kind: overrides.Add, Key: "seed", Value: seeds}
		if existing, ok := set.Get("seed"); ok {
			seed.Kind = existing.Kind
		}
		set.Put(seed)
	}

	res.Overrides = set
	return res, nil
}

func putRendered(dst, src *overrides.Set, resolve overrides.Resolver) error {
	for _, o := range src.Items() {
		key, err := overrides.Render(o.Key, resolve)
		if err != nil {
			return fmt.Errorf("rendering key %q: %w", o.Key, err)
		}
		if err := overrides.ValidateKey(key); err != nil {
			return fmt.Errorf("rendering key %q: %w", o.Key, err)
		}
		value, err := overrides.Render(o.Value, resolve)
		if err != nil {
			return fmt.Errorf("rendering %q: %w", o.Key, err)
		}
		dst.Put(overrides.Override{Kind: o.Kind, Key: key, Value: value})
	}
	return nil
}
