package overrides

import (
	"errors"
	"fmt"
	"strings"
)

// Reference scopes understood inside ${...}.
const (
	ScopeParam      = ""
	ScopeCheckpoint = "checkpoint"
	ScopeEnv        = "env"
)

// ErrBadPlaceholder is returned for unterminated or malformed ${...} references.
var ErrBadPlaceholder = errors.New("malformed placeholder")

// Ref is one ${scope:name} reference found in a template.
type Ref struct {
	Scope string
	Name  string
}

func (r Ref) String() string {
	if r.Scope == ScopeParam {
		return "${" + r.Name + "}"
	}
	return "${" + r.Scope + ":" + r.Name + "}"
}

// Resolver supplies the text for a reference.
type Resolver func(Ref) (string, error)

// Render replaces every ${...} reference in tmpl with the text supplied by resolve.
// "$${" is an escape for a literal "${" and is the only way one can appear in
// the result; it lets trainer-side interpolation pass through unrendered.
func Render(tmpl string, resolve Resolver) (string, error) {
	var b strings.Builder
	err := walk(tmpl, func(literal string) {
		b.WriteString(literal)
	}, func(ref Ref) error {
		text, err := resolve(ref)
		if err != nil {
			return err
		}
		b.WriteString(text)
		return nil
	})
	if err != nil {
		return "", err
	}
	return b.String(), nil
}

// Placeholders lists the references in tmpl in order of appearance.
func Placeholders(tmpl string) ([]Ref, error) {
	var refs []Ref
	err := walk(tmpl, func(string) {}, func(ref Ref) error {
		refs = append(refs, ref)
		return nil
	})
	return refs, err
}

func walk(tmpl string, literal func(string), ref func(Ref) error) error {
	rest := tmpl
	for {
		i := strings.Index(rest, "${")
		if i < 0 {
			literal(rest)
			return nil
		}
		if i > 0 && rest[i-1] == '$' {
			literal(rest[:i-1] + "${")
			rest = rest[i+2:]
			continue
		}
		literal(rest[:i])

		end := strings.IndexByte(rest[i+2:], '}')
		if end < 0 {
			return fmt.Errorf("%w: unterminated reference in %q", ErrBadPlaceholder, tmpl)
		}
		r, err := parseRef(rest[i+2 : i+2+end])
		if err != nil {
			return fmt.Errorf("%w in %q", err, tmpl)
		}
		if err := ref(r); err != nil {
			return err
		}
		rest = rest[i+2+end+1:]
	}
}

func parseRef(body string) (Ref, error) {
	scope, name, found := strings.Cut(body, ":")
	if !found {
		scope, name = ScopeParam, body
	}
	switch scope {
	case ScopeParam, ScopeCheckpoint, ScopeEnv:
	default:
		return Ref{}, fmt.Errorf("%w: unknown scope %q", ErrBadPlaceholder, scope)
	}
	if name == "" || strings.ContainsAny(name, " ${") {
		return Ref{}, fmt.Errorf("%w: bad name %q", ErrBadPlaceholder, name)
	}
	return Ref{Scope: scope, Name: name}, nil
}
