// Package overrides models the ordered key=value assignments handed to the trainer.
//
// A token has the shape
//
//	[+|++|~]key.path=value
//
// where the key path is dot- or slash-separated. A plain token overrides a key the
// trainer's base configuration already has, "+" introduces a new key, "++" adds or
// overrides, and "~" removes a key. A value holding a top-level comma is a sweep;
// the trainer expands it, the launcher never does.
package overrides

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Kind says how an override treats the key it names.
type Kind int

const (
	Assign Kind = iota
	Add
	ForceAdd
	Delete
)

var kindPrefix = map[Kind]string{
	Assign:   "",
	Add:      "+",
	ForceAdd: "++",
	Delete:   "~",
}

func (k Kind) String() string {
	switch k {
	case Assign:
		return "assign"
	case Add:
		return "add"
	case ForceAdd:
		return "force-add"
	case Delete:
		return "delete"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

var (
	// ErrInvalidKey is returned for key paths that the trainer could not address.
	ErrInvalidKey = errors.New("invalid override key")
	// ErrMissingValue is returned when a non-delete token has no "=".
	ErrMissingValue = errors.New("override has no value")
)

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9_@%\-]+([./][A-Za-z0-9_@%\-]+)*$`)

// Override is one key=value assignment.
type Override struct {
	Kind  Kind
	Key   string
	Value string
}

// New returns an Assign override after validating its key.
func New(key, value string) (Override, error) {
	o := Override{Kind: Assign, Key: key, Value: value}
	if len(key) > 0 && (key[0] == '+' || key[0] == '~') {
		kind, bare := splitKind(key)
		o.Kind, o.Key = kind, bare
	}
	if err := ValidateKey(o.Key); err != nil {
		return Override{}, err
	}
	return o, nil
}

// Parse reads a single command-line token such as "+seed=7" or "~scenario.observer".
// Empty values are accepted and passed through as-is.
func Parse(token string) (Override, error) {
	kind, rest := splitKind(token)

	key, value, found := strings.Cut(rest, "=")
	if !found && kind != Delete {
		return Override{}, fmt.Errorf("%w: %q", ErrMissingValue, token)
	}
	if err := ValidateKey(key); err != nil {
		return Override{}, err
	}
	return Override{Kind: kind, Key: key, Value: value}, nil
}

func splitKind(token string) (Kind, string) {
	switch {
	case strings.HasPrefix(token, "++"):
		return ForceAdd, token[2:]
	case strings.HasPrefix(token, "+"):
		return Add, token[1:]
	case strings.HasPrefix(token, "~"):
		return Delete, token[1:]
	default:
		return Assign, token
	}
}

// ValidateKey reports whether key is a well formed key path.
func ValidateKey(key string) error {
	if !keyPattern.MatchString(key) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}

// String renders the override as a trainer argument.
func (o Override) String() string {
	if o.Kind == Delete && o.Value == "" {
		return kindPrefix[o.Kind] + o.Key
	}
	return kindPrefix[o.Kind] + o.Key + "=" + o.Value
}

// Prefix returns the first segment of the key path, the logical group the
// override belongs to ("scenario", "simulator", "initial_conditions", ...).
func (o Override) Prefix() string {
	if i := strings.IndexAny(o.Key, "./"); i >= 0 {
		return o.Key[:i]
	}
	return o.Key
}

// IsSweep reports whether the value lists several alternatives.
func (o Override) IsSweep() bool {
	return len(o.SweepValues()) > 1
}

// SweepValues splits the value on commas that are not nested inside brackets,
// braces, parentheses or quotes. A non-sweep value yields a single element.
func (o Override) SweepValues() []string {
	var (
		out   []string
		depth int
		quote rune
		start int
	)
	for i, r := range o.Value {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"':
			quote = r
		case r == '[' || r == '{' || r == '(':
			depth++
		case r == ']' || r == '}' || r == ')':
			if depth > 0 {
				depth--
			}
		case r == ',' && depth == 0:
			out = append(out, o.Value[start:i])
			start = i + 1
		}
	}
	return append(out, o.Value[start:])
}
