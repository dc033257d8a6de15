package preset

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

//go:embed builtin/*.yaml
var builtinFS embed.FS

// Catalog is the set of presets known to the launcher, keyed by name.
type Catalog struct {
	presets map[string]*Preset
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{presets: make(map[string]*Preset)}
}

// LoadCatalog reads the built-in presets and then every *.yaml or *.yml file in
// dirs. A preset from a later source replaces an earlier one with the same name.
// Directories that do not exist are skipped.
func LoadCatalog(dirs ...string) (*Catalog, error) {
	c := NewCatalog()
	if err := c.loadFS(builtinFS, "builtin", "builtin:"); err != nil {
		return nil, err
	}
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		info, err := os.Stat(dir)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reading presets directory: %w", err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("presets path %s is not a directory", dir)
		}
		if err := c.loadFS(os.DirFS(dir), ".", dir+string(filepath.Separator)); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Catalog) loadFS(fsys fs.FS, root, sourcePrefix string) error {
	entries, err := fs.ReadDir(fsys, root)
	if err != nil {
		return fmt.Errorf("listing presets in %s: %w", sourcePrefix, err)
	}
	for _, e := range entries {
		ext := path.Ext(e.Name())
		if e.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		data, err := fs.ReadFile(fsys, path.Join(root, e.Name()))
		if err != nil {
			return fmt.Errorf("reading preset %s%s: %w", sourcePrefix, e.Name(), err)
		}
		p, err := Parse(data, sourcePrefix+e.Name())
		if err != nil {
			return err
		}
		c.Add(p)
	}
	return nil
}

// Add registers p, replacing any preset with the same name.
func (c *Catalog) Add(p *Preset) {
	c.presets[p.Name] = p
}

// Get returns the named preset.
func (c *Catalog) Get(name string) (*Preset, error) {
	p, ok := c.presets[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (known: %s)", ErrUnknownPreset, name, strings.Join(c.Names(), ", "))
	}
	return p, nil
}

// Names returns the preset names in sorted order.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.presets))
	for name := range c.presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// List returns the presets sorted by name.
func (c *Catalog) List() []*Preset {
	out := make([]*Preset, 0, len(c.presets))
	for _, name := range c.Names() {
		out = append(out, c.presets[name])
	}
	return out
}
