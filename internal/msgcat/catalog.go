package msgcat

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"
	"sync"
	"text/template"

	yaml "gopkg.in/yaml.v3"
)

//go:embed messages.en.yaml
var defaultFiles embed.FS

const defaultFile = "messages.en.yaml"

type entry struct {
	tpl    *template.Template
	origin string // file the text came from, for error messages
}

// Catalog holds message templates keyed by dotted YAML paths ("status.turn.white").
// Every template is parsed at load time, so a broken override fails New instead of a request.
type Catalog struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// New loads the embedded English messages, then every *.yaml / *.yml file of overrideDir in
// name order. Override files may not define the same key twice.
func New(overrideDir string) (*Catalog, error) {
	c := &Catalog{entries: make(map[string]entry)}
	if err := c.loadLayer(defaultFiles, []string{defaultFile}, false); err != nil {
		return nil, fmt.Errorf("load embedded messages: %w", err)
	}
	dir := strings.TrimSpace(overrideDir)
	if dir == "" {
		return c, nil
	}
	names, err := yamlFiles(dir)
	if err != nil {
		return nil, err
	}
	if err := c.loadLayer(os.DirFS(dir), names, true); err != nil {
		return nil, err
	}
	return c, nil
}

func yamlFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read messages dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(path.Ext(e.Name())) {
		case ".yaml", ".yml":
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// loadLayer parses the files of one layer and applies them over the current entries.
// With strict set, a key defined by two files of the layer is an error.
func (c *Catalog) loadLayer(fsys fs.FS, names []string, strict bool) error {
	layer := make(map[string]entry)
	for _, name := range names {
		raw, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		flat, err := flatten(raw)
		if err != nil {
			return fmt.Errorf("parse %s: %w", name, err)
		}
		for key, text := range flat {
			if prev, ok := layer[key]; ok && strict {
				return fmt.Errorf("duplicate override key %q in %s and %s", key, prev.origin, name)
			}
			tpl, err := template.New(key).Option("missingkey=error").Parse(text)
			if err != nil {
				return fmt.Errorf("template %s in %s: %w", key, name, err)
			}
			layer[key] = entry{tpl: tpl, origin: name}
		}
	}

	c.mu.Lock()
	for key, e := range layer {
		c.entries[key] = e
	}
	c.mu.Unlock()
	return nil
}

func flatten(raw []byte) (map[string]string, error) {
	var root map[string]any
	if err := yaml.Unmarshal(raw, &root); err != nil {
		return nil, err
	}
	out := make(map[string]string)
	if err := flattenInto(root, "", out); err != nil {
		return nil, err
	}
	return out, nil
}

func flattenInto(src any, prefix string, out map[string]string) error {
	switch v := src.(type) {
	case map[string]any:
		for k, child := range v {
			key := k
			if prefix != "" {
				key = prefix + "." + k
			}
			if err := flattenInto(child, key, out); err != nil {
				return err
			}
		}
	case string:
		if prefix == "" {
			return errors.New("string value without key")
		}
		if strings.TrimSpace(v) != "" {
			out[prefix] = v
		}
	case nil:
	default:
		return fmt.Errorf("unsupported value at %s: %T", prefix, v)
	}
	return nil
}

func (c *Catalog) lookup(key string) (entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[strings.TrimSpace(key)]
	return e, ok
}

// Render executes the template stored under key. Unknown keys and missing data fields are errors.
func (c *Catalog) Render(key string, data any) (string, error) {
	e, ok := c.lookup(key)
	if !ok {
		return "", fmt.Errorf("message not found: %s", key)
	}
	var b strings.Builder
	if err := e.tpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render %s (%s): %w", key, e.origin, err)
	}
	return b.String(), nil
}

// RenderOr is Render with def returned on any error, including a nil catalog.
func (c *Catalog) RenderOr(key string, data any, def string) string {
	if c == nil {
		return def
	}
	out, err := c.Render(key, data)
	if err != nil {
		return def
	}
	return out
}

func (c *Catalog) Has(key string) bool {
	if c == nil {
		return false
	}
	_, ok := c.lookup(key)
	return ok
}

// Keys lists every key in sorted order.
func (c *Catalog) Keys() []string {
	c.mu.RLock()
	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	c.mu.RUnlock()
	sort.Strings(keys)
	return keys
}
