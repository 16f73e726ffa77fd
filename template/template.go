// Package template is the Recipe/Template catalogue: named, persisted
// presets for a job's encoding parameters (spec.md §3 "Recipe (Template)",
// §6 `template`/`template add`/`template del`). Grounded on the same
// whole-file JSON persistence convention as cachestore/history.
package template

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/mirrobot/mirrobot/config"
	"github.com/mirrobot/mirrobot/encode"
	"github.com/xeipuuv/gojsonschema"
)

// catalogueSchema rejects an on-disk templates.json that isn't even
// shaped like a key→object map, the same way the teacher's
// handlers/json_schema.go compiles a schema once up front and validates
// every inbound payload against it before unmarshalling.
var catalogueSchema = mustCompileSchema(`{
	"type": "object",
	"additionalProperties": {
		"type": "object",
		"required": ["res", "crf", "audio", "mode", "font", "margin"]
	}
}`)

func mustCompileSchema(text string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(text))
	if err != nil {
		panic(fmt.Sprintf("template: invalid catalogue schema: %s", err))
	}
	return schema
}

// Template is one named recipe preset (spec.md §6 file-format: "object
// keyed by template key → {name, res, res_crf?, crf, audio, mode, font,
// margin}").
type Template struct {
	Name string `json:"name"`

	Resolutions []config.Resolution               `json:"res"`
	ResolutionCRF map[config.Resolution]int        `json:"res_crf,omitempty"`
	CRF           int                              `json:"crf"`
	Audio         encode.AudioProfile              `json:"audio"`
	Mode          encode.Mode                      `json:"mode"`
	FontSize      int                              `json:"font"`
	Margin        int                              `json:"margin"`
}

// CRFFor resolves the per-resolution CRF value a Job should capture: the
// resolution-specific override if the template carries one, else the
// template's flat CRF.
func (t Template) CRFFor(r config.Resolution) int {
	if t.ResolutionCRF != nil {
		if v, ok := t.ResolutionCRF[r]; ok {
			return v
		}
	}
	return t.CRF
}

// Catalogue is the in-memory, disk-backed set of templates keyed by their
// short key (e.g. "720hevc"), persisted whole-file like the Raw Cache
// registry (spec.md §5 "single process instance" policy).
type Catalogue struct {
	mu        sync.Mutex
	path      string
	templates map[string]Template
}

// Open loads path, creating an empty catalogue if it does not yet exist.
func Open(path string) (*Catalogue, error) {
	c := &Catalogue{path: path, templates: map[string]Template{}}
	if err := c.load(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Catalogue) load() error {
	data, err := os.ReadFile(c.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("template: reading catalogue: %w", err)
	}
	result, err := catalogueSchema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("template: validating catalogue: %w", err)
	}
	if !result.Valid() {
		return fmt.Errorf("template: catalogue %s does not match the expected shape: %v", c.path, result.Errors())
	}
	var templates map[string]Template
	if err := json.Unmarshal(data, &templates); err != nil {
		return fmt.Errorf("template: parsing catalogue: %w", err)
	}
	c.templates = templates
	return nil
}

func (c *Catalogue) saveLocked() error {
	data, err := json.MarshalIndent(c.templates, "", "  ")
	if err != nil {
		return fmt.Errorf("template: encoding catalogue: %w", err)
	}
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("template: writing catalogue: %w", err)
	}
	return os.Rename(tmp, c.path)
}

// Save inserts or overwrites key and persists the catalogue (`template
// add`).
func (c *Catalogue) Save(key string, t Template) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.templates[key] = t
	return c.saveLocked()
}

// Delete removes key, reporting whether it was present (`template del
// <key>`).
func (c *Catalogue) Delete(key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.templates[key]; !ok {
		return false, nil
	}
	delete(c.templates, key)
	return true, c.saveLocked()
}

// Get returns the template stored under key, if any.
func (c *Catalogue) Get(key string) (Template, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.templates[key]
	return t, ok
}

// List returns every key → Template pair, for the `template` picker.
func (c *Catalogue) List() map[string]Template {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]Template, len(c.templates))
	for k, v := range c.templates {
		out[k] = v
	}
	return out
}
