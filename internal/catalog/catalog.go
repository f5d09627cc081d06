// Package catalog holds the fixed template catalog: template ids mapped
// to display metadata and the ordered field set each template requires
// from the field-collection phase.
package catalog

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Catalog is the loaded template catalog. Immutable after load.
type Catalog struct {
	Templates map[string]Template `yaml:"templates"`
}

// Template is one catalog entry.
type Template struct {
	Name           string    `yaml:"name" json:"name"`
	Description    string    `yaml:"description" json:"description,omitempty"`
	UseCase        string    `yaml:"use_case" json:"use_case,omitempty"`
	RequiredFields FieldList `yaml:"required_fields" json:"required_fields,omitempty"`
}

// FieldDef declares one required field and its value type
// ("string", "number", "list", "images").
type FieldDef struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// FieldList preserves the authored field order: collection prompts the
// user field by field in exactly this order.
type FieldList []FieldDef

// UnmarshalYAML decodes a YAML mapping of field id to type into an
// ordered list.
func (f *FieldList) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.MappingNode {
		return fmt.Errorf("required_fields: expected mapping, got %v", n.Kind)
	}
	fields := make(FieldList, 0, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		var d FieldDef
		if err := n.Content[i].Decode(&d.ID); err != nil {
			return err
		}
		if err := n.Content[i+1].Decode(&d.Type); err != nil {
			return err
		}
		fields = append(fields, d)
	}
	*f = fields
	return nil
}

// Summary is the listing shape served over the API.
type Summary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	UseCase     string `json:"use_case,omitempty"`
}

// Load reads and parses a catalog file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a catalog from YAML bytes.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if len(c.Templates) == 0 {
		return nil, fmt.Errorf("parse catalog: no templates defined")
	}
	return &c, nil
}

// Get returns the template for id, if present.
func (c *Catalog) Get(id string) (Template, bool) {
	t, ok := c.Templates[id]
	return t, ok
}

// IDs returns all template ids in sorted order.
func (c *Catalog) IDs() []string {
	ids := make([]string, 0, len(c.Templates))
	for id := range c.Templates {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// List returns sorted template summaries for the listing endpoint.
func (c *Catalog) List() []Summary {
	out := make([]Summary, 0, len(c.Templates))
	for _, id := range c.IDs() {
		t := c.Templates[id]
		out = append(out, Summary{ID: id, Name: t.Name, Description: t.Description, UseCase: t.UseCase})
	}
	return out
}
