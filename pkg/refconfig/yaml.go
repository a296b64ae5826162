package refconfig

import (
	"fmt"
	"os"

	"sigs.k8s.io/yaml"
)

type document struct {
	Lines []lineDocument `json:"lines"`
}

type lineDocument struct {
	Table      string              `json:"table"`
	References []referenceDocument `json:"references,omitempty"`
}

type referenceDocument struct {
	Column string `json:"column"`
	Table  string `json:"table"`
	Linked bool   `json:"linked,omitempty"`
}

// Parse reads a configuration from its YAML (or JSON) form:
//
//	lines:
//	  - table: c_invoice
//	    references:
//	      - column: c_order_id
//	        table: c_order
//	  - table: c_order
func Parse(data []byte) (*Config, error) {
	var doc document
	if err := yaml.UnmarshalStrict(data, &doc); err != nil {
		return nil, fmt.Errorf("parse partitioner config: %w", err)
	}

	b := NewBuilder()
	for _, line := range doc.Lines {
		b.Line(line.Table)
		for _, ref := range line.References {
			if ref.Linked {
				b.LinkedRef(ref.Column, ref.Table)
			} else {
				b.Ref(ref.Column, ref.Table)
			}
		}
	}
	return b.Build()
}

func ParseFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read partitioner config: %w", err)
	}
	return Parse(data)
}

// Marshal renders the configuration in the form understood by Parse.
func Marshal(c *Config) ([]byte, error) {
	doc := document{Lines: make([]lineDocument, 0, len(c.lines))}
	for _, line := range c.lines {
		ld := lineDocument{Table: line.table}
		for _, ref := range line.references {
			ld.References = append(ld.References, referenceDocument{
				Column: ref.referencingColumn,
				Table:  ref.referencedTable,
				Linked: ref.linked,
			})
		}
		doc.Lines = append(doc.Lines, ld)
	}
	return yaml.Marshal(doc)
}
