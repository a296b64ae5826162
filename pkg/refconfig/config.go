// Package refconfig models which tables and columns carry relationships between records.
//
// A Config consists of one Line per table, each Line listing the References that go out of its
// table. Values of this package are immutable once built; Augment returns a new Config instead of
// changing the receiver, so a Config may be shared between goroutines freely.
package refconfig

import (
	"strings"
)

// Line declares the outgoing references of one table.
type Line struct {
	table      string
	references []*Reference
}

func (l *Line) Table() string {
	return l.table
}

// References returns the references of the line in declaration order.
func (l *Line) References() []*Reference {
	refs := make([]*Reference, len(l.references))
	copy(refs, l.references)
	return refs
}

// Reference returns the line's reference for the given column and referenced table, or nil.
// Names are compared ignoring case.
func (l *Line) Reference(column, referencedTable string) *Reference {
	for _, ref := range l.references {
		if strings.EqualFold(ref.referencingColumn, column) && strings.EqualFold(ref.referencedTable, referencedTable) {
			return ref
		}
	}
	return nil
}

// Equal compares table names ignoring case and requires both lines to hold equal references.
func (l *Line) Equal(other *Line) bool {
	if l == nil || other == nil {
		return l == other
	}
	if !strings.EqualFold(l.table, other.table) || len(l.references) != len(other.references) {
		return false
	}
	for _, ref := range l.references {
		if other.Reference(ref.referencingColumn, ref.referencedTable) == nil {
			return false
		}
	}
	return true
}

func (l *Line) String() string {
	var sb strings.Builder
	sb.WriteString(l.table)
	sb.WriteString("[")
	for i, ref := range l.references {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(ref.referencingColumn)
		sb.WriteString("->")
		sb.WriteString(ref.referencedTable)
	}
	sb.WriteString("]")
	return sb.String()
}

// Config is an immutable set of lines, at most one per table.
type Config struct {
	lines   []*Line
	byTable map[string]*Line
}

// Lines returns the lines in declaration order.
func (c *Config) Lines() []*Line {
	lines := make([]*Line, len(c.lines))
	copy(lines, c.lines)
	return lines
}

// Line returns the line of the given table (ignoring case) or nil.
func (c *Config) Line(table string) *Line {
	return c.byTable[normalize(table)]
}

func (c *Config) IsEmpty() bool {
	return len(c.lines) == 0
}

// Equal reports whether both configurations have equal lines for the same tables.
func (c *Config) Equal(other *Config) bool {
	if c == nil || other == nil {
		return c == other
	}
	if len(c.lines) != len(other.lines) {
		return false
	}
	for _, line := range c.lines {
		if !line.Equal(other.Line(line.table)) {
			return false
		}
	}
	return true
}

func (c *Config) String() string {
	parts := make([]string, 0, len(c.lines))
	for _, line := range c.lines {
		parts = append(parts, line.String())
	}
	return strings.Join(parts, " ")
}

// Augment returns a configuration that additionally contains the given edge. If the referencing
// table already has a line, the reference is appended to it, otherwise a new line with that single
// reference is appended. The boolean is false, and the receiver itself is returned, when the
// configuration already declares the edge.
func (c *Config) Augment(edge TableReferenceDescriptor) (*Config, bool, error) {
	if err := edge.Validate(); err != nil {
		return nil, false, err
	}

	if line := c.Line(edge.ReferencingTable); line != nil {
		if line.Reference(edge.ReferencingColumn, edge.ReferencedTable) != nil {
			return c, false, nil
		}
	}

	b := c.toBuilder()
	b.appendRef(edge.ReferencingTable, refSpec{
		column: edge.ReferencingColumn,
		table:  edge.ReferencedTable,
	})

	augmented, err := b.Build()
	if err != nil {
		return nil, false, err
	}
	return augmented, true, nil
}

func (c *Config) toBuilder() *Builder {
	b := NewBuilder()
	for _, line := range c.lines {
		b.Line(line.table)
		for _, ref := range line.references {
			b.addRef(ref.referencingColumn, ref.referencedTable, ref.linked)
		}
	}
	return b
}
