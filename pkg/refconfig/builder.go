package refconfig

import (
	"errors"
	"fmt"
)

type refSpec struct {
	column string
	table  string
	linked bool
}

type lineSpec struct {
	table string
	refs  []refSpec
}

// Builder assembles a Config. Problems are collected while building and reported by Build, so
// calls can be chained:
//
//	cfg, err := refconfig.NewBuilder().
//		Line("c_invoice").
//		Ref("c_order_id", "c_order").
//		Line("c_order").
//		Build()
type Builder struct {
	lines []*lineSpec
	errs  []error
}

func NewBuilder() *Builder {
	return &Builder{}
}

// Line starts a new line for the given table. Following Ref calls add references to it.
func (b *Builder) Line(table string) *Builder {
	if isBlank(table) {
		b.errs = append(b.errs, fmt.Errorf("%w: line without table name", ErrEmptyName))
		return b
	}
	if b.find(table) != nil {
		b.errs = append(b.errs, fmt.Errorf("%w: %s", ErrDuplicateLine, table))
		return b
	}
	b.lines = append(b.lines, &lineSpec{table: table})
	return b
}

// Ref adds a reference to the current line. It is linked to the line of referencedTable if the
// built configuration has one.
func (b *Builder) Ref(column, referencedTable string) *Builder {
	return b.addRef(column, referencedTable, false)
}

// LinkedRef is like Ref, but Build fails with ErrMissingLine unless the configuration also has a
// line for referencedTable.
func (b *Builder) LinkedRef(column, referencedTable string) *Builder {
	return b.addRef(column, referencedTable, true)
}

func (b *Builder) addRef(column, referencedTable string, linked bool) *Builder {
	if len(b.lines) == 0 {
		b.errs = append(b.errs, fmt.Errorf("%w: %s->%s", ErrRefWithoutLine, column, referencedTable))
		return b
	}
	b.appendRef(b.lines[len(b.lines)-1].table, refSpec{column: column, table: referencedTable, linked: linked})
	return b
}

func (b *Builder) appendRef(table string, ref refSpec) {
	line := b.find(table)
	if line == nil {
		line = &lineSpec{table: table}
		b.lines = append(b.lines, line)
	}

	if isBlank(ref.column) || isBlank(ref.table) {
		b.errs = append(b.errs, fmt.Errorf("%w: reference on %s", ErrEmptyName, table))
		return
	}
	for _, existing := range line.refs {
		if normalize(existing.column) == normalize(ref.column) && normalize(existing.table) == normalize(ref.table) {
			b.errs = append(b.errs, fmt.Errorf("%w: %s.%s->%s", ErrDuplicateReference, table, ref.column, ref.table))
			return
		}
	}
	line.refs = append(line.refs, ref)
}

func (b *Builder) find(table string) *lineSpec {
	key := normalize(table)
	for _, line := range b.lines {
		if normalize(line.table) == key {
			return line
		}
	}
	return nil
}

// Build returns the configuration or all the structural errors found, joined.
func (b *Builder) Build() (*Config, error) {
	errs := append([]error(nil), b.errs...)

	cfg := &Config{
		lines:   make([]*Line, 0, len(b.lines)),
		byTable: make(map[string]*Line, len(b.lines)),
	}
	for _, spec := range b.lines {
		line := &Line{table: spec.table}
		cfg.lines = append(cfg.lines, line)
		cfg.byTable[normalize(spec.table)] = line
	}

	for i, spec := range b.lines {
		line := cfg.lines[i]
		line.references = make([]*Reference, 0, len(spec.refs))
		for _, rs := range spec.refs {
			target := cfg.byTable[normalize(rs.table)]
			if rs.linked && target == nil {
				errs = append(errs, fmt.Errorf("%w: %s.%s->%s", ErrMissingLine, spec.table, rs.column, rs.table))
				continue
			}
			line.references = append(line.references, &Reference{
				referencingTable:  spec.table,
				referencingColumn: rs.column,
				referencedTable:   rs.table,
				linked:            rs.linked,
				referencedLine:    target,
			})
		}
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cfg, nil
}

// MustBuild is like Build but panics on error.
func (b *Builder) MustBuild() *Config {
	cfg, err := b.Build()
	if err != nil {
		panic(err)
	}
	return cfg
}
