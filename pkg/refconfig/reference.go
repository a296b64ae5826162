package refconfig

import (
	"fmt"
	"strings"
)

const (
	// GenericRecordColumn is the column through which a record may point at a record of any table.
	// A reference using it is resolved together with GenericTableColumn.
	GenericRecordColumn = "record_id"

	// GenericTableColumn identifies the table of the record addressed by GenericRecordColumn.
	GenericTableColumn = "ad_table_id"
)

// Reference describes one column of its line's table that may point at records of another table.
//
// E.g. a reference on the line of c_invoice with ReferencingColumn c_order_id and ReferencedTable
// c_order says that c_invoice records reference c_order records via c_invoice.c_order_id. If
// ReferencedLine is not nil, c_order has its own line in the same Config and the traversal
// continues with that line's references.
type Reference struct {
	referencingTable  string
	referencingColumn string
	referencedTable   string
	linked            bool
	referencedLine    *Line
}

// ReferencingTable is the table of the line that owns this reference.
func (r *Reference) ReferencingTable() string {
	return r.referencingTable
}

func (r *Reference) ReferencingColumn() string {
	return r.referencingColumn
}

func (r *Reference) ReferencedTable() string {
	return r.referencedTable
}

// ReferencedLine returns the line of the referenced table or nil if that table has no line in
// the configuration this reference belongs to.
func (r *Reference) ReferencedLine() *Line {
	return r.referencedLine
}

// IsPolymorphic reports whether the reference goes through GenericRecordColumn, in which case the
// referenced table is chosen per record by GenericTableColumn.
func (r *Reference) IsPolymorphic() bool {
	return strings.EqualFold(r.referencingColumn, GenericRecordColumn)
}

// Descriptor returns the plain table/column triple of this reference.
func (r *Reference) Descriptor() TableReferenceDescriptor {
	return TableReferenceDescriptor{
		ReferencingTable:  r.referencingTable,
		ReferencingColumn: r.referencingColumn,
		ReferencedTable:   r.referencedTable,
	}
}

// Equal compares the referenced table, the referencing column and the owning line's table,
// ignoring case.
func (r *Reference) Equal(other *Reference) bool {
	if r == nil || other == nil {
		return r == other
	}

	return strings.EqualFold(r.referencedTable, other.referencedTable) &&
		strings.EqualFold(r.referencingColumn, other.referencingColumn) &&
		strings.EqualFold(r.referencingTable, other.referencingTable)
}

func (r *Reference) String() string {
	return fmt.Sprintf("%s.%s->%s", r.referencingTable, r.referencingColumn, r.referencedTable)
}

// TableReferenceDescriptor names an edge between two tables without belonging to a Config.
// Consistency checks report missing edges with it, usually in lower case.
type TableReferenceDescriptor struct {
	ReferencingTable  string
	ReferencingColumn string
	ReferencedTable   string
}

// Validate returns ErrEmptyName if any of the names is blank.
func (d TableReferenceDescriptor) Validate() error {
	if isBlank(d.ReferencingTable) || isBlank(d.ReferencingColumn) || isBlank(d.ReferencedTable) {
		return fmt.Errorf("%w: %s", ErrEmptyName, d)
	}
	return nil
}

// Matches reports whether the reference describes the same edge, ignoring case.
func (d TableReferenceDescriptor) Matches(r *Reference) bool {
	return r != nil &&
		strings.EqualFold(d.ReferencingTable, r.referencingTable) &&
		strings.EqualFold(d.ReferencingColumn, r.referencingColumn) &&
		strings.EqualFold(d.ReferencedTable, r.referencedTable)
}

func (d TableReferenceDescriptor) String() string {
	return fmt.Sprintf("%s.%s->%s", d.ReferencingTable, d.ReferencingColumn, d.ReferencedTable)
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func isBlank(name string) bool {
	return strings.TrimSpace(name) == ""
}
