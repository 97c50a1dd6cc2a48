package orm

import (
	"fmt"
	"strings"
)

// ColumnKind is the abstract storage type of a column.
type ColumnKind int

const (
	KindInt ColumnKind = iota + 1
	KindFloat
	KindBool
	KindString
)

func (k ColumnKind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	default:
		return fmt.Sprintf("ColumnKind(%d)", int(k))
	}
}

// Valid reports whether k is one of the declared kinds.
func (k ColumnKind) Valid() bool {
	return k >= KindInt && k <= KindString
}

// ColumnDef describes one non-key column of a table. References, when
// set, ties the column to another table's key.
type ColumnDef struct {
	Name       string
	Kind       ColumnKind
	Nullable   bool
	References *ForeignKey
}

// ForeignKey references another table's key. Rows referencing a deleted
// row are deleted with it.
type ForeignKey struct {
	Table  string
	Column string
}

// TableDef describes a table with a single integer primary key.
// When SerialPK is false the key is supplied by the caller on INSERT;
// References then optionally ties it to a parent table.
type TableDef struct {
	Name       string
	PK         string
	SerialPK   bool
	Columns    []ColumnDef
	References *ForeignKey
}

// CreateTableSQL renders the CREATE TABLE statement for t.
func CreateTableSQL(d Dialect, t TableDef) string {
	qi := d.QuoteIdent

	defs := make([]string, 0, len(t.Columns)+2)
	if t.SerialPK {
		defs = append(defs, d.SerialPrimaryKey(t.PK))
	} else {
		defs = append(defs, fmt.Sprintf("%s %s NOT NULL PRIMARY KEY", qi(t.PK), d.ColumnType(KindInt)))
	}
	for _, c := range t.Columns {
		def := qi(c.Name) + " " + d.ColumnType(c.Kind)
		if !c.Nullable {
			def += " NOT NULL"
		}
		defs = append(defs, def)
	}
	fk := func(column string, ref *ForeignKey) string {
		return fmt.Sprintf(
			"FOREIGN KEY (%s) REFERENCES %s (%s) ON DELETE CASCADE",
			qi(column), qi(ref.Table), qi(ref.Column),
		)
	}
	if t.References != nil {
		defs = append(defs, fk(t.PK, t.References))
	}
	for _, c := range t.Columns {
		if c.References != nil {
			defs = append(defs, fk(c.Name, c.References))
		}
	}

	return fmt.Sprintf("CREATE TABLE %s (%s)", qi(t.Name), strings.Join(defs, ", "))
}

// DropTableSQL renders DROP TABLE IF EXISTS for table.
func DropTableSQL(d Dialect, table string) string {
	return "DROP TABLE IF EXISTS " + d.QuoteIdent(table)
}
