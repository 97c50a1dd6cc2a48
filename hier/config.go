package hier

import "github.com/mickamy/tptmap/orm"

// Kind is the storage type of a field.
type Kind = orm.ColumnKind

const (
	Int    = orm.KindInt
	Float  = orm.KindFloat
	Bool   = orm.KindBool
	String = orm.KindString
)

// Field describes one declared field of a type, detail or association.
// Column defaults to the snake_case form of Name.
type Field struct {
	Name     string
	Column   string
	Kind     Kind
	Nullable bool
}

// TypeNode is one node of an inheritance tree. A node with an empty
// Parent is a root and owns its own id space. Table defaults to the
// snake_case plural of Name.
type TypeNode struct {
	Name     string
	Parent   string
	Table    string
	Fields   []Field
	Abstract bool
}

// DetailRule attaches an owned 1:1 detail record to a concrete type.
// The record lives in its own table keyed by the owner's id.
type DetailRule struct {
	Owner  string
	Name   string
	Table  string
	Fields []Field
}

// AssociationRule declares a record kind that links to one of two
// disjoint sets of instances through two nullable foreign keys.
// FieldA references instances of UniverseA (or its descendants) and
// FieldB those of UniverseB.
type AssociationRule struct {
	Name      string
	Table     string
	FieldA    string
	FieldB    string
	UniverseA string
	UniverseB string
}

// CollectionRule gives instances of Owner (or its descendants) a
// many-to-many collection of the records of Association. Each member is
// one (owner, record) row of a join table whose columns are the
// snake_case owner and association names suffixed with _id.
type CollectionRule struct {
	Name        string
	Table       string
	Owner       string
	Association string
}

// Config enumerates the whole model up front. It is passed once to
// Configure.
type Config struct {
	Types        []TypeNode
	Details      []DetailRule
	Associations []AssociationRule
	Collections  []CollectionRule
}
