// Package hier maps single-rooted class hierarchies onto one table per
// type. Every instance is split across the tables of its ancestor chain,
// all rows sharing the id generated by the root table, and is rebuilt by
// joining those rows back together. Owned 1:1 details and two-sided
// association records are stored in tables of their own.
package hier

import (
	"strings"

	"github.com/mickamy/tptmap/internal/naming"
)

const pkColumn = "id"

type node struct {
	name     string
	table    string
	abstract bool
	fields   []Field
	parent   *node
	children []*node
	root     *node
	depth    int
	detail   *detail
}

// chain returns the ancestors of n from the root down to n itself.
func (n *node) chain() []*node {
	out := make([]*node, n.depth+1)
	for cur := n; cur != nil; cur = cur.parent {
		out[cur.depth] = cur
	}
	return out
}

// subtree returns n and all of its descendants in preorder.
func (n *node) subtree() []*node {
	out := []*node{n}
	for _, c := range n.children {
		out = append(out, c.subtree()...)
	}
	return out
}

// isA reports whether n is anc or descends from it.
func (n *node) isA(anc *node) bool {
	for cur := n; cur != nil; cur = cur.parent {
		if cur == anc {
			return true
		}
	}
	return false
}

// allFields returns the own and inherited fields of n, root first.
func (n *node) allFields() []Field {
	var out []Field
	for _, c := range n.chain() {
		out = append(out, c.fields...)
	}
	return out
}

type detail struct {
	name   string
	table  string
	owner  *node
	fields []Field
}

type association struct {
	name  string
	table string
	colA  string
	colB  string
	a     *node
	b     *node
}

type collection struct {
	name      string
	table     string
	owner     *node
	assoc     *association
	ownerCol  string
	recordCol string
}

type side int

const (
	sideNone side = iota
	sideA
	sideB
)

// sideOf reports which foreign key of the association points at
// instances of n.
func (a *association) sideOf(n *node) side {
	switch {
	case n.isA(a.a):
		return sideA
	case n.isA(a.b):
		return sideB
	default:
		return sideNone
	}
}

func (a *association) column(s side) string {
	if s == sideA {
		return a.colA
	}
	return a.colB
}

// Mapper holds a validated storage layout. It is immutable after
// Configure and safe for concurrent use.
type Mapper struct {
	nodes      map[string]*node
	order      []*node
	details    []*detail
	assocs     map[string]*association
	assocOrder []*association
	colls      map[string]*collection
	collOrder  []*collection
}

// Configure validates cfg and builds the storage layout. All failures
// wrap ErrConfig.
func Configure(cfg Config) (*Mapper, error) {
	if len(cfg.Types) == 0 {
		return nil, configErr("no types declared")
	}

	m := &Mapper{
		nodes:  make(map[string]*node, len(cfg.Types)),
		assocs: make(map[string]*association, len(cfg.Associations)),
		colls:  make(map[string]*collection, len(cfg.Collections)),
	}

	parents := make(map[string]string, len(cfg.Types))
	declared := make([]*node, 0, len(cfg.Types))
	for _, t := range cfg.Types {
		if t.Name == "" {
			return nil, configErr("type with empty name")
		}
		if _, dup := m.nodes[t.Name]; dup {
			return nil, configErr("duplicate type %q", t.Name)
		}
		fields, err := resolveFields("type "+t.Name, t.Fields)
		if err != nil {
			return nil, err
		}
		n := &node{
			name:     t.Name,
			table:    t.Table,
			abstract: t.Abstract,
			fields:   fields,
		}
		if n.table == "" {
			n.table = naming.TableName(t.Name)
		}
		m.nodes[t.Name] = n
		parents[t.Name] = t.Parent
		declared = append(declared, n)
	}

	for _, n := range declared {
		p := parents[n.name]
		if p == "" {
			continue
		}
		if _, ok := m.nodes[p]; !ok {
			return nil, configErr("type %q has unknown parent %q", n.name, p)
		}
	}
	if err := checkCycles(declared, parents); err != nil {
		return nil, err
	}

	var roots []*node
	for _, n := range declared {
		if p := parents[n.name]; p != "" {
			n.parent = m.nodes[p]
			n.parent.children = append(n.parent.children, n)
		} else {
			roots = append(roots, n)
		}
	}
	for _, r := range roots {
		for _, n := range r.subtree() {
			n.root = r
			if n.parent != nil {
				n.depth = n.parent.depth + 1
			}
			m.order = append(m.order, n)
		}
	}

	if err := checkInheritedFields(m.order); err != nil {
		return nil, err
	}

	for _, d := range cfg.Details {
		if err := m.addDetail(d); err != nil {
			return nil, err
		}
	}
	for _, a := range cfg.Associations {
		if err := m.addAssociation(a); err != nil {
			return nil, err
		}
	}
	for _, c := range cfg.Collections {
		if err := m.addCollection(c); err != nil {
			return nil, err
		}
	}

	if err := m.checkTables(); err != nil {
		return nil, err
	}
	return m, nil
}

func resolveFields(owner string, in []Field) ([]Field, error) {
	out := make([]Field, 0, len(in))
	names := make(map[string]bool, len(in))
	columns := make(map[string]bool, len(in))
	for _, f := range in {
		if f.Name == "" {
			return nil, configErr("%s: field with empty name", owner)
		}
		if f.Column == "" {
			f.Column = naming.ColumnName(f.Name)
		}
		if f.Name == pkColumn || f.Column == pkColumn {
			return nil, configErr("%s: field %q uses the reserved key name", owner, f.Name)
		}
		if !f.Kind.Valid() {
			return nil, configErr("%s: field %q has invalid kind %s", owner, f.Name, f.Kind)
		}
		if names[f.Name] {
			return nil, configErr("%s: duplicate field %q", owner, f.Name)
		}
		if columns[f.Column] {
			return nil, configErr("%s: duplicate column %q", owner, f.Column)
		}
		names[f.Name] = true
		columns[f.Column] = true
		out = append(out, f)
	}
	return out, nil
}

func checkCycles(declared []*node, parents map[string]string) error {
	for _, n := range declared {
		seen := map[string]bool{n.name: true}
		path := []string{n.name}
		for cur := parents[n.name]; cur != ""; cur = parents[cur] {
			path = append(path, cur)
			if seen[cur] {
				return configErr("inheritance cycle %s", strings.Join(path, " -> "))
			}
			seen[cur] = true
		}
	}
	return nil
}

func checkInheritedFields(order []*node) error {
	for _, n := range order {
		declaredBy := make(map[string]string)
		for _, c := range n.chain() {
			for _, f := range c.fields {
				if prev, ok := declaredBy[f.Name]; ok {
					return configErr("type %q redeclares field %q inherited from %q", c.name, f.Name, prev)
				}
				declaredBy[f.Name] = c.name
			}
		}
	}
	return nil
}

func (m *Mapper) addDetail(d DetailRule) error {
	owner, ok := m.nodes[d.Owner]
	if !ok {
		return configErr("detail %q: unknown owner %q", d.Name, d.Owner)
	}
	if owner.abstract {
		return configErr("detail %q: owner %q is abstract", d.Name, d.Owner)
	}
	if owner.detail != nil {
		return configErr("detail %q: owner %q already owns detail %q", d.Name, d.Owner, owner.detail.name)
	}
	if d.Name == "" {
		return configErr("detail of %q has empty name", d.Owner)
	}
	if len(d.Fields) == 0 {
		return configErr("detail %q declares no fields", d.Name)
	}
	for _, f := range owner.allFields() {
		if f.Name == d.Name {
			return configErr("detail %q clashes with field %q of %q", d.Name, f.Name, d.Owner)
		}
	}
	fields, err := resolveFields("detail "+d.Name, d.Fields)
	if err != nil {
		return err
	}
	det := &detail{name: d.Name, table: d.Table, owner: owner, fields: fields}
	if det.table == "" {
		det.table = naming.TableName(d.Name)
	}
	owner.detail = det
	m.details = append(m.details, det)
	return nil
}

func (m *Mapper) addAssociation(r AssociationRule) error {
	if r.Name == "" {
		return configErr("association with empty name")
	}
	if _, dup := m.assocs[r.Name]; dup {
		return configErr("duplicate association %q", r.Name)
	}
	a, ok := m.nodes[r.UniverseA]
	if !ok {
		return configErr("association %q: unknown type %q", r.Name, r.UniverseA)
	}
	b, ok := m.nodes[r.UniverseB]
	if !ok {
		return configErr("association %q: unknown type %q", r.Name, r.UniverseB)
	}
	if a.isA(b) || b.isA(a) {
		return configErr("association %q: %q and %q are not disjoint", r.Name, r.UniverseA, r.UniverseB)
	}
	if r.FieldA == "" || r.FieldB == "" {
		return configErr("association %q: both key fields are required", r.Name)
	}
	colA, colB := naming.ColumnName(r.FieldA), naming.ColumnName(r.FieldB)
	if colA == colB {
		return configErr("association %q: key fields share column %q", r.Name, colA)
	}
	if colA == pkColumn || colB == pkColumn {
		return configErr("association %q: key field uses the reserved key name", r.Name)
	}

	assoc := &association{name: r.Name, table: r.Table, colA: colA, colB: colB, a: a, b: b}
	if assoc.table == "" {
		assoc.table = naming.TableName(r.Name)
	}
	m.assocs[r.Name] = assoc
	m.assocOrder = append(m.assocOrder, assoc)
	return nil
}

func (m *Mapper) addCollection(r CollectionRule) error {
	if r.Name == "" {
		return configErr("collection with empty name")
	}
	if _, dup := m.colls[r.Name]; dup {
		return configErr("duplicate collection %q", r.Name)
	}
	if _, clash := m.assocs[r.Name]; clash {
		return configErr("collection %q clashes with association %q", r.Name, r.Name)
	}
	owner, ok := m.nodes[r.Owner]
	if !ok {
		return configErr("collection %q: unknown owner %q", r.Name, r.Owner)
	}
	a, ok := m.assocs[r.Association]
	if !ok {
		return configErr("collection %q: unknown association %q", r.Name, r.Association)
	}

	c := &collection{
		name:      r.Name,
		table:     r.Table,
		owner:     owner,
		assoc:     a,
		ownerCol:  naming.ColumnName(owner.name) + "_id",
		recordCol: naming.ColumnName(a.name) + "_id",
	}
	if c.ownerCol == c.recordCol {
		return configErr("collection %q: owner and record share column %q", r.Name, c.ownerCol)
	}
	if c.table == "" {
		c.table = naming.TableName(r.Name)
	}
	m.colls[r.Name] = c
	m.collOrder = append(m.collOrder, c)
	return nil
}

func (m *Mapper) checkTables() error {
	owners := make(map[string]string)
	claim := func(table, owner string) error {
		if prev, ok := owners[table]; ok {
			return configErr("table %q used by both %s and %s", table, prev, owner)
		}
		owners[table] = owner
		return nil
	}
	for _, n := range m.order {
		if err := claim(n.table, "type "+n.name); err != nil {
			return err
		}
	}
	for _, d := range m.details {
		if err := claim(d.table, "detail "+d.name); err != nil {
			return err
		}
	}
	for _, a := range m.assocOrder {
		if err := claim(a.table, "association "+a.name); err != nil {
			return err
		}
	}
	for _, c := range m.collOrder {
		if err := claim(c.table, "collection "+c.name); err != nil {
			return err
		}
	}
	return nil
}

// Types returns the configured type names, each root followed by its
// descendants in preorder.
func (m *Mapper) Types() []string {
	out := make([]string, len(m.order))
	for i, n := range m.order {
		out[i] = n.name
	}
	return out
}

// Fields returns the full field set (own and inherited) of typeName.
func (m *Mapper) Fields(typeName string) ([]Field, error) {
	n, err := m.lookup(typeName)
	if err != nil {
		return nil, err
	}
	return n.allFields(), nil
}

func (m *Mapper) lookup(typeName string) (*node, error) {
	n, ok := m.nodes[typeName]
	if !ok {
		return nil, mismatch("unknown type %q", typeName)
	}
	return n, nil
}

func (m *Mapper) association(name string) (*association, error) {
	a, ok := m.assocs[name]
	if !ok {
		return nil, mismatch("unknown association %q", name)
	}
	return a, nil
}

func (m *Mapper) collection(name string) (*collection, error) {
	c, ok := m.colls[name]
	if !ok {
		return nil, mismatch("unknown collection %q", name)
	}
	return c, nil
}
