package hier

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"slices"
	"strings"

	"github.com/mickamy/tptmap/internal/naming"
	"github.com/mickamy/tptmap/orm"
	"github.com/mickamy/tptmap/scope"
)

// Query is a pending read over every concrete instance whose type
// descends from (or is) the queried type. All builder methods return a
// new Query; the receiver is never modified.
type Query struct {
	m    *Mapper
	db   orm.Querier
	node *node
	err  error

	projection []string
	ofTypes    []string
	wheres     []whereClause
	orderBys   []string
	limit      *int
	offset     *int
	preloads   []string
}

type whereClause struct {
	clause string
	args   []any
}

var _ scope.Applier = (*Query)(nil)

// Query starts a read over the subtree of typeName. Rows come back in
// ascending id order unless OrderBy says otherwise.
func (m *Mapper) Query(db orm.Querier, typeName string) *Query {
	n, err := m.lookup(typeName)
	return &Query{m: m, db: db, node: n, err: err}
}

// FetchByID reconstructs the instance stored under id, searching only the
// subtree of typeName.
func (m *Mapper) FetchByID(ctx context.Context, db orm.Querier, id int64, typeName string) (*Instance, error) {
	inst, err := m.Query(db, typeName).whereID(id).First(ctx)
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("%w: %s %d", ErrNotFound, typeName, id)
	}
	return inst, err
}

func (q *Query) clone() *Query {
	q2 := *q
	if q.projection != nil {
		q2.projection = append([]string{}, q.projection...)
	}
	q2.ofTypes = append([]string(nil), q.ofTypes...)
	q2.wheres = append([]whereClause(nil), q.wheres...)
	q2.orderBys = append([]string(nil), q.orderBys...)
	q2.preloads = append([]string(nil), q.preloads...)
	return &q2
}

// --- Builder methods ---

// Select restricts the populated fields to the named ones. Id and type
// are always populated; naming a detail loads it. Select with no names
// populates id and type only.
func (q *Query) Select(fields ...string) *Query {
	q2 := q.clone()
	q2.ApplySelect(fields)
	return q2
}

// Where adds a WHERE fragment. Use Field to qualify column names.
//
//	q.Where(q.Field("name")+" = ?", "Joey")
func (q *Query) Where(clause string, args ...any) *Query {
	q2 := q.clone()
	q2.ApplyWhere(clause, args)
	return q2
}

func (q *Query) OrderBy(clause string) *Query {
	q2 := q.clone()
	q2.ApplyOrderBy(clause)
	return q2
}

func (q *Query) Limit(n int) *Query {
	q2 := q.clone()
	q2.ApplyLimit(n)
	return q2
}

func (q *Query) Offset(n int) *Query {
	q2 := q.clone()
	q2.ApplyOffset(n)
	return q2
}

// OfType narrows the query to the subtree of typeName, which must lie on
// the same branch as the queried type.
func (q *Query) OfType(typeName string) *Query {
	q2 := q.clone()
	q2.ApplyOfType(typeName)
	return q2
}

// Preload eagerly loads the named association into Instance.Associations
// for every returned instance that lies in one of its universes. A
// collection name loads Instance.Collections for the instances of its
// owner type instead.
func (q *Query) Preload(association string) *Query {
	q2 := q.clone()
	q2.ApplyPreload(association)
	return q2
}

// Scopes applies reusable fragments to a copy of the query.
func (q *Query) Scopes(scopes ...scope.Scope) *Query {
	q2 := q.clone()
	for _, s := range scopes {
		s.Apply(q2)
	}
	return q2
}

func (q *Query) whereID(id int64) *Query {
	return q.Where(q.Field(pkColumn)+" = ?", id)
}

// --- scope.Applier ---

func (q *Query) ApplyWhere(clause string, args []any) {
	q.wheres = append(q.wheres, whereClause{clause, args})
}

func (q *Query) ApplyOrderBy(clause string) {
	q.orderBys = append(q.orderBys, clause)
}

func (q *Query) ApplyLimit(n int) {
	q.limit = &n
}

func (q *Query) ApplyOffset(n int) {
	q.offset = &n
}

func (q *Query) ApplySelect(fields []string) {
	q.projection = append([]string{}, fields...)
}

func (q *Query) ApplyOfType(typeName string) {
	q.ofTypes = append(q.ofTypes, typeName)
}

func (q *Query) ApplyPreload(name string) {
	q.preloads = append(q.preloads, name)
}

// Field returns the qualified column of the named field for use in
// Where and OrderBy clauses. "id" is the root partition's key. When
// sibling types declare the same name, the first in preorder wins.
func (q *Query) Field(name string) string {
	qi := orm.DialectOf(q.db).QuoteIdent
	if q.node == nil {
		return qi(naming.ColumnName(name))
	}
	if name == pkColumn {
		return qi(q.node.root.table) + "." + qi(pkColumn)
	}
	for _, v := range q.node.visible() {
		for _, f := range v.fields {
			if f.Name == name {
				return qi(v.table) + "." + qi(f.Column)
			}
		}
		if d := v.detail; d != nil {
			for _, f := range d.fields {
				if f.Name == name {
					return qi(d.table) + "." + qi(f.Column)
				}
			}
		}
	}
	return qi(naming.ColumnName(name))
}

// --- Terminal methods ---

// Iter runs the query lazily. Every range over the sequence executes the
// SELECT again; the first error ends it.
func (q *Query) Iter(ctx context.Context) iter.Seq2[*Instance, error] {
	oq, err := q.build()
	if err != nil {
		return func(yield func(*Instance, error) bool) { yield(nil, err) }
	}
	return oq.Iter(ctx)
}

// All runs the query and returns every matching instance.
func (q *Query) All(ctx context.Context) ([]*Instance, error) {
	oq, err := q.build()
	if err != nil {
		return nil, err
	}
	return oq.All(ctx) //nolint:wrapcheck // pass through
}

// First returns the first matching instance, or ErrNotFound.
func (q *Query) First(ctx context.Context) (*Instance, error) {
	oq, err := q.build()
	if err != nil {
		return nil, err
	}
	inst, err := oq.First(ctx)
	if errors.Is(err, orm.ErrNotFound) {
		return nil, ErrNotFound
	}
	return inst, err //nolint:wrapcheck // pass through
}

// Count returns the number of matching instances. Limit and Offset are
// ignored.
func (q *Query) Count(ctx context.Context) (int64, error) {
	oq, err := q.build()
	if err != nil {
		return 0, err
	}
	return oq.Count(ctx) //nolint:wrapcheck // pass through
}

// --- Plan ---

// visible returns the nodes whose rows a query over n can see: the
// ancestor chain, then every descendant in preorder.
func (n *node) visible() []*node {
	return append(n.chain(), n.subtree()[1:]...)
}

type fieldSlot struct {
	node  *node
	field Field
}

type readPlan struct {
	tags    []*node
	fields  []fieldSlot
	details []*detail
}

func newReadPlan(n *node, projection []string) (*readPlan, error) {
	p := &readPlan{}
	for _, c := range n.subtree() {
		if !c.abstract {
			p.tags = append(p.tags, c)
		}
	}
	slices.SortStableFunc(p.tags, func(a, b *node) int { return b.depth - a.depth })

	want := func(string) bool { return true }
	if projection != nil {
		known := map[string]bool{pkColumn: true}
		for _, v := range n.visible() {
			for _, f := range v.fields {
				known[f.Name] = true
			}
			if v.detail != nil {
				known[v.detail.name] = true
			}
		}
		selected := make(map[string]bool, len(projection))
		for _, name := range projection {
			if !known[name] {
				return nil, mismatch("type %q has no field %q", n.name, name)
			}
			selected[name] = true
		}
		want = func(name string) bool { return selected[name] }
	}

	for _, v := range n.visible() {
		for _, f := range v.fields {
			if want(f.Name) {
				p.fields = append(p.fields, fieldSlot{node: v, field: f})
			}
		}
		if v.detail != nil && want(v.detail.name) {
			p.details = append(p.details, v.detail)
		}
	}
	return p, nil
}

func (p *readPlan) columns(qi func(string) string, root *node) []string {
	col := func(table, column string) string { return qi(table) + "." + qi(column) }

	out := []string{col(root.table, pkColumn)}
	for _, t := range p.tags {
		out = append(out, col(t.table, pkColumn))
	}
	for _, s := range p.fields {
		out = append(out, col(s.node.table, s.field.Column))
	}
	for _, d := range p.details {
		out = append(out, col(d.table, pkColumn))
		for _, f := range d.fields {
			out = append(out, col(d.table, f.Column))
		}
	}
	return out
}

func (p *readPlan) scan(rows *sql.Rows) (*Instance, error) {
	var id int64
	tags := make([]sql.NullInt64, len(p.tags))
	fields := make([]any, len(p.fields))
	detailKeys := make([]sql.NullInt64, len(p.details))
	detailVals := make([][]any, len(p.details))

	dests := []any{&id}
	for i := range tags {
		dests = append(dests, &tags[i])
	}
	for i, s := range p.fields {
		fields[i] = newDest(s.field.Kind)
		dests = append(dests, fields[i])
	}
	for i, d := range p.details {
		dests = append(dests, &detailKeys[i])
		detailVals[i] = make([]any, len(d.fields))
		for j, f := range d.fields {
			detailVals[i][j] = newDest(f.Kind)
			dests = append(dests, detailVals[i][j])
		}
	}
	if err := rows.Scan(dests...); err != nil {
		return nil, err //nolint:wrapcheck // pass through
	}

	var tag *node
	for i, t := range tags {
		if t.Valid {
			tag = p.tags[i]
			break
		}
	}
	if tag == nil {
		return nil, mismatch("instance %d has no concrete partition row", id)
	}

	inst := &Instance{ID: id, Type: tag.name, Fields: make(Values, len(p.fields))}
	for i, s := range p.fields {
		if tag.isA(s.node) {
			inst.Fields[s.field.Name] = destValue(fields[i])
		}
	}
	for i, d := range p.details {
		if d.owner != tag || !detailKeys[i].Valid {
			continue
		}
		inst.Detail = make(Values, len(d.fields))
		for j, f := range d.fields {
			inst.Detail[f.Name] = destValue(detailVals[i][j])
		}
	}
	return inst, nil
}

func newDest(k Kind) any {
	switch k {
	case Int:
		return new(sql.NullInt64)
	case Float:
		return new(sql.NullFloat64)
	case Bool:
		return new(sql.NullBool)
	default:
		return new(sql.NullString)
	}
}

func destValue(dest any) any {
	switch d := dest.(type) {
	case *sql.NullInt64:
		if d.Valid {
			return d.Int64
		}
	case *sql.NullFloat64:
		if d.Valid {
			return d.Float64
		}
	case *sql.NullBool:
		if d.Valid {
			return d.Bool
		}
	case *sql.NullString:
		if d.Valid {
			return d.String
		}
	}
	return nil
}

// build turns q into a single SELECT: the ancestor chain INNER JOINed on
// the shared id, every descendant and detail LEFT JOINed.
func (q *Query) build() (*orm.Query[*Instance], error) {
	if q.err != nil {
		return nil, q.err
	}
	n := q.node
	root := n.root
	qi := orm.DialectOf(q.db).QuoteIdent

	p, err := newReadPlan(n, q.projection)
	if err != nil {
		return nil, err
	}

	oq := orm.NewQuery[*Instance](q.db, root.table, nil, pkColumn, p.scan, nil, nil)

	var inner, outer []string
	for _, c := range n.chain()[1:] {
		oq.RegisterJoin(c.table, orm.JoinConfig{
			TargetTable: c.table, TargetColumn: pkColumn,
			SourceTable: root.table, SourceColumn: pkColumn,
		})
		inner = append(inner, c.table)
	}
	for _, c := range n.subtree()[1:] {
		oq.RegisterJoin(c.table, orm.JoinConfig{
			TargetTable: c.table, TargetColumn: pkColumn,
			SourceTable: c.parent.table, SourceColumn: pkColumn,
		})
		outer = append(outer, c.table)
	}
	for _, v := range n.visible() {
		if d := v.detail; d != nil {
			oq.RegisterJoin(d.table, orm.JoinConfig{
				TargetTable: d.table, TargetColumn: pkColumn,
				SourceTable: v.table, SourceColumn: pkColumn,
			})
			outer = append(outer, d.table)
		}
	}
	for _, name := range inner {
		oq = oq.Join(name)
	}
	for _, name := range outer {
		oq = oq.LeftJoin(name)
	}

	oq = oq.Select(strings.Join(p.columns(qi, root), ", "))

	for _, name := range q.ofTypes {
		t, err := q.m.lookup(name)
		if err != nil {
			return nil, err
		}
		if !t.isA(n) && !n.isA(t) {
			return nil, mismatch("type %q is not on the branch of %q", name, n.name)
		}
		oq = oq.Where(qi(t.table) + "." + qi(pkColumn) + " IS NOT NULL")
	}
	for _, w := range q.wheres {
		oq = oq.Where(w.clause, w.args...)
	}
	for _, o := range q.orderBys {
		oq = oq.OrderBy(o)
	}
	oq = oq.OrderBy(qi(root.table) + "." + qi(pkColumn))
	if q.limit != nil {
		oq = oq.Limit(*q.limit)
	}
	if q.offset != nil {
		oq = oq.Offset(*q.offset)
	}

	for _, name := range q.preloads {
		switch a, c := q.m.assocs[name], q.m.colls[name]; {
		case a != nil:
			oq.RegisterPreloader(name, q.m.preloader(a))
		case c != nil:
			oq.RegisterPreloader(name, q.m.collectionPreloader(c))
		default:
			return nil, mismatch("unknown association or collection %q", name)
		}
		oq = oq.Preload(name)
	}
	return oq, nil
}
