package hier

import (
	"context"
	"errors"
	"fmt"

	"github.com/mickamy/tptmap/orm"
)

// partitionRow is the slice of an instance stored in one table.
type partitionRow struct {
	id   int64
	cols []string
	vals []any
}

func partitionColumnValuePairs(r *partitionRow, includesPK bool) ([]string, []any) {
	if !includesPK {
		return r.cols, r.vals
	}
	cols := append([]string{pkColumn}, r.cols...)
	vals := append([]any{r.id}, r.vals...)
	return cols, vals
}

func setPartitionPK(r *partitionRow, id int64) { r.id = id }

// partitionQuery returns a write query over table. A serial table lets
// the database generate the key on Create.
func partitionQuery(db orm.Querier, table string, serial bool) *orm.Query[partitionRow] {
	var setPK orm.SetPKFunc[partitionRow]
	if serial {
		setPK = setPartitionPK
	}
	return orm.NewQuery[partitionRow](db, table, nil, pkColumn, nil, partitionColumnValuePairs, setPK)
}

func newPartitionRow(id int64, fields []Field, vals []any) partitionRow {
	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = f.Column
	}
	return partitionRow{id: id, cols: cols, vals: vals}
}

// persistPlan holds the validated rows of an instance.
type persistPlan struct {
	node   *node
	rows   [][]any // per chain node, field values in declaration order
	detail []any
}

// Persist stores inst across the tables of its ancestor chain and
// returns its id. A zero ID inserts a new instance and sets inst.ID;
// otherwise the stored rows are updated in place. Records in
// inst.Associations are persisted afterwards with their instance-side
// key pointing at inst, and each collection named in inst.Collections
// is replaced by the given records.
//
// Persist issues several statements; run it inside orm.DB.Transaction
// when a partial write must not be observed. On error inst and its
// records keep the ids and keys they had on entry.
func (m *Mapper) Persist(ctx context.Context, db orm.Querier, inst *Instance) (int64, error) {
	if inst == nil {
		return 0, mismatch("nil instance")
	}
	plan, err := m.plan(inst)
	if err != nil {
		return 0, err
	}

	fresh := inst.ID == 0
	id := inst.ID
	if fresh {
		id, err = m.insert(ctx, db, plan)
	} else {
		err = m.update(ctx, db, inst.ID, plan)
	}
	if err != nil {
		return 0, err
	}

	if err := m.cascade(ctx, db, plan.node, id, inst, fresh); err != nil {
		return 0, err
	}
	inst.ID = id
	return id, nil
}

// cascade writes the association records and collections of inst, stored
// under id. On failure every record it touched is restored.
func (m *Mapper) cascade(ctx context.Context, db orm.Querier, n *node, id int64, inst *Instance, fresh bool) error {
	type saved struct {
		rec    *AssociationRecord
		before AssociationRecord
	}
	var touched []saved
	touch := func(rec *AssociationRecord) { touched = append(touched, saved{rec, *rec}) }

	err := func() error {
		for _, a := range m.assocOrder {
			for _, rec := range inst.Associations[a.name] {
				touch(rec)
				*rec.key(a.sideOf(n)) = Ref(id)
				if _, err := m.PersistAssociation(ctx, db, a.name, rec); err != nil {
					return err
				}
			}
		}
		for _, c := range m.collOrder {
			recs, ok := inst.Collections[c.name]
			if !ok {
				continue
			}
			for _, rec := range recs {
				if rec.ID == 0 {
					touch(rec)
				}
			}
			if err := m.writeCollection(ctx, db, c, id, recs, fresh); err != nil {
				return err
			}
		}
		return nil
	}()
	if err != nil {
		for i := len(touched) - 1; i >= 0; i-- {
			*touched[i].rec = touched[i].before
		}
	}
	return err
}

func (m *Mapper) plan(inst *Instance) (*persistPlan, error) {
	n, err := m.lookup(inst.Type)
	if err != nil {
		return nil, err
	}
	if n.abstract {
		return nil, mismatch("type %q is abstract", n.name)
	}
	if inst.ID < 0 {
		return nil, mismatch("%s: negative id %d", n.name, inst.ID)
	}

	vals, err := checkValues(n.name, n.allFields(), inst.Fields)
	if err != nil {
		return nil, err
	}
	plan := &persistPlan{node: n}
	for _, c := range n.chain() {
		plan.rows = append(plan.rows, vals[:len(c.fields)])
		vals = vals[len(c.fields):]
	}

	if inst.Detail != nil {
		if n.detail == nil {
			return nil, mismatch("type %q has no detail", n.name)
		}
		if plan.detail, err = checkValues(n.name+"."+n.detail.name, n.detail.fields, inst.Detail); err != nil {
			return nil, err
		}
	}

	for name, recs := range inst.Associations {
		a, err := m.association(name)
		if err != nil {
			return nil, err
		}
		s := a.sideOf(n)
		if s == sideNone {
			return nil, mismatch("association %q does not link type %q", name, n.name)
		}
		for i, rec := range recs {
			if rec == nil {
				return nil, mismatch("association %q: nil record at %d", name, i)
			}
			key := *rec.key(s)
			switch {
			case key == nil:
			case inst.ID == 0:
				return nil, mismatch("association %q: record %d already points at %d", name, i, *key)
			case *key != inst.ID:
				return nil, mismatch("association %q: record %d points at %d, not %d", name, i, *key, inst.ID)
			}
		}
	}

	for name, recs := range inst.Collections {
		c, err := m.collection(name)
		if err != nil {
			return nil, err
		}
		if !n.isA(c.owner) {
			return nil, mismatch("collection %q does not belong to type %q", name, n.name)
		}
		for i, rec := range recs {
			if rec == nil {
				return nil, mismatch("collection %q: nil record at %d", name, i)
			}
			if rec.ID < 0 {
				return nil, mismatch("collection %q: negative record id %d", name, rec.ID)
			}
		}
	}
	return plan, nil
}

func (m *Mapper) insert(ctx context.Context, db orm.Querier, plan *persistPlan) (int64, error) {
	chain := plan.node.chain()

	root := newPartitionRow(0, chain[0].fields, plan.rows[0])
	if err := partitionQuery(db, chain[0].table, true).Create(ctx, &root); err != nil {
		return 0, fmt.Errorf("hier: insert %s: %w", chain[0].table, err)
	}
	if root.id == 0 {
		return 0, fmt.Errorf("hier: insert %s: no id generated", chain[0].table)
	}

	for i, c := range chain[1:] {
		row := newPartitionRow(root.id, c.fields, plan.rows[i+1])
		if err := partitionQuery(db, c.table, false).Create(ctx, &row); err != nil {
			return 0, fmt.Errorf("hier: insert %s: %w", c.table, err)
		}
	}

	if plan.detail != nil {
		d := plan.node.detail
		row := newPartitionRow(root.id, d.fields, plan.detail)
		if err := partitionQuery(db, d.table, false).Create(ctx, &row); err != nil {
			return 0, fmt.Errorf("hier: insert %s: %w", d.table, err)
		}
	}

	return root.id, nil
}

func (m *Mapper) update(ctx context.Context, db orm.Querier, id int64, plan *persistPlan) error {
	n := plan.node
	stored, err := m.storedType(ctx, db, n.root, id)
	if err != nil {
		return err
	}
	if stored != n {
		return mismatch("instance %d is stored as %q, not %q", id, stored.name, n.name)
	}

	for i, c := range n.chain() {
		row := newPartitionRow(id, c.fields, plan.rows[i])
		if err := partitionQuery(db, c.table, false).Update(ctx, &row); err != nil {
			return fmt.Errorf("hier: update %s: %w", c.table, err)
		}
	}

	d := n.detail
	if d == nil {
		return nil
	}
	q := partitionQuery(db, d.table, false)
	if plan.detail == nil {
		where := orm.DialectOf(db).QuoteIdent(pkColumn) + " = ?"
		if err := q.Where(where, id).Delete(ctx); err != nil {
			return fmt.Errorf("hier: delete %s: %w", d.table, err)
		}
		return nil
	}
	row := newPartitionRow(id, d.fields, plan.detail)
	if err := q.Upsert(ctx, &row); err != nil {
		return fmt.Errorf("hier: upsert %s: %w", d.table, err)
	}
	return nil
}

// storedType returns the concrete type under root that holds id.
func (m *Mapper) storedType(ctx context.Context, db orm.Querier, root *node, id int64) (*node, error) {
	inst, err := m.Query(db, root.name).Select().whereID(id).First(ctx)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: %s %d", ErrNotFound, root.name, id)
		}
		return nil, err
	}
	return m.nodes[inst.Type], nil
}
