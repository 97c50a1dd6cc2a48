package hier

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mickamy/tptmap/orm"
)

// member is one join table row of a collection.
type member struct {
	id     int64
	owner  int64
	record int64
}

func collectionQuery(db orm.Querier, c *collection) *orm.Query[member] {
	return orm.NewQuery[member](
		db,
		c.table,
		nil,
		pkColumn,
		nil,
		func(r *member, includesPK bool) ([]string, []any) {
			if includesPK {
				return []string{pkColumn, c.ownerCol, c.recordCol}, []any{r.id, r.owner, r.record}
			}
			return []string{c.ownerCol, c.recordCol}, []any{r.owner, r.record}
		},
		func(r *member, id int64) { r.id = id },
	)
}

// writeCollection replaces the stored members of c for the instance id
// with recs. Records not yet stored are inserted first. When fresh is
// set the instance was just inserted and has no members to remove.
func (m *Mapper) writeCollection(ctx context.Context, db orm.Querier, c *collection, id int64, recs []*AssociationRecord, fresh bool) error {
	for _, rec := range recs {
		if rec.ID != 0 {
			continue
		}
		if _, err := m.PersistAssociation(ctx, db, c.assoc.name, rec); err != nil {
			return err
		}
	}

	q := collectionQuery(db, c)
	if !fresh {
		where := orm.DialectOf(db).QuoteIdent(c.ownerCol) + " = ?"
		if err := q.Where(where, id).Delete(ctx); err != nil {
			return fmt.Errorf("hier: delete %s: %w", c.table, err)
		}
	}

	ids := make([]int64, len(recs))
	for i, rec := range recs {
		ids[i] = rec.ID
	}
	for _, rid := range orm.Unique(ids) {
		row := member{owner: id, record: rid}
		if err := q.Create(ctx, &row); err != nil {
			return fmt.Errorf("hier: insert %s: %w", c.table, err)
		}
	}
	return nil
}

// LoadCollection returns the members of the named collection of inst,
// in ascending record id order.
func (m *Mapper) LoadCollection(ctx context.Context, db orm.Querier, inst *Instance, name string) ([]*AssociationRecord, error) {
	c, err := m.collection(name)
	if err != nil {
		return nil, err
	}
	if inst == nil {
		return nil, mismatch("collection %q: nil instance", name)
	}
	n, err := m.lookup(inst.Type)
	if err != nil {
		return nil, err
	}
	if !n.isA(c.owner) {
		return nil, mismatch("collection %q does not belong to type %q", name, n.name)
	}
	if inst.ID == 0 {
		return nil, mismatch("collection %q: instance of %q is not persisted", name, n.name)
	}

	tmp := &Instance{ID: inst.ID, Type: inst.Type}
	if err := m.collectionPreloader(c)(ctx, db, []*Instance{tmp}); err != nil {
		return nil, err
	}
	return tmp.Collections[name], nil
}

// collectionPreloader loads c's members for every result owned by c with
// one query on the join table and one on the association table.
func (m *Mapper) collectionPreloader(c *collection) orm.PreloaderFunc[*Instance] {
	return func(ctx context.Context, db orm.Querier, results []*Instance) error {
		var owned []*Instance
		var ids []int64
		for _, inst := range results {
			if m.nodes[inst.Type].isA(c.owner) {
				owned = append(owned, inst)
				ids = append(ids, inst.ID)
			}
		}

		pairs, err := orm.QueryJoinTable[int64, int64](ctx, db, c.table, c.ownerCol, c.recordCol, orm.Unique(ids))
		if err != nil {
			return fmt.Errorf("hier: preload %s: %w", c.name, err)
		}
		recs, err := orm.QueryIn(ctx, db, c.assoc.table, c.assoc.columns(), pkColumn, orm.UniqueTargets(pairs),
			func(rows *sql.Rows) (*AssociationRecord, error) {
				r, err := scanAssociation(rows)
				return &r, err
			})
		if err != nil {
			return fmt.Errorf("hier: preload %s: %w", c.name, err)
		}

		byID := make(map[int64]*AssociationRecord, len(recs))
		for _, r := range recs {
			byID[r.ID] = r
		}
		grouped := orm.GroupBySource(pairs)
		for _, inst := range owned {
			rids := grouped[inst.ID]
			items := make([]*AssociationRecord, 0, len(rids))
			for _, rid := range rids {
				if r, ok := byID[rid]; ok {
					items = append(items, r)
				}
			}
			if inst.Collections == nil {
				inst.Collections = make(map[string][]*AssociationRecord)
			}
			inst.Collections[c.name] = items
		}
		return nil
	}
}
