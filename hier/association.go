package hier

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mickamy/tptmap/orm"
)

func (a *association) columns() []string {
	return []string{pkColumn, a.colA, a.colB}
}

func scanAssociation(rows *sql.Rows) (AssociationRecord, error) {
	var r AssociationRecord
	var keyA, keyB sql.NullInt64
	if err := rows.Scan(&r.ID, &keyA, &keyB); err != nil {
		return r, err //nolint:wrapcheck // pass through
	}
	if keyA.Valid {
		r.KeyA = Ref(keyA.Int64)
	}
	if keyB.Valid {
		r.KeyB = Ref(keyB.Int64)
	}
	return r, nil
}

func nullable(k *int64) any {
	if k == nil {
		return nil
	}
	return *k
}

func associationQuery(db orm.Querier, a *association) *orm.Query[AssociationRecord] {
	return orm.NewQuery[AssociationRecord](
		db,
		a.table,
		a.columns(),
		pkColumn,
		scanAssociation,
		func(r *AssociationRecord, includesPK bool) ([]string, []any) {
			if includesPK {
				return a.columns(), []any{r.ID, nullable(r.KeyA), nullable(r.KeyB)}
			}
			return []string{a.colA, a.colB}, []any{nullable(r.KeyA), nullable(r.KeyB)}
		},
		func(r *AssociationRecord, id int64) { r.ID = id },
	)
}

// LoadAssociations returns the records of the named association whose
// key on inst's side equals inst.ID, in ascending record id order.
func (m *Mapper) LoadAssociations(ctx context.Context, db orm.Querier, inst *Instance, name string) ([]*AssociationRecord, error) {
	a, err := m.association(name)
	if err != nil {
		return nil, err
	}
	if inst == nil {
		return nil, mismatch("association %q: nil instance", name)
	}
	n, err := m.lookup(inst.Type)
	if err != nil {
		return nil, err
	}
	s := a.sideOf(n)
	if s == sideNone {
		return nil, mismatch("association %q does not link type %q", name, n.name)
	}
	if inst.ID == 0 {
		return nil, mismatch("association %q: instance of %q is not persisted", name, n.name)
	}

	qi := orm.DialectOf(db).QuoteIdent
	recs, err := associationQuery(db, a).
		Where(qi(a.column(s))+" = ?", inst.ID).
		OrderBy(qi(pkColumn)).
		All(ctx)
	if err != nil {
		return nil, fmt.Errorf("hier: load %s: %w", a.table, err)
	}

	out := make([]*AssociationRecord, len(recs))
	for i := range recs {
		out[i] = &recs[i]
	}
	return out, nil
}

// PersistAssociation inserts rec when its ID is zero, setting rec.ID, and
// updates the stored record otherwise. Keys are stored as given; they are
// not checked against the instances they name.
func (m *Mapper) PersistAssociation(ctx context.Context, db orm.Querier, name string, rec *AssociationRecord) (int64, error) {
	a, err := m.association(name)
	if err != nil {
		return 0, err
	}
	if rec == nil {
		return 0, mismatch("association %q: nil record", name)
	}
	if rec.ID < 0 {
		return 0, mismatch("association %q: negative id %d", name, rec.ID)
	}

	q := associationQuery(db, a)
	if rec.ID == 0 {
		if err := q.Create(ctx, rec); err != nil {
			return 0, fmt.Errorf("hier: insert %s: %w", a.table, err)
		}
		return rec.ID, nil
	}
	if err := q.Update(ctx, rec); err != nil {
		return 0, fmt.Errorf("hier: update %s: %w", a.table, err)
	}
	return rec.ID, nil
}

// preloader loads a's records for every result inside one of its
// universes with one IN query per side.
func (m *Mapper) preloader(a *association) orm.PreloaderFunc[*Instance] {
	return func(ctx context.Context, db orm.Querier, results []*Instance) error {
		ids := make(map[side][]int64, 2)
		for _, inst := range results {
			if s := a.sideOf(m.nodes[inst.Type]); s != sideNone {
				ids[s] = append(ids[s], inst.ID)
			}
		}

		grouped := make(map[side]map[int64][]*AssociationRecord, 2)
		for _, s := range []side{sideA, sideB} {
			recs, err := orm.QueryIn(ctx, db, a.table, a.columns(), a.column(s), orm.Unique(ids[s]),
				func(rows *sql.Rows) (*AssociationRecord, error) {
					r, err := scanAssociation(rows)
					return &r, err
				})
			if err != nil {
				return fmt.Errorf("hier: preload %s: %w", a.name, err)
			}
			grouped[s] = orm.GroupBy(recs, func(r *AssociationRecord) (int64, bool) {
				k := *r.key(s)
				if k == nil {
					return 0, false
				}
				return *k, true
			})
		}

		for _, inst := range results {
			s := a.sideOf(m.nodes[inst.Type])
			if s == sideNone {
				continue
			}
			recs := grouped[s][inst.ID]
			if recs == nil {
				recs = []*AssociationRecord{}
			}
			if inst.Associations == nil {
				inst.Associations = make(map[string][]*AssociationRecord)
			}
			inst.Associations[a.name] = recs
		}
		return nil
	}
}
