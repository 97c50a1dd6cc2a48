package hier

import (
	"context"
	"fmt"

	"github.com/mickamy/tptmap/orm"
)

func columnDefs(fields []Field) []orm.ColumnDef {
	out := make([]orm.ColumnDef, len(fields))
	for i, f := range fields {
		out[i] = orm.ColumnDef{Name: f.Column, Kind: f.Kind, Nullable: f.Nullable}
	}
	return out
}

// tables lists every table of the layout so that each table follows the
// tables it references.
func (m *Mapper) tables() []orm.TableDef {
	defs := make([]orm.TableDef, 0, len(m.order)+len(m.details)+len(m.assocOrder)+len(m.collOrder))
	for _, n := range m.order {
		def := orm.TableDef{Name: n.table, PK: pkColumn, Columns: columnDefs(n.fields)}
		if n.parent == nil {
			def.SerialPK = true
		} else {
			def.References = &orm.ForeignKey{Table: n.parent.table, Column: pkColumn}
		}
		defs = append(defs, def)
	}
	for _, d := range m.details {
		defs = append(defs, orm.TableDef{
			Name:       d.table,
			PK:         pkColumn,
			Columns:    columnDefs(d.fields),
			References: &orm.ForeignKey{Table: d.owner.table, Column: pkColumn},
		})
	}
	for _, a := range m.assocOrder {
		defs = append(defs, orm.TableDef{
			Name:     a.table,
			PK:       pkColumn,
			SerialPK: true,
			Columns: []orm.ColumnDef{
				{Name: a.colA, Kind: orm.KindInt, Nullable: true},
				{Name: a.colB, Kind: orm.KindInt, Nullable: true},
			},
		})
	}
	for _, c := range m.collOrder {
		defs = append(defs, orm.TableDef{
			Name:     c.table,
			PK:       pkColumn,
			SerialPK: true,
			Columns: []orm.ColumnDef{
				{Name: c.ownerCol, Kind: orm.KindInt, References: &orm.ForeignKey{Table: c.owner.table, Column: pkColumn}},
				{Name: c.recordCol, Kind: orm.KindInt, References: &orm.ForeignKey{Table: c.assoc.table, Column: pkColumn}},
			},
		})
	}
	return defs
}

// Schema returns the CREATE TABLE statements of the layout in
// dependency order.
func (m *Mapper) Schema(d orm.Dialect) []string {
	defs := m.tables()
	out := make([]string, len(defs))
	for i, def := range defs {
		out[i] = orm.CreateTableSQL(d, def)
	}
	return out
}

// DropSchema returns DROP TABLE statements in reverse dependency order.
func (m *Mapper) DropSchema(d orm.Dialect) []string {
	defs := m.tables()
	out := make([]string, len(defs))
	for i, def := range defs {
		out[len(defs)-1-i] = orm.DropTableSQL(d, def.Name)
	}
	return out
}

// CreateSchema creates every table of the layout.
func (m *Mapper) CreateSchema(ctx context.Context, db orm.Querier) error {
	return execAll(ctx, db, m.Schema(orm.DialectOf(db)))
}

// Recreate drops and creates every table of the layout.
func (m *Mapper) Recreate(ctx context.Context, db orm.Querier) error {
	d := orm.DialectOf(db)
	if err := execAll(ctx, db, m.DropSchema(d)); err != nil {
		return err
	}
	return execAll(ctx, db, m.Schema(d))
}

func execAll(ctx context.Context, db orm.Querier, stmts []string) error {
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("hier: %s: %w", stmt, err)
		}
	}
	return nil
}
