package hier_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/mickamy/tptmap/hier"
	"github.com/mickamy/tptmap/orm"
	"github.com/mickamy/tptmap/zoo"
)

// recorder is an orm.Logger that keeps every statement.
type recorder struct {
	mu    sync.Mutex
	stmts []string
}

func (r *recorder) Log(_ context.Context, query string, _ ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stmts = append(r.stmts, query)
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stmts = nil
}

func (r *recorder) statements() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.stmts...)
}

func mustConfigure(t *testing.T, cfg hier.Config) *hier.Mapper {
	t.Helper()
	m, err := hier.Configure(cfg)
	if err != nil {
		t.Fatalf("Configure: %v", err)
	}
	return m
}

// openDB opens a fresh SQLite database holding the tables of m.
func openDB(t *testing.T, m *hier.Mapper) (*orm.DB, *recorder) {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "test.db") + "?_pragma=foreign_keys(1)"
	raw, err := orm.Open(t.Context(), "sqlite", dsn, orm.SQLite)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = raw.Close() })

	rec := &recorder{}
	db := raw.Debug(rec)
	if err := m.CreateSchema(t.Context(), db); err != nil {
		t.Fatalf("CreateSchema: %v", err)
	}
	rec.reset()
	return db, rec
}

// openZoo opens a database with the zoo tables, without any rows.
func openZoo(t *testing.T) (*hier.Mapper, *orm.DB, *recorder) {
	t.Helper()
	m := mustConfigure(t, zoo.Config())
	db, rec := openDB(t, m)
	return m, db, rec
}

func persist(t *testing.T, m *hier.Mapper, db orm.Querier, inst *hier.Instance) int64 {
	t.Helper()
	id, err := m.Persist(t.Context(), db, inst)
	if err != nil {
		t.Fatalf("Persist(%s): %v", inst.Type, err)
	}
	return id
}

func names(insts []*hier.Instance) []string {
	out := make([]string, len(insts))
	for i, inst := range insts {
		out[i], _ = inst.Fields["name"].(string)
	}
	return out
}
