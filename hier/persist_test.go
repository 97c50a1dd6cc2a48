package hier_test

import (
	"errors"
	"maps"
	"math"
	"slices"
	"strings"
	"testing"

	"github.com/mickamy/tptmap/hier"
	"github.com/mickamy/tptmap/orm"
	"github.com/mickamy/tptmap/zoo"
)

func TestPersistRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		inst   *hier.Instance
		fields hier.Values
	}{
		{
			name:   "rabbit",
			inst:   &hier.Instance{Type: zoo.Rabbit, Fields: hier.Values{"name": "Buttercup", "isFurry": true}},
			fields: hier.Values{"name": "Buttercup", "isFurry": true},
		},
		{
			name:   "crow",
			inst:   &hier.Instance{Type: zoo.Crow, Fields: hier.Values{"name": "Joey", "canFly": true, "flyingRange": 50.5}},
			fields: hier.Values{"name": "Joey", "canFly": true, "flyingRange": 50.5},
		},
		{
			name:   "penguin with int normalised",
			inst:   &hier.Instance{Type: zoo.Penguin, Fields: hier.Values{"name": "Woody", "canFly": false, "height": 35}},
			fields: hier.Values{"name": "Woody", "canFly": false, "height": int64(35)},
		},
		{
			name:   "fish with int as float",
			inst:   &hier.Instance{Type: zoo.Fish, Fields: hier.Values{"name": "Grim", "length": 9}},
			fields: hier.Values{"name": "Grim", "length": 9.0},
		},
		{
			name:   "plant with null name",
			inst:   &hier.Instance{Type: zoo.Plant, Fields: hier.Values{"name": nil}},
			fields: hier.Values{"name": nil},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			m, db, _ := openZoo(t)
			id := persist(t, m, db, tt.inst)
			if id == 0 || tt.inst.ID != id {
				t.Fatalf("id = %d, inst.ID = %d", id, tt.inst.ID)
			}

			got, err := m.FetchByID(t.Context(), db, id, tt.inst.Type)
			if err != nil {
				t.Fatalf("FetchByID: %v", err)
			}
			if got.ID != id || got.Type != tt.inst.Type {
				t.Errorf("got %s %d, want %s %d", got.Type, got.ID, tt.inst.Type, id)
			}
			if !maps.Equal(got.Fields, tt.fields) {
				t.Errorf("Fields = %v, want %v", got.Fields, tt.fields)
			}
			if got.Detail != nil {
				t.Errorf("Detail = %v, want nil", got.Detail)
			}
		})
	}
}

func TestPersistSplitsAcrossPartitions(t *testing.T) {
	t.Parallel()

	m, db, rec := openZoo(t)
	persist(t, m, db, &hier.Instance{
		Type:   zoo.Crow,
		Fields: hier.Values{"name": "Joey", "canFly": true, "flyingRange": 50.0},
	})

	want := []string{
		`INSERT INTO "animals" ("name") VALUES (?)`,
		`INSERT INTO "birds" ("id", "can_fly") VALUES (?, ?)`,
		`INSERT INTO "crows" ("id", "flying_range") VALUES (?, ?)`,
	}
	if got := rec.statements(); !slices.Equal(got, want) {
		t.Errorf("statements =\n%q\nwant\n%q", got, want)
	}
}

func TestPersistSharesIDAcrossAncestors(t *testing.T) {
	t.Parallel()

	m, db, _ := openZoo(t)
	p := persist(t, m, db, &hier.Instance{Type: zoo.Plant, Fields: hier.Values{"name": "Grass"}})
	r := persist(t, m, db, &hier.Instance{Type: zoo.Rabbit, Fields: hier.Values{"name": "Buttercup", "isFurry": true}})
	c := persist(t, m, db, &hier.Instance{Type: zoo.Crow, Fields: hier.Values{"name": "Joey", "canFly": true, "flyingRange": 1.0}})

	// Each root owns its id space.
	if p != 1 || r != 1 || c != 2 {
		t.Errorf("ids = plant %d, rabbit %d, crow %d; want 1, 1, 2", p, r, c)
	}

	if _, err := m.FetchByID(t.Context(), db, c, zoo.Bird); err != nil {
		t.Errorf("FetchByID(crow, Bird): %v", err)
	}
	if _, err := m.FetchByID(t.Context(), db, c, zoo.Mammal); !errors.Is(err, hier.ErrNotFound) {
		t.Errorf("FetchByID(crow, Mammal) error = %v, want ErrNotFound", err)
	}
}

func TestPersistDetail(t *testing.T) {
	t.Parallel()

	m, db, _ := openZoo(t)
	tiger := &hier.Instance{
		Type:   zoo.Tiger,
		Fields: hier.Values{"name": "Atticus", "isFurry": true},
		Detail: hier.Values{"region": "Africa", "color": "Yellow"},
	}
	id := persist(t, m, db, tiger)

	got, err := m.FetchByID(t.Context(), db, id, zoo.Animal)
	if err != nil {
		t.Fatalf("FetchByID: %v", err)
	}
	want := hier.Values{"region": "Africa", "color": "Yellow"}
	if !maps.Equal(got.Detail, want) {
		t.Errorf("Detail = %v, want %v", got.Detail, want)
	}

	// Replace the detail.
	tiger.Detail = hier.Values{"region": "Asia", "color": nil}
	persist(t, m, db, tiger)
	got, err = m.FetchByID(t.Context(), db, id, zoo.Tiger)
	if err != nil {
		t.Fatalf("FetchByID: %v", err)
	}
	want = hier.Values{"region": "Asia", "color": nil}
	if !maps.Equal(got.Detail, want) {
		t.Errorf("Detail after update = %v, want %v", got.Detail, want)
	}

	// Remove it.
	tiger.Detail = nil
	persist(t, m, db, tiger)
	got, err = m.FetchByID(t.Context(), db, id, zoo.Tiger)
	if err != nil {
		t.Fatalf("FetchByID: %v", err)
	}
	if got.Detail != nil {
		t.Errorf("Detail after removal = %v, want nil", got.Detail)
	}

	// And add it back to an instance stored without one.
	tiger.Detail = hier.Values{"region": "Africa", "color": "White"}
	persist(t, m, db, tiger)
	got, err = m.FetchByID(t.Context(), db, id, zoo.Tiger)
	if err != nil {
		t.Fatalf("FetchByID: %v", err)
	}
	if got.Detail["color"] != "White" {
		t.Errorf("Detail after re-adding = %v", got.Detail)
	}
}

func TestPersistUpdate(t *testing.T) {
	t.Parallel()

	m, db, rec := openZoo(t)
	crow := &hier.Instance{Type: zoo.Crow, Fields: hier.Values{"name": "Joey", "canFly": true, "flyingRange": 50.0}}
	id := persist(t, m, db, crow)

	rec.reset()
	crow.Fields = hier.Values{"name": "Joey", "canFly": false, "flyingRange": 0.0}
	if got := persist(t, m, db, crow); got != id {
		t.Errorf("id after update = %d, want %d", got, id)
	}

	stmts := rec.statements()
	if len(stmts) != 4 {
		t.Fatalf("statements = %q, want a type lookup and three updates", stmts)
	}
	if !strings.HasPrefix(stmts[0], "SELECT ") {
		t.Errorf("first statement = %q, want the type lookup", stmts[0])
	}
	if stmts[3] != `UPDATE "crows" SET "flying_range" = ? WHERE "id" = ?` {
		t.Errorf("last statement = %q", stmts[3])
	}

	got, err := m.FetchByID(t.Context(), db, id, zoo.Crow)
	if err != nil {
		t.Fatalf("FetchByID: %v", err)
	}
	if got.Fields["canFly"] != false || got.Fields["flyingRange"] != 0.0 {
		t.Errorf("Fields = %v", got.Fields)
	}
}

func TestPersistUpdateErrors(t *testing.T) {
	t.Parallel()

	m, db, _ := openZoo(t)
	id := persist(t, m, db, &hier.Instance{Type: zoo.Rabbit, Fields: hier.Values{"name": "Buttercup", "isFurry": true}})

	_, err := m.Persist(t.Context(), db, &hier.Instance{
		ID: id, Type: zoo.Tiger, Fields: hier.Values{"name": "Buttercup", "isFurry": true},
	})
	if !errors.Is(err, hier.ErrSchemaMismatch) {
		t.Errorf("type change error = %v, want ErrSchemaMismatch", err)
	}

	_, err = m.Persist(t.Context(), db, &hier.Instance{
		ID: 99, Type: zoo.Rabbit, Fields: hier.Values{"name": "Ghost", "isFurry": false},
	})
	if !errors.Is(err, hier.ErrNotFound) {
		t.Errorf("missing id error = %v, want ErrNotFound", err)
	}
	if !errors.Is(err, orm.ErrNotFound) {
		t.Errorf("missing id error = %v, want it to match orm.ErrNotFound", err)
	}
}

func TestPersistValidation(t *testing.T) {
	t.Parallel()

	m := mustConfigure(t, zoo.Config())
	db := orm.New(nil, orm.SQLite)

	tests := []struct {
		name    string
		inst    *hier.Instance
		wantMsg string
	}{
		{
			name:    "nil",
			inst:    nil,
			wantMsg: "nil instance",
		},
		{
			name:    "unknown type",
			inst:    &hier.Instance{Type: "Dog", Fields: hier.Values{}},
			wantMsg: `unknown type "Dog"`,
		},
		{
			name:    "abstract type",
			inst:    &hier.Instance{Type: zoo.Mammal, Fields: hier.Values{"name": "x", "isFurry": true}},
			wantMsg: "abstract",
		},
		{
			name:    "missing inherited field",
			inst:    &hier.Instance{Type: zoo.Rabbit, Fields: hier.Values{"isFurry": true}},
			wantMsg: `missing field "name"`,
		},
		{
			name:    "extra field",
			inst:    &hier.Instance{Type: zoo.Rabbit, Fields: hier.Values{"name": "x", "isFurry": true, "canFly": true}},
			wantMsg: `unknown field "canFly"`,
		},
		{
			name:    "wrong type",
			inst:    &hier.Instance{Type: zoo.Rabbit, Fields: hier.Values{"name": "x", "isFurry": "yes"}},
			wantMsg: `field "isFurry": string is not a bool`,
		},
		{
			name:    "nil for non-nullable",
			inst:    &hier.Instance{Type: zoo.Rabbit, Fields: hier.Values{"name": nil, "isFurry": true}},
			wantMsg: "nil value for non-nullable string field",
		},
		{
			name:    "NaN",
			inst:    &hier.Instance{Type: zoo.Fish, Fields: hier.Values{"name": "x", "length": math.NaN()}},
			wantMsg: "cannot be stored",
		},
		{
			name:    "detail on type without one",
			inst:    &hier.Instance{Type: zoo.Rabbit, Fields: hier.Values{"name": "x", "isFurry": true}, Detail: hier.Values{"region": "x"}},
			wantMsg: `type "Rabbit" has no detail`,
		},
		{
			name: "partial detail",
			inst: &hier.Instance{
				Type: zoo.Tiger, Fields: hier.Values{"name": "x", "isFurry": true},
				Detail: hier.Values{"region": "x"},
			},
			wantMsg: `Tiger.details: missing field "color"`,
		},
		{
			name: "unknown association",
			inst: &hier.Instance{
				Type: zoo.Plant, Fields: hier.Values{"name": "x"},
				Associations: map[string][]*hier.AssociationRecord{"eats": {{}}},
			},
			wantMsg: `unknown association "eats"`,
		},
		{
			name: "association key already set on new instance",
			inst: &hier.Instance{
				Type: zoo.Plant, Fields: hier.Values{"name": "x"},
				Associations: map[string][]*hier.AssociationRecord{zoo.Food: {{KeyB: hier.Ref(3)}}},
			},
			wantMsg: "already points at 3",
		},
		{
			name: "association key pointing elsewhere",
			inst: &hier.Instance{
				ID: 2, Type: zoo.Plant, Fields: hier.Values{"name": "x"},
				Associations: map[string][]*hier.AssociationRecord{zoo.Food: {{KeyB: hier.Ref(3)}}},
			},
			wantMsg: "points at 3, not 2",
		},
		{
			name: "nil association record",
			inst: &hier.Instance{
				Type: zoo.Plant, Fields: hier.Values{"name": "x"},
				Associations: map[string][]*hier.AssociationRecord{zoo.Food: {nil}},
			},
			wantMsg: "nil record",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			// Validation fails before any statement reaches the nil *sql.DB.
			_, err := m.Persist(t.Context(), db, tt.inst)
			if !errors.Is(err, hier.ErrSchemaMismatch) {
				t.Fatalf("error = %v, want ErrSchemaMismatch", err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error = %q, want it to contain %q", err, tt.wantMsg)
			}
		})
	}
}

func TestPersistInTransaction(t *testing.T) {
	t.Parallel()

	m, db, _ := openZoo(t)
	errBoom := errors.New("boom")

	err := db.Transaction(t.Context(), func(tx *orm.Tx) error {
		persist(t, m, tx, &hier.Instance{Type: zoo.Plant, Fields: hier.Values{"name": "Peanut"}})
		return errBoom
	})
	if !errors.Is(err, errBoom) {
		t.Fatalf("Transaction error = %v", err)
	}

	count, err := m.Query(db, zoo.Plant).Count(t.Context())
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 0 {
		t.Errorf("Count after rollback = %d, want 0", count)
	}
}
