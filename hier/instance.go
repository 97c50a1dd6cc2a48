package hier

import (
	"fmt"
	"math"
)

// Values maps field names to values. Stored values are int64, float64,
// bool, string, or nil for nullable fields.
type Values map[string]any

// Instance is one stored object of a concrete type. Fields holds the
// full own and inherited field set; Detail is nil when the instance has
// no owned detail. Associations holds records to cascade on Persist, or
// records loaded by Preload. Collections holds the members of each
// collection rule; a name present in the map replaces the stored
// members on Persist, an absent one leaves them alone.
type Instance struct {
	ID           int64
	Type         string
	Fields       Values
	Detail       Values
	Associations map[string][]*AssociationRecord
	Collections  map[string][]*AssociationRecord
}

// AssociationRecord links to an instance of either universe of its
// association. KeyA and KeyB are nil when unset.
type AssociationRecord struct {
	ID   int64
	KeyA *int64
	KeyB *int64
}

// Ref returns a pointer to id, for filling association keys.
func Ref(id int64) *int64 { return &id }

// key returns the foreign key of r on side s.
func (r *AssociationRecord) key(s side) **int64 {
	if s == sideA {
		return &r.KeyA
	}
	return &r.KeyB
}

// checkValues verifies that vals holds exactly fields, and returns the
// normalised values in field order.
func checkValues(owner string, fields []Field, vals Values) ([]any, error) {
	out := make([]any, len(fields))
	for i, f := range fields {
		v, ok := vals[f.Name]
		if !ok {
			return nil, mismatch("%s: missing field %q", owner, f.Name)
		}
		nv, err := normalize(f, v)
		if err != nil {
			return nil, mismatch("%s: field %q: %v", owner, f.Name, err)
		}
		out[i] = nv
	}
	if len(vals) != len(fields) {
		known := make(map[string]bool, len(fields))
		for _, f := range fields {
			known[f.Name] = true
		}
		for name := range vals {
			if !known[name] {
				return nil, mismatch("%s: unknown field %q", owner, name)
			}
		}
	}
	return out, nil
}

func normalize(f Field, v any) (any, error) {
	if v == nil {
		if !f.Nullable {
			return nil, fmt.Errorf("nil value for non-nullable %s field", f.Kind)
		}
		return nil, nil
	}

	switch f.Kind {
	case Int:
		switch n := v.(type) {
		case int64:
			return n, nil
		case int:
			return int64(n), nil
		case int32:
			return int64(n), nil
		case int16:
			return int64(n), nil
		case int8:
			return int64(n), nil
		case uint32:
			return int64(n), nil
		case uint16:
			return int64(n), nil
		case uint8:
			return int64(n), nil
		}
	case Float:
		var x float64
		switch n := v.(type) {
		case float64:
			x = n
		case float32:
			x = float64(n)
		case int:
			x = float64(n)
		case int64:
			x = float64(n)
		default:
			return nil, fmt.Errorf("%T is not a %s", v, f.Kind)
		}
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil, fmt.Errorf("%v cannot be stored", x)
		}
		return x, nil
	case Bool:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case String:
		if s, ok := v.(string); ok {
			return s, nil
		}
	}
	return nil, fmt.Errorf("%T is not a %s", v, f.Kind)
}
