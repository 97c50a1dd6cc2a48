package zoo

import (
	"context"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/mickamy/tptmap/hier"
	"github.com/mickamy/tptmap/orm"
)

// Format renders inst on one line: type, id, then fields by name.
//
//	Crow 5 canFly=true flyingRange=50 name=Joey
func Format(inst *hier.Instance) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %d", inst.Type, inst.ID)
	writeValues(&b, "", inst.Fields)
	if inst.Detail != nil {
		writeValues(&b, Details+".", inst.Detail)
	}
	return b.String()
}

func writeValues(b *strings.Builder, prefix string, vals hier.Values) {
	for _, k := range slices.Sorted(maps.Keys(vals)) {
		v := vals[k]
		if v == nil {
			v = "<nil>"
		}
		fmt.Fprintf(b, " %s%s=%v", prefix, k, v)
	}
}

func formatRecord(r *hier.AssociationRecord) string {
	key := func(k *int64) string {
		if k == nil {
			return "-"
		}
		return fmt.Sprint(*k)
	}
	return fmt.Sprintf("#%d(animal=%s plant=%s)", r.ID, key(r.KeyA), key(r.KeyB))
}

// RunQueries runs the sample reads against a seeded database and writes
// the results to w.
func RunQueries(ctx context.Context, m *hier.Mapper, db orm.Querier, w io.Writer) error {
	reads := []struct {
		title string
		q     *hier.Query
	}{
		{"all animals", m.Query(db, Animal)},
		{"all birds", m.Query(db, Bird)},
		{"animal names", m.Query(db, Animal).Select("name")},
		{"bird names", m.Query(db, Bird).Select("name", "canFly")},
	}
	for _, r := range reads {
		if _, err := fmt.Fprintf(w, "%s:\n", r.title); err != nil {
			return err //nolint:wrapcheck // pass through
		}
		for inst, err := range r.q.Iter(ctx) {
			if err != nil {
				return fmt.Errorf("zoo: %s: %w", r.title, err)
			}
			if _, err := fmt.Fprintf(w, "  %s\n", Format(inst)); err != nil {
				return err //nolint:wrapcheck // pass through
			}
		}
	}

	links := []struct {
		title string
		name  string
		recs  func(*hier.Instance) []*hier.AssociationRecord
	}{
		{"animal food", Diet, func(inst *hier.Instance) []*hier.AssociationRecord { return inst.Collections[Diet] }},
		{"food from animals", Food, func(inst *hier.Instance) []*hier.AssociationRecord { return inst.Associations[Food] }},
	}
	for _, l := range links {
		animals, err := m.Query(db, Animal).Select("name").Preload(l.name).All(ctx)
		if err != nil {
			return fmt.Errorf("zoo: %s: %w", l.title, err)
		}
		if _, err := fmt.Fprintf(w, "%s:\n", l.title); err != nil {
			return err //nolint:wrapcheck // pass through
		}
		for _, inst := range animals {
			recs := l.recs(inst)
			out := make([]string, len(recs))
			for i, r := range recs {
				out[i] = formatRecord(r)
			}
			if _, err := fmt.Fprintf(w, "  %v: [%s]\n", inst.Fields["name"], strings.Join(out, " ")); err != nil {
				return err //nolint:wrapcheck // pass through
			}
		}
	}
	return nil
}
