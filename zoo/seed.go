package zoo

import (
	"context"
	"fmt"

	"github.com/mickamy/tptmap/hier"
	"github.com/mickamy/tptmap/orm"
)

func food(recs ...*hier.AssociationRecord) map[string][]*hier.AssociationRecord {
	return map[string][]*hier.AssociationRecord{Food: recs}
}

func diet(recs ...*hier.AssociationRecord) map[string][]*hier.AssociationRecord {
	return map[string][]*hier.AssociationRecord{Diet: recs}
}

// Seed persists the sample graph and returns the stored instances in
// insertion order. Food records made from a plant carry the plant's id;
// those made from an animal carry the animal's id. Each animal's diet
// names the food records it eats. Run it inside a transaction to seed
// all or nothing.
func Seed(ctx context.Context, m *hier.Mapper, db orm.Querier) ([]*hier.Instance, error) {
	peanutFood, grassFood, planktonFood := &hier.AssociationRecord{}, &hier.AssociationRecord{}, &hier.AssociationRecord{}
	rabbitFood, sardineFood := &hier.AssociationRecord{}, &hier.AssociationRecord{}

	peanut := &hier.Instance{Type: Plant, Fields: hier.Values{"name": "Peanut"}, Associations: food(peanutFood)}
	grass := &hier.Instance{Type: Plant, Fields: hier.Values{"name": "Grass"}, Associations: food(grassFood)}
	plankton := &hier.Instance{Type: Plant, Fields: hier.Values{"name": "Plankton"}, Associations: food(planktonFood)}

	rabbit := &hier.Instance{
		Type:         Rabbit,
		Fields:       hier.Values{"name": "Buttercup", "isFurry": true},
		Associations: food(rabbitFood),
		Collections:  diet(grassFood),
	}
	crow := &hier.Instance{
		Type:        Crow,
		Fields:      hier.Values{"name": "Joey", "canFly": true, "flyingRange": 50.0},
		Collections: diet(peanutFood),
	}
	sardine := &hier.Instance{
		Type:         Fish,
		Fields:       hier.Values{"name": "Grim", "length": 9.0},
		Associations: food(sardineFood),
		Collections:  diet(planktonFood),
	}
	penguin := &hier.Instance{
		Type:        Penguin,
		Fields:      hier.Values{"name": "Woody", "canFly": false, "height": 35},
		Collections: diet(sardineFood),
	}
	tiger := &hier.Instance{
		Type:        Tiger,
		Fields:      hier.Values{"name": "Atticus", "isFurry": true},
		Detail:      hier.Values{"region": "Africa", "color": "Yellow"},
		Collections: diet(rabbitFood),
	}

	graph := []*hier.Instance{peanut, grass, plankton, rabbit, crow, sardine, penguin, tiger}
	for _, inst := range graph {
		if _, err := m.Persist(ctx, db, inst); err != nil {
			return nil, fmt.Errorf("zoo: seed %s %v: %w", inst.Type, inst.Fields["name"], err)
		}
	}
	return graph, nil
}
