// Package zoo is the sample model: an animal hierarchy, plants, the
// food records that link to either, and the diet of each animal.
package zoo

import "github.com/mickamy/tptmap/hier"

// Type names.
const (
	Animal  = "Animal"
	Mammal  = "Mammal"
	Bird    = "Bird"
	Fish    = "Fish"
	Rabbit  = "Rabbit"
	Tiger   = "Tiger"
	Crow    = "Crow"
	Penguin = "Penguin"
	Plant   = "Plant"
)

// Food is the association whose records link to an animal (KeyA) or a
// plant (KeyB).
const Food = "food"

// Diet is the collection of food records an animal eats.
const Diet = "diet"

// Details is the owned detail of a Tiger.
const Details = "details"

// Config returns the storage layout of the sample model.
func Config() hier.Config {
	return hier.Config{
		Types: []hier.TypeNode{
			{Name: Animal, Abstract: true, Fields: []hier.Field{{Name: "name", Kind: hier.String}}},
			{Name: Mammal, Parent: Animal, Abstract: true, Fields: []hier.Field{{Name: "isFurry", Kind: hier.Bool}}},
			{Name: Bird, Parent: Animal, Abstract: true, Fields: []hier.Field{{Name: "canFly", Kind: hier.Bool}}},
			{Name: Fish, Parent: Animal, Table: "fishes", Fields: []hier.Field{{Name: "length", Kind: hier.Float}}},
			{Name: Rabbit, Parent: Mammal},
			{Name: Tiger, Parent: Mammal},
			{Name: Crow, Parent: Bird, Fields: []hier.Field{{Name: "flyingRange", Kind: hier.Float}}},
			{Name: Penguin, Parent: Bird, Fields: []hier.Field{{Name: "height", Kind: hier.Int}}},
			{Name: Plant, Fields: []hier.Field{{Name: "name", Kind: hier.String, Nullable: true}}},
		},
		Details: []hier.DetailRule{
			{
				Owner: Tiger,
				Name:  Details,
				Table: "tiger_details",
				Fields: []hier.Field{
					{Name: "region", Kind: hier.String, Nullable: true},
					{Name: "color", Kind: hier.String, Nullable: true},
				},
			},
		},
		Associations: []hier.AssociationRule{
			{
				Name:      Food,
				Table:     "food_items",
				FieldA:    "animalId",
				FieldB:    "plantId",
				UniverseA: Animal,
				UniverseB: Plant,
			},
		},
		Collections: []hier.CollectionRule{
			{Name: Diet, Table: "animal_food", Owner: Animal, Association: Food},
		},
	}
}

// New configures a Mapper for the sample model.
func New() (*hier.Mapper, error) {
	return hier.Configure(Config())
}
