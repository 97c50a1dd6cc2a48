package testdata

//tpt:abstract
type Animal struct {
	ID   int
	Name string
	Diet []Food `tpt:"collection:animal_food"`
}

//tpt:abstract
type Mammal struct {
	Animal
	IsFurry bool
}

//tpt:abstract
type Bird struct {
	Animal
	CanFly bool
}

type Fish struct {
	Animal
	Length float64
}

func (Fish) TableName() string { return "fishes" }

type Rabbit struct {
	Mammal
}

type Tiger struct {
	Mammal
	Details *TigerDetails `tpt:"detail"`
}

type TigerDetails struct {
	Region *string
	Color  *string
}

type Crow struct {
	Bird
	FlyingRange float64
}

type Penguin struct {
	Bird
	Height int
}

type Plant struct {
	ID   int
	Name *string
}

type Food struct {
	ID       int
	AnimalID *int64 `tpt:"ref:Animal"`
	PlantID  *int64 `tpt:"ref:Plant"`
}

func (Food) TableName() string { return "food_items" }

func (f Food) String() string { return "food" }
