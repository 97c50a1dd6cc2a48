package naming_test

import (
	"testing"

	"github.com/mickamy/tptmap/internal/naming"
)

func TestCamelToSnake(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  string
	}{
		{"ID", "id"},
		{"Name", "name"},
		{"FlyingRange", "flying_range"},
		{"AnimalID", "animal_id"},
		{"HTTPServer", "http_server"},
		{"isFurry", "is_furry"},
		{"Level2Name", "level2_name"},
		{"A", "a"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			got := naming.CamelToSnake(tt.input)
			if got != tt.want {
				t.Errorf("CamelToSnake(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestTableName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  string
	}{
		{"Tiger", "tigers"},
		{"Animal", "animals"},
		{"Penguin", "penguins"},
		{"Fish", "fish"},
		{"TigerDetails", "tiger_details"},
		{"FoodItem", "food_items"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			if got := naming.TableName(tt.input); got != tt.want {
				t.Errorf("TableName(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestLowerCamel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  string
	}{
		{"IsFurry", "isFurry"},
		{"ID", "id"},
		{"PlantID", "plantID"},
		{"HTTPPort", "httpPort"},
		{"name", "name"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			if got := naming.LowerCamel(tt.input); got != tt.want {
				t.Errorf("LowerCamel(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
