package naming

import (
	"strings"
	"unicode"

	"github.com/jinzhu/inflection"
)

// CamelToSnake converts a CamelCase string to snake_case.
// Consecutive uppercase letters (acronyms) are kept together:
// "ID" → "id", "AnimalID" → "animal_id", "FlyingRange" → "flying_range".
func CamelToSnake(s string) string {
	runes := []rune(s)
	var b strings.Builder
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 {
				prev := runes[i-1]
				next := rune(0)
				if i+1 < len(runes) {
					next = runes[i+1]
				}
				if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && unicode.IsLower(next)) {
					b.WriteByte('_')
				}
			}
			b.WriteRune(unicode.ToLower(r))
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// TableName derives the default table name of a type: the snake_case
// plural of its name. "Tiger" → "tigers", "TigerDetails" → "tiger_details".
func TableName(typeName string) string {
	return inflection.Plural(CamelToSnake(typeName))
}

// ColumnName derives the default column name of a field.
// "isFurry" → "is_furry", "PlantID" → "plant_id".
func ColumnName(fieldName string) string {
	return CamelToSnake(fieldName)
}

// LowerCamel lowers the leading word of a Go identifier so exported
// field names read like field descriptors: "IsFurry" → "isFurry",
// "ID" → "id", "HTTPPort" → "httpPort".
func LowerCamel(s string) string {
	runes := []rune(s)
	for i, r := range runes {
		if !unicode.IsUpper(r) {
			break
		}
		if i > 0 && i+1 < len(runes) && unicode.IsLower(runes[i+1]) {
			break
		}
		runes[i] = unicode.ToLower(r)
	}
	return string(runes)
}
