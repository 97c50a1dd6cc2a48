package orm

import (
	"context"
	"fmt"
	"strings"
)

// QueryIn reads columns from table where keyColumn IN (keys), ordered by
// the first column, and scans each row with scan.
func QueryIn[K comparable, T any](
	ctx context.Context, db Querier, table string, columns []string, keyColumn string, keys []K, scan ScanFunc[T],
) ([]T, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	d := db.dialect()
	qi := d.QuoteIdent

	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = qi(c)
	}

	placeholders := make([]string, len(keys))
	args := make([]any, len(keys))
	for i, k := range keys {
		placeholders[i] = "?"
		args[i] = k
	}

	query := fmt.Sprintf(
		"SELECT %s FROM %s WHERE %s IN (%s) ORDER BY %s",
		strings.Join(quoted, ", "), qi(table), qi(keyColumn),
		strings.Join(placeholders, ", "), quoted[0],
	)

	query = rewritePlaceholders(d, query)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err //nolint:wrapcheck // pass through
	}
	defer func() { _ = rows.Close() }()

	var items []T
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err() //nolint:wrapcheck // pass through
}

// Unique returns keys without duplicates, keeping first occurrences in order.
func Unique[K comparable](keys []K) []K {
	seen := make(map[K]struct{}, len(keys))
	result := make([]K, 0, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; !ok {
			seen[k] = struct{}{}
			result = append(result, k)
		}
	}
	return result
}

// GroupBy groups items by the key returned from key, preserving order
// within each group.
func GroupBy[K comparable, T any](items []T, key func(T) (K, bool)) map[K][]T {
	m := make(map[K][]T)
	for _, item := range items {
		if k, ok := key(item); ok {
			m[k] = append(m[k], item)
		}
	}
	return m
}
