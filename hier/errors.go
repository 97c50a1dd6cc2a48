package hier

import (
	"errors"
	"fmt"

	"github.com/mickamy/tptmap/orm"
)

var (
	// ErrConfig reports a malformed type tree or rule set. It is only
	// returned by Configure; the configuration must be fixed before retrying.
	ErrConfig = errors.New("hier: invalid configuration")

	// ErrSchemaMismatch reports an instance, projection or association
	// call that does not fit the configured layout.
	ErrSchemaMismatch = errors.New("hier: schema mismatch")

	// ErrNotFound reports that no stored instance matches an id or query.
	// It wraps orm.ErrNotFound.
	ErrNotFound = fmt.Errorf("hier: %w", orm.ErrNotFound)
)

func configErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfig, fmt.Sprintf(format, args...))
}

func mismatch(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrSchemaMismatch, fmt.Sprintf(format, args...))
}
