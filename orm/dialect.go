package orm

import "fmt"

// Dialect abstracts SQL differences between database engines.
type Dialect interface {
	// Name returns the dialect name as used in configuration
	// ("mysql", "postgres", "sqlite").
	Name() string

	// Placeholder returns the bind parameter placeholder for the given
	// 1-based index. MySQL and SQLite return "?" regardless of index;
	// PostgreSQL returns "$1", "$2", etc.
	Placeholder(index int) string

	// QuoteIdent quotes an identifier (table name, column name) to safely
	// handle SQL reserved words. MySQL uses backticks; PostgreSQL and
	// SQLite use double quotes.
	QuoteIdent(name string) string

	// UseReturning reports whether INSERT should use a RETURNING clause
	// to retrieve the auto-generated primary key (PostgreSQL) rather
	// than relying on LastInsertId (MySQL, SQLite).
	UseReturning() bool

	// ReturningClause returns the RETURNING clause appended to INSERT
	// statements. Returns an empty string for dialects that do not
	// use RETURNING.
	ReturningClause(pk string) string

	// ColumnType returns the column type used in CREATE TABLE for k.
	ColumnType(k ColumnKind) string

	// SerialPrimaryKey returns the full column definition of an
	// auto-generated integer primary key.
	SerialPrimaryKey(name string) string
}

// MySQL is the Dialect for MySQL / MariaDB.
var MySQL Dialect = mysqlDialect{}

// PostgreSQL is the Dialect for PostgreSQL.
var PostgreSQL Dialect = postgresDialect{}

// SQLite is the Dialect for SQLite (modernc.org/sqlite).
var SQLite Dialect = sqliteDialect{}

// DialectByName returns the Dialect registered under name.
func DialectByName(name string) (Dialect, error) {
	switch name {
	case "mysql":
		return MySQL, nil
	case "postgres", "postgresql":
		return PostgreSQL, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	default:
		return nil, fmt.Errorf("orm: unknown dialect %q", name)
	}
}

type mysqlDialect struct{}

func (mysqlDialect) Name() string                    { return "mysql" }
func (mysqlDialect) Placeholder(_ int) string        { return "?" }
func (mysqlDialect) QuoteIdent(name string) string   { return "`" + name + "`" }
func (mysqlDialect) UseReturning() bool              { return false }
func (mysqlDialect) ReturningClause(_ string) string { return "" }

func (mysqlDialect) ColumnType(k ColumnKind) string {
	switch k {
	case KindInt:
		return "BIGINT"
	case KindFloat:
		return "DOUBLE"
	case KindBool:
		return "BOOLEAN"
	default:
		return "VARCHAR(255)"
	}
}

func (d mysqlDialect) SerialPrimaryKey(name string) string {
	return d.QuoteIdent(name) + " BIGINT AUTO_INCREMENT PRIMARY KEY"
}

type postgresDialect struct{}

func (postgresDialect) Name() string                     { return "postgres" }
func (postgresDialect) Placeholder(index int) string     { return fmt.Sprintf("$%d", index) }
func (postgresDialect) QuoteIdent(name string) string    { return `"` + name + `"` }
func (postgresDialect) UseReturning() bool               { return true }
func (postgresDialect) ReturningClause(pk string) string { return ` RETURNING "` + pk + `"` }

func (postgresDialect) ColumnType(k ColumnKind) string {
	switch k {
	case KindInt:
		return "BIGINT"
	case KindFloat:
		return "DOUBLE PRECISION"
	case KindBool:
		return "BOOLEAN"
	default:
		return "TEXT"
	}
}

func (d postgresDialect) SerialPrimaryKey(name string) string {
	return d.QuoteIdent(name) + " BIGSERIAL PRIMARY KEY"
}

type sqliteDialect struct{}

func (sqliteDialect) Name() string                    { return "sqlite" }
func (sqliteDialect) Placeholder(_ int) string        { return "?" }
func (sqliteDialect) QuoteIdent(name string) string   { return `"` + name + `"` }
func (sqliteDialect) UseReturning() bool              { return false }
func (sqliteDialect) ReturningClause(_ string) string { return "" }

func (sqliteDialect) ColumnType(k ColumnKind) string {
	switch k {
	case KindInt:
		return "INTEGER"
	case KindFloat:
		return "REAL"
	case KindBool:
		return "BOOLEAN"
	default:
		return "TEXT"
	}
}

func (d sqliteDialect) SerialPrimaryKey(name string) string {
	return d.QuoteIdent(name) + " INTEGER PRIMARY KEY AUTOINCREMENT"
}

// positional reports whether d binds parameters by position with "?",
// in which case queries need no placeholder rewriting.
func positional(d Dialect) bool {
	return d.Placeholder(1) == "?"
}
