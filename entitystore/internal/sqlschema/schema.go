package sqlschema

import (
	"errors"
	"fmt"
	"regexp"
)

const (
	// DefaultTableName is the event log table used when no other name is configured.
	DefaultTableName = "event"

	// ColID is the identity column, the per-entity recency order.
	ColID = "id"

	// ColEntityID is the entity column.
	ColEntityID = "entity_id"

	// ColType holds the numeric event type.
	ColType = "type"

	// ColPayload holds the JSON payload.
	ColPayload = "payload"

	// DialectPostgres is the goqu dialect name for PostgreSQL.
	DialectPostgres = "postgres"

	// DialectSQLite is the goqu dialect name for SQLite.
	DialectSQLite = "sqlite3"

	maxPayloadLength = 4000
)

var (
	// ErrEmptyTableName is returned when an empty table name is supplied.
	ErrEmptyTableName = errors.New("empty table name supplied")

	// ErrInvalidTableName is returned when a table name is not a plain SQL identifier.
	ErrInvalidTableName = errors.New("table name must be a plain sql identifier")

	// ErrUnsupportedDialect is returned for dialects other than postgres and sqlite3.
	ErrUnsupportedDialect = errors.New("unsupported sql dialect")
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

// ValidateTableName checks that name can be embedded in DDL without quoting surprises.
func ValidateTableName(name string) error {
	if name == "" {
		return ErrEmptyTableName
	}

	if !identifierPattern.MatchString(name) {
		return ErrInvalidTableName
	}

	return nil
}

// CreateStatements returns the DDL that creates the event table and its lookup index.
func CreateStatements(dialect string, tableName string) ([]string, error) {
	if err := ValidateTableName(tableName); err != nil {
		return nil, err
	}

	var idColumn string

	switch dialect {
	case DialectPostgres:
		idColumn = "BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY"
	case DialectSQLite:
		idColumn = "INTEGER PRIMARY KEY AUTOINCREMENT"
	default:
		return nil, ErrUnsupportedDialect
	}

	createTable := fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS "%s" (%s %s, %s BIGINT NOT NULL, %s INT NOT NULL, %s VARCHAR(%d) NOT NULL)`,
		tableName, ColID, idColumn, ColEntityID, ColType, ColPayload, maxPayloadLength,
	)

	createIndex := fmt.Sprintf(
		`CREATE INDEX IF NOT EXISTS "%s_entity_lookup" ON "%s" (%s, %s DESC)`,
		tableName, tableName, ColEntityID, ColID,
	)

	return []string{createTable, createIndex}, nil
}

// TruncateStatement returns the statement that empties the whole event log.
func TruncateStatement(dialect string, tableName string) (string, error) {
	if err := ValidateTableName(tableName); err != nil {
		return "", err
	}

	switch dialect {
	case DialectPostgres:
		return fmt.Sprintf(`TRUNCATE TABLE "%s" RESTART IDENTITY`, tableName), nil
	case DialectSQLite:
		return fmt.Sprintf(`DELETE FROM "%s"`, tableName), nil
	default:
		return "", ErrUnsupportedDialect
	}
}
