package sqlschema

import (
	"errors"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"  // dialect registration
)

// ErrBuildingQueryFailed is returned when goqu could not render a statement.
var ErrBuildingQueryFailed = errors.New("building query failed")

// EventRow is the scan target of the recent events query.
type EventRow struct {
	ID       int64  `db:"id"`
	EntityID int64  `db:"entity_id"`
	Type     int    `db:"type"`
	Payload  string `db:"payload"`
}

// QueryBuilder renders the two statements the store issues, as prepared statements for one dialect.
type QueryBuilder struct {
	dialect   string
	builder   goqu.DialectWrapper
	tableName string
}

// NewQueryBuilder creates a QueryBuilder for dialect and tableName.
func NewQueryBuilder(dialect string, tableName string) (QueryBuilder, error) {
	if dialect != DialectPostgres && dialect != DialectSQLite {
		return QueryBuilder{}, ErrUnsupportedDialect
	}

	if err := ValidateTableName(tableName); err != nil {
		return QueryBuilder{}, err
	}

	return QueryBuilder{
		dialect:   dialect,
		builder:   goqu.Dialect(dialect),
		tableName: tableName,
	}, nil
}

// Dialect returns the goqu dialect name.
func (q QueryBuilder) Dialect() string {
	return q.dialect
}

// TableName returns the event table name.
func (q QueryBuilder) TableName() string {
	return q.tableName
}

// SupportsReturning reports whether the insert can return the assigned id directly.
func (q QueryBuilder) SupportsReturning() bool {
	return q.dialect == DialectPostgres
}

// RecentEvents renders "select ... where entity_id = ? order by id desc limit ?".
func (q QueryBuilder) RecentEvents(entityID int64, count int) (string, []any, error) {
	selectStmt := q.builder.
		From(q.tableName).
		Select(ColID, ColEntityID, ColType, ColPayload).
		Where(goqu.C(ColEntityID).Eq(entityID)).
		Order(goqu.C(ColID).Desc()).
		Limit(uint(count)).
		Prepared(true)

	sqlQuery, args, err := selectStmt.ToSQL()
	if err != nil {
		return "", nil, errors.Join(ErrBuildingQueryFailed, err)
	}

	return sqlQuery, args, nil
}

// InsertEvent renders the insert of one event, with "returning id" where the dialect supports it.
func (q QueryBuilder) InsertEvent(entityID int64, eventType int, payload string) (string, []any, error) {
	insertStmt := q.builder.
		Insert(q.tableName).
		Cols(ColEntityID, ColType, ColPayload).
		Vals(goqu.Vals{entityID, eventType, payload}).
		Prepared(true)

	if q.SupportsReturning() {
		insertStmt = insertStmt.Returning(ColID)
	}

	sqlQuery, args, err := insertStmt.ToSQL()
	if err != nil {
		return "", nil, errors.Join(ErrBuildingQueryFailed, err)
	}

	return sqlQuery, args, nil
}
