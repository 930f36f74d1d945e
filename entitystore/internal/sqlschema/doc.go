// Package sqlschema holds the persisted layout of the event log shared by the SQL engines.
//
// One append-only table (id identity primary key, entity_id, type, payload) with an index on
// (entity_id, id desc) is all the store needs. The statements are rendered per dialect.
package sqlschema
