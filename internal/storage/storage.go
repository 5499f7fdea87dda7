// Package storage provides the partitioned key-value storage the Client
// Store (and the sync engine, through it) reads and writes through: a
// durable sqlite-backed Table and an in-memory fallback Table, behind one
// interface. Failures opening the durable backend degrade to the in-memory
// backend rather than failing the whole client.
package storage

import (
	"database/sql"
	"log/slog"
	"path/filepath"

	"github.com/restsend/chatkit/model"
	_ "modernc.org/sqlite"
)

// QueryOption controls a descending-cursor range query over one partition.
type QueryOption struct {
	// StartSortValue anchors the page: items strictly below this sort key
	// are returned, most recent first. Nil means "start from the newest
	// item in the partition."
	StartSortValue *int64
	Limit          int
	Keyword        string // optional substring filter over the serialized value
}

// QueryResult is one page of a range query, newest-first.
type QueryResult[T any] struct {
	Items          []T
	StartSortValue int64 // sort key of Items[0], or 0 if empty
	EndSortValue   int64 // sort key of Items[len-1], or 0 if empty
}

// Table is a partitioned store of JSON-serializable, sort-keyed records.
// Partition is an opaque caller-chosen string (e.g. a topic id for chat
// logs, "" for a flat table); Key is unique within a partition.
type Table[T model.StoreModel] interface {
	Get(partition, key string) (T, bool)
	Set(partition, key string, value *T)
	Remove(partition, key string)
	Last(partition string) (T, bool)
	Query(partition string, opt QueryOption) QueryResult[T]
	Filter(partition string, predicate func(T) (T, bool)) []T
	Clear()
}

// DB is an opened storage backend: either sqlite-on-disk or in-memory.
// Individual Tables are obtained from it with the package-level OpenTable
// function (Go methods can't introduce their own type parameters).
type DB struct {
	sqlite *sql.DB // nil if running in-memory
}

// Open opens a sqlite database at filepath.Join(rootDir, dbName). If dbName
// is empty, or opening/migrating fails, it logs a warning and returns a
// purely in-memory DB instead — durable-backend failures degrade rather
// than propagate.
func Open(rootDir, dbName string) *DB {
	if dbName == "" {
		return &DB{}
	}
	path := filepath.Join(rootDir, dbName)
	db, err := sql.Open("sqlite", path)
	if err != nil {
		slog.Warn("storage: open sqlite failed, falling back to memory", "path", path, "err", err)
		return &DB{}
	}
	if err := db.Ping(); err != nil {
		slog.Warn("storage: ping sqlite failed, falling back to memory", "path", path, "err", err)
		return &DB{}
	}
	if _, err := db.Exec(schemaDDL); err != nil {
		slog.Warn("storage: migrate sqlite failed, falling back to memory", "path", path, "err", err)
		_ = db.Close()
		return &DB{}
	}
	slog.Info("storage: opened sqlite backend", "path", path)
	return &DB{sqlite: db}
}

// Close releases the underlying sqlite handle, if any.
func (d *DB) Close() error {
	if d.sqlite == nil {
		return nil
	}
	return d.sqlite.Close()
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS kv_records (
	table_name TEXT NOT NULL,
	partition  TEXT NOT NULL,
	key        TEXT NOT NULL,
	sort_key   INTEGER NOT NULL,
	value      TEXT NOT NULL,
	PRIMARY KEY (table_name, partition, key)
);
CREATE INDEX IF NOT EXISTS idx_kv_records_sort
	ON kv_records (table_name, partition, sort_key);
`

// OpenTable returns a Table[T] named tableName. A nil d.sqlite selects the
// in-memory backend; otherwise the sqlite backend is used, namespaced by
// tableName within the shared kv_records table.
func OpenTable[T model.StoreModel](d *DB, tableName string) Table[T] {
	if d.sqlite == nil {
		return newMemoryTable[T]()
	}
	return &sqliteTable[T]{db: d.sqlite, table: tableName}
}

