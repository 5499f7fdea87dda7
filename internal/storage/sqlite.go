package storage

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"math"
	"strings"

	"github.com/restsend/chatkit/model"
)

// sqliteTable is the durable Table backend, grounded on
// bken/server/internal/store/store.go's database/sql + modernc.org/sqlite
// usage: plain SQL statements, no ORM.
type sqliteTable[T model.StoreModel] struct {
	db    *sql.DB
	table string
}

func (t *sqliteTable[T]) Get(partition, key string) (T, bool) {
	var zero T
	row := t.db.QueryRow(
		`SELECT value FROM kv_records WHERE table_name = ? AND partition = ? AND key = ?`,
		t.table, partition, key,
	)
	var raw string
	if err := row.Scan(&raw); err != nil {
		return zero, false
	}
	var v T
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		slog.Warn("storage: decode row failed", "table", t.table, "key", key, "err", err)
		return zero, false
	}
	return v, true
}

func (t *sqliteTable[T]) Set(partition, key string, value *T) {
	if value == nil {
		t.Remove(partition, key)
		return
	}
	raw, err := json.Marshal(*value)
	if err != nil {
		slog.Error("storage: encode row failed", "table", t.table, "key", key, "err", err)
		return
	}
	_, err = t.db.Exec(
		`INSERT INTO kv_records (table_name, partition, key, sort_key, value)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (table_name, partition, key)
		 DO UPDATE SET sort_key = excluded.sort_key, value = excluded.value`,
		t.table, partition, key, (*value).SortKey(), string(raw),
	)
	if err != nil {
		slog.Error("storage: write row failed", "table", t.table, "key", key, "err", err)
	}
}

func (t *sqliteTable[T]) Remove(partition, key string) {
	_, err := t.db.Exec(
		`DELETE FROM kv_records WHERE table_name = ? AND partition = ? AND key = ?`,
		t.table, partition, key,
	)
	if err != nil {
		slog.Error("storage: delete row failed", "table", t.table, "key", key, "err", err)
	}
}

func (t *sqliteTable[T]) Last(partition string) (T, bool) {
	var zero T
	row := t.db.QueryRow(
		`SELECT value FROM kv_records WHERE table_name = ? AND partition = ?
		 ORDER BY sort_key DESC LIMIT 1`,
		t.table, partition,
	)
	var raw string
	if err := row.Scan(&raw); err != nil {
		return zero, false
	}
	var v T
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return zero, false
	}
	return v, true
}

// Query mirrors the in-memory backend's pagination contract (sort keys
// strictly below the cursor, newest first), expressed as SQL range + ORDER BY
// instead of an index walk.
func (t *sqliteTable[T]) Query(partition string, opt QueryOption) QueryResult[T] {
	upper := int64(math.MaxInt64)
	if opt.StartSortValue != nil {
		upper = *opt.StartSortValue
	}

	rows, err := t.db.Query(
		`SELECT value FROM kv_records WHERE table_name = ? AND partition = ? AND sort_key < ?
		 ORDER BY sort_key DESC LIMIT ?`,
		t.table, partition, upper, opt.Limit,
	)
	if err != nil {
		slog.Error("storage: query failed", "table", t.table, "err", err)
		return QueryResult[T]{}
	}
	defer rows.Close()

	var items []T
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			continue
		}
		var v T
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			continue
		}
		if opt.Keyword != "" && !strings.Contains(raw, opt.Keyword) {
			continue
		}
		items = append(items, v)
	}

	result := QueryResult[T]{Items: items}
	if len(items) > 0 {
		result.StartSortValue = items[0].SortKey()
		result.EndSortValue = items[len(items)-1].SortKey()
	}
	return result
}

func (t *sqliteTable[T]) Filter(partition string, predicate func(T) (T, bool)) []T {
	rows, err := t.db.Query(
		`SELECT value FROM kv_records WHERE table_name = ? AND partition = ?`,
		t.table, partition,
	)
	if err != nil {
		slog.Error("storage: filter query failed", "table", t.table, "err", err)
		return nil
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			continue
		}
		var v T
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			continue
		}
		if nv, ok := predicate(v); ok {
			out = append(out, nv)
		}
	}
	return out
}

func (t *sqliteTable[T]) Clear() {
	_, err := t.db.Exec(`DELETE FROM kv_records WHERE table_name = ?`, t.table)
	if err != nil {
		slog.Error("storage: clear failed", "table", t.table, "err", err)
	}
}
