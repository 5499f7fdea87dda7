package storage

import (
	"sort"
	"strings"
	"sync"

	"github.com/restsend/chatkit/model"
)

// memoryTable is the in-memory Table backend, grounded on the original's
// BTreeMap-indexed InMemoryStorage: a per-partition value map plus a
// sort-key index kept in ascending order.
type memoryTable[T model.StoreModel] struct {
	mu         sync.Mutex
	partitions map[string]*memoryPartition[T]
}

type memoryPartition[T model.StoreModel] struct {
	values map[string]T
	// index maps sort key -> keys inserted at that sort key, preserving
	// insertion order within a key (mirrors the Rust Vec<String> bucket).
	index map[int64][]string
}

func newMemoryTable[T model.StoreModel]() *memoryTable[T] {
	return &memoryTable[T]{partitions: map[string]*memoryPartition[T]{}}
}

func (t *memoryTable[T]) partition(name string, create bool) *memoryPartition[T] {
	p, ok := t.partitions[name]
	if !ok {
		if !create {
			return nil
		}
		p = &memoryPartition[T]{values: map[string]T{}, index: map[int64][]string{}}
		t.partitions[name] = p
	}
	return p
}

func (t *memoryTable[T]) Get(partition, key string) (T, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	var zero T
	p := t.partition(partition, false)
	if p == nil {
		return zero, false
	}
	v, ok := p.values[key]
	return v, ok
}

func (t *memoryTable[T]) Set(partition, key string, value *T) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if value == nil {
		t.removeLocked(partition, key)
		return
	}
	p := t.partition(partition, true)
	if old, ok := p.values[key]; ok {
		t.detachLocked(p, key, old.SortKey())
	}
	sortKey := (*value).SortKey()
	p.values[key] = *value
	bucket := p.index[sortKey]
	for _, k := range bucket {
		if k == key {
			return
		}
	}
	p.index[sortKey] = append(bucket, key)
}

func (t *memoryTable[T]) Remove(partition, key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.removeLocked(partition, key)
}

func (t *memoryTable[T]) removeLocked(partition, key string) {
	p := t.partition(partition, false)
	if p == nil {
		return
	}
	v, ok := p.values[key]
	if !ok {
		return
	}
	t.detachLocked(p, key, v.SortKey())
	delete(p.values, key)
}

func (t *memoryTable[T]) detachLocked(p *memoryPartition[T], key string, sortKey int64) {
	bucket := p.index[sortKey]
	for i, k := range bucket {
		if k == key {
			p.index[sortKey] = append(bucket[:i], bucket[i+1:]...)
			break
		}
	}
	if len(p.index[sortKey]) == 0 {
		delete(p.index, sortKey)
	}
}

func (t *memoryTable[T]) Last(partition string) (T, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	var zero T
	p := t.partition(partition, false)
	if p == nil || len(p.index) == 0 {
		return zero, false
	}
	keys := sortedKeys(p.index)
	last := keys[len(keys)-1]
	bucket := p.index[last]
	if len(bucket) == 0 {
		return zero, false
	}
	return p.values[bucket[len(bucket)-1]], true
}

// Query walks the index from the highest sort key down, skipping keys at or
// above the cursor (when one is given), and collects up to limit items
// newest-first.
func (t *memoryTable[T]) Query(partition string, opt QueryOption) QueryResult[T] {
	t.mu.Lock()
	defer t.mu.Unlock()
	p := t.partition(partition, false)
	if p == nil {
		return QueryResult[T]{}
	}

	keys := sortedKeys(p.index)
	sort.Slice(keys, func(i, j int) bool { return keys[i] > keys[j] })
	items := make([]T, 0, opt.Limit)
outer:
	for _, sortKey := range keys {
		if opt.StartSortValue != nil && sortKey >= *opt.StartSortValue {
			continue
		}
		for _, k := range p.index[sortKey] {
			v, ok := p.values[k]
			if !ok {
				continue
			}
			if opt.Keyword != "" && !valueContains(v, opt.Keyword) {
				continue
			}
			items = append(items, v)
			if len(items) >= opt.Limit {
				break outer
			}
		}
	}

	result := QueryResult[T]{Items: items}
	if len(items) > 0 {
		result.StartSortValue = items[0].SortKey()
		result.EndSortValue = items[len(items)-1].SortKey()
	}
	return result
}

func (t *memoryTable[T]) lastLocked(p *memoryPartition[T]) (T, bool) {
	var zero T
	if len(p.index) == 0 {
		return zero, false
	}
	keys := sortedKeys(p.index)
	last := keys[len(keys)-1]
	bucket := p.index[last]
	if len(bucket) == 0 {
		return zero, false
	}
	return p.values[bucket[len(bucket)-1]], true
}

func (t *memoryTable[T]) Filter(partition string, predicate func(T) (T, bool)) []T {
	t.mu.Lock()
	defer t.mu.Unlock()
	p := t.partition(partition, false)
	if p == nil {
		return nil
	}
	var out []T
	for _, v := range p.values {
		if nv, ok := predicate(v); ok {
			out = append(out, nv)
		}
	}
	return out
}

func (t *memoryTable[T]) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.partitions = map[string]*memoryPartition[T]{}
}

func sortedKeys(index map[int64][]string) []int64 {
	keys := make([]int64, 0, len(index))
	for k := range index {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func valueContains(v any, keyword string) bool {
	type stringer interface{ String() string }
	if s, ok := v.(stringer); ok {
		return strings.Contains(s.String(), keyword)
	}
	return true
}
