// Package dataloader provides generic helpers for batch loading: extracting
// distinct keys, splitting them into batches and mapping batch results back
// to the requested keys.
//
// The fetch planner uses them to turn the rows of one level into the IN
// lists of the next:
//
//	keys := dataloader.DistinctKeys(parents, func(o *graph.Object) any { return o.ID() })
//	for _, batch := range dataloader.Chunk(keys, 500) {
//	    rows, err := load(ctx, batch)
//	    ...
//	}
//
// Lookups by identifier restore the requested order with OrderByKeys.
package dataloader

import "errors"

// ErrNotFound is returned when an entity is not found in a batch result.
var ErrNotFound = errors.New("dataloader: entity not found")

// KeyFunc extracts a key from an entity.
type KeyFunc[K comparable, V any] func(V) K

// DistinctKeys returns the distinct keys of values in first-seen order.
// Values whose key is the zero value of K are skipped.
func DistinctKeys[K comparable, V any](values []V, keyFn KeyFunc[K, V]) []K {
	var (
		zero K
		seen = make(map[K]struct{}, len(values))
		keys = make([]K, 0, len(values))
	)
	for _, v := range values {
		k := keyFn(v)
		if k == zero {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	return keys
}

// Chunk splits keys into batches of at most size elements, keeping their
// order. A size <= 0 returns a single batch.
func Chunk[K any](keys []K, size int) [][]K {
	if len(keys) == 0 {
		return nil
	}
	if size <= 0 || len(keys) <= size {
		return [][]K{keys}
	}
	chunks := make([][]K, 0, (len(keys)+size-1)/size)
	for start := 0; start < len(keys); start += size {
		end := min(start+size, len(keys))
		chunks = append(chunks, keys[start:end:end])
	}
	return chunks
}

// OrderByKeys reorders entities to match the order of requested keys.
// Missing entities are represented as zero values with ErrNotFound.
func OrderByKeys[K comparable, V any](keys []K, values []V, keyFn KeyFunc[K, V]) ([]V, []error) {
	lookup := make(map[K]V, len(values))
	for _, v := range values {
		lookup[keyFn(v)] = v
	}
	result := make([]V, len(keys))
	errs := make([]error, len(keys))
	for i, key := range keys {
		if v, ok := lookup[key]; ok {
			result[i] = v
		} else {
			errs[i] = ErrNotFound
		}
	}
	return result, errs
}
