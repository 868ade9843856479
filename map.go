// Copyright 2025 The Flathash Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package flathash provides hash-based associative containers: Map, an
// unordered mapping from keys to values; Set, its keys-only counterpart;
// and GroupBy, which buckets a sequence's elements by a computed key.
//
// Both containers are backed by the same open-addressing table. The table
// is a power-of-two array of slots with one control byte per slot marking
// it empty, full, or tombstoned. Collisions are resolved by quadratic
// (triangular) probing, which visits every slot exactly once per cycle
// when the capacity is a power of two. Each full slot caches the hash of
// its key, computed once at insertion: probing compares the cached hash
// before falling back to key equality, and growth relocates entries from
// the cache without rehashing any key. By default keys are hashed with the
// same hash function as Go's builtin map[K]V, though a different hash
// function can be specified using the WithHash option.
//
// Deletion tombstones a slot rather than emptying it so that probe
// sequences passing through the slot keep working; tombstoned slots are
// reclaimed by later insertions and dropped wholesale the next time the
// table grows. Only insertion can grow a table, and it does so when the
// insert would push the number of elements above 3/4 of the capacity.
// Capacity is observable (and reservable), which makes reallocation
// predictable: as long as Len stays at or below Capacity*3/4, inserts do
// not reallocate.
//
// The containers report failure through explicit errors rather than
// panics: the unique-sequence constructors return a DuplicateKeyError on
// colliding input keys, and caller-supplied combine/transform/key
// functions abort the surrounding operation by returning an error, which
// is propagated unchanged. Everything else is total.
//
// A Map or Set is NOT goroutine-safe.
package flathash

import "iter"

// Map is an unordered map from keys to values with Put, Get, Delete, and
// All operations plus sequence construction, merging, filtering, and
// capacity introspection. The zero value for a Map is not usable; use New
// or one of the Collect constructors.
type Map[K comparable, V any] struct {
	t table[K, V]
}

// New constructs a Map with capacity for initialCapacity elements. If
// initialCapacity is 0 the map will start out with zero capacity and will
// grow on the first insert.
func New[K comparable, V any](initialCapacity int, options ...option[K, V]) *Map[K, V] {
	m := &Map[K, V]{}
	m.t.init(initialCapacity, options)
	return m
}

// CollectUnique builds a Map from a sequence of key/value pairs whose keys
// must be unique. If a pair's key compares equal to one already taken from
// the same sequence the construction fails with a DuplicateKeyError (even
// if the values are equal) and no map is returned.
func CollectUnique[K comparable, V any](
	seq iter.Seq2[K, V], options ...option[K, V],
) (*Map[K, V], error) {
	m := New[K, V](0, options...)
	for k, v := range seq {
		if _, replaced := m.t.put(k, v); replaced {
			m.Close()
			return nil, &DuplicateKeyError[K]{Key: k}
		}
	}
	return m, nil
}

// CollectFunc builds a Map from a sequence of key/value pairs, resolving
// duplicate keys with combine: on a collision the stored value becomes
// combine(existing, incoming) and the slot keeps its original key. An
// error from combine aborts the remaining insertions and propagates; no
// map is returned.
func CollectFunc[K comparable, V any](
	seq iter.Seq2[K, V], combine func(existing, incoming V) (V, error), options ...option[K, V],
) (*Map[K, V], error) {
	m := New[K, V](0, options...)
	if err := m.Merge(seq, combine); err != nil {
		m.Close()
		return nil, err
	}
	return m, nil
}

// Get retrieves the value from the map for the specified key, returning
// ok=false if the key is not present.
func (m *Map[K, V]) Get(key K) (value V, ok bool) {
	return m.t.get(key)
}

// GetOrDefault returns the value stored for key, or def if key is absent.
// The map is never mutated: a miss does not insert def and cannot change
// the map's capacity or key set.
func (m *Map[K, V]) GetOrDefault(key K, def V) V {
	if v, ok := m.t.get(key); ok {
		return v
	}
	return def
}

// Put inserts an entry into the map, overwriting an existing value if an
// entry with the same key already exists.
func (m *Map[K, V]) Put(key K, value V) {
	m.t.put(key, value)
}

// Delete deletes the entry corresponding to the specified key from the
// map. It is a noop to delete a non-existent key.
func (m *Map[K, V]) Delete(key K) {
	m.t.remove(key)
}

// Merge merges the pairs of seq into the map: an absent key is inserted
// as-is, a present key has its stored value replaced by combine(existing,
// incoming) while the slot keeps its original key. Conflicts are resolved
// in seq's iteration order. An error from combine aborts the merge
// immediately and propagates; pairs merged before the failure remain.
//
// A Map's All method is a valid seq, so two maps merge as
// m.Merge(other.All, combine).
func (m *Map[K, V]) Merge(
	seq iter.Seq2[K, V], combine func(existing, incoming V) (V, error),
) error {
	for k, v := range seq {
		if existing, ok := m.t.get(k); ok {
			resolved, err := combine(existing, v)
			if err != nil {
				return err
			}
			m.t.put(k, resolved)
		} else {
			m.t.put(k, v)
		}
	}
	return nil
}

// Merged returns a copy of the map with seq merged in, leaving the
// receiver untouched. On a combine error no map is returned and the
// receiver is still untouched.
func (m *Map[K, V]) Merged(
	seq iter.Seq2[K, V], combine func(existing, incoming V) (V, error),
) (*Map[K, V], error) {
	r := m.Clone()
	if err := r.Merge(seq, combine); err != nil {
		r.Close()
		return nil, err
	}
	return r, nil
}

// Filter returns a new Map containing only the pairs for which pred
// returns true. The result is never larger than the receiver and retained
// key/value associations are unchanged. The result shares the receiver's
// hash function, seed, and allocator.
func (m *Map[K, V]) Filter(pred func(key K, value V) bool) *Map[K, V] {
	r := &Map[K, V]{t: m.t.derive()}
	m.t.all(func(k K, v V) bool {
		if pred(k, v) {
			r.t.put(k, v)
		}
		return true
	})
	return r
}

// MapValues returns a Map with exactly the same key set as m, in the same
// slot positions, and transform applied to each value. An error from
// transform aborts the operation and no map is returned. MapValues is a
// free function because a Go method cannot introduce the result value type
// parameter. The result uses the default allocator.
func MapValues[K comparable, V, T any](
	m *Map[K, V], transform func(V) (T, error),
) (*Map[K, T], error) {
	r := &Map[K, T]{t: table[K, T]{
		hash:       m.t.hash,
		seed:       m.t.seed,
		allocator:  defaultAllocator[K, T]{},
		capacity:   m.t.capacity,
		used:       m.t.used,
		tombstones: m.t.tombstones,
	}}
	if m.t.capacity > 0 {
		r.t.ctrls = r.t.allocator.AllocControls(int(m.t.capacity))
		r.t.slots = r.t.allocator.AllocSlots(int(m.t.capacity))
		copy(r.t.ctrls, m.t.ctrls)
		for i := uintptr(0); i < m.t.capacity; i++ {
			if m.t.ctrls[i] != slotFull {
				continue
			}
			s := &m.t.slots[i]
			v, err := transform(s.value)
			if err != nil {
				r.Close()
				return nil, err
			}
			r.t.slots[i] = Slot[K, T]{hash: s.hash, key: s.key, value: v}
		}
	}
	r.t.checkInvariants()
	return r, nil
}

// All calls yield sequentially for each key and value present in the map,
// stopping early if yield returns false. All is usable directly with
// range-over-func and satisfies iter.Seq2[K, V]. The map can be mutated
// during iteration, though there is no guarantee that the mutations will
// be visible to the iteration.
func (m *Map[K, V]) All(yield func(key K, value V) bool) {
	m.t.all(yield)
}

// Len returns the number of entries in the map.
func (m *Map[K, V]) Len() int {
	return m.t.used
}

// Capacity returns the number of slots in the map's backing table.
// Inserts that keep Len at or below Capacity*3/4 do not reallocate;
// an insert that reallocates invalidates any previously observed slot
// positions.
func (m *Map[K, V]) Capacity() int {
	return int(m.t.capacity)
}

// Reserve grows the map (never shrinks it) so that at least n total
// elements can be stored without another reallocation.
func (m *Map[K, V]) Reserve(n int) {
	m.t.reserve(n)
}

// Clear removes all entries from the map, keeping the current capacity.
func (m *Map[K, V]) Clear() {
	m.t.clear()
}

// Clone returns a copy of the map sharing no storage with m. The copy
// keeps m's seed and slot layout.
func (m *Map[K, V]) Clone() *Map[K, V] {
	return &Map[K, V]{t: m.t.clone()}
}

// Close closes the map, releasing any memory back to its configured
// allocator. It is unnecessary to close a map using the default
// allocator. It is invalid to use a Map after it has been closed, though
// Close itself is idempotent.
func (m *Map[K, V]) Close() {
	m.t.close()
}
