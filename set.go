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

package flathash

import "iter"

// Set is an unordered collection of unique elements. It is backed by the
// same table engine as Map with a zero-sized value, so construction,
// mutation, and capacity behavior are identical to Map's.
//
// There is deliberately no MapValues analogue for Set: transforming the
// elements of a set can introduce collisions. Rebuild through
// CollectSetUnique and handle its failure instead.
//
// The zero value for a Set is not usable; use NewSet or one of the
// CollectSet constructors.
type Set[E comparable] struct {
	t table[E, struct{}]
}

// NewSet constructs a Set with capacity for initialCapacity elements. If
// initialCapacity is 0 the set will start out with zero capacity and will
// grow on the first insert.
func NewSet[E comparable](initialCapacity int, options ...option[E, struct{}]) *Set[E] {
	s := &Set[E]{}
	s.t.init(initialCapacity, options)
	return s
}

// CollectSet builds a Set from a sequence, dropping duplicate elements.
func CollectSet[E comparable](seq iter.Seq[E], options ...option[E, struct{}]) *Set[E] {
	s := NewSet[E](0, options...)
	for e := range seq {
		s.t.put(e, struct{}{})
	}
	return s
}

// CollectSetUnique builds a Set from a sequence whose elements must be
// unique, failing with a DuplicateKeyError on a repeated element. No set
// is returned on failure.
func CollectSetUnique[E comparable](
	seq iter.Seq[E], options ...option[E, struct{}],
) (*Set[E], error) {
	s := NewSet[E](0, options...)
	for e := range seq {
		if _, replaced := s.t.put(e, struct{}{}); replaced {
			s.Close()
			return nil, &DuplicateKeyError[E]{Key: e}
		}
	}
	return s, nil
}

// Add inserts e into the set, reporting whether it was not already
// present.
func (s *Set[E]) Add(e E) bool {
	_, replaced := s.t.put(e, struct{}{})
	return !replaced
}

// Contains reports whether e is in the set.
func (s *Set[E]) Contains(e E) bool {
	_, ok := s.t.find(e)
	return ok
}

// Remove deletes e from the set, reporting whether it was present. It is
// a noop to remove an absent element.
func (s *Set[E]) Remove(e E) bool {
	_, ok := s.t.remove(e)
	return ok
}

// Filter returns a new Set containing only the elements for which pred
// returns true. The result is never larger than the receiver and shares
// the receiver's hash function, seed, and allocator.
func (s *Set[E]) Filter(pred func(e E) bool) *Set[E] {
	r := &Set[E]{t: s.t.derive()}
	s.t.all(func(e E, _ struct{}) bool {
		if pred(e) {
			r.t.put(e, struct{}{})
		}
		return true
	})
	return r
}

// All calls yield sequentially for each element present in the set,
// stopping early if yield returns false. All is usable directly with
// range-over-func and satisfies iter.Seq[E].
func (s *Set[E]) All(yield func(e E) bool) {
	s.t.all(func(e E, _ struct{}) bool {
		return yield(e)
	})
}

// Len returns the number of elements in the set.
func (s *Set[E]) Len() int {
	return s.t.used
}

// Capacity returns the number of slots in the set's backing table.
// Inserts that keep Len at or below Capacity*3/4 do not reallocate.
func (s *Set[E]) Capacity() int {
	return int(s.t.capacity)
}

// Reserve grows the set (never shrinks it) so that at least n total
// elements can be stored without another reallocation.
func (s *Set[E]) Reserve(n int) {
	s.t.reserve(n)
}

// Clear removes all elements from the set, keeping the current capacity.
func (s *Set[E]) Clear() {
	s.t.clear()
}

// Clone returns a copy of the set sharing no storage with s. The copy
// keeps s's seed and slot layout.
func (s *Set[E]) Clone() *Set[E] {
	return &Set[E]{t: s.t.clone()}
}

// Close closes the set, releasing any memory back to its configured
// allocator. Close is idempotent; any other use after Close is invalid.
func (s *Set[E]) Close() {
	s.t.close()
}
