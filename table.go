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

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"unsafe"
)

const (
	debug = false

	// Slot states. slotEmpty must be zero so that a freshly allocated
	// control array reads as all-empty.
	slotEmpty   uint8 = 0
	slotDeleted uint8 = 1
	slotFull    uint8 = 2

	// minCapacity is the smallest non-zero table capacity. Capacity is
	// always zero or a power of two so the probe mask is capacity-1.
	minCapacity = 8

	// The maximum load factor is maxLoadNum/maxLoadDen (3/4). Expressed as
	// integers to keep the growth check in integer math.
	maxLoadNum = 3
	maxLoadDen = 4
)

// Slot holds an occupied cell's cached hash, key, and value. The hash is
// the digest of key computed at insertion time; it short-circuits key
// comparisons during probing and lets growth relocate entries without
// rehashing them.
type Slot[K comparable, V any] struct {
	hash  uintptr
	key   K
	value V
}

// table is the storage engine shared by Map and Set: a power-of-two array
// of slots with one control byte per slot, quadratic probing, and tombstone
// deletion. It is agnostic to Map/Set semantics.
//
// An index returned by find or put stays valid (keeps pointing at the same
// logical entry) until an operation changes the table's capacity. Only
// insertion can change the capacity.
type table[K comparable, V any] struct {
	// The hash function for keys of type K. By default extracted from the
	// Go runtime's implementation of map[K]struct{}.
	hash hashFn
	seed uintptr
	// The allocator to use for the ctrls and slots slices.
	allocator Allocator[K, V]
	// ctrls is capacity in length, one state byte per slot.
	ctrls []uint8
	// slots is capacity in length.
	slots []Slot[K, V]
	// The total number of slots. Always 0 or a power of two; capacity-1 is
	// the probe mask.
	capacity uintptr
	// The number of filled slots.
	used int
	// The number of tombstoned slots. Tombstones keep probe sequences
	// intact after deletion and are only dropped wholesale by resize.
	tombstones int
}

func (t *table[K, V]) init(initialCapacity int, options []option[K, V]) {
	t.hash = getRuntimeHasher[K]()
	t.seed = uintptr(rand.Uint64())
	t.allocator = defaultAllocator[K, V]{}

	for _, op := range options {
		op.apply(t)
	}

	if initialCapacity > 0 {
		t.resize(capacityFor(initialCapacity))
	}
	t.checkInvariants()
}

// derive returns an empty table sharing t's hash function, seed, and
// allocator. Entries copied between t and a derived table keep their
// cached hashes valid.
func (t *table[K, V]) derive() table[K, V] {
	return table[K, V]{hash: t.hash, seed: t.seed, allocator: t.allocator}
}

// capacityFor returns the smallest valid capacity that holds n elements
// without exceeding the load factor threshold.
func capacityFor(n int) uintptr {
	c := uintptr(minCapacity)
	for int(c)*maxLoadNum < n*maxLoadDen {
		c <<= 1
	}
	return c
}

func (t *table[K, V]) hashKey(key *K) uintptr {
	return t.hash(noescape(unsafe.Pointer(key)), t.seed)
}

// find returns the index of the slot holding key, if present. Probing
// skips tombstones and terminates at an empty slot or after visiting every
// slot once.
func (t *table[K, V]) find(key K) (index uintptr, ok bool) {
	h := t.hashKey(&key)
	seq := makeProbeSeq(h, t.capacity-1)
	if debug {
		fmt.Printf("find(%v): %s\n", key, seq)
	}

	for n := uintptr(0); n < t.capacity; n, seq = n+1, seq.next() {
		i := seq.offset
		switch t.ctrls[i] {
		case slotEmpty:
			return 0, false
		case slotFull:
			s := &t.slots[i]
			if s.hash == h && s.key == key {
				return i, true
			}
		}
	}
	return 0, false
}

func (t *table[K, V]) get(key K) (value V, ok bool) {
	i, ok := t.find(key)
	if !ok {
		return value, false
	}
	return t.slots[i].value, true
}

// put inserts an entry, overwriting the value in place if key is already
// present. The returned index is valid immediately after the call: if the
// insert would push the load factor over the threshold the table grows
// before the slot is claimed. Only put grows the table.
func (t *table[K, V]) put(key K, value V) (index uintptr, replaced bool) {
	h := t.hashKey(&key)

	// A single probe pass looks for an existing entry while remembering
	// the first reusable slot: the first tombstone seen, else the empty
	// slot that terminates the probe.
	var target uintptr
	haveTarget := false
	seq := makeProbeSeq(h, t.capacity-1)
	if debug {
		fmt.Printf("put(%v): %s\n", key, seq)
	}

probe:
	for n := uintptr(0); n < t.capacity; n, seq = n+1, seq.next() {
		i := seq.offset
		switch t.ctrls[i] {
		case slotEmpty:
			if !haveTarget {
				target = i
				haveTarget = true
			}
			break probe
		case slotDeleted:
			if !haveTarget {
				target = i
				haveTarget = true
			}
		default:
			s := &t.slots[i]
			if s.hash == h && s.key == key {
				s.value = value
				t.checkInvariants()
				return i, true
			}
		}
	}

	if !haveTarget || (t.used+1)*maxLoadDen > int(t.capacity)*maxLoadNum {
		t.resize(2 * t.capacity)
		target = t.uncheckedPut(h, key, value)
	} else {
		if t.ctrls[target] == slotDeleted {
			t.tombstones--
		}
		s := &t.slots[target]
		s.hash, s.key, s.value = h, key, value
		t.ctrls[target] = slotFull
	}
	t.used++
	t.checkInvariants()
	return target, false
}

// uncheckedPut inserts an entry known not to be in the table into the
// first non-full slot on the probe sequence.
func (t *table[K, V]) uncheckedPut(h uintptr, key K, value V) uintptr {
	seq := makeProbeSeq(h, t.capacity-1)
	for ; ; seq = seq.next() {
		i := seq.offset
		if t.ctrls[i] != slotFull {
			if t.ctrls[i] == slotDeleted {
				t.tombstones--
			}
			s := &t.slots[i]
			s.hash, s.key, s.value = h, key, value
			t.ctrls[i] = slotFull
			return i
		}
	}
}

// remove deletes key's entry, leaving a tombstone so probe sequences that
// pass through the slot stay intact. Removing an absent key is a no-op.
// remove never grows or compacts the table.
func (t *table[K, V]) remove(key K) (value V, ok bool) {
	i, ok := t.find(key)
	if !ok {
		return value, false
	}
	value = t.slots[i].value
	t.slots[i] = Slot[K, V]{}
	t.ctrls[i] = slotDeleted
	t.used--
	t.tombstones++
	if debug {
		fmt.Printf("remove(%v): index=%d used=%d tombstones=%d\n", key, i, t.used, t.tombstones)
	}
	t.checkInvariants()
	return value, true
}

// resize reallocates the backing arrays at newCapacity and re-inserts
// every occupied slot using its cached hash; keys are not rehashed.
// Tombstones are dropped. All previously returned indices are invalid
// after this call.
func (t *table[K, V]) resize(newCapacity uintptr) {
	if newCapacity < minCapacity {
		newCapacity = minCapacity
	}

	oldCtrls, oldSlots, oldCapacity := t.ctrls, t.slots, t.capacity
	t.ctrls = t.allocator.AllocControls(int(newCapacity))
	t.slots = t.allocator.AllocSlots(int(newCapacity))
	t.capacity = newCapacity
	t.tombstones = 0

	if debug {
		fmt.Printf("resize: capacity=%d->%d used=%d\n", oldCapacity, newCapacity, t.used)
	}

	for i := uintptr(0); i < oldCapacity; i++ {
		if oldCtrls[i] != slotFull {
			continue
		}
		s := &oldSlots[i]
		t.uncheckedPut(s.hash, s.key, s.value)
	}

	if oldCapacity > 0 {
		t.allocator.FreeSlots(oldSlots)
		t.allocator.FreeControls(oldCtrls)
	}

	t.checkInvariants()
}

// reserve grows the table (never shrinks it) so that at least n total
// elements can be stored without another reallocation.
func (t *table[K, V]) reserve(n int) {
	if c := capacityFor(n); c > t.capacity {
		t.resize(c)
	}
}

// clear removes all entries, keeping the current capacity.
func (t *table[K, V]) clear() {
	clear(t.ctrls)
	clear(t.slots)
	t.used = 0
	t.tombstones = 0
	t.checkInvariants()
}

// clone returns a copy sharing no storage with t. The copy keeps t's seed
// and slot layout, so cached hashes and outstanding indices carry over.
func (t *table[K, V]) clone() table[K, V] {
	n := table[K, V]{
		hash:       t.hash,
		seed:       t.seed,
		allocator:  t.allocator,
		capacity:   t.capacity,
		used:       t.used,
		tombstones: t.tombstones,
	}
	if t.capacity > 0 {
		n.ctrls = n.allocator.AllocControls(int(t.capacity))
		n.slots = n.allocator.AllocSlots(int(t.capacity))
		copy(n.ctrls, t.ctrls)
		copy(n.slots, t.slots)
	}
	return n
}

// close releases the table's memory back to its allocator. close is
// idempotent.
func (t *table[K, V]) close() {
	if t.capacity > 0 {
		t.allocator.FreeSlots(t.slots)
		t.allocator.FreeControls(t.ctrls)
		t.capacity = 0
		t.used = 0
		t.tombstones = 0
	}
	t.ctrls = nil
	t.slots = nil
	t.allocator = nil
}

// all calls yield for each occupied slot. The capacity, controls, and
// slots are snapshotted up front so iteration stays valid if the table
// grows mid-iteration, though there is no guarantee such mutations are
// visible to the iteration.
func (t *table[K, V]) all(yield func(key K, value V) bool) {
	capacity, ctrls, slots := t.capacity, t.ctrls, t.slots
	for i := uintptr(0); i < capacity; i++ {
		if ctrls[i] == slotFull {
			s := &slots[i]
			if !yield(s.key, s.value) {
				return
			}
		}
	}
}

func (t *table[K, V]) checkInvariants() {
	if invariants {
		if t.capacity&(t.capacity-1) != 0 {
			panic(fmt.Sprintf("invariant failed: capacity %d is not a power of two", t.capacity))
		}
		if t.capacity > 0 && t.capacity < minCapacity {
			panic(fmt.Sprintf("invariant failed: capacity %d is below the minimum %d", t.capacity, minCapacity))
		}

		// For every full slot, verify the cached hash and that the entry is
		// reachable through find. Count the full and tombstoned slots.
		var used, deleted int
		for i := uintptr(0); i < t.capacity; i++ {
			switch t.ctrls[i] {
			case slotDeleted:
				deleted++
			case slotFull:
				s := &t.slots[i]
				if h := t.hashKey(&s.key); h != s.hash {
					panic(fmt.Sprintf("invariant failed: slot(%d): cached hash %016x != %016x\n%s",
						i, s.hash, h, t.debugString()))
				}
				if j, ok := t.find(s.key); !ok || j != i {
					panic(fmt.Sprintf("invariant failed: slot(%d): %v not found at its slot\n%s",
						i, s.key, t.debugString()))
				}
				used++
			}
		}

		if used != t.used {
			panic(fmt.Sprintf("invariant failed: found %d used slots, but used count is %d\n%s",
				used, t.used, t.debugString()))
		}
		if deleted != t.tombstones {
			panic(fmt.Sprintf("invariant failed: found %d tombstones, but tombstone count is %d\n%s",
				deleted, t.tombstones, t.debugString()))
		}
		if t.used*maxLoadDen > int(t.capacity)*maxLoadNum {
			panic(fmt.Sprintf("invariant failed: load factor %d/%d exceeds %d/%d\n%s",
				t.used, t.capacity, maxLoadNum, maxLoadDen, t.debugString()))
		}
	}
}

func (t *table[K, V]) debugString() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "capacity=%d  used=%d  tombstones=%d\n", t.capacity, t.used, t.tombstones)
	for i := uintptr(0); i < t.capacity; i++ {
		switch t.ctrls[i] {
		case slotEmpty:
			fmt.Fprintf(&buf, "  %4d: empty\n", i)
		case slotDeleted:
			fmt.Fprintf(&buf, "  %4d: deleted\n", i)
		default:
			s := &t.slots[i]
			fmt.Fprintf(&buf, "  %4d: %v [hash=%016x]\n", i, s.key, s.hash)
		}
	}
	return buf.String()
}

// probeSeq maintains the state for a probe sequence: a triangular
// progression of the form
//
//	p(i) := (i^2 + i)/2 + hash (mod mask+1)
//
// It turns out that this sequence visits every slot exactly once if the
// capacity is a power of two, since (i^2+i)/2 is a bijection in Z/(2^m).
// See https://en.wikipedia.org/wiki/Quadratic_probing
type probeSeq struct {
	mask   uintptr
	offset uintptr
	index  uintptr
}

func makeProbeSeq(hash, mask uintptr) probeSeq {
	return probeSeq{
		mask:   mask,
		offset: hash & mask,
		index:  0,
	}
}

func (s probeSeq) next() probeSeq {
	s.index++
	s.offset = (s.offset + s.index) & s.mask
	return s
}

func (s probeSeq) String() string {
	return fmt.Sprintf("mask=%d offset=%d index=%d", s.mask, s.offset, s.index)
}
