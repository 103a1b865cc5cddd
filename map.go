// Copyright 2025 The Robinhood Authors
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

// Package robinhood is a Go implementation of an open-addressing hash map
// using Robin Hood hashing with backward-shift deletion. See
// https://en.wikipedia.org/wiki/Hash_table#Robin_Hood_hashing and Pedro
// Celis' original thesis for background.
//
// # Robin Hood hashing
//
// The table uses open addressing with linear probing. Each slot carries one
// metadata byte holding the resident entry's probe distance: the number of
// slots between the entry's ideal bucket (hash & mask) and where it actually
// lives. On collision during insertion the entry that is further from its
// ideal bucket keeps the slot and the nearer ("richer") one is evicted and
// continues probing - rob from the rich, give to the poor. This bounds the
// variance of probe distances relative to plain linear probing and is what
// gives Robin Hood hashing its low worst-case lookup length.
//
// Along any forward probe walk starting at a key's ideal bucket, recorded
// distances are non-decreasing until a match, an empty slot, or a slot
// whose distance is lower than the walk's expected distance. Lookups
// exploit this to terminate early on absent keys without scanning to the
// next empty slot.
//
// Deletion is backward-shift rather than tombstone based: entries displaced
// past the vacated slot are shifted one slot backward (their distances
// decremented) until an empty slot or an entry at its ideal bucket is
// reached. The probe-distance invariant holds again immediately, so deletes
// never degrade subsequent lookups the way tombstones do.
//
// # Layout
//
// The table is a single contiguous allocation of capacity+1 slots, where a
// slot is one metadata byte immediately followed by its (key, value) entry.
// Interleaving the metadata with the entries means the probe walk touches
// one cache line per slot rather than one line in a metadata array plus one
// in an entry array. Capacity is always a power of two (minimum 2) so a
// mask of capacity-1 trims a hash to a bucket index in place of a modulus.
// The one extra trailing slot is the end sentinel for iteration; it is not
// part of the logical table and probe walks wrap around before reaching it.
//
// When the number of entries reaches ceil(capacity * loadFactor) the table
// grows by the configured growth factor and every entry is reinserted under
// the new mask. Growth is synchronous and total: the insertion that crosses
// the threshold pays the full rehash cost inline. Capacity never shrinks.
//
// # Concurrency
//
// A Map is NOT goroutine-safe. There is no internal synchronization and no
// operation blocks; callers must serialize all mutating operations
// externally. Any structural mutation invalidates all previously obtained
// Iterators.
package robinhood

import (
	"fmt"
	"math"
	"math/bits"
	"math/rand"
	"strings"
	"unsafe"

	"github.com/pkg/errors"
)

const (
	defaultInitialCapacity = 128
	defaultLoadFactor      = 0.75
	defaultGrowthFactor    = 16
)

// Map is an unordered map from keys to values with Find, Insert,
// GetOrInsert, Delete, and iteration operations. By default a Map[K,V]
// hashes keys with the byte-mixing or integer-finalizer hash selected by
// defaultHasher; a different strategy can be supplied with WithHash.
//
// A Map is NOT goroutine-safe.
type Map[K comparable, V any] struct {
	// The hash strategy and equality predicate for keys of type K.
	hash Hasher[K]
	eq   func(a, b K) bool
	seed uintptr
	// The allocator to use for the slot array.
	allocator Allocator[K, V]
	table     table[K, V]
	// The number of occupied slots.
	size int
	// The size at which the next successful insertion triggers growth:
	// ceil(capacity * loadFactor).
	growthThreshold int
	loadFactor      float64
	// The capacity multiplier applied on growth, always a power of two.
	growthFactor uintptr
}

// New constructs a Map with the specified initial capacity, rounded up to a
// power of two (minimum 2). If initialCapacity is <= 0 the default of 128
// is used. New fails only if the configuration is invalid or the allocator
// cannot satisfy the initial allocation. The zero value for a Map is not
// usable.
func New[K comparable, V any](initialCapacity int, options ...option[K, V]) (*Map[K, V], error) {
	m := &Map[K, V]{
		hash:         defaultHasher[K](),
		eq:           func(a, b K) bool { return a == b },
		seed:         uintptr(rand.Uint64()),
		allocator:    defaultAllocator[K, V]{},
		loadFactor:   defaultLoadFactor,
		growthFactor: defaultGrowthFactor,
	}

	for _, op := range options {
		op.apply(m)
	}

	if m.loadFactor <= 0 || m.loadFactor >= 1 {
		return nil, errors.Errorf("robinhood: load factor %v outside (0, 1)", m.loadFactor)
	}

	if initialCapacity <= 0 {
		initialCapacity = defaultInitialCapacity
	}
	capacity := ceilPow2(initialCapacity)

	var err error
	m.table, err = makeTable[K, V](m.allocator, capacity)
	if err != nil {
		return nil, err
	}
	m.growthThreshold = growthThreshold(capacity, m.loadFactor)

	m.checkInvariants()
	return m, nil
}

// Close closes the map, releasing its allocation back to the configured
// allocator. It is unnecessary to close a map using the default allocator.
// It is invalid to use a Map after it has been closed, though Close itself
// is idempotent.
func (m *Map[K, V]) Close() {
	m.table.free(m.allocator)
	m.size = 0
	m.allocator = nil
}

// Find returns an iterator located at the entry for key, or the end
// iterator if key is not present.
func (m *Map[K, V]) Find(key K) Iterator[K, V] {
	if i, ok := m.findSlot(key); ok {
		return Iterator[K, V]{cur: m.table.at(i)}
	}
	return m.End()
}

// Get retrieves the value for the specified key, returning ok=false if the
// key is not present.
func (m *Map[K, V]) Get(key K) (value V, ok bool) {
	if i, found := m.findSlot(key); found {
		return m.table.at(i).entry.value, true
	}
	return value, false
}

// Insert inserts a (key, value) entry into the map. If an entry with an
// equal key is already present the map is unchanged and inserted is false;
// a duplicate key is a normal outcome, not an error. The returned iterator
// is located at the entry for key whether or not it was inserted. Insert
// fails only if it triggers a growth whose allocation fails, in which case
// the map retains its pre-growth state and the entry is not inserted.
func (m *Map[K, V]) Insert(key K, value V) (it Iterator[K, V], inserted bool, err error) {
	t := &m.table
	i := m.hashKey(&key) & t.mask
	d := 0
	cand := MakeEntry(key, value)

	for {
		if d > maxProbeDistance {
			panic(probeOverflowMsg)
		}
		s := t.at(i)

		// Found an empty slot: the candidate comes to rest here.
		if s.dist == distEmpty {
			s.dist = uint8(d)
			s.entry = cand
			m.size++
			if m.size >= m.growthThreshold {
				if err := m.grow(); err != nil {
					// Undo the insertion so the map is exactly as it was
					// before the call. The entry the walk came to carry may
					// differ from the argument after displacement, but every
					// key is findable again once the just-written one is
					// removed.
					m.Delete(key)
					return m.End(), false, err
				}
			}
			m.checkInvariants()
			// Displacement and growth may both have moved the entry; locate
			// it by its original key.
			return m.Find(key), true, nil
		}

		// Key already present.
		if int(s.dist) == d && m.eq(s.entry.key, cand.key) {
			return Iterator[K, V]{cur: s}, false, nil
		}

		// The resident is closer to its ideal bucket than the candidate:
		// steal from the rich, give to the poor. The candidate takes the
		// slot and the displaced resident continues the walk.
		if int(s.dist) < d {
			cand.swap(&s.entry)
			d, s.dist = int(s.dist), uint8(d)
		}

		d++
		i = t.next(i)
	}
}

// GetOrInsert returns a pointer to the value for key, inserting a
// zero-value entry if the key is not present. This is the only operation
// that constructs an entry the caller did not supply. The returned pointer
// is valid until the next structural mutation of the map.
func (m *Map[K, V]) GetOrInsert(key K) (*V, error) {
	var zero V
	it, _, err := m.Insert(key, zero)
	if err != nil {
		return nil, err
	}
	return &it.cur.entry.value, nil
}

// Delete removes the entry for key, returning the number of entries
// removed (0 or 1). A missing key is a normal outcome, not an error.
//
// Removal compacts the following displaced run backward: each subsequent
// entry that is not at its ideal bucket is copied one slot to the left with
// its distance decremented, preserving the probe-distance invariant without
// tombstones. The slot vacated at the end of the run is marked empty.
func (m *Map[K, V]) Delete(key K) int {
	left, ok := m.findSlot(key)
	if !ok {
		return 0
	}

	t := &m.table
	right := t.next(left)
	for {
		rs := t.at(right)
		// An empty slot ends the displaced run; so does an entry at
		// distance zero, which sits in its ideal bucket and must not be
		// shifted.
		if rs.dist == distEmpty || rs.dist == 0 {
			break
		}
		ls := t.at(left)
		ls.dist = rs.dist - 1
		ls.entry = rs.entry
		left = t.next(left)
		right = t.next(right)
	}

	// The last slot of the run has been copied leftward (or is the found
	// slot itself); release its entry and mark it empty.
	ls := t.at(left)
	ls.dist = distEmpty
	ls.entry = Entry[K, V]{}
	m.size--

	m.checkInvariants()
	return 1
}

// Len returns the number of entries in the map.
func (m *Map[K, V]) Len() int {
	return m.size
}

// Empty reports whether the map contains no entries.
func (m *Map[K, V]) Empty() bool {
	return m.size == 0
}

// Begin returns an iterator at the first occupied slot, or End if the map
// is empty.
func (m *Map[K, V]) Begin() Iterator[K, V] {
	return makeIterator(m.table.at(0))
}

// End returns the fixed past-the-end iterator, located at the trailing
// sentinel slot.
func (m *Map[K, V]) End() Iterator[K, V] {
	return Iterator[K, V]{cur: m.table.sentinel()}
}

// All calls yield sequentially for each key and value present in the map.
// If yield returns false, iteration stops. The map must not be mutated
// during iteration.
func (m *Map[K, V]) All(yield func(key K, value V) bool) {
	t := m.table
	for i := uintptr(0); i < t.capacity; i++ {
		if s := t.at(i); s.dist != distEmpty {
			if !yield(s.entry.key, s.entry.value) {
				return
			}
		}
	}
}

// Clear removes all entries from the map, retaining its current capacity.
func (m *Map[K, V]) Clear() {
	t := &m.table
	for i := uintptr(0); i < t.capacity; i++ {
		s := t.at(i)
		s.dist = distEmpty
		s.entry = Entry[K, V]{}
	}
	m.size = 0
	m.checkInvariants()
}

// findSlot returns the index of the slot holding key, or ok=false if key is
// not present. The walk starts at the key's ideal bucket with an expected
// distance of zero; an empty slot or a recorded distance below the expected
// distance proves the key absent, because an entry for it would have
// displaced that resident during insertion.
func (m *Map[K, V]) findSlot(key K) (i uintptr, ok bool) {
	t := &m.table
	i = m.hashKey(&key) & t.mask
	d := 0
	for {
		s := t.at(i)
		if s.dist == distEmpty || int(s.dist) < d {
			return 0, false
		}
		if int(s.dist) == d && m.eq(s.entry.key, key) {
			return i, true
		}
		d++
		i = t.next(i)
	}
}

// uncheckedInsert inserts an entry known not to be in the table. Used by
// grow when reinserting entries under the new mask: no duplicate check and
// no growth check, since the post-growth threshold exceeds the old table's
// occupancy.
func (m *Map[K, V]) uncheckedInsert(cand Entry[K, V]) {
	t := &m.table
	i := m.hashKey(&cand.key) & t.mask
	d := 0
	for {
		if d > maxProbeDistance {
			panic(probeOverflowMsg)
		}
		s := t.at(i)
		if s.dist == distEmpty {
			s.dist = uint8(d)
			s.entry = cand
			return
		}
		if int(s.dist) < d {
			cand.swap(&s.entry)
			d, s.dist = int(s.dist), uint8(d)
		}
		d++
		i = t.next(i)
	}
}

// grow allocates a table growthFactor times the current capacity and
// reinserts every entry under the new mask, then releases the old
// allocation. If the new allocation fails the map is left exactly in its
// pre-growth state.
func (m *Map[K, V]) grow() error {
	newCapacity := m.table.capacity * m.growthFactor
	nt, err := makeTable[K, V](m.allocator, newCapacity)
	if err != nil {
		return errors.Wrapf(err, "robinhood: growing %d -> %d slots", m.table.capacity, newCapacity)
	}

	old := m.table
	m.table = nt
	m.growthThreshold = growthThreshold(newCapacity, m.loadFactor)
	for i := uintptr(0); i < old.capacity; i++ {
		if s := old.at(i); s.dist != distEmpty {
			m.uncheckedInsert(s.entry)
		}
	}
	old.free(m.allocator)

	m.checkInvariants()
	return nil
}

// capacity returns the map's current logical capacity.
func (m *Map[K, V]) capacity() uintptr {
	return m.table.capacity
}

func (m *Map[K, V]) hashKey(key *K) uintptr {
	return m.hash((*K)(noescape(unsafe.Pointer(key))), m.seed)
}

const probeOverflowMsg = "robinhood: probe distance exceeds 254; hash function is degenerate"

// growthThreshold returns the size at which a table of the given capacity
// grows. Rounding up keeps the smallest tables usable: a capacity-2 table
// at the default load factor accepts its first entry and grows when the
// second arrives.
func growthThreshold(capacity uintptr, loadFactor float64) int {
	return int(math.Ceil(float64(capacity) * loadFactor))
}

// ceilPow2 returns the smallest power of two >= n, and never less than 2.
func ceilPow2(n int) uintptr {
	if n < 2 {
		return 2
	}
	return uintptr(1) << bits.Len(uint(n-1))
}

// checkInvariants verifies the probe-distance invariant for every occupied
// slot, plus the sentinel and the size count. Compiled away unless the
// invariants build tag is set.
func (m *Map[K, V]) checkInvariants() {
	if !invariants {
		return
	}

	t := &m.table
	if t.capacity == 0 {
		return
	}
	if t.capacity&(t.capacity-1) != 0 {
		panic(fmt.Sprintf("invariant failed: capacity %d is not a power of two", t.capacity))
	}
	if c := t.sentinel().dist; c != distEnd {
		panic(fmt.Sprintf("invariant failed: sentinel metadata is %#x, not %#x\n%s",
			c, distEnd, m.debugString()))
	}

	size := 0
	for i := uintptr(0); i < t.capacity; i++ {
		s := t.at(i)
		if s.dist == distEmpty {
			continue
		}
		size++
		ideal := m.hashKey(&s.entry.key) & t.mask
		d := (i - ideal) & t.mask
		if uintptr(s.dist) != d {
			panic(fmt.Sprintf("invariant failed: slot %d records distance %d, true distance %d\n%s",
				i, s.dist, d, m.debugString()))
		}
		if _, ok := m.findSlot(s.entry.key); !ok {
			panic(fmt.Sprintf("invariant failed: slot %d key %v not findable\n%s",
				i, s.entry.key, m.debugString()))
		}
	}
	if size != m.size {
		panic(fmt.Sprintf("invariant failed: found %d occupied slots, but size is %d\n%s",
			size, m.size, m.debugString()))
	}
}

func (m *Map[K, V]) debugString() string {
	var buf strings.Builder
	t := &m.table
	fmt.Fprintf(&buf, "capacity=%d  size=%d  growth-threshold=%d\n",
		t.capacity, m.size, m.growthThreshold)
	for i := uintptr(0); i <= t.capacity; i++ {
		s := t.at(i)
		switch {
		case i == t.capacity:
			fmt.Fprintf(&buf, "  %4d: sentinel [dist=%#02x]\n", i, s.dist)
		case s.dist == distEmpty:
			fmt.Fprintf(&buf, "  %4d: empty\n", i)
		default:
			fmt.Fprintf(&buf, "  %4d: %v [dist=%d ideal=%d]\n",
				i, s.entry.key, s.dist, m.hashKey(&s.entry.key)&t.mask)
		}
	}
	return buf.String()
}

// noescape hides a pointer from escape analysis.  noescape is
// the identity function but escape analysis doesn't think the
// output depends on the input.  noescape is inlined and currently
// compiles down to zero instructions.
// USE CAREFULLY!
//
//go:nosplit
//go:nocheckptr
func noescape(p unsafe.Pointer) unsafe.Pointer {
	x := uintptr(p)
	return unsafe.Pointer(x ^ 0)
}
