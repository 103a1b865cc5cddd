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

package robinhood

import (
	"unsafe"

	"github.com/pkg/errors"
)

const (
	// distEmpty marks an unoccupied slot. It is the maximal byte value so
	// that every valid probe distance compares less than it.
	distEmpty uint8 = 0xff
	// distEnd is the metadata of the single trailing sentinel slot. It is
	// distinguishable from distEmpty, which lets iteration skip empty slots
	// and stop at the sentinel without a bounds check. The sentinel is never
	// part of a probe walk, so its 0 value is never confused with an
	// occupied slot at distance 0.
	distEnd uint8 = 0
	// maxProbeDistance is the largest representable probe distance. An
	// entry further than this from its ideal bucket cannot be recorded in a
	// single metadata byte.
	maxProbeDistance = 0xfe
)

// Slot is the table's storage unit: one metadata byte holding the resident
// entry's probe distance (or distEmpty), physically adjacent to the entry it
// describes. Keeping the metadata next to the entry means a probe touches one
// cache line per slot instead of two.
type Slot[K comparable, V any] struct {
	dist  uint8
	entry Entry[K, V]
}

// table is a single contiguous allocation of capacity+1 slots: capacity
// logical slots plus the trailing sentinel. Capacity is always a power of
// two so that mask can replace a modulus when trimming a hash to a bucket
// index.
type table[K comparable, V any] struct {
	slots    unsafeSlice[Slot[K, V]]
	capacity uintptr
	mask     uintptr
}

// makeTable allocates a table with the given power-of-two capacity. Every
// logical slot starts empty and the trailing slot is the end sentinel. Entry
// storage is left as the allocator returned it; an entry only becomes live
// when an insertion writes it together with a valid distance byte.
func makeTable[K comparable, V any](
	allocator Allocator[K, V], capacity uintptr,
) (table[K, V], error) {
	s, err := allocator.AllocSlots(int(capacity) + 1)
	if err != nil {
		return table[K, V]{}, errors.Wrapf(err, "robinhood: allocating %d slots", capacity+1)
	}
	for i := range s {
		s[i].dist = distEmpty
	}
	s[capacity].dist = distEnd
	return table[K, V]{
		slots:    makeUnsafeSlice(s),
		capacity: capacity,
		mask:     capacity - 1,
	}, nil
}

// at returns the slot at index i. The sentinel is at(capacity).
func (t *table[K, V]) at(i uintptr) *Slot[K, V] {
	return t.slots.At(i)
}

// sentinel returns the trailing sentinel slot.
func (t *table[K, V]) sentinel() *Slot[K, V] {
	return t.slots.At(t.capacity)
}

// next steps a probe walk forward by one slot, wrapping back to slot 0 at
// the end of the logical table. Only probe walks wrap; iteration stops at
// the sentinel instead.
func (t *table[K, V]) next(i uintptr) uintptr {
	i++
	if i == t.capacity {
		return 0
	}
	return i
}

// free releases the table's allocation back to the allocator.
func (t *table[K, V]) free(allocator Allocator[K, V]) {
	if t.capacity > 0 {
		allocator.FreeSlots(t.slots.Slice(0, t.capacity+1))
		*t = table[K, V]{}
	}
}

// unsafeSlice provides semi-ergonomic limited slice-like functionality
// without bounds checking for fixed sized slices.
type unsafeSlice[T any] struct {
	ptr unsafe.Pointer
}

func makeUnsafeSlice[T any](s []T) unsafeSlice[T] {
	return unsafeSlice[T]{ptr: unsafe.Pointer(unsafe.SliceData(s))}
}

// At returns a pointer to the element at index i.
func (s unsafeSlice[T]) At(i uintptr) *T {
	var t T
	return (*T)(unsafe.Add(s.ptr, unsafe.Sizeof(t)*i))
}

// Slice returns a Go slice akin to slice[start:end] for a Go builtin slice.
func (s unsafeSlice[T]) Slice(start, end uintptr) []T {
	return unsafe.Slice((*T)(s.ptr), end)[start:end]
}
