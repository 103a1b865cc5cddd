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

import "unsafe"

// Iterator is a forward cursor over a Map's occupied slots. Because the
// metadata byte is stored adjacent to its entry, a single slot pointer
// covers both cursor components; two Iterators are equal (==) exactly when
// they address the same slot, and in particular any iterator that has
// reached the end compares equal to Map.End.
//
// An Iterator is invalidated by any structural mutation of the map (Insert,
// GetOrInsert, Delete, Clear, Close, and any growth they trigger): entries
// may be relocated by displacement or shifting, and growth reallocates the
// table outright. Dereferencing or advancing an invalidated Iterator is
// undefined.
type Iterator[K comparable, V any] struct {
	cur *Slot[K, V]
}

// makeIterator returns an iterator positioned at s, auto-advanced past any
// leading run of empty slots. The trailing sentinel's metadata is distEnd,
// never distEmpty, so the advance always terminates without a bounds check.
func makeIterator[K comparable, V any](s *Slot[K, V]) Iterator[K, V] {
	for s.dist == distEmpty {
		s = nextSlot(s)
	}
	return Iterator[K, V]{cur: s}
}

func nextSlot[K comparable, V any](s *Slot[K, V]) *Slot[K, V] {
	return (*Slot[K, V])(unsafe.Add(unsafe.Pointer(s), unsafe.Sizeof(*s)))
}

// Next returns the iterator advanced to the following occupied slot, or to
// the end position if none remains. Advancing never wraps past the sentinel.
func (it Iterator[K, V]) Next() Iterator[K, V] {
	return makeIterator(nextSlot(it.cur))
}

// Key returns the key of the located entry. It must not be called on the
// end iterator.
func (it Iterator[K, V]) Key() K {
	return it.cur.entry.key
}

// Value returns the value of the located entry. It must not be called on
// the end iterator.
func (it Iterator[K, V]) Value() V {
	return it.cur.entry.value
}

// Entry returns a copy of the located entry. It must not be called on the
// end iterator.
func (it Iterator[K, V]) Entry() Entry[K, V] {
	return it.cur.entry
}

// dist returns the located entry's recorded probe distance.
func (it Iterator[K, V]) dist() uint8 {
	return it.cur.dist
}
