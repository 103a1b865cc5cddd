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

// Entry is the (key, value) pair stored in a Map. An Entry has plain value
// semantics: copying, moving, and swapping an Entry is equivalent to
// exchanging its raw storage, with no invariant tied to the address it lives
// at. Insertion relies on this: the Robin Hood displacement step relocates
// entries between slots by whole-value exchange.
type Entry[K comparable, V any] struct {
	key   K
	value V
}

// MakeEntry returns an Entry holding the given key and value.
func MakeEntry[K comparable, V any](key K, value V) Entry[K, V] {
	return Entry[K, V]{key: key, value: value}
}

// Key returns the entry's key.
func (e Entry[K, V]) Key() K {
	return e.key
}

// Value returns the entry's value.
func (e Entry[K, V]) Value() V {
	return e.value
}

// swap exchanges the full storage of e and o.
func (e *Entry[K, V]) swap(o *Entry[K, V]) {
	*e, *o = *o, *e
}

// EntriesEqual reports field-wise equality of two entries.
func EntriesEqual[K, V comparable](a, b Entry[K, V]) bool {
	return a.key == b.key && a.value == b.value
}
