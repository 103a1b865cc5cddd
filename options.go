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

// option provide an interface to do work on Map while it is being created.
type option[K comparable, V any] interface {
	apply(m *Map[K, V])
}

type hashOption[K comparable, V any] struct {
	hash Hasher[K]
}

func (op hashOption[K, V]) apply(m *Map[K, V]) {
	m.hash = op.hash
}

// WithHash is an option to specify the hash strategy to use for a Map[K,V].
// The default is selected by the key's type: the integer finalizer mix for
// integer and pointer keys, the byte-mixing hash for string keys, and the
// byte-mixing hash over the raw representation for other fixed-size keys.
func WithHash[K comparable, V any](hash Hasher[K]) option[K, V] {
	return hashOption[K, V]{hash}
}

type equalOption[K comparable, V any] struct {
	eq func(a, b K) bool
}

func (op equalOption[K, V]) apply(m *Map[K, V]) {
	m.eq = op.eq
}

// WithEqual is an option to specify the key equality predicate for a
// Map[K,V]. The default is ==. A custom predicate must be consistent with
// the hash strategy: keys that compare equal must hash equal.
func WithEqual[K comparable, V any](eq func(a, b K) bool) option[K, V] {
	return equalOption[K, V]{eq}
}

type seedOption[K comparable, V any] struct {
	seed uintptr
}

func (op seedOption[K, V]) apply(m *Map[K, V]) {
	m.seed = op.seed
}

// WithSeed is an option to fix the hash seed of a Map[K,V]. By default each
// map draws a random seed at construction. Fixing the seed makes slot
// placement reproducible, which is useful in tests; it also makes the map
// more susceptible to adversarial keys.
func WithSeed[K comparable, V any](seed uintptr) option[K, V] {
	return seedOption[K, V]{seed}
}

type loadFactorOption[K comparable, V any] struct {
	loadFactor float64
}

func (op loadFactorOption[K, V]) apply(m *Map[K, V]) {
	m.loadFactor = op.loadFactor
}

// WithLoadFactor is an option to specify the fraction of capacity at which
// a Map[K,V] grows. It must be greater than 0 and less than 1; the default
// is 0.75. The load factor is fixed for the lifetime of the map.
func WithLoadFactor[K comparable, V any](loadFactor float64) option[K, V] {
	return loadFactorOption[K, V]{loadFactor}
}

type growthFactorOption[K comparable, V any] struct {
	growthFactor int
}

func (op growthFactorOption[K, V]) apply(m *Map[K, V]) {
	m.growthFactor = ceilPow2(op.growthFactor)
}

// WithGrowthFactor is an option to specify the capacity multiplier applied
// when a Map[K,V] grows. It is rounded up to a power of two (minimum 2); the
// default is 16. The growth factor is fixed for the lifetime of the map.
func WithGrowthFactor[K comparable, V any](growthFactor int) option[K, V] {
	return growthFactorOption[K, V]{growthFactor}
}

// Allocator specifies an interface for allocating and releasing the slot
// memory used by a Map. The default allocator utilizes Go's builtin make()
// and allows the GC to reclaim memory.
//
// Allocation is the only operation in this package that can fail: an error
// returned by AllocSlots is propagated by New and, during growth, by the
// insertion that triggered the growth.
//
// If the allocator is manually managing memory and requires that slots be
// freed then Map.Close must be called in order to ensure FreeSlots is
// called.
type Allocator[K comparable, V any] interface {
	// AllocSlots should return a slice of length n, equivalent to
	// make([]Slot[K,V], n), or an error if the allocation cannot be
	// satisfied. The slice contents need not be zeroed; the map initializes
	// every metadata byte before use and never reads entry storage it has
	// not written.
	AllocSlots(n int) ([]Slot[K, V], error)

	// FreeSlots can optionally release the memory associated with the
	// supplied slice that is guaranteed to have been allocated by
	// AllocSlots.
	FreeSlots(v []Slot[K, V])
}

type defaultAllocator[K comparable, V any] struct{}

func (defaultAllocator[K, V]) AllocSlots(n int) ([]Slot[K, V], error) {
	return make([]Slot[K, V], n), nil
}

func (defaultAllocator[K, V]) FreeSlots(v []Slot[K, V]) {
}

type allocatorOption[K comparable, V any] struct {
	allocator Allocator[K, V]
}

func (op allocatorOption[K, V]) apply(m *Map[K, V]) {
	m.allocator = op.allocator
}

// WithAllocator is an option for specify the Allocator to use for a Map[K,V].
func WithAllocator[K comparable, V any](allocator Allocator[K, V]) option[K, V] {
	return allocatorOption[K, V]{allocator}
}
