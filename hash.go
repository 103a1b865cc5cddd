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
	"encoding/binary"
	"math/bits"
	"reflect"
	"unsafe"

	"github.com/cespare/xxhash/v2"
	"github.com/spaolacci/murmur3"
	"github.com/zeebo/xxh3"
)

// Hasher is the per-key-type hash strategy used by a Map. It must be a pure,
// total, deterministic mapping from the key to a platform-word-sized hash.
// None of the hashers in this package are cryptographically secure; they
// provide no protection against adversarially chosen keys.
type Hasher[K any] func(key *K, seed uintptr) uintptr

const (
	// Base seed for the byte-mixing hashes, xored with the per-map seed.
	mixSeed = 0xe17a1465

	murmur2Mul64   = 0xc6a4a7935bd1e995
	murmur2Shift64 = 47
	murmur2Mul32   = 0x5bd1e995

	fnvOffsetBasis64 = 14695981039346656037
	fnvPrime64       = 1099511628211
	fnvOffsetBasis32 = 2166136261
	fnvPrime32       = 16777619
)

// HashBytes mixes an arbitrary byte sequence into a platform-word-sized
// hash. This is the default hash for text keys and, via their raw byte
// representation, for arbitrary fixed-size keys. On 64-bit platforms it is
// MurmurHash64A; on 32-bit platforms the endian-neutral MurmurHash2.
func HashBytes(data []byte, seed uintptr) uintptr {
	if bits.UintSize == 64 {
		return uintptr(murmurHash64A(data, mixSeed^uint64(seed)))
	}
	return uintptr(murmurHashNeutral2(data, mixSeed^uint32(seed)))
}

// HashString is HashBytes over the string's contents, without copying them.
func HashString(s string, seed uintptr) uintptr {
	return HashBytes(unsafe.Slice(unsafe.StringData(s), len(s)), seed)
}

// HashUint mixes a fixed-width integer value directly, avoiding the byte
// pass of HashBytes. This is the default hash for integer and pointer keys.
// The mix is the MurmurHash3 finalizer, whose xor-shift/multiply rounds
// diffuse low-entropy inputs (small integers, aligned pointers) across all
// bits of the result.
func HashUint(v uintptr, seed uintptr) uintptr {
	if bits.UintSize == 64 {
		return uintptr(mix64(uint64(v) ^ uint64(seed)))
	}
	return uintptr(mix32(uint32(v) ^ uint32(seed)))
}

// murmurHash64A processes the input in 8-byte chunks with multiply/xor/shift
// mixing, folds the remaining tail bytes, and finalizes with two more
// xor-shift/multiply rounds.
func murmurHash64A(data []byte, seed uint64) uint64 {
	const m = murmur2Mul64
	const r = murmur2Shift64

	h := seed ^ uint64(len(data))*m

	for ; len(data) >= 8; data = data[8:] {
		k := binary.LittleEndian.Uint64(data)
		k *= m
		k ^= k >> r
		k *= m
		h ^= k
		h *= m
	}

	switch len(data) {
	case 7:
		h ^= uint64(data[6]) << 48
		fallthrough
	case 6:
		h ^= uint64(data[5]) << 40
		fallthrough
	case 5:
		h ^= uint64(data[4]) << 32
		fallthrough
	case 4:
		h ^= uint64(data[3]) << 24
		fallthrough
	case 3:
		h ^= uint64(data[2]) << 16
		fallthrough
	case 2:
		h ^= uint64(data[1]) << 8
		fallthrough
	case 1:
		h ^= uint64(data[0])
		h *= m
	}

	h ^= h >> r
	h *= m
	h ^= h >> r
	return h
}

// murmurHashNeutral2 is the endianness-neutral 32-bit MurmurHash2.
func murmurHashNeutral2(data []byte, seed uint32) uint32 {
	const m = murmur2Mul32
	const r = 24

	h := seed ^ uint32(len(data))

	for ; len(data) >= 4; data = data[4:] {
		k := uint32(data[0]) | uint32(data[1])<<8 | uint32(data[2])<<16 | uint32(data[3])<<24
		k *= m
		k ^= k >> r
		k *= m
		h *= m
		h ^= k
	}

	switch len(data) {
	case 3:
		h ^= uint32(data[2]) << 16
		fallthrough
	case 2:
		h ^= uint32(data[1]) << 8
		fallthrough
	case 1:
		h ^= uint32(data[0])
		h *= m
	}

	h ^= h >> 13
	h *= m
	h ^= h >> 15
	return h
}

// mix64 is the 64-bit MurmurHash3 finalizer.
func mix64(k uint64) uint64 {
	k ^= k >> 33
	k *= 0xff51afd7ed558ccd
	k ^= k >> 33
	k *= 0xc4ceb9fe1a85ec53
	k ^= k >> 33
	return k
}

// mix32 is the 32-bit MurmurHash3 finalizer.
func mix32(k uint32) uint32 {
	k ^= k >> 16
	k *= 0x85ebca6b
	k ^= k >> 13
	k *= 0xc2b2ae35
	k ^= k >> 16
	return k
}

// HashFNV1a is an interchangeable general-purpose byte hash: xor each input
// byte into the state, then multiply by the FNV prime. It is offered as an
// alternative to HashBytes, not the default.
func HashFNV1a(data []byte, seed uintptr) uintptr {
	if bits.UintSize == 64 {
		h := uint64(fnvOffsetBasis64) ^ uint64(seed)
		for _, b := range data {
			h ^= uint64(b)
			h *= fnvPrime64
		}
		return uintptr(h)
	}
	h := uint32(fnvOffsetBasis32) ^ uint32(seed)
	for _, b := range data {
		h ^= uint32(b)
		h *= fnvPrime32
	}
	return uintptr(h)
}

// FNV1aString is a Hasher for string keys backed by HashFNV1a, usable with
// WithHash.
func FNV1aString(key *string, seed uintptr) uintptr {
	return HashFNV1a(unsafe.Slice(unsafe.StringData(*key), len(*key)), seed)
}

// XXHashString is a Hasher for string keys backed by xxHash64, usable with
// WithHash.
func XXHashString(key *string, seed uintptr) uintptr {
	return uintptr(mix64(xxhash.Sum64String(*key) ^ uint64(seed)))
}

// XXH3String is a Hasher for string keys backed by XXH3, usable with
// WithHash.
func XXH3String(key *string, seed uintptr) uintptr {
	return uintptr(xxh3.HashStringSeed(*key, uint64(seed)))
}

// Murmur3String is a Hasher for string keys backed by MurmurHash3's 64-bit
// digest, usable with WithHash.
func Murmur3String(key *string, seed uintptr) uintptr {
	b := unsafe.Slice(unsafe.StringData(*key), len(*key))
	return uintptr(murmur3.Sum64WithSeed(b, uint32(seed)))
}

// defaultHasher selects the hash strategy for K by its static type: the
// integer mix for integer and pointer-sized keys, the byte-mixing hash over
// the contents for strings, and the byte-mixing hash over the raw in-memory
// representation for everything else.
//
// The raw-representation path is only sound for key types whose every
// logical value has exactly one bit pattern and which contain no padding or
// indirection. Keys holding pointers, strings, or interfaces hash their
// headers rather than what they reference, and a struct's padding bytes are
// indeterminate; such key types must supply their own Hasher via WithHash.
func defaultHasher[K comparable]() Hasher[K] {
	var zero K
	switch any(zero).(type) {
	case int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64, uintptr,
		unsafe.Pointer:
		return integerHasher[K]()
	case string:
		return func(key *K, seed uintptr) uintptr {
			return HashString(*(*string)(unsafe.Pointer(key)), seed)
		}
	default:
		if t := reflect.TypeOf(zero); t != nil && t.Kind() == reflect.Pointer {
			return integerHasher[K]()
		}
		return rawHasher[K]()
	}
}

// integerHasher widens the key's raw integer value and applies HashUint.
func integerHasher[K comparable]() Hasher[K] {
	var zero K
	switch unsafe.Sizeof(zero) {
	case 1:
		return func(key *K, seed uintptr) uintptr {
			return HashUint(uintptr(*(*uint8)(unsafe.Pointer(key))), seed)
		}
	case 2:
		return func(key *K, seed uintptr) uintptr {
			return HashUint(uintptr(*(*uint16)(unsafe.Pointer(key))), seed)
		}
	case 4:
		return func(key *K, seed uintptr) uintptr {
			return HashUint(uintptr(*(*uint32)(unsafe.Pointer(key))), seed)
		}
	default:
		return func(key *K, seed uintptr) uintptr {
			return HashUint(uintptr(*(*uint64)(unsafe.Pointer(key))), seed)
		}
	}
}

// rawHasher hashes the key's full in-memory representation. See the
// defaultHasher comment for the soundness obligation this places on K.
func rawHasher[K comparable]() Hasher[K] {
	var zero K
	size := unsafe.Sizeof(zero)
	return func(key *K, seed uintptr) uintptr {
		return HashBytes(unsafe.Slice((*byte)(unsafe.Pointer(key)), size), seed)
	}
}
