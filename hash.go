// Copyright 2024 The Cockroach Authors
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

package countmap

import (
	"hash/maphash"

	"github.com/cespare/xxhash/v2"
)

// fibonacci is 2^64 divided by the golden ratio. Multiplying by it spreads
// sequential hashes (e.g. small integer keys hashed by identity) across the
// high bits which are used to select a slot.
const fibonacci = 0x9e3779b97f4a7c15

// defaultHasher returns a seeded hash function for K that is consistent with
// == on K.
func defaultHasher[K comparable]() func(key K) uint64 {
	seed := maphash.MakeSeed()
	return func(key K) uint64 {
		return maphash.Comparable(seed, key)
	}
}

// HashString hashes s with xxhash. Unlike the default hasher it is not
// seeded, so placement of string keys is identical across processes. Use it
// with WithHash.
func HashString(s string) uint64 {
	return xxhash.Sum64String(s)
}
