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

import "golang.org/x/exp/constraints"

// option provide an interface to do work on Map while it is being created.
type option[K comparable, V constraints.Signed] interface {
	apply(m *Map[K, V])
}

type hashOption[K comparable, V constraints.Signed] struct {
	hash func(key K) uint64
}

func (op hashOption[K, V]) apply(m *Map[K, V]) {
	m.hash = op.hash
}

// WithHash is an option to specify the hash function to use for a Map[K,V].
// Keys that compare equal with == must hash identically. The hash should
// spread its entropy over all 64 bits; the slot index is taken from the high
// bits after fibonacci mixing.
func WithHash[K comparable, V constraints.Signed](hash func(key K) uint64) option[K, V] {
	return hashOption[K, V]{hash}
}

type loadFactorOption[K comparable, V constraints.Signed] struct {
	loadFactor float64
}

func (op loadFactorOption[K, V]) apply(m *Map[K, V]) {
	m.loadFactor = op.loadFactor
}

// WithLoadFactor is an option to specify the fraction of slots that may be
// occupied before the map grows. It must lie strictly between 0 and 1,
// otherwise New returns an error.
func WithLoadFactor[K comparable, V constraints.Signed](loadFactor float64) option[K, V] {
	return loadFactorOption[K, V]{loadFactor}
}

// Allocator specifies an interface for allocating and releasing memory used
// by a Map. The default allocator utilizes Go's builtin make() and allows the
// GC to reclaim memory.
//
// If the allocator is manually managing memory and requires that keys and
// values be freed then Map.Close must be called in order to ensure FreeKeys
// and FreeValues are called.
type Allocator[K comparable, V constraints.Signed] interface {
	// AllocKeys should return a slice equivalent to make([]K, n).
	AllocKeys(n int) []K

	// AllocValues should return a slice equivalent to make([]V, n). The
	// contents are overwritten by the Map before use.
	AllocValues(n int) []V

	// FreeKeys can optional release the memory associated with the supplied
	// slice that is guaranteed to have been allocated by AllocKeys.
	FreeKeys(v []K)

	// FreeValues can optional release the memory associated with the
	// supplied slice that is guaranteed to have been allocated by
	// AllocValues.
	FreeValues(v []V)
}

type defaultAllocator[K comparable, V constraints.Signed] struct{}

func (defaultAllocator[K, V]) AllocKeys(n int) []K {
	return make([]K, n)
}

func (defaultAllocator[K, V]) AllocValues(n int) []V {
	return make([]V, n)
}

func (defaultAllocator[K, V]) FreeKeys(v []K) {
}

func (defaultAllocator[K, V]) FreeValues(v []V) {
}

type allocatorOption[K comparable, V constraints.Signed] struct {
	allocator Allocator[K, V]
}

func (op allocatorOption[K, V]) apply(m *Map[K, V]) {
	m.allocator = op.allocator
}

// WithAllocator is an option for specify the Allocator to use for a Map[K,V].
func WithAllocator[K comparable, V constraints.Signed](allocator Allocator[K, V]) option[K, V] {
	return allocatorOption[K, V]{allocator}
}
