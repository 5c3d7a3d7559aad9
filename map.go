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

// Package countmap implements an open-addressing hash table from arbitrary
// comparable keys to fixed-width signed integer counters.
//
// # Missing value
//
// A Map is constructed with a missing value: a single V that can never be
// stored. Get, Remove and the getAnd* operations return it for absent keys,
// and the values array doubles as the occupancy marker: a slot is empty iff
// its value equals the missing value. No separate control bytes or presence
// bitmap are needed. Any update that would leave a key holding the missing
// value removes the key instead, so a counter which is incremented and then
// decremented back to its starting point leaves no entry behind.
//
// # Probing
//
// Keys live in a flat slice whose length is a power of two. The slot for a
// key is chosen by fibonacci hashing of hash(key) and collisions are
// resolved by linear probing, wrapping at the end of the slice. A probe stops
// at the first empty slot, which requires that every key is reachable from
// its home slot without crossing an empty slot. The load factor (strictly
// less than 1) guarantees at least one empty slot exists.
//
// # Deletion
//
// Deletion does not use tombstones. When a slot is freed the entries after
// it in the same cluster are shifted backward into the gap whenever doing so
// keeps them reachable from their home slot. Probe lengths therefore depend
// only on the current contents of the table, not on its history of puts and
// removes.
//
// # Growth
//
// The table doubles when an insert pushes the number of entries above
// floor(capacity*loadFactor). It never shrinks on its own; Compact
// reallocates it at the smallest capacity that holds the current entries.
//
// A Map is NOT goroutine-safe.
package countmap

import (
	"fmt"
	"math/bits"
	"strings"

	"github.com/cockroachdb/errors"
	"golang.org/x/exp/constraints"
)

const (
	debug = false

	// minCapacity is the smallest number of slots a Map is allocated with.
	minCapacity = 8
	// maxCapacity is the largest number of slots a Map can be allocated
	// with. Doubling it would overflow int.
	maxCapacity = 1 << (bits.UintSize - 2)
	// defaultLoadFactor is used when WithLoadFactor is not supplied.
	defaultLoadFactor = 0.65
)

// ErrInvalidArgument is returned (wrapped) when a Map is configured with an
// out of range load factor or when the missing value is supplied as a value
// to store.
var ErrInvalidArgument = errors.New("invalid argument")

// Map is an unordered map from keys to integer counters. Absent keys read as
// the missing value supplied to New. By default, a Map[K,V] hashes keys with
// hash/maphash, though a different hash function can be specified using the
// WithHash option.
//
// A Map is NOT goroutine-safe.
type Map[K comparable, V constraints.Signed] struct {
	hash      func(key K) uint64
	allocator Allocator[K, V]
	// keys and values are capacity in length and indexed identically. A slot
	// i is occupied iff values[i] != missing. The key of an empty slot is
	// the zero K so that the map does not retain references.
	keys   []K
	values []V
	// The total number of slots (always 2^N). capacity-1 is used as a mask
	// to wrap probe sequences.
	capacity int
	// shift is 64-log2(capacity); the slot for hash h is (h*fibonacci)>>shift.
	shift uint
	// The number of filled slots (i.e. the number of entries in the map).
	used            int
	resizeThreshold int
	loadFactor      float64
	missing         V
}

// New constructs a new Map with room for at least initialCapacity slots
// (rounded up to a power of two, minimum 8) which reports missingValue for
// absent keys. An error wrapping ErrInvalidArgument is returned if the load
// factor is not strictly between 0 and 1 or initialCapacity exceeds
// maxCapacity.
func New[K comparable, V constraints.Signed](
	initialCapacity int, missingValue V, options ...option[K, V],
) (*Map[K, V], error) {
	m := &Map[K, V]{
		allocator:  defaultAllocator[K, V]{},
		loadFactor: defaultLoadFactor,
		missing:    missingValue,
	}

	for _, op := range options {
		op.apply(m)
	}
	if m.hash == nil {
		m.hash = defaultHasher[K]()
	}

	// The negated form also rejects NaN.
	if !(m.loadFactor > 0 && m.loadFactor < 1) {
		return nil, errors.Wrapf(ErrInvalidArgument,
			"load factor %v must be greater than 0 and less than 1", m.loadFactor)
	}

	if initialCapacity > maxCapacity {
		return nil, errors.Wrapf(ErrInvalidArgument,
			"initial capacity %d exceeds maximum %d", initialCapacity, maxCapacity)
	}

	m.resize(nextPowerOf2(max(initialCapacity, minCapacity)))
	return m, nil
}

// Close closes the map, releasing any memory back to its configured
// allocator. It is unnecessary to close a map using the default allocator. It
// is invalid to use a Map after it has been closed, though Close itself is
// idempotent.
func (m *Map[K, V]) Close() {
	if m.allocator == nil {
		return
	}
	if m.capacity > 0 {
		m.allocator.FreeKeys(m.keys)
		m.allocator.FreeValues(m.values)
	}
	m.keys, m.values = nil, nil
	m.capacity = 0
	m.used = 0
	m.resizeThreshold = 0
	m.allocator = nil
}

// Get returns the value for key, or the missing value if key is not present.
func (m *Map[K, V]) Get(key K) V {
	if i, ok := m.find(key); ok {
		return m.values[i]
	}
	return m.missing
}

// ContainsKey reports whether key is present in the map.
func (m *Map[K, V]) ContainsKey(key K) bool {
	_, ok := m.find(key)
	return ok
}

// Put sets the value for key and returns the previous value, or the missing
// value if key was absent. Putting the missing value itself is rejected with
// an error wrapping ErrInvalidArgument and leaves the map unchanged.
func (m *Map[K, V]) Put(key K, value V) (V, error) {
	if value == m.missing {
		return m.missing, errors.Wrapf(ErrInvalidArgument,
			"cannot put the missing value %d", value)
	}

	i, ok := m.find(key)
	if ok {
		old := m.values[i]
		m.values[i] = value
		if debug {
			fmt.Printf("put(updating): index=%d key=%v %d->%d\n", i, key, old, value)
		}
		m.checkInvariants()
		return old, nil
	}
	m.insertAt(i, key, value)
	return m.missing, nil
}

// Remove deletes key from the map and returns the value it held, or the
// missing value if key was not present (in which case the map is unchanged).
func (m *Map[K, V]) Remove(key K) V {
	i, ok := m.find(key)
	if !ok {
		if debug {
			fmt.Printf("remove(not-found): key=%v\n", key)
		}
		return m.missing
	}
	old := m.values[i]
	m.deleteAt(i)
	return old
}

// ComputeIfAbsent returns the value for key if present. Otherwise it calls fn
// with key, stores the result and returns it. fn may modify the map; if it
// stores key itself, the computed value overwrites that entry. If fn returns the missing value
// the map is left unchanged and an error wrapping ErrInvalidArgument is
// returned along with the missing value.
func (m *Map[K, V]) ComputeIfAbsent(key K, fn func(key K) V) (V, error) {
	i, ok := m.find(key)
	if ok {
		return m.values[i], nil
	}
	value := fn(key)
	if value == m.missing {
		return m.missing, errors.Wrapf(ErrInvalidArgument,
			"computed value for %v is the missing value %d", key, value)
	}
	// fn may have mutated the map, invalidating i.
	if i, ok = m.find(key); ok {
		m.values[i] = value
		m.checkInvariants()
		return value, nil
	}
	m.insertAt(i, key, value)
	return value, nil
}

// Len returns the number of entries in the map.
func (m *Map[K, V]) Len() int {
	return m.used
}

// IsEmpty returns true if the map contains no entries.
func (m *Map[K, V]) IsEmpty() bool {
	return m.used == 0
}

// Capacity returns the number of slots in the map.
func (m *Map[K, V]) Capacity() int {
	return m.capacity
}

// ResizeThreshold returns the number of entries above which the map grows.
func (m *Map[K, V]) ResizeThreshold() int {
	return m.resizeThreshold
}

// LoadFactor returns the load factor the map was configured with.
func (m *Map[K, V]) LoadFactor() float64 {
	return m.loadFactor
}

// MissingValue returns the value reported for absent keys.
func (m *Map[K, V]) MissingValue() V {
	return m.missing
}

// Clear removes all entries from the map. The capacity is unchanged.
func (m *Map[K, V]) Clear() {
	if m.used == 0 {
		return
	}
	clear(m.keys)
	for i := range m.values {
		m.values[i] = m.missing
	}
	m.used = 0
	m.checkInvariants()
}

// Compact shrinks the map to the smallest power of two capacity (minimum 8)
// whose resize threshold can hold the current entries. It is a noop if the
// map is already at that capacity.
func (m *Map[K, V]) Compact() {
	newCapacity := minCapacity
	for thresholdFor(newCapacity, m.loadFactor) < m.used {
		newCapacity <<= 1
	}
	if newCapacity == m.capacity {
		return
	}
	m.resize(newCapacity)
}

// slot returns the home slot for hash value h.
func (m *Map[K, V]) slot(h uint64) int {
	return int((h * fibonacci) >> m.shift)
}

// find probes for key. If key is present its index and true are returned.
// Otherwise the index of the empty slot that terminated the probe is
// returned, which is where key would be inserted.
func (m *Map[K, V]) find(key K) (int, bool) {
	mask := m.capacity - 1
	i := m.slot(m.hash(key))
	for m.values[i] != m.missing {
		if m.keys[i] == key {
			return i, true
		}
		i = (i + 1) & mask
	}
	return i, false
}

// insertAt stores key and value in the empty slot i which must have been
// returned by a failed find for key. The map grows if the insert pushes it
// over its resize threshold.
func (m *Map[K, V]) insertAt(i int, key K, value V) {
	m.keys[i] = key
	m.values[i] = value
	m.used++
	if debug {
		fmt.Printf("put(inserting): index=%d key=%v value=%d used=%d\n", i, key, value, m.used)
	}
	if m.used > m.resizeThreshold {
		newCapacity := m.capacity << 1
		for thresholdFor(newCapacity, m.loadFactor) < m.used {
			newCapacity <<= 1
		}
		m.resize(newCapacity)
		return
	}
	m.checkInvariants()
}

// deleteAt clears the occupied slot i and shifts subsequent entries of the
// same cluster backward so that every remaining key stays reachable.
func (m *Map[K, V]) deleteAt(i int) {
	var zero K
	mask := m.capacity - 1
	if debug {
		fmt.Printf("remove: index=%d key=%v used=%d\n", i, m.keys[i], m.used-1)
	}
	m.keys[i] = zero
	m.values[i] = m.missing
	m.used--

	// Walk the cluster following the gap. An entry at j whose home slot lies
	// cyclically in (gap, j] would become unreachable if moved to the gap, so
	// it stays. Any other entry is moved and its old slot becomes the gap.
	// The walk ends at the first empty slot: no entry beyond it can have a
	// probe sequence passing through the gap.
	gap := i
	for j := (i + 1) & mask; m.values[j] != m.missing; j = (j + 1) & mask {
		home := m.slot(m.hash(m.keys[j]))
		if (j-home)&mask < (j-gap)&mask {
			continue
		}
		if debug {
			fmt.Printf("remove(shifting): key=%v home=%d %d->%d\n", m.keys[j], home, j, gap)
		}
		m.keys[gap] = m.keys[j]
		m.values[gap] = m.values[j]
		m.keys[j] = zero
		m.values[j] = m.missing
		gap = j
	}
	m.checkInvariants()
}

// resize reallocates the table with newCapacity slots (a power of two) and
// reinserts every entry, discarding the old backing arrays.
func (m *Map[K, V]) resize(newCapacity int) {
	oldKeys, oldValues, oldCapacity := m.keys, m.values, m.capacity

	m.keys = m.allocator.AllocKeys(newCapacity)
	m.values = m.allocator.AllocValues(newCapacity)
	for i := range m.values {
		m.values[i] = m.missing
	}
	m.capacity = newCapacity
	m.shift = uint(64 - bits.TrailingZeros(uint(newCapacity)))
	m.resizeThreshold = thresholdFor(newCapacity, m.loadFactor)

	if debug {
		fmt.Printf("resize: capacity=%d->%d threshold=%d used=%d\n",
			oldCapacity, newCapacity, m.resizeThreshold, m.used)
	}

	// Entries in the old table are unique so each one is placed in the
	// first empty slot of its probe sequence without comparing keys.
	mask := newCapacity - 1
	for i := 0; i < oldCapacity; i++ {
		if oldValues[i] == m.missing {
			continue
		}
		j := m.slot(m.hash(oldKeys[i]))
		for m.values[j] != m.missing {
			j = (j + 1) & mask
		}
		m.keys[j] = oldKeys[i]
		m.values[j] = oldValues[i]
	}

	if oldCapacity > 0 {
		m.allocator.FreeKeys(oldKeys)
		m.allocator.FreeValues(oldValues)
	}

	m.checkInvariants()
}

func (m *Map[K, V]) checkInvariants() {
	if invariants {
		if m.capacity < minCapacity || m.capacity&(m.capacity-1) != 0 {
			panic(errors.AssertionFailedf("invariant failed: capacity %d is not a power of two >= %d\n%s",
				m.capacity, minCapacity, m.debugString()))
		}
		if len(m.keys) != m.capacity || len(m.values) != m.capacity {
			panic(errors.AssertionFailedf("invariant failed: len(keys)=%d len(values)=%d capacity=%d",
				len(m.keys), len(m.values), m.capacity))
		}
		if m.resizeThreshold != thresholdFor(m.capacity, m.loadFactor) {
			panic(errors.AssertionFailedf("invariant failed: resize threshold %d, expected %d",
				m.resizeThreshold, thresholdFor(m.capacity, m.loadFactor)))
		}
		if m.used > m.resizeThreshold {
			panic(errors.AssertionFailedf("invariant failed: used %d exceeds resize threshold %d\n%s",
				m.used, m.resizeThreshold, m.debugString()))
		}

		// For every occupied slot, verify the probe from its home slot reaches
		// it before any empty slot. Count the number of used slots.
		var used int
		for i := 0; i < m.capacity; i++ {
			if m.values[i] == m.missing {
				continue
			}
			if j, ok := m.find(m.keys[i]); !ok || j != i {
				panic(errors.AssertionFailedf("invariant failed: slot(%d): %v not found [home=%d]\n%s",
					i, m.keys[i], m.slot(m.hash(m.keys[i])), m.debugString()))
			}
			used++
		}

		if used != m.used {
			panic(errors.AssertionFailedf("invariant failed: found %d used slots, but used count is %d\n%s",
				used, m.used, m.debugString()))
		}
	}
}

func (m *Map[K, V]) debugString() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "capacity=%d  used=%d  resize-threshold=%d\n", m.capacity, m.used, m.resizeThreshold)
	for i := 0; i < m.capacity; i++ {
		if m.values[i] == m.missing {
			fmt.Fprintf(&buf, "  %4d: empty\n", i)
			continue
		}
		fmt.Fprintf(&buf, "  %4d: %v=%d [home=%d]\n", i, m.keys[i], m.values[i], m.slot(m.hash(m.keys[i])))
	}
	return buf.String()
}

// thresholdFor returns floor(capacity*loadFactor).
func thresholdFor(capacity int, loadFactor float64) int {
	return int(float64(capacity) * loadFactor)
}

// nextPowerOf2 returns the smallest power of two >= n.
func nextPowerOf2(n int) int {
	return 1 << bits.Len(uint(n-1))
}
