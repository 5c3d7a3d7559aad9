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
	"fmt"
	"strings"
)

// IncrementAndGet adds 1 to the value for key and returns the new value.
func (m *Map[K, V]) IncrementAndGet(key K) V {
	return m.AddAndGet(key, 1)
}

// GetAndIncrement adds 1 to the value for key and returns the old value.
func (m *Map[K, V]) GetAndIncrement(key K) V {
	return m.GetAndAdd(key, 1)
}

// DecrementAndGet subtracts 1 from the value for key and returns the new
// value.
func (m *Map[K, V]) DecrementAndGet(key K) V {
	return m.AddAndGet(key, -1)
}

// GetAndDecrement subtracts 1 from the value for key and returns the old
// value.
func (m *Map[K, V]) GetAndDecrement(key K) V {
	return m.GetAndAdd(key, -1)
}

// AddAndGet adds delta to the value for key and returns the new value. See
// GetAndAdd.
func (m *Map[K, V]) AddAndGet(key K, delta V) V {
	_, newValue := m.add(key, delta)
	return newValue
}

// GetAndAdd adds delta to the value for key and returns the old value. An
// absent key starts from the missing value. The sum wraps on overflow. If the
// sum equals the missing value the key is removed (or stays absent), so
// adding 0 to an absent key is a noop.
func (m *Map[K, V]) GetAndAdd(key K, delta V) V {
	oldValue, _ := m.add(key, delta)
	return oldValue
}

func (m *Map[K, V]) add(key K, delta V) (oldValue, newValue V) {
	i, ok := m.find(key)
	if ok {
		oldValue = m.values[i]
		newValue = oldValue + delta
		if newValue == m.missing {
			m.deleteAt(i)
		} else {
			m.values[i] = newValue
			m.checkInvariants()
		}
		return oldValue, newValue
	}

	newValue = m.missing + delta
	if newValue != m.missing {
		m.insertAt(i, key, newValue)
	}
	return m.missing, newValue
}

// ContainsValue reports whether any key holds value. It scans every slot.
// The missing value is never contained.
func (m *Map[K, V]) ContainsValue(value V) bool {
	if value == m.missing {
		return false
	}
	for _, v := range m.values {
		if v == value {
			return true
		}
	}
	return false
}

// MinValue returns the smallest value in the map, or the missing value if the
// map is empty.
func (m *Map[K, V]) MinValue() V {
	if m.used == 0 {
		return m.missing
	}
	var minValue V
	found := false
	for _, v := range m.values {
		if v == m.missing {
			continue
		}
		if !found || v < minValue {
			minValue, found = v, true
		}
	}
	return minValue
}

// MaxValue returns the largest value in the map, or the missing value if the
// map is empty.
func (m *Map[K, V]) MaxValue() V {
	if m.used == 0 {
		return m.missing
	}
	var maxValue V
	found := false
	for _, v := range m.values {
		if v == m.missing {
			continue
		}
		if !found || v > maxValue {
			maxValue, found = v, true
		}
	}
	return maxValue
}

// ForEach calls fn once for each key and value present in the map. The order
// is that of the internal slots and changes when the map is resized or
// compacted. The map must not be mutated from within fn.
func (m *Map[K, V]) ForEach(fn func(key K, value V)) {
	for i, v := range m.values {
		if v != m.missing {
			fn(m.keys[i], v)
		}
	}
}

// All calls yield sequentially for each key and value present in the map. If
// yield returns false, iteration stops. The signature conforms to
// iter.Seq2[K, V] so a map can be ranged over:
//
//	for k, v := range m.All {
//	  fmt.Printf("%v: %v\n", k, v)
//	}
//
// The map must not be mutated during iteration.
func (m *Map[K, V]) All(yield func(key K, value V) bool) {
	for i, v := range m.values {
		if v != m.missing && !yield(m.keys[i], v) {
			return
		}
	}
}

// String formats the map as {k=v, k=v} in slot order.
func (m *Map[K, V]) String() string {
	var buf strings.Builder
	buf.WriteByte('{')
	sep := ""
	m.ForEach(func(k K, v V) {
		fmt.Fprintf(&buf, "%s%v=%d", sep, k, v)
		sep = ", "
	})
	buf.WriteByte('}')
	return buf.String()
}
