package countmap

import (
	"fmt"
	"io"
	"strconv"
	"testing"

	"github.com/aclements/go-perfevent/perfbench"
)

const benchMissing = -1

func BenchmarkMapIter(b *testing.B) {
	b.Run("impl=runtimeMap", func(b *testing.B) {
		b.Run("t=Int", benchSizes(benchmarkRuntimeMapIter[int64], genKeys[int64]))
	})
	b.Run("impl=countMap", func(b *testing.B) {
		b.Run("t=Int", benchSizes(benchmarkCountMapIter[int64], genKeys[int64]))
	})
}

func BenchmarkMapGetHit(b *testing.B) {
	b.Run("impl=runtimeMap", func(b *testing.B) {
		b.Run("t=Int64", benchSizes(benchmarkRuntimeMapGetHit[int64], genKeys[int64]))
		b.Run("t=Int32", benchSizes(benchmarkRuntimeMapGetHit[int32], genKeys[int32]))
		b.Run("t=String", benchSizes(benchmarkRuntimeMapGetHit[string], genKeys[string]))
	})
	b.Run("impl=countMap", func(b *testing.B) {
		b.Run("t=Int64", benchSizes(benchmarkCountMapGetHit[int64], genKeys[int64]))
		b.Run("t=Int32", benchSizes(benchmarkCountMapGetHit[int32], genKeys[int32]))
		b.Run("t=String", benchSizes(benchmarkCountMapGetHit[string], genKeys[string]))
		b.Run("t=String,h=xxhash", benchSizes(benchmarkCountMapGetHitXXHash, genKeys[string]))
	})
}

func BenchmarkMapGetMiss(b *testing.B) {
	b.Run("impl=runtimeMap", func(b *testing.B) {
		b.Run("t=Int64", benchSizes(benchmarkRuntimeMapGetMiss[int64], genKeys[int64]))
		b.Run("t=String", benchSizes(benchmarkRuntimeMapGetMiss[string], genKeys[string]))
	})
	b.Run("impl=countMap", func(b *testing.B) {
		b.Run("t=Int64", benchSizes(benchmarkCountMapGetMiss[int64], genKeys[int64]))
		b.Run("t=String", benchSizes(benchmarkCountMapGetMiss[string], genKeys[string]))
	})
}

func BenchmarkMapIncrementGrow(b *testing.B) {
	b.Run("impl=runtimeMap", func(b *testing.B) {
		b.Run("t=Int64", benchSizes(benchmarkRuntimeMapIncrementGrow[int64], genKeys[int64]))
		b.Run("t=String", benchSizes(benchmarkRuntimeMapIncrementGrow[string], genKeys[string]))
	})
	b.Run("impl=countMap", func(b *testing.B) {
		b.Run("t=Int64", benchSizes(benchmarkCountMapIncrementGrow[int64], genKeys[int64]))
		b.Run("t=String", benchSizes(benchmarkCountMapIncrementGrow[string], genKeys[string]))
	})
}

func BenchmarkMapIncrementDecrement(b *testing.B) {
	b.Run("impl=runtimeMap", func(b *testing.B) {
		b.Run("t=Int64", benchSizes(benchmarkRuntimeMapIncrementDecrement[int64], genKeys[int64]))
		b.Run("t=String", benchSizes(benchmarkRuntimeMapIncrementDecrement[string], genKeys[string]))
	})
	b.Run("impl=countMap", func(b *testing.B) {
		b.Run("t=Int64", benchSizes(benchmarkCountMapIncrementDecrement[int64], genKeys[int64]))
		b.Run("t=String", benchSizes(benchmarkCountMapIncrementDecrement[string], genKeys[string]))
	})
}

type benchTypes interface {
	int32 | int64 | string
}

func benchSizes[T benchTypes](
	f func(b *testing.B, n int, genKeys func(start, end int) []T), genKeys func(start, end int) []T,
) func(*testing.B) {
	var cases = []int{
		6, 12, 18, 24, 30,
		64,
		128,
		256,
		512,
		1024,
		2048,
		4096,
		8192,
		1 << 16,
	}

	return func(b *testing.B) {
		for _, n := range cases {
			b.Run("len="+strconv.Itoa(n), func(b *testing.B) { f(b, n, genKeys) })
		}
	}
}

func genKeys[T benchTypes](start, end int) []T {
	keys := make([]T, end-start)
	for i := range keys {
		switch k := any(&keys[i]).(type) {
		case *int32:
			*k = int32(start + i)
		case *int64:
			*k = int64(start + i)
		case *string:
			*k = strconv.Itoa(start + i)
		default:
			panic("not reached")
		}
	}
	return keys
}

func newBenchMap[T comparable](b *testing.B, n int, options ...option[T, int64]) *Map[T, int64] {
	m, err := New[T, int64](n, benchMissing, options...)
	if err != nil {
		b.Fatal(err)
	}
	return m
}

func benchmarkRuntimeMapIter[T benchTypes](b *testing.B, n int, genKeys func(start, end int) []T) {
	m := make(map[T]int64, n)
	keys := genKeys(0, n)
	for i, k := range keys {
		m[k] = int64(i)
	}
	b.ResetTimer()
	perfbench.Open(b)
	var tmp int64
	for i := 0; i < b.N; i++ {
		for _, v := range m {
			tmp += v
		}
	}
	b.StopTimer()
	fmt.Fprint(io.Discard, tmp)
}

func benchmarkCountMapIter[T benchTypes](b *testing.B, n int, genKeys func(start, end int) []T) {
	m := newBenchMap[T](b, n)
	keys := genKeys(0, n)
	for i, k := range keys {
		m.AddAndGet(k, int64(i)+1)
	}
	b.ResetTimer()
	perfbench.Open(b)
	var tmp int64
	for i := 0; i < b.N; i++ {
		m.ForEach(func(_ T, v int64) {
			tmp += v
		})
	}
	b.StopTimer()
	fmt.Fprint(io.Discard, tmp)
}

func benchmarkRuntimeMapGetMiss[T benchTypes](
	b *testing.B, n int, genKeys func(start, end int) []T,
) {
	m := make(map[T]int64)
	keys := genKeys(0, n)
	miss := genKeys(-n, 0)
	for _, k := range keys {
		m[k] = 1
	}
	b.ResetTimer()
	perfbench.Open(b)
	for i := 0; i < b.N; i++ {
		_ = m[miss[i%len(miss)]]
	}
}

func benchmarkCountMapGetMiss[T benchTypes](b *testing.B, n int, genKeys func(start, end int) []T) {
	m := newBenchMap[T](b, 0)
	keys := genKeys(0, n)
	miss := genKeys(-n, 0)
	for j := range keys {
		m.IncrementAndGet(keys[j])
	}
	b.ResetTimer()
	perfbench.Open(b)
	var v int64
	for i := 0; i < b.N; i++ {
		v = m.Get(miss[i%len(miss)])
	}
	b.StopTimer()
	fmt.Fprint(io.Discard, v)
}

func benchmarkRuntimeMapGetHit[T benchTypes](
	b *testing.B, n int, genKeys func(start, end int) []T,
) {
	m := make(map[T]int64, n)
	keys := genKeys(0, n)
	for _, k := range keys {
		m[k] = 1
	}

	// Go's builtin map has an optimization to avoid string comparisons if
	// there is pointer equality. Defeat this optimization to get a better
	// apples-to-apples comparison.
	keys = genKeys(0, n)

	b.ResetTimer()
	perfbench.Open(b)
	for i := 0; i < b.N; i++ {
		_ = m[keys[i%n]]
	}
}

func benchmarkCountMapGetHit[T benchTypes](b *testing.B, n int, genKeys func(start, end int) []T) {
	m := newBenchMap[T](b, n)
	benchmarkGetHit(b, m, n, genKeys)
}

func benchmarkCountMapGetHitXXHash(b *testing.B, n int, genKeys func(start, end int) []string) {
	m := newBenchMap[string](b, n, WithHash[string, int64](HashString))
	benchmarkGetHit(b, m, n, genKeys)
}

func benchmarkGetHit[T benchTypes](
	b *testing.B, m *Map[T, int64], n int, genKeys func(start, end int) []T,
) {
	keys := genKeys(0, n)
	for _, k := range keys {
		m.IncrementAndGet(k)
	}
	keys = genKeys(0, n)
	b.ResetTimer()
	perfbench.Open(b)
	var v int64
	for i := 0; i < b.N; i++ {
		v = m.Get(keys[i%n])
	}
	b.StopTimer()
	fmt.Fprint(io.Discard, v)
}

func benchmarkRuntimeMapIncrementGrow[T benchTypes](
	b *testing.B, n int, genKeys func(start, end int) []T,
) {
	keys := genKeys(0, n)
	b.ResetTimer()
	perfbench.Open(b)
	for i := 0; i < b.N; i++ {
		m := make(map[T]int64)
		for _, k := range keys {
			m[k]++
		}
	}
}

func benchmarkCountMapIncrementGrow[T benchTypes](
	b *testing.B, n int, genKeys func(start, end int) []T,
) {
	keys := genKeys(0, n)
	b.ResetTimer()
	perfbench.Open(b)
	for i := 0; i < b.N; i++ {
		m := newBenchMap[T](b, 0)
		for _, k := range keys {
			m.IncrementAndGet(k)
		}
	}
}

func benchmarkRuntimeMapIncrementDecrement[T benchTypes](
	b *testing.B, n int, genKeys func(start, end int) []T,
) {
	m := make(map[T]int64, n)
	keys := genKeys(0, n)
	for _, k := range keys {
		m[k] = 1
	}
	b.ResetTimer()
	perfbench.Open(b)
	for i := 0; i < b.N; i++ {
		k := keys[i%n]
		// Mirror the counter semantics: an entry decremented back to its
		// initial value is removed.
		if m[k]--; m[k] == 0 {
			delete(m, k)
		}
		m[k]++
	}
}

func benchmarkCountMapIncrementDecrement[T benchTypes](
	b *testing.B, n int, genKeys func(start, end int) []T,
) {
	m := newBenchMap[T](b, n, WithLoadFactor[T, int64](0.5))
	keys := genKeys(0, n)
	for _, k := range keys {
		m.AddAndGet(k, 1-benchMissing)
	}
	b.ResetTimer()
	perfbench.Open(b)
	for i := 0; i < b.N; i++ {
		k := keys[i%n]
		m.AddAndGet(k, -(1 - benchMissing))
		m.AddAndGet(k, 1-benchMissing)
	}
}
