package core

import (
	"encoding/binary"
	"iter"
	"math/rand/v2"

	"github.com/sarchlab/memhier/mem"
)

// A Workload produces the accesses that a core issues. Every call to
// Accesses starts the sequence from the beginning.
type Workload interface {
	Accesses() iter.Seq[mem.Access]
}

// A SizedWorkload knows in advance how many accesses it issues.
type SizedWorkload interface {
	Workload
	Len() int
}

// SequentialWorkload walks through a code region with fixed-size fetches. It
// inserts a load every LoadEvery fetches and a store every StoreEvery fetches.
// The data accesses walk through a data region and wrap around at its end.
type SequentialWorkload struct {
	Count      int
	CodeBase   uint64
	FetchSize  uint64
	DataBase   uint64
	DataSize   uint64
	AccessSize uint64
	LoadEvery  int
	StoreEvery int
}

// DefaultSequentialWorkload returns a sequential workload with count
// accesses that reads and writes a 64kB data region.
func DefaultSequentialWorkload(count int) SequentialWorkload {
	return SequentialWorkload{
		Count:      count,
		CodeBase:   0x10000,
		FetchSize:  4,
		DataBase:   0x100000,
		DataSize:   64 * uint64(mem.KB),
		AccessSize: 8,
		LoadEvery:  4,
		StoreEvery: 8,
	}
}

// Len returns the number of accesses.
func (w SequentialWorkload) Len() int {
	return w.Count
}

// Accesses returns the access sequence.
func (w SequentialWorkload) Accesses() iter.Seq[mem.Access] {
	return func(yield func(mem.Access) bool) {
		var (
			emitted   int
			fetchAddr = w.CodeBase
			dataOff   uint64
		)

		nextData := func() uint64 {
			addr := w.DataBase + dataOff

			dataOff += w.AccessSize
			if w.DataSize > 0 && dataOff+w.AccessSize > w.DataSize {
				dataOff = 0
			}

			return addr
		}

		emit := func(a mem.Access) bool {
			if emitted >= w.Count {
				return false
			}

			emitted++

			return yield(a)
		}

		for fetches := 1; emitted < w.Count; fetches++ {
			if !emit(mem.Access{
				Kind:    mem.Fetch,
				Address: fetchAddr,
				Size:    w.FetchSize,
			}) {
				return
			}

			fetchAddr += w.FetchSize

			if w.LoadEvery > 0 && fetches%w.LoadEvery == 0 {
				if !emit(mem.Access{
					Kind:    mem.Load,
					Address: nextData(),
					Size:    w.AccessSize,
				}) {
					return
				}
			}

			if w.StoreEvery > 0 && fetches%w.StoreEvery == 0 {
				if !emit(mem.Access{
					Kind:    mem.Store,
					Address: nextData(),
					Size:    w.AccessSize,
					Data:    pattern(uint64(emitted), w.AccessSize),
				}) {
					return
				}
			}
		}
	}
}

// RandomWorkload issues loads and stores to random aligned addresses in a
// region. The same seed always yields the same sequence.
type RandomWorkload struct {
	Count      int
	Seed       uint64
	Base       uint64
	Size       uint64
	AccessSize uint64
	StoreRatio float64
}

// DefaultRandomWorkload returns a random workload over a 1MB region where a
// quarter of the accesses are stores.
func DefaultRandomWorkload(count int, seed uint64) RandomWorkload {
	return RandomWorkload{
		Count:      count,
		Seed:       seed,
		Base:       0x100000,
		Size:       uint64(mem.MB),
		AccessSize: 8,
		StoreRatio: 0.25,
	}
}

// Len returns the number of accesses.
func (w RandomWorkload) Len() int {
	return w.Count
}

// Accesses returns the access sequence.
func (w RandomWorkload) Accesses() iter.Seq[mem.Access] {
	return func(yield func(mem.Access) bool) {
		rng := rand.New(rand.NewPCG(w.Seed, w.Seed^0x9e3779b97f4a7c15))
		slots := w.Size / w.AccessSize

		for i := 0; i < w.Count; i++ {
			a := mem.Access{
				Kind:    mem.Load,
				Address: w.Base + rng.Uint64N(slots)*w.AccessSize,
				Size:    w.AccessSize,
			}

			if rng.Float64() < w.StoreRatio {
				a.Kind = mem.Store
				a.Data = pattern(rng.Uint64(), w.AccessSize)
			}

			if !yield(a) {
				return
			}
		}
	}
}

// TraceWorkload replays a list of parsed accesses. See ParseTrace.
type TraceWorkload struct {
	accesses []mem.Access
}

// Len returns the number of accesses in the trace.
func (w *TraceWorkload) Len() int {
	return len(w.accesses)
}

// Accesses returns the access sequence.
func (w *TraceWorkload) Accesses() iter.Seq[mem.Access] {
	return func(yield func(mem.Access) bool) {
		for _, a := range w.accesses {
			if !yield(a) {
				return
			}
		}
	}
}

func pattern(v, size uint64) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, v)

	if size <= 8 {
		return buf[:size]
	}

	data := make([]byte, size)
	for i := range data {
		data[i] = buf[i%8]
	}

	return data
}
