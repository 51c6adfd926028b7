// Package arbitration decides which input buffers can move data forward in a
// cycle.
package arbitration

import "github.com/sarchlab/memhier/sim"

// Arbiter determines which buffers can send items forward.
type Arbiter interface {
	// AddBuffer adds a buffer to compete.
	AddBuffer(buf sim.Buffer)

	// Arbitrate returns up to max distinct non-empty buffers that win the
	// arbitration.
	Arbitrate(max int) []sim.Buffer
}

// NewRoundRobinArbiter creates an arbiter that grants buffers in a fixed
// circular order. The search starts right after the last granted buffer, so
// a buffer that keeps having data cannot starve the others.
func NewRoundRobinArbiter() Arbiter {
	return &roundRobinArbiter{}
}

type roundRobinArbiter struct {
	buffers []sim.Buffer
	next    int
}

func (a *roundRobinArbiter) AddBuffer(buf sim.Buffer) {
	a.buffers = append(a.buffers, buf)
}

func (a *roundRobinArbiter) Arbitrate(max int) []sim.Buffer {
	n := len(a.buffers)
	if max <= 0 || n == 0 {
		return nil
	}

	var winners []sim.Buffer

	last := -1

	for i := 0; i < n && len(winners) < max; i++ {
		idx := (a.next + i) % n
		if a.buffers[idx].Size() == 0 {
			continue
		}

		winners = append(winners, a.buffers[idx])
		last = idx
	}

	if last >= 0 {
		a.next = (last + 1) % n
	}

	return winners
}
