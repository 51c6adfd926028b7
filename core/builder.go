package core

import (
	"fmt"
	"log"

	"github.com/sarchlab/memhier/mem"
	"github.com/sarchlab/memhier/sim"
)

// Builder can build cores.
type Builder struct {
	engine      sim.Engine
	workload    Workload
	maxInFlight int
	coreID      int
	lineSize    int
}

// MakeBuilder creates a builder with a blocking core, which waits for each
// request before issuing the next one.
func MakeBuilder() Builder {
	return Builder{
		maxInFlight: 1,
	}
}

// WithEngine sets the engine of the builder.
func (b Builder) WithEngine(engine sim.Engine) Builder {
	b.engine = engine
	return b
}

// WithWorkload sets the accesses that the core issues.
func (b Builder) WithWorkload(w Workload) Builder {
	b.workload = w
	return b
}

// WithMaxInFlight sets how many requests may wait for a response at the same
// time.
func (b Builder) WithMaxInFlight(n int) Builder {
	b.maxInFlight = n
	return b
}

// WithCoreID sets the ID that is stamped on every request.
func (b Builder) WithCoreID(id int) Builder {
	b.coreID = id
	return b
}

// WithLineSize sets the cache line size. An access that does not fit in one
// line completes at once with a fault wrapping mem.ErrCrossesLine and is
// never sent. 0 disables the check.
func (b Builder) WithLineSize(n int) Builder {
	b.lineSize = n
	return b
}

// Build creates a core.
func (b Builder) Build(name string) (*Comp, error) {
	if b.engine == nil {
		log.Panicf("core %s is built without an engine", name)
	}

	if b.workload == nil {
		return nil, fmt.Errorf("%w: core %s has no workload",
			mem.ErrInvalidConfig, name)
	}

	if b.maxInFlight < 1 {
		return nil, fmt.Errorf("%w: core %s: max in-flight %d is less than 1",
			mem.ErrInvalidConfig, name, b.maxInFlight)
	}

	if b.lineSize < 0 || b.lineSize&(b.lineSize-1) != 0 {
		return nil, fmt.Errorf("%w: core %s: line size %d is not a power of 2",
			mem.ErrInvalidConfig, name, b.lineSize)
	}

	c := new(Comp)
	c.ComponentBase = sim.NewComponentBase(name)
	c.engine = b.engine
	c.workload = b.workload
	c.maxInFlight = b.maxInFlight
	c.coreID = b.coreID
	c.lineSize = uint64(b.lineSize)
	c.inflight = make(map[string]inflightReq)

	c.iCachePort = sim.NewPort(c, name+".ICache")
	c.dCachePort = sim.NewPort(c, name+".DCache")
	c.AddPort("ICache", c.iCachePort)
	c.AddPort("DCache", c.dCachePort)

	return c, nil
}
