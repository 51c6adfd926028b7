package idealmemcontroller

import (
	"log"

	"github.com/sarchlab/memhier/mem"
	"github.com/sarchlab/memhier/sim"
)

// Builder can build ideal memory controllers.
type Builder struct {
	latency  sim.VTimeInCycle
	capacity uint64
	engine   sim.Engine
	storage  *mem.Storage
}

// MakeBuilder returns a new Builder
func MakeBuilder() Builder {
	return Builder{
		latency:  100,
		capacity: uint64(512 * mem.MB),
	}
}

// WithLatency sets the number of cycles every access takes.
func (b Builder) WithLatency(latency sim.VTimeInCycle) Builder {
	b.latency = latency
	return b
}

// WithNewStorage sets the capacity of the memory controller
func (b Builder) WithNewStorage(capacity uint64) Builder {
	b.capacity = capacity
	return b
}

// WithEngine sets the engine of the memory controller
func (b Builder) WithEngine(engine sim.Engine) Builder {
	b.engine = engine
	return b
}

// WithStorage sets the storage of the memory controller
func (b Builder) WithStorage(storage *mem.Storage) Builder {
	b.storage = storage
	return b
}

// Build builds a new Comp
func (b Builder) Build(name string) *Comp {
	if b.engine == nil {
		log.Panicf("memory controller %s is built without an engine", name)
	}

	c := &Comp{
		engine:  b.engine,
		Latency: b.latency,
	}

	c.ComponentBase = sim.NewComponentBase(name)

	if b.storage == nil {
		c.Storage = mem.NewStorage(b.capacity)
	} else {
		c.Storage = b.storage
	}

	c.topPort = sim.NewPort(c, name+".Top")
	c.AddPort("Top", c.topPort)

	return c
}
