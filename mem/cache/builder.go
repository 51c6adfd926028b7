package cache

import (
	"fmt"
	"log"

	"github.com/sarchlab/memhier/mem"
	"github.com/sarchlab/memhier/mem/cache/internal/mshr"
	"github.com/sarchlab/memhier/mem/cache/internal/tagging"
	"github.com/sarchlab/memhier/sim"
)

// Builder can build caches.
type Builder struct {
	engine sim.Engine
	config Config
	role   Role
}

// MakeBuilder creates a new builder with the default data cache parameters.
func MakeBuilder() Builder {
	return Builder{
		config: DefaultL1DConfig(),
		role:   RoleL1D,
	}
}

// WithEngine sets the engine of the builder.
func (b Builder) WithEngine(engine sim.Engine) Builder {
	b.engine = engine
	return b
}

// WithConfig sets all the cache parameters.
func (b Builder) WithConfig(config Config) Builder {
	b.config = config
	return b
}

// WithRole sets where the cache sits in the hierarchy.
func (b Builder) WithRole(role Role) Builder {
	b.role = role
	return b
}

// Build builds a cache. It fails with an error wrapping mem.ErrInvalidConfig
// if the parameters are not valid.
func (b Builder) Build(name string) (*Comp, error) {
	if b.engine == nil {
		log.Panicf("cache %s is built without an engine", name)
	}

	if err := b.config.Validate(); err != nil {
		return nil, fmt.Errorf("cache %s: %w", name, err)
	}

	comp := new(Comp)
	comp.ComponentBase = sim.NewComponentBase(name)
	comp.engine = b.engine
	comp.role = b.role
	comp.config = b.config
	comp.lookupLatency = sim.VTimeInCycle(b.config.LookupLatency())

	b.initState(comp)
	b.addPorts(comp, name)

	return comp, nil
}

func (b Builder) initState(comp *Comp) {
	numWays := b.config.Associativity
	numSets := b.config.NumSets()

	comp.tags = tagging.NewTagArray(numSets, numWays, b.config.BlockSize)
	comp.victimFinder = tagging.NewLRUVictimFinder()
	comp.mshr = mshr.NewMSHR(b.config.MSHRs, b.config.TargetsPerMSHR)
	comp.storage = mem.NewStorage(uint64(b.config.Size))
	comp.inflightDown = make(map[string]*mem.AccessReq)
}

func (b Builder) addPorts(comp *Comp, name string) {
	comp.topPort = sim.NewPort(comp, name+".Top")
	comp.bottomPort = sim.NewPort(comp, name+".Bottom")
	comp.AddPort("Top", comp.topPort)
	comp.AddPort("Bottom", comp.bottomPort)

	comp.topQueue = sendQueue{port: comp.topPort}
	comp.bottomQueue = sendQueue{port: comp.bottomPort}
}
