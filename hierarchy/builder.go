// Package hierarchy assembles a core, split L1 caches, a shared L2, two buses
// and a memory controller into one simulated memory hierarchy.
package hierarchy

import (
	"fmt"

	"github.com/sarchlab/memhier/core"
	"github.com/sarchlab/memhier/mem/cache"
	"github.com/sarchlab/memhier/mem/idealmemcontroller"
	"github.com/sarchlab/memhier/noc/bus"
	"github.com/sarchlab/memhier/sim"
)

// Builder builds a Hierarchy from a Config and a list of overrides.
type Builder struct {
	engine    sim.Engine
	config    Config
	overrides []Override
	workload  core.Workload
}

// MakeBuilder creates a builder with the default configuration.
func MakeBuilder() Builder {
	return Builder{
		config: DefaultConfig(),
	}
}

// WithEngine sets the engine. A new serial engine is used if it is not set.
func (b Builder) WithEngine(engine sim.Engine) Builder {
	b.engine = engine
	return b
}

// WithConfig replaces the configuration that overrides are applied on.
func (b Builder) WithConfig(c Config) Builder {
	b.config = c
	return b
}

// WithOverrides appends overrides. Overrides are applied in the order they
// are added.
func (b Builder) WithOverrides(overrides ...Override) Builder {
	b.overrides = append(append([]Override(nil), b.overrides...), overrides...)
	return b
}

// WithWorkload makes the core issue w instead of the workload named in the
// configuration.
func (b Builder) WithWorkload(w core.Workload) Builder {
	b.workload = w
	return b
}

// Resolve applies the overrides and validates the result without building
// anything.
func (b Builder) Resolve() (Config, error) {
	c := b.config

	if err := Apply(&c, b.overrides...); err != nil {
		return Config{}, err
	}

	if err := c.Validate(); err != nil {
		return Config{}, err
	}

	return c.withBlockSize(), nil
}

// Build creates and connects all the components. Nothing is built if the
// configuration is invalid; the error then wraps mem.ErrInvalidConfig.
func (b Builder) Build() (*Hierarchy, error) {
	c, err := b.Resolve()
	if err != nil {
		return nil, err
	}

	workload := b.workload
	if workload == nil {
		workload, err = c.Workload.build()
		if err != nil {
			return nil, err
		}
	}

	engine := b.engine
	if engine == nil {
		engine = sim.NewSerialEngine()
	}

	h := &Hierarchy{Engine: engine, Config: c, workload: workload}

	if err := b.buildComponents(h, workload); err != nil {
		return nil, err
	}

	h.connect()

	return h, nil
}

func (b Builder) buildComponents(h *Hierarchy, workload core.Workload) error {
	var err error

	c := h.Config

	h.Core, err = core.MakeBuilder().
		WithEngine(h.Engine).
		WithWorkload(workload).
		WithMaxInFlight(c.MaxInFlight).
		WithLineSize(c.BlockSize).
		Build("Core")
	if err != nil {
		return err
	}

	for _, l := range []struct {
		dst    **cache.Comp
		name   string
		role   cache.Role
		config cache.Config
	}{
		{&h.L1I, "L1I", cache.RoleL1I, c.L1I},
		{&h.L1D, "L1D", cache.RoleL1D, c.L1D},
		{&h.L2, "L2", cache.RoleL2, c.L2},
	} {
		*l.dst, err = cache.MakeBuilder().
			WithEngine(h.Engine).
			WithRole(l.role).
			WithConfig(l.config).
			Build(l.name)
		if err != nil {
			return err
		}
	}

	h.L2Bus, err = bus.MakeBuilder().
		WithEngine(h.Engine).
		WithConfig(c.L2Bus).
		WithNumCPUPorts(2).
		Build("L2Bus")
	if err != nil {
		return fmt.Errorf("l2bus: %w", err)
	}

	h.MemBus, err = bus.MakeBuilder().
		WithEngine(h.Engine).
		WithConfig(c.MemBus).
		WithNumCPUPorts(1).
		Build("MemBus")
	if err != nil {
		return fmt.Errorf("membus: %w", err)
	}

	h.Memory = idealmemcontroller.MakeBuilder().
		WithEngine(h.Engine).
		WithLatency(sim.VTimeInCycle(c.Memory.Latency)).
		WithNewStorage(uint64(c.Memory.Size)).
		Build("Memory")

	return nil
}
