package bus

import (
	"fmt"
	"log"

	"github.com/sarchlab/memhier/mem"
	"github.com/sarchlab/memhier/noc/arbitration"
	"github.com/sarchlab/memhier/sim"
)

// Config holds the parameters of a bus.
type Config struct {
	// Width is the number of lanes, each carrying one transfer at a time.
	Width int `yaml:"width" json:"width"`

	// Latency is the number of cycles a transfer or a response spends on
	// the bus.
	Latency uint64 `yaml:"latency" json:"latency"`

	// BufferSize is the number of requests each cpu-side port can queue.
	BufferSize int `yaml:"buffer" json:"buffer"`
}

// DefaultConfig returns a one-lane bus with no transit latency.
func DefaultConfig() Config {
	return Config{
		Width:      1,
		Latency:    0,
		BufferSize: 16,
	}
}

// Validate checks that the parameters describe a buildable bus.
func (c Config) Validate() error {
	if c.Width < 1 {
		return fmt.Errorf("%w: bus width %d must be at least 1",
			mem.ErrInvalidConfig, c.Width)
	}

	if c.BufferSize < 1 {
		return fmt.Errorf("%w: bus buffer %d must be at least 1",
			mem.ErrInvalidConfig, c.BufferSize)
	}

	return nil
}

// Builder can build buses.
type Builder struct {
	engine      sim.Engine
	config      Config
	numCPUPorts int
}

// MakeBuilder creates a builder with the default parameters and one
// cpu-side port.
func MakeBuilder() Builder {
	return Builder{
		config:      DefaultConfig(),
		numCPUPorts: 1,
	}
}

// WithEngine sets the engine of the builder.
func (b Builder) WithEngine(engine sim.Engine) Builder {
	b.engine = engine
	return b
}

// WithConfig sets all the bus parameters.
func (b Builder) WithConfig(config Config) Builder {
	b.config = config
	return b
}

// WithNumCPUPorts sets how many requesters can plug into the bus.
func (b Builder) WithNumCPUPorts(n int) Builder {
	b.numCPUPorts = n
	return b
}

// Build creates a bus. It fails with an error wrapping mem.ErrInvalidConfig
// if the parameters are not valid.
func (b Builder) Build(name string) (*Comp, error) {
	if b.engine == nil {
		log.Panicf("bus %s is built without an engine", name)
	}

	if err := b.config.Validate(); err != nil {
		return nil, fmt.Errorf("bus %s: %w", name, err)
	}

	if b.numCPUPorts < 1 {
		return nil, fmt.Errorf("%w: bus %s needs at least one cpu-side port",
			mem.ErrInvalidConfig, name)
	}

	c := &Comp{
		engine:      b.engine,
		latency:     sim.VTimeInCycle(b.config.Latency),
		buffers:     make(map[sim.Port]sim.Buffer),
		cpuBlocked:  make(map[sim.Port]bool),
		rspQueues:   make(map[sim.Port][]*mem.AccessRsp),
		rspBlocked:  make(map[sim.Port]bool),
		lanesByPort: make(map[sim.Port]*lane),
		arbiter:     arbitration.NewRoundRobinArbiter(),
		routes:      make(map[string]route),
	}
	c.ComponentBase = sim.NewComponentBase(name)

	for i := 0; i < b.numCPUPorts; i++ {
		localName := fmt.Sprintf("CPU[%d]", i)
		port := sim.NewPort(c, name+"."+localName)
		buf := sim.NewBuffer(
			fmt.Sprintf("%s.Buf[%d]", name, i), b.config.BufferSize)

		c.AddPort(localName, port)
		c.cpuPorts = append(c.cpuPorts, port)
		c.buffers[port] = buf
		c.arbiter.AddBuffer(buf)
	}

	for i := 0; i < b.config.Width; i++ {
		localName := fmt.Sprintf("Mem[%d]", i)
		port := sim.NewPort(c, name+"."+localName)
		l := &lane{index: i, port: port}

		c.AddPort(localName, port)
		c.lanes = append(c.lanes, l)
		c.lanesByPort[port] = l
	}

	return c, nil
}
