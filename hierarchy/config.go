package hierarchy

import (
	"errors"
	"fmt"
	"io"
	"math/bits"
	"os"

	"github.com/sarchlab/memhier/core"
	"github.com/sarchlab/memhier/mem"
	"github.com/sarchlab/memhier/mem/cache"
	"github.com/sarchlab/memhier/noc/bus"
	"github.com/sarchlab/memhier/sim"
	"gopkg.in/yaml.v3"
)

// Workload kinds.
const (
	WorkloadSequential = "sequential"
	WorkloadRandom     = "random"
	WorkloadTrace      = "trace"
)

// MemoryConfig holds the parameters of the memory controller.
type MemoryConfig struct {
	Latency uint64       `yaml:"latency" json:"latency"`
	Size    mem.ByteSize `yaml:"size" json:"size"`
}

// WorkloadConfig tells the core what to issue.
type WorkloadConfig struct {
	Kind  string `yaml:"kind" json:"kind"`
	Count int    `yaml:"count" json:"count"`
	Seed  uint64 `yaml:"seed" json:"seed"`
	Trace string `yaml:"trace" json:"trace"`
}

// Config describes a whole hierarchy. The BlockSize is shared by all the
// cache levels.
type Config struct {
	Freq        sim.Freq       `yaml:"freq" json:"freq"`
	BlockSize   int            `yaml:"block_size" json:"block_size"`
	MaxInFlight int            `yaml:"max_inflight" json:"max_inflight"`
	L1I         cache.Config   `yaml:"l1i" json:"l1i"`
	L1D         cache.Config   `yaml:"l1d" json:"l1d"`
	L2          cache.Config   `yaml:"l2" json:"l2"`
	L2Bus       bus.Config     `yaml:"l2bus" json:"l2bus"`
	MemBus      bus.Config     `yaml:"membus" json:"membus"`
	Memory      MemoryConfig   `yaml:"mem" json:"mem"`
	Workload    WorkloadConfig `yaml:"workload" json:"workload"`
}

// DefaultConfig returns a 1GHz system with split 32kB L1 caches, a 1MB L2,
// and 512MB of memory behind a 100-cycle controller.
func DefaultConfig() Config {
	return Config{
		Freq:        1 * sim.GHz,
		BlockSize:   64,
		MaxInFlight: 1,
		L1I:         cache.DefaultL1IConfig(),
		L1D:         cache.DefaultL1DConfig(),
		L2:          cache.DefaultL2Config(),
		L2Bus:       bus.DefaultConfig(),
		MemBus:      bus.DefaultConfig(),
		Memory: MemoryConfig{
			Latency: 100,
			Size:    512 * mem.MB,
		},
		Workload: WorkloadConfig{
			Kind:  WorkloadSequential,
			Count: 10000,
			Seed:  1,
		},
	}
}

// LoadConfig reads a YAML file on top of the defaults. Keys that are not
// part of Config are rejected.
func LoadConfig(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %v", mem.ErrInvalidConfig, err)
	}
	defer f.Close()

	return ParseConfig(f)
}

// ParseConfig reads YAML from r on top of the defaults.
func ParseConfig(r io.Reader) (Config, error) {
	c := DefaultConfig()

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("%w: %v", mem.ErrInvalidConfig, err)
	}

	return c, nil
}

// withBlockSize copies the shared block size into every cache level.
func (c Config) withBlockSize() Config {
	c.L1I.BlockSize = c.BlockSize
	c.L1D.BlockSize = c.BlockSize
	c.L2.BlockSize = c.BlockSize

	return c
}

// Validate checks every part of the configuration. The first problem found
// is returned, wrapping mem.ErrInvalidConfig.
func (c Config) Validate() error {
	if c.Freq <= 0 {
		return fmt.Errorf("%w: freq must be positive", mem.ErrInvalidConfig)
	}

	if c.BlockSize < 8 || bits.OnesCount(uint(c.BlockSize)) != 1 {
		return fmt.Errorf("%w: block_size %d must be a power of two of at least 8",
			mem.ErrInvalidConfig, c.BlockSize)
	}

	if c.MaxInFlight < 1 {
		return fmt.Errorf("%w: max_inflight %d must be at least 1",
			mem.ErrInvalidConfig, c.MaxInFlight)
	}

	c = c.withBlockSize()

	for _, level := range []struct {
		name   string
		config cache.Config
	}{
		{"l1i", c.L1I}, {"l1d", c.L1D}, {"l2", c.L2},
	} {
		if err := level.config.Validate(); err != nil {
			return fmt.Errorf("%s: %w", level.name, err)
		}
	}

	if err := c.L2Bus.Validate(); err != nil {
		return fmt.Errorf("l2bus: %w", err)
	}

	if err := c.MemBus.Validate(); err != nil {
		return fmt.Errorf("membus: %w", err)
	}

	if c.Memory.Size == 0 {
		return fmt.Errorf("%w: mem_size must be positive", mem.ErrInvalidConfig)
	}

	return c.Workload.validate()
}

func (w WorkloadConfig) validate() error {
	if w.Count < 0 {
		return fmt.Errorf("%w: workload_count %d is negative",
			mem.ErrInvalidConfig, w.Count)
	}

	switch w.Kind {
	case WorkloadSequential, WorkloadRandom:
		return nil
	case WorkloadTrace:
		if w.Trace == "" {
			return fmt.Errorf("%w: the trace workload needs a trace file",
				mem.ErrInvalidConfig)
		}

		return nil
	default:
		return fmt.Errorf("%w: unknown workload %q",
			mem.ErrInvalidConfig, w.Kind)
	}
}

func (w WorkloadConfig) build() (core.Workload, error) {
	switch w.Kind {
	case WorkloadRandom:
		return core.DefaultRandomWorkload(w.Count, w.Seed), nil
	case WorkloadTrace:
		return core.LoadTrace(w.Trace)
	default:
		return core.DefaultSequentialWorkload(w.Count), nil
	}
}
