package hierarchy

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/sarchlab/memhier/mem"
	"github.com/sarchlab/memhier/mem/cache"
	"github.com/sarchlab/memhier/noc/bus"
	"github.com/sarchlab/memhier/sim"
)

// EnvPrefix starts the name of every environment variable that overrides a
// parameter, as in MEMHIER_L2_SIZE.
const EnvPrefix = "MEMHIER_"

// A Param is a named configuration value that can be overridden with a
// string.
type Param struct {
	Name  string
	Usage string

	get func(c *Config) string
	set func(c *Config, value string) error
}

// Default returns the value of the parameter in DefaultConfig.
func (p Param) Default() string {
	c := DefaultConfig()
	return p.get(&c)
}

// Get returns the value of the parameter in c.
func (p Param) Get(c Config) string {
	return p.get(&c)
}

// An Override sets a parameter by name.
type Override struct {
	Name  string
	Value string
}

func (o Override) String() string {
	return o.Name + "=" + o.Value
}

// ParseOverride splits "name=value".
func ParseOverride(s string) (Override, error) {
	name, value, found := strings.Cut(s, "=")
	if !found || strings.TrimSpace(name) == "" {
		return Override{}, fmt.Errorf("%w: override %q is not name=value",
			mem.ErrInvalidConfig, s)
	}

	return Override{Name: strings.TrimSpace(name), Value: value}, nil
}

// OverridesFromEnviron picks the MEMHIER_ variables out of environ, which is
// in the format of os.Environ. Names are lower-cased and sorted. Variables
// that do not name a parameter are returned too, so that they fail when
// applied.
func OverridesFromEnviron(environ []string) []Override {
	var overrides []Override

	for _, kv := range environ {
		name, value, found := strings.Cut(kv, "=")
		if !found || !strings.HasPrefix(name, EnvPrefix) {
			continue
		}

		overrides = append(overrides, Override{
			Name:  strings.ToLower(strings.TrimPrefix(name, EnvPrefix)),
			Value: value,
		})
	}

	slices.SortFunc(overrides, func(a, b Override) int {
		return strings.Compare(a.Name, b.Name)
	})

	return overrides
}

// Apply sets the overrides on c in order, so a later override of the same
// name wins. It stops at the first unknown name or bad value.
func Apply(c *Config, overrides ...Override) error {
	for _, o := range overrides {
		p, found := LookupParam(o.Name)
		if !found {
			return fmt.Errorf("%w: unknown parameter %q",
				mem.ErrInvalidConfig, o.Name)
		}

		if err := p.set(c, strings.TrimSpace(o.Value)); err != nil {
			return fmt.Errorf("%w: parameter %s: %v",
				mem.ErrInvalidConfig, o.Name, err)
		}
	}

	return nil
}

var (
	params      []Param
	paramByName map[string]Param
)

func init() {
	for _, level := range []struct {
		prefix string
		field  func(c *Config) *cache.Config
	}{
		{"l1i_", func(c *Config) *cache.Config { return &c.L1I }},
		{"l1d_", func(c *Config) *cache.Config { return &c.L1D }},
		{"l2_", func(c *Config) *cache.Config { return &c.L2 }},
	} {
		registerCacheParams(level.prefix, level.field)
	}

	intParam("block_size", "cache line size in bytes",
		func(c *Config) *int { return &c.BlockSize })

	for _, b := range []struct {
		prefix string
		field  func(c *Config) *bus.Config
	}{
		{"l2bus_", func(c *Config) *bus.Config { return &c.L2Bus }},
		{"membus_", func(c *Config) *bus.Config { return &c.MemBus }},
	} {
		registerBusParams(b.prefix, b.field)
	}

	uint64Param("mem_latency", "memory access latency in cycles",
		func(c *Config) *uint64 { return &c.Memory.Latency })
	byteSizeParam("mem_size", "memory capacity",
		func(c *Config) *mem.ByteSize { return &c.Memory.Size })

	register(Param{
		Name:  "freq",
		Usage: "clock frequency",
		get:   func(c *Config) string { return c.Freq.String() },
		set: func(c *Config, v string) error {
			f, err := sim.ParseFreq(v)
			if err != nil {
				return err
			}

			c.Freq = f

			return nil
		},
	})

	intParam("max_inflight", "requests the core keeps outstanding",
		func(c *Config) *int { return &c.MaxInFlight })
	stringParam("workload", "sequential, random, or trace",
		func(c *Config) *string { return &c.Workload.Kind })
	intParam("workload_count", "number of accesses",
		func(c *Config) *int { return &c.Workload.Count })
	uint64Param("workload_seed", "seed of the random workload",
		func(c *Config) *uint64 { return &c.Workload.Seed })
	stringParam("trace", "trace file of the trace workload",
		func(c *Config) *string { return &c.Workload.Trace })
}

func registerCacheParams(prefix string, field func(c *Config) *cache.Config) {
	byteSizeParam(prefix+"size", "cache size",
		func(c *Config) *mem.ByteSize { return &field(c).Size })
	intParam(prefix+"assoc", "associativity",
		func(c *Config) *int { return &field(c).Associativity })
	uint64Param(prefix+"response_latency", "response latency in cycles",
		func(c *Config) *uint64 { return &field(c).ResponseLatency })
	uint64Param(prefix+"tag_latency", "tag lookup latency in cycles",
		func(c *Config) *uint64 { return &field(c).TagLatency })
	uint64Param(prefix+"data_latency", "data access latency in cycles",
		func(c *Config) *uint64 { return &field(c).DataLatency })
	intParam(prefix+"mshrs", "outstanding misses",
		func(c *Config) *int { return &field(c).MSHRs })
	intParam(prefix+"tgts_per_mshr", "requests merged into one miss",
		func(c *Config) *int { return &field(c).TargetsPerMSHR })
	boolParam(prefix+"charge_tag_latency", "add the tag latency to hits",
		func(c *Config) *bool { return &field(c).ChargeTagLatency })
}

func registerBusParams(prefix string, field func(c *Config) *bus.Config) {
	intParam(prefix+"width", "lanes to the lower level",
		func(c *Config) *int { return &field(c).Width })
	uint64Param(prefix+"latency", "transit latency in cycles",
		func(c *Config) *uint64 { return &field(c).Latency })
	intParam(prefix+"buffer", "requests queued per cpu-side port",
		func(c *Config) *int { return &field(c).BufferSize })
}

func register(p Param) {
	if paramByName == nil {
		paramByName = make(map[string]Param)
	}

	if _, found := paramByName[p.Name]; found {
		panic("parameter " + p.Name + " registered twice")
	}

	params = append(params, p)
	paramByName[p.Name] = p
}

func intParam(name, usage string, field func(c *Config) *int) {
	register(Param{
		Name:  name,
		Usage: usage,
		get:   func(c *Config) string { return strconv.Itoa(*field(c)) },
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return err
			}

			*field(c) = n

			return nil
		},
	})
}

func uint64Param(name, usage string, field func(c *Config) *uint64) {
	register(Param{
		Name:  name,
		Usage: usage,
		get: func(c *Config) string {
			return strconv.FormatUint(*field(c), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return err
			}

			*field(c) = n

			return nil
		},
	})
}

func boolParam(name, usage string, field func(c *Config) *bool) {
	register(Param{
		Name:  name,
		Usage: usage,
		get:   func(c *Config) string { return strconv.FormatBool(*field(c)) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return err
			}

			*field(c) = b

			return nil
		},
	})
}

func stringParam(name, usage string, field func(c *Config) *string) {
	register(Param{
		Name:  name,
		Usage: usage,
		get:   func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error {
			*field(c) = v
			return nil
		},
	})
}

func byteSizeParam(name, usage string, field func(c *Config) *mem.ByteSize) {
	register(Param{
		Name:  name,
		Usage: usage,
		get:   func(c *Config) string { return field(c).String() },
		set: func(c *Config, v string) error {
			s, err := mem.ParseByteSize(v)
			if err != nil {
				return err
			}

			*field(c) = s

			return nil
		},
	})
}

// Params returns all the parameters in a fixed order.
func Params() []Param {
	return slices.Clone(params)
}

// LookupParam finds a parameter by name.
func LookupParam(name string) (Param, bool) {
	p, found := paramByName[name]
	return p, found
}
