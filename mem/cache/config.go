package cache

import (
	"fmt"
	"math/bits"

	"github.com/sarchlab/memhier/mem"
)

// Role tells where a cache sits in the hierarchy. It only changes how the
// cache is wired; all roles share the same behavior.
type Role int

// Cache roles.
const (
	RoleL1I Role = iota
	RoleL1D
	RoleL2
)

func (r Role) String() string {
	switch r {
	case RoleL1I:
		return "L1I"
	case RoleL1D:
		return "L1D"
	case RoleL2:
		return "L2"
	default:
		return fmt.Sprintf("Role(%d)", int(r))
	}
}

// Config holds the parameters of one cache level. Latencies are in cycles.
type Config struct {
	Size            mem.ByteSize `yaml:"size" json:"size"`
	Associativity   int          `yaml:"assoc" json:"assoc"`
	BlockSize       int          `yaml:"-" json:"block_size"`
	TagLatency      uint64       `yaml:"tag_latency" json:"tag_latency"`
	DataLatency     uint64       `yaml:"data_latency" json:"data_latency"`
	ResponseLatency uint64       `yaml:"response_latency" json:"response_latency"`
	MSHRs           int          `yaml:"mshrs" json:"mshrs"`
	TargetsPerMSHR  int          `yaml:"tgts_per_mshr" json:"tgts_per_mshr"`

	// ChargeTagLatency adds TagLatency on top of ResponseLatency for every
	// lookup, modeling a tag check that is not overlapped with the access.
	ChargeTagLatency bool `yaml:"charge_tag_latency" json:"charge_tag_latency"`
}

// DefaultL1Config returns the parameters shared by the first-level caches.
func DefaultL1Config() Config {
	return Config{
		Size:            32 * mem.KB,
		Associativity:   2,
		BlockSize:       64,
		TagLatency:      2,
		DataLatency:     2,
		ResponseLatency: 2,
		MSHRs:           4,
		TargetsPerMSHR:  20,
	}
}

// DefaultL1IConfig returns the default instruction cache parameters.
func DefaultL1IConfig() Config {
	c := DefaultL1Config()
	c.Associativity = 4
	c.ResponseLatency = 3

	return c
}

// DefaultL1DConfig returns the default data cache parameters.
func DefaultL1DConfig() Config {
	c := DefaultL1Config()
	c.Associativity = 4
	c.ResponseLatency = 3

	return c
}

// DefaultL2Config returns the default unified second-level cache parameters.
func DefaultL2Config() Config {
	return Config{
		Size:            1 * mem.MB,
		Associativity:   16,
		BlockSize:       64,
		TagLatency:      20,
		DataLatency:     20,
		ResponseLatency: 12,
		MSHRs:           20,
		TargetsPerMSHR:  12,
	}
}

// LookupLatency is the number of cycles between a request arriving and the
// cache answering it, or sending the miss down.
func (c Config) LookupLatency() uint64 {
	if c.ChargeTagLatency {
		return c.ResponseLatency + c.TagLatency
	}

	return c.ResponseLatency
}

// NumSets returns the number of sets the cache has.
func (c Config) NumSets() int {
	return int(uint64(c.Size) / uint64(c.BlockSize*c.Associativity))
}

// Validate checks that the parameters describe a buildable cache.
func (c Config) Validate() error {
	if c.BlockSize <= 0 || bits.OnesCount(uint(c.BlockSize)) != 1 {
		return fmt.Errorf("%w: block size %d is not a power of two",
			mem.ErrInvalidConfig, c.BlockSize)
	}

	if c.Associativity < 1 {
		return fmt.Errorf("%w: associativity %d must be at least 1",
			mem.ErrInvalidConfig, c.Associativity)
	}

	setSize := uint64(c.BlockSize) * uint64(c.Associativity)
	if c.Size == 0 || uint64(c.Size)%setSize != 0 {
		return fmt.Errorf(
			"%w: size %s is not a positive multiple of %d-byte blocks x %d ways",
			mem.ErrInvalidConfig, c.Size, c.BlockSize, c.Associativity)
	}

	if c.MSHRs < 1 {
		return fmt.Errorf("%w: mshrs %d must be at least 1",
			mem.ErrInvalidConfig, c.MSHRs)
	}

	if c.TargetsPerMSHR < 1 {
		return fmt.Errorf("%w: tgts_per_mshr %d must be at least 1",
			mem.ErrInvalidConfig, c.TargetsPerMSHR)
	}

	return nil
}
