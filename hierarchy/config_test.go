package hierarchy

import (
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/memhier/mem"
	"github.com/sarchlab/memhier/sim"
)

var _ = Describe("Config", func() {
	It("should be valid by default", func() {
		c := DefaultConfig()

		Expect(c.Validate()).To(Succeed())
		Expect(c.L1D.Size).To(Equal(32 * mem.KB))
		Expect(c.L1D.Associativity).To(Equal(4))
		Expect(c.L2.Size).To(Equal(1 * mem.MB))
		Expect(c.L2.Associativity).To(Equal(16))
		Expect(c.Memory.Latency).To(Equal(uint64(100)))
		Expect(c.Freq).To(Equal(1 * sim.GHz))
	})

	It("should read YAML on top of the defaults", func() {
		c, err := ParseConfig(strings.NewReader(`
freq: 2GHz
block_size: 128
l1d:
  size: 64kB
  assoc: 8
l2bus:
  latency: 2
mem:
  size: 1GB
workload:
  kind: random
  seed: 42
`))

		Expect(err).NotTo(HaveOccurred())
		Expect(c.Freq).To(Equal(2 * sim.GHz))
		Expect(c.BlockSize).To(Equal(128))
		Expect(c.L1D.Size).To(Equal(64 * mem.KB))
		Expect(c.L1D.Associativity).To(Equal(8))
		Expect(c.L1D.ResponseLatency).To(Equal(uint64(3)))
		Expect(c.L1I.Size).To(Equal(32 * mem.KB))
		Expect(c.L2Bus.Latency).To(Equal(uint64(2)))
		Expect(c.L2Bus.Width).To(Equal(1))
		Expect(c.Memory.Size).To(Equal(1 * mem.GB))
		Expect(c.Workload.Kind).To(Equal(WorkloadRandom))
		Expect(c.Workload.Seed).To(Equal(uint64(42)))
	})

	It("should accept an empty file", func() {
		c, err := ParseConfig(strings.NewReader(""))

		Expect(err).NotTo(HaveOccurred())
		Expect(c).To(Equal(DefaultConfig()))
	})

	It("should reject unknown keys", func() {
		_, err := ParseConfig(strings.NewReader("l1d:\n  sise: 64kB\n"))
		Expect(err).To(MatchError(mem.ErrInvalidConfig))

		_, err = ParseConfig(strings.NewReader("l1d:\n  block_size: 32\n"))
		Expect(err).To(MatchError(mem.ErrInvalidConfig))
	})

	It("should load from a file", func() {
		path := filepath.Join(GinkgoT().TempDir(), "memhier.yaml")
		Expect(os.WriteFile(path, []byte("mem:\n  latency: 50\n"), 0o644)).
			To(Succeed())

		c, err := LoadConfig(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(c.Memory.Latency).To(Equal(uint64(50)))

		_, err = LoadConfig(filepath.Join(GinkgoT().TempDir(), "missing.yaml"))
		Expect(err).To(MatchError(mem.ErrInvalidConfig))
	})

	DescribeTable("validation",
		func(mutate func(c *Config)) {
			c := DefaultConfig()
			mutate(&c)

			Expect(c.Validate()).To(MatchError(mem.ErrInvalidConfig))
		},
		Entry("block size not a power of two",
			func(c *Config) { c.BlockSize = 48 }),
		Entry("block size smaller than a double word",
			func(c *Config) { c.BlockSize = 4 }),
		Entry("cache size not a multiple of a set",
			func(c *Config) { c.L2.Size = 1000 }),
		Entry("no mshr", func(c *Config) { c.L1I.MSHRs = 0 }),
		Entry("no bus lane", func(c *Config) { c.MemBus.Width = 0 }),
		Entry("no memory", func(c *Config) { c.Memory.Size = 0 }),
		Entry("no in-flight request", func(c *Config) { c.MaxInFlight = 0 }),
		Entry("unknown workload",
			func(c *Config) { c.Workload.Kind = "spec2017" }),
		Entry("trace workload without a file",
			func(c *Config) { c.Workload.Kind = WorkloadTrace }),
	)
})
