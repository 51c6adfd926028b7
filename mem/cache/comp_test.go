package cache

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/memhier/mem"
	"github.com/sarchlab/memhier/sim"
)

var _ = Describe("Cache", func() {
	var (
		engine *sim.SerialEngine
		config Config
		c      *Comp
		upper  *upperAgent
		lower  *lowerAgent
	)

	build := func() {
		var err error

		c, err = MakeBuilder().
			WithEngine(engine).
			WithConfig(config).
			Build("Cache")
		Expect(err).NotTo(HaveOccurred())

		upper = newUpperAgent(engine, "Upper")
		upper.dst = c.TopPort().AsRemote()
		lower = newLowerAgent(engine, "Lower", 10, uint64(1*mem.MB))
		c.SetLowModule(lower.port.AsRemote())

		topConn := sim.NewDirectConnection("TopConn")
		topConn.PlugIn(upper.port)
		topConn.PlugIn(c.TopPort())

		bottomConn := sim.NewDirectConnection("BottomConn")
		bottomConn.PlugIn(c.BottomPort())
		bottomConn.PlugIn(lower.port)
	}

	BeforeEach(func() {
		engine = sim.NewSerialEngine()
		config = DefaultL1DConfig()
	})

	Context("when built", func() {
		It("should reject invalid configs", func() {
			config.Size = 1000

			_, err := MakeBuilder().
				WithEngine(engine).
				WithConfig(config).
				Build("Cache")

			Expect(err).To(MatchError(mem.ErrInvalidConfig))
		})

		It("should keep its role", func() {
			cache, err := MakeBuilder().
				WithEngine(engine).
				WithRole(RoleL2).
				WithConfig(DefaultL2Config()).
				Build("L2")

			Expect(err).NotTo(HaveOccurred())
			Expect(cache.Role()).To(Equal(RoleL2))
			Expect(cache.Ports()).To(HaveLen(2))
		})
	})

	It("should miss once and then hit with only the response latency", func() {
		build()

		first := upper.req(mem.Load, 0x1000)
		Expect(upper.port.Send(first)).To(Succeed())
		Expect(engine.Run()).To(Succeed())

		r, ok := upper.rspTo(first)
		Expect(ok).To(BeTrue())
		Expect(r.time).To(Equal(sim.VTimeInCycle(3 + 10)))
		Expect(lower.reqsOfKind(mem.Fill)).To(HaveLen(1))

		second := upper.req(mem.Load, 0x1000)
		Expect(upper.port.Send(second)).To(Succeed())
		Expect(engine.Run()).To(Succeed())

		r, ok = upper.rspTo(second)
		Expect(ok).To(BeTrue())
		Expect(r.time - 13).To(Equal(sim.VTimeInCycle(3)))
		Expect(lower.reqsOfKind(mem.Fill)).To(HaveLen(1))
		Expect(c.Stats().Hits).To(Equal(uint64(1)))
		Expect(c.Stats().Misses).To(Equal(uint64(1)))
	})

	It("should charge the tag latency when asked", func() {
		config.ChargeTagLatency = true
		build()

		req := upper.req(mem.Load, 0x40)
		Expect(upper.port.Send(req)).To(Succeed())
		Expect(engine.Run()).To(Succeed())

		r, _ := upper.rspTo(req)
		Expect(r.time).To(Equal(sim.VTimeInCycle(3 + 2 + 10)))
	})

	It("should not evict when accessing up to associativity lines in a set",
		func() {
			build()

			stride := uint64(config.NumSets() * config.BlockSize)
			for i := 0; i < config.Associativity; i++ {
				req := upper.req(mem.Load, uint64(i)*stride)
				Expect(upper.port.Send(req)).To(Succeed())
			}
			Expect(engine.Run()).To(Succeed())

			for i := 0; i < config.Associativity; i++ {
				Expect(upper.port.Send(upper.req(mem.Load, uint64(i)*stride))).
					To(Succeed())
			}
			Expect(engine.Run()).To(Succeed())

			Expect(c.Stats().Evictions).To(BeZero())
			Expect(c.Stats().Hits).To(Equal(uint64(config.Associativity)))
			Expect(lower.reqsOfKind(mem.Fill)).To(HaveLen(config.Associativity))
		})

	It("should return stored data on a later load hit", func() {
		build()

		Expect(upper.port.Send(upper.req(mem.Load, 0x80))).To(Succeed())
		Expect(engine.Run()).To(Succeed())

		Expect(upper.port.Send(upper.store(0x84, []byte{1, 2, 3, 4}))).
			To(Succeed())
		Expect(engine.Run()).To(Succeed())

		load := upper.req(mem.Load, 0x84)
		Expect(upper.port.Send(load)).To(Succeed())
		Expect(engine.Run()).To(Succeed())

		r, _ := upper.rspTo(load)
		Expect(r.rsp.Data).To(Equal([]byte{1, 2, 3, 4}))
		Expect(lower.reqsOfKind(mem.Writeback)).To(BeEmpty())
	})

	It("should coalesce requests to the same missing line", func() {
		build()

		load := upper.req(mem.Load, 0x200)
		store := upper.store(0x204, []byte{9, 9, 9, 9})
		load2 := upper.req(mem.Load, 0x204)
		Expect(upper.port.Send(load)).To(Succeed())
		Expect(upper.port.Send(store)).To(Succeed())
		Expect(upper.port.Send(load2)).To(Succeed())
		Expect(engine.Run()).To(Succeed())

		Expect(lower.reqsOfKind(mem.Fill)).To(HaveLen(1))
		Expect(upper.rsps).To(HaveLen(3))
		Expect(upper.rsps[0].rsp.RespondTo).To(Equal(load.ID))
		Expect(upper.rsps[1].rsp.RespondTo).To(Equal(store.ID))
		Expect(upper.rsps[2].rsp.RespondTo).To(Equal(load2.ID))
		Expect(upper.rsps[2].rsp.Data).To(Equal([]byte{9, 9, 9, 9}))
		Expect(upper.rsps[0].time).To(Equal(upper.rsps[2].time))
		Expect(c.Stats().Coalesced).To(Equal(uint64(2)))
	})

	It("should reject misses beyond the MSHR capacity until one resolves",
		func() {
			build()

			for i := 0; i < config.MSHRs; i++ {
				req := upper.req(mem.Load, uint64(i)*0x40)
				Expect(upper.sendOrRetry(req)).To(Succeed())
			}

			extra := upper.req(mem.Load, 0x4000)
			Expect(upper.sendOrRetry(extra)).To(MatchError(mem.ErrResourceExhausted))
			Expect(c.Stats().Rejected).To(Equal(uint64(1)))

			Expect(engine.Run()).To(Succeed())

			Expect(upper.notified).To(Equal(1))
			r, ok := upper.rspTo(extra)
			Expect(ok).To(BeTrue())
			Expect(r.time).To(Equal(sim.VTimeInCycle(13 + 13)))
		})

	It("should reject requests beyond the targets of an entry", func() {
		config.TargetsPerMSHR = 2
		build()

		Expect(upper.sendOrRetry(upper.req(mem.Load, 0x0))).To(Succeed())
		Expect(upper.sendOrRetry(upper.req(mem.Load, 0x4))).To(Succeed())
		Expect(upper.sendOrRetry(upper.req(mem.Load, 0x8))).
			To(MatchError(mem.ErrResourceExhausted))

		Expect(engine.Run()).To(Succeed())

		Expect(upper.rsps).To(HaveLen(3))
		Expect(lower.reqsOfKind(mem.Fill)).To(HaveLen(1))
	})

	It("should write back a dirty victim before installing the new line",
		func() {
			config.Size = 256
			config.Associativity = 1
			build()

			Expect(upper.port.Send(upper.store(0x0, []byte{7, 7, 7, 7}))).
				To(Succeed())
			Expect(engine.Run()).To(Succeed())

			Expect(upper.port.Send(upper.req(mem.Load, 0x100))).To(Succeed())
			Expect(engine.Run()).To(Succeed())

			wbs := lower.reqsOfKind(mem.Writeback)
			Expect(wbs).To(HaveLen(1))
			Expect(wbs[0].Address).To(Equal(uint64(0)))
			Expect(wbs[0].Data[:4]).To(Equal([]byte{7, 7, 7, 7}))
			Expect(c.Stats().Evictions).To(Equal(uint64(1)))
			Expect(c.Stats().Writebacks).To(Equal(uint64(1)))

			data, _ := lower.storage.Read(0, 4)
			Expect(data).To(Equal([]byte{7, 7, 7, 7}))
		})

	It("should pass faults to every waiting requester", func() {
		build()
		lower.storage = mem.NewStorage(0x1000)

		load1 := upper.req(mem.Load, 0x2000)
		load2 := upper.req(mem.Load, 0x2008)
		Expect(upper.port.Send(load1)).To(Succeed())
		Expect(upper.port.Send(load2)).To(Succeed())
		Expect(engine.Run()).To(Succeed())

		Expect(upper.rsps).To(HaveLen(2))
		for _, r := range upper.rsps {
			Expect(r.rsp.Fault).To(MatchError(mem.ErrAddressOutOfRange))
		}
		Expect(c.Stats().Faults).To(Equal(uint64(1)))

		retry := upper.req(mem.Load, 0x2000)
		Expect(upper.port.Send(retry)).To(Succeed())
		Expect(engine.Run()).To(Succeed())
		Expect(lower.reqsOfKind(mem.Fill)).To(HaveLen(2))
	})

	It("should fault an access that crosses a line", func() {
		build()

		load := upper.req(mem.Load, 0x3e)
		Expect(upper.port.Send(load)).To(Succeed())
		Expect(engine.Run()).To(Succeed())

		r, ok := upper.rspTo(load)
		Expect(ok).To(BeTrue())
		Expect(r.rsp.Fault).To(MatchError(mem.ErrCrossesLine))
		Expect(c.Stats().Faults).To(Equal(uint64(1)))
		Expect(c.Stats().Misses).To(BeZero())
		Expect(lower.reqsOfKind(mem.Fill)).To(BeEmpty())
	})

	Context("when receiving writebacks from an upper cache", func() {
		writeback := func(addr uint64, fill byte) *mem.AccessReq {
			data := make([]byte, config.BlockSize)
			for i := range data {
				data[i] = fill
			}

			return mem.AccessReqBuilder{}.
				WithSrc(upper.port.AsRemote()).
				WithDst(upper.dst).
				WithKind(mem.Writeback).
				WithAddress(addr).
				WithData(data).
				Build()
		}

		It("should forward a missing line without allocating", func() {
			build()

			wb := writeback(0x400, 5)
			Expect(upper.port.Send(wb)).To(Succeed())
			Expect(engine.Run()).To(Succeed())

			r, ok := upper.rspTo(wb)
			Expect(ok).To(BeTrue())
			Expect(r.time).To(Equal(sim.VTimeInCycle(3)))
			Expect(lower.reqsOfKind(mem.Writeback)).To(HaveLen(1))
			Expect(lower.reqsOfKind(mem.Fill)).To(BeEmpty())

			load := upper.req(mem.Load, 0x400)
			Expect(upper.port.Send(load)).To(Succeed())
			Expect(engine.Run()).To(Succeed())

			r, _ = upper.rspTo(load)
			Expect(r.rsp.Data).To(Equal([]byte{5, 5, 5, 5}))
			Expect(lower.reqsOfKind(mem.Fill)).To(HaveLen(1))
		})

		It("should merge into a present line", func() {
			build()

			Expect(upper.port.Send(upper.req(mem.Load, 0x400))).To(Succeed())
			Expect(engine.Run()).To(Succeed())

			Expect(upper.port.Send(writeback(0x400, 6))).To(Succeed())
			Expect(engine.Run()).To(Succeed())

			Expect(lower.reqsOfKind(mem.Writeback)).To(BeEmpty())

			load := upper.req(mem.Load, 0x404)
			Expect(upper.port.Send(load)).To(Succeed())
			Expect(engine.Run()).To(Succeed())

			r, _ := upper.rspTo(load)
			Expect(r.rsp.Data).To(Equal([]byte{6, 6, 6, 6}))
		})
	})

	It("should report outcomes to hooks", func() {
		build()

		var outcomes []Outcome
		c.AcceptHook(sim.HookFunc(func(ctx sim.HookCtx) {
			if ctx.Pos == HookPosAccessOutcome {
				outcomes = append(outcomes, ctx.Detail.(Outcome))
			}
		}))

		Expect(upper.port.Send(upper.req(mem.Load, 0x0))).To(Succeed())
		Expect(upper.port.Send(upper.req(mem.Load, 0x4))).To(Succeed())
		Expect(engine.Run()).To(Succeed())
		Expect(upper.port.Send(upper.req(mem.Load, 0x8))).To(Succeed())
		Expect(engine.Run()).To(Succeed())

		Expect(outcomes).To(Equal(
			[]Outcome{OutcomeMiss, OutcomeCoalesced, OutcomeHit}))
	})
})

var _ = Describe("Config", func() {
	It("should accept the defaults", func() {
		Expect(DefaultL1IConfig().Validate()).To(Succeed())
		Expect(DefaultL1DConfig().Validate()).To(Succeed())
		Expect(DefaultL2Config().Validate()).To(Succeed())
		Expect(DefaultL2Config().NumSets()).To(Equal(1024))
	})

	DescribeTable("should reject",
		func(mutate func(*Config)) {
			c := DefaultL1DConfig()
			mutate(&c)
			Expect(c.Validate()).To(MatchError(mem.ErrInvalidConfig))
		},
		Entry("zero size", func(c *Config) { c.Size = 0 }),
		Entry("partial sets", func(c *Config) { c.Size = 32*mem.KB + 64 }),
		Entry("zero ways", func(c *Config) { c.Associativity = 0 }),
		Entry("odd block size", func(c *Config) { c.BlockSize = 48 }),
		Entry("no MSHR", func(c *Config) { c.MSHRs = 0 }),
		Entry("no targets", func(c *Config) { c.TargetsPerMSHR = 0 }),
	)
})
