// Package core provides a request source that plays the role of a processor
// core. It turns a workload into memory requests for the L1 caches.
package core

import (
	"fmt"
	"iter"
	"log"
	"reflect"

	"github.com/sarchlab/memhier/mem"
	"github.com/sarchlab/memhier/sim"
)

// HookPosReqComplete marks that the response to a request has arrived. The
// hook item is a Completion.
var HookPosReqComplete = &sim.HookPos{Name: "Core Req Complete"}

// A Completion describes a request that has received its response.
type Completion struct {
	Req          *mem.AccessReq
	Rsp          *mem.AccessRsp
	IssueTime    sim.VTimeInCycle
	CompleteTime sim.VTimeInCycle
}

// Latency returns the number of cycles between issue and completion.
func (c Completion) Latency() sim.VTimeInCycle {
	return c.CompleteTime - c.IssueTime
}

// Statistics summarizes what the core has issued and received.
type Statistics struct {
	Issued         uint64           `json:"issued"`
	Completed      uint64           `json:"completed"`
	Faults         uint64           `json:"faults"`
	Retries        uint64           `json:"retries"`
	Fetches        uint64           `json:"fetches"`
	Loads          uint64           `json:"loads"`
	Stores         uint64           `json:"stores"`
	TotalLatency   uint64           `json:"total_latency"`
	MaxLatency     uint64           `json:"max_latency"`
	FirstIssue     sim.VTimeInCycle `json:"first_issue"`
	LastCompletion sim.VTimeInCycle `json:"last_completion"`
}

// AvgLatency returns the mean number of cycles a request took.
func (s Statistics) AvgLatency() float64 {
	if s.Completed == 0 {
		return 0
	}

	return float64(s.TotalLatency) / float64(s.Completed)
}

type issueEvent struct {
	*sim.EventBase
}

type inflightReq struct {
	req       *mem.AccessReq
	issueTime sim.VTimeInCycle
}

// Comp is a core that issues the accesses of a workload. It issues at most
// one request per cycle and keeps at most MaxInFlight requests outstanding.
// Fetches go to the instruction cache and loads and stores go to the data
// cache.
type Comp struct {
	*sim.ComponentBase

	engine      sim.Engine
	coreID      int
	maxInFlight int
	lineSize    uint64
	workload    Workload

	iCachePort sim.Port
	dCachePort sim.Port
	iCache     sim.RemotePort
	dCache     sim.RemotePort

	started   bool
	next      func() (mem.Access, bool)
	stop      func()
	exhausted bool

	pending      *mem.AccessReq
	waitingRetry bool
	inflight     map[string]inflightReq

	issueScheduled bool
	hasIssued      bool
	lastIssue      sim.VTimeInCycle

	stats Statistics
}

// ICachePort returns the port that connects to the instruction cache.
func (c *Comp) ICachePort() sim.Port {
	return c.iCachePort
}

// DCachePort returns the port that connects to the data cache.
func (c *Comp) DCachePort() sim.Port {
	return c.dCachePort
}

// SetICache sets where fetches are sent.
func (c *Comp) SetICache(port sim.RemotePort) {
	c.iCache = port
}

// SetDCache sets where loads and stores are sent.
func (c *Comp) SetDCache(port sim.RemotePort) {
	c.dCache = port
}

// Stats returns a copy of the statistics collected so far.
func (c *Comp) Stats() Statistics {
	return c.stats
}

// NumInFlight returns the number of requests waiting for a response.
func (c *Comp) NumInFlight() int {
	return len(c.inflight)
}

// Finished returns true if every access of the workload has completed.
func (c *Comp) Finished() bool {
	return c.exhausted && c.pending == nil && len(c.inflight) == 0
}

// Start schedules the first issue at the current time. The workload is read
// once; a core cannot be started twice.
func (c *Comp) Start() {
	if c.started {
		log.Panicf("core %s is already started", c.Name())
	}

	c.started = true
	c.next, c.stop = iter.Pull(c.workload.Accesses())
	c.scheduleIssue()
}

// Recv takes responses from the caches.
func (c *Comp) Recv(msg sim.Msg, _ sim.Port) error {
	rsp, ok := msg.(*mem.AccessRsp)
	if !ok {
		log.Panicf("core %s cannot handle %s", c.Name(), reflect.TypeOf(msg))
	}

	r, found := c.inflight[rsp.RespondTo]
	if !found {
		log.Panicf("core %s: response to unknown request %s",
			c.Name(), rsp.RespondTo)
	}

	delete(c.inflight, rsp.RespondTo)

	c.complete(Completion{
		Req:          r.req,
		Rsp:          rsp,
		IssueTime:    r.issueTime,
		CompleteTime: c.engine.CurrentTime(),
	})

	c.scheduleIssue()

	return nil
}

func (c *Comp) complete(done Completion) {
	c.countCompletion(done)

	if c.NumHooks() > 0 {
		c.InvokeHook(sim.HookCtx{
			Domain: c,
			Pos:    HookPosReqComplete,
			Item:   done,
		})
	}
}

// NotifyPortFree resumes issuing after a cache rejected a request.
func (c *Comp) NotifyPortFree(_ sim.Port) {
	if !c.waitingRetry {
		return
	}

	c.waitingRetry = false
	c.scheduleIssue()
}

// Handle processes the events scheduled by the core.
func (c *Comp) Handle(e sim.Event) error {
	switch e.(type) {
	case *issueEvent:
		c.issueScheduled = false
		c.issue()
	default:
		log.Panicf("core %s cannot handle event %s",
			c.Name(), reflect.TypeOf(e))
	}

	return nil
}

func (c *Comp) scheduleIssue() {
	if !c.started || c.issueScheduled || c.waitingRetry {
		return
	}

	if c.exhausted && c.pending == nil {
		return
	}

	t := c.engine.CurrentTime()
	if c.hasIssued && c.lastIssue >= t {
		t = c.lastIssue + 1
	}

	c.issueScheduled = true
	c.engine.Schedule(&issueEvent{
		EventBase: sim.NewEventBase(t, c),
	})
}

func (c *Comp) issue() {
	if c.waitingRetry || len(c.inflight) >= c.maxInFlight {
		return
	}

	req := c.pending
	if req == nil {
		req = c.nextReq()
		if req == nil {
			return
		}
	}

	now := c.engine.CurrentTime()

	if c.crossesLine(req) {
		c.refuse(req, now)
		return
	}

	port := c.dCachePort
	if req.Kind == mem.Fetch {
		port = c.iCachePort
	}

	if err := port.Send(req); err != nil {
		c.stats.Retries++
		c.pending = req
		c.waitingRetry = true

		return
	}

	c.pending = nil
	c.inflight[req.ID] = inflightReq{req: req, issueTime: now}
	c.countIssue(req, now)

	c.hasIssued = true
	c.lastIssue = now

	if len(c.inflight) < c.maxInFlight {
		c.scheduleIssue()
	}
}

func (c *Comp) crossesLine(req *mem.AccessReq) bool {
	if c.lineSize == 0 {
		return false
	}

	offset := req.Address & (c.lineSize - 1)

	return offset+req.ByteSize > c.lineSize
}

// refuse completes req with a fault in the cycle it would have been issued.
func (c *Comp) refuse(req *mem.AccessReq, now sim.VTimeInCycle) {
	c.countIssue(req, now)
	c.hasIssued = true
	c.lastIssue = now

	fault := fmt.Errorf("%w: [0x%x, +%d) in %d-byte lines",
		mem.ErrCrossesLine, req.Address, req.ByteSize, c.lineSize)

	c.complete(Completion{
		Req: req,
		Rsp: mem.AccessRspBuilder{}.
			WithRspTo(req.ID).
			WithFault(fault).
			Build(),
		IssueTime:    now,
		CompleteTime: now,
	})

	c.scheduleIssue()
}

func (c *Comp) nextReq() *mem.AccessReq {
	if c.exhausted {
		return nil
	}

	a, ok := c.next()
	if !ok {
		c.exhausted = true
		c.stop()

		return nil
	}

	dst := c.dCache
	src := c.dCachePort.AsRemote()

	if a.Kind == mem.Fetch {
		dst = c.iCache
		src = c.iCachePort.AsRemote()
	}

	b := mem.AccessReqBuilder{}.
		WithSrc(src).
		WithDst(dst).
		WithAddress(a.Address).
		WithKind(a.Kind).
		WithByteSize(a.Size).
		WithCoreID(c.coreID)

	if a.Kind == mem.Store {
		data := a.Data
		if data == nil {
			data = make([]byte, a.Size)
		}

		b = b.WithData(data)
	}

	return b.Build()
}

func (c *Comp) countIssue(req *mem.AccessReq, now sim.VTimeInCycle) {
	if c.stats.Issued == 0 {
		c.stats.FirstIssue = now
	}

	c.stats.Issued++

	switch req.Kind {
	case mem.Fetch:
		c.stats.Fetches++
	case mem.Load:
		c.stats.Loads++
	case mem.Store:
		c.stats.Stores++
	}
}

func (c *Comp) countCompletion(done Completion) {
	c.stats.Completed++
	c.stats.LastCompletion = done.CompleteTime

	if done.Rsp.Fault != nil {
		c.stats.Faults++
	}

	latency := uint64(done.Latency())
	c.stats.TotalLatency += latency

	if latency > c.stats.MaxLatency {
		c.stats.MaxLatency = latency
	}
}
