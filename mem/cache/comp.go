// Package cache provides a set-associative, write-back, write-allocate cache
// with non-blocking misses.
package cache

import (
	"fmt"
	"log"

	"github.com/sarchlab/memhier/mem"
	"github.com/sarchlab/memhier/mem/cache/internal/mshr"
	"github.com/sarchlab/memhier/mem/cache/internal/tagging"
	"github.com/sarchlab/memhier/sim"
)

// HookPosAccessOutcome marks that the cache has decided what to do with an
// incoming request. The hook item is the request and the detail is an
// Outcome.
var HookPosAccessOutcome = &sim.HookPos{Name: "Cache Access Outcome"}

// Outcome is what happened to a request when it arrived at the cache.
type Outcome int

// Possible outcomes of an access.
const (
	OutcomeHit Outcome = iota
	OutcomeMiss
	OutcomeCoalesced
	OutcomeRejected
)

func (o Outcome) String() string {
	switch o {
	case OutcomeHit:
		return "hit"
	case OutcomeMiss:
		return "miss"
	case OutcomeCoalesced:
		return "coalesced"
	case OutcomeRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Statistics counts what the cache has done.
type Statistics struct {
	Reads      uint64 `json:"reads"`
	Writes     uint64 `json:"writes"`
	Hits       uint64 `json:"hits"`
	Misses     uint64 `json:"misses"`
	Coalesced  uint64 `json:"coalesced"`
	Rejected   uint64 `json:"rejected"`
	Evictions  uint64 `json:"evictions"`
	Writebacks uint64 `json:"writebacks"`
	Faults     uint64 `json:"faults"`
}

// HitRate returns hits over accepted accesses.
func (s Statistics) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}

	return float64(s.Hits) / float64(total)
}

type respondEvent struct {
	*sim.EventBase
	rsp *mem.AccessRsp
}

type forwardEvent struct {
	*sim.EventBase
	req *mem.AccessReq
}

type drainEvent struct {
	*sim.EventBase
	queue *sendQueue
}

type sendQueue struct {
	port    sim.Port
	msgs    []sim.Msg
	blocked bool
}

// A Comp implements a cache.
type Comp struct {
	*sim.ComponentBase

	engine        sim.Engine
	role          Role
	config        Config
	lookupLatency sim.VTimeInCycle

	topPort    sim.Port
	bottomPort sim.Port
	lowModule  sim.RemotePort

	tags         tagging.TagArray
	victimFinder tagging.VictimFinder
	mshr         mshr.MSHR
	storage      *mem.Storage

	topQueue     sendQueue
	bottomQueue  sendQueue
	inflightDown map[string]*mem.AccessReq
	topBlocked   bool

	stats Statistics
}

// TopPort returns the port that faces the requesters.
func (c *Comp) TopPort() sim.Port {
	return c.topPort
}

// BottomPort returns the port that faces the lower level.
func (c *Comp) BottomPort() sim.Port {
	return c.bottomPort
}

// SetLowModule sets the port that misses and writebacks are sent to.
func (c *Comp) SetLowModule(port sim.RemotePort) {
	c.lowModule = port
}

// Role returns where the cache sits in the hierarchy.
func (c *Comp) Role() Role {
	return c.role
}

// Config returns the parameters that the cache is built with.
func (c *Comp) Config() Config {
	return c.config
}

// Stats returns a copy of the statistics collected so far.
func (c *Comp) Stats() Statistics {
	return c.stats
}

// Recv is called when a message arrives at the top or the bottom port.
// Requests that cannot be taken are rejected with an error wrapping
// mem.ErrResourceExhausted; the cache announces on the top port when it can
// take requests again.
func (c *Comp) Recv(msg sim.Msg, port sim.Port) error {
	switch port {
	case c.topPort:
		req, ok := msg.(*mem.AccessReq)
		if !ok {
			log.Panicf("cache %s cannot handle %T from top", c.Name(), msg)
		}

		return c.access(req)
	case c.bottomPort:
		rsp, ok := msg.(*mem.AccessRsp)
		if !ok {
			log.Panicf("cache %s cannot handle %T from bottom", c.Name(), msg)
		}

		c.handleRspFromBottom(rsp)

		return nil
	default:
		log.Panicf("cache %s does not own port %s", c.Name(), port.Name())
	}

	return nil
}

// NotifyPortFree resumes sending through a port whose destination rejected
// a message before.
func (c *Comp) NotifyPortFree(port sim.Port) {
	var q *sendQueue

	switch port {
	case c.topPort:
		q = &c.topQueue
	case c.bottomPort:
		q = &c.bottomQueue
	default:
		log.Panicf("cache %s does not own port %s", c.Name(), port.Name())
	}

	q.blocked = false
	c.engine.Schedule(&drainEvent{
		EventBase: sim.NewEventBase(c.engine.CurrentTime(), c),
		queue:     q,
	})
}

// Handle processes the events scheduled by the cache.
func (c *Comp) Handle(e sim.Event) error {
	switch e := e.(type) {
	case *respondEvent:
		c.send(&c.topQueue, e.rsp)
	case *forwardEvent:
		c.send(&c.bottomQueue, e.req)
	case *drainEvent:
		c.drain(e.queue)
	default:
		log.Panicf("cache %s cannot handle event %T", c.Name(), e)
	}

	return nil
}

func (c *Comp) lineAddr(addr uint64) (lineAddr, offset uint64) {
	blockSize := uint64(c.config.BlockSize)
	lineAddr = addr &^ (blockSize - 1)
	offset = addr - lineAddr

	return
}

func (c *Comp) access(req *mem.AccessReq) error {
	lineAddr, offset := c.lineAddr(req.Address)
	if offset+req.ByteSize > uint64(c.config.BlockSize) {
		c.refuse(req, fmt.Errorf("%w: [0x%x, +%d) in %d-byte lines",
			mem.ErrCrossesLine, req.Address, req.ByteSize,
			c.config.BlockSize))

		return nil
	}

	if block, hit := c.tags.Lookup(lineAddr); hit {
		c.hit(req, block, offset)
		return nil
	}

	if _, found := c.mshr.Lookup(lineAddr); found {
		return c.coalesce(req, lineAddr)
	}

	if req.Kind == mem.Writeback {
		c.writeAround(req)
		return nil
	}

	return c.allocate(req, lineAddr)
}

func (c *Comp) hit(req *mem.AccessReq, block tagging.Block, offset uint64) {
	c.countAccess(req)
	c.stats.Hits++

	rsp := c.rspBuilder(req)

	if req.Kind.IsWrite() {
		c.writeBlock(block, offset, req.Data)
		block.IsDirty = true
		c.tags.Update(block)
	} else {
		rsp = rsp.WithData(c.readBlock(block, offset, req.ByteSize))
	}

	c.tags.Visit(block)
	c.traceOutcome(req, OutcomeHit)
	c.scheduleRespond(rsp.Build())
}

// refuse answers req with a fault without touching the tags.
func (c *Comp) refuse(req *mem.AccessReq, fault error) {
	c.countAccess(req)
	c.stats.Faults++

	c.scheduleRespond(c.rspBuilder(req).WithFault(fault).Build())
}

func (c *Comp) coalesce(req *mem.AccessReq, lineAddr uint64) error {
	if err := c.mshr.AddReqToEntry(req, lineAddr); err != nil {
		c.reject(req)
		return err
	}

	c.countAccess(req)
	c.stats.Misses++
	c.stats.Coalesced++
	c.traceOutcome(req, OutcomeCoalesced)

	return nil
}

func (c *Comp) allocate(req *mem.AccessReq, lineAddr uint64) error {
	entry, err := c.mshr.AddEntry(lineAddr)
	if err != nil {
		c.reject(req)
		return err
	}

	if err := c.mshr.AddReqToEntry(req, lineAddr); err != nil {
		log.Panicf("cache %s: cannot add request to new entry: %v",
			c.Name(), err)
	}

	c.countAccess(req)
	c.stats.Misses++

	entry.FillReq = mem.AccessReqBuilder{}.
		WithSrc(c.bottomPort.AsRemote()).
		WithDst(c.lowModule).
		WithKind(mem.Fill).
		WithAddress(lineAddr).
		WithByteSize(uint64(c.config.BlockSize)).
		WithCoreID(req.CoreID).
		Build()

	c.traceOutcome(req, OutcomeMiss)
	c.scheduleForward(entry.FillReq)

	return nil
}

// writeAround passes a writeback that misses down without allocating a line.
func (c *Comp) writeAround(req *mem.AccessReq) {
	c.countAccess(req)
	c.stats.Misses++

	wb := mem.AccessReqBuilder{}.
		WithSrc(c.bottomPort.AsRemote()).
		WithDst(c.lowModule).
		WithKind(mem.Writeback).
		WithAddress(req.Address).
		WithData(req.Data).
		WithCoreID(req.CoreID).
		Build()

	c.traceOutcome(req, OutcomeMiss)
	c.scheduleForward(wb)
	c.scheduleRespond(c.rspBuilder(req).Build())
}

func (c *Comp) reject(req *mem.AccessReq) {
	c.stats.Rejected++
	c.topBlocked = true
	c.traceOutcome(req, OutcomeRejected)
}

func (c *Comp) handleRspFromBottom(rsp *mem.AccessRsp) {
	req, found := c.inflightDown[rsp.RespondTo]
	if !found {
		log.Panicf("cache %s: response to unknown request %s",
			c.Name(), rsp.RespondTo)
	}

	delete(c.inflightDown, rsp.RespondTo)

	switch req.Kind {
	case mem.Fill:
		c.finalizeFill(req, rsp)
	case mem.Writeback:
		if rsp.Fault != nil {
			c.stats.Faults++
		}
	default:
		log.Panicf("cache %s: unexpected %s sent down", c.Name(), req.Kind)
	}
}

func (c *Comp) finalizeFill(fill *mem.AccessReq, rsp *mem.AccessRsp) {
	entry, err := c.mshr.RemoveEntry(fill.Address)
	if err != nil {
		log.Panicf("cache %s: fill 0x%x: %v", c.Name(), fill.Address, err)
	}

	defer c.announceIfBlocked()

	if rsp.Fault != nil {
		c.stats.Faults++

		for _, req := range entry.Requests {
			c.send(&c.topQueue, c.rspBuilder(req).WithFault(rsp.Fault).Build())
		}

		return
	}

	victim := c.victimFinder.FindVictim(c.tags, fill.Address)
	if victim.IsValid {
		c.evict(victim)
	}

	victim.Tag = fill.Address
	victim.IsValid = true
	victim.IsDirty = false
	c.writeBlock(victim, 0, rsp.Data)

	for _, req := range entry.Requests {
		offset := req.Address - fill.Address
		b := c.rspBuilder(req)

		if req.Kind.IsWrite() {
			c.writeBlock(victim, offset, req.Data)
			victim.IsDirty = true
		} else {
			b = b.WithData(c.readBlock(victim, offset, req.ByteSize))
		}

		c.send(&c.topQueue, b.Build())
	}

	c.tags.Update(victim)
	c.tags.Visit(victim)
}

func (c *Comp) evict(victim tagging.Block) {
	c.stats.Evictions++

	if !victim.IsDirty {
		return
	}

	c.stats.Writebacks++

	wb := mem.AccessReqBuilder{}.
		WithSrc(c.bottomPort.AsRemote()).
		WithDst(c.lowModule).
		WithKind(mem.Writeback).
		WithAddress(victim.Tag).
		WithData(c.readBlock(victim, 0, uint64(c.config.BlockSize))).
		Build()

	c.send(&c.bottomQueue, wb)
}

func (c *Comp) announceIfBlocked() {
	if !c.topBlocked {
		return
	}

	c.topBlocked = false
	c.topPort.AnnounceAvailable()
}

func (c *Comp) countAccess(req *mem.AccessReq) {
	if req.Kind.IsWrite() {
		c.stats.Writes++
	} else {
		c.stats.Reads++
	}
}

func (c *Comp) rspBuilder(req *mem.AccessReq) mem.AccessRspBuilder {
	return mem.AccessRspBuilder{}.
		WithSrc(c.topPort.AsRemote()).
		WithDst(req.Src).
		WithRspTo(req.ID)
}

func (c *Comp) readBlock(block tagging.Block, offset, size uint64) []byte {
	data, err := c.storage.Read(block.CacheAddress+offset, size)
	if err != nil {
		log.Panicf("cache %s: %v", c.Name(), err)
	}

	return data
}

func (c *Comp) writeBlock(block tagging.Block, offset uint64, data []byte) {
	if err := c.storage.Write(block.CacheAddress+offset, data); err != nil {
		log.Panicf("cache %s: %v", c.Name(), err)
	}
}

func (c *Comp) scheduleRespond(rsp *mem.AccessRsp) {
	c.engine.Schedule(&respondEvent{
		EventBase: sim.NewEventBase(
			c.engine.CurrentTime()+c.lookupLatency, c),
		rsp: rsp,
	})
}

func (c *Comp) scheduleForward(req *mem.AccessReq) {
	c.engine.Schedule(&forwardEvent{
		EventBase: sim.NewEventBase(
			c.engine.CurrentTime()+c.lookupLatency, c),
		req: req,
	})
}

func (c *Comp) send(q *sendQueue, msg sim.Msg) {
	if req, ok := msg.(*mem.AccessReq); ok {
		c.inflightDown[req.ID] = req
	}

	q.msgs = append(q.msgs, msg)
	c.drain(q)
}

func (c *Comp) drain(q *sendQueue) {
	for len(q.msgs) > 0 && !q.blocked {
		msg := q.msgs[0]
		if err := q.port.Send(msg); err != nil {
			q.blocked = true
			return
		}

		q.msgs[0] = nil
		q.msgs = q.msgs[1:]

		if req, ok := msg.(*mem.AccessReq); ok && req.Kind == mem.Fill {
			if entry, found := c.mshr.Lookup(req.Address); found {
				entry.State = mshr.EntryIssued
			}
		}
	}
}

func (c *Comp) traceOutcome(req *mem.AccessReq, outcome Outcome) {
	if c.NumHooks() == 0 {
		return
	}

	c.InvokeHook(sim.HookCtx{
		Domain: c,
		Pos:    HookPosAccessOutcome,
		Item:   req,
		Detail: outcome,
	})
}
