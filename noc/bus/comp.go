// Package bus provides a shared bus that connects several requesters to a
// lower-level component.
package bus

import (
	"fmt"
	"log"
	"reflect"

	"github.com/sarchlab/memhier/mem"
	"github.com/sarchlab/memhier/noc/arbitration"
	"github.com/sarchlab/memhier/sim"
)

// HookPosTransfer marks that a request has been handed to the lower level.
// The hook item is the request and the detail is the lane index.
var HookPosTransfer = &sim.HookPos{Name: "Bus Transfer"}

// Statistics counts the traffic on the bus.
type Statistics struct {
	Transfers uint64 `json:"transfers"`
	Responses uint64 `json:"responses"`
	Stalls    uint64 `json:"stalls"`
}

type transfer struct {
	req     *mem.AccessReq
	cpuPort sim.Port
}

type route struct {
	cpuPort sim.Port
	src     sim.RemotePort
}

type lane struct {
	index    int
	port     sim.Port
	transfer *transfer
	waiting  bool
}

type arbitrateEvent struct {
	*sim.EventBase
}

type deliverEvent struct {
	*sim.EventBase
	lane *lane
}

type rspEvent struct {
	*sim.EventBase
	rsp     *mem.AccessRsp
	cpuPort sim.Port
}

type rspRetryEvent struct {
	*sim.EventBase
	cpuPort sim.Port
}

// Comp is a bus. Requests that arrive on the cpu-side ports wait in one
// buffer per port. In each cycle, at most one arbitration grants up to one
// buffer per free lane. A lane is a mem-side port that carries one transfer
// at a time.
type Comp struct {
	*sim.ComponentBase

	engine    sim.Engine
	latency   sim.VTimeInCycle
	lowModule sim.RemotePort

	cpuPorts    []sim.Port
	buffers     map[sim.Port]sim.Buffer
	cpuBlocked  map[sim.Port]bool
	rspQueues   map[sim.Port][]*mem.AccessRsp
	rspBlocked  map[sim.Port]bool
	lanes       []*lane
	lanesByPort map[sim.Port]*lane
	arbiter     arbitration.Arbiter
	routes      map[string]route

	arbitrationPending bool
	hasArbitrated      bool
	lastArbitration    sim.VTimeInCycle

	stats Statistics
}

// CPUPorts returns the ports that face the requesters.
func (c *Comp) CPUPorts() []sim.Port {
	return c.cpuPorts
}

// MemPorts returns the lanes that face the lower level.
func (c *Comp) MemPorts() []sim.Port {
	ports := make([]sim.Port, 0, len(c.lanes))
	for _, l := range c.lanes {
		ports = append(ports, l.port)
	}

	return ports
}

// Buffers returns the request buffers of the cpu-side ports.
func (c *Comp) Buffers() []sim.Buffer {
	bufs := make([]sim.Buffer, 0, len(c.cpuPorts))
	for _, p := range c.cpuPorts {
		bufs = append(bufs, c.buffers[p])
	}

	return bufs
}

// SetLowModule sets the port that all requests are sent to.
func (c *Comp) SetLowModule(port sim.RemotePort) {
	c.lowModule = port
}

// Stats returns a copy of the statistics collected so far.
func (c *Comp) Stats() Statistics {
	return c.stats
}

// Recv takes requests on the cpu-side ports and responses on the lanes. A
// request that finds its buffer full is rejected with an error wrapping
// sim.ErrPortBusy.
func (c *Comp) Recv(msg sim.Msg, port sim.Port) error {
	if l, found := c.lanesByPort[port]; found {
		rsp, ok := msg.(*mem.AccessRsp)
		if !ok {
			log.Panicf("bus %s cannot handle %s from lane %d",
				c.Name(), reflect.TypeOf(msg), l.index)
		}

		c.recvRsp(rsp)

		return nil
	}

	buf, found := c.buffers[port]
	if !found {
		log.Panicf("bus %s does not own port %s", c.Name(), port.Name())
	}

	req, ok := msg.(*mem.AccessReq)
	if !ok {
		log.Panicf("bus %s cannot handle %s", c.Name(), reflect.TypeOf(msg))
	}

	if !buf.CanPush() {
		c.stats.Stalls++
		c.cpuBlocked[port] = true

		return fmt.Errorf("%w: bus %s buffer for %s is full",
			sim.ErrPortBusy, c.Name(), port.Name())
	}

	buf.Push(&transfer{req: req, cpuPort: port})
	c.scheduleArbitration()

	return nil
}

// NotifyPortFree resumes a lane or a response queue whose destination
// rejected a message before.
func (c *Comp) NotifyPortFree(port sim.Port) {
	now := c.engine.CurrentTime()

	if l, found := c.lanesByPort[port]; found {
		l.waiting = false
		c.engine.Schedule(&deliverEvent{
			EventBase: sim.NewEventBase(now, c),
			lane:      l,
		})

		return
	}

	c.rspBlocked[port] = false
	c.engine.Schedule(&rspRetryEvent{
		EventBase: sim.NewEventBase(now, c),
		cpuPort:   port,
	})
}

// Handle processes the events scheduled by the bus.
func (c *Comp) Handle(e sim.Event) error {
	switch e := e.(type) {
	case *arbitrateEvent:
		c.arbitrate()
	case *deliverEvent:
		c.deliver(e.lane)
	case *rspEvent:
		c.rspQueues[e.cpuPort] = append(c.rspQueues[e.cpuPort], e.rsp)
		c.sendRsps(e.cpuPort)
	case *rspRetryEvent:
		c.sendRsps(e.cpuPort)
	default:
		log.Panicf("bus %s cannot handle event %s",
			c.Name(), reflect.TypeOf(e))
	}

	return nil
}

func (c *Comp) scheduleArbitration() {
	if c.arbitrationPending {
		return
	}

	t := c.engine.CurrentTime()
	if c.hasArbitrated && c.lastArbitration >= t {
		t = c.lastArbitration + 1
	}

	c.arbitrationPending = true
	c.engine.Schedule(&arbitrateEvent{
		EventBase: sim.NewEventBase(t, c),
	})
}

func (c *Comp) freeLanes() []*lane {
	var free []*lane

	for _, l := range c.lanes {
		if l.transfer == nil {
			free = append(free, l)
		}
	}

	return free
}

func (c *Comp) arbitrate() {
	now := c.engine.CurrentTime()
	c.arbitrationPending = false
	c.hasArbitrated = true
	c.lastArbitration = now

	free := c.freeLanes()
	winners := c.arbiter.Arbitrate(len(free))

	for i, buf := range winners {
		t := buf.Pop().(*transfer)
		l := free[i]
		l.transfer = t

		c.engine.Schedule(&deliverEvent{
			EventBase: sim.NewEventBase(now+c.latency, c),
			lane:      l,
		})

		if c.cpuBlocked[t.cpuPort] {
			c.cpuBlocked[t.cpuPort] = false
			t.cpuPort.AnnounceAvailable()
		}
	}

	if len(winners) > 0 && c.hasQueuedReqs() {
		c.scheduleArbitration()
	}
}

func (c *Comp) hasQueuedReqs() bool {
	for _, p := range c.cpuPorts {
		if c.buffers[p].Size() > 0 {
			return true
		}
	}

	return false
}

func (c *Comp) deliver(l *lane) {
	t := l.transfer
	if t == nil || l.waiting {
		return
	}

	req := t.req
	if _, found := c.routes[req.ID]; !found {
		c.routes[req.ID] = route{cpuPort: t.cpuPort, src: req.Src}
		req.Src = l.port.AsRemote()
		req.Dst = c.lowModule
	}

	if err := l.port.Send(req); err != nil {
		c.stats.Stalls++
		l.waiting = true

		return
	}

	c.stats.Transfers++
	l.transfer = nil

	if c.NumHooks() > 0 {
		c.InvokeHook(sim.HookCtx{
			Domain: c,
			Pos:    HookPosTransfer,
			Item:   req,
			Detail: l.index,
		})
	}

	if c.hasQueuedReqs() {
		c.scheduleArbitration()
	}
}

func (c *Comp) recvRsp(rsp *mem.AccessRsp) {
	r, found := c.routes[rsp.RespondTo]
	if !found {
		log.Panicf("bus %s: response to unknown request %s",
			c.Name(), rsp.RespondTo)
	}

	delete(c.routes, rsp.RespondTo)

	rsp.Src = r.cpuPort.AsRemote()
	rsp.Dst = r.src

	c.engine.Schedule(&rspEvent{
		EventBase: sim.NewEventBase(c.engine.CurrentTime()+c.latency, c),
		rsp:       rsp,
		cpuPort:   r.cpuPort,
	})
}

func (c *Comp) sendRsps(port sim.Port) {
	queue := c.rspQueues[port]

	for len(queue) > 0 && !c.rspBlocked[port] {
		if err := port.Send(queue[0]); err != nil {
			c.rspBlocked[port] = true
			break
		}

		c.stats.Responses++
		queue = queue[1:]
	}

	c.rspQueues[port] = queue
}
