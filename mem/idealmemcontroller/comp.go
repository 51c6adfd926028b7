// Package idealmemcontroller provides a memory controller that answers every
// request after a fixed latency.
package idealmemcontroller

import (
	"log"
	"reflect"

	"github.com/sarchlab/memhier/mem"
	"github.com/sarchlab/memhier/sim"
)

type readRespondEvent struct {
	*sim.EventBase
	req *mem.AccessReq
}

func newReadRespondEvent(time sim.VTimeInCycle, handler sim.Handler,
	req *mem.AccessReq,
) *readRespondEvent {
	return &readRespondEvent{sim.NewEventBase(time, handler), req}
}

type writeRespondEvent struct {
	*sim.EventBase
	req *mem.AccessReq
}

func newWriteRespondEvent(time sim.VTimeInCycle, handler sim.Handler,
	req *mem.AccessReq,
) *writeRespondEvent {
	return &writeRespondEvent{sim.NewEventBase(time, handler), req}
}

type retryEvent struct {
	*sim.EventBase
}

// Statistics counts the accesses served by the controller.
type Statistics struct {
	Reads  uint64 `json:"reads"`
	Writes uint64 `json:"writes"`
	Faults uint64 `json:"faults"`
}

// An Comp is an ideal memory controller that can perform read and write
// Ideal memory controller always respond to the request in a fixed number of
// cycles. There is no limitation on the concurrency of this unit.
type Comp struct {
	*sim.ComponentBase

	engine  sim.Engine
	topPort sim.Port
	Storage *mem.Storage
	Latency sim.VTimeInCycle

	pendingRsps []*mem.AccessRsp
	blocked     bool

	stats Statistics
}

// TopPort returns the port that receives requests.
func (c *Comp) TopPort() sim.Port {
	return c.topPort
}

// Stats returns a copy of the statistics collected so far.
func (c *Comp) Stats() Statistics {
	return c.stats
}

// Recv accepts every request and answers it after the latency.
func (c *Comp) Recv(msg sim.Msg, port sim.Port) error {
	if port != c.topPort {
		log.Panicf("memory controller %s does not own port %s",
			c.Name(), port.Name())
	}

	req, ok := msg.(*mem.AccessReq)
	if !ok {
		log.Panicf("cannot handle message of %s", reflect.TypeOf(msg))
	}

	respondTime := c.engine.CurrentTime() + c.Latency

	if req.Kind.IsWrite() {
		c.engine.Schedule(newWriteRespondEvent(respondTime, c, req))
	} else {
		c.engine.Schedule(newReadRespondEvent(respondTime, c, req))
	}

	return nil
}

// NotifyPortFree resumes sending responses that were rejected.
func (c *Comp) NotifyPortFree(_ sim.Port) {
	c.blocked = false
	c.engine.Schedule(&retryEvent{
		sim.NewEventBase(c.engine.CurrentTime(), c),
	})
}

// Handle defines how the Comp handles event
func (c *Comp) Handle(e sim.Event) error {
	switch e := e.(type) {
	case *readRespondEvent:
		c.handleReadRespondEvent(e)
	case *writeRespondEvent:
		c.handleWriteRespondEvent(e)
	case *retryEvent:
		c.sendPending()
	default:
		log.Panicf("cannot handle event of %s", reflect.TypeOf(e))
	}

	return nil
}

func (c *Comp) handleReadRespondEvent(e *readRespondEvent) {
	req := e.req
	b := mem.AccessRspBuilder{}.
		WithSrc(c.topPort.AsRemote()).
		WithDst(req.Src).
		WithRspTo(req.ID)

	c.stats.Reads++

	data, err := c.Storage.Read(req.Address, req.ByteSize)
	if err != nil {
		c.stats.Faults++
		b = b.WithFault(err)
	} else {
		b = b.WithData(data)
	}

	c.respond(b.Build())
}

func (c *Comp) handleWriteRespondEvent(e *writeRespondEvent) {
	req := e.req
	b := mem.AccessRspBuilder{}.
		WithSrc(c.topPort.AsRemote()).
		WithDst(req.Src).
		WithRspTo(req.ID)

	c.stats.Writes++

	if err := c.Storage.Write(req.Address, req.Data); err != nil {
		c.stats.Faults++
		b = b.WithFault(err)
	}

	c.respond(b.Build())
}

func (c *Comp) respond(rsp *mem.AccessRsp) {
	c.pendingRsps = append(c.pendingRsps, rsp)
	c.sendPending()
}

func (c *Comp) sendPending() {
	for len(c.pendingRsps) > 0 && !c.blocked {
		if err := c.topPort.Send(c.pendingRsps[0]); err != nil {
			c.blocked = true
			return
		}

		c.pendingRsps = c.pendingRsps[1:]
	}
}
