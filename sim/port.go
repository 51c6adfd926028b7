package sim

import (
	"errors"
	"fmt"
)

// ErrPortBusy is returned when a message cannot be accepted right now. The
// sender should keep the message and retry after NotifyPortFree.
var ErrPortBusy = errors.New("port busy")

// HookPosPortMsgSend marks when a message is sent out from the port.
var HookPosPortMsgSend = &HookPos{Name: "Port Msg Send"}

// HookPosPortMsgRecvd marks when an inbound message is accepted by the owner
// of the port.
var HookPosPortMsgRecvd = &HookPos{Name: "Port Msg Recv"}

// A RemotePort is a string that refers to another port.
type RemotePort string

// A Port is owned by a component and is used to plugin connections
type Port interface {
	Named
	Hookable

	AsRemote() RemotePort
	SetConnection(conn Connection)
	Component() Component

	// For component
	Send(msg Msg) error
	AnnounceAvailable()

	// For connection
	Deliver(msg Msg) error
	NotifyAvailable()
}

type defaultPort struct {
	HookableBase

	name string
	comp Component
	conn Connection
}

// NewPort creates a port owned by comp.
func NewPort(comp Component, name string) Port {
	return &defaultPort{
		name: name,
		comp: comp,
	}
}

// AsRemote returns the remote port name.
func (p *defaultPort) AsRemote() RemotePort {
	return RemotePort(p.name)
}

// SetConnection sets which connection plugged in to this port.
func (p *defaultPort) SetConnection(conn Connection) {
	if p.conn != nil {
		panic(fmt.Sprintf(
			"connection already set to %s, now connecting to %s",
			p.conn.Name(), conn.Name(),
		))
	}

	p.conn = conn
}

// Component returns the owner component of the port.
func (p *defaultPort) Component() Component {
	return p.comp
}

// Name returns the name of the port.
func (p *defaultPort) Name() string {
	return p.name
}

// Send passes a message to the connection. A non-nil error means the
// receiver did not take the message.
func (p *defaultPort) Send(msg Msg) error {
	p.msgMustBeValid(msg)

	if err := p.conn.Send(p, msg); err != nil {
		return err
	}

	if p.NumHooks() > 0 {
		p.InvokeHook(HookCtx{
			Domain: p,
			Pos:    HookPosPortMsgSend,
			Item:   msg,
		})
	}

	return nil
}

// Deliver hands a message to the owner component.
func (p *defaultPort) Deliver(msg Msg) error {
	if err := p.comp.Recv(msg, p); err != nil {
		return err
	}

	if p.NumHooks() > 0 {
		p.InvokeHook(HookCtx{
			Domain: p,
			Pos:    HookPosPortMsgRecvd,
			Item:   msg,
		})
	}

	return nil
}

// AnnounceAvailable tells the connection that the owner can accept messages
// that it rejected earlier.
func (p *defaultPort) AnnounceAvailable() {
	if p.conn == nil {
		return
	}

	p.conn.NotifyAvailable(p)
}

// NotifyAvailable is called by the connection when a destination that
// rejected a message from this port becomes available again.
func (p *defaultPort) NotifyAvailable() {
	p.comp.NotifyPortFree(p)
}

func (p *defaultPort) msgMustBeValid(msg Msg) {
	if p.conn == nil {
		panic("port " + p.name + " is not connected")
	}

	if msg.Meta().Src != p.AsRemote() {
		panic(fmt.Sprintf("sending message from %s through port %s",
			msg.Meta().Src, p.name))
	}

	if msg.Meta().Dst == "" {
		panic("destination of the message is not given")
	}
}
