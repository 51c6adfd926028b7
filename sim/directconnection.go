package sim

import (
	"fmt"
	"slices"
)

// DirectConnection connects ports without latency. Any number of ports can be
// plugged in; messages are routed by their destination.
type DirectConnection struct {
	HookableBase

	name    string
	ports   map[RemotePort]Port
	waiting map[RemotePort][]Port
}

// NewDirectConnection creates a new DirectConnection object
func NewDirectConnection(name string) *DirectConnection {
	return &DirectConnection{
		name:    name,
		ports:   make(map[RemotePort]Port),
		waiting: make(map[RemotePort][]Port),
	}
}

// Name returns the name of the connection.
func (c *DirectConnection) Name() string {
	return c.name
}

// Ports returns the ports plugged into the connection, sorted by name.
func (c *DirectConnection) Ports() []RemotePort {
	ports := make([]RemotePort, 0, len(c.ports))
	for p := range c.ports {
		ports = append(ports, p)
	}

	slices.Sort(ports)

	return ports
}

// PlugIn marks the port connects to this DirectConnection.
func (c *DirectConnection) PlugIn(port Port) {
	if _, found := c.ports[port.AsRemote()]; found {
		panic(fmt.Sprintf("port %s already plugged into %s",
			port.Name(), c.name))
	}

	c.ports[port.AsRemote()] = port
	port.SetConnection(c)
}

// Send delivers the message to its destination right away. If the
// destination rejects it, the source port is remembered and notified once
// the destination announces that it is available again.
func (c *DirectConnection) Send(src Port, msg Msg) error {
	dst, found := c.ports[msg.Meta().Dst]
	if !found {
		panic(fmt.Sprintf("destination %s is not connected to %s",
			msg.Meta().Dst, c.name))
	}

	if dst == src {
		panic("sending back to src")
	}

	if err := dst.Deliver(msg); err != nil {
		c.addWaiter(dst.AsRemote(), src)
		return err
	}

	if c.NumHooks() > 0 {
		c.InvokeHook(HookCtx{
			Domain: c,
			Pos:    HookPosConnDeliver,
			Item:   msg,
		})
	}

	return nil
}

func (c *DirectConnection) addWaiter(dst RemotePort, src Port) {
	if slices.Contains(c.waiting[dst], src) {
		return
	}

	c.waiting[dst] = append(c.waiting[dst], src)
}

// NotifyAvailable wakes up all the ports that failed to send to port, in the
// order they were rejected.
func (c *DirectConnection) NotifyAvailable(port Port) {
	waiters := c.waiting[port.AsRemote()]
	if len(waiters) == 0 {
		return
	}

	delete(c.waiting, port.AsRemote())

	for _, w := range waiters {
		w.NotifyAvailable()
	}
}
