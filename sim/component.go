package sim

import (
	"fmt"
	"os"
)

// A Named object is an object that has a name.
type Named interface {
	Name() string
}

// A Component is a element that is being simulated.
type Component interface {
	Named
	Handler
	Hookable

	Ports() []Port
	GetPortByName(name string) Port

	// Recv is called when a message arrives at one of the component's ports.
	// Returning an error rejects the message; the sender keeps it.
	Recv(msg Msg, port Port) error

	// NotifyPortFree is called when a destination that rejected a message
	// sent through port may accept messages again.
	NotifyPortFree(port Port)
}

// ComponentBase provides some functions that other component can use.
type ComponentBase struct {
	HookableBase

	name      string
	ports     map[string]Port
	portOrder []string
}

// NewComponentBase creates a new ComponentBase
func NewComponentBase(name string) *ComponentBase {
	c := new(ComponentBase)
	c.name = name
	c.ports = make(map[string]Port)

	return c
}

// Name returns the name of the BasicComponent
func (c *ComponentBase) Name() string {
	return c.name
}

// AddPort registers a port with a local name.
func (c *ComponentBase) AddPort(name string, port Port) {
	if _, found := c.ports[name]; found {
		panic("port " + name + " already added to " + c.name)
	}

	c.ports[name] = port
	c.portOrder = append(c.portOrder, name)
}

// GetPortByName returns the port by the name of the port.
func (c *ComponentBase) GetPortByName(name string) Port {
	port, found := c.ports[name]
	if !found {
		errMsg := fmt.Sprintf(
			"Port %s is not available on component %s.\n", name, c.name)
		errMsg += "Available ports include:\n"

		for _, n := range c.portOrder {
			errMsg += fmt.Sprintf("\t%s\n", n)
		}

		fmt.Fprint(os.Stderr, errMsg)

		panic("port not found")
	}

	return port
}

// Ports returns all the ports in the order they are added.
func (c *ComponentBase) Ports() []Port {
	ports := make([]Port, 0, len(c.portOrder))
	for _, n := range c.portOrder {
		ports = append(ports, c.ports[n])
	}

	return ports
}
