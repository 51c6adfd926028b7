package sim

// A Connection is responsible for delivering messages to its destination.
type Connection interface {
	Named
	Hookable

	PlugIn(port Port)
	Send(src Port, msg Msg) error

	// NotifyAvailable is called by a port whose owner can accept messages
	// again. The connection wakes up the senders it rejected.
	NotifyAvailable(port Port)
}

// HookPosConnDeliver marks a connection delivered a message.
var HookPosConnDeliver = &HookPos{Name: "Conn Deliver"}
