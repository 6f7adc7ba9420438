package params

import "net"

// ListenerConfig says where a daemon serves HTTP.
type ListenerConfig struct {
	// Network is "tcp", "tcp4", "tcp6", "unix" or "unixpacket".
	Network string
	// Address is the listen address, e.g. "localhost:8075".
	Address string
}

func (l ListenerConfig) Listen() (net.Listener, error) {
	return net.Listen(l.Network, l.Address)
}
