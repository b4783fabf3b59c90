package status

import (
	"context"

	"google.golang.org/grpc/connectivity"
)

// Conn is the part of *grpc.ClientConn that Watch observes.
type Conn interface {
	GetState() connectivity.State
	WaitForStateChange(ctx context.Context, source connectivity.State) bool
	Connect()
}

// Watch drives m from conn's connectivity until ctx is done.
func (m *Machine) Watch(ctx context.Context, conn Conn) {
	conn.Connect()
	state := conn.GetState()
	for {
		m.follow(state, conn)
		if !conn.WaitForStateChange(ctx, state) {
			return
		}
		state = conn.GetState()
	}
}

func (m *Machine) follow(state connectivity.State, conn Conn) {
	switch state {
	case connectivity.Ready:
		m.Move(Online)
	case connectivity.Connecting:
		if m.Current() == Offline {
			m.Move(Connecting)
		}
	case connectivity.TransientFailure, connectivity.Shutdown:
		m.Move(Offline)
	case connectivity.Idle:
		// A dropped connection parks the channel in Idle until asked to
		// reconnect.
		m.Move(Offline)
		conn.Connect()
	}
}
