package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"

	"github.com/matheus3301/duochat/internal/api"
	"github.com/matheus3301/duochat/internal/rtdb"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

// Server manages the gRPC server lifecycle for duochatd.
type Server struct {
	grpcServer *grpc.Server
	listeners  []net.Listener
	socketPath string
	logger     *zap.Logger
}

// NewServer creates a gRPC server bound to the daemon's Unix domain socket
// and, when p.Listen is set, a TCP address.
func NewServer(
	p Params,
	logger *zap.Logger,
	databaseSvc *api.DatabaseService,
	statusSvc *api.StatusService,
) (*Server, error) {
	socketPath := p.SocketPath

	// Clean stale socket if it exists. The data dir lock guarantees no
	// other daemon is serving it.
	if _, err := os.Stat(socketPath); err == nil {
		_ = os.Remove(socketPath)
	}

	unixListener, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("listen unix socket: %w", err)
	}

	// Set socket permissions to 0600.
	if err := os.Chmod(socketPath, 0600); err != nil {
		_ = unixListener.Close()
		return nil, fmt.Errorf("chmod socket: %w", err)
	}
	listeners := []net.Listener{unixListener}

	if p.Listen != "" {
		tcpListener, err := net.Listen("tcp", p.Listen)
		if err != nil {
			_ = unixListener.Close()
			return nil, fmt.Errorf("listen tcp: %w", err)
		}
		listeners = append(listeners, tcpListener)
	}

	srv := grpc.NewServer()
	rtdb.RegisterDatabaseServer(srv, databaseSvc)
	rtdb.RegisterStatusServer(srv, statusSvc)

	return &Server{
		grpcServer: srv,
		listeners:  listeners,
		socketPath: socketPath,
		logger:     logger,
	}, nil
}

// Addrs returns the addresses being served, socket first.
func (s *Server) Addrs() []net.Addr {
	addrs := make([]net.Addr, len(s.listeners))
	for i, l := range s.listeners {
		addrs[i] = l.Addr()
	}
	return addrs
}

// Start begins serving gRPC requests on every listener. Blocks until stopped.
func (s *Server) Start() error {
	errs := make(chan error, len(s.listeners))
	for _, l := range s.listeners {
		s.logger.Info("gRPC server starting", zap.String("network", l.Addr().Network()), zap.String("addr", l.Addr().String()))
		go func(l net.Listener) {
			errs <- s.grpcServer.Serve(l)
		}(l)
	}
	var result error
	for range s.listeners {
		if err := <-errs; err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			result = errors.Join(result, err)
		}
	}
	return result
}

// Stop performs a graceful shutdown and removes the socket file. Open
// subscription streams are cut when ctx expires.
func (s *Server) Stop(ctx context.Context) {
	s.logger.Info("gRPC server stopping")
	done := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.grpcServer.Stop()
		<-done
	}
	for _, l := range s.listeners {
		_ = l.Close()
	}
	_ = os.Remove(s.socketPath)
}
