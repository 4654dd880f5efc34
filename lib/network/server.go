package network

import (
	"sync"
	"sync/atomic"

	"github.com/ValentinKolb/netq/lib/network/netsock"
	"github.com/eapache/queue"
)

// serverPollTimeoutMs bounds how long the server worker waits for the
// listening socket to report a pending connection per tick.
const serverPollTimeoutMs = 5

// Server is a passive TCP listener. Its worker goroutine accepts clients and
// queues them as ready-to-use Connections (worker already running) until the
// caller picks them up with IncomingConnection.
//
// Thread-safety: all methods may be called concurrently from any number of
// goroutines.
type Server struct {
	// port is the bound local port, immutable after construction.
	port uint16

	// dataMu guards the listening descriptor, held across each syscall on it.
	dataMu sync.Mutex
	fd     int

	// stateMu serializes state transitions; see Connection for the scheme.
	stateMu sync.Mutex
	state   atomic.Int32

	// pendingMu guards pending, the FIFO of accepted connections awaiting
	// pickup.
	pendingMu sync.Mutex
	pending   *queue.Queue // of *Connection

	worker sync.WaitGroup
}

// NewServer opens a listening socket on 0.0.0.0:port (SO_REUSEADDR and
// TCP_NODELAY set, backlog 8) and starts the accept worker. Port 0 lets the
// kernel choose a free port; Port reports the bound one. On failure it logs
// one warning and returns the error.
func NewServer(port uint16) (*Server, error) {
	fd, err := netsock.Listen(port)
	if err != nil {
		Logger.Warningf("listen on port %d: %v", port, err)
		return nil, err
	}

	bound, err := netsock.LocalPort(fd)
	if err != nil {
		_ = netsock.Close(fd)
		Logger.Warningf("listen on port %d: %v", port, err)
		return nil, err
	}

	s := &Server{
		port:    bound,
		fd:      fd,
		pending: queue.New(),
	}
	s.state.Store(int32(StateOpen))
	s.worker.Add(1)
	go s.run()
	return s, nil
}

// --------------------------------------------------------------------------
// Public API
// --------------------------------------------------------------------------

// Port returns the local port the server is bound to.
func (s *Server) Port() uint16 {
	return s.port
}

// IncomingConnection removes and returns the oldest pending accepted
// connection, or nil if none is waiting. It never blocks.
func (s *Server) IncomingConnection() *Connection {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	if s.pending.Length() == 0 {
		return nil
	}
	return s.pending.Remove().(*Connection)
}

// IsOpen reports whether the server is accepting connections. This is the
// authoritative check, performed under the state lock.
func (s *Server) IsOpen() bool {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return State(s.state.Load()) == StateOpen
}

// MayBeOpen is an unlocked hint, see Connection.MayBeOpen.
func (s *Server) MayBeOpen() bool {
	return State(s.state.Load()) == StateOpen
}

// Close shuts down every pending (not yet picked up) connection, requests
// worker shutdown and joins it. Idempotent.
func (s *Server) Close() {
	s.pendingMu.Lock()
	for s.pending.Length() > 0 {
		s.pending.Remove().(*Connection).Close()
	}
	s.pendingMu.Unlock()

	if s.IsOpen() {
		s.setState(StateClosing)
	}
	s.worker.Wait()

	// The worker may have accepted one more client before it saw the
	// transition; close that one too.
	s.pendingMu.Lock()
	for s.pending.Length() > 0 {
		s.pending.Remove().(*Connection).Close()
	}
	s.pendingMu.Unlock()
}

// --------------------------------------------------------------------------
// Worker
// --------------------------------------------------------------------------

// setState advances the server state, one-way only.
func (s *Server) setState(next State) {
	s.stateMu.Lock()
	if State(s.state.Load()) < next {
		s.state.Store(int32(next))
	}
	s.stateMu.Unlock()
}

// run is the accept loop. Each tick polls the listening socket for up to 5 ms
// and accepts at most one client, which is wrapped into a Connection with its
// worker already running. A poll or accept failure shuts the server down. On
// exit the worker closes the listening socket and transitions to StateClosed.
func (s *Server) run() {
	defer s.worker.Done()

	s.dataMu.Lock()
	fd := s.fd
	s.dataMu.Unlock()

	for s.IsOpen() {
		s.dataMu.Lock()
		ready, err := netsock.PollIn(fd, serverPollTimeoutMs)
		s.dataMu.Unlock()
		if err != nil {
			Logger.Warningf("port %d: %v", s.port, err)
			s.setState(StateClosing)
			break
		}
		if !ready {
			continue
		}

		s.dataMu.Lock()
		cfd, host, port, err := netsock.Accept(fd)
		s.dataMu.Unlock()
		if err != nil {
			Logger.Warningf("port %d: %v", s.port, err)
			s.setState(StateClosing)
			break
		}

		conn := newConnection(cfd, IPv4Address{Host: host, Port: port})
		s.pendingMu.Lock()
		s.pending.Add(conn)
		s.pendingMu.Unlock()
		metricConnectionsAccepted.Inc()
	}

	s.dataMu.Lock()
	if err := netsock.Close(fd); err != nil {
		Logger.Warningf("port %d: %v", s.port, err)
	}
	s.fd = -1
	s.dataMu.Unlock()

	s.setState(StateClosed)
}
