package network

import (
	"sync"
	"sync/atomic"

	"github.com/ValentinKolb/netq/lib/clock"
	"github.com/ValentinKolb/netq/lib/network/netsock"
	"github.com/eapache/queue"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("network")

const (
	// recvBufferSize is the size of the worker's receive buffer; one socket
	// read yields at most one chunk of this size.
	recvBufferSize = 64 * 1024

	// connPollTimeoutMs bounds how long the connection worker waits for the
	// socket to become readable before returning to the outbound side.
	connPollTimeoutMs = 1
)

// Connection is an active, bidirectional byte pipe over one TCP socket.
//
// Every Connection owns a dedicated worker goroutine that pumps bytes between
// the socket and two in-memory chunk queues. The public API never blocks on
// I/O: SendData enqueues and returns, the Receive methods return immediately
// with what is available. Close joins the worker.
//
// Thread-safety: all methods may be called concurrently from any number of
// goroutines.
type Connection struct {
	// remoteIP never changes after construction.
	remoteIP IPv4Address

	// dataMu guards the socket descriptor and lastActive. It is held across
	// each socket syscall so the descriptor cannot be closed mid-call.
	dataMu     sync.Mutex
	fd         int
	lastActive float32

	// stateMu serializes state transitions; the value itself is an atomic so
	// MayBeOpen can read it without the lock.
	stateMu sync.Mutex
	state   atomic.Int32

	// inMu guards inQueue. inSizeHint mirrors inQueue.size for unlocked
	// fast-path checks; every outcome derived from it is reconfirmed under
	// inMu before any mutation.
	inMu       sync.Mutex
	inQueue    *byteQueue
	inSizeHint atomic.Int64

	// outMu guards outQueue. outLenHint mirrors its length, same rules as
	// inSizeHint.
	outMu      sync.Mutex
	outQueue   *queue.Queue // of []byte
	outLenHint atomic.Int64

	// Lock acquisition order: stateMu -> dataMu -> outMu -> inMu.

	worker sync.WaitGroup
}

// Connect opens a TCP connection to the given peer, enables TCP_NODELAY and
// returns the open Connection with its worker running. On failure it logs one
// warning and returns the error.
func Connect(remote IPv4Address) (*Connection, error) {
	fd, err := netsock.Dial(remote.Host, remote.Port)
	if err != nil {
		Logger.Warningf("connect %s: %v", remote, err)
		return nil, err
	}
	metricConnectionsDialed.Inc()
	return newConnection(fd, remote), nil
}

// newConnection wraps an already connected descriptor and starts the worker.
// Used by Connect and by the Server for accepted sockets.
func newConnection(fd int, remote IPv4Address) *Connection {
	c := &Connection{
		remoteIP: remote,
		fd:       fd,
		inQueue:  newByteQueue(),
		outQueue: queue.New(),
	}
	c.state.Store(int32(StateOpen))
	c.worker.Add(1)
	go c.run()
	return c
}

// --------------------------------------------------------------------------
// Public API
// --------------------------------------------------------------------------

// RemoteIP returns the peer's address.
func (c *Connection) RemoteIP() IPv4Address {
	return c.remoteIP
}

// LastActiveTime returns the monotonic timestamp (seconds) of the last
// successful send or receive performed by the worker.
func (c *Connection) LastActiveTime() float32 {
	c.dataMu.Lock()
	defer c.dataMu.Unlock()
	return c.lastActive
}

// SendData appends data as a single chunk to the outbound queue. The payload
// is copied, so the caller may reuse the slice. Returns false without side
// effects if the connection is not open.
func (c *Connection) SendData(data []byte) bool {
	if !c.IsOpen() {
		return false
	}

	buf := append([]byte(nil), data...)

	c.outMu.Lock()
	c.outQueue.Add(buf)
	c.outLenHint.Store(int64(c.outQueue.Length()))
	c.outMu.Unlock()
	return true
}

// SendString sends the raw bytes of s, see SendData.
func (c *Connection) SendString(s string) bool {
	return c.SendData([]byte(s))
}

// ReceiveData drains the entire inbound queue into one contiguous slice.
// It returns nil if no data has arrived.
func (c *Connection) ReceiveData() []byte {
	if c.inSizeHint.Load() == 0 { // hint, reconfirmed under the lock
		return nil
	}

	c.inMu.Lock()
	defer c.inMu.Unlock()
	data := c.inQueue.extract(c.inQueue.size)
	c.inSizeHint.Store(int64(c.inQueue.size))
	return data
}

// ReceiveDataN extracts exactly n bytes in FIFO order. If fewer than n bytes
// are buffered it returns nil and consumes nothing.
func (c *Connection) ReceiveDataN(n int) []byte {
	if n <= 0 {
		return nil
	}
	if c.inSizeHint.Load() < int64(n) { // hint, reconfirmed under the lock
		return nil
	}

	c.inMu.Lock()
	defer c.inMu.Unlock()
	data := c.inQueue.extract(n)
	c.inSizeHint.Store(int64(c.inQueue.size))
	return data
}

// ReceiveString scans the inbound queue for the first byte equal to delim and
// extracts everything up to and including it. If no delimiter is buffered it
// returns "" and consumes nothing.
func (c *Connection) ReceiveString(delim byte) string {
	if c.inSizeHint.Load() == 0 { // hint, reconfirmed under the lock
		return ""
	}

	c.inMu.Lock()
	defer c.inMu.Unlock()

	pos := c.inQueue.delimIndex(delim)
	if pos < 0 {
		return ""
	}
	data := c.inQueue.extract(pos + 1)
	c.inSizeHint.Store(int64(c.inQueue.size))
	return string(data)
}

// IsOpen reports whether the connection is open. This is the authoritative
// check, performed under the state lock.
func (c *Connection) IsOpen() bool {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return State(c.state.Load()) == StateOpen
}

// MayBeOpen is an unlocked hint. It may be stale by the time the caller acts
// on it; use IsOpen for the authoritative answer.
func (c *Connection) MayBeOpen() bool {
	return State(c.state.Load()) == StateOpen
}

// Close requests shutdown and joins the worker. It is idempotent and safe to
// call from any goroutine. Outbound bytes not yet written are discarded.
func (c *Connection) Close() {
	if c.IsOpen() {
		c.setState(StateClosing)
	}
	c.worker.Wait()
}

// --------------------------------------------------------------------------
// Worker
// --------------------------------------------------------------------------

// setState advances the endpoint state. Transitions are one-way; a request
// that would move backwards is ignored.
func (c *Connection) setState(next State) {
	c.stateMu.Lock()
	if State(c.state.Load()) < next {
		c.state.Store(int32(next))
	}
	c.stateMu.Unlock()
}

// run is the worker loop. Each tick drains the outbound queue to the socket,
// then moves readable bytes into the inbound queue. The 1 ms readability poll
// doubles as the tick pacing. After leaving the loop the worker closes the
// socket and performs the final transition to StateClosed.
func (c *Connection) run() {
	defer c.worker.Done()

	buf := make([]byte, recvBufferSize)

	c.dataMu.Lock()
	fd := c.fd
	c.lastActive = clock.Now()
	c.dataMu.Unlock()

	for c.IsOpen() {
		c.drainOutbound(fd)
		c.drainInbound(fd, buf)
	}

	c.dataMu.Lock()
	if err := netsock.Close(fd); err != nil {
		Logger.Warningf("%s: %v", c.remoteIP, err)
	}
	c.fd = -1
	c.dataMu.Unlock()

	c.setState(StateClosed)
}

// drainOutbound writes queued chunks to the socket. A chunk is either sent in
// full by one write attempt or the connection goes to StateClosing; a partial
// write is treated as fatal because the chunk must stay intact at the queue
// head.
func (c *Connection) drainOutbound(fd int) {
	if c.outLenHint.Load() == 0 { // hint, reconfirmed under the lock
		return
	}

	c.dataMu.Lock()
	c.outMu.Lock()
	failed := false
	for c.outQueue.Length() > 0 {
		data := c.outQueue.Peek().([]byte)
		n, err := netsock.Send(fd, data)
		if err != nil || n < len(data) {
			if err != nil {
				Logger.Warningf("%s: %v", c.remoteIP, err)
			} else {
				Logger.Warningf("%s: short send (%d of %d bytes)", c.remoteIP, n, len(data))
			}
			failed = true
			break
		}
		c.outQueue.Remove()
		c.outLenHint.Store(int64(c.outQueue.Length()))
		c.lastActive = clock.Now()
		metricBytesSent.Add(n)
	}
	c.outMu.Unlock()
	c.dataMu.Unlock()

	// The state lock comes first in the lock order, so the transition is made
	// only after the data and out-queue locks are released.
	if failed {
		c.setState(StateClosing)
	}
}

// drainInbound moves readable bytes from the socket into the inbound queue
// until the 1 ms poll reports nothing to read. Each successful read becomes
// one chunk and refreshes lastActive.
func (c *Connection) drainInbound(fd int, buf []byte) {
	for c.IsOpen() {
		c.dataMu.Lock()
		ready, err := netsock.PollIn(fd, connPollTimeoutMs)
		c.dataMu.Unlock()
		if err != nil {
			Logger.Warningf("%s: %v", c.remoteIP, err)
			c.setState(StateClosing)
			return
		}
		if !ready {
			// Socket is not ready for reading yet. Continue with writing.
			return
		}

		c.dataMu.Lock()
		n, err := netsock.Recv(fd, buf)
		if err != nil {
			c.dataMu.Unlock()
			Logger.Warningf("%s: %v", c.remoteIP, err)
			c.setState(StateClosing)
			return
		}
		if n == 0 {
			// Peer has shut down.
			c.dataMu.Unlock()
			c.setState(StateClosing)
			return
		}
		c.lastActive = clock.Now()
		c.dataMu.Unlock()

		data := append([]byte(nil), buf[:n]...)
		c.inMu.Lock()
		c.inQueue.push(data)
		c.inSizeHint.Store(int64(c.inQueue.size))
		c.inMu.Unlock()
		metricBytesReceived.Add(n)
	}
}
