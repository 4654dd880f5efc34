package network

import (
	"testing"
	"time"
)

// TestServerPortZero verifies that binding port 0 reports the kernel-chosen
// port.
func TestServerPortZero(t *testing.T) {
	server, err := NewServer(0)
	if err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	defer server.Close()

	if server.Port() == 0 {
		t.Error("Port() = 0 after binding port 0")
	}
	if !server.IsOpen() {
		t.Error("IsOpen = false after NewServer")
	}
}

// TestIncomingConnectionEmpty verifies the non-blocking dequeue contract.
func TestIncomingConnectionEmpty(t *testing.T) {
	server, err := NewServer(0)
	if err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	defer server.Close()

	if conn := server.IncomingConnection(); conn != nil {
		t.Errorf("IncomingConnection on a fresh server = %v, want nil", conn)
	}
}

// TestServerAcceptOrder verifies that accepted connections are handed out in
// the order the clients connected. Each client identifies itself with one
// byte sent right after connecting.
func TestServerAcceptOrder(t *testing.T) {
	server, err := NewServer(0)
	if err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	defer server.Close()

	const clientCount = 3
	for i := 0; i < clientCount; i++ {
		client, err := Connect(LoopbackAddress(server.Port()))
		if err != nil {
			t.Fatalf("Client %d failed to connect: %v", i, err)
		}
		defer client.Close()

		if !client.SendData([]byte{byte(i + 1)}) {
			t.Fatalf("Client %d failed to queue its ID byte", i)
		}

		// Give the accept worker time to process this client before the next
		// one connects, so the expected order is unambiguous.
		time.Sleep(50 * time.Millisecond)
	}

	for i := 0; i < clientCount; i++ {
		var accepted *Connection
		waitFor(t, time.Second, "accepted connection", func() bool {
			accepted = server.IncomingConnection()
			return accepted != nil
		})
		defer accepted.Close()

		var id []byte
		waitFor(t, time.Second, "client ID byte", func() bool {
			id = accepted.ReceiveDataN(1)
			return id != nil
		})
		if id[0] != byte(i+1) {
			t.Errorf("Connection %d carries ID %d, want %d", i, id[0], i+1)
		}
	}
}

// TestServerPortReuse verifies that a port can be re-bound immediately after
// the previous server released it.
func TestServerPortReuse(t *testing.T) {
	first, err := NewServer(0)
	if err != nil {
		t.Fatalf("Failed to start first server: %v", err)
	}
	port := first.Port()
	first.Close()

	second, err := NewServer(port)
	if err != nil {
		t.Fatalf("Failed to re-bind port %d: %v", port, err)
	}
	second.Close()
}

// TestServerClosePending verifies that Close shuts down connections that were
// accepted but never picked up.
func TestServerClosePending(t *testing.T) {
	server, err := NewServer(0)
	if err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}

	clients := make([]*Connection, 2)
	for i := range clients {
		clients[i], err = Connect(LoopbackAddress(server.Port()))
		if err != nil {
			t.Fatalf("Client %d failed to connect: %v", i, err)
		}
		defer clients[i].Close()
	}

	// Wait until both clients are sitting in the pending queue, then close
	// the server without ever dequeuing them.
	time.Sleep(100 * time.Millisecond)
	server.Close()

	if server.IsOpen() {
		t.Error("Server reports open after Close returned")
	}
	if conn := server.IncomingConnection(); conn != nil {
		t.Errorf("IncomingConnection after Close = %v, want nil", conn)
	}

	// The pending server-side endpoints were closed, so both clients must
	// observe the shutdown.
	for _, client := range clients {
		client := client
		waitFor(t, time.Second, "client shutdown", func() bool {
			return !client.IsOpen()
		})
	}
}

// TestServerCloseIdempotent verifies repeated Close calls are no-ops.
func TestServerCloseIdempotent(t *testing.T) {
	server, err := NewServer(0)
	if err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}

	server.Close()
	server.Close()

	if server.IsOpen() {
		t.Error("IsOpen = true after Close returned")
	}
}
