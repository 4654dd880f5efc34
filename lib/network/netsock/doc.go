// Package netsock is the thin OS adapter underneath the network package.
//
// It wraps the raw socket API (socket, connect, bind, listen, accept,
// setsockopt, send, recv, poll, close) for IPv4 TCP endpoints and confines all
// byte-order conversion between host-order addresses and sockaddr structures
// to this package. Errors are wrapped with the name of the failing syscall.
//
// Accept, PollIn, Send and Recv retry a syscall interrupted by a signal (EINTR)
// transparently; the Go runtime routinely interrupts blocking syscalls for
// preemption, and a retried poll or read must not be mistaken for a socket
// failure. The setup and close calls (Dial, Listen, LocalPort, Close) do not
// retry and return EINTR as an error.
//
// Everything above this package is backend-agnostic: the state machines in
// the network package only see descriptors and plain errors.
package netsock
