// Package network implements asynchronous TCP endpoints on top of the raw
// IPv4 socket API.
//
// The package provides two endpoint types, each of which owns one dedicated
// worker goroutine for the lifetime of one socket:
//
//   - Connection: an active, bidirectional byte pipe. The worker moves bytes
//     between the socket and two in-memory chunk queues; callers enqueue
//     outbound data and drain inbound data without ever blocking on I/O.
//
//   - Server: a passive listener. The worker accepts clients and queues them
//     as ready-to-use Connections for non-blocking pickup.
//
// Features and Guarantees:
//
//   - Non-blocking API: SendData enqueues and returns; the Receive methods
//     return immediately with what is available (or nothing).
//   - FIFO lossless delivery: bytes are transmitted and delivered in order
//     while both ends stay open; one SendData payload is written contiguously
//     by a single write attempt.
//   - Atomic extraction: ReceiveDataN returns exactly n bytes or nothing;
//     the inbound queue is never left partially consumed by a failed request.
//   - One-way lifecycle: open -> closing -> closed; Close is idempotent,
//     callable from any goroutine, and joins the worker.
//
// Errors are never returned from the data-path methods. Runtime I/O failures
// transition the endpoint to the closing state (observable via IsOpen) and
// emit one warning through the package logger; an orderly peer shutdown does
// the same silently. The queues are unbounded; the package imposes no
// backpressure, framing, or timeouts.
package network
