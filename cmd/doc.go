// Package cmd implements the command-line interface for the netq library.
// It provides a small command tree for running the demo echo server and for
// exercising the library against it as a client.
//
// The package is organized into several subpackages:
//
//   - serve: Commands for starting the echo server
//   - send: Commands for sending a message and printing the echoed reply
//   - perf: Commands for measuring round-trip throughput and latency
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See netq -help for a list of all commands.
package cmd
