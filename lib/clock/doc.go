// Package clock provides a process-local monotonic clock.
//
// All timestamps produced by this package are measured in seconds since an
// arbitrary origin chosen at process start. The readings are derived from the
// runtime's monotonic clock, so they are unaffected by wall-clock changes and
// never decrease.
//
// The network package uses these readings for connection activity timestamps,
// where only differences between two readings are meaningful.
package clock
