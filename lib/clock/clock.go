package clock

import (
	"time"
)

// start anchors the monotonic clock to an arbitrary process-local origin.
var start = time.Now()

// Now returns the seconds elapsed since the process-local origin.
// The reading is based on the runtime's monotonic clock and therefore
// never goes backwards, independent of wall-clock adjustments.
//
// Thread-safety: This function is safe to call from any goroutine.
func Now() float32 {
	return float32(time.Since(start).Seconds())
}
