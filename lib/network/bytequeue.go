package network

import (
	"github.com/eapache/queue"
)

// chunk is one element of a byteQueue: the exact byte sequence produced by a
// single socket read. A partially consumed chunk keeps its unread suffix.
type chunk struct {
	data []byte
}

// byteQueue is an ordered sequence of chunks with a running byte count.
// It is not safe for concurrent use; the owning Connection serializes access
// through its in-queue lock.
type byteQueue struct {
	chunks *queue.Queue // of *chunk
	size   int          // sum of chunk lengths
}

func newByteQueue() *byteQueue {
	return &byteQueue{chunks: queue.New()}
}

// push appends data as a new chunk. The queue takes ownership of the slice.
func (q *byteQueue) push(data []byte) {
	q.chunks.Add(&chunk{data: data})
	q.size += len(data)
}

// extract removes exactly n bytes in FIFO order and returns them as one
// contiguous slice. If fewer than n bytes are stored (or n is zero) it
// returns nil and leaves the queue untouched. A chunk that is only partially
// consumed stays at the head with its unread suffix.
func (q *byteQueue) extract(n int) []byte {
	if n == 0 || q.size < n {
		return nil
	}

	out := make([]byte, 0, n)
	remaining := n
	for remaining > 0 {
		head := q.chunks.Peek().(*chunk)
		if remaining >= len(head.data) {
			// take full chunk
			out = append(out, head.data...)
			remaining -= len(head.data)
			q.chunks.Remove()
		} else {
			// only take the remaining bytes
			out = append(out, head.data[:remaining]...)
			head.data = head.data[remaining:]
			remaining = 0
		}
	}

	q.size -= n
	return out
}

// delimIndex returns the position (in FIFO byte order) of the first byte equal
// to delim, or -1 if the queue holds no such byte.
func (q *byteQueue) delimIndex(delim byte) int {
	pos := 0
	for i := 0; i < q.chunks.Length(); i++ {
		for _, b := range q.chunks.Get(i).(*chunk).data {
			if b == delim {
				return pos
			}
			pos++
		}
	}
	return -1
}
