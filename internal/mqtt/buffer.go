package mqtt

import (
	"context"
	"sync"
)

// ringBuffer is a fixed-capacity FIFO that overwrites its oldest entry
// when full. Not safe for concurrent use; caller must synchronize.
type ringBuffer struct {
	buf      []Message
	capacity int
	head     int // next write position
	count    int
}

func newRingBuffer(capacity int) *ringBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &ringBuffer{
		buf:      make([]Message, capacity),
		capacity: capacity,
	}
}

// push appends msg, reporting whether the oldest entry was overwritten.
func (r *ringBuffer) push(msg Message) (dropped bool) {
	r.buf[r.head] = msg
	r.head = (r.head + 1) % r.capacity
	if r.count == r.capacity {
		// head already pointed at the oldest item, which is now gone
		return true
	}
	r.count++
	return false
}

// pop removes and returns the oldest entry.
func (r *ringBuffer) pop() (Message, bool) {
	if r.count == 0 {
		return Message{}, false
	}
	start := (r.head - r.count + r.capacity) % r.capacity
	msg := r.buf[start]
	r.buf[start] = Message{}
	r.count--
	return msg, true
}

func (r *ringBuffer) drainAll() []Message {
	if r.count == 0 {
		return nil
	}
	result := make([]Message, 0, r.count)
	for {
		msg, ok := r.pop()
		if !ok {
			break
		}
		result = append(result, msg)
	}
	r.head = 0
	return result
}

func (r *ringBuffer) len() int {
	return r.count
}

// inbox is the bounded queue between the transport callback and the single
// dispatcher. When full, the oldest pending message is dropped so the
// transport goroutine never blocks and the newest commands win.
type inbox struct {
	mu       sync.Mutex
	ring     *ringBuffer
	overflow bool // a drop happened since the queue was last empty
	notify   chan struct{}
	onDrop   func(first bool)
}

func newInbox(capacity int, onDrop func(first bool)) *inbox {
	return &inbox{
		ring:   newRingBuffer(capacity),
		notify: make(chan struct{}, 1),
		onDrop: onDrop,
	}
}

// put enqueues msg without blocking.
func (q *inbox) put(msg Message) {
	q.mu.Lock()
	dropped := q.ring.push(msg)
	first := dropped && !q.overflow
	if dropped {
		q.overflow = true
	}
	q.mu.Unlock()

	if dropped && q.onDrop != nil {
		q.onDrop(first)
	}
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// get blocks until a message is available or ctx is done.
func (q *inbox) get(ctx context.Context) (Message, bool) {
	for {
		q.mu.Lock()
		msg, ok := q.ring.pop()
		if q.ring.len() == 0 {
			q.overflow = false
		}
		q.mu.Unlock()
		if ok {
			return msg, true
		}

		select {
		case <-ctx.Done():
			return Message{}, false
		case <-q.notify:
		}
	}
}

func (q *inbox) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.ring.len()
}
