package network

import (
	"github.com/tcfw/kernel/services/go/netif/utils"
)

// FrameQueue holds frames ready to leave an interface, oldest first
type FrameQueue interface {
	Len() uint // number of queued frames

	// Enqueue a frame. If the queue is full, the frame is not
	// queued and the result is false, it must never block.
	Enqueue(Ethernet) bool

	// Dequeue the oldest frame.
	// If no frames are queued, the result is false
	Dequeue() (Ethernet, bool)
}

// fifoQueue is an unbounded FrameQueue
type fifoQueue struct {
	frames []Ethernet
	head   int
}

// NewFIFOQueue returns an unbounded FrameQueue. Memory is bounded only
// by how quickly the link polls it.
func NewFIFOQueue() FrameQueue {
	return &fifoQueue{}
}

func (q *fifoQueue) Len() uint {
	return uint(len(q.frames) - q.head)
}

func (q *fifoQueue) Enqueue(f Ethernet) bool {
	q.frames = append(q.frames, f)
	return true
}

func (q *fifoQueue) Dequeue() (Ethernet, bool) {
	if q.head == len(q.frames) {
		return nil, false
	}

	f := q.frames[q.head]
	q.frames[q.head] = nil
	q.head++

	//reclaim the drained prefix once it dominates the backing array
	if q.head == len(q.frames) {
		q.frames = q.frames[:0]
		q.head = 0
	} else if q.head > 32 && q.head*2 > len(q.frames) {
		n := copy(q.frames, q.frames[q.head:])
		q.frames = q.frames[:n]
		q.head = 0
	}

	return f, true
}

// RingQueue is a bounded FrameQueue which drops the newest frame when full
type RingQueue struct {
	ring *utils.Ring
}

// NewRingQueue returns a FrameQueue holding up to capacity frames
// of at most maxFrame bytes each
func NewRingQueue(capacity, maxFrame uint64) *RingQueue {
	if capacity == 0 {
		capacity = 1
	}

	return &RingQueue{ring: utils.NewFrameRing(maxFrame, capacity)}
}

func (q *RingQueue) Len() uint {
	return uint(q.ring.Count())
}

func (q *RingQueue) Enqueue(f Ethernet) bool {
	return q.ring.PushFrame(f)
}

func (q *RingQueue) Dequeue() (Ethernet, bool) {
	d, ok := q.ring.PullFrame()
	if !ok {
		return nil, false
	}

	return Ethernet(d), true
}
