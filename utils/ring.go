package utils

import (
	"encoding/binary"
	"sync"
	"sync/atomic"
)

const (
	// RingFrameHeaderSize is the length prefix stored ahead of each frame
	RingFrameHeaderSize = 2
)

// Ring is a MPSC circular queue of fixed size slots
type Ring struct {
	Len        uint64
	ObjectSize uint64
	Tail       uint64
	Head       uint64
	Reserved   uint64
	Data       []byte

	mu sync.Mutex
}

func NewRing(objectSize uint64, len uint64) *Ring {
	return &Ring{
		Len:        len,
		ObjectSize: objectSize,
		Data:       make([]byte, len*objectSize),
	}
}

// NewFrameRing makes a Ring whose slots hold variable length frames
// of up to maxFrame bytes, see PushFrame
func NewFrameRing(maxFrame uint64, len uint64) *Ring {
	return NewRing(maxFrame+RingFrameHeaderSize, len)
}

// Count is the number of pushed but unread slots
func (r *Ring) Count() uint64 {
	return atomic.LoadUint64(&r.Head) - atomic.LoadUint64(&r.Tail)
}

// reserve bumps the reserved index forward, but keeps
// the Head index in place
func (r *Ring) reserve() []byte {
	resv := atomic.LoadUint64(&r.Reserved)
	//if ring would be full
	if (resv+1)-atomic.LoadUint64(&r.Tail) > r.Len {
		return nil
	}

	if !atomic.CompareAndSwapUint64(&r.Reserved, resv, resv+1) {
		return nil
	}

	return r.slot(resv)
}

func (r *Ring) slot(index uint64) []byte {
	from := (index % r.Len) * r.ObjectSize
	return r.Data[from : from+r.ObjectSize : from+r.ObjectSize]
}

// pushReserved bumps the Head index by delta positions.
// Care must be taken when reserving multiple blocks for
// premature pushes
func (r *Ring) pushReserved(delta uint64) uint64 {
	return atomic.AddUint64(&r.Head, delta)
}

// PushFrame stores d behind a length prefix so the exact frame can be
// recovered by PullFrame. Frames which do not fit a slot are refused.
func (r *Ring) PushFrame(d []byte) bool {
	if uint64(len(d))+RingFrameHeaderSize > r.ObjectSize || len(d) > 0xffff {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	b := r.reserve()
	if b == nil {
		return false
	}

	binary.BigEndian.PutUint16(b, uint16(len(d)))
	copy(b[RingFrameHeaderSize:], d)

	r.pushReserved(1)

	return true
}

// PullFrame copies out the next frame stored by PushFrame
func (r *Ring) PullFrame() ([]byte, bool) {
	tail := atomic.LoadUint64(&r.Tail)
	if atomic.LoadUint64(&r.Head) == tail {
		return nil, false
	}

	b := r.slot(tail)
	n := binary.BigEndian.Uint16(b)
	d := make([]byte, n)
	copy(d, b[RingFrameHeaderSize:])

	if !atomic.CompareAndSwapUint64(&r.Tail, tail, tail+1) {
		return nil, false
	}

	return d, true
}
