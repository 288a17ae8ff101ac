package network

import (
	"bytes"
	"testing"
)

func TestFIFOQueueOrder(t *testing.T) {
	q := NewFIFOQueue()

	for i := byte(0); i < 100; i++ {
		q.Enqueue(Ethernet{i})
	}

	if q.Len() != 100 {
		t.Fatalf("unexpected queue length, expected 100, got %d", q.Len())
	}

	for i := byte(0); i < 100; i++ {
		f, ok := q.Dequeue()
		if !ok {
			t.Fatalf("queue empty after %d frames", i)
		}
		if !bytes.Equal(f, []byte{i}) {
			t.Fatalf("frames out of order, expected %X, got %X", []byte{i}, []byte(f))
		}
	}

	if _, ok := q.Dequeue(); ok {
		t.Fatal("queue should be empty")
	}
}

func TestFIFOQueueInterleaved(t *testing.T) {
	q := NewFIFOQueue()
	next := byte(0)

	for i := byte(0); i < 200; i++ {
		q.Enqueue(Ethernet{i})
		if i%3 == 0 {
			f, _ := q.Dequeue()
			if f[0] != next {
				t.Fatalf("frames out of order, expected %d, got %d", next, f[0])
			}
			next++
		}
	}

	for q.Len() > 0 {
		f, _ := q.Dequeue()
		if f[0] != next {
			t.Fatalf("frames out of order, expected %d, got %d", next, f[0])
		}
		next++
	}

	if next != 200 {
		t.Fatalf("lost frames, expected 200, got %d", next)
	}
}

func TestRingQueueDropsNewest(t *testing.T) {
	q := NewRingQueue(2, 64)

	if !q.Enqueue(Ethernet{1}) || !q.Enqueue(Ethernet{2}) {
		t.Fatal("failed to enqueue")
	}
	if q.Enqueue(Ethernet{3}) {
		t.Fatal("expected full queue to refuse the newest frame")
	}
	if q.Enqueue(make(Ethernet, 65)) {
		t.Fatal("expected oversized frame to be refused")
	}

	for _, expected := range []byte{1, 2} {
		f, ok := q.Dequeue()
		if !ok || !bytes.Equal(f, []byte{expected}) {
			t.Fatalf("unexpected frame, expected %X, got %X", []byte{expected}, []byte(f))
		}
	}

	if q.Len() != 0 {
		t.Fatal("queue should be empty")
	}
}
