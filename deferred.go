package network

import "net"

type deferredDatagram struct {
	nextHop net.IP
	dgram   *InternetDatagram
}

// deferredQueue holds datagrams waiting on next hop resolution in the order
// they were sent. It is unbounded; datagrams for a next hop which never
// answers stay queued.
type deferredQueue struct {
	entries []deferredDatagram
}

func (q *deferredQueue) push(nextHop net.IP, dgram *InternetDatagram) {
	q.entries = append(q.entries, deferredDatagram{nextHop: nextHop, dgram: dgram})
}

// popReady removes and returns the oldest entry whose next hop is ready,
// keeping the order of the remainder
func (q *deferredQueue) popReady(ready func(net.IP) bool) (deferredDatagram, bool) {
	for idx, entry := range q.entries {
		if !ready(entry.nextHop) {
			continue
		}

		copy(q.entries[idx:], q.entries[idx+1:])
		q.entries[len(q.entries)-1] = deferredDatagram{}
		q.entries = q.entries[:len(q.entries)-1]

		return entry, true
	}

	return deferredDatagram{}, false
}

func (q *deferredQueue) len() int {
	return len(q.entries)
}
