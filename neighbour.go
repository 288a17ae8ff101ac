package network

import (
	"encoding/binary"
	"math"
	"net"
	"sort"
	"time"
)

const (
	defaultNeighbourTimeout = 30 * time.Second
	probeRetryInterval      = 5 * time.Second
)

type NeighbourState uint8

const (
	// NeighbourStateUnknown has no record; it is never stored
	NeighbourStateUnknown NeighbourState = iota

	// NeighbourStateIncomplete has a request in flight and suppresses
	// further requests until the probe interval passes
	NeighbourStateIncomplete

	// NeighbourStateReachable has a learnt hardware address
	NeighbourStateReachable
)

func (s NeighbourState) String() string {
	switch s {
	case NeighbourStateIncomplete:
		return "incomplete"
	case NeighbourStateReachable:
		return "reachable"
	default:
		return "unknown"
	}
}

// NeighbourEntry is a snapshot of one neighbour record. Age is the time
// since the address was learnt (reachable) or probed (incomplete).
type NeighbourEntry struct {
	IP    net.IP
	MAC   MacAddress
	State NeighbourState
	Age   time.Duration
}

type neighbourRecord struct {
	state NeighbourState
	mac   MacAddress
	age   time.Duration
}

// NeighbourCache maps IPv4 addresses to hardware addresses. A record is
// either incomplete or reachable, never both, and ages only when Advance
// is called.
//
// NeighbourCache is not safe for concurrent use; Interface serialises
// access to it.
type NeighbourCache struct {
	entries       map[uint32]*neighbourRecord
	timeout       time.Duration
	probeInterval time.Duration
}

// NewNeighbourCache creates a new NeighbourCache instance. Reachable entries
// are evicted once they reach timeout, incomplete entries are released
// once they reach probeInterval.
func NewNeighbourCache(timeout, probeInterval time.Duration) *NeighbourCache {
	if timeout <= 0 {
		timeout = defaultNeighbourTimeout
	}
	if probeInterval <= 0 {
		probeInterval = probeRetryInterval
	}

	return &NeighbourCache{
		entries:       make(map[uint32]*neighbourRecord, 200),
		timeout:       timeout,
		probeInterval: probeInterval,
	}
}

// ipv4Key is the canonical map key for an address. ok is false for
// addresses which are not IPv4.
func ipv4Key(ip net.IP) (uint32, bool) {
	ip4 := ip.To4()
	if ip4 == nil {
		return 0, false
	}

	return binary.BigEndian.Uint32(ip4), true
}

func keyToIP(k uint32) net.IP {
	ip := make(net.IP, net.IPv4len)
	binary.BigEndian.PutUint32(ip, k)
	return ip
}

func (c *NeighbourCache) State(ip net.IP) NeighbourState {
	k, ok := ipv4Key(ip)
	if !ok {
		return NeighbourStateUnknown
	}

	rec, ok := c.entries[k]
	if !ok {
		return NeighbourStateUnknown
	}

	return rec.state
}

// Resolve returns the learnt hardware address for ip, if any
func (c *NeighbourCache) Resolve(ip net.IP) (MacAddress, bool) {
	k, ok := ipv4Key(ip)
	if !ok {
		return nil, false
	}

	rec, ok := c.entries[k]
	if !ok || rec.state != NeighbourStateReachable {
		return nil, false
	}

	return rec.mac, true
}

func (c *NeighbourCache) IsPending(ip net.IP) bool {
	return c.State(ip) == NeighbourStateIncomplete
}

// MarkPending moves an unknown address to incomplete. It reports false and
// changes nothing if the address already has a record.
func (c *NeighbourCache) MarkPending(ip net.IP) bool {
	k, ok := ipv4Key(ip)
	if !ok {
		return false
	}

	if _, exists := c.entries[k]; exists {
		return false
	}

	c.entries[k] = &neighbourRecord{state: NeighbourStateIncomplete}
	return true
}

// Learn records mac as the hardware address of ip, replacing any previous
// address or in flight probe, and restarts its age.
func (c *NeighbourCache) Learn(ip net.IP, mac MacAddress) {
	k, ok := ipv4Key(ip)
	if !ok {
		return
	}

	c.entries[k] = &neighbourRecord{
		state: NeighbourStateReachable,
		mac:   mac.Clone(),
	}
}

// Advance ages every record by d. Reachable records reaching the timeout are
// evicted and incomplete records reaching the probe interval are released,
// both returning to unknown.
func (c *NeighbourCache) Advance(d time.Duration) (evicted, released int) {
	if d < 0 {
		d = 0
	}

	for k, rec := range c.entries {
		if rec.age > math.MaxInt64-d {
			rec.age = math.MaxInt64
		} else {
			rec.age += d
		}

		switch rec.state {
		case NeighbourStateReachable:
			if rec.age >= c.timeout {
				delete(c.entries, k)
				evicted++
			}
		case NeighbourStateIncomplete:
			if rec.age >= c.probeInterval {
				delete(c.entries, k)
				released++
			}
		}
	}

	return
}

func (c *NeighbourCache) Len() int {
	return len(c.entries)
}

// Entries returns a snapshot of every record ordered by address
func (c *NeighbourCache) Entries() []NeighbourEntry {
	keys := make([]uint32, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	entries := make([]NeighbourEntry, 0, len(keys))
	for _, k := range keys {
		rec := c.entries[k]
		entries = append(entries, NeighbourEntry{
			IP:    keyToIP(k),
			MAC:   rec.mac.Clone(),
			State: rec.state,
			Age:   rec.age,
		})
	}

	return entries
}
