package network

import (
	"context"
	"log"
	"math"
	"net"
	"runtime/trace"
	"sync"
	"time"

	"github.com/pkg/errors"
)

type Logger interface {
	Printf(format string, v ...any)
}

type InterfaceConfig struct {
	Name         string
	HardwareAddr MacAddress
	IPAddr       net.IP

	NeighbourTimeout time.Duration // defaults to 30s
	ProbeInterval    time.Duration // minimum time between requests for one address, defaults to 5s

	Queue  FrameQueue // outgoing frames, defaults to an unbounded FIFO
	Hooks  Hooks
	Logger Logger // defaults to the standard logger
}

type InterfaceStatistics struct {
	TXPackets uint64
	TXErr     uint64
	TXDrop    uint64

	RXPackets uint64
	RXErr     uint64
	RXDrop    uint64

	ARPRequests        uint64
	ARPReplies         uint64
	NeighbourEvictions uint64
}

// Interface connects the IP layer to an ethernet link, resolving next hop
// addresses with ARP. Datagrams sent to an unresolved next hop are held
// until a reply arrives.
//
// The link polls outgoing frames with MaybeSend and hands received frames
// to RecvFrame; a clock driver calls Tick. All methods are safe to call
// concurrently and serialise on a single lock.
type Interface struct {
	Name         string
	HardwareAddr MacAddress
	IPAddr       net.IP

	mu         sync.Mutex
	hooks      Hooks
	neighbours *NeighbourCache
	deferred   deferredQueue
	outgoing   FrameQueue
	stats      InterfaceStatistics
	logger     Logger
}

func NewInterface(cfg InterfaceConfig) (*Interface, error) {
	if len(cfg.HardwareAddr) != MacAddressLength {
		return nil, errors.Errorf("hardware address must be %d bytes", MacAddressLength)
	}
	if !cfg.HardwareAddr.IsUnicast() {
		return nil, errors.Errorf("hardware address %s is not unicast", cfg.HardwareAddr)
	}
	ip4 := cfg.IPAddr.To4()
	if ip4 == nil {
		return nil, errors.Errorf("interface address %s is not ipv4", cfg.IPAddr)
	}

	iface := &Interface{
		Name:         cfg.Name,
		HardwareAddr: cfg.HardwareAddr.Clone(),
		IPAddr:       append(net.IP{}, ip4...),
		hooks:        cfg.Hooks,
		neighbours:   NewNeighbourCache(cfg.NeighbourTimeout, cfg.ProbeInterval),
		outgoing:     cfg.Queue,
		logger:       cfg.Logger,
	}
	if iface.outgoing == nil {
		iface.outgoing = NewFIFOQueue()
	}
	if iface.logger == nil {
		iface.logger = log.Default()
	}

	iface.logger.Printf("network interface %s has ethernet address %s and ip address %s", iface.Name, iface.HardwareAddr, iface.IPAddr)

	return iface, nil
}

// SendDatagram sends dgram towards nextHop, which must be directly reachable
// on the link. If nextHop has not been resolved the datagram is held and an
// ARP request is sent, unless one is already outstanding.
func (i *Interface) SendDatagram(dgram *InternetDatagram, nextHop net.IP) {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.sendDatagram(dgram, nextHop)
}

func (i *Interface) sendDatagram(dgram *InternetDatagram, nextHop net.IP) {
	if dgram == nil {
		return
	}

	nextHop = nextHop.To4()
	if nextHop == nil {
		i.stats.TXDrop++
		i.logger.Printf("%s: dropping datagram, next hop is not ipv4", i.Name)
		return
	}

	if mac, ok := i.neighbours.Resolve(nextHop); ok {
		payload, err := dgram.Serialize()
		if err != nil {
			i.stats.TXErr++
			i.logger.Printf("%s: dropping datagram for %s: %v", i.Name, nextHop, err)
			return
		}

		i.queueFrame(NewEthernetFrame(mac, i.HardwareAddr, EtherType_IPv4, payload))
		return
	}

	if i.neighbours.MarkPending(nextHop) {
		i.sendARPRequest(nextHop)
	}

	// held datagrams are sent as they were at the time of the call
	i.deferred.push(append(net.IP{}, nextHop...), dgram.Clone())
}

func (i *Interface) sendARPRequest(target net.IP) {
	msg := ARPMessage{
		Operation:             ARPOperationRequest,
		SenderHardwareAddress: i.HardwareAddr,
		SenderProtocolAddress: i.IPAddr,
		TargetHardwareAddress: EmptyMacAddress,
		TargetProtocolAddress: target,
	}

	if i.queueFrame(NewEthernetFrame(BroadcastMacAddress, i.HardwareAddr, EtherType_ARP, msg.Marshal())) {
		i.stats.ARPRequests++
	}
}

func (i *Interface) sendARPReply(req ARPMessage) {
	msg := ARPMessage{
		Operation:             ARPOperationReply,
		SenderHardwareAddress: i.HardwareAddr,
		SenderProtocolAddress: i.IPAddr,
		TargetHardwareAddress: req.SenderHardwareAddress,
		TargetProtocolAddress: req.SenderProtocolAddress,
	}

	if i.queueFrame(NewEthernetFrame(req.SenderHardwareAddress, i.HardwareAddr, EtherType_ARP, msg.Marshal())) {
		i.stats.ARPReplies++
	}
}

func (i *Interface) queueFrame(frame Ethernet) bool {
	if runHook(i.hooks.TX, i, frame) == HookActionDROP {
		i.stats.TXDrop++
		return false
	}

	if !i.outgoing.Enqueue(frame) {
		i.stats.TXDrop++
		i.logger.Printf("%s: outgoing queue full, dropping %s frame", i.Name, frame.EtherType())
		return false
	}

	return true
}

// RecvFrame handles a frame from the link. IPv4 datagrams addressed to this
// interface are returned; ARP messages update the neighbour cache and
// requests for our address are answered. Malformed frames are dropped.
func (i *Interface) RecvFrame(frame Ethernet) (*InternetDatagram, bool) {
	defer trace.StartRegion(context.Background(), "RecvFrame").End()

	i.mu.Lock()
	defer i.mu.Unlock()

	// a newly learnt neighbour may release a held datagram
	defer i.flushDeferred()

	i.stats.RXPackets++

	if err := frame.Validate(); err != nil {
		i.stats.RXDrop++
		return nil, false
	}

	if runHook(i.hooks.RX, i, frame) == HookActionDROP {
		i.stats.RXDrop++
		return nil, false
	}

	switch frame.EtherType() {
	case EtherType_IPv4:
		if !frame.DstMacAddress().Equals(i.HardwareAddr) {
			i.stats.RXDrop++
			return nil, false
		}

		dgram, err := ParseInternetDatagram(frame.Payload())
		if err != nil {
			i.stats.RXErr++
			return nil, false
		}

		return dgram, true
	case EtherType_ARP:
		i.handleARP(frame.Payload())
	default:
		i.stats.RXDrop++
	}

	return nil, false
}

func (i *Interface) handleARP(payload []byte) {
	msg, err := ParseARPMessage(payload)
	if err != nil {
		i.stats.RXErr++
		return
	}

	i.neighbours.Learn(msg.SenderProtocolAddress, msg.SenderHardwareAddress)

	if msg.IsRequest() && msg.TargetProtocolAddress.Equal(i.IPAddr) {
		i.sendARPReply(msg)
	}
}

// flushDeferred resends at most one held datagram whose next hop is now
// resolved; a backlog drains over successive receives and ticks
func (i *Interface) flushDeferred() {
	entry, ok := i.deferred.popReady(func(ip net.IP) bool {
		return i.neighbours.State(ip) == NeighbourStateReachable
	})
	if !ok {
		return
	}

	i.sendDatagram(entry.dgram, entry.nextHop)
}

// Tick advances the interface clock by msSinceLastTick, expiring neighbour
// entries and outstanding requests, then resends a held datagram if one
// is ready.
func (i *Interface) Tick(msSinceLastTick uint64) {
	i.mu.Lock()
	defer i.mu.Unlock()

	evicted, _ := i.neighbours.Advance(TickDuration(msSinceLastTick))
	i.stats.NeighbourEvictions += uint64(evicted)

	i.flushDeferred()
}

// TickDuration converts a tick in milliseconds to a Duration, saturating
// at the largest Duration instead of overflowing
func TickDuration(ms uint64) time.Duration {
	if ms > uint64(math.MaxInt64/int64(time.Millisecond)) {
		return math.MaxInt64
	}

	return time.Duration(ms) * time.Millisecond
}

// MaybeSend returns the oldest frame waiting to be sent, if any
func (i *Interface) MaybeSend() (Ethernet, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()

	frame, ok := i.outgoing.Dequeue()
	if ok {
		i.stats.TXPackets++
	}

	return frame, ok
}

func (i *Interface) SetHooks(h Hooks) {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.hooks = h
}

func (i *Interface) Hooks() Hooks {
	i.mu.Lock()
	defer i.mu.Unlock()

	return i.hooks
}

func (i *Interface) Statistics() InterfaceStatistics {
	i.mu.Lock()
	defer i.mu.Unlock()

	return i.stats
}

// Neighbours returns a snapshot of the neighbour cache
func (i *Interface) Neighbours() []NeighbourEntry {
	i.mu.Lock()
	defer i.mu.Unlock()

	return i.neighbours.Entries()
}

// Deferred is the number of datagrams waiting on resolution
func (i *Interface) Deferred() int {
	i.mu.Lock()
	defer i.mu.Unlock()

	return i.deferred.len()
}
