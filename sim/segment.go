package sim

import (
	"log"
	"math"
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"

	network "github.com/tcfw/kernel/services/go/netif"
)

// maxDeliveryRounds bounds a single Deliver call so a pair of hosts
// answering each other forever cannot wedge the simulation
const maxDeliveryRounds = 1024

// DatagramFn receives datagrams handed up by an interface on the segment
type DatagramFn func(dst *network.Interface, dgram *network.InternetDatagram)

// Segment is a shared ethernet segment. Every frame sent by one attached
// interface is received by all the others, like a hub.
type Segment struct {
	Epoch      time.Time
	OnDatagram DatagramFn

	mu     sync.Mutex
	ifaces []*network.Interface
	byName map[string]*network.Interface
	now    time.Duration
	frames uint64
	logger network.Logger
}

func NewSegment(logger network.Logger) *Segment {
	if logger == nil {
		logger = log.Default()
	}

	return &Segment{
		Epoch:  time.Unix(0, 0).UTC(),
		byName: map[string]*network.Interface{},
		logger: logger,
	}
}

func (s *Segment) Attach(iface *network.Interface) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byName[iface.Name]; ok {
		return errors.Errorf("interface %q already attached", iface.Name)
	}

	s.ifaces = append(s.ifaces, iface)
	s.byName[iface.Name] = iface

	return nil
}

func (s *Segment) Interface(name string) (*network.Interface, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	iface, ok := s.byName[name]
	return iface, ok
}

// Send hands dgram to the named interface for delivery towards nextHop.
// Frames are not carried until the next Deliver or Tick.
func (s *Segment) Send(name string, dgram *network.InternetDatagram, nextHop net.IP) error {
	iface, ok := s.Interface(name)
	if !ok {
		return errors.Errorf("no interface named %q", name)
	}

	iface.SendDatagram(dgram, nextHop)
	return nil
}

// Now is the virtual time elapsed since the segment was created
func (s *Segment) Now() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.now
}

// Clock returns the wall clock equivalent of Now
func (s *Segment) Clock() time.Time {
	return s.Epoch.Add(s.Now())
}

// Frames is the number of frames carried so far
func (s *Segment) Frames() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.frames
}

// Tick advances virtual time on every attached interface and then carries
// whatever the interfaces queued as a result
func (s *Segment) Tick(ms uint64) {
	s.mu.Lock()
	if d := network.TickDuration(ms); s.now > math.MaxInt64-d {
		s.now = math.MaxInt64
	} else {
		s.now += d
	}
	ifaces := append([]*network.Interface{}, s.ifaces...)
	s.mu.Unlock()

	for _, iface := range ifaces {
		iface.Tick(ms)
	}

	s.Deliver()
}

// Deliver carries frames between interfaces until none has anything left
// to send. It returns the number of frames carried.
func (s *Segment) Deliver() int {
	s.mu.Lock()
	ifaces := append([]*network.Interface{}, s.ifaces...)
	s.mu.Unlock()

	carried := 0
	for round := 0; round < maxDeliveryRounds; round++ {
		moved := 0

		for _, src := range ifaces {
			for {
				frame, ok := src.MaybeSend()
				if !ok {
					break
				}
				moved++

				for _, dst := range ifaces {
					if dst == src {
						continue
					}

					dgram, ok := dst.RecvFrame(frame)
					if ok && s.OnDatagram != nil {
						s.OnDatagram(dst, dgram)
					}
				}
			}
		}

		if moved == 0 {
			break
		}
		carried += moved

		if round == maxDeliveryRounds-1 {
			s.logger.Printf("segment still busy after %d delivery rounds", maxDeliveryRounds)
		}
	}

	s.mu.Lock()
	s.frames += uint64(carried)
	s.mu.Unlock()

	return carried
}
