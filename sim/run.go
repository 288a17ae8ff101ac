package sim

import (
	"io"
	"net"
	"sort"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/pkg/errors"

	network "github.com/tcfw/kernel/services/go/netif"
	"github.com/tcfw/kernel/services/go/netif/config"
)

// Delivery is a datagram handed up by a host's interface
type Delivery struct {
	At      time.Duration
	Host    string
	Src     net.IP
	Dst     net.IP
	Port    uint16
	Payload []byte
}

type Result struct {
	Elapsed    time.Duration
	Frames     uint64
	Deliveries []Delivery
	Stats      map[string]network.InterfaceStatistics
	Neighbours map[string][]network.NeighbourEntry
}

type Options struct {
	Logger  network.Logger
	Capture io.Writer // pcap output, optional
}

// Build creates a segment with one interface per configured host
func Build(cfg *config.Config, logger network.Logger) (*Segment, error) {
	seg := NewSegment(logger)

	for _, h := range cfg.Hosts {
		icfg := network.InterfaceConfig{
			Name:             h.Name,
			HardwareAddr:     h.HardwareAddr,
			IPAddr:           h.IP,
			NeighbourTimeout: time.Duration(cfg.NeighbourTimeoutMS) * time.Millisecond,
			ProbeInterval:    time.Duration(cfg.ProbeIntervalMS) * time.Millisecond,
			Logger:           logger,
		}
		if cfg.QueueCapacity > 0 {
			icfg.Queue = network.NewRingQueue(cfg.QueueCapacity, network.MaxFrameSize)
		}

		iface, err := network.NewInterface(icfg)
		if err != nil {
			return nil, errors.Wrapf(err, "creating interface for host %s", h.Name)
		}

		if err := seg.Attach(iface); err != nil {
			return nil, err
		}
	}

	return seg, nil
}

// Run plays the traffic schedule in cfg against a fresh segment
func Run(cfg *config.Config, opts Options) (*Result, error) {
	seg, err := Build(cfg, opts.Logger)
	if err != nil {
		return nil, err
	}

	var capture *PcapCapture
	if opts.Capture != nil {
		capture, err = NewPcapCapture(opts.Capture, seg.Clock)
		if err != nil {
			return nil, err
		}
		for _, h := range cfg.Hosts {
			iface, _ := seg.Interface(h.Name)
			capture.Attach(iface)
		}
	}

	res := &Result{
		Stats:      map[string]network.InterfaceStatistics{},
		Neighbours: map[string][]network.NeighbourEntry{},
	}

	seg.OnDatagram = func(dst *network.Interface, dgram *network.InternetDatagram) {
		d := Delivery{
			At:      seg.Now(),
			Host:    dst.Name,
			Src:     dgram.Header.SrcIP,
			Dst:     dgram.Header.DstIP,
			Payload: dgram.Payload,
		}

		if dgram.Header.Protocol == layers.IPProtocolUDP {
			pkt := gopacket.NewPacket(dgram.Payload, layers.LayerTypeUDP, gopacket.NoCopy)
			if udp, ok := pkt.Layer(layers.LayerTypeUDP).(*layers.UDP); ok {
				d.Port = uint16(udp.DstPort)
				d.Payload = udp.Payload
			}
		}

		res.Deliveries = append(res.Deliveries, d)
	}

	flows := append([]config.Flow{}, cfg.Traffic...)
	sort.SliceStable(flows, func(i, j int) bool { return flows[i].AtMS < flows[j].AtMS })

	// the run covers [0, DurationMS); the last tick ends at DurationMS
	next := 0
	for elapsed := uint64(0); elapsed < cfg.DurationMS; elapsed += cfg.TickMS {
		for ; next < len(flows) && flows[next].AtMS <= elapsed; next++ {
			if err := sendFlow(seg, cfg, flows[next]); err != nil {
				return nil, err
			}
		}

		seg.Deliver()
		seg.Tick(cfg.TickMS)
	}

	if capture != nil {
		if err := capture.Err(); err != nil {
			return nil, err
		}
	}

	for _, h := range cfg.Hosts {
		iface, _ := seg.Interface(h.Name)
		res.Stats[h.Name] = iface.Statistics()
		res.Neighbours[h.Name] = iface.Neighbours()
	}
	res.Elapsed = seg.Now()
	res.Frames = seg.Frames()

	return res, nil
}

func sendFlow(seg *Segment, cfg *config.Config, f config.Flow) error {
	var src net.IP
	for _, h := range cfg.Hosts {
		if h.Name == f.From {
			src = h.IP
		}
	}

	payload, err := udpPayload(f.Port, []byte(f.Payload))
	if err != nil {
		return err
	}

	for n := 0; n < f.Count; n++ {
		dgram := network.NewInternetDatagram(src, f.To, layers.IPProtocolUDP, payload)
		if err := seg.Send(f.From, dgram, f.NextHop()); err != nil {
			return err
		}
	}

	return nil
}

func udpPayload(port uint16, data []byte) ([]byte, error) {
	udp := &layers.UDP{
		SrcPort: layers.UDPPort(port),
		DstPort: layers.UDPPort(port),
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true}
	if err := gopacket.SerializeLayers(buf, opts, udp, gopacket.Payload(data)); err != nil {
		return nil, errors.Wrap(err, "serializing udp")
	}

	return buf.Bytes(), nil
}
