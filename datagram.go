package network

import (
	"net"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/pkg/errors"
)

const (
	defaultHopLimit = 64
)

// InternetDatagram is an IPv4 datagram as handed between the network layer
// and an Interface. The payload is opaque.
type InternetDatagram struct {
	Header  layers.IPv4
	Payload []byte
}

// NewInternetDatagram builds a datagram with a minimal IPv4 header
func NewInternetDatagram(src, dst net.IP, proto layers.IPProtocol, payload []byte) *InternetDatagram {
	return &InternetDatagram{
		Header: layers.IPv4{
			Version:  4,
			IHL:      5,
			TTL:      defaultHopLimit,
			Protocol: proto,
			SrcIP:    src.To4(),
			DstIP:    dst.To4(),
		},
		Payload: payload,
	}
}

// ParseInternetDatagram decodes an IPv4 header and copies out its payload
func ParseInternetDatagram(d []byte) (*InternetDatagram, error) {
	dgram := &InternetDatagram{}
	if err := dgram.Header.DecodeFromBytes(d, gopacket.NilDecodeFeedback); err != nil {
		return nil, errors.Wrap(err, "decoding ipv4 header")
	}
	if dgram.Header.Version != 4 {
		return nil, errors.Errorf("unexpected ip version %d", dgram.Header.Version)
	}
	if Checksum16OnesComplement(d[:int(dgram.Header.IHL)*4]) != 0 {
		return nil, errors.New("bad ipv4 header checksum")
	}

	dgram.Payload = append([]byte{}, dgram.Header.Payload...)
	dgram.Header.SrcIP = append(net.IP{}, dgram.Header.SrcIP...)
	dgram.Header.DstIP = append(net.IP{}, dgram.Header.DstIP...)
	dgram.Header.Contents = nil
	dgram.Header.Payload = nil

	return dgram, nil
}

// Clone returns a copy sharing no memory with d
func (d *InternetDatagram) Clone() *InternetDatagram {
	c := &InternetDatagram{Header: d.Header}
	c.Header.Contents = nil
	c.Header.Payload = nil
	c.Header.SrcIP = append(net.IP{}, d.Header.SrcIP...)
	c.Header.DstIP = append(net.IP{}, d.Header.DstIP...)
	c.Header.Padding = append([]byte(nil), d.Header.Padding...)

	if d.Header.Options != nil {
		c.Header.Options = make([]layers.IPv4Option, len(d.Header.Options))
		for idx, opt := range d.Header.Options {
			opt.OptionData = append([]byte(nil), opt.OptionData...)
			c.Header.Options[idx] = opt
		}
	}

	c.Payload = append([]byte{}, d.Payload...)

	return c
}

// Serialize encodes the datagram, fixing up the header length
// and checksum fields
func (d *InternetDatagram) Serialize() ([]byte, error) {
	hdr := d.Header
	hdr.Version = 4

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, &hdr, gopacket.Payload(d.Payload)); err != nil {
		return nil, errors.Wrap(err, "serializing ipv4 datagram")
	}

	return buf.Bytes(), nil
}
