package network

import (
	"bytes"
	"encoding/binary"
	"net"

	"github.com/pkg/errors"
)

//
// 48-bit Mac Address
//

const (
	MacAddressLength = 6
)

var (
	BroadcastMacAddress = MacAddress{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}
	EmptyMacAddress     = MacAddress{0, 0, 0, 0, 0, 0}
)

type MacAddress []byte

// ParseMacAddress parses a colon or dash separated 48-bit address
func ParseMacAddress(s string) (MacAddress, error) {
	hw, err := net.ParseMAC(s)
	if err != nil {
		return nil, errors.Wrap(err, "parsing mac address")
	}
	if len(hw) != MacAddressLength {
		return nil, errors.Errorf("mac address %q is not 48 bits", s)
	}

	return MacAddress(hw), nil
}

func (m MacAddress) IsMcast() bool {
	//ipv4 & ipv6
	return m[0] == 0x1 || (m[0] == 0x33 && m[1] == 0x33)
}

func (m MacAddress) IsBcast() bool {
	return bytes.Equal(m, BroadcastMacAddress)
}

func (m MacAddress) Equals(addr MacAddress) bool {
	return bytes.Equal(m, addr)
}

func (m MacAddress) IsUnicast() bool {
	//fast check for first multicast or broadcast byte
	if m[0] != 0x1 && m[0] != 0x33 && m[0] != 0xff {
		return true
	}

	if m[0] == 0xff && m[1] != 0xff {
		return true
	}

	return !m.IsBcast() && !m.IsMcast()
}

// Clone returns a copy which does not alias the frame it was read from
func (m MacAddress) Clone() MacAddress {
	c := make(MacAddress, len(m))
	copy(c, m)
	return c
}

func (m MacAddress) String() string {
	return net.HardwareAddr(m).String()
}

//
// EtherType
//

type EtherType uint16

const (
	EtherType_IPv4  EtherType = 0x0800
	EtherType_ARP   EtherType = 0x0806
	EtherType_Dot1Q EtherType = 0x8100
	EtherType_IPv6  EtherType = 0x86DD
)

func (t EtherType) String() string {
	switch t {
	case EtherType_IPv4:
		return "IPv4"
	case EtherType_ARP:
		return "ARP"
	case EtherType_Dot1Q:
		return "802.1Q"
	case EtherType_IPv6:
		return "IPv6"
	default:
		return "unknown"
	}
}

//
// Ethernet Frame
//

const (
	EthernetFrameMinSize = MacAddressLength + MacAddressLength + 2
	dot1QFrameMinSize    = EthernetFrameMinSize + 4

	// tagged 1500 byte MTU frame without FCS
	MaxFrameSize = dot1QFrameMinSize + 1500
)

var (
	ErrFrameTooShort = errors.New("ethernet frame too short")
)

type Ethernet []byte

// NewEthernetFrame lays out an untagged frame carrying payload
func NewEthernetFrame(dst, src MacAddress, etherType EtherType, payload []byte) Ethernet {
	e := make(Ethernet, EthernetFrameMinSize+len(payload))
	e.SetDstMacAddress(dst)
	e.SetSrcMacAddress(src)
	e.SetEtherType(etherType)
	e.SetPayload(payload)

	return e
}

// Validate checks the frame is long enough for its header to be read
func (e Ethernet) Validate() error {
	if len(e) < EthernetFrameMinSize {
		return ErrFrameTooShort
	}
	if EtherType(binary.BigEndian.Uint16(e[12:])) == EtherType_Dot1Q && len(e) < dot1QFrameMinSize {
		return ErrFrameTooShort
	}

	return nil
}

func (e Ethernet) DstMacAddress() MacAddress {
	return MacAddress(e[0:6])
}

func (e Ethernet) SetDstMacAddress(addr MacAddress) {
	copy(e[0:], addr)
}

func (e Ethernet) SrcMacAddress() MacAddress {
	return MacAddress(e[6:12])
}

func (e Ethernet) SetSrcMacAddress(addr MacAddress) {
	copy(e[6:], addr)
}

func (e Ethernet) Dot1Q() Dot1Q {
	if EtherType(binary.BigEndian.Uint16(e[12:])) == EtherType_Dot1Q {
		return Dot1Q(binary.BigEndian.Uint32(e[12:]))
	}

	return 0
}

func (e Ethernet) SetDot1Q(tag Dot1Q) {
	//set ethertype and tag
	binary.BigEndian.PutUint32(e[12:], uint32(tag))
}

func (e Ethernet) EtherType() EtherType {
	etherType := EtherType(binary.BigEndian.Uint16(e[12:]))
	if etherType == EtherType_Dot1Q {
		etherType = EtherType(binary.BigEndian.Uint16(e[16:]))
	}

	return etherType
}

func (e Ethernet) SetEtherType(t EtherType) {
	//if we're already vlan tagged
	if EtherType(binary.BigEndian.Uint16(e[12:])) == EtherType_Dot1Q {
		binary.BigEndian.PutUint16(e[16:], uint16(t))
		return
	}

	binary.BigEndian.PutUint16(e[12:], uint16(t))
}

func (e Ethernet) Payload() []byte {
	if EtherType(binary.BigEndian.Uint16(e[12:])) == EtherType_Dot1Q {
		return e[dot1QFrameMinSize:]
	}

	return e[EthernetFrameMinSize:]
}

func (e Ethernet) SetPayload(d []byte) {
	if EtherType(binary.BigEndian.Uint16(e[12:])) == EtherType_Dot1Q {
		copy(e[dot1QFrameMinSize:], d)
		return
	}

	copy(e[EthernetFrameMinSize:], d)
}
