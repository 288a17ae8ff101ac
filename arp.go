package network

import (
	"encoding/binary"
	"net"

	"github.com/pkg/errors"
)

const (
	ARPOperationRequest     = uint16(1)
	ARPOperationReply       = uint16(2)
	ARPHardwareTypeEthernet = uint16(1)

	ARPFrameMinSize = 28
)

var (
	ErrARPTooShort    = errors.New("arp message too short")
	ErrARPUnsupported = errors.New("arp message is not ethernet/ipv4")
)

type ARP []byte

func (a ARP) HardwareType() uint16 {
	return binary.BigEndian.Uint16(a[0:])
}

func (a ARP) SetHardwareType(t uint16) {
	binary.BigEndian.PutUint16(a[0:], t)
}

func (a ARP) ProtocolType() uint16 {
	return binary.BigEndian.Uint16(a[2:])
}

func (a ARP) SetProtocolType(t uint16) {
	binary.BigEndian.PutUint16(a[2:], t)
}

func (a ARP) HardwareAddrLen() uint8 {
	return a[4]
}

func (a ARP) SetHardwareAddrLen(l uint8) {
	a[4] = l
}

func (a ARP) ProtocolAddrLen() uint8 {
	return a[5]
}

func (a ARP) SetProtocolAddrLen(l uint8) {
	a[5] = l
}

func (a ARP) Operation() uint16 {
	return binary.BigEndian.Uint16(a[6:])
}

func (a ARP) SetOperation(o uint16) {
	binary.BigEndian.PutUint16(a[6:], o)
}

func (a ARP) SenderHardwareAddress() MacAddress {
	return MacAddress(a[8:14])
}

func (a ARP) SetSenderHardwareAddress(m MacAddress) {
	copy(a[8:14], m)
}

func (a ARP) SenderProtocolAddress() net.IP {
	return net.IP(a[14:18])
}

func (a ARP) SetSenderProtocolAddress(ip net.IP) {
	copy(a[14:18], ip)
}

func (a ARP) TargetHardwareAddress() MacAddress {
	return MacAddress(a[18:24])
}

func (a ARP) SetTargetHardwareAddress(m MacAddress) {
	copy(a[18:24], m)
}

func (a ARP) TargetProtocolAddress() net.IP {
	return net.IP(a[24:28])
}

func (a ARP) SetTargetProtocolAddress(ip net.IP) {
	copy(a[24:28], ip)
}

// ARPMessage is a decoded Ethernet/IPv4 ARP message. Addresses
// never alias the buffer the message was parsed from.
type ARPMessage struct {
	Operation             uint16
	SenderHardwareAddress MacAddress
	SenderProtocolAddress net.IP
	TargetHardwareAddress MacAddress
	TargetProtocolAddress net.IP
}

// ParseARPMessage validates and copies out an ARP message. Trailing
// bytes (e.g. ethernet minimum frame padding) are ignored.
func ParseARPMessage(d []byte) (ARPMessage, error) {
	if len(d) < ARPFrameMinSize {
		return ARPMessage{}, ErrARPTooShort
	}

	a := ARP(d)
	if a.HardwareType() != ARPHardwareTypeEthernet ||
		a.ProtocolType() != uint16(EtherType_IPv4) ||
		a.HardwareAddrLen() != MacAddressLength ||
		a.ProtocolAddrLen() != net.IPv4len {
		return ARPMessage{}, ErrARPUnsupported
	}

	op := a.Operation()
	if op != ARPOperationRequest && op != ARPOperationReply {
		return ARPMessage{}, errors.Errorf("unknown arp operation %d", op)
	}

	return ARPMessage{
		Operation:             op,
		SenderHardwareAddress: a.SenderHardwareAddress().Clone(),
		SenderProtocolAddress: append(net.IP{}, a.SenderProtocolAddress()...),
		TargetHardwareAddress: a.TargetHardwareAddress().Clone(),
		TargetProtocolAddress: append(net.IP{}, a.TargetProtocolAddress()...),
	}, nil
}

// Marshal encodes the message into a new 28 byte buffer
func (m ARPMessage) Marshal() []byte {
	arp := make(ARP, ARPFrameMinSize)
	arp.SetHardwareType(ARPHardwareTypeEthernet)
	arp.SetProtocolType(uint16(EtherType_IPv4))
	arp.SetHardwareAddrLen(MacAddressLength)
	arp.SetProtocolAddrLen(net.IPv4len)
	arp.SetOperation(m.Operation)
	arp.SetSenderHardwareAddress(m.SenderHardwareAddress)
	arp.SetSenderProtocolAddress(m.SenderProtocolAddress.To4())
	arp.SetTargetHardwareAddress(m.TargetHardwareAddress)
	arp.SetTargetProtocolAddress(m.TargetProtocolAddress.To4())

	return arp
}

func (m ARPMessage) IsRequest() bool {
	return m.Operation == ARPOperationRequest
}

func (m ARPMessage) IsReply() bool {
	return m.Operation == ARPOperationReply
}
