package network

import "github.com/pkg/errors"

// Dot1Q is an 802.1Q tag as it appears on the wire: the TPID in the
// upper 16 bits and the tag control information in the lower 16
type Dot1Q uint32

const (
	dot1QVLANMask     = 0x0FFF
	dot1QDEIMask      = 0x1000
	dot1QPriorityMask = 0xE000
)

var ErrInvalidVLAN = errors.New("vlan id out of range")

func NewDot1Q(vlan uint16, priority uint8, dropEligible bool) (Dot1Q, error) {
	if vlan > dot1QVLANMask || priority > 7 {
		return 0, ErrInvalidVLAN
	}

	tci := uint32(priority)<<13 | uint32(vlan)
	if dropEligible {
		tci |= dot1QDEIMask
	}

	return Dot1Q(uint32(EtherType_Dot1Q)<<16 | tci), nil
}

func (d Dot1Q) TPID() EtherType {
	return EtherType(d >> 16)
}

func (d Dot1Q) VLAN() uint16 {
	return uint16(d & dot1QVLANMask)
}

func (d Dot1Q) DropEligible() bool {
	return d&dot1QDEIMask > 0
}

func (d Dot1Q) Priority() uint8 {
	return uint8(d & dot1QPriorityMask >> 13)
}
