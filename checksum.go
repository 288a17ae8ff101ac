package network

import (
	"encoding/binary"
)

// Checksum16OnesComplement computes the internet checksum of d, summing
// words in native byte order. A buffer holding a valid checksum sums to 0.
func Checksum16OnesComplement(d []byte) uint16 {
	var sum uint32

	for len(d) >= 2 {
		sum += uint32(binary.NativeEndian.Uint16(d))
		d = d[2:]
	}
	if len(d) == 1 {
		var pad [2]byte
		pad[0] = d[0]
		sum += uint32(binary.NativeEndian.Uint16(pad[:]))
	}

	for sum > 0xffff {
		sum = (sum >> 16) + (sum & 0xffff)
	}

	return ^uint16(sum)
}
