// Package artnet decodes Art-Net ArtDmx packets received over UDP/6454.
package artnet

import (
	"encoding/binary"
)

// OpDMX is the Art-Net ArtDmx opcode.
const OpDMX uint16 = 0x5000

// headerMagic is the fixed 8-byte Art-Net packet identifier.
var headerMagic = [8]byte{'A', 'r', 't', '-', 'N', 'e', 't', 0}

// minPacketLen is the size of everything up to and including the 2-byte
// length field, before the DMX payload.
const minPacketLen = 18

// Frame is a decoded ArtDmx packet: the universe it targets and the DMX
// slot bytes it carries.
type Frame struct {
	Universe uint16
	Data     []byte
}

// Decode parses a single UDP datagram as an ArtDmx packet. Malformed
// packets (short, wrong magic, wrong opcode) return ok=false and are
// silently dropped by the caller — nothing on this path is fatal or even
// worth a log line above debug.
func Decode(datagram []byte) (Frame, bool) {
	if len(datagram) < minPacketLen {
		return Frame{}, false
	}
	if [8]byte(datagram[0:8]) != headerMagic {
		return Frame{}, false
	}

	opcode := binary.LittleEndian.Uint16(datagram[8:10])
	if opcode != OpDMX {
		return Frame{}, false
	}

	// datagram[10:12] protocol version (spec requires >=14), [12] sequence,
	// [13] physical - version is intentionally left unvalidated (magic +
	// opcode already identify the packet as ArtDmx); no reordering or
	// per-port addressing is done with sequence/physical either.
	universe := binary.LittleEndian.Uint16(datagram[14:16]) & 0x7FFF
	length := binary.BigEndian.Uint16(datagram[16:18])

	if length < 2 || length > 512 || length%2 != 0 {
		return Frame{}, false
	}
	if len(datagram) < minPacketLen+int(length) {
		return Frame{}, false
	}

	return Frame{
		Universe: universe,
		Data:     datagram[minPacketLen : minPacketLen+int(length)],
	}, true
}

// Accept reports whether a decoded frame belongs to the single universe
// this bridge is configured to process. Every other universe is dropped.
func Accept(f Frame, configuredUniverse uint16) bool {
	return f.Universe == configuredUniverse
}
