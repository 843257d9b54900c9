package wiz

import (
	"fmt"
	"net"

	"wizbridge/internal/bulbmodel"
	"wizbridge/internal/logger"
	"wizbridge/internal/netio"
)

// Codec sends setPilot requests over a UDP socket shared with reply
// reception (the same socket the verifier listens on via the reply
// router). It never waits for a reply itself — setPilot is fire-and-forget
// at this layer; correctness of the off-transition belongs to the
// verifier.
type Codec struct {
	conn *net.UDPConn
	port int
	log  *logger.Log
}

// NewCodec wraps conn (bound for send+receive on port) for setPilot sends.
func NewCodec(conn *net.UDPConn, port int, log *logger.Log) *Codec {
	return &Codec{conn: conn, port: port, log: log}
}

// SetPilot sends v to ip's control port unless suppressed.
//
// Suppression rule: a state=off vector whose state did not just change is
// never transmitted; the caller's completion handling must still proceed
// as if the send happened instantly.
//
// transmitted reports whether a datagram was put on the wire at all (true
// even on send error — the pump still needs to know a send was attempted,
// not merely suppressed).
func (c *Codec) SetPilot(ip string, v bulbmodel.SlotVector, stateChanged bool) (transmitted bool, err error) {
	if !v.State && !stateChanged {
		return false, nil
	}

	payload, err := EncodeSetPilot(v)
	if err != nil {
		return true, err
	}

	addr := &net.UDPAddr{IP: net.ParseIP(ip), Port: c.port}
	if addr.IP == nil {
		return true, fmt.Errorf("wiz: bad bulb ip %q", ip)
	}

	if err := netio.SendTo(c.conn, addr, payload); err != nil {
		return true, fmt.Errorf("wiz: send setPilot to %s: %w", ip, err)
	}
	return true, nil
}
