package wiz

import (
	"context"
	"net"
	"time"

	"wizbridge/internal/bulbmodel"
	"wizbridge/internal/logger"
	"wizbridge/internal/netio"
)

// settleDelay is how long the verifier waits after a setPilot off
// transition before polling, to give the bulb time to apply it.
const settleDelay = 200 * time.Millisecond

// verifyTimeout bounds how long the verifier waits for a getPilot reply
// from the target bulb.
const verifyTimeout = 1000 * time.Millisecond

// Verifier polls a bulb after an off-transition and reports whether the
// bulb confirms it's off. It shares the control socket with Codec via a
// netio.ReplyRouter, which dispatches incoming replies by source IP so
// concurrent verifications of different bulbs never steal each other's
// replies.
type Verifier struct {
	conn   *net.UDPConn
	router *netio.ReplyRouter
	port   int
	log    *logger.Log
}

// NewVerifier wraps conn (the same socket Codec sends on) and router (fed
// by the same socket's receive loop).
func NewVerifier(conn *net.UDPConn, router *netio.ReplyRouter, port int, log *logger.Log) *Verifier {
	return &Verifier{conn: conn, router: router, port: port, log: log}
}

// VerifyOff settles, polls with getPilot, waits for a reply, and checks
// the reported state. It returns true iff the bulb confirms off within
// the timeout.
func (v *Verifier) VerifyOff(ctx context.Context, ip string) bool {
	select {
	case <-time.After(settleDelay):
	case <-ctx.Done():
		return false
	}

	addr := &net.UDPAddr{IP: net.ParseIP(ip), Port: v.port}
	if addr.IP == nil {
		v.log.With(logger.Fields{"module": "wiz"}).Warnf("verify: bad bulb ip %q", ip)
		return false
	}

	replies, cancel := v.router.Subscribe(ip)
	defer cancel()

	payload, err := EncodeGetPilot()
	if err != nil {
		v.log.With(logger.Fields{"module": "wiz"}).Warnf("verify: encode getPilot: %v", err)
		return false
	}
	if err := netio.SendTo(v.conn, addr, payload); err != nil {
		v.log.With(logger.Fields{"module": "wiz"}).Warnf("verify: send getPilot to %s: %v", ip, err)
		return false
	}

	deadline := time.NewTimer(verifyTimeout)
	defer deadline.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-deadline.C:
			return false
		case dg := <-replies:
			reply, err := DecodeReply(dg.Data)
			if err != nil || reply.Method != "getPilot" {
				continue
			}
			state, ok := reply.PilotState()
			if !ok {
				continue
			}
			return !state
		}
	}
}

// PumpSender adapts Codec+Verifier to bulbpump.Sender without bulbpump
// needing to import this package (bulbpump defines the interface it
// consumes; wiz merely satisfies it structurally).
type PumpSender struct {
	codec    *Codec
	verifier *Verifier
}

// NewPumpSender builds the Sender the bridge hands to every per-bulb pump.
func NewPumpSender(codec *Codec, verifier *Verifier) *PumpSender {
	return &PumpSender{codec: codec, verifier: verifier}
}

// SetPilot satisfies bulbpump.Sender. ctx is accepted for interface
// symmetry with VerifyOff; the underlying UDP write never blocks.
func (s *PumpSender) SetPilot(ctx context.Context, ip string, v bulbmodel.SlotVector, stateChanged bool) (bool, error) {
	return s.codec.SetPilot(ip, v, stateChanged)
}

// VerifyOff satisfies bulbpump.Sender.
func (s *PumpSender) VerifyOff(ctx context.Context, ip string) bool {
	return s.verifier.VerifyOff(ctx, ip)
}
