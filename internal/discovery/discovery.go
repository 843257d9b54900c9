// Package discovery broadcasts a getPilot request and aggregates unique
// responders by MAC until a deadline.
package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"wizbridge/internal/bulbmodel"
	"wizbridge/internal/logger"
	"wizbridge/internal/netio"
	"wizbridge/internal/wiz"
)

// DefaultTimeout is the default collection window.
const DefaultTimeout = 3 * time.Second

// Result is one discovered bulb, reported once per MAC regardless of how
// many replies arrived.
type Result struct {
	MAC     string
	IP      string
	State   bool
	RSSI    int
	Dimming uint8
	Raw     json.RawMessage
}

// Scan opens an ephemeral broadcast-enabled socket, sends getPilot to
// 255.255.255.255:port, collects replies for timeout, and returns the
// aggregated, deduplicated result list.
func Scan(ctx context.Context, port int, timeout time.Duration, log *logger.Log) ([]Result, error) {
	conn, err := netio.BroadcastSocket()
	if err != nil {
		return nil, fmt.Errorf("discovery: %w", err)
	}
	defer conn.Close()

	payload, err := wiz.EncodeGetPilot()
	if err != nil {
		return nil, fmt.Errorf("discovery: encode getPilot: %w", err)
	}

	dst := &net.UDPAddr{IP: net.IPv4bcast, Port: port}
	if err := netio.SendTo(conn, dst, payload); err != nil {
		return nil, fmt.Errorf("discovery: broadcast send: %w", err)
	}

	results := Collect(ctx, conn, timeout)
	log.With(logger.Fields{"module": "discovery"}).Infof("discovery found %d bulb(s)", len(results))
	return results, nil
}

// Collect reads from conn until timeout elapses or ctx is cancelled,
// aggregating replies by MAC. Malformed datagrams are ignored without
// aborting the scan.
func Collect(ctx context.Context, conn *net.UDPConn, timeout time.Duration) []Result {
	deadline := time.Now().Add(timeout)
	conn.SetReadDeadline(deadline)

	seen := make(map[string]Result)
	buf := make([]byte, 2048)

	for {
		select {
		case <-ctx.Done():
			return resultsFrom(seen)
		default:
		}

		n, src, err := conn.ReadFromUDP(buf)
		if err != nil {
			// Read deadline exceeded, or socket closed out from under us.
			return resultsFrom(seen)
		}

		if res, ok := processReply(buf[:n], src.IP.String()); ok {
			aggregate(seen, res)
		}
	}
}

func processReply(data []byte, srcIP string) (Result, bool) {
	reply, err := wiz.DecodeReply(data)
	if err != nil {
		return Result{}, false
	}
	pilot, ok := reply.PilotResult()
	if !ok || pilot.MAC == "" {
		return Result{}, false
	}
	return Result{
		MAC:     bulbmodel.CanonicalMAC(pilot.MAC),
		IP:      srcIP,
		State:   pilot.State,
		RSSI:    pilot.RSSI,
		Dimming: pilot.Dimming,
		Raw:     reply.Result,
	}, true
}

// aggregate dedupes by MAC: the first reply from a given bulb wins.
func aggregate(seen map[string]Result, r Result) {
	if _, ok := seen[r.MAC]; ok {
		return
	}
	seen[r.MAC] = r
}

func resultsFrom(seen map[string]Result) []Result {
	out := make([]Result, 0, len(seen))
	for _, r := range seen {
		out = append(out, r)
	}
	return out
}
