// Package netio owns the bridge's UDP sockets: the Art-Net ingress
// listener, and the shared bulb-control socket used both to send setPilot
// requests and to receive getPilot replies (dispatched by source IP).
package netio

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"golang.org/x/sys/unix"
)

// Datagram is one received UDP packet, tagged with its source address so
// reply dispatch (ReplyRouter, for the off-verifier) can filter by it.
type Datagram struct {
	Data []byte
	Src  *net.UDPAddr
}

// Listener wraps a bound UDP4 socket and fans received datagrams out on a
// channel, mirroring the read-loop-plus-channel shape used for streaming
// UDP ingestion throughout this bridge.
type Listener struct {
	conn *net.UDPConn
	out  chan Datagram
}

// ListenUDP binds port on all interfaces and starts the read loop.
func ListenUDP(ctx context.Context, port int, queueDepth int) (*Listener, error) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: port})
	if err != nil {
		return nil, fmt.Errorf("netio: listen :%d: %w", port, err)
	}

	l := &Listener{
		conn: conn,
		out:  make(chan Datagram, queueDepth),
	}
	go l.readLoop(ctx)
	return l, nil
}

// Conn exposes the underlying socket so the same listener can also be used
// to send (the bulb-control socket is shared between send and reply-recv).
func (l *Listener) Conn() *net.UDPConn {
	return l.conn
}

// Datagrams returns the channel of received datagrams.
func (l *Listener) Datagrams() <-chan Datagram {
	return l.out
}

func (l *Listener) readLoop(ctx context.Context) {
	buf := make([]byte, 2048)
	for {
		n, src, err := l.conn.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			select {
			case <-ctx.Done():
				return
			default:
				continue
			}
		}

		data := make([]byte, n)
		copy(data, buf[:n])

		select {
		case l.out <- Datagram{Data: data, Src: src}:
		default:
			// Channel full: drop. The DMX/reply path is best-effort;
			// a slow consumer should never block the socket reader.
		}

		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

// Close releases the socket. In-flight readers return promptly because
// ReadFromUDP unblocks with an error on a closed connection.
func (l *Listener) Close() error {
	return l.conn.Close()
}

// SendTo writes a single datagram to addr over conn.
func SendTo(conn *net.UDPConn, addr *net.UDPAddr, payload []byte) error {
	_, err := conn.WriteToUDP(payload, addr)
	return err
}

// ReplyRouter fans datagrams received on a shared socket out to
// per-source-IP subscribers. The off-verifier needs "wait for a reply from
// exactly this bulb's IP" semantics on top of one socket shared with
// outbound sends; a single reader with a subscriber map keeps concurrent
// verifications of different bulbs from racing to drain the same channel.
type ReplyRouter struct {
	mu   sync.Mutex
	subs map[string]chan Datagram
}

// NewReplyRouter starts fanning datagrams from in out to subscribers
// registered with Subscribe, keyed by source IP. Datagrams from an IP with
// no subscriber are dropped.
func NewReplyRouter(in <-chan Datagram) *ReplyRouter {
	r := &ReplyRouter{subs: make(map[string]chan Datagram)}
	go r.run(in)
	return r
}

func (r *ReplyRouter) run(in <-chan Datagram) {
	for dg := range in {
		if dg.Src == nil {
			continue
		}
		r.mu.Lock()
		ch, ok := r.subs[dg.Src.IP.String()]
		r.mu.Unlock()
		if !ok {
			continue
		}
		select {
		case ch <- dg:
		default:
			// Subscriber not reading fast enough; it's waiting on a
			// timeout anyway, drop rather than block the router.
		}
	}
}

// Subscribe registers a channel for datagrams whose source IP matches ip.
// The returned cancel func must be called to unregister (typically via
// defer) once the caller stops waiting.
func (r *ReplyRouter) Subscribe(ip string) (<-chan Datagram, func()) {
	ch := make(chan Datagram, 4)
	r.mu.Lock()
	r.subs[ip] = ch
	r.mu.Unlock()
	return ch, func() {
		r.mu.Lock()
		delete(r.subs, ip)
		r.mu.Unlock()
	}
}

// BroadcastSocket opens an ephemeral UDP4 socket with SO_BROADCAST
// enabled, for discovery's directed broadcast send.
func BroadcastSocket() (*net.UDPConn, error) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: 0})
	if err != nil {
		return nil, fmt.Errorf("netio: broadcast socket: %w", err)
	}

	raw, err := conn.SyscallConn()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("netio: broadcast socket: %w", err)
	}

	var sockErr error
	err = raw.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_BROADCAST, 1)
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("netio: broadcast socket: %w", err)
	}
	if sockErr != nil {
		conn.Close()
		return nil, fmt.Errorf("netio: enable broadcast: %w", sockErr)
	}

	return conn, nil
}
