// Package bulbpump implements the per-bulb bounded queue and serial pump:
// each bulb mac owns a single goroutine that drains its own FIFO,
// coalesces against the last value actually sent, and hands off
// off-transitions to a verifier with bounded retry.
package bulbpump

import (
	"context"
	"sync"

	"wizbridge/internal/bulbmodel"
	"wizbridge/internal/logger"
)

// queueCap is the bounded FIFO capacity per bulb.
const queueCap = 10

// maxRetries is the number of off-verification retries before giving up.
const maxRetries = 3

// Sender is everything the pump needs from the wire layer. bulbpump
// doesn't import the wiz package directly — wiz.PumpSender satisfies this
// structurally — so the queue/coalescing logic here stays testable with a
// fake.
type Sender interface {
	// SetPilot transmits (or, per the suppression rule, skips) v to ip.
	// transmitted reports whether a datagram actually went out; err is
	// non-nil only on a genuine send failure, never for suppression.
	SetPilot(ctx context.Context, ip string, v bulbmodel.SlotVector, stateChanged bool) (transmitted bool, err error)
	// VerifyOff polls ip once and reports whether it confirmed state=false
	// before the timeout.
	VerifyOff(ctx context.Context, ip string) bool
}

// Stats are the per-bulb counters.
type Stats struct {
	Queued  uint64
	Sent    uint64
	Dropped uint64
}

type queueItem struct {
	vector bulbmodel.SlotVector
	retry  int
}

// Pump owns one bulb's runtime state: lastSent, the bounded queue, the
// processing flag, and stats. Every field is touched only by the pump's
// own goroutine, except through the exported methods below, which take
// the lock. State keyed by mac belongs to its pump, never a shared lock
// over every bulb.
type Pump struct {
	mac    string
	log    *logger.Log
	sender Sender

	ctx    context.Context
	cancel context.CancelFunc
	wake   chan struct{}

	mu         sync.Mutex
	ip         string
	queue      []queueItem
	processing bool
	lastSent   bulbmodel.SlotVector
	stats      Stats
}

// New starts a pump for mac, bound to ctx. Close stops it.
func New(ctx context.Context, mac, ip string, log *logger.Log, sender Sender) *Pump {
	pctx, cancel := context.WithCancel(ctx)
	p := &Pump{
		mac:    mac,
		ip:     ip,
		log:    log,
		sender: sender,
		ctx:    pctx,
		cancel: cancel,
		wake:   make(chan struct{}, 1),
	}
	go p.loop()
	return p
}

// Close stops the pump. In-flight sends/verifications are abandoned, not
// awaited.
func (p *Pump) Close() { p.cancel() }

// UpdateIP re-points the pump at a new control address, e.g. after a
// config reload changed the bulb's IP while its mac persisted.
func (p *Pump) UpdateIP(ip string) {
	p.mu.Lock()
	p.ip = ip
	p.mu.Unlock()
}

// Enqueue adds v to the bounded FIFO, evicting the oldest entry and
// incrementing Dropped if full, then wakes the pump.
func (p *Pump) Enqueue(v bulbmodel.SlotVector) {
	p.mu.Lock()
	p.stats.Queued++
	if len(p.queue) >= queueCap {
		p.queue = p.queue[1:]
		p.stats.Dropped++
	}
	p.queue = append(p.queue, queueItem{vector: v})
	p.mu.Unlock()
	p.signal()
}

func (p *Pump) signal() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// Stats returns a snapshot of the counters.
func (p *Pump) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// QueueLen reports the current queue depth.
func (p *Pump) QueueLen() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// LastSent returns the last vector acknowledged-sent to the bulb.
func (p *Pump) LastSent() bulbmodel.SlotVector {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastSent
}

func (p *Pump) loop() {
	for {
		select {
		case <-p.ctx.Done():
			return
		case <-p.wake:
			p.drain()
		}
	}
}

// drain runs until the queue empties or a send is left in flight; the
// in-flight send's completion (possibly via the verifier) re-signals the
// pump to continue draining, so this never recurses across goroutines
// and never holds processing across a wake.
func (p *Pump) drain() {
	for {
		p.mu.Lock()
		if p.processing || len(p.queue) == 0 {
			p.mu.Unlock()
			return
		}
		item := p.queue[0]
		p.queue = p.queue[1:]
		lastSent := p.lastSent
		ip := p.ip

		stateChanged := item.vector.State != lastSent.State

		if item.vector.Equal(lastSent) {
			// Coalesced: an identical update accumulated while a previous
			// send was in flight. processing is never held across this
			// path, so the pump keeps draining instead of deadlocking.
			p.mu.Unlock()
			continue
		}

		p.processing = true
		p.mu.Unlock()

		p.send(ip, item, stateChanged)
		return
	}
}

func (p *Pump) send(ip string, item queueItem, stateChanged bool) {
	sent, err := p.sender.SetPilot(p.ctx, ip, item.vector, stateChanged)
	if err != nil {
		p.log.With(logger.Fields{"module": "bulbpump", "mac": p.mac}).Warnf("setPilot send failed: %v", err)
	}
	if sent {
		p.mu.Lock()
		p.stats.Sent++
		p.mu.Unlock()
	}

	if stateChanged && !item.vector.State {
		go p.verify(ip, item)
		return
	}

	p.complete(item.vector)
}

// verify runs the off-verifier and either commits the off vector as
// lastSent or re-queues it at the front with an incremented retry count.
// It runs on its own goroutine so the pump's drain loop, and other
// bulbs' pumps, are never blocked on this bulb's 1s timeout.
func (p *Pump) verify(ip string, item queueItem) {
	if p.sender.VerifyOff(p.ctx, ip) {
		p.complete(item.vector)
		return
	}

	if item.retry >= maxRetries {
		p.log.With(logger.Fields{"module": "bulbpump", "mac": p.mac}).Errorf(
			"off-verification failed after %d retries, giving up", item.retry)
		p.complete(item.vector)
		return
	}

	retry := queueItem{vector: item.vector, retry: item.retry + 1}
	p.mu.Lock()
	p.processing = false
	if len(p.queue) >= queueCap {
		// The retry always survives at the front; the oldest regular item
		// is evicted to make room for it.
		p.queue = p.queue[1:]
		p.stats.Dropped++
	}
	p.queue = append([]queueItem{retry}, p.queue...)
	p.mu.Unlock()
	p.signal()
}

// complete records v as lastSent, clears processing, and re-enters the
// drain loop for whatever queued up while this send was in flight.
func (p *Pump) complete(v bulbmodel.SlotVector) {
	p.mu.Lock()
	p.lastSent = v
	p.processing = false
	p.mu.Unlock()
	p.signal()
}
