// Package bridge wires the bridge engine together: it owns the current
// bulb snapshot (replaced atomically on reload), runs the change
// detector over every accepted Art-Net frame, and dispatches updates
// into the right bulb's pump.
package bridge

import (
	"context"
	"sort"
	"sync"
	"time"

	"wizbridge/internal/artnet"
	"wizbridge/internal/bulbmodel"
	"wizbridge/internal/bulbpump"
	"wizbridge/internal/bulbstore"
	"wizbridge/internal/logger"
	"wizbridge/internal/netio"
	"wizbridge/internal/notify"
)

// Bridge is the long-lived engine: one Art-Net listener, one bulb
// snapshot, and one pump per currently-configured bulb.
type Bridge struct {
	log          *logger.Log
	store        bulbstore.Store
	listener     *netio.Listener
	sender       bulbpump.Sender
	universe     uint16
	reloadPeriod time.Duration

	reloadNow chan struct{}

	mu           sync.RWMutex
	bulbs        map[string]bulbmodel.Record
	pumps        map[string]*bulbpump.Pump
	lastReceived map[string]bulbmodel.SlotVector
}

// New builds a bridge. listener must already be bound to the configured
// Art-Net port; sender is the wiz codec+verifier adapter every pump uses.
func New(log *logger.Log, store bulbstore.Store, listener *netio.Listener, sender bulbpump.Sender, universe uint16, reloadPeriod time.Duration) *Bridge {
	return &Bridge{
		log:          log,
		store:        store,
		listener:     listener,
		sender:       sender,
		universe:     universe,
		reloadPeriod: reloadPeriod,
		reloadNow:    make(chan struct{}, 1),
		bulbs:        make(map[string]bulbmodel.Record),
		pumps:        make(map[string]*bulbpump.Pump),
		lastReceived: make(map[string]bulbmodel.SlotVector),
	}
}

// Run is the main event loop: Art-Net datagrams, the reload tick, and
// the out-of-band reload trigger all funnel through one select. It
// blocks until ctx is done.
func (b *Bridge) Run(ctx context.Context) error {
	if err := b.reload(ctx); err != nil {
		b.log.With(logger.Fields{"module": "bridge"}).Warnf("initial bulb load failed: %v", err)
	}

	ticker := time.NewTicker(b.reloadPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.closeAllPumps()
			return nil
		case dg := <-b.listener.Datagrams():
			b.handleDatagram(dg)
		case <-ticker.C:
			if err := b.reload(ctx); err != nil {
				b.log.With(logger.Fields{"module": "bridge"}).Warnf("bulb store reload failed, retaining previous snapshot: %v", err)
			}
		case <-b.reloadNow:
			ticker.Reset(b.reloadPeriod)
			if err := b.reload(ctx); err != nil {
				b.log.With(logger.Fields{"module": "bridge"}).Warnf("triggered reload failed, retaining previous snapshot: %v", err)
			}
		}
	}
}

// TriggerReload requests an immediate reload on the next loop iteration,
// coalescing with any reload already pending. Satisfies
// notify.ReloadTrigger.
func (b *Bridge) TriggerReload() {
	select {
	case b.reloadNow <- struct{}{}:
	default:
	}
}

func (b *Bridge) handleDatagram(dg netio.Datagram) {
	frame, ok := artnet.Decode(dg.Data)
	if !ok || !artnet.Accept(frame, b.universe) {
		return
	}
	b.ProcessFrame(frame)
}

// ProcessFrame runs the change detector over one accepted Art-Net frame:
// for every configured bulb, slice its slots, skip no-op frames, and
// enqueue the rest onto that bulb's pump. Split out from handleDatagram
// so it's testable without real sockets.
func (b *Bridge) ProcessFrame(frame artnet.Frame) {
	b.mu.RLock()
	bulbs := b.bulbs
	b.mu.RUnlock()

	for mac, rec := range bulbs {
		v := rec.Slots(frame.Data)

		b.mu.Lock()
		last, seen := b.lastReceived[mac]
		if seen && last.Equal(v) {
			b.mu.Unlock()
			continue
		}
		b.lastReceived[mac] = v
		pump := b.pumps[mac]
		b.mu.Unlock()

		if pump != nil {
			pump.Enqueue(v)
		}
	}
}

// reload re-polls the bulb store and atomically swaps the snapshot. Pumps
// for MACs that persist across the reload are retained (and re-pointed at
// any new IP); pumps for MACs no longer present are closed. Newly-seen
// MACs get a fresh pump and a zeroed lastReceived entry.
func (b *Bridge) reload(ctx context.Context) error {
	records, err := b.store.ReadAll(ctx)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	newBulbs := make(map[string]bulbmodel.Record, len(records))
	for _, rec := range records {
		newBulbs[rec.MAC] = rec
		if pump, ok := b.pumps[rec.MAC]; ok {
			pump.UpdateIP(rec.IP)
			continue
		}
		b.pumps[rec.MAC] = bulbpump.New(ctx, rec.MAC, rec.IP, b.log, b.sender)
		b.lastReceived[rec.MAC] = bulbmodel.SlotVector{}
	}

	for mac, pump := range b.pumps {
		if _, ok := newBulbs[mac]; !ok {
			pump.Close()
			delete(b.pumps, mac)
			delete(b.lastReceived, mac)
		}
	}

	b.bulbs = newBulbs
	b.log.With(logger.Fields{"module": "bridge"}).Debugf("reloaded %d bulb(s)", len(newBulbs))
	return nil
}

func (b *Bridge) closeAllPumps() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, pump := range b.pumps {
		pump.Close()
	}
}

// Snapshot builds the aggregate stats payload for notify's 30s publish
// tick. Satisfies notify.StatsProvider.
func (b *Bridge) Snapshot() notify.StatsSnapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := notify.StatsSnapshot{Bulbs: make(map[string]notify.BulbStats, len(b.pumps))}
	for mac, pump := range b.pumps {
		s := pump.Stats()
		out.Bulbs[mac] = notify.BulbStats{
			Queued:   s.Queued,
			Sent:     s.Sent,
			Dropped:  s.Dropped,
			QueueLen: pump.QueueLen(),
		}
	}
	return out
}

// BulbRow is one row of the live dashboard: a bulb's identity,
// last acknowledged-sent state, queue depth, and counters.
type BulbRow struct {
	MAC      string
	Name     string
	IP       string
	LastSent bulbmodel.SlotVector
	QueueLen int
	Stats    bulbpump.Stats
}

// Rows builds the dashboard's per-bulb view, sorted by mac for stable
// rendering.
func (b *Bridge) Rows() []BulbRow {
	b.mu.RLock()
	defer b.mu.RUnlock()

	rows := make([]BulbRow, 0, len(b.bulbs))
	for mac, rec := range b.bulbs {
		pump, ok := b.pumps[mac]
		if !ok {
			continue
		}
		rows = append(rows, BulbRow{
			MAC:      mac,
			Name:     rec.Name,
			IP:       rec.IP,
			LastSent: pump.LastSent(),
			QueueLen: pump.QueueLen(),
			Stats:    pump.Stats(),
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].MAC < rows[j].MAC })
	return rows
}
