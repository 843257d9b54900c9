// Package bulbmodel holds the data model shared by every bridge component:
// the bulb record supplied by the external store, and the slot vector
// derived from raw DMX bytes.
package bulbmodel

import (
	"fmt"
	"strings"
)

// Record is a bulb as supplied by the external record store. The core
// treats it as read-only.
type Record struct {
	MAC     string // MAC - stable identity, canonical lowercase hex with colons.
	IP      string // IP - current IPv4 address; may change across reloads.
	Name    string // Name - human label, for logs only.
	Type    string // Type - free-form tag, not interpreted by the core.
	Channel int    // Channel - 1-based DMX starting slot.
}

// CanonicalMAC lowercases a MAC address and normalizes separators to
// colons (inserting them into an unseparated 12-digit form), so every map
// keyed by MAC uses one consistent form regardless of how the record store
// or a bulb reply formatted it.
func CanonicalMAC(mac string) string {
	mac = strings.ToLower(mac)
	mac = strings.ReplaceAll(mac, "-", ":")
	if len(mac) == 12 && !strings.Contains(mac, ":") {
		parts := make([]string, 6)
		for i := range parts {
			parts[i] = mac[2*i : 2*i+2]
		}
		mac = strings.Join(parts, ":")
	}
	return mac
}

// Slots returns the DMX slot vector occupied by this bulb: 6 consecutive
// slots starting at the configured channel.
//
// This is off by one on purpose: the first slot read is data[Channel-1],
// the remaining five are data[Channel]..data[Channel+4]. The doc says
// "starts at channel N" (1-based); the code reads starting at index N-1
// (0-based). That mismatch is preserved deliberately, not a bug.
func (r Record) Slots(data []byte) SlotVector {
	b := func(i int) uint8 {
		if i < 0 || i >= len(data) {
			return 0
		}
		return data[i]
	}

	base := r.Channel - 1
	raw := [6]uint8{
		b(base), b(base + 1), b(base + 2), b(base + 3), b(base + 4), b(base + 5),
	}

	return SlotVectorFromRaw(raw[0], raw[1], raw[2], raw[3], raw[4], raw[5])
}

// SlotVector is the semantic value derived from raw DMX bytes for one
// bulb: RGB, cool/warm white, and dimming level + on/off state.
type SlotVector struct {
	R, G, B uint8
	C, W    uint8
	Dimming uint8 // 0-100
	State   bool  // Dimming > 0
}

// SlotVectorFromRaw converts 6 raw DMX bytes (R, G, B, C, W, Dimmer) into
// the semantic slot vector used everywhere else in the bridge.
//
// dimming = round(dimmerRaw / 255 * 100), clamped to 0-100. The +127 bias
// before truncating integer division gives ordinary round-half-up.
func SlotVectorFromRaw(r, g, b, c, w, dimmerRaw uint8) SlotVector {
	dimming := (int(dimmerRaw)*100 + 127) / 255
	if dimming > 100 {
		dimming = 100
	}
	if dimming < 0 {
		dimming = 0
	}
	return SlotVector{
		R: r, G: g, B: b, C: c, W: w,
		Dimming: uint8(dimming),
		State:   dimming > 0,
	}
}

// Equal reports whether two slot vectors carry the same values (used for
// coalescing against lastSent/lastReceived).
func (v SlotVector) Equal(o SlotVector) bool {
	return v == o
}

func (v SlotVector) String() string {
	return fmt.Sprintf("r=%d g=%d b=%d c=%d w=%d dim=%d state=%v", v.R, v.G, v.B, v.C, v.W, v.Dimming, v.State)
}
