package bulbmodel

import "testing"

func TestSlotVectorFromRaw_DimmingBoundaries(t *testing.T) {
	cases := []struct {
		raw     uint8
		dimming uint8
		state   bool
	}{
		{0, 0, false},
		{255, 100, true},
		{127, 50, true},
	}

	for _, c := range cases {
		v := SlotVectorFromRaw(0, 0, 0, 0, 0, c.raw)
		if v.Dimming != c.dimming {
			t.Errorf("raw=%d: dimming = %d, want %d", c.raw, v.Dimming, c.dimming)
		}
		if v.State != c.state {
			t.Errorf("raw=%d: state = %v, want %v", c.raw, v.State, c.state)
		}
	}
}

func TestRecord_Slots_OffByOneChannelOffset(t *testing.T) {
	r := Record{Channel: 1}
	data := make([]byte, 10)
	// channel-1 .. channel+4 = indices 0..5
	data[0] = 255 // R
	data[1] = 10  // G
	data[2] = 20  // B
	data[3] = 30  // C
	data[4] = 40  // W
	data[5] = 255 // Dimmer

	v := r.Slots(data)
	if v.R != 255 || v.G != 10 || v.B != 20 || v.C != 30 || v.W != 40 {
		t.Fatalf("unexpected slot vector: %+v", v)
	}
	if v.Dimming != 100 || !v.State {
		t.Fatalf("unexpected dimming/state: %+v", v)
	}
}

func TestRecord_Slots_OutOfRangeReadsAsZero(t *testing.T) {
	r := Record{Channel: 510}
	data := make([]byte, 512)
	v := r.Slots(data)
	if v != (SlotVector{}) {
		t.Fatalf("expected all-zero vector for out-of-range channel, got %+v", v)
	}
}

func TestCanonicalMAC(t *testing.T) {
	got := CanonicalMAC("AA-BB-CC-DD-EE-01")
	want := "aa:bb:cc:dd:ee:01"
	if got != want {
		t.Errorf("CanonicalMAC() = %q, want %q", got, want)
	}
}
