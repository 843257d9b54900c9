package discovery

import (
	"context"
	"net"
	"testing"
	"time"
)

func openLoopback(t *testing.T) *net.UDPConn {
	t.Helper()
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	if err != nil {
		t.Fatalf("ListenUDP() error = %v", err)
	}
	return conn
}

func sendReply(t *testing.T, dst *net.UDPAddr, body string) {
	t.Helper()
	sender := openLoopback(t)
	defer sender.Close()
	if _, err := sender.WriteToUDP([]byte(body), dst); err != nil {
		t.Fatalf("WriteToUDP() error = %v", err)
	}
}

func TestCollect_DeduplicatesByMAC(t *testing.T) {
	receiver := openLoopback(t)
	defer receiver.Close()
	dst := receiver.LocalAddr().(*net.UDPAddr)

	body1 := `{"method":"getPilot","result":{"mac":"aabbccddee01","ip":"192.168.1.10","state":true,"rssi":-60,"dimming":80}}`
	body2 := `{"method":"getPilot","result":{"mac":"aabbccddee02","ip":"192.168.1.11","state":false,"rssi":-55,"dimming":0}}`

	go func() {
		sendReply(t, dst, body1)
		sendReply(t, dst, body1) // duplicate reply, same MAC
		sendReply(t, dst, body2)
		sendReply(t, dst, body2) // duplicate reply, same MAC
	}()

	results := Collect(context.Background(), receiver, 500*time.Millisecond)
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}

	byMAC := map[string]Result{}
	for _, r := range results {
		byMAC[r.MAC] = r
	}
	if _, ok := byMAC["aa:bb:cc:dd:ee:01"]; !ok {
		t.Error("missing aa:bb:cc:dd:ee:01")
	}
	if _, ok := byMAC["aa:bb:cc:dd:ee:02"]; !ok {
		t.Error("missing aa:bb:cc:dd:ee:02")
	}
}

func TestCollect_IgnoresMalformedDatagrams(t *testing.T) {
	receiver := openLoopback(t)
	defer receiver.Close()
	dst := receiver.LocalAddr().(*net.UDPAddr)

	go func() {
		sendReply(t, dst, `not json at all`)
		sendReply(t, dst, `{"method":"setPilot","result":{"success":true}}`)
		sendReply(t, dst, `{"method":"getPilot","result":{"mac":"aabbccddee03","state":true}}`)
	}()

	results := Collect(context.Background(), receiver, 500*time.Millisecond)
	if len(results) != 1 {
		t.Fatalf("len(results) = %d, want 1", len(results))
	}
	if results[0].MAC != "aa:bb:cc:dd:ee:03" {
		t.Errorf("MAC = %q, want aa:bb:cc:dd:ee:03", results[0].MAC)
	}
}

func TestCollect_ReturnsEmptyWhenNoReplies(t *testing.T) {
	receiver := openLoopback(t)
	defer receiver.Close()

	results := Collect(context.Background(), receiver, 100*time.Millisecond)
	if len(results) != 0 {
		t.Errorf("len(results) = %d, want 0", len(results))
	}
}
