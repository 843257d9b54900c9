package wiz

import (
	"net"
	"testing"
	"time"

	"wizbridge/internal/bulbmodel"
	"wizbridge/internal/config"
	"wizbridge/internal/logger"
)

func testLog(t *testing.T) *logger.Log {
	t.Helper()
	log, err := logger.NewLogger(config.LogConf{Level: "debug"})
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	return log
}

func listenLoopback(t *testing.T) *net.UDPConn {
	t.Helper()
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	if err != nil {
		t.Fatalf("ListenUDP() error = %v", err)
	}
	return conn
}

func TestCodec_SetPilot_SuppressesOffWithoutStateChange(t *testing.T) {
	bulb := listenLoopback(t)
	defer bulb.Close()

	conn := listenLoopback(t)
	defer conn.Close()

	codec := NewCodec(conn, bulb.LocalAddr().(*net.UDPAddr).Port, testLog(t))

	v := bulbmodel.SlotVectorFromRaw(0, 0, 0, 0, 0, 0) // state=false
	sent, err := codec.SetPilot(bulb.LocalAddr().(*net.UDPAddr).IP.String(), v, false)
	if err != nil {
		t.Fatalf("SetPilot() error = %v", err)
	}
	if sent {
		t.Error("SetPilot() transmitted = true, want false (suppressed)")
	}

	bulb.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	buf := make([]byte, 512)
	if _, _, err := bulb.ReadFromUDP(buf); err == nil {
		t.Error("expected no datagram to arrive, got one")
	}
}

func TestCodec_SetPilot_SendsOffTransition(t *testing.T) {
	bulb := listenLoopback(t)
	defer bulb.Close()

	conn := listenLoopback(t)
	defer conn.Close()

	codec := NewCodec(conn, bulb.LocalAddr().(*net.UDPAddr).Port, testLog(t))

	v := bulbmodel.SlotVectorFromRaw(0, 0, 0, 0, 0, 0)
	sent, err := codec.SetPilot(bulb.LocalAddr().(*net.UDPAddr).IP.String(), v, true)
	if err != nil {
		t.Fatalf("SetPilot() error = %v", err)
	}
	if !sent {
		t.Fatal("SetPilot() transmitted = false, want true (off-transition)")
	}

	bulb.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 512)
	n, _, err := bulb.ReadFromUDP(buf)
	if err != nil {
		t.Fatalf("ReadFromUDP() error = %v", err)
	}
	reply, err := DecodeReply(buf[:n])
	if err != nil {
		t.Fatalf("DecodeReply() error = %v", err)
	}
	if reply.Method != "setPilot" {
		t.Errorf("Method = %q, want setPilot", reply.Method)
	}
}
