package netio

import (
	"context"
	"net"
	"testing"
	"time"
)

func TestListenUDP_ReceivesDatagram(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l, err := ListenUDP(ctx, 0, 4)
	if err != nil {
		t.Fatalf("ListenUDP() error = %v", err)
	}
	defer l.Close()

	addr := l.Conn().LocalAddr().(*net.UDPAddr)

	sender, err := net.DialUDP("udp4", nil, addr)
	if err != nil {
		t.Fatalf("DialUDP() error = %v", err)
	}
	defer sender.Close()

	if _, err := sender.Write([]byte("hello")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	select {
	case d := <-l.Datagrams():
		if string(d.Data) != "hello" {
			t.Errorf("Data = %q, want %q", d.Data, "hello")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for datagram")
	}
}

func TestReplyRouter_RoutesBySourceIP(t *testing.T) {
	in := make(chan Datagram, 4)
	r := NewReplyRouter(in)

	ch, cancel := r.Subscribe("192.168.1.10")
	defer cancel()

	in <- Datagram{Data: []byte("for-us"), Src: &net.UDPAddr{IP: net.ParseIP("192.168.1.10")}}
	in <- Datagram{Data: []byte("not-for-us"), Src: &net.UDPAddr{IP: net.ParseIP("192.168.1.11")}}

	select {
	case d := <-ch:
		if string(d.Data) != "for-us" {
			t.Errorf("Data = %q, want %q", d.Data, "for-us")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for routed datagram")
	}

	select {
	case d := <-ch:
		t.Fatalf("unexpected second datagram routed to subscriber: %q", d.Data)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestReplyRouter_UnsubscribeStopsDelivery(t *testing.T) {
	in := make(chan Datagram, 4)
	r := NewReplyRouter(in)

	ch, cancel := r.Subscribe("192.168.1.10")
	cancel()

	in <- Datagram{Data: []byte("late"), Src: &net.UDPAddr{IP: net.ParseIP("192.168.1.10")}}

	select {
	case d := <-ch:
		t.Fatalf("unexpected datagram after unsubscribe: %q", d.Data)
	case <-time.After(100 * time.Millisecond):
	}
}
