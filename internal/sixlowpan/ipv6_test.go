package sixlowpan_test

import (
	"testing"

	"github.com/mistlib/lowpan154/internal/buffer"
	"github.com/mistlib/lowpan154/internal/sixlowpan"
)

func TestIPv6PacketRoundTrip(t *testing.T) {
	t.Parallel()

	src := [16]byte{0x20, 0x01, 0x0d, 0xb8, 0x33, 0x33, 0x44, 0x44, 0x55, 0x55, 0x66, 0x66, 0x77, 0x77, 0x88, 0x88}
	dst := [16]byte{0x20, 0x01, 0x0d, 0xb8, 0x33, 0x33, 0x44, 0x44, 0xcc, 0xcc, 0xdd, 0xdd, 0xee, 0xee, 0xff, 0xff}

	buf := buffer.New(make([]byte, sixlowpan.IPv6HeaderLen+5))
	v, err := sixlowpan.NewIPv6Packet(buf, 0, 0, 0x3B, 22, src, dst, 5)
	if err != nil {
		t.Fatalf("NewIPv6Packet: %v", err)
	}
	if _, err := buf.AppendBytes([]byte("howdy")); err != nil {
		t.Fatalf("AppendBytes: %v", err)
	}
	_ = v

	parsed, err := sixlowpan.ParseIPv6Packet(buf, 0)
	if err != nil {
		t.Fatalf("ParseIPv6Packet: %v", err)
	}
	if parsed.TrafficClass() != 0 {
		t.Errorf("TrafficClass = %d, want 0", parsed.TrafficClass())
	}
	if parsed.FlowLabel() != 0 {
		t.Errorf("FlowLabel = %d, want 0", parsed.FlowLabel())
	}
	if parsed.NextHeader() != 0x3B {
		t.Errorf("NextHeader = %#x, want 0x3B", parsed.NextHeader())
	}
	if parsed.HopLimit() != 22 {
		t.Errorf("HopLimit = %d, want 22", parsed.HopLimit())
	}
	if parsed.Src() != src {
		t.Errorf("Src = % x, want % x", parsed.Src(), src)
	}
	if parsed.Dst() != dst {
		t.Errorf("Dst = % x, want % x", parsed.Dst(), dst)
	}
	payload, err := parsed.Payload(0, sixlowpan.IPv6HeaderLen+5)
	if err != nil {
		t.Fatalf("Payload: %v", err)
	}
	if string(payload) != "howdy" {
		t.Errorf("Payload = %q, want %q", payload, "howdy")
	}
}

func TestParseIPv6PacketRejectsBadVersion(t *testing.T) {
	t.Parallel()

	buf := buffer.New(make([]byte, sixlowpan.IPv6HeaderLen))
	if _, err := buf.AppendBytes(make([]byte, sixlowpan.IPv6HeaderLen)); err != nil {
		t.Fatalf("AppendBytes: %v", err)
	}
	if _, err := sixlowpan.ParseIPv6Packet(buf, 0); err == nil {
		t.Fatalf("ParseIPv6Packet: want error for version 0")
	}
}
