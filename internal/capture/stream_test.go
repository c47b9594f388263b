package capture

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"nidwatch/internal/capture/capturetest"
	"nidwatch/internal/models"
)

func TestStreamStrategyLayerPriority(t *testing.T) {
	dir := t.TempDir()
	path := capturetest.WritePcap(t, dir, "mixed.pcap",
		capturetest.IPv4UDP(t, "10.0.0.1", "10.0.0.2", 10),
		capturetest.IPv6UDP(t, "2001:db8::1", "2001:db8::2", 10),
		capturetest.ARPRequest(t, "10.0.0.7", "10.0.0.1"),
		capturetest.EthernetOnly(t),
	)

	recs, err := NewStreamStrategy().Extract(context.Background(), path)
	if err != nil {
		t.Fatalf("Extract error: %v", err)
	}
	if len(recs) != 4 {
		t.Fatalf("got %d records, want 4", len(recs))
	}

	want := []struct{ src, dst string }{
		{"10.0.0.1", "10.0.0.2"},
		{"2001:db8::1", "2001:db8::2"},
		{"10.0.0.7", "10.0.0.1"},
		{capturetest.MacA.String(), capturetest.MacB.String()},
	}
	for i, w := range want {
		if recs[i].Src != w.src || recs[i].Dst != w.dst {
			t.Errorf("record %d = %s -> %s, want %s -> %s", i, recs[i].Src, recs[i].Dst, w.src, w.dst)
		}
	}

	base := float64(capturetest.Base.Unix())
	if recs[0].TS != base || recs[3].TS != base+3 {
		t.Errorf("timestamps = %v, %v", recs[0].TS, recs[3].TS)
	}
	if recs[0].Length <= 0 {
		t.Errorf("length = %d, want > 0", recs[0].Length)
	}
}

func TestStreamStrategyPcapng(t *testing.T) {
	path := capturetest.WritePcapng(t, t.TempDir(), "x.pcapng",
		capturetest.IPv4UDP(t, "192.168.1.1", "192.168.1.2", 20),
		capturetest.IPv4UDP(t, "192.168.1.2", "192.168.1.1", 20),
	)
	recs, err := NewStreamStrategy().Extract(context.Background(), path)
	if err != nil {
		t.Fatalf("Extract error: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2", len(recs))
	}
}

func TestStreamStrategyNotACapture(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.pcap")
	if err := os.WriteFile(path, []byte("definitely not a capture file"), 0o644); err != nil {
		t.Fatal(err)
	}
	recs, err := NewStreamStrategy().Extract(context.Background(), path)
	if !errors.Is(err, models.ErrMalformedInput) {
		t.Fatalf("err = %v, want ErrMalformedInput", err)
	}
	if len(recs) != 0 {
		t.Fatalf("got %d records", len(recs))
	}
}

func TestStreamStrategyKeepsRowsBeforeTruncation(t *testing.T) {
	dir := t.TempDir()
	path := capturetest.WritePcap(t, dir, "cut.pcap",
		capturetest.IPv4UDP(t, "10.0.0.1", "10.0.0.2", 10),
		capturetest.IPv4UDP(t, "10.0.0.3", "10.0.0.4", 200),
	)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	// Chop the tail of the second packet.
	if err := os.WriteFile(path, data[:len(data)-50], 0o644); err != nil {
		t.Fatal(err)
	}

	recs, err := NewStreamStrategy().Extract(context.Background(), path)
	if err != nil {
		t.Fatalf("Extract error: %v", err)
	}
	if len(recs) != 1 || recs[0].Src != "10.0.0.1" {
		t.Fatalf("records = %+v", recs)
	}
}

// scriptedSource replays frames and then returns a final error.
type scriptedSource struct {
	frames [][]byte
	final  error
}

func (s *scriptedSource) LinkType() layers.LinkType { return layers.LinkTypeEthernet }

func (s *scriptedSource) ReadPacketData() ([]byte, gopacket.CaptureInfo, error) {
	if len(s.frames) == 0 {
		return nil, gopacket.CaptureInfo{}, s.final
	}
	data := s.frames[0]
	s.frames = s.frames[1:]
	return data, gopacket.CaptureInfo{Timestamp: capturetest.Base, Length: len(data), CaptureLength: len(data)}, nil
}

func TestDrainIPOnlySkipsNonIP(t *testing.T) {
	src := &scriptedSource{
		frames: [][]byte{
			capturetest.ARPRequest(t, "10.0.0.7", "10.0.0.1"),
			capturetest.IPv4UDP(t, "10.0.0.1", "10.0.0.2", 0),
			{0x01, 0x02},
		},
		final: io.EOF,
	}
	recs, skipped, err := Drain(context.Background(), src, IPOnly)
	if err != nil {
		t.Fatalf("Drain error: %v", err)
	}
	if len(recs) != 1 || skipped != 2 {
		t.Fatalf("recs=%d skipped=%d, want 1 and 2", len(recs), skipped)
	}
	if recs[0].Src != "10.0.0.1" || recs[0].Dst != "10.0.0.2" || recs[0].Length <= 0 || !recs[0].HasTimestamp() {
		t.Errorf("record = %+v", recs[0])
	}
}

func TestDrainStopsOnContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	src := &scriptedSource{frames: [][]byte{capturetest.IPv4UDP(t, "10.0.0.1", "10.0.0.2", 0)}, final: io.EOF}
	recs, _, err := Drain(ctx, src, LinkLayer)
	if !errors.Is(err, context.Canceled) || len(recs) != 0 {
		t.Fatalf("recs=%d err=%v", len(recs), err)
	}
}

func TestDrainKeepsRecordsBeforeReadError(t *testing.T) {
	src := &scriptedSource{
		frames: [][]byte{
			capturetest.IPv4UDP(t, "10.0.0.1", "10.0.0.2", 10),
			capturetest.IPv6UDP(t, "2001:db8::1", "2001:db8::2", 10),
		},
		final: errors.New("truncated record"),
	}
	recs, skipped, err := Drain(context.Background(), src, LinkLayer)
	if err == nil {
		t.Fatal("expected read error")
	}
	if len(recs) != 2 || skipped != 0 {
		t.Fatalf("recs=%d skipped=%d, want 2 and 0", len(recs), skipped)
	}
	if recs[1].Src != "2001:db8::1" {
		t.Errorf("record = %+v", recs[1])
	}
}
