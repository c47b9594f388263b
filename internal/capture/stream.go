package capture

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"nidwatch/internal/models"
	"nidwatch/internal/normalize"
)

// PacketDataSource is a sequential packet reader with a known link type.
type PacketDataSource interface {
	gopacket.PacketDataSource
	LinkType() layers.LinkType
}

// StreamStrategy reads a capture file one packet at a time with the pure-Go
// pcapgo readers. Memory stays bounded by a single packet plus the rows
// collected so far.
type StreamStrategy struct{}

// NewStreamStrategy creates the streaming strategy.
func NewStreamStrategy() *StreamStrategy {
	return &StreamStrategy{}
}

// Name implements parser.Strategy.
func (s *StreamStrategy) Name() string { return "stream" }

// Extract implements parser.Strategy.
func (s *StreamStrategy) Extract(ctx context.Context, path string) ([]models.PacketRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open capture: %w", err)
	}
	defer f.Close()

	src, err := OpenReader(f)
	if err != nil {
		return nil, err
	}

	recs, skipped, err := Drain(ctx, src, LinkLayer)
	if err != nil {
		slog.Warn("stream reader stopped early", "path", path, "rows", len(recs), "error", err)
	}
	if skipped > 0 {
		slog.Debug("stream reader skipped packets", "path", path, "skipped", skipped)
	}
	return recs, nil
}

// OpenReader detects pcapng or classic pcap and returns a reader for it.
func OpenReader(f io.ReadSeeker) (PacketDataSource, error) {
	ng, err := pcapgo.NewNgReader(bufio.NewReader(f), pcapgo.DefaultNgReaderOptions)
	if err == nil {
		return ng, nil
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind capture: %w", err)
	}
	r, err := pcapgo.NewReader(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("%w: not a pcap or pcapng file: %v", models.ErrMalformedInput, err)
	}
	return r, nil
}

// Drain reads every packet from src and normalizes it as it goes, so only
// one packet and the finished records are held at a time. Packets that
// fail to decode or lack an endpoint pair are counted in skipped. A read
// error other than EOF ends the loop; records gathered before it are
// still returned.
func Drain(ctx context.Context, src PacketDataSource, fb Fallback) (recs []models.PacketRecord, skipped int, err error) {
	linkType := src.LinkType()
	for {
		if err := ctx.Err(); err != nil {
			return recs, skipped, err
		}
		data, ci, rerr := src.ReadPacketData()
		if errors.Is(rerr, io.EOF) {
			return recs, skipped, nil
		}
		if rerr != nil {
			return recs, skipped, rerr
		}

		pkt := gopacket.NewPacket(data, linkType, gopacket.DecodeOptions{Lazy: true, NoCopy: true})
		md := pkt.Metadata()
		md.CaptureInfo = ci
		raw, ok, derr := Record(pkt, fb)
		if derr != nil || !ok {
			skipped++
			continue
		}
		rec, ok := normalize.Record(raw)
		if !ok {
			skipped++
			continue
		}
		recs = append(recs, rec)
	}
}
