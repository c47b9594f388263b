// Package discovery builds an inventory of hosts from the ARP traffic in a
// capture file.
package discovery

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sort"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"nidwatch/internal/capture"
)

// ScanFile reads the capture at path and returns the hosts seen as ARP
// senders, sorted by IP.
func ScanFile(ctx context.Context, path string) ([]Host, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open capture: %w", err)
	}
	defer f.Close()

	src, err := capture.OpenReader(f)
	if err != nil {
		return nil, err
	}
	return Scan(ctx, src)
}

// Scan collects ARP sender addresses from src. Probes with an unspecified
// sender address are ignored. When an IP is claimed by more than one MAC the
// first one wins.
func Scan(ctx context.Context, src capture.PacketDataSource) ([]Host, error) {
	// Map to store unique hosts
	discoveredHosts := make(map[string]*Host)

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, ci, err := src.ReadPacketData()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// Keep what was read before the damaged record.
			break
		}

		packet := gopacket.NewPacket(data, src.LinkType(), gopacket.DecodeOptions{Lazy: true, NoCopy: true})
		arpLayer := packet.Layer(layers.LayerTypeARP)
		if arpLayer == nil {
			continue
		}
		arp := arpLayer.(*layers.ARP)
		if len(arp.SourceProtAddress) != net.IPv4len {
			continue
		}

		ip := net.IP(append([]byte(nil), arp.SourceProtAddress...))
		if ip.IsUnspecified() {
			continue
		}

		if host, exists := discoveredHosts[ip.String()]; exists {
			host.Packets++
			continue
		}
		discoveredHosts[ip.String()] = &Host{
			IP:        ip,
			MAC:       net.HardwareAddr(append([]byte(nil), arp.SourceHwAddress...)),
			FirstSeen: ci.Timestamp.UTC(),
			Packets:   1,
		}
	}

	// Convert map to slice
	result := make([]Host, 0, len(discoveredHosts))
	for _, host := range discoveredHosts {
		result = append(result, *host)
	}

	// Sort by IP
	sort.Slice(result, func(i, j int) bool {
		return bytes.Compare(result[i].IP, result[j].IP) < 0
	})

	return result, nil
}
