// Package capture reads capture files with gopacket and turns packets into
// raw rows for the normalizer.
package capture

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"nidwatch/internal/normalize"
)

// Fallback selects how far down the layer stack endpoint resolution goes.
type Fallback int

const (
	// IPOnly resolves IPv4, then IPv6.
	IPOnly Fallback = iota
	// LinkLayer additionally resolves ARP and Ethernet endpoints.
	LinkLayer
)

// Endpoints resolves a packet's source and destination. IPv4 wins; IPv6
// fills in whatever IPv4 left empty. With LinkLayer, non-IP packets fall
// back to ARP protocol addresses (hardware addresses when absent) and then
// to Ethernet MACs.
func Endpoints(pkt gopacket.Packet, fb Fallback) (src, dst string) {
	if l := pkt.Layer(layers.LayerTypeIPv4); l != nil {
		ip := l.(*layers.IPv4)
		src, dst = ipString(ip.SrcIP), ipString(ip.DstIP)
	}
	if src == "" || dst == "" {
		if l := pkt.Layer(layers.LayerTypeIPv6); l != nil {
			ip := l.(*layers.IPv6)
			if src == "" {
				src = ipString(ip.SrcIP)
			}
			if dst == "" {
				dst = ipString(ip.DstIP)
			}
		}
	}
	if src != "" || dst != "" || fb == IPOnly {
		return src, dst
	}

	if l := pkt.Layer(layers.LayerTypeARP); l != nil {
		arp := l.(*layers.ARP)
		src = protoOrHardware(arp.SourceProtAddress, arp.SourceHwAddress)
		dst = protoOrHardware(arp.DstProtAddress, arp.DstHwAddress)
		return src, dst
	}
	if l := pkt.Layer(layers.LayerTypeEthernet); l != nil {
		eth := l.(*layers.Ethernet)
		return macString(eth.SrcMAC), macString(eth.DstMAC)
	}
	return "", ""
}

// Record converts one packet into a raw row. ok is false when the packet
// has neither a source nor a destination. A panicking decoder only costs
// this packet.
func Record(pkt gopacket.Packet, fb Fallback) (rec normalize.RawRecord, ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			rec, ok, err = nil, false, fmt.Errorf("decode panic: %v", r)
		}
	}()

	src, dst := Endpoints(pkt, fb)
	if src == "" && dst == "" {
		return nil, false, nil
	}

	md := pkt.Metadata()
	length := md.Length
	if length == 0 {
		length = len(pkt.Data())
	}
	return normalize.RawRecord{
		normalize.FieldTimeEpoch: epoch(md.Timestamp),
		normalize.FieldIPSrc:     src,
		normalize.FieldIPDst:     dst,
		normalize.FieldFrameLen:  strconv.Itoa(length),
	}, true, nil
}

func epoch(ts time.Time) string {
	if ts.IsZero() {
		return ""
	}
	return strconv.FormatFloat(float64(ts.UnixNano())/1e9, 'f', -1, 64)
}

func ipString(ip net.IP) string {
	if len(ip) == 0 {
		return ""
	}
	return ip.String()
}

func macString(mac net.HardwareAddr) string {
	if len(mac) == 0 {
		return ""
	}
	return mac.String()
}

func protoOrHardware(proto, hw []byte) string {
	if len(proto) == net.IPv4len || len(proto) == net.IPv6len {
		return net.IP(proto).String()
	}
	return macString(net.HardwareAddr(hw))
}
