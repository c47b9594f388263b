// Package capturetest builds small capture files for tests.
package capturetest

import (
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// Base is the timestamp of the first fixture packet.
var Base = time.Unix(1700000000, 0).UTC()

var (
	MacA      = net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x0a}
	MacB      = net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x0b}
	Broadcast = net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}
)

func serialize(t testing.TB, ls ...gopacket.SerializableLayer) []byte {
	t.Helper()
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, ls...); err != nil {
		t.Fatalf("serialize: %v", err)
	}
	return buf.Bytes()
}

// IPv4UDP returns an Ethernet/IPv4/UDP frame.
func IPv4UDP(t testing.TB, src, dst string, payload int) []byte {
	t.Helper()
	eth := &layers.Ethernet{SrcMAC: MacA, DstMAC: MacB, EthernetType: layers.EthernetTypeIPv4}
	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    net.ParseIP(src).To4(),
		DstIP:    net.ParseIP(dst).To4(),
	}
	udp := &layers.UDP{SrcPort: 5353, DstPort: 53}
	if err := udp.SetNetworkLayerForChecksum(ip); err != nil {
		t.Fatalf("checksum layer: %v", err)
	}
	return serialize(t, eth, ip, udp, gopacket.Payload(make([]byte, payload)))
}

// IPv6UDP returns an Ethernet/IPv6/UDP frame.
func IPv6UDP(t testing.TB, src, dst string, payload int) []byte {
	t.Helper()
	eth := &layers.Ethernet{SrcMAC: MacA, DstMAC: MacB, EthernetType: layers.EthernetTypeIPv6}
	ip := &layers.IPv6{
		Version:    6,
		HopLimit:   64,
		NextHeader: layers.IPProtocolUDP,
		SrcIP:      net.ParseIP(src),
		DstIP:      net.ParseIP(dst),
	}
	udp := &layers.UDP{SrcPort: 5353, DstPort: 53}
	if err := udp.SetNetworkLayerForChecksum(ip); err != nil {
		t.Fatalf("checksum layer: %v", err)
	}
	return serialize(t, eth, ip, udp, gopacket.Payload(make([]byte, payload)))
}

// ARPRequest returns a broadcast who-has frame from srcIP for dstIP.
func ARPRequest(t testing.TB, srcIP, dstIP string) []byte {
	t.Helper()
	eth := &layers.Ethernet{SrcMAC: MacA, DstMAC: Broadcast, EthernetType: layers.EthernetTypeARP}
	arp := &layers.ARP{
		AddrType:          layers.LinkTypeEthernet,
		Protocol:          layers.EthernetTypeIPv4,
		HwAddressSize:     6,
		ProtAddressSize:   4,
		Operation:         layers.ARPRequest,
		SourceHwAddress:   []byte(MacA),
		SourceProtAddress: []byte(net.ParseIP(srcIP).To4()),
		DstHwAddress:      []byte{0, 0, 0, 0, 0, 0},
		DstProtAddress:    []byte(net.ParseIP(dstIP).To4()),
	}
	return serialize(t, eth, arp)
}

// ARPReply returns an ARP reply sent by mac announcing srcIP to MacA.
func ARPReply(t testing.TB, srcIP, dstIP string, mac net.HardwareAddr) []byte {
	t.Helper()
	eth := &layers.Ethernet{SrcMAC: mac, DstMAC: MacA, EthernetType: layers.EthernetTypeARP}
	arp := &layers.ARP{
		AddrType:          layers.LinkTypeEthernet,
		Protocol:          layers.EthernetTypeIPv4,
		HwAddressSize:     6,
		ProtAddressSize:   4,
		Operation:         layers.ARPReply,
		SourceHwAddress:   []byte(mac),
		SourceProtAddress: []byte(net.ParseIP(srcIP).To4()),
		DstHwAddress:      []byte(MacA),
		DstProtAddress:    []byte(net.ParseIP(dstIP).To4()),
	}
	return serialize(t, eth, arp)
}

// EthernetOnly returns a frame with an unknown EtherType and no upper layers.
func EthernetOnly(t testing.TB) []byte {
	t.Helper()
	eth := &layers.Ethernet{SrcMAC: MacA, DstMAC: MacB, EthernetType: layers.EthernetType(0x88b5)}
	return serialize(t, eth, gopacket.Payload(make([]byte, 46)))
}

// WritePcap writes frames to dir/name as a classic pcap, one second apart
// starting at Base, and returns the path.
func WritePcap(t testing.TB, dir, name string, frames ...[]byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create pcap: %v", err)
	}
	defer f.Close()

	w := pcapgo.NewWriter(f)
	if err := w.WriteFileHeader(65536, layers.LinkTypeEthernet); err != nil {
		t.Fatalf("pcap header: %v", err)
	}
	for i, data := range frames {
		ci := gopacket.CaptureInfo{
			Timestamp:     Base.Add(time.Duration(i) * time.Second),
			CaptureLength: len(data),
			Length:        len(data),
		}
		if err := w.WritePacket(ci, data); err != nil {
			t.Fatalf("write packet %d: %v", i, err)
		}
	}
	return path
}

// WritePcapng writes frames as a pcapng file.
func WritePcapng(t testing.TB, dir, name string, frames ...[]byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create pcapng: %v", err)
	}
	defer f.Close()

	w, err := pcapgo.NewNgWriter(f, layers.LinkTypeEthernet)
	if err != nil {
		t.Fatalf("pcapng writer: %v", err)
	}
	for i, data := range frames {
		ci := gopacket.CaptureInfo{
			Timestamp:     Base.Add(time.Duration(i) * time.Second),
			CaptureLength: len(data),
			Length:        len(data),
		}
		if err := w.WritePacket(ci, data); err != nil {
			t.Fatalf("write packet %d: %v", i, err)
		}
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("flush pcapng: %v", err)
	}
	return path
}
