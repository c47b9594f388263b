//go:build cgo

package libpcap

import "github.com/google/gopacket/pcap"

// OpenOffline opens path with libpcap.
func OpenOffline(path string) (Source, error) {
	h, err := pcap.OpenOffline(path)
	if err != nil {
		return nil, err
	}
	return h, nil
}

var _ Source = (*pcap.Handle)(nil)
