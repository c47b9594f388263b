package discovery

import (
	"net"
	"time"
)

// Host represents a device that announced itself over ARP in a capture.
type Host struct {
	IP        net.IP
	MAC       net.HardwareAddr
	FirstSeen time.Time
	Packets   int // ARP packets sent by this host
}
