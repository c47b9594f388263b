package models

import "math"

// Canonical column names of a normalized packet table, in order.
const (
	ColTS     = "ts"
	ColSrc    = "src"
	ColDst    = "dst"
	ColLength = "length"
	ColTime   = "time"
	ColMinute = "minute"
)

// CanonicalColumns is the fixed output schema of the normalizer.
var CanonicalColumns = []string{ColTS, ColSrc, ColDst, ColLength}

// PacketRecord holds one normalized packet.
type PacketRecord struct {
	TS     float64 // epoch seconds, NaN when the timestamp was unparseable
	Src    string
	Dst    string
	Length int64
}

// HasTimestamp reports whether TS carries a usable value.
func (p PacketRecord) HasTimestamp() bool {
	return !math.IsNaN(p.TS) && !math.IsInf(p.TS, 0)
}

// DemoRecord is the fixed synthetic row returned in demo mode.
func DemoRecord() PacketRecord {
	return PacketRecord{TS: 0.0, Src: "0.0.0.0", Dst: "255.255.255.255", Length: 60}
}
