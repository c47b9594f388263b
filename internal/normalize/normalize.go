// Package normalize maps strategy-specific raw rows onto the canonical
// ts/src/dst/length packet schema.
package normalize

import (
	"math"
	"strconv"
	"strings"

	"nidwatch/internal/models"
)

// Raw capture field names understood by Normalize.
const (
	FieldTimeEpoch = "frame.time_epoch"
	FieldIPSrc     = "ip.src"
	FieldIPDst     = "ip.dst"
	FieldIPv6Src   = "ipv6.src"
	FieldIPv6Dst   = "ipv6.dst"
	FieldFrameLen  = "frame.len"
)

// RawRecord is one extracted row keyed by capture field name. Missing
// keys and empty values are both null.
type RawRecord map[string]string

// Normalize converts raw rows into packet records. Rows without both a
// source and a destination after IPv4/IPv6 coalescing are dropped.
func Normalize(raw []RawRecord) []models.PacketRecord {
	out := make([]models.PacketRecord, 0, len(raw))
	for _, r := range raw {
		if rec, ok := Record(r); ok {
			out = append(out, rec)
		}
	}
	return out
}

// Record converts a single raw row. ok is false when the row lacks a
// source or a destination.
func Record(r RawRecord) (rec models.PacketRecord, ok bool) {
	src := coalesce(r.get(FieldIPSrc), r.get(FieldIPv6Src))
	dst := coalesce(r.get(FieldIPDst), r.get(FieldIPv6Dst))
	if src == "" || dst == "" {
		return models.PacketRecord{}, false
	}
	return models.PacketRecord{
		TS:     parseTimestamp(r.get(FieldTimeEpoch)),
		Src:    src,
		Dst:    dst,
		Length: models.Length(r.get(FieldFrameLen)),
	}, true
}

// get returns the first occurrence of a possibly multi-valued field.
func (r RawRecord) get(key string) string {
	v := strings.TrimSpace(r[key])
	if i := strings.IndexByte(v, ','); i >= 0 {
		v = strings.TrimSpace(v[:i])
	}
	return v
}

func coalesce(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func parseTimestamp(s string) float64 {
	if s == "" {
		return math.NaN()
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) {
		return math.NaN()
	}
	return f
}
