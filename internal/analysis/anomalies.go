package analysis

import (
	"fmt"
	"sync"
	"time"

	"nidwatch/internal/models"
	"nidwatch/internal/preprocess"
)

// AnomalyType represents the type of anomaly detected.
type AnomalyType string

const (
	AnomalyOversized      AnomalyType = "OVERSIZED_PACKET"
	AnomalyBroadcastStorm AnomalyType = "BROADCAST_STORM"
	AnomalyDoS            AnomalyType = "POSSIBLE_DOS"
)

// Config holds configuration for the anomaly detector. Rates are measured
// against capture timestamps, not wall-clock time.
type Config struct {
	OversizeThreshold  int64         // Bytes
	BroadcastThreshold int           // Broadcasts per capture second
	DoSThreshold       int           // Packets per capture second per source
	OversizeCooldown   time.Duration // Per-source cooldown for oversize alerts
	MaxAlerts          int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		OversizeThreshold:  1400,
		BroadcastThreshold: 50,
		DoSThreshold:       500,
		OversizeCooldown:   10 * time.Second,
		MaxAlerts:          20,
	}
}

// Alert represents a detected security anomaly.
type Alert struct {
	Type      AnomalyType
	Source    string // IP or source identifier
	Message   string // Human-readable description
	Timestamp time.Time
}

// AnomalyDetector flags suspicious patterns in a packet table.
type AnomalyDetector struct {
	mu sync.Mutex

	config Config

	// Broadcast Storm Detection
	broadcastCount  int
	broadcastWindow time.Time

	// Oversized packets (throttled per source)
	oversized     int
	oversizeAlert map[string]time.Time

	// DoS Detection (per-source packet rate)
	ipPacketCount map[string]int
	ipWindow      map[string]time.Time

	// Alert History (circular buffer)
	alerts []Alert
	counts map[AnomalyType]int
}

// NewAnomalyDetector creates a new anomaly detection engine.
func NewAnomalyDetector(cfg Config) *AnomalyDetector {
	if cfg.MaxAlerts <= 0 {
		cfg.MaxAlerts = DefaultConfig().MaxAlerts
	}
	return &AnomalyDetector{
		config:        cfg,
		oversizeAlert: make(map[string]time.Time),
		ipPacketCount: make(map[string]int),
		ipWindow:      make(map[string]time.Time),
		alerts:        make([]Alert, 0),
		counts:        make(map[AnomalyType]int),
	}
}

// ProcessPacket analyzes a packet for anomalies.
func (ad *AnomalyDetector) ProcessPacket(pkt models.PacketRecord) {
	ad.mu.Lock()
	defer ad.mu.Unlock()

	ts, hasTS := preprocess.ParseTime(pkt.TS)

	// Rule 1: Oversized packets
	ad.detectOversized(pkt, ts, hasTS)

	// Rate rules need a capture timestamp.
	if !hasTS {
		return
	}

	// Rule 2: Broadcast Storm Detection
	ad.detectBroadcastStorm(pkt, ts)

	// Rule 3: DoS Pattern Detection
	ad.detectDoS(pkt, ts)
}

func (ad *AnomalyDetector) detectOversized(pkt models.PacketRecord, ts time.Time, hasTS bool) {
	if pkt.Length <= ad.config.OversizeThreshold {
		return
	}
	ad.oversized++

	last, seen := ad.oversizeAlert[pkt.Src]
	if seen && hasTS && ts.Sub(last) < ad.config.OversizeCooldown {
		return
	}
	if seen && !hasTS {
		return
	}
	ad.addAlert(Alert{
		Type:      AnomalyOversized,
		Source:    pkt.Src,
		Message:   fmt.Sprintf("Packet of %d bytes from %s to %s exceeds %d bytes", pkt.Length, pkt.Src, pkt.Dst, ad.config.OversizeThreshold),
		Timestamp: ts,
	})
	ad.oversizeAlert[pkt.Src] = ts
}

func isBroadcast(dst string) bool {
	return dst == "255.255.255.255" || dst == "ff:ff:ff:ff:ff:ff"
}

// detectBroadcastStorm checks for excessive broadcast packets.
func (ad *AnomalyDetector) detectBroadcastStorm(pkt models.PacketRecord, now time.Time) {
	if !isBroadcast(pkt.Dst) {
		return
	}
	// Reset counter if window expired
	if ad.broadcastWindow.IsZero() || now.Sub(ad.broadcastWindow) > time.Second {
		ad.broadcastCount = 0
		ad.broadcastWindow = now
	}

	ad.broadcastCount++

	// Trigger alert if threshold exceeded
	if ad.broadcastCount > ad.config.BroadcastThreshold {
		ad.addAlert(Alert{
			Type:      AnomalyBroadcastStorm,
			Source:    "Network",
			Message:   fmt.Sprintf("Broadcast storm detected: %d broadcasts in 1 second", ad.broadcastCount),
			Timestamp: now,
		})
		// Reset to avoid spam
		ad.broadcastCount = 0
		ad.broadcastWindow = now
	}
}

// detectDoS checks for single-source high packet rate.
func (ad *AnomalyDetector) detectDoS(pkt models.PacketRecord, now time.Time) {
	if pkt.Src == "" {
		return
	}

	// Initialize window if not exists
	if _, exists := ad.ipWindow[pkt.Src]; !exists {
		ad.ipWindow[pkt.Src] = now
		ad.ipPacketCount[pkt.Src] = 0
	}

	// Reset counter if window expired
	if now.Sub(ad.ipWindow[pkt.Src]) > time.Second {
		ad.ipPacketCount[pkt.Src] = 0
		ad.ipWindow[pkt.Src] = now
	}

	ad.ipPacketCount[pkt.Src]++

	if ad.ipPacketCount[pkt.Src] > ad.config.DoSThreshold {
		ad.addAlert(Alert{
			Type:      AnomalyDoS,
			Source:    pkt.Src,
			Message:   fmt.Sprintf("High packet rate from %s: %d pps", pkt.Src, ad.ipPacketCount[pkt.Src]),
			Timestamp: now,
		})
		ad.ipPacketCount[pkt.Src] = 0
		ad.ipWindow[pkt.Src] = now
	}
}

// addAlert adds an alert to the history (circular buffer).
func (ad *AnomalyDetector) addAlert(alert Alert) {
	ad.counts[alert.Type]++
	ad.alerts = append(ad.alerts, alert)

	// Keep only last MaxAlerts
	if len(ad.alerts) > ad.config.MaxAlerts {
		ad.alerts = ad.alerts[len(ad.alerts)-ad.config.MaxAlerts:]
	}
}

// GetRecentAlerts returns the most recent alerts, newest last.
func (ad *AnomalyDetector) GetRecentAlerts(limit int) []Alert {
	ad.mu.Lock()
	defer ad.mu.Unlock()

	start := 0
	if limit > 0 && len(ad.alerts) > limit {
		start = len(ad.alerts) - limit
	}

	// Make a copy to avoid race conditions
	result := make([]Alert, len(ad.alerts)-start)
	copy(result, ad.alerts[start:])
	return result
}

// OversizedPackets returns how many packets exceeded the size threshold.
func (ad *AnomalyDetector) OversizedPackets() int {
	ad.mu.Lock()
	defer ad.mu.Unlock()
	return ad.oversized
}

// AlertCounts returns the number of alerts raised per type, including
// alerts that have rotated out of the history.
func (ad *AnomalyDetector) AlertCounts() map[AnomalyType]int {
	ad.mu.Lock()
	defer ad.mu.Unlock()

	out := make(map[AnomalyType]int, len(ad.counts))
	for k, v := range ad.counts {
		out[k] = v
	}
	return out
}

// DetectAnomalies runs the detector over every row of t.
func DetectAnomalies(t *models.Table, cfg Config) *AnomalyDetector {
	ad := NewAnomalyDetector(cfg)
	for _, rec := range t.Records() {
		ad.ProcessPacket(rec)
	}
	return ad
}

// OversizedRows returns the rows of t whose length exceeds threshold, with
// every column kept. A table without a length column yields no rows.
func OversizedRows(t *models.Table, threshold int64) *models.Table {
	out := models.NewTable(t.Columns...)
	idx := t.ColumnIndex(models.ColLength)
	if idx < 0 {
		return out
	}
	for _, row := range t.Rows {
		if models.Length(row[idx]) > threshold {
			out.Rows = append(out.Rows, append([]any(nil), row...))
		}
	}
	return out
}
