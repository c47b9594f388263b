package analysis

import (
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"

	"nidwatch/internal/models"
	"nidwatch/internal/preprocess"
)

// IPStat holds stats for a single IP.
type IPStat struct {
	IP      string `json:"ip"`
	Bytes   int64  `json:"bytes"`
	Packets int64  `json:"packets"`
}

// MinuteStat holds traffic volume for one minute bucket.
type MinuteStat struct {
	Minute  time.Time `json:"minute"`
	Packets int64     `json:"packets"`
	Bytes   int64     `json:"bytes"`
}

// Summary describes a resolved table.
type Summary struct {
	Packets            int          `json:"packets"`
	UniqueSources      int          `json:"unique_sources"`
	UniqueDestinations int          `json:"unique_destinations"`
	TotalBytes         int64        `json:"total_bytes"`
	LengthMean         float64      `json:"length_mean"`
	LengthStdDev       float64      `json:"length_stddev"`
	LengthMin          int64        `json:"length_min"`
	LengthMax          int64        `json:"length_max"`
	TopTalkers         []IPStat     `json:"top_talkers"`
	Timeline           []MinuteStat `json:"timeline"`
}

// TrafficStats accumulates per-packet statistics.
type TrafficStats struct {
	mu         sync.Mutex
	packets    int
	totalBytes int64
	lengths    []float64
	minLen     int64
	maxLen     int64
	srcStats   map[string]*IPStat
	dsts       map[string]struct{}
	minutes    map[time.Time]*MinuteStat
}

// NewTrafficStats creates a new TrafficStats instance.
func NewTrafficStats() *TrafficStats {
	return &TrafficStats{
		srcStats: make(map[string]*IPStat),
		dsts:     make(map[string]struct{}),
		minutes:  make(map[time.Time]*MinuteStat),
	}
}

// ProcessPacket updates stats with a new packet.
func (s *TrafficStats) ProcessPacket(pkt models.PacketRecord) {
	ts, ok := preprocess.ParseTime(pkt.TS)
	s.add(pkt, ts.Truncate(time.Minute), ok)
}

func (s *TrafficStats) add(pkt models.PacketRecord, minute time.Time, hasMinute bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.packets == 0 || pkt.Length < s.minLen {
		s.minLen = pkt.Length
	}
	if pkt.Length > s.maxLen {
		s.maxLen = pkt.Length
	}
	s.packets++
	s.totalBytes += pkt.Length
	s.lengths = append(s.lengths, float64(pkt.Length))

	// Update Top Talkers (Source IP)
	if pkt.Src != "" {
		st, ok := s.srcStats[pkt.Src]
		if !ok {
			st = &IPStat{IP: pkt.Src}
			s.srcStats[pkt.Src] = st
		}
		st.Bytes += pkt.Length
		st.Packets++
	}
	if pkt.Dst != "" {
		s.dsts[pkt.Dst] = struct{}{}
	}

	if hasMinute {
		ms, ok := s.minutes[minute]
		if !ok {
			ms = &MinuteStat{Minute: minute}
			s.minutes[minute] = ms
		}
		ms.Packets++
		ms.Bytes += pkt.Length
	}
}

// GetTotalDataTransferred returns the sum of packet lengths.
func (s *TrafficStats) GetTotalDataTransferred() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalBytes
}

// GetTopTalkers returns the top N source IPs by volume.
func (s *TrafficStats) GetTopTalkers(limit int) []IPStat {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Convert map to slice
	stats := make([]IPStat, 0, len(s.srcStats))
	for _, st := range s.srcStats {
		stats = append(stats, *st)
	}

	// Sort descending by bytes, then by IP for a stable order
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Bytes != stats[j].Bytes {
			return stats[i].Bytes > stats[j].Bytes
		}
		return stats[i].IP < stats[j].IP
	})

	// Limit results
	if limit > 0 && len(stats) > limit {
		return stats[:limit]
	}
	return stats
}

// GetTimeline returns per-minute volume in chronological order.
func (s *TrafficStats) GetTimeline() []MinuteStat {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]MinuteStat, 0, len(s.minutes))
	for _, m := range s.minutes {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Minute.Before(out[j].Minute) })
	return out
}

// Summary snapshots the accumulated statistics.
func (s *TrafficStats) Summary(topN int) Summary {
	top := s.GetTopTalkers(topN)
	timeline := s.GetTimeline()

	s.mu.Lock()
	defer s.mu.Unlock()

	sum := Summary{
		Packets:            s.packets,
		UniqueSources:      len(s.srcStats),
		UniqueDestinations: len(s.dsts),
		TotalBytes:         s.totalBytes,
		LengthMin:          s.minLen,
		LengthMax:          s.maxLen,
		TopTalkers:         top,
		Timeline:           timeline,
	}
	switch len(s.lengths) {
	case 0:
	case 1:
		sum.LengthMean = s.lengths[0]
	default:
		sum.LengthMean, sum.LengthStdDev = stat.MeanStdDev(s.lengths, nil)
	}
	return sum
}

// Summarize computes a Summary over every row of t. The timeline follows
// the minute column when the table carries one.
func Summarize(t *models.Table, topN int) Summary {
	s := NewTrafficStats()
	minutes := t.Column(models.ColMinute)
	for i, rec := range t.Records() {
		if minutes == nil {
			s.ProcessPacket(rec)
			continue
		}
		m, ok := minutes[i].(time.Time)
		s.add(rec, m, ok)
	}
	return s.Summary(topN)
}
