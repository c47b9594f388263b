package reporting

import (
	"fmt"
	"html"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"nidwatch/internal/analysis"
	"nidwatch/internal/discovery"
)

// ReportData is everything a session report renders.
type ReportData struct {
	File             string
	Source           string
	Note             string
	Summary          analysis.Summary
	Alerts           []analysis.Alert
	AlertCounts      map[analysis.AnomalyType]int
	OversizedPackets int
	Hosts            []discovery.Host
	Generated        time.Time
}

// GenerateSessionReport writes a report of one resolved file into dir and
// returns the path written. Supported formats are "html" and "yaml".
func GenerateSessionReport(dir, format string, data ReportData) (string, error) {
	var render func(ReportData) ([]byte, error)
	switch format {
	case "html":
		render = renderHTML
	case "yaml":
		render = renderYAML
	default:
		return "", fmt.Errorf("unsupported format: %s", format)
	}

	if data.Generated.IsZero() {
		data.Generated = time.Now()
	}
	timestamp := data.Generated.Format("20060102_150405")
	filename := filepath.Join(dir, fmt.Sprintf("report_%s.%s", timestamp, format))

	content, err := render(data)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(filename, content, 0o644); err != nil {
		return "", err
	}
	return filename, nil
}

func renderHTML(data ReportData) ([]byte, error) {
	sum := data.Summary
	source := data.Source
	if source == "" {
		source = "none"
	}

	out := fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>nidwatch Session Report - %s</title>
    <style>
        body { font-family: sans-serif; margin: 20px; color: #333; }
        h1, h2 { color: #2c3e50; }
        table { width: 100%%; border-collapse: collapse; margin-bottom: 20px; }
        th, td { border: 1px solid #ddd; padding: 8px; text-align: left; }
        th { background-color: #f2f2f2; }
        tr:nth-child(even) { background-color: #f9f9f9; }
        .summary { background: #eef; padding: 15px; border-radius: 5px; margin-bottom: 20px; }
        .alert { color: #d9534f; font-weight: bold; }
    </style>
</head>
<body>
    <h1>nidwatch Session Report</h1>
    <div class="summary">
        <p><strong>Date:</strong> %s</p>
        <p><strong>File:</strong> %s</p>
        <p><strong>Parsed by:</strong> %s</p>
        <p><strong>Packets:</strong> %d</p>
        <p><strong>Unique sources / destinations:</strong> %d / %d</p>
        <p><strong>Total Data Transferred:</strong> %s</p>
        <p><strong>Packet length:</strong> mean %.1f, stddev %.1f, min %d, max %d</p>
        <p><strong>Oversized packets:</strong> %d</p>
`, data.Generated.Format("20060102_150405"), data.Generated.Format(time.RFC1123),
		html.EscapeString(data.File), html.EscapeString(source),
		sum.Packets, sum.UniqueSources, sum.UniqueDestinations, formatBytes(sum.TotalBytes),
		sum.LengthMean, sum.LengthStdDev, sum.LengthMin, sum.LengthMax, data.OversizedPackets)

	if data.Note != "" {
		out += fmt.Sprintf("        <p><strong>Note:</strong> %s</p>\n", html.EscapeString(data.Note))
	}

	out += `    </div>

    <h2>Top Talkers</h2>
    <table>
        <thead>
            <tr>
                <th>Address</th>
                <th>Packets</th>
                <th>Data Transferred (Bytes)</th>
            </tr>
        </thead>
        <tbody>
`
	if len(sum.TopTalkers) == 0 {
		out += "            <tr><td colspan=\"3\">No source addresses in this file.</td></tr>\n"
	}
	for _, talker := range sum.TopTalkers {
		out += fmt.Sprintf("            <tr><td>%s</td><td>%d</td><td>%d</td></tr>\n",
			html.EscapeString(talker.IP), talker.Packets, talker.Bytes)
	}

	out += `        </tbody>
    </table>

    <h2>Security Alerts</h2>
    <table>
        <thead>
            <tr>
                <th>Capture Time</th>
                <th>Type</th>
                <th>Source</th>
                <th>Message</th>
            </tr>
        </thead>
        <tbody>
`
	if len(data.Alerts) == 0 {
		out += "            <tr><td colspan=\"4\">No alerts triggered for this file.</td></tr>\n"
	} else {
		for _, alert := range data.Alerts {
			out += fmt.Sprintf("            <tr><td>%s</td><td class=\"alert\">%s</td><td>%s</td><td>%s</td></tr>\n",
				formatTime(alert.Timestamp), alert.Type, html.EscapeString(alert.Source), html.EscapeString(alert.Message))
		}
	}

	out += `        </tbody>
    </table>

    <h2>Traffic per Minute</h2>
    <table>
        <thead>
            <tr>
                <th>Minute (UTC)</th>
                <th>Packets</th>
                <th>Bytes</th>
            </tr>
        </thead>
        <tbody>
`
	if len(sum.Timeline) == 0 {
		out += "            <tr><td colspan=\"3\">No timestamped packets.</td></tr>\n"
	}
	for _, m := range sum.Timeline {
		out += fmt.Sprintf("            <tr><td>%s</td><td>%d</td><td>%d</td></tr>\n",
			m.Minute.Format("2006-01-02 15:04"), m.Packets, m.Bytes)
	}

	out += `        </tbody>
    </table>
`
	if len(data.Hosts) > 0 {
		out += `
    <h2>ARP Host Inventory</h2>
    <table>
        <thead>
            <tr>
                <th>First Seen</th>
                <th>IP Address</th>
                <th>MAC Address</th>
                <th>ARP Packets</th>
            </tr>
        </thead>
        <tbody>
`
		for _, h := range data.Hosts {
			out += fmt.Sprintf("            <tr><td>%s</td><td>%s</td><td>%s</td><td>%d</td></tr>\n",
				formatTime(h.FirstSeen), h.IP, h.MAC, h.Packets)
		}
		out += `        </tbody>
    </table>
`
	}

	out += `</body>
</html>`

	return []byte(out), nil
}

type yamlAlert struct {
	Type    string `yaml:"type"`
	Source  string `yaml:"source"`
	Message string `yaml:"message"`
	Time    string `yaml:"time,omitempty"`
}

type yamlTalker struct {
	Address string `yaml:"address"`
	Packets int64  `yaml:"packets"`
	Bytes   int64  `yaml:"bytes"`
}

type yamlHost struct {
	IP        string `yaml:"ip"`
	MAC       string `yaml:"mac"`
	FirstSeen string `yaml:"first_seen,omitempty"`
	Packets   int    `yaml:"arp_packets"`
}

type yamlReport struct {
	Generated          string         `yaml:"generated"`
	File               string         `yaml:"file"`
	Source             string         `yaml:"source"`
	Note               string         `yaml:"note,omitempty"`
	Packets            int            `yaml:"packets"`
	UniqueSources      int            `yaml:"unique_sources"`
	UniqueDestinations int            `yaml:"unique_destinations"`
	TotalBytes         int64          `yaml:"total_bytes"`
	LengthMean         float64        `yaml:"length_mean"`
	LengthStdDev       float64        `yaml:"length_stddev"`
	LengthMin          int64          `yaml:"length_min"`
	LengthMax          int64          `yaml:"length_max"`
	OversizedPackets   int            `yaml:"oversized_packets"`
	AlertCounts        map[string]int `yaml:"alert_counts,omitempty"`
	TopTalkers         []yamlTalker   `yaml:"top_talkers"`
	Alerts             []yamlAlert    `yaml:"alerts"`
	Hosts              []yamlHost     `yaml:"hosts,omitempty"`
}

func renderYAML(data ReportData) ([]byte, error) {
	sum := data.Summary
	rep := yamlReport{
		Generated:          data.Generated.UTC().Format(time.RFC3339),
		File:               data.File,
		Source:             data.Source,
		Note:               data.Note,
		Packets:            sum.Packets,
		UniqueSources:      sum.UniqueSources,
		UniqueDestinations: sum.UniqueDestinations,
		TotalBytes:         sum.TotalBytes,
		LengthMean:         sum.LengthMean,
		LengthStdDev:       sum.LengthStdDev,
		LengthMin:          sum.LengthMin,
		LengthMax:          sum.LengthMax,
		OversizedPackets:   data.OversizedPackets,
		TopTalkers:         make([]yamlTalker, 0, len(sum.TopTalkers)),
		Alerts:             make([]yamlAlert, 0, len(data.Alerts)),
	}
	if len(data.AlertCounts) > 0 {
		rep.AlertCounts = make(map[string]int, len(data.AlertCounts))
		for k, v := range data.AlertCounts {
			rep.AlertCounts[string(k)] = v
		}
	}
	for _, t := range sum.TopTalkers {
		rep.TopTalkers = append(rep.TopTalkers, yamlTalker{Address: t.IP, Packets: t.Packets, Bytes: t.Bytes})
	}
	for _, a := range data.Alerts {
		rep.Alerts = append(rep.Alerts, yamlAlert{
			Type:    string(a.Type),
			Source:  a.Source,
			Message: a.Message,
			Time:    formatTime(a.Timestamp),
		})
	}
	for _, h := range data.Hosts {
		rep.Hosts = append(rep.Hosts, yamlHost{
			IP:        h.IP.String(),
			MAC:       h.MAC.String(),
			FirstSeen: formatTime(h.FirstSeen),
			Packets:   h.Packets,
		})
	}
	return yaml.Marshal(rep)
}

func formatTime(ts time.Time) string {
	if ts.IsZero() {
		return ""
	}
	return ts.UTC().Format("2006-01-02 15:04:05")
}

func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
