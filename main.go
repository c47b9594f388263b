package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"nidwatch/internal/analysis"
	"nidwatch/internal/config"
	"nidwatch/internal/discovery"
	"nidwatch/internal/logging"
	"nidwatch/internal/metrics"
	"nidwatch/internal/parser"
	"nidwatch/internal/reporting"
	"nidwatch/internal/server"
	"nidwatch/internal/tui"
	"nidwatch/internal/upload"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	demo := flag.Bool("demo", cfg.Parser.DemoMode, "Substitute a demo row when no strategy can parse a capture")
	allowLibpcap := flag.Bool("allow-libpcap", cfg.Parser.AllowLibpcap, "Enable the libpcap strategy")
	libpcapTimeout := flag.Duration("libpcap-timeout", cfg.Parser.LibpcapTimeout, "Time budget for the libpcap strategy")
	tsharkPath := flag.String("tshark", cfg.Parser.TsharkPath, "tshark binary name or path")
	tsharkTimeout := flag.Duration("tshark-timeout", cfg.Parser.TsharkTimeout, "Time budget for the tshark strategy")
	logLevel := flag.String("log-level", cfg.Log.Level, "Log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", cfg.Log.Format, "Log format (text or json)")
	useTUI := flag.Bool("tui", false, "Open the interactive viewer")
	reportFormat := flag.String("report", "", "Write a session report (html or yaml)")
	reportDir := flag.String("report-dir", ".", "Directory for session reports")
	exportPath := flag.String("export", "", "Export the table to a .csv or .parquet file")
	oversizedPath := flag.String("oversized", "", "Export rows longer than the oversize threshold to a .csv file")
	pcaPlot := flag.String("pca-plot", "", "Write a PCA scatter plot to a .png file")
	showHosts := flag.Bool("hosts", false, "List hosts announced over ARP in a capture")
	serve := flag.Bool("serve", false, "Run the HTTP upload server")
	addr := flag.String("addr", cfg.Server.Addr, "HTTP listen address")
	maxUpload := flag.Int64("max-upload", cfg.Upload.MaxBytes, "Upload size limit in bytes")
	flag.Parse()

	logging.Init(*logFormat, logging.ParseLevel(*logLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	opts := parser.Options{
		DemoMode:       *demo,
		TsharkPath:     *tsharkPath,
		TsharkTimeout:  *tsharkTimeout,
		AllowLibpcap:   *allowLibpcap,
		LibpcapTimeout: *libpcapTimeout,
		Metrics:        m,
	}
	resolver := parser.New(opts)
	slog.Debug("resolver ready", "strategies", resolver.Strategies(), "demo", *demo)

	if *serve {
		in := &upload.Ingestor{
			MaxBytes:   *maxUpload,
			ScratchDir: cfg.Upload.ScratchDir,
			Resolver:   resolver,
			Metrics:    m,
		}
		if err := server.New(in, m).ListenAndServe(ctx, *addr); err != nil {
			log.Fatalf("Server error: %v", err)
		}
		return
	}

	path := flag.Arg(0)

	if *useTUI {
		p := tea.NewProgram(tui.NewSessionModel(resolver, path), tea.WithAltScreen())
		if _, err := p.Run(); err != nil {
			log.Printf("Error running TUI: %v", err)
		}
		return
	}

	if path == "" {
		fmt.Println("Please provide a .pcap, .pcapng or .csv file")
		fmt.Println("Example: ./nidwatch capture.pcapng")
		os.Exit(2)
	}

	res, err := resolver.Resolve(ctx, path)
	if err != nil {
		log.Fatalf("Error reading %s: %v", path, err)
	}

	tbl := res.Table
	anomalyCfg := analysis.DefaultConfig()
	sum := analysis.Summarize(tbl, 10)
	ad := analysis.DetectAnomalies(tbl, anomalyCfg)
	printSummary(path, res, sum, ad)

	var hosts []discovery.Host
	if *showHosts && !strings.EqualFold(filepath.Ext(path), ".csv") {
		hosts, err = discovery.ScanFile(ctx, path)
		if err != nil {
			log.Printf("Host inventory unavailable: %v", err)
		}
		fmt.Printf("ARP hosts:    %d\n", len(hosts))
		for _, h := range hosts {
			fmt.Printf("  %-16s %-18s first seen %s (%d ARP packets)\n",
				h.IP, h.MAC, h.FirstSeen.Format("2006-01-02 15:04:05"), h.Packets)
		}
	}

	if *reportFormat != "" {
		filename, err := reporting.GenerateSessionReport(*reportDir, *reportFormat, reporting.ReportData{
			File:             filepath.Base(path),
			Source:           res.Source,
			Note:             res.Note,
			Summary:          sum,
			Alerts:           ad.GetRecentAlerts(0),
			AlertCounts:      ad.AlertCounts(),
			OversizedPackets: ad.OversizedPackets(),
			Hosts:            hosts,
		})
		if err != nil {
			log.Fatalf("Failed to generate report: %v", err)
		}
		fmt.Printf("Report written to %s\n", filename)
	}

	if *exportPath != "" {
		var err error
		if strings.EqualFold(filepath.Ext(*exportPath), ".parquet") {
			err = reporting.ExportParquet(*exportPath, tbl)
		} else {
			err = reporting.ExportCSV(*exportPath, tbl)
		}
		if err != nil {
			log.Fatalf("Failed to export table: %v", err)
		}
		fmt.Printf("Table exported to %s\n", *exportPath)
	}

	if *oversizedPath != "" {
		rows := analysis.OversizedRows(tbl, anomalyCfg.OversizeThreshold)
		if err := reporting.ExportCSV(*oversizedPath, rows); err != nil {
			log.Fatalf("Failed to export oversized rows: %v", err)
		}
		fmt.Printf("%d oversized rows exported to %s\n", rows.Len(), *oversizedPath)
	}

	if *pcaPlot != "" {
		proj, err := analysis.PCA(tbl, analysis.DefaultPCARows)
		if err != nil {
			log.Fatalf("PCA failed: %v", err)
		}
		if err := reporting.PlotPCA(*pcaPlot, proj); err != nil {
			log.Fatalf("Failed to plot PCA: %v", err)
		}
		fmt.Printf("PCA plot written to %s (explained variance %.2f%%, %.2f%%)\n",
			*pcaPlot, proj.ExplainedRatio[0]*100, proj.ExplainedRatio[1]*100)
	}
}

func printSummary(path string, res *parser.Result, sum analysis.Summary, ad *analysis.AnomalyDetector) {
	source := res.Source
	if source == "" {
		source = "none"
	}
	fmt.Printf("File:         %s\n", path)
	fmt.Printf("Parsed by:    %s\n", source)
	if sum.Packets == 0 {
		fmt.Println("No usable rows. Enable demo mode (-demo) or check that tshark is installed.")
		if res.Note != "" {
			fmt.Printf("Note:         %s\n", res.Note)
		}
		return
	}
	fmt.Printf("Packets:      %d\n", sum.Packets)
	fmt.Printf("Sources:      %d\n", sum.UniqueSources)
	fmt.Printf("Destinations: %d\n", sum.UniqueDestinations)
	fmt.Printf("Bytes:        %d\n", sum.TotalBytes)
	fmt.Printf("Length:       mean %.1f, stddev %.1f, min %d, max %d\n",
		sum.LengthMean, sum.LengthStdDev, sum.LengthMin, sum.LengthMax)

	if len(sum.TopTalkers) > 0 {
		fmt.Println("Top talkers:")
		for _, t := range sum.TopTalkers {
			fmt.Printf("  %-40s %8d pkts %12d bytes\n", t.IP, t.Packets, t.Bytes)
		}
	}

	fmt.Printf("Oversized packets: %d\n", ad.OversizedPackets())
	for _, a := range ad.GetRecentAlerts(10) {
		fmt.Printf("  [%s] %s\n", a.Type, a.Message)
	}
}
