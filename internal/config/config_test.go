package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

var envKeys = []string{
	"NID_CONFIG", "NID_DEMO_MODE", "NID_ALLOW_LIBPCAP", "NID_LIBPCAP_TIMEOUT",
	"NID_TSHARK_PATH", "NID_TSHARK_TIMEOUT", "NID_MAX_UPLOAD_BYTES",
	"NID_SCRATCH_DIR", "NID_LOG_LEVEL", "NID_LOG_FORMAT", "NID_LISTEN_ADDR",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Parser.DemoMode {
		t.Fatal("expected demo mode off by default")
	}
	if cfg.Parser.AllowLibpcap {
		t.Fatal("expected libpcap off by default")
	}
	if cfg.Parser.LibpcapTimeout != 5*time.Second {
		t.Fatalf("LibpcapTimeout = %v, want 5s", cfg.Parser.LibpcapTimeout)
	}
	if cfg.Parser.TsharkPath != "tshark" {
		t.Fatalf("TsharkPath = %q", cfg.Parser.TsharkPath)
	}
	if cfg.Upload.MaxBytes != 200*1024*1024 {
		t.Fatalf("MaxBytes = %d", cfg.Upload.MaxBytes)
	}
	if cfg.Log.Level != "info" || cfg.Server.Addr != ":8080" {
		t.Fatalf("log/server defaults = %+v %+v", cfg.Log, cfg.Server)
	}
}

func TestLoad_Env(t *testing.T) {
	clearEnv(t)
	t.Setenv("NID_DEMO_MODE", "1")
	t.Setenv("NID_ALLOW_LIBPCAP", "true")
	t.Setenv("NID_LIBPCAP_TIMEOUT", "0.25")
	t.Setenv("NID_MAX_UPLOAD_BYTES", "1024")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if !cfg.Parser.DemoMode || !cfg.Parser.AllowLibpcap {
		t.Fatalf("flags = %+v", cfg.Parser)
	}
	if cfg.Parser.LibpcapTimeout != 250*time.Millisecond {
		t.Fatalf("LibpcapTimeout = %v, want 250ms", cfg.Parser.LibpcapTimeout)
	}
	if cfg.Upload.MaxBytes != 1024 {
		t.Fatalf("MaxBytes = %d", cfg.Upload.MaxBytes)
	}
}

func TestLoad_InvalidTimeoutFallsBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("NID_LIBPCAP_TIMEOUT", "-3")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Parser.LibpcapTimeout != 5*time.Second {
		t.Fatalf("LibpcapTimeout = %v, want 5s", cfg.Parser.LibpcapTimeout)
	}
}

func TestLoad_File(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nid.yaml")
	content := "demo_mode: true\ntshark_path: /opt/wireshark/tshark\nlog_level: debug\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("NID_CONFIG", path)
	t.Setenv("NID_LOG_LEVEL", "warn")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if !cfg.Parser.DemoMode || cfg.Parser.TsharkPath != "/opt/wireshark/tshark" {
		t.Fatalf("file values not applied: %+v", cfg.Parser)
	}
	if cfg.Log.Level != "warn" {
		t.Fatalf("env should override file, got level %q", cfg.Log.Level)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("NID_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))
	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
