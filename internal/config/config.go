package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config holds all nidwatch configuration.
type Config struct {
	Parser ParserConfig
	Upload UploadConfig
	Log    LogConfig
	Server ServerConfig
}

// ParserConfig controls the extraction pipeline.
type ParserConfig struct {
	DemoMode       bool
	AllowLibpcap   bool
	LibpcapTimeout time.Duration
	TsharkPath     string
	TsharkTimeout  time.Duration
}

// UploadConfig controls the upload collaborator.
type UploadConfig struct {
	MaxBytes   int64
	ScratchDir string
}

// LogConfig controls the slog handler.
type LogConfig struct {
	Level  string
	Format string // "text" or "json"
}

// ServerConfig controls the HTTP surface.
type ServerConfig struct {
	Addr string
}

const defaultMaxUpload = 200 * 1024 * 1024

// Load reads configuration from NID_* environment variables and, when
// NID_CONFIG names one, a YAML file. Environment wins over the file.
func Load() (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("nid")
	v.AutomaticEnv()

	v.SetDefault("demo_mode", false)
	v.SetDefault("allow_libpcap", false)
	v.SetDefault("libpcap_timeout", 5.0)
	v.SetDefault("tshark_path", "tshark")
	v.SetDefault("tshark_timeout", 300.0)
	v.SetDefault("max_upload_bytes", defaultMaxUpload)
	v.SetDefault("scratch_dir", os.TempDir())
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("listen_addr", ":8080")

	if path := os.Getenv("NID_CONFIG"); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	return Config{
		Parser: ParserConfig{
			DemoMode:       v.GetBool("demo_mode"),
			AllowLibpcap:   v.GetBool("allow_libpcap"),
			LibpcapTimeout: seconds(v.GetFloat64("libpcap_timeout"), 5*time.Second),
			TsharkPath:     v.GetString("tshark_path"),
			TsharkTimeout:  seconds(v.GetFloat64("tshark_timeout"), 5*time.Minute),
		},
		Upload: UploadConfig{
			MaxBytes:   v.GetInt64("max_upload_bytes"),
			ScratchDir: v.GetString("scratch_dir"),
		},
		Log: LogConfig{
			Level:  v.GetString("log_level"),
			Format: v.GetString("log_format"),
		},
		Server: ServerConfig{
			Addr: v.GetString("listen_addr"),
		},
	}, nil
}

// seconds converts a float number of seconds, falling back when the value
// is not positive.
func seconds(s float64, fallback time.Duration) time.Duration {
	if s <= 0 {
		return fallback
	}
	return time.Duration(s * float64(time.Second))
}
