// Package config loads simulator settings from YAML files and environment
// variables.
package config

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/contention-simulator/core"
	"github.com/signalsfoundry/contention-simulator/internal/observability"
	"github.com/signalsfoundry/contention-simulator/internal/sweep"
)

// SimConfig contains all simulator settings.
type SimConfig struct {
	Protocol ProtocolConfig              `yaml:"protocol"`
	Sweep    SweepConfig                 `yaml:"sweep"`
	Output   OutputConfig                `yaml:"output"`
	Logging  LoggingConfig               `yaml:"logging"`
	Tracing  observability.TracingConfig `yaml:"tracing"`
	Metrics  MetricsConfig               `yaml:"metrics"`
}

// ProtocolConfig holds the backoff windows and exchange timing.
type ProtocolConfig struct {
	InitialWindow int `yaml:"initial_window"`
	MaxWindow     int `yaml:"max_window"`

	// SlotDuration only scales reported airtime; the engine works in slots.
	SlotDuration time.Duration `yaml:"slot_duration"`

	SIFSSlots       int `yaml:"sifs_slots"`
	DIFSSlots       int `yaml:"difs_slots"`
	DataRate        int `yaml:"data_rate"`
	RTSBytes        int `yaml:"rts_bytes"`
	CTSBytes        int `yaml:"cts_bytes"`
	ACKBytes        int `yaml:"ack_bytes"`
	MaxPayloadBytes int `yaml:"max_payload_bytes"`
}

// SweepConfig describes the population range and run length.
type SweepConfig struct {
	MinStations     int    `yaml:"min_stations"`
	MaxStations     int    `yaml:"max_stations"`
	Slots           int64  `yaml:"slots"`
	Seed            uint64 `yaml:"seed"`
	Workers         int    `yaml:"workers"`
	CheckInvariants bool   `yaml:"check_invariants"`
}

// OutputConfig selects the result sinks. Empty paths disable a sink.
type OutputConfig struct {
	TextPath      string `yaml:"text_path"`
	SQLitePath    string `yaml:"sqlite_path,omitempty"`
	JSONLPath     string `yaml:"jsonl_path,omitempty"`
	GnuplotScript string `yaml:"gnuplot_script,omitempty"`
	XplotPath     string `yaml:"xplot_path,omitempty"`
	RunGnuplot    bool   `yaml:"run_gnuplot"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is text or json.
	Format string `yaml:"format"`
}

// MetricsConfig configures Prometheus export.
type MetricsConfig struct {
	ListenAddr   string `yaml:"listen_addr,omitempty"`
	TextfilePath string `yaml:"textfile_path,omitempty"`
}

// Default returns the reference protocol constants and a 1..49 station sweep
// writing output_file.txt.
func Default() *SimConfig {
	engine := core.DefaultConfig()
	s := sweep.DefaultConfig()
	return &SimConfig{
		Protocol: ProtocolConfig{
			InitialWindow:   engine.InitialWindow,
			MaxWindow:       engine.MaxWindow,
			SlotDuration:    engine.Timing.SlotDuration,
			SIFSSlots:       engine.Timing.SIFSSlots,
			DIFSSlots:       engine.Timing.DIFSSlots,
			DataRate:        engine.Timing.DataRate,
			RTSBytes:        engine.Timing.RTSBytes,
			CTSBytes:        engine.Timing.CTSBytes,
			ACKBytes:        engine.Timing.ACKBytes,
			MaxPayloadBytes: engine.Timing.MaxPayloadBytes,
		},
		Sweep: SweepConfig{
			MinStations: s.MinStations,
			MaxStations: s.MaxStations,
			Slots:       s.SlotsPerRun,
			Seed:        s.Seed,
			Workers:     s.Workers,
		},
		Output: OutputConfig{
			TextPath: "output_file.txt",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Tracing: observability.DefaultTracingConfig(),
	}
}

// Load builds the effective configuration.
// Order: defaults -> path (if non-empty) -> environment variables
func Load(path string) (*SimConfig, error) {
	cfg := Default()
	if path != "" {
		fileCfg, err := LoadFromFile(path)
		if err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
		cfg = fileCfg
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

// LoadFromFile loads configuration from a YAML file on top of Default.
func LoadFromFile(path string) (*SimConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *SimConfig) Validate() error {
	if err := c.SweepConfig().Validate(); err != nil {
		return err
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "warning": true, "error": true}
	if c.Logging.Level != "" && !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error)", c.Logging.Level)
	}
	if f := strings.ToLower(c.Logging.Format); f != "" && f != "text" && f != "json" {
		return fmt.Errorf("invalid log format: %s (valid: text, json)", c.Logging.Format)
	}

	if c.Tracing.Enabled {
		switch c.Tracing.Exporter {
		case "stdout", "otlp":
		default:
			return fmt.Errorf("invalid tracing exporter: %s (valid: stdout, otlp)", c.Tracing.Exporter)
		}
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return fmt.Errorf("tracing sample_ratio must be between 0 and 1, got %f", c.Tracing.SampleRatio)
	}

	if c.Output.RunGnuplot && (c.Output.GnuplotScript == "" || c.Output.TextPath == "") {
		return fmt.Errorf("run_gnuplot requires both text_path and gnuplot_script")
	}
	return nil
}

// EngineConfig converts the protocol section into an engine configuration.
func (c *SimConfig) EngineConfig() core.Config {
	p := c.Protocol
	return core.Config{
		InitialWindow: p.InitialWindow,
		MaxWindow:     p.MaxWindow,
		Timing: core.Timing{
			SlotDuration:    p.SlotDuration,
			SIFSSlots:       p.SIFSSlots,
			DIFSSlots:       p.DIFSSlots,
			DataRate:        p.DataRate,
			RTSBytes:        p.RTSBytes,
			CTSBytes:        p.CTSBytes,
			ACKBytes:        p.ACKBytes,
			MaxPayloadBytes: p.MaxPayloadBytes,
		},
	}
}

// SweepConfig converts the sweep and protocol sections into a sweep
// configuration.
func (c *SimConfig) SweepConfig() sweep.Config {
	return sweep.Config{
		MinStations:     c.Sweep.MinStations,
		MaxStations:     c.Sweep.MaxStations,
		SlotsPerRun:     c.Sweep.Slots,
		Seed:            c.Sweep.Seed,
		Workers:         c.Sweep.Workers,
		CheckInvariants: c.Sweep.CheckInvariants,
		Engine:          c.EngineConfig(),
	}
}

// Write encodes the configuration as YAML.
func (c *SimConfig) Write(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return enc.Close()
}

// applyEnvOverrides applies CSMA_* environment variable overrides.
func applyEnvOverrides(c *SimConfig) {
	if v := os.Getenv("CSMA_MIN_STATIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Sweep.MinStations = n
		}
	}
	if v := os.Getenv("CSMA_MAX_STATIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Sweep.MaxStations = n
		}
	}
	if v := os.Getenv("CSMA_SLOTS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Sweep.Slots = n
		}
	}
	if v := os.Getenv("CSMA_SEED"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			c.Sweep.Seed = n
		}
	}
	if v := os.Getenv("CSMA_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Sweep.Workers = n
		}
	}
	if v := os.Getenv("CSMA_CHECK_INVARIANTS"); v != "" {
		c.Sweep.CheckInvariants = v == "true" || v == "1"
	}

	if v := os.Getenv("CSMA_OUTPUT_FILE"); v != "" {
		c.Output.TextPath = v
	}
	if v := os.Getenv("CSMA_SQLITE_PATH"); v != "" {
		c.Output.SQLitePath = v
	}
	if v := os.Getenv("CSMA_JSONL_PATH"); v != "" {
		c.Output.JSONLPath = v
	}

	if v := os.Getenv("CSMA_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("CSMA_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}

	if v := os.Getenv("CSMA_METRICS_ADDR"); v != "" {
		c.Metrics.ListenAddr = v
	}
	if v := os.Getenv("CSMA_METRICS_TEXTFILE"); v != "" {
		c.Metrics.TextfilePath = v
	}

	observability.ApplyTracingEnv(&c.Tracing)
}
