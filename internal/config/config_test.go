package config

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/signalsfoundry/contention-simulator/core"
	"github.com/signalsfoundry/contention-simulator/internal/sweep"
)

func TestDefault(t *testing.T) {
	config := Default()

	if config.Protocol.InitialWindow != 31 || config.Protocol.MaxWindow != 1023 {
		t.Errorf("expected windows 31/1023, got %d/%d", config.Protocol.InitialWindow, config.Protocol.MaxWindow)
	}
	if config.Protocol.DataRate != 12 {
		t.Errorf("expected DataRate 12, got %d", config.Protocol.DataRate)
	}
	if config.Sweep.MinStations != 1 || config.Sweep.MaxStations != 49 {
		t.Errorf("expected stations 1..49, got %d..%d", config.Sweep.MinStations, config.Sweep.MaxStations)
	}
	if config.Sweep.Slots != 1_000_000 {
		t.Errorf("expected 1000000 slots, got %d", config.Sweep.Slots)
	}
	if config.Output.TextPath != "output_file.txt" {
		t.Errorf("expected TextPath 'output_file.txt', got '%s'", config.Output.TextPath)
	}
	if config.Tracing.Enabled {
		t.Error("expected tracing disabled by default")
	}
	if err := config.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
	if got := config.EngineConfig(); got != core.DefaultConfig() {
		t.Errorf("EngineConfig() = %+v, want %+v", got, core.DefaultConfig())
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
protocol:
  max_window: 255
  slot_duration: 9us
sweep:
  min_stations: 5
  max_stations: 10
  slots: 5000
  seed: 42
  workers: 4
output:
  text_path: results.txt
  sqlite_path: results.db
logging:
  level: debug
  format: json
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	config, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}

	if config.Protocol.MaxWindow != 255 {
		t.Errorf("expected MaxWindow 255, got %d", config.Protocol.MaxWindow)
	}
	if config.Protocol.InitialWindow != 31 {
		t.Errorf("expected InitialWindow default 31, got %d", config.Protocol.InitialWindow)
	}
	if config.Protocol.SlotDuration != 9*time.Microsecond {
		t.Errorf("expected SlotDuration 9us, got %v", config.Protocol.SlotDuration)
	}

	sc := config.SweepConfig()
	if sc.MinStations != 5 || sc.MaxStations != 10 || sc.SlotsPerRun != 5000 || sc.Seed != 42 || sc.Workers != 4 {
		t.Errorf("unexpected sweep config %+v", sc)
	}
	if sc.Engine.MaxWindow != 255 {
		t.Errorf("expected engine MaxWindow 255, got %d", sc.Engine.MaxWindow)
	}
	if config.Output.SQLitePath != "results.db" {
		t.Errorf("expected SQLitePath 'results.db', got '%s'", config.Output.SQLitePath)
	}
	if config.Logging.Format != "json" {
		t.Errorf("expected Format 'json', got '%s'", config.Logging.Format)
	}
}

func TestLoadFromFileErrors(t *testing.T) {
	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(bad, []byte("sweep: [not, a, map"), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	if _, err := LoadFromFile(bad); err == nil {
		t.Error("expected error for malformed YAML")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CSMA_MAX_STATIONS", "12")
	t.Setenv("CSMA_SLOTS", "777")
	t.Setenv("CSMA_SEED", "9")
	t.Setenv("CSMA_CHECK_INVARIANTS", "true")
	t.Setenv("CSMA_OUTPUT_FILE", "env.txt")
	t.Setenv("CSMA_LOG_LEVEL", "warn")
	t.Setenv("CSMA_TRACING_ENABLED", "1")

	config, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if config.Sweep.MaxStations != 12 {
		t.Errorf("expected MaxStations 12, got %d", config.Sweep.MaxStations)
	}
	if config.Sweep.Slots != 777 {
		t.Errorf("expected Slots 777, got %d", config.Sweep.Slots)
	}
	if config.Sweep.Seed != 9 {
		t.Errorf("expected Seed 9, got %d", config.Sweep.Seed)
	}
	if !config.Sweep.CheckInvariants {
		t.Error("expected CheckInvariants true")
	}
	if config.Output.TextPath != "env.txt" {
		t.Errorf("expected TextPath 'env.txt', got '%s'", config.Output.TextPath)
	}
	if config.Logging.Level != "warn" {
		t.Errorf("expected Level 'warn', got '%s'", config.Logging.Level)
	}
	if !config.Tracing.Enabled {
		t.Error("expected tracing enabled from env")
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte("sweep:\n  seed: 3\n"), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	t.Setenv("CSMA_SEED", "8")

	config, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if config.Sweep.Seed != 8 {
		t.Errorf("expected env seed 8 to win over file, got %d", config.Sweep.Seed)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*SimConfig)
		wantErr bool
	}{
		{"default", func(*SimConfig) {}, false},
		{"inverted range", func(c *SimConfig) { c.Sweep.MinStations, c.Sweep.MaxStations = 10, 2 }, true},
		{"zero stations", func(c *SimConfig) { c.Sweep.MinStations = 0 }, true},
		{"zero slots", func(c *SimConfig) { c.Sweep.Slots = 0 }, true},
		{"window below initial", func(c *SimConfig) { c.Protocol.MaxWindow = 15 }, true},
		{"zero data rate", func(c *SimConfig) { c.Protocol.DataRate = 0 }, true},
		{"bad log level", func(c *SimConfig) { c.Logging.Level = "verbose" }, true},
		{"bad log format", func(c *SimConfig) { c.Logging.Format = "xml" }, true},
		{"bad exporter", func(c *SimConfig) { c.Tracing.Enabled = true; c.Tracing.Exporter = "zipkin" }, true},
		{"bad exporter ignored when disabled", func(c *SimConfig) { c.Tracing.Exporter = "zipkin" }, false},
		{"gnuplot without script", func(c *SimConfig) { c.Output.RunGnuplot = true }, true},
		{"gnuplot with script", func(c *SimConfig) { c.Output.RunGnuplot = true; c.Output.GnuplotScript = "plot.gp" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(c)
			err := c.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateRangeSentinel(t *testing.T) {
	c := Default()
	c.Sweep.MaxStations = 0
	if err := c.Validate(); !errors.Is(err, sweep.ErrInvalidRange) {
		t.Errorf("expected ErrInvalidRange, got %v", err)
	}
}

func TestWriteRoundTrip(t *testing.T) {
	c := Default()
	c.Sweep.Seed = 1234
	c.Protocol.SlotDuration = 9 * time.Microsecond

	var buf bytes.Buffer
	if err := c.Write(&buf); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if !strings.Contains(buf.String(), "seed: 1234") {
		t.Errorf("expected seed in output:\n%s", buf.String())
	}

	path := filepath.Join(t.TempDir(), "effective.yaml")
	if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
		t.Fatalf("failed to write: %v", err)
	}
	loaded, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if loaded.Sweep.Seed != 1234 || loaded.Protocol.SlotDuration != 9*time.Microsecond {
		t.Errorf("round trip lost values: %+v", loaded.Sweep)
	}
}
