package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"r9ctl/lockin"
)

const sampleConfig = `
instrument:
  addr: 10.0.0.5:50000
  command: Y.
  read_wait: 250ms
poll:
  interval: 5s
  count: 10
log:
  level: debug
  format: json
redis:
  enabled: true
  addr: redis.lab:6379
  channel: stm_lockin
scans:
  - name: bias sweep
    frame:
      lines: 512
      size: 50e-9
      line_time: 0.5
    sweep:
      start: -1.0
      stop: 1.0
      step: 0.25
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Instrument.Addr != "10.0.0.5:50000" {
		t.Errorf("Addr = %q", cfg.Instrument.Addr)
	}
	if cfg.Instrument.Command != "Y." {
		t.Errorf("Command = %q", cfg.Instrument.Command)
	}
	if cfg.Instrument.ReadWait != 250*time.Millisecond {
		t.Errorf("ReadWait = %v", cfg.Instrument.ReadWait)
	}
	if cfg.Poll.Interval != 5*time.Second || cfg.Poll.Count != 10 {
		t.Errorf("Poll = %+v", cfg.Poll)
	}
	if !cfg.Redis.Enabled || cfg.Redis.Channel != "stm_lockin" {
		t.Errorf("Redis = %+v", cfg.Redis)
	}

	// Unset sections keep their defaults.
	if cfg.Log.Output != "stdout" {
		t.Errorf("Log.Output = %q, want default stdout", cfg.Log.Output)
	}
	if cfg.Monitor.MetricsPort != 9090 {
		t.Errorf("MetricsPort = %d, want default 9090", cfg.Monitor.MetricsPort)
	}

	if len(cfg.Scans) != 1 {
		t.Fatalf("Scans = %+v", cfg.Scans)
	}
	job := cfg.Scans[0]
	if job.Name != "bias sweep" || job.Frame.Lines != 512 || job.Sweep.Step != 0.25 {
		t.Errorf("ScanJob = %+v", job)
	}
}

func TestLoadInvalidLines(t *testing.T) {
	body := `
scans:
  - name: bad
    frame:
      lines: 300
`
	if _, err := Load(writeConfig(t, body)); err == nil {
		t.Fatal("expected error for invalid lines per frame")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestDefaults(t *testing.T) {
	cfg := Default()

	if cfg.Instrument.Addr != lockin.DefaultAddr {
		t.Errorf("Addr = %q, want %q", cfg.Instrument.Addr, lockin.DefaultAddr)
	}
	if cfg.Instrument.Command != lockin.DefaultCommand {
		t.Errorf("Command = %q, want %q", cfg.Instrument.Command, lockin.DefaultCommand)
	}
	if cfg.Poll.Count != -1 {
		t.Errorf("Count = %d, want -1", cfg.Poll.Count)
	}

	lc := cfg.Instrument.Lockin()
	if lc.Addr != lockin.DefaultAddr || lc.Command != lockin.DefaultCommand {
		t.Errorf("Lockin() = %+v", lc)
	}
}
