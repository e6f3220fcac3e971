package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/muurk/upnpctl/internal/transport"
)

func TestGetConfigDir_XDG(t *testing.T) {
	if runtime.GOOS == "windows" || runtime.GOOS == "darwin" {
		t.Skip("XDG_CONFIG_HOME only applies on Linux and other Unix systems")
	}
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)

	dir, err := GetConfigDir()
	if err != nil {
		t.Fatalf("GetConfigDir() error = %v", err)
	}
	if dir != filepath.Join(xdg, "upnpctl") {
		t.Errorf("GetConfigDir() = %q", dir)
	}

	path, err := GetConfigPath()
	if err != nil {
		t.Fatalf("GetConfigPath() error = %v", err)
	}
	if filepath.Base(path) != "config.yaml" {
		t.Errorf("GetConfigPath() = %q", path)
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() error = %v", err)
	}
	if cfg.Discovery.Timeout != 5*time.Second || cfg.Discovery.MX != 3 {
		t.Errorf("Discovery = %+v", cfg.Discovery)
	}
	if cfg.Callback.Port != 8008 || cfg.Subscription.TTL != 1800 {
		t.Errorf("Callback = %+v, Subscription = %+v", cfg.Callback, cfg.Subscription)
	}
}

func TestLoad_MissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Callback.Port != Default().Callback.Port {
		t.Errorf("Load() = %+v, want defaults", cfg)
	}
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `version: 1
discovery:
  timeout: 2s
  mx: 1
  search_targets:
    - upnp:rootdevice
callback:
  port: 9090
  hosts: [192.168.1.20]
log_level: debug
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Discovery.Timeout != 2*time.Second || cfg.Discovery.MX != 1 {
		t.Errorf("Discovery = %+v", cfg.Discovery)
	}
	if len(cfg.Discovery.SearchTargets) != 1 || cfg.Discovery.SearchTargets[0] != "upnp:rootdevice" {
		t.Errorf("SearchTargets = %v", cfg.Discovery.SearchTargets)
	}
	if cfg.Callback.Port != 9090 || len(cfg.Callback.Hosts) != 1 {
		t.Errorf("Callback = %+v", cfg.Callback)
	}
	if cfg.HTTP.Timeout != transport.DefaultTimeout {
		t.Errorf("HTTP.Timeout = %v, want default", cfg.HTTP.Timeout)
	}
	if cfg.Listener.PollInterval != time.Second {
		t.Errorf("Listener.PollInterval = %v, want default", cfg.Listener.PollInterval)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"bad yaml", "discovery: [", "failed to parse"},
		{"bad duration", "discovery:\n  timeout: soon\n", "failed to parse"},
		{"wrong version", "version: 2\n", "unsupported config version"},
		{"mx out of range", "discovery:\n  mx: 9\n", "discovery.mx"},
		{"port out of range", "callback:\n  port: 70000\n", "callback.port"},
		{"unknown log level", "log_level: loud\n", "log_level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0o600); err != nil {
				t.Fatal(err)
			}
			_, err := Load(path)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Load() error = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := Default()
	cfg.Discovery.Timeout = 1500 * time.Millisecond
	cfg.Discovery.Interface = "eth0"
	cfg.Subscription.TTL = 0
	cfg.Callback.Hosts = []string{"10.0.0.2"}

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if runtime.GOOS != "windows" && info.Mode().Perm() != 0o600 {
		t.Errorf("mode = %v, want 0600", info.Mode().Perm())
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("temporary file left behind: %v", err)
	}

	data, _ := os.ReadFile(path)
	if !strings.HasPrefix(string(data), "# upnpctl configuration file") {
		t.Errorf("header missing:\n%s", data)
	}
	if !strings.Contains(string(data), "timeout: 1.5s") {
		t.Errorf("durations not written as strings:\n%s", data)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Discovery.Timeout != cfg.Discovery.Timeout || loaded.Discovery.Interface != "eth0" {
		t.Errorf("Discovery = %+v", loaded.Discovery)
	}
	if loaded.Subscription.TTL != 0 {
		t.Errorf("Subscription.TTL = %d, want 0", loaded.Subscription.TTL)
	}
}

func TestSave_RejectsInvalid(t *testing.T) {
	cfg := Default()
	cfg.Callback.Port = 0
	if err := cfg.Save(filepath.Join(t.TempDir(), "config.yaml")); err == nil {
		t.Error("Save() accepted an invalid config")
	}
}

func TestControlPointConfig(t *testing.T) {
	cfg := Default()
	cfg.Discovery.Interface = "wlan0"
	cfg.Callback.Port = 9000
	cfg.HTTP.UserAgent = "test/1.0"

	cp := cfg.ControlPointConfig()
	if cp.DiscoveryTimeout != cfg.Discovery.Timeout || cp.SearchMX != cfg.Discovery.MX {
		t.Errorf("discovery settings not carried: %+v", cp)
	}
	if cp.CallbackPort != 9000 || cp.Interface != "wlan0" {
		t.Errorf("CallbackPort = %d, Interface = %q", cp.CallbackPort, cp.Interface)
	}
	if cp.HTTP.UserAgent != "test/1.0" || cp.HTTP.Timeout != cfg.HTTP.Timeout {
		t.Errorf("HTTP = %+v", cp.HTTP)
	}
	if cp.ListenerPollInterval != cfg.Listener.PollInterval {
		t.Errorf("ListenerPollInterval = %v", cp.ListenerPollInterval)
	}
}
