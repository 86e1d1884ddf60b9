package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestEnvOr(t *testing.T) {
	key := "PAPERBRIDGE_TEST_ENV"
	fallback := "default"

	_ = os.Unsetenv(key)
	if got := envOr(key, fallback); got != fallback {
		t.Errorf("envOr() = %v, want %v", got, fallback)
	}

	val := "set"
	_ = os.Setenv(key, val)
	defer os.Unsetenv(key)
	if got := envOr(key, fallback); got != val {
		t.Errorf("envOr() = %v, want %v", got, val)
	}
}

func TestEnvBoolOr(t *testing.T) {
	key := "PAPERBRIDGE_TEST_BOOL"
	fallback := true

	_ = os.Unsetenv(key)
	if got := envBoolOr(key, fallback); got != fallback {
		t.Errorf("envBoolOr() = %v, want %v", got, fallback)
	}

	tests := []struct {
		val  string
		want bool
	}{
		{"1", true}, {"true", true}, {"yes", true}, {"on", true},
		{"0", false}, {"false", false}, {"no", false}, {"off", false},
		{"garbage", true}, // should return fallback
	}

	for _, tt := range tests {
		_ = os.Setenv(key, tt.val)
		if got := envBoolOr(key, fallback); got != tt.want {
			t.Errorf("envBoolOr(%q) = %v, want %v", tt.val, got, tt.want)
		}
	}
}

func TestLoadDefaults(t *testing.T) {
	_ = os.Unsetenv("BRIDGE_PORT")
	_ = os.Unsetenv("BRIDGE_BIND")
	_ = os.Unsetenv("BRIDGE_HOST_URL")
	_ = os.Setenv("BRIDGE_CONFIG", filepath.Join(t.TempDir(), "missing.json"))
	defer os.Unsetenv("BRIDGE_CONFIG")

	cfg := Load()
	if cfg.Port != "9868" {
		t.Errorf("default Port = %v, want 9868", cfg.Port)
	}
	if cfg.Bind != "127.0.0.1" {
		t.Errorf("default Bind = %v, want 127.0.0.1", cfg.Bind)
	}
	if cfg.HostURL != "" {
		t.Errorf("default HostURL = %q, want empty (standalone)", cfg.HostURL)
	}
	if cfg.ChannelRetryInterval != 50*time.Millisecond {
		t.Errorf("ChannelRetryInterval = %v, want 50ms", cfg.ChannelRetryInterval)
	}
	if cfg.ReadyPollInterval != 100*time.Millisecond {
		t.Errorf("ReadyPollInterval = %v, want 100ms", cfg.ReadyPollInterval)
	}
	if cfg.SelectionSettle != 50*time.Millisecond {
		t.Errorf("SelectionSettle = %v, want 50ms", cfg.SelectionSettle)
	}
	if cfg.HighlightColor != "#FFFF00" {
		t.Errorf("HighlightColor = %v, want #FFFF00", cfg.HighlightColor)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	_ = os.Setenv("BRIDGE_PORT", "1234")
	defer os.Unsetenv("BRIDGE_PORT")

	cfg := Load()
	if cfg.Port != "1234" {
		t.Errorf("env Port = %v, want 1234", cfg.Port)
	}
}

func TestLoadConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")
	_ = os.Setenv("BRIDGE_CONFIG", configPath)
	defer os.Unsetenv("BRIDGE_CONFIG")

	configData := `{
		"port": "8888",
		"headless": false,
		"docRoot": "/papers",
		"hostUrl": "ws://127.0.0.1:7000/bridge",
		"timeoutSec": 60
	}`
	if err := os.WriteFile(configPath, []byte(configData), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := Load()
	if cfg.Port != "8888" {
		t.Errorf("file Port = %v, want 8888", cfg.Port)
	}
	if cfg.Headless != false {
		t.Errorf("file Headless = %v, want false", cfg.Headless)
	}
	if cfg.DocRoot != "/papers" {
		t.Errorf("file DocRoot = %v, want /papers", cfg.DocRoot)
	}
	if cfg.HostURL != "ws://127.0.0.1:7000/bridge" {
		t.Errorf("file HostURL = %v", cfg.HostURL)
	}
	if cfg.ActionTimeout != 60*time.Second {
		t.Errorf("file ActionTimeout = %v, want 60s", cfg.ActionTimeout)
	}
}

func TestLoadTimeoutEnvWinsOverFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")
	_ = os.Setenv("BRIDGE_CONFIG", configPath)
	_ = os.Setenv("BRIDGE_TIMEOUT", "45")
	_ = os.Setenv("BRIDGE_NAV_TIMEOUT", "90")
	defer func() {
		os.Unsetenv("BRIDGE_CONFIG")
		os.Unsetenv("BRIDGE_TIMEOUT")
		os.Unsetenv("BRIDGE_NAV_TIMEOUT")
	}()

	configData := `{"timeoutSec": 5, "navigateSec": 7}`
	if err := os.WriteFile(configPath, []byte(configData), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := Load()
	if cfg.ActionTimeout != 45*time.Second {
		t.Errorf("ActionTimeout = %v, want env value 45s", cfg.ActionTimeout)
	}
	if cfg.NavigateTimeout != 90*time.Second {
		t.Errorf("NavigateTimeout = %v, want env value 90s", cfg.NavigateTimeout)
	}
}

func TestEnvSecOr(t *testing.T) {
	key := "PAPERBRIDGE_TEST_SEC"
	defer os.Unsetenv(key)

	_ = os.Unsetenv(key)
	if got := envSecOr(key, 15); got != 15*time.Second {
		t.Errorf("envSecOr() = %v, want 15s fallback", got)
	}

	_ = os.Setenv(key, "3")
	if got := envSecOr(key, 15); got != 3*time.Second {
		t.Errorf("envSecOr() = %v, want 3s", got)
	}

	// Zero and negative are not usable timeouts.
	for _, v := range []string{"0", "-5", "junk"} {
		_ = os.Setenv(key, v)
		if got := envSecOr(key, 15); got != 15*time.Second {
			t.Errorf("envSecOr(%q) = %v, want 15s fallback", v, got)
		}
	}
}

func TestMaskToken(t *testing.T) {
	tests := []struct {
		token string
		want  string
	}{
		{"", "(none)"},
		{"short", "***"},
		{"very-long-token-secret", "very...cret"},
	}

	for _, tt := range tests {
		if got := MaskToken(tt.token); got != tt.want {
			t.Errorf("MaskToken(%q) = %v, want %v", tt.token, got, tt.want)
		}
	}
}
