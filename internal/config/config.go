package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// RuntimeConfig holds all runtime configuration for the bridge daemon.
// Loaded once at startup from BRIDGE_* environment variables with an
// optional JSON config file fallback (env vars win).
type RuntimeConfig struct {
	Bind           string
	Port           string
	CdpURL         string
	Token          string
	Headless       bool
	ChromeBinary   string
	ProfileDir     string
	ViewerDir      string // PDF.js distribution served under /viewer/
	DocRoot        string // document files served under /docs/
	HostURL        string // host channel endpoint; empty = standalone mode
	HighlightColor string

	ChannelRetryInterval time.Duration
	ChannelRetryMax      int
	ReadyPollInterval    time.Duration
	ReadyPollMax         int
	SelectionSettle      time.Duration
	ToastDuration        time.Duration

	ActionTimeout   time.Duration
	NavigateTimeout time.Duration
	ShutdownTimeout time.Duration
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

func envBoolOr(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

// envSecOr reads a positive whole-second duration from the environment.
func envSecOr(key string, fallbackSec int) time.Duration {
	n := envIntOr(key, fallbackSec)
	if n <= 0 {
		n = fallbackSec
	}
	return time.Duration(n) * time.Second
}

func homeDir() string {
	h, _ := os.UserHomeDir()
	return h
}

func (c *RuntimeConfig) ListenAddr() string {
	return c.Bind + ":" + c.Port
}

// FileConfig is the JSON config file format.
type FileConfig struct {
	Port           string `json:"port"`
	CdpURL         string `json:"cdpUrl,omitempty"`
	Token          string `json:"token,omitempty"`
	ViewerDir      string `json:"viewerDir"`
	DocRoot        string `json:"docRoot"`
	HostURL        string `json:"hostUrl,omitempty"`
	Headless       *bool  `json:"headless,omitempty"`
	HighlightColor string `json:"highlightColor,omitempty"`
	TimeoutSec     int    `json:"timeoutSec,omitempty"`
	NavigateSec    int    `json:"navigateSec,omitempty"`
}

func Load() *RuntimeConfig {
	cfg := &RuntimeConfig{
		Bind:           envOr("BRIDGE_BIND", "127.0.0.1"),
		Port:           envOr("BRIDGE_PORT", "9868"),
		CdpURL:         os.Getenv("CDP_URL"),
		Token:          os.Getenv("BRIDGE_TOKEN"),
		Headless:       envBoolOr("BRIDGE_HEADLESS", true),
		ChromeBinary:   os.Getenv("CHROME_BINARY"),
		ProfileDir:     envOr("BRIDGE_PROFILE", filepath.Join(homeDir(), ".paperbridge", "chrome-profile")),
		ViewerDir:      envOr("BRIDGE_VIEWER_DIR", filepath.Join(homeDir(), ".paperbridge", "pdfjs")),
		DocRoot:        envOr("BRIDGE_DOC_ROOT", homeDir()),
		HostURL:        os.Getenv("BRIDGE_HOST_URL"),
		HighlightColor: envOr("BRIDGE_HIGHLIGHT_COLOR", "#FFFF00"),

		ChannelRetryInterval: 50 * time.Millisecond,
		ChannelRetryMax:      envIntOr("BRIDGE_CHANNEL_RETRIES", 100),
		ReadyPollInterval:    100 * time.Millisecond,
		ReadyPollMax:         envIntOr("BRIDGE_READY_POLLS", 300),
		SelectionSettle:      50 * time.Millisecond,
		ToastDuration:        2 * time.Second,

		ActionTimeout:   envSecOr("BRIDGE_TIMEOUT", 15),
		NavigateTimeout: envSecOr("BRIDGE_NAV_TIMEOUT", 30),
		ShutdownTimeout: 10 * time.Second,
	}

	configPath := envOr("BRIDGE_CONFIG", filepath.Join(homeDir(), ".paperbridge", "config.json"))

	data, err := os.ReadFile(configPath)
	if err != nil {
		return cfg
	}

	var fc FileConfig
	if err := json.Unmarshal(data, &fc); err != nil {
		return cfg
	}

	if fc.Port != "" && os.Getenv("BRIDGE_PORT") == "" {
		cfg.Port = fc.Port
	}
	if fc.CdpURL != "" && os.Getenv("CDP_URL") == "" {
		cfg.CdpURL = fc.CdpURL
	}
	if fc.Token != "" && os.Getenv("BRIDGE_TOKEN") == "" {
		cfg.Token = fc.Token
	}
	if fc.ViewerDir != "" && os.Getenv("BRIDGE_VIEWER_DIR") == "" {
		cfg.ViewerDir = fc.ViewerDir
	}
	if fc.DocRoot != "" && os.Getenv("BRIDGE_DOC_ROOT") == "" {
		cfg.DocRoot = fc.DocRoot
	}
	if fc.HostURL != "" && os.Getenv("BRIDGE_HOST_URL") == "" {
		cfg.HostURL = fc.HostURL
	}
	if fc.Headless != nil && os.Getenv("BRIDGE_HEADLESS") == "" {
		cfg.Headless = *fc.Headless
	}
	if fc.HighlightColor != "" && os.Getenv("BRIDGE_HIGHLIGHT_COLOR") == "" {
		cfg.HighlightColor = fc.HighlightColor
	}
	if fc.TimeoutSec > 0 && os.Getenv("BRIDGE_TIMEOUT") == "" {
		cfg.ActionTimeout = time.Duration(fc.TimeoutSec) * time.Second
	}
	if fc.NavigateSec > 0 && os.Getenv("BRIDGE_NAV_TIMEOUT") == "" {
		cfg.NavigateTimeout = time.Duration(fc.NavigateSec) * time.Second
	}

	return cfg
}

func DefaultFileConfig() FileConfig {
	h := true
	return FileConfig{
		Port:           "9868",
		ViewerDir:      filepath.Join(homeDir(), ".paperbridge", "pdfjs"),
		DocRoot:        homeDir(),
		Headless:       &h,
		HighlightColor: "#FFFF00",
		TimeoutSec:     15,
		NavigateSec:    30,
	}
}

func MaskToken(t string) string {
	if t == "" {
		return "(none)"
	}
	if len(t) <= 8 {
		return "***"
	}
	return t[:4] + "..." + t[len(t)-4:]
}
