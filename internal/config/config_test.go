package config

import (
	"errors"
	"log/slog"
	"testing"
	"time"
)

func lookupMap(m map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func emptyLookup(string) (string, bool) { return "", false }

func TestDefaultsDev(t *testing.T) {
	cfg, err := load(emptyLookup, nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Mode != ModeDev {
		t.Fatalf("mode=%q, want %q", cfg.Mode, ModeDev)
	}
	if cfg.LogFormat != LogFormatText {
		t.Fatalf("logFormat=%q, want %q", cfg.LogFormat, LogFormatText)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Fatalf("logLevel=%v, want debug", cfg.LogLevel)
	}
	if cfg.ListenAddr != DefaultListenAddr {
		t.Fatalf("listenAddr=%q, want %q", cfg.ListenAddr, DefaultListenAddr)
	}
	if cfg.ShutdownTimeout != DefaultShutdown {
		t.Fatalf("shutdownTimeout=%v, want %v", cfg.ShutdownTimeout, DefaultShutdown)
	}
	if len(cfg.AllowedOrigins) != 0 {
		t.Fatalf("allowedOrigins=%v, want empty", cfg.AllowedOrigins)
	}
	if cfg.ICEConfigError() != nil || len(cfg.ICEServers) != 0 {
		t.Fatalf("unexpected ICE config: servers=%v err=%v", cfg.ICEServers, cfg.ICEConfigError())
	}
}

func TestDefaultsProdWhenModeFlagSet(t *testing.T) {
	cfg, err := load(emptyLookup, []string{"--mode", "prod"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Mode != ModeProd {
		t.Fatalf("mode=%q, want %q", cfg.Mode, ModeProd)
	}
	if cfg.LogFormat != LogFormatJSON {
		t.Fatalf("logFormat=%q, want %q", cfg.LogFormat, LogFormatJSON)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Fatalf("logLevel=%v, want info", cfg.LogLevel)
	}
}

func TestDefaultsProdWhenModeEnvSet(t *testing.T) {
	cfg, err := load(lookupMap(map[string]string{envVarMode: "production"}), nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Mode != ModeProd || cfg.LogFormat != LogFormatJSON {
		t.Fatalf("mode=%q logFormat=%q, want prod/json", cfg.Mode, cfg.LogFormat)
	}
}

func TestLogFormatExplicitOverride(t *testing.T) {
	cfg, err := load(emptyLookup, []string{"--mode", "prod", "--log-format", "text"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogFormat != LogFormatText {
		t.Fatalf("logFormat=%q, want %q", cfg.LogFormat, LogFormatText)
	}
}

func TestListenAddr_Precedence(t *testing.T) {
	cfg, err := load(lookupMap(map[string]string{envVarPort: "9000"}), nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddr != "0.0.0.0:9000" {
		t.Fatalf("listenAddr=%q, want 0.0.0.0:9000", cfg.ListenAddr)
	}

	cfg, err = load(lookupMap(map[string]string{
		envVarPort:       "9000",
		envVarListenAddr: "127.0.0.1:9100",
	}), nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddr != "127.0.0.1:9100" {
		t.Fatalf("listenAddr=%q, want env listen addr to beat PORT", cfg.ListenAddr)
	}

	cfg, err = load(lookupMap(map[string]string{envVarListenAddr: "127.0.0.1:9100"}), []string{"--listen-addr", ":9200"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddr != ":9200" {
		t.Fatalf("listenAddr=%q, want flag to win", cfg.ListenAddr)
	}
}

func TestInvalidValues(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		args []string
	}{
		{name: "bad port", env: map[string]string{envVarPort: "http"}},
		{name: "bad listen addr", args: []string{"--listen-addr", "nope"}},
		{name: "bad mode", args: []string{"--mode", "staging"}},
		{name: "bad log level", args: []string{"--log-level", "loud"}},
		{name: "bad shutdown env", env: map[string]string{envVarShutdownTimeout: "soon"}},
		{name: "zero shutdown", args: []string{"--shutdown-timeout", "0s"}},
		{name: "bad origin", env: map[string]string{envVarAllowedOrigins: "https://example.com/path"}},
	}
	for _, tc := range cases {
		if _, err := load(lookupMap(tc.env), tc.args); err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
	}
}

func TestShutdownTimeoutEnv(t *testing.T) {
	cfg, err := load(lookupMap(map[string]string{envVarShutdownTimeout: "3s"}), nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ShutdownTimeout != 3*time.Second {
		t.Fatalf("shutdownTimeout=%v, want 3s", cfg.ShutdownTimeout)
	}
}

func TestParseAllowedOrigins_NormalizesAndValidates(t *testing.T) {
	got, err := parseAllowedOrigins(" HTTPS://App.Example.com:443 , *,, http://localhost:5173/ ")
	if err != nil {
		t.Fatalf("parseAllowedOrigins: %v", err)
	}
	want := []string{"https://app.example.com", "*", "http://localhost:5173"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestHelpFlag(t *testing.T) {
	_, err := load(emptyLookup, []string{"-h"})
	if !errors.Is(err, ErrHelp) {
		t.Fatalf("err=%v, want ErrHelp", err)
	}
}

func TestIsUnspecifiedHost(t *testing.T) {
	for addr, want := range map[string]bool{
		":8080":          true,
		"0.0.0.0:8080":   true,
		"[::]:8080":      true,
		"127.0.0.1:8080": false,
		"example:8080":   false,
		"garbage":        false,
	} {
		if got := IsUnspecifiedHost(addr); got != want {
			t.Fatalf("IsUnspecifiedHost(%q)=%v, want %v", addr, got, want)
		}
	}
}
