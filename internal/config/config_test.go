package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNew_Defaults(t *testing.T) {
	for _, env := range []string{EnvPort, EnvLogLevel, EnvDataDir, EnvCascadeDir, EnvHeadless, EnvTrackCap} {
		os.Unsetenv(env)
	}

	cfg, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port() != DefaultPort {
		t.Errorf("Port() = %d, want %d", cfg.Port(), DefaultPort)
	}
	if cfg.LogLevel() != DefaultLogLevel {
		t.Errorf("LogLevel() = %q, want %q", cfg.LogLevel(), DefaultLogLevel)
	}
	if cfg.Headless() {
		t.Error("Headless() = true, want false by default")
	}
	if cfg.DBPath() != filepath.Join(cfg.DataDir(), DBFilename) {
		t.Errorf("DBPath() = %q, want it under DataDir", cfg.DBPath())
	}
}

func TestNew_EnvOverrides(t *testing.T) {
	os.Setenv(EnvPort, "9001")
	os.Setenv(EnvLogLevel, "debug")
	os.Setenv(EnvDataDir, "/tmp/obscura-test")
	os.Setenv(EnvCascadeDir, "/opt/cascades")
	os.Setenv(EnvHeadless, "true")
	defer func() {
		for _, env := range []string{EnvPort, EnvLogLevel, EnvDataDir, EnvCascadeDir, EnvHeadless} {
			os.Unsetenv(env)
		}
	}()

	cfg, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port() != 9001 {
		t.Errorf("Port() = %d, want 9001", cfg.Port())
	}
	if cfg.LogLevel() != "debug" {
		t.Errorf("LogLevel() = %q, want debug", cfg.LogLevel())
	}
	if cfg.DataDir() != "/tmp/obscura-test" {
		t.Errorf("DataDir() = %q, want /tmp/obscura-test", cfg.DataDir())
	}
	if cfg.CascadeDir() != "/opt/cascades" {
		t.Errorf("CascadeDir() = %q, want /opt/cascades", cfg.CascadeDir())
	}
	if !cfg.Headless() {
		t.Error("Headless() = false, want true")
	}
}

func TestNew_InvalidPort(t *testing.T) {
	cases := []string{"abc", "0", "70000", "-1"}

	for _, p := range cases {
		os.Setenv(EnvPort, p)
		if _, err := New(); err == nil {
			t.Errorf("New() with %s=%q: expected error", EnvPort, p)
		}
	}
	os.Unsetenv(EnvPort)
}

func TestNew_TrackCap(t *testing.T) {
	os.Unsetenv(EnvTrackCap)
	cfg, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.TrackCap() != DefaultTrackCap {
		t.Errorf("TrackCap() = %d, want %d", cfg.TrackCap(), DefaultTrackCap)
	}

	os.Setenv(EnvTrackCap, "600")
	defer os.Unsetenv(EnvTrackCap)
	cfg, err = New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.TrackCap() != 600 {
		t.Errorf("TrackCap() = %d, want 600", cfg.TrackCap())
	}

	for _, bad := range []string{"0", "-5", "lots"} {
		os.Setenv(EnvTrackCap, bad)
		if _, err := New(); err == nil {
			t.Errorf("New() with %s=%q: expected error", EnvTrackCap, bad)
		}
	}
}

func TestNew_InvalidHeadless(t *testing.T) {
	os.Setenv(EnvHeadless, "maybe")
	defer os.Unsetenv(EnvHeadless)

	if _, err := New(); err == nil {
		t.Error("expected error for non-boolean headless value")
	}
}
