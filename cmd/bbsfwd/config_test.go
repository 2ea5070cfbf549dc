package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadSettingsDefaults(t *testing.T) {
	s, err := loadSettings("")
	if err != nil {
		t.Fatalf("loadSettings: %v", err)
	}
	if s.ConnectTimeout != 10*time.Second || s.RequestTimeout != 3*time.Second {
		t.Fatalf("unexpected default timeouts: %+v", s)
	}
	if s.ReconnectDelay != 12*time.Second || s.EventHistory != 256 || !s.EventLog {
		t.Fatalf("unexpected defaults: %+v", s)
	}
}

func TestLoadSettingsOverrides(t *testing.T) {
	const file = `
link = "tcp://10.0.0.5:8887"
http_addr = " 8080 "
request_timeout = "1500ms"
event_log = false
event_history = 16
`
	path := filepath.Join(t.TempDir(), "bbsfwd.toml")
	if err := os.WriteFile(path, []byte(file), 0o644); err != nil {
		t.Fatalf("write settings: %v", err)
	}
	s, err := loadSettings(path)
	if err != nil {
		t.Fatalf("loadSettings: %v", err)
	}
	if s.Link != "tcp://10.0.0.5:8887" {
		t.Errorf("link = %q", s.Link)
	}
	if s.HTTPAddr != "8080" {
		t.Errorf("http_addr = %q, want trimmed value", s.HTTPAddr)
	}
	if s.RequestTimeout != 1500*time.Millisecond {
		t.Errorf("request_timeout = %v", s.RequestTimeout)
	}
	if s.EventLog {
		t.Error("event_log override lost")
	}
	if s.EventHistory != 16 {
		t.Errorf("event_history = %d", s.EventHistory)
	}
	if s.ConnectTimeout != 10*time.Second {
		t.Errorf("connect_timeout = %v, want untouched default", s.ConnectTimeout)
	}
}

func TestLoadSettingsBadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bbsfwd.toml")
	if err := os.WriteFile(path, []byte("reconnect_delay = \"soon\"\n"), 0o644); err != nil {
		t.Fatalf("write settings: %v", err)
	}
	if _, err := loadSettings(path); err == nil {
		t.Fatal("loadSettings accepted a malformed duration")
	}
}

func TestLoadSettingsMissingFile(t *testing.T) {
	if _, err := loadSettings(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Fatal("loadSettings succeeded on a missing file")
	}
}

func TestLoadSettingsBadHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bbsfwd.toml")
	if err := os.WriteFile(path, []byte("event_history = 0\n"), 0o644); err != nil {
		t.Fatalf("write settings: %v", err)
	}
	if _, err := loadSettings(path); err == nil {
		t.Fatal("loadSettings accepted a zero event history")
	}
}
