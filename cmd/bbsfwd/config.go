package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// settings is the daemon runtime configuration. Flags override the file.
type settings struct {
	Link           string
	HTTPAddr       string
	ConnectTimeout time.Duration
	RequestTimeout time.Duration
	ReconnectDelay time.Duration
	EventLog       bool
	EventHistory   int
}

func defaultSettings() settings {
	return settings{
		ConnectTimeout: 10 * time.Second,
		RequestTimeout: 3 * time.Second,
		ReconnectDelay: 12 * time.Second,
		EventLog:       true,
		EventHistory:   256,
	}
}

type fileSettings struct {
	Link           string `toml:"link"`
	HTTPAddr       string `toml:"http_addr"`
	ConnectTimeout string `toml:"connect_timeout"`
	RequestTimeout string `toml:"request_timeout"`
	ReconnectDelay string `toml:"reconnect_delay"`
	EventLog       bool   `toml:"event_log"`
	EventHistory   int    `toml:"event_history"`
}

func loadSettings(path string) (settings, error) {
	cfg := defaultSettings()
	if path == "" {
		return cfg, nil
	}

	var raw fileSettings
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return settings{}, fmt.Errorf("load daemon settings: %w", err)
	}

	if meta.IsDefined("link") {
		cfg.Link = strings.TrimSpace(raw.Link)
	}

	if meta.IsDefined("http_addr") {
		cfg.HTTPAddr = strings.TrimSpace(raw.HTTPAddr)
	}

	if meta.IsDefined("connect_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.ConnectTimeout))
		if err != nil {
			return settings{}, fmt.Errorf("parse connect_timeout: %w", err)
		}
		cfg.ConnectTimeout = d
	}

	if meta.IsDefined("request_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.RequestTimeout))
		if err != nil {
			return settings{}, fmt.Errorf("parse request_timeout: %w", err)
		}
		cfg.RequestTimeout = d
	}

	if meta.IsDefined("reconnect_delay") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.ReconnectDelay))
		if err != nil {
			return settings{}, fmt.Errorf("parse reconnect_delay: %w", err)
		}
		cfg.ReconnectDelay = d
	}

	if meta.IsDefined("event_log") {
		cfg.EventLog = raw.EventLog
	}

	if meta.IsDefined("event_history") {
		if raw.EventHistory < 1 {
			return settings{}, fmt.Errorf("event_history must be positive, got %d", raw.EventHistory)
		}
		cfg.EventHistory = raw.EventHistory
	}

	return cfg, nil
}
