package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/danmuck/neuraflow/internal/broker"
	"github.com/danmuck/neuraflow/internal/config"
)

// loadBrokerConfig overlays keys present in the file onto broker defaults.
func loadBrokerConfig(path string) (broker.Config, error) {
	cfg := broker.DefaultConfig()

	var raw config.BrokerFile
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return broker.Config{}, fmt.Errorf("load broker config: %w", err)
	}

	if meta.IsDefined("control_addr") {
		cfg.ControlAddr = strings.TrimSpace(raw.ControlAddr)
	}
	if meta.IsDefined("sink_addr") {
		cfg.SinkAddr = strings.TrimSpace(raw.SinkAddr)
	}
	if meta.IsDefined("stream_prefix") {
		cfg.StreamPrefix = strings.TrimSpace(raw.StreamPrefix)
	}
	if meta.IsDefined("first_identity") {
		if raw.FirstIdentity <= 0 {
			return broker.Config{}, fmt.Errorf("first_identity must be positive, got %d", raw.FirstIdentity)
		}
		cfg.FirstIdentity = raw.FirstIdentity
	}
	if meta.IsDefined("admin_listen_addr") {
		cfg.AdminListenAddr = strings.TrimSpace(raw.AdminListenAddr)
	}
	if meta.IsDefined("admin_allow_origins") {
		cfg.AdminAllowOrigins = raw.AdminAllowOrigins
	}
	if meta.IsDefined("admin_token") {
		cfg.AdminToken = strings.TrimSpace(raw.AdminToken)
	}
	if meta.IsDefined("max_message_bytes") {
		cfg.IPC.MaxMessageBytes = raw.MaxMessageBytes
	}
	if meta.IsDefined("dial_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.DialTimeout))
		if err != nil {
			return broker.Config{}, fmt.Errorf("parse dial_timeout: %w", err)
		}
		cfg.IPC.DialTimeout = d
	}
	if meta.IsDefined("reply_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.ReplyTimeout))
		if err != nil {
			return broker.Config{}, fmt.Errorf("parse reply_timeout: %w", err)
		}
		cfg.IPC.ReplyTimeout = d
	}

	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return broker.Config{}, err
	}
	return cfg, nil
}
