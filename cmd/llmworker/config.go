package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/danmuck/neuraflow/internal/config"
	"github.com/danmuck/neuraflow/internal/worker"
	"github.com/danmuck/neuraflow/internal/workers/llm"
)

type serviceConfig struct {
	Worker worker.Config
	Model  llm.Config
}

func defaultServiceConfig() serviceConfig {
	return serviceConfig{
		Worker: worker.DefaultConfig(llm.ServiceName),
		Model:  llm.DefaultConfig(),
	}
}

// loadServiceConfig overlays keys present in the file onto worker and model defaults.
func loadServiceConfig(path string) (serviceConfig, error) {
	cfg := defaultServiceConfig()

	var raw config.WorkerFile
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return serviceConfig{}, fmt.Errorf("load llmworker config: %w", err)
	}

	if meta.IsDefined("service_name") {
		if name := strings.TrimSpace(raw.ServiceName); name != "" {
			cfg.Worker.ServiceName = name
		}
	}
	if meta.IsDefined("broker_addr") {
		cfg.Worker.BrokerAddr = strings.TrimSpace(raw.BrokerAddr)
	}
	if meta.IsDefined("output_addr") {
		cfg.Worker.OutputAddr = strings.TrimSpace(raw.OutputAddr)
	}
	if meta.IsDefined("control_prefix") {
		// empty disables the worker control server
		cfg.Worker.ControlPrefix = strings.TrimSpace(raw.ControlPrefix)
	}
	if meta.IsDefined("response") {
		cfg.Model.Response = raw.Response
	}

	durations := []struct {
		key    string
		value  string
		target *time.Duration
	}{
		{"retry_interval", raw.RetryInterval, &cfg.Worker.Backoff.InitialDelay},
		{"dial_timeout", raw.DialTimeout, &cfg.Worker.IPC.DialTimeout},
		{"reply_timeout", raw.ReplyTimeout, &cfg.Worker.IPC.ReplyTimeout},
		{"token_delay", raw.TokenDelay, &cfg.Model.TokenDelay},
		{"load_step_delay", raw.LoadStepDelay, &cfg.Model.LoadStepDelay},
	}
	for _, d := range durations {
		if !meta.IsDefined(d.key) {
			continue
		}
		parsed, err := time.ParseDuration(strings.TrimSpace(d.value))
		if err != nil {
			return serviceConfig{}, fmt.Errorf("parse %s: %w", d.key, err)
		}
		*d.target = parsed
	}

	cfg.Worker = cfg.Worker.WithDefaults()
	if err := cfg.Worker.Validate(); err != nil {
		return serviceConfig{}, err
	}
	return cfg, nil
}
