// Package config holds the on-disk TOML schemas for brokerd and llmworker,
// their templates, and a strict validator used by configgen.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/danmuck/neuraflow/internal/ipc"
)

const (
	KindBroker = "broker"
	KindWorker = "llmworker"
)

// BrokerFile is the brokerd config.toml key set.
type BrokerFile struct {
	ControlAddr       string   `toml:"control_addr"`
	SinkAddr          string   `toml:"sink_addr"`
	StreamPrefix      string   `toml:"stream_prefix"`
	FirstIdentity     int64    `toml:"first_identity"`
	AdminListenAddr   string   `toml:"admin_listen_addr"`
	AdminAllowOrigins []string `toml:"admin_allow_origins"`
	AdminToken        string   `toml:"admin_token"`
	MaxMessageBytes   uint32   `toml:"max_message_bytes"`
	DialTimeout       string   `toml:"dial_timeout"`
	ReplyTimeout      string   `toml:"reply_timeout"`
}

// WorkerFile is the llmworker config.toml key set.
type WorkerFile struct {
	ServiceName   string `toml:"service_name"`
	BrokerAddr    string `toml:"broker_addr"`
	OutputAddr    string `toml:"output_addr"`
	ControlPrefix string `toml:"control_prefix"`
	RetryInterval string `toml:"retry_interval"`
	DialTimeout   string `toml:"dial_timeout"`
	ReplyTimeout  string `toml:"reply_timeout"`
	Response      string `toml:"response"`
	TokenDelay    string `toml:"token_delay"`
	LoadStepDelay string `toml:"load_step_delay"`
}

// DefaultPath returns the per-kind config path relative to the repo root.
func DefaultPath(kind string) (string, error) {
	switch normalizeKind(kind) {
	case KindBroker:
		return "cmd/brokerd/config.toml", nil
	case KindWorker:
		return "cmd/llmworker/config.toml", nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

// Validate strictly decodes the file at path: unknown keys, malformed endpoints
// and unparsable durations are all errors.
func Validate(kind, path string) error {
	switch normalizeKind(kind) {
	case KindBroker:
		var f BrokerFile
		if err := loadStrict(path, &f); err != nil {
			return err
		}
		return ValidateBrokerFile(f)
	case KindWorker:
		var f WorkerFile
		if err := loadStrict(path, &f); err != nil {
			return err
		}
		return ValidateWorkerFile(f)
	default:
		return fmt.Errorf("unknown config kind: %s", kind)
	}
}

func ValidateBrokerFile(f BrokerFile) error {
	for key, addr := range map[string]string{
		"control_addr": f.ControlAddr,
		"sink_addr":    f.SinkAddr,
	} {
		if err := validateEndpoint(key, addr); err != nil {
			return err
		}
	}
	if err := validatePrefix("stream_prefix", f.StreamPrefix); err != nil {
		return err
	}
	if f.ControlAddr != "" && strings.TrimSpace(f.ControlAddr) == strings.TrimSpace(f.SinkAddr) {
		return fmt.Errorf("control_addr and sink_addr must differ")
	}
	if f.FirstIdentity < 0 {
		return fmt.Errorf("first_identity must not be negative")
	}
	if err := validateDuration("dial_timeout", f.DialTimeout); err != nil {
		return err
	}
	return validateDuration("reply_timeout", f.ReplyTimeout)
}

func ValidateWorkerFile(f WorkerFile) error {
	for key, addr := range map[string]string{
		"broker_addr": f.BrokerAddr,
		"output_addr": f.OutputAddr,
	} {
		if err := validateEndpoint(key, addr); err != nil {
			return err
		}
	}
	if err := validatePrefix("control_prefix", f.ControlPrefix); err != nil {
		return err
	}
	for key, d := range map[string]string{
		"retry_interval":  f.RetryInterval,
		"dial_timeout":    f.DialTimeout,
		"reply_timeout":   f.ReplyTimeout,
		"token_delay":     f.TokenDelay,
		"load_step_delay": f.LoadStepDelay,
	} {
		if err := validateDuration(key, d); err != nil {
			return err
		}
	}
	return nil
}

func loadStrict(path string, out any) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	defer file.Close()
	dec := toml.NewDecoder(file).DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func validateEndpoint(key, raw string) error {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	if _, err := ipc.ParseEndpoint(raw); err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	return nil
}

func validatePrefix(key, raw string) error {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	if err := ipc.ValidatePrefix(raw); err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	return nil
}

func validateDuration(key, raw string) error {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if d < 0 {
		return fmt.Errorf("%s must not be negative", key)
	}
	return nil
}

func normalizeKind(kind string) string {
	return strings.ToLower(strings.TrimSpace(kind))
}
