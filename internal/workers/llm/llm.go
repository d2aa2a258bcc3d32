// Package llm is a simulated language-model worker: Initialize pretends to load a
// model and Process streams a canned answer back one word at a time.
package llm

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	logs "github.com/danmuck/neuraflow/internal/logging"
	"github.com/danmuck/neuraflow/internal/worker"
)

const (
	ServiceName     = "llm_service"
	EndOfStream     = "<EOS>"
	DefaultResponse = "DeepSeek is a powerful AI model running on Edge."
)

type Config struct {
	Response string
	// TokenDelay is the simulated inference time per emitted word.
	TokenDelay time.Duration
	// LoadStepDelay is the pause between the 0,20,...,100% load progress steps.
	LoadStepDelay time.Duration
}

func DefaultConfig() Config {
	return Config{
		Response:      DefaultResponse,
		TokenDelay:    200 * time.Millisecond,
		LoadStepDelay: 400 * time.Millisecond,
	}
}

type Worker struct {
	cfg Config
	log zerolog.Logger

	mu     sync.RWMutex
	loaded bool
	config string

	prompts atomic.Uint64
	tokens  atomic.Uint64
}

var _ worker.Worker = (*Worker)(nil)

func New(cfg Config) *Worker {
	if strings.TrimSpace(cfg.Response) == "" {
		cfg.Response = DefaultResponse
	}
	return &Worker{
		cfg: cfg,
		log: logs.With("service", ServiceName),
	}
}

// Initialize simulates a model load. Config bytes must be valid UTF-8; an empty
// config is accepted.
func (w *Worker) Initialize(config []byte) bool {
	if !utf8.Valid(config) {
		w.log.Warn().Int("config_bytes", len(config)).Msg("llm.Worker rejecting non-utf8 config")
		return false
	}
	w.log.Info().Str("config", string(config)).Msg("llm.Worker loading model")
	for pct := 0; pct <= 100; pct += 20 {
		w.log.Debug().Int("percent", pct).Msg("llm.Worker loading")
		if w.cfg.LoadStepDelay > 0 {
			time.Sleep(w.cfg.LoadStepDelay)
		}
	}

	w.mu.Lock()
	w.loaded = true
	w.config = string(config)
	w.mu.Unlock()
	w.log.Info().Msg("llm.Worker model loaded")
	return true
}

// Process streams the canned response word by word, each followed by a space,
// then EndOfStream. A failed emit stops the stream.
func (w *Worker) Process(prompt []byte, out worker.Emitter) {
	w.prompts.Add(1)
	w.log.Info().Str("prompt", string(prompt)).Msg("llm.Worker received prompt")

	for _, word := range strings.Fields(w.cfg.Response) {
		if w.cfg.TokenDelay > 0 {
			time.Sleep(w.cfg.TokenDelay)
		}
		token := word + " "
		if err := out.Emit([]byte(token)); err != nil {
			w.log.Warn().Err(err).Msg("llm.Worker emit failed, abandoning inference")
			return
		}
		w.tokens.Add(1)
		w.log.Debug().Str("token", token).Msg("llm.Worker generated token")
	}
	if err := out.Emit([]byte(EndOfStream)); err != nil {
		w.log.Warn().Err(err).Msg("llm.Worker emit end of stream failed")
		return
	}
	w.log.Info().Msg("llm.Worker inference finished")
}

func (w *Worker) Loaded() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.loaded
}

// LoadedConfig returns the config text of the last successful Initialize.
func (w *Worker) LoadedConfig() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.config
}

func (w *Worker) Prompts() uint64 {
	return w.prompts.Load()
}

func (w *Worker) Tokens() uint64 {
	return w.tokens.Load()
}
