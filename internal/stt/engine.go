package stt

import (
	"fmt"

	"github.com/loqalabs/loqa-transcribe/internal/config"
)

// Engine is the narrow surface the transcription driver needs from a
// speech recognizer. Feed reports whether the engine has finalized an
// utterance segment; Result drains that segment, FinalResult flushes
// whatever decode is still pending at end of stream.
type Engine interface {
	Feed(chunk []byte) (bool, error)
	Result() (string, error)
	FinalResult() (string, error)
	Close() error
}

// EngineFactory builds one engine session per transcription call,
// bound to the input's sample rate.
type EngineFactory interface {
	NewEngine(sampleRate int) (Engine, error)
}

// NewEngineFactory selects the engine backend from config.
func NewEngineFactory(cfg config.EngineConfig) (EngineFactory, error) {
	switch cfg.Mode {
	case "", "vosk":
		return NewVoskFactory(cfg)
	case "whisper":
		return NewWhisperFactory(cfg)
	case "exec":
		return NewExecFactory(cfg)
	case "mock":
		return NewMockFactory(), nil
	default:
		return nil, fmt.Errorf("unknown engine mode %q", cfg.Mode)
	}
}
