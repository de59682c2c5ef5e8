package stt

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strings"

	whisper "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/loqalabs/loqa-transcribe/internal/config"
)

type whisperFactory struct {
	cfg config.EngineConfig
}

// NewWhisperFactory validates the model path and returns a factory for
// whisper.cpp sessions. Whisper decodes in one pass, so the engine
// buffers fed audio and transcribes everything at FinalResult.
func NewWhisperFactory(cfg config.EngineConfig) (EngineFactory, error) {
	if cfg.ModelPath == "" {
		return nil, fmt.Errorf("engine.model_path must be set for the whisper engine")
	}
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("whisper model not found: %w", err)
	}
	return &whisperFactory{cfg: cfg}, nil
}

func (f *whisperFactory) NewEngine(sampleRate int) (Engine, error) {
	if sampleRate != whisper.SampleRate {
		return nil, fmt.Errorf("whisper engine requires %d Hz input, got %d", whisper.SampleRate, sampleRate)
	}
	model, err := whisper.New(f.cfg.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("load whisper model: %w", err)
	}
	return &whisperEngine{model: model, lang: f.cfg.Language}, nil
}

type whisperEngine struct {
	model whisper.Model
	lang  string
	pcm   []byte
}

func (e *whisperEngine) Feed(chunk []byte) (bool, error) {
	e.pcm = append(e.pcm, chunk...)
	return false, nil
}

func (e *whisperEngine) Result() (string, error) {
	return "", nil
}

func (e *whisperEngine) FinalResult() (string, error) {
	if len(e.pcm) == 0 {
		return "", nil
	}
	if len(e.pcm)%2 != 0 {
		return "", fmt.Errorf("pcm payload not aligned")
	}

	samples := make([]float32, len(e.pcm)/2)
	for i := range samples {
		samples[i] = float32(int16(binary.LittleEndian.Uint16(e.pcm[i*2:]))) / 32768
	}

	ctx, err := e.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("create whisper context: %w", err)
	}
	ctx.SetTranslate(false)
	if e.lang != "" {
		if err := ctx.SetLanguage(e.lang); err != nil {
			return "", fmt.Errorf("set whisper language: %w", err)
		}
	}
	if err := ctx.Process(samples, nil, nil, nil); err != nil {
		return "", fmt.Errorf("whisper decode: %w", err)
	}

	var sb strings.Builder
	for {
		segment, err := ctx.NextSegment()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		sb.WriteString(segment.Text)
		sb.WriteString(" ")
	}
	return sb.String(), nil
}

func (e *whisperEngine) Close() error {
	if e.model != nil {
		err := e.model.Close()
		e.model = nil
		return err
	}
	return nil
}
