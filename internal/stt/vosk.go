package stt

import (
	"encoding/json"
	"fmt"
	"os"

	vosk "github.com/alphacep/vosk-api/go"

	"github.com/loqalabs/loqa-transcribe/internal/config"
)

type voskFactory struct {
	cfg config.EngineConfig
}

// NewVoskFactory validates the model path and returns a factory that
// loads the model per session.
func NewVoskFactory(cfg config.EngineConfig) (EngineFactory, error) {
	if cfg.ModelPath == "" {
		return nil, fmt.Errorf("engine.model_path must be set for the vosk engine")
	}
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("vosk model not found: %w", err)
	}
	return &voskFactory{cfg: cfg}, nil
}

func (f *voskFactory) NewEngine(sampleRate int) (Engine, error) {
	model, err := vosk.NewModel(f.cfg.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("load vosk model: %w", err)
	}
	rec, err := vosk.NewRecognizer(model, float64(sampleRate))
	if err != nil {
		model.Free()
		return nil, fmt.Errorf("create vosk recognizer: %w", err)
	}
	words := 0
	if f.cfg.Words {
		words = 1
	}
	rec.SetWords(words)
	return &voskEngine{model: model, rec: rec}, nil
}

type voskEngine struct {
	model *vosk.VoskModel
	rec   *vosk.VoskRecognizer
}

type voskResult struct {
	Text string `json:"text"`
}

func (e *voskEngine) Feed(chunk []byte) (bool, error) {
	return e.rec.AcceptWaveform(chunk) != 0, nil
}

func (e *voskEngine) Result() (string, error) {
	return decodeVoskText(e.rec.Result())
}

func (e *voskEngine) FinalResult() (string, error) {
	return decodeVoskText(e.rec.FinalResult())
}

func (e *voskEngine) Close() error {
	if e.rec != nil {
		e.rec.Free()
		e.rec = nil
	}
	if e.model != nil {
		e.model.Free()
		e.model = nil
	}
	return nil
}

func decodeVoskText(raw string) (string, error) {
	var res voskResult
	if err := json.Unmarshal([]byte(raw), &res); err != nil {
		return "", fmt.Errorf("decode vosk result: %w", err)
	}
	return res.Text, nil
}
