package stt

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	shellwords "github.com/mattn/go-shellwords"

	"github.com/loqalabs/loqa-transcribe/internal/config"
)

type execFactory struct {
	cmd []string
	cfg config.EngineConfig
}

// NewExecFactory wires an external transcription command as the engine.
// The command receives a temp WAV via --audio and must print
// {"text": "..."} JSON on stdout.
func NewExecFactory(cfg config.EngineConfig) (EngineFactory, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("parse engine command: %w", err)
	}
	if len(args) == 0 {
		return nil, errors.New("engine command is empty")
	}
	return &execFactory{cmd: args, cfg: cfg}, nil
}

func (f *execFactory) NewEngine(sampleRate int) (Engine, error) {
	return &execEngine{cmd: f.cmd, cfg: f.cfg, sampleRate: sampleRate}, nil
}

type execEngine struct {
	cmd        []string
	cfg        config.EngineConfig
	sampleRate int
	pcm        []byte
}

type execResult struct {
	Text string `json:"text"`
}

func (e *execEngine) Feed(chunk []byte) (bool, error) {
	e.pcm = append(e.pcm, chunk...)
	return false, nil
}

func (e *execEngine) Result() (string, error) {
	return "", nil
}

func (e *execEngine) FinalResult() (string, error) {
	if len(e.pcm) == 0 {
		return "", nil
	}

	file, err := os.CreateTemp(os.TempDir(), "loqa_transcribe_*.wav")
	if err != nil {
		return "", fmt.Errorf("temp file: %w", err)
	}
	defer os.Remove(file.Name())
	defer file.Close()

	if err := writePCMToWav(file, e.pcm, e.sampleRate); err != nil {
		return "", err
	}

	base := e.cmd[0]
	cmdArgs := append([]string{}, e.cmd[1:]...)
	cmdArgs = append(cmdArgs, "--audio", file.Name())
	if e.cfg.ModelPath != "" {
		cmdArgs = append(cmdArgs, "--model", e.cfg.ModelPath)
	}
	if e.cfg.Language != "" {
		cmdArgs = append(cmdArgs, "--language", e.cfg.Language)
	}

	command := exec.Command(base, cmdArgs...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	command.Stdout = &stdout
	command.Stderr = &stderr

	if err := command.Run(); err != nil {
		return "", fmt.Errorf("engine command failed: %w: %s", err, stderr.String())
	}

	var resp execResult
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return "", fmt.Errorf("decode engine response: %w", err)
	}
	return resp.Text, nil
}

func (e *execEngine) Close() error {
	e.pcm = nil
	return nil
}

func writePCMToWav(file *os.File, pcm []byte, sampleRate int) error {
	if len(pcm)%2 != 0 {
		return fmt.Errorf("pcm payload not aligned")
	}
	samples := make([]int, len(pcm)/2)
	for i := 0; i < len(samples); i++ {
		samples[i] = int(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
	}
	buffer := &gaudio.IntBuffer{
		Data:   samples,
		Format: &gaudio.Format{NumChannels: 1, SampleRate: sampleRate},
	}

	enc := wav.NewEncoder(file, sampleRate, 16, 1, 1)
	if err := enc.Write(buffer); err != nil {
		return fmt.Errorf("write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("close wav encoder: %w", err)
	}
	return nil
}
