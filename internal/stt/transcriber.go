package stt

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/loqalabs/loqa-transcribe/internal/audio"
)

// ErrNotMono is returned before any engine work when the input has more
// than one channel. The message is part of the CLI contract.
var ErrNotMono = errors.New("Audio must be mono")

// DefaultChunkFrames is the per-read feeding granularity recommended by
// the recognition engine.
const DefaultChunkFrames = 4000

// ChunkSource yields raw PCM16 chunks from validated audio input.
type ChunkSource interface {
	Channels() int
	SampleRate() int
	ReadChunk(maxFrames int) ([]byte, error)
}

type accumulator struct {
	parts []string
}

func (a *accumulator) add(text string) {
	if t := strings.TrimSpace(text); t != "" {
		a.parts = append(a.parts, t)
	}
}

func (a *accumulator) join() string {
	return strings.TrimSpace(strings.Join(a.parts, " "))
}

// Transcriber drives one engine session per input file.
type Transcriber struct {
	factory     EngineFactory
	chunkFrames int
	log         *slog.Logger
}

func NewTranscriber(factory EngineFactory, chunkFrames int, log *slog.Logger) *Transcriber {
	if chunkFrames <= 0 {
		chunkFrames = DefaultChunkFrames
	}
	if log == nil {
		log = slog.Default()
	}
	return &Transcriber{factory: factory, chunkFrames: chunkFrames, log: log}
}

// TranscribeFile opens the WAV at inputPath and returns its transcript.
// The file handle is released on every exit path; close failures are
// logged rather than surfaced.
func (t *Transcriber) TranscribeFile(ctx context.Context, inputPath string) (string, error) {
	src, err := audio.Open(inputPath)
	if err != nil {
		return "", err
	}
	defer func() {
		if err := src.Close(); err != nil {
			t.log.Warn("failed to close audio file", slog.String("error", err.Error()))
		}
	}()

	return t.Transcribe(ctx, src)
}

// Transcribe feeds src through one engine session and joins the
// finalized segments with single spaces. Mono input is enforced before
// the engine is constructed. Engine errors propagate unmodified and
// discard any accumulated text.
func (t *Transcriber) Transcribe(ctx context.Context, src ChunkSource) (string, error) {
	if src.Channels() != 1 {
		return "", ErrNotMono
	}

	eng, err := t.factory.NewEngine(src.SampleRate())
	if err != nil {
		return "", err
	}
	defer func() {
		if err := eng.Close(); err != nil {
			t.log.Warn("failed to close engine session", slog.String("error", err.Error()))
		}
	}()

	var acc accumulator
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		chunk, err := src.ReadChunk(t.chunkFrames)
		if err != nil {
			return "", err
		}
		if len(chunk) == 0 {
			break
		}
		done, err := eng.Feed(chunk)
		if err != nil {
			return "", err
		}
		if done {
			text, err := eng.Result()
			if err != nil {
				return "", err
			}
			acc.add(text)
		}
	}

	text, err := eng.FinalResult()
	if err != nil {
		return "", err
	}
	acc.add(text)

	return acc.join(), nil
}
