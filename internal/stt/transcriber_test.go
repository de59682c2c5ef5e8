package stt

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// memSource serves raw PCM16 bytes as a chunked stream.
type memSource struct {
	channels int
	rate     int
	data     []byte
	off      int
}

func (s *memSource) Channels() int   { return s.channels }
func (s *memSource) SampleRate() int { return s.rate }

func (s *memSource) ReadChunk(maxFrames int) ([]byte, error) {
	if s.off >= len(s.data) {
		return nil, nil
	}
	n := maxFrames * 2 * s.channels
	if s.off+n > len(s.data) {
		n = len(s.data) - s.off
	}
	chunk := s.data[s.off : s.off+n]
	s.off += n
	return chunk, nil
}

// stubEngine finalizes a segment each time the cumulative fed byte
// count crosses one of its thresholds, so segment boundaries do not
// depend on chunk size.
type stubEngine struct {
	thresholds []int
	segments   []string
	final      string
	feedErr    error
	finalErr   error

	fed        int
	next       int
	finalCalls int
	closed     int
}

func (e *stubEngine) Feed(chunk []byte) (bool, error) {
	if e.feedErr != nil {
		return false, e.feedErr
	}
	e.fed += len(chunk)
	if e.next < len(e.thresholds) && e.fed >= e.thresholds[e.next] {
		return true, nil
	}
	return false, nil
}

func (e *stubEngine) Result() (string, error) {
	if e.next >= len(e.segments) {
		return "", nil
	}
	text := e.segments[e.next]
	e.next++
	return text, nil
}

func (e *stubEngine) FinalResult() (string, error) {
	e.finalCalls++
	if e.finalErr != nil {
		return "", e.finalErr
	}
	return e.final, nil
}

func (e *stubEngine) Close() error {
	e.closed++
	return nil
}

type stubFactory struct {
	engine *stubEngine
	calls  int
	rate   int
}

func (f *stubFactory) NewEngine(sampleRate int) (Engine, error) {
	f.calls++
	f.rate = sampleRate
	return f.engine, nil
}

func TestMonoValidationBeforeEngine(t *testing.T) {
	factory := &stubFactory{engine: &stubEngine{}}
	tr := NewTranscriber(factory, 4000, newLogger())

	src := &memSource{channels: 2, rate: 16000, data: make([]byte, 64)}
	_, err := tr.Transcribe(context.Background(), src)
	if !errors.Is(err, ErrNotMono) {
		t.Fatalf("expected ErrNotMono, got %v", err)
	}
	if err.Error() != "Audio must be mono" {
		t.Fatalf("unexpected error message: %q", err.Error())
	}
	if factory.calls != 0 {
		t.Fatalf("engine must not be constructed for non-mono input, got %d calls", factory.calls)
	}
}

func TestEmptyAudioYieldsEmptyTranscript(t *testing.T) {
	engine := &stubEngine{final: ""}
	factory := &stubFactory{engine: engine}
	tr := NewTranscriber(factory, 4000, newLogger())

	text, err := tr.Transcribe(context.Background(), &memSource{channels: 1, rate: 16000})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "" {
		t.Fatalf("expected empty transcript, got %q", text)
	}
	if engine.finalCalls != 1 {
		t.Fatalf("expected exactly one final flush, got %d", engine.finalCalls)
	}
}

func TestSegmentsTrimmedAndJoined(t *testing.T) {
	engine := &stubEngine{
		thresholds: []int{4, 8, 12},
		segments:   []string{"  hello  ", "   ", "again"},
		final:      "  done  ",
	}
	factory := &stubFactory{engine: engine}
	tr := NewTranscriber(factory, 2, newLogger())

	src := &memSource{channels: 1, rate: 16000, data: make([]byte, 24)}
	text, err := tr.Transcribe(context.Background(), src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "hello again done" {
		t.Fatalf("unexpected transcript: %q", text)
	}
	if strings.Contains(text, "  ") {
		t.Fatalf("transcript contains doubled spaces: %q", text)
	}
	if factory.rate != 16000 {
		t.Fatalf("expected session bound to 16000 Hz, got %d", factory.rate)
	}
}

func TestChunkSizeInvariance(t *testing.T) {
	run := func(chunkFrames int) string {
		engine := &stubEngine{
			thresholds: []int{8000, 24000},
			segments:   []string{"first", "second"},
			final:      "tail",
		}
		tr := NewTranscriber(&stubFactory{engine: engine}, chunkFrames, newLogger())
		src := &memSource{channels: 1, rate: 16000, data: make([]byte, 32000)}
		text, err := tr.Transcribe(context.Background(), src)
		if err != nil {
			t.Fatalf("chunk size %d: unexpected error: %v", chunkFrames, err)
		}
		return text
	}

	large := run(4000)
	small := run(1000)
	if large != small {
		t.Fatalf("transcript depends on chunk size: %q vs %q", large, small)
	}
	if large != "first second tail" {
		t.Fatalf("unexpected transcript: %q", large)
	}
}

func TestFinalFlushExactlyOnce(t *testing.T) {
	engine := &stubEngine{
		thresholds: []int{4, 8},
		segments:   []string{"a", "b"},
		final:      "c",
	}
	tr := NewTranscriber(&stubFactory{engine: engine}, 1, newLogger())
	src := &memSource{channels: 1, rate: 8000, data: make([]byte, 10)}

	if _, err := tr.Transcribe(context.Background(), src); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if engine.finalCalls != 1 {
		t.Fatalf("expected exactly one final flush, got %d", engine.finalCalls)
	}
}

func TestFeedErrorPropagatesUnmodified(t *testing.T) {
	feedErr := errors.New("engine exploded")
	engine := &stubEngine{feedErr: feedErr}
	tr := NewTranscriber(&stubFactory{engine: engine}, 4000, newLogger())
	src := &memSource{channels: 1, rate: 16000, data: make([]byte, 64)}

	_, err := tr.Transcribe(context.Background(), src)
	if !errors.Is(err, feedErr) {
		t.Fatalf("expected feed error to propagate, got %v", err)
	}
	if err.Error() != "engine exploded" {
		t.Fatalf("feed error must propagate unmodified, got %q", err.Error())
	}
	if engine.closed != 1 {
		t.Fatalf("engine session must be closed on failure, got %d closes", engine.closed)
	}
}

func TestFinalErrorDiscardsTranscript(t *testing.T) {
	engine := &stubEngine{
		thresholds: []int{4},
		segments:   []string{"partial text"},
		finalErr:   errors.New("flush failed"),
	}
	tr := NewTranscriber(&stubFactory{engine: engine}, 2, newLogger())
	src := &memSource{channels: 1, rate: 16000, data: make([]byte, 8)}

	text, err := tr.Transcribe(context.Background(), src)
	if err == nil {
		t.Fatal("expected final flush error")
	}
	if text != "" {
		t.Fatalf("mid-stream failure must discard accumulated text, got %q", text)
	}
}

func writeWavFixture(t *testing.T, samples []int, sampleRate, channels int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create fixture: %v", err)
	}
	enc := wav.NewEncoder(f, sampleRate, 16, channels, 1)
	buf := &gaudio.IntBuffer{
		Data:   samples,
		Format: &gaudio.Format{NumChannels: channels, SampleRate: sampleRate},
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close encoder: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close fixture: %v", err)
	}
	return path
}

func TestTranscribeFileWithMockEngine(t *testing.T) {
	path := writeWavFixture(t, make([]int, 8000), 16000, 1)
	tr := NewTranscriber(NewMockFactory(), 4000, newLogger())

	text, err := tr.TranscribeFile(context.Background(), path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "[mock transcript rate=16000 bytes=16000]" {
		t.Fatalf("unexpected transcript: %q", text)
	}
}

func TestTranscribeFileRejectsStereo(t *testing.T) {
	path := writeWavFixture(t, make([]int, 100), 16000, 2)
	tr := NewTranscriber(NewMockFactory(), 4000, newLogger())

	_, err := tr.TranscribeFile(context.Background(), path)
	if !errors.Is(err, ErrNotMono) {
		t.Fatalf("expected ErrNotMono, got %v", err)
	}
}
