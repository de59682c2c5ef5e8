// Package audio reads PCM16 chunks out of WAV containers.
package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ErrInvalidFormat marks files that cannot be consumed as 16-bit PCM WAV.
var ErrInvalidFormat = errors.New("invalid wav file")

// Reader streams fixed-size chunks of raw samples from an open WAV file.
// It reads forward only; reuse requires reopening the file.
type Reader struct {
	f   *os.File
	dec *wav.Decoder
	buf *gaudio.IntBuffer
}

// Open parses the WAV header at path and prepares the file for chunked reads.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open audio file: %w", err)
	}

	dec := wav.NewDecoder(f)
	dec.ReadInfo()
	if err := dec.Err(); err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	if dec.NumChans == 0 || dec.SampleRate == 0 {
		f.Close()
		return nil, fmt.Errorf("%w: missing format chunk", ErrInvalidFormat)
	}
	if dec.BitDepth != 16 {
		f.Close()
		return nil, fmt.Errorf("%w: unsupported bit depth %d, want 16-bit PCM", ErrInvalidFormat, dec.BitDepth)
	}

	return &Reader{f: f, dec: dec}, nil
}

func (r *Reader) Channels() int {
	return int(r.dec.NumChans)
}

func (r *Reader) SampleRate() int {
	return int(r.dec.SampleRate)
}

func (r *Reader) BitDepth() int {
	return int(r.dec.BitDepth)
}

// ReadChunk returns up to maxFrames frames of raw little-endian PCM16
// samples. An empty result signals end of stream, not an error.
func (r *Reader) ReadChunk(maxFrames int) ([]byte, error) {
	if maxFrames <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", maxFrames)
	}

	want := maxFrames * r.Channels()
	if r.buf == nil || len(r.buf.Data) != want {
		r.buf = &gaudio.IntBuffer{Data: make([]int, want)}
	}

	n, err := r.dec.PCMBuffer(r.buf)
	if err != nil {
		return nil, fmt.Errorf("read pcm: %w", err)
	}
	if n == 0 {
		return nil, nil
	}

	out := make([]byte, n*2)
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(r.buf.Data[i])))
	}
	return out, nil
}

// Close releases the underlying file handle.
func (r *Reader) Close() error {
	return r.f.Close()
}
