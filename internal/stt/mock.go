package stt

import "fmt"

type mockFactory struct{}

// NewMockFactory returns a deterministic engine for development and tests.
func NewMockFactory() EngineFactory {
	return mockFactory{}
}

func (mockFactory) NewEngine(sampleRate int) (Engine, error) {
	return &mockEngine{rate: sampleRate}, nil
}

type mockEngine struct {
	rate int
	fed  int
}

func (m *mockEngine) Feed(chunk []byte) (bool, error) {
	m.fed += len(chunk)
	return false, nil
}

func (m *mockEngine) Result() (string, error) {
	return "", nil
}

func (m *mockEngine) FinalResult() (string, error) {
	return fmt.Sprintf("[mock transcript rate=%d bytes=%d]", m.rate, m.fed), nil
}

func (m *mockEngine) Close() error {
	return nil
}
