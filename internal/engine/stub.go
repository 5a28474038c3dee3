package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// StubModel returns fixed segments without decoding audio. It backs the
// "stub" backend and handler tests.
type StubModel struct {
	Segments []string
	Language string
	Duration time.Duration
	// Err, when set, is returned from every Transcribe call.
	Err error

	calls  atomic.Int64
	mu     sync.Mutex
	last   string
	closed bool
}

func NewStubModel(segments ...string) *StubModel {
	return &StubModel{Segments: segments, Language: "en", Duration: time.Second}
}

func (s *StubModel) Transcribe(_ context.Context, audioPath string, _ DecodeOptions) (*Transcription, error) {
	s.calls.Add(1)
	s.mu.Lock()
	s.last = audioPath
	s.mu.Unlock()

	if s.Err != nil {
		return nil, s.Err
	}

	segments := make([]Segment, len(s.Segments))
	step := time.Duration(0)
	if len(s.Segments) > 0 {
		step = s.Duration / time.Duration(len(s.Segments))
	}
	for i, text := range s.Segments {
		segments[i] = Segment{
			ID:    i,
			Start: time.Duration(i) * step,
			End:   time.Duration(i+1) * step,
			Text:  text,
		}
	}
	return &Transcription{Segments: segments, Language: s.Language, Duration: s.Duration}, nil
}

func (s *StubModel) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *StubModel) Calls() int64 {
	return s.calls.Load()
}

// LastPath is the audio path of the most recent call.
func (s *StubModel) LastPath() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func (s *StubModel) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
