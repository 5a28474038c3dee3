package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStubModelReturnsSegments(t *testing.T) {
	t.Parallel()

	stub := NewStubModel(" Hello", " world.")
	stub.Duration = 2 * time.Second

	tr, err := stub.Transcribe(context.Background(), "/tmp/a.wav", DefaultDecodeOptions())
	require.NoError(t, err)
	require.Equal(t, "Hello world.", tr.Text())
	require.Equal(t, "en", tr.Language)
	require.Len(t, tr.Segments, 2)
	require.Equal(t, time.Second, tr.Segments[1].Start)
	require.Equal(t, 2*time.Second, tr.Segments[1].End)
	require.Equal(t, int64(1), stub.Calls())
	require.Equal(t, "/tmp/a.wav", stub.LastPath())
}

func TestStubModelError(t *testing.T) {
	t.Parallel()

	stub := NewStubModel()
	stub.Err = errors.New("decoder exploded")
	_, err := stub.Transcribe(context.Background(), "x.wav", DefaultDecodeOptions())
	require.EqualError(t, err, "decoder exploded")
}
