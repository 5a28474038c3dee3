package backend

import (
	"context"
	"testing"

	"github.com/fmueller/whisperd/internal/config"
	"github.com/fmueller/whisperd/internal/engine"
	"github.com/fmueller/whisperd/internal/engine/remote"
	"github.com/stretchr/testify/require"
)

func TestNewKnowsEveryConfiguredBackend(t *testing.T) {
	t.Parallel()

	for _, name := range config.Backends {
		factory, err := New(config.Config{Backend: name}, nil)
		require.NoError(t, err, name)
		require.NotNil(t, factory, name)
	}
}

func TestNewUnknownBackend(t *testing.T) {
	t.Parallel()

	_, err := New(config.Config{Backend: "torch"}, nil)
	require.ErrorContains(t, err, `unknown backend "torch"`)
}

func TestStubBackendTranscribes(t *testing.T) {
	t.Parallel()

	cfg := config.Config{Backend: config.BackendStub, Model: "tiny", Device: "cuda", ComputeType: "float16"}
	factory, err := New(cfg, nil)
	require.NoError(t, err)

	result := engine.Load(context.Background(), factory, PrimarySpec(cfg), PrimarySpec(cfg).Fallback(), nil)
	require.Equal(t, engine.OutcomeLoaded, result.Outcome)

	tr, err := result.Model.Transcribe(context.Background(), "any.wav", engine.DefaultDecodeOptions())
	require.NoError(t, err)
	require.Equal(t, "This is a stub transcription from tiny.", tr.Text())
}

func TestOpenAIBackendWithoutKeyFailsBothStages(t *testing.T) {
	t.Parallel()

	cfg := config.Config{Backend: config.BackendOpenAI, Model: "medium", Device: "cuda", ComputeType: "float16"}
	factory, err := New(cfg, nil)
	require.NoError(t, err)

	result := engine.Load(context.Background(), factory, PrimarySpec(cfg), PrimarySpec(cfg).Fallback(), nil)
	require.Equal(t, engine.OutcomeFailed, result.Outcome)
	require.ErrorIs(t, result.Err(), remote.ErrMissingAPIKey)
}

func TestPrimarySpec(t *testing.T) {
	t.Parallel()

	spec := PrimarySpec(config.Config{Model: "small", Device: "cuda", ComputeType: "float16"})
	require.Equal(t, engine.ModelSpec{Name: "small", Device: "cuda", ComputeType: "float16"}, spec)
}
