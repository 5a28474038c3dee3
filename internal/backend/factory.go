// Package backend selects the engine implementation named in the config.
package backend

import (
	"context"
	"fmt"

	"github.com/fmueller/whisperd/internal/config"
	"github.com/fmueller/whisperd/internal/engine"
	"github.com/fmueller/whisperd/internal/engine/fasterwhisper"
	"github.com/fmueller/whisperd/internal/engine/remote"
	"github.com/fmueller/whisperd/internal/engine/whispercpp"
	"go.uber.org/zap"
)

// New returns the model factory for cfg.Backend.
func New(cfg config.Config, logger *zap.Logger) (engine.Factory, error) {
	switch cfg.Backend {
	case config.BackendFasterWhisper:
		return fasterwhisper.Factory(fasterwhisper.Options{
			Python:     cfg.Python,
			ServiceDir: cfg.ServiceDir,
			Logger:     logger,
		}), nil
	case config.BackendWhisperCPP:
		return whispercpp.Factory(whispercpp.Options{
			Executable: cfg.WhisperCLI,
			ModelDir:   cfg.ModelDir,
			VADModel:   cfg.VADModel,
			Logger:     logger,
		}), nil
	case config.BackendOpenAI:
		return remote.Factory(remote.Options{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Logger:  logger,
		}), nil
	case config.BackendStub:
		return stubFactory, nil
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

// PrimarySpec is the configuration the service tries first.
func PrimarySpec(cfg config.Config) engine.ModelSpec {
	return engine.ModelSpec{Name: cfg.Model, Device: cfg.Device, ComputeType: cfg.ComputeType}
}

func stubFactory(_ context.Context, spec engine.ModelSpec) (engine.Model, error) {
	stub := engine.NewStubModel("This is a stub transcription", "from " + spec.Name + ".")
	return stub, nil
}
