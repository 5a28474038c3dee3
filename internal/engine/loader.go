package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/fmueller/whisperd/internal/logging"
	"go.uber.org/zap"
)

// Factory constructs a model for spec. Each backend provides one.
type Factory func(ctx context.Context, spec ModelSpec) (Model, error)

type Outcome int

const (
	OutcomeFailed Outcome = iota
	OutcomeLoaded
	OutcomeFallbackLoaded
)

func (o Outcome) String() string {
	switch o {
	case OutcomeLoaded:
		return "loaded"
	case OutcomeFallbackLoaded:
		return "fallback-loaded"
	default:
		return "failed"
	}
}

type LoadResult struct {
	Outcome     Outcome
	Model       Model
	Spec        ModelSpec
	PrimaryErr  error
	FallbackErr error
}

// Err summarizes a failed load; nil otherwise.
func (r LoadResult) Err() error {
	if r.Outcome != OutcomeFailed {
		return nil
	}
	return fmt.Errorf("load model: %w", errors.Join(r.PrimaryErr, r.FallbackErr))
}

// Load tries primary, then fallback exactly once. It never retries further.
func Load(ctx context.Context, factory Factory, primary, fallback ModelSpec, logger *zap.Logger) LoadResult {
	logger = logging.OrNop(logger)

	logger.Info("loading whisper model",
		zap.String("model", primary.Name),
		zap.String("device", primary.Device),
		zap.String("compute_type", primary.ComputeType),
	)

	model, err := factory(ctx, primary)
	if err == nil {
		logger.Info("whisper model loaded", zap.String("device", primary.Device))
		return LoadResult{Outcome: OutcomeLoaded, Model: model, Spec: primary}
	}

	result := LoadResult{PrimaryErr: err}
	logger.Error("failed to load whisper model", zap.Error(err))
	if ctx.Err() != nil {
		result.FallbackErr = ctx.Err()
		return result
	}

	logger.Info("attempting to load with CPU fallback",
		zap.String("device", fallback.Device),
		zap.String("compute_type", fallback.ComputeType),
	)
	model, err = factory(ctx, fallback)
	if err != nil {
		logger.Error("CPU fallback failed", zap.Error(err))
		result.FallbackErr = err
		return result
	}

	logger.Info("whisper model loaded on CPU")
	result.Outcome = OutcomeFallbackLoaded
	result.Model = model
	result.Spec = fallback
	return result
}
