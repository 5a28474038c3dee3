package engine

import (
	"errors"
	"sync"
)

var ErrHandleAlreadySet = errors.New("engine: model handle already set")

// Handle holds the process-wide model. It is empty until Set succeeds and
// read-only afterwards.
type Handle struct {
	mu    sync.RWMutex
	model Model
	spec  ModelSpec
}

func NewHandle() *Handle {
	return &Handle{}
}

// Set stores the loaded model. Only the first call succeeds.
func (h *Handle) Set(model Model, spec ModelSpec) error {
	if model == nil {
		return errors.New("engine: nil model")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.model != nil {
		return ErrHandleAlreadySet
	}
	h.model = model
	h.spec = spec
	return nil
}

func (h *Handle) Model() (Model, bool) {
	if h == nil {
		return nil, false
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.model, h.model != nil
}

func (h *Handle) Loaded() bool {
	_, ok := h.Model()
	return ok
}

// Spec returns the configuration the held model was loaded with.
func (h *Handle) Spec() (ModelSpec, bool) {
	if h == nil {
		return ModelSpec{}, false
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.spec, h.model != nil
}

// Close releases the model. The handle stays set so late requests see the
// same model and fail inside the engine rather than racing a reload.
func (h *Handle) Close() error {
	model, ok := h.Model()
	if !ok {
		return nil
	}
	return model.Close()
}
