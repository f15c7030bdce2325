package classifier

import (
	"log/slog"
	"sync/atomic"
)

// Handle owns the current model. Readers get an immutable snapshot; Store
// swaps in a new model without disturbing evaluations already holding the old one.
type Handle struct {
	current atomic.Pointer[Model]
	logger  *slog.Logger
}

func NewHandle(logger *slog.Logger) *Handle {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handle{logger: logger}
}

// Current returns the loaded model or ErrModelNotLoaded.
func (h *Handle) Current() (*Model, error) {
	m := h.current.Load()
	if m == nil {
		return nil, ErrModelNotLoaded
	}
	return m, nil
}

// Store swaps in m. A nil model is ignored; unloading is not supported.
func (h *Handle) Store(m *Model) {
	if m == nil {
		h.logger.Warn("Ignoring nil classifier model")
		return
	}
	prev := h.current.Swap(m)
	attrs := []any{"version", m.Version, "features", len(m.FeatureNames), "trees", len(m.Trees)}
	if prev != nil {
		attrs = append(attrs, "previous_version", prev.Version)
	}
	h.logger.Info("Classifier model swapped in", attrs...)
}

// LoadFile reads the artifact at path and stores it. On error the current
// model is kept.
func (h *Handle) LoadFile(path string) error {
	m, err := LoadFile(path)
	if err != nil {
		return err
	}
	h.Store(m)
	return nil
}
