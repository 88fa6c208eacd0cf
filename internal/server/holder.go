package server

import (
	"errors"
	"sync"

	"pdscreen/internal/baseline"
	"pdscreen/internal/logging"
	"pdscreen/internal/store"
)

// BaselineHolder owns the daemon's fitted baseline and swaps it atomically
// on reload. Readers take the RLock for the duration of one lookup only;
// a fitted Baseline is immutable, so handing out the pointer is safe.
type BaselineHolder struct {
	st  *store.Store
	log *logging.Logger

	mu    sync.RWMutex
	base  *baseline.Baseline
	count int
}

// NewBaselineHolder returns an empty holder; call Reload to populate it.
func NewBaselineHolder(st *store.Store, log *logging.Logger) *BaselineHolder {
	return &BaselineHolder{st: st, log: log}
}

// Get returns the current baseline (nil when none is fitted) and the
// corpus size it was fitted from.
func (h *BaselineHolder) Get() (*baseline.Baseline, int) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.base, h.count
}

// Reload refits the baseline from the store. An empty corpus clears the
// baseline rather than failing, so deleting baseline sessions takes
// effect on the next reload.
func (h *BaselineHolder) Reload() error {
	corpus, err := h.st.LoadBaseline()
	if err != nil {
		return err
	}

	var fitted *baseline.Baseline
	if len(corpus) > 0 {
		fitted, err = baseline.Fit(corpus)
		if err != nil && !errors.Is(err, baseline.ErrEmptyBaseline) {
			return err
		}
	}

	h.mu.Lock()
	h.base = fitted
	h.count = len(corpus)
	h.mu.Unlock()

	if fitted != nil {
		h.log.Info("baseline loaded", "sessions", len(corpus))
	} else {
		h.log.Info("no baseline sessions on file")
	}
	return nil
}
