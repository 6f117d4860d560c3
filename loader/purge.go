package loader

import (
	"fmt"
)

// Purge discards the old code for name. Any execution context still
// registered against the old version is forcibly terminated through the
// process registry first; the return value reports whether that was needed.
// With no old code present, Purge is a no-op returning false.
//
// Purge blocks while the registry terminates contexts. A termination
// failure aborts the purge with the old code still in place.
func (l *Loader) Purge(name string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	old := l.store.Old(name)
	if old == nil {
		return false, nil
	}
	forced := false
	for _, ctx := range l.registry.ContextsRunning(old.ID()) {
		forced = true
		if err := l.registry.Terminate(ctx); err != nil {
			return forced, fmt.Errorf("purge %s: terminate %s: %w", name, ctx, err)
		}
		l.log.Warn().
			Str("module", name).
			Str("context", string(ctx)).
			Msg("terminated context running old code")
	}
	l.store.DropOld(name)
	return forced, nil
}

// SoftPurge discards the old code for name only when no execution context is
// still running it. It returns false, with nothing changed, while contexts
// remain; true means the old code is gone (or never existed).
func (l *Loader) SoftPurge(name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	old := l.store.Old(name)
	if old == nil {
		return true
	}
	if len(l.registry.ContextsRunning(old.ID())) > 0 {
		return false
	}
	l.store.DropOld(name)
	return true
}

// DeleteCurrent retires the module's current code into the old slot without
// installing a replacement. The module stops being loaded; a later load is
// rejected with NotPurged until the retired code is purged. Fails with
// NotPurged when old code already occupies the slot.
func (l *Loader) DeleteCurrent(name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.store.DemoteCurrent(name); err != nil {
		return err
	}
	l.log.Debug().Str("module", name).Msg("current code retired")
	return nil
}
