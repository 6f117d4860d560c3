// Package process declares the process-registry capability the purge
// machinery depends on: something that knows which execution contexts are
// still running a given code version, and how to force one out. The loader
// consumes the Registry interface; Tracker is an in-memory implementation
// suitable for embedding hosts and tests.
package process

import (
	"fmt"
	"sync"
)

// ContextID identifies one execution context (call frame, goroutine-backed
// process, interpreter instance) registered against a code version.
type ContextID string

// Registry tracks which execution contexts are executing which code objects.
type Registry interface {
	// ContextsRunning returns the contexts still registered against the code
	// object with the given ID.
	ContextsRunning(codeID string) []ContextID

	// Terminate forcibly detaches the given context. Implementations decide
	// what termination means for their execution model.
	Terminate(id ContextID) error
}

// Tracker is an in-memory Registry. Execution engines register a context when
// a frame enters a code version and release it when the frame exits.
type Tracker struct {
	mu       sync.Mutex
	byCode   map[string]map[ContextID]struct{}
	byCtx    map[ContextID]string
	OnKill   func(id ContextID) // optional notification hook
	failKill map[ContextID]error
}

// NewTracker creates an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{
		byCode: make(map[string]map[ContextID]struct{}),
		byCtx:  make(map[ContextID]string),
	}
}

// Register records that ctx is executing the code object with the given ID.
func (t *Tracker) Register(codeID string, ctx ContextID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	set, ok := t.byCode[codeID]
	if !ok {
		set = make(map[ContextID]struct{})
		t.byCode[codeID] = set
	}
	set[ctx] = struct{}{}
	t.byCtx[ctx] = codeID
}

// Release records that ctx is no longer executing any tracked code.
func (t *Tracker) Release(ctx ContextID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.releaseLocked(ctx)
}

func (t *Tracker) releaseLocked(ctx ContextID) {
	codeID, ok := t.byCtx[ctx]
	if !ok {
		return
	}
	delete(t.byCtx, ctx)
	if set, ok := t.byCode[codeID]; ok {
		delete(set, ctx)
		if len(set) == 0 {
			delete(t.byCode, codeID)
		}
	}
}

// ContextsRunning implements Registry.
func (t *Tracker) ContextsRunning(codeID string) []ContextID {
	t.mu.Lock()
	defer t.mu.Unlock()
	set := t.byCode[codeID]
	out := make([]ContextID, 0, len(set))
	for ctx := range set {
		out = append(out, ctx)
	}
	return out
}

// Terminate implements Registry by releasing the context and invoking the
// OnKill hook when set.
func (t *Tracker) Terminate(id ContextID) error {
	t.mu.Lock()
	if err, ok := t.failKill[id]; ok {
		t.mu.Unlock()
		return err
	}
	t.releaseLocked(id)
	hook := t.OnKill
	t.mu.Unlock()
	if hook != nil {
		hook(id)
	}
	return nil
}

// FailTerminate makes subsequent Terminate calls for id return err. Used in
// tests to exercise partial-termination paths.
func (t *Tracker) FailTerminate(id ContextID, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.failKill == nil {
		t.failKill = make(map[ContextID]error)
	}
	t.failKill[id] = err
}

// NopRegistry is a Registry that tracks nothing. It is the default when a
// host provides no process registry: no context ever lingers, so purges
// never need to terminate anything.
type NopRegistry struct{}

// ContextsRunning implements Registry.
func (NopRegistry) ContextsRunning(string) []ContextID { return nil }

// Terminate implements Registry.
func (NopRegistry) Terminate(id ContextID) error {
	return fmt.Errorf("no process registry: cannot terminate %s", id)
}
