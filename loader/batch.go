package loader

import (
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/gofrs/uuid"
	"github.com/hashicorp/go-multierror"

	"github.com/modlink-io/modlink/codeobj"
	"github.com/modlink-io/modlink/errz"
)

// Item names one module of a batch load. When Binary is nil the module is
// resolved on the search path and read from disk; otherwise Binary is the
// pre-fetched object container and Origin is recorded as its provenance
// without being read.
type Item struct {
	Name   string
	Binary []byte
	Origin string
}

// AtomicLoad validates every module in the batch and, only if all of them
// validate, installs all of them with all-or-nothing visibility: no observer
// ever sees some-but-not-all modules of the batch. On failure the returned
// error aggregates one entry per failing module, each tagged with its own
// reason, and the store is completely unchanged.
func (l *Loader) AtomicLoad(items []Item) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	objs, err := l.validateBatchLocked(items)
	if err != nil {
		return err
	}
	return l.applyBatchLocked(objs)
}

// PreparedBatch is a single-use token referencing a set of validated but not
// yet installed code objects. It is produced by PrepareLoading and consumed
// by FinishLoading; a consumed token cannot be reused.
type PreparedBatch struct {
	id       string
	objs     []*codeobj.CodeObject
	consumed atomic.Bool
}

// ID returns the token's unique identifier.
func (b *PreparedBatch) ID() string { return b.id }

// Modules returns the module names referenced by the token.
func (b *PreparedBatch) Modules() []string {
	names := make([]string, len(b.objs))
	for i, obj := range b.objs {
		names[i] = obj.Name()
	}
	return names
}

// PrepareLoading validates the batch exactly as AtomicLoad would, without
// mutating the store, and returns a token capturing the validated objects.
// The split exists so expensive validation can run ahead of a maintenance
// window, leaving only the minimal atomic install for FinishLoading.
func (l *Loader) PrepareLoading(items []Item) (*PreparedBatch, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	objs, err := l.validateBatchLocked(items)
	if err != nil {
		return nil, err
	}
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	return &PreparedBatch{id: id.String(), objs: objs}, nil
}

// FinishLoading installs everything referenced by the token atomically,
// consuming it. A second call with the same token fails with Consumed.
// Store conflicts that arose between prepare and finish surface as
// per-module errors and discard the token without installing anything.
func (l *Loader) FinishLoading(batch *PreparedBatch) error {
	if batch == nil {
		return &errz.ModuleError{Kind: errz.BadArgument}
	}
	if !batch.consumed.CompareAndSwap(false, true) {
		return &errz.ModuleError{Kind: errz.Consumed}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.applyBatchLocked(batch.objs)
}

// validateBatchLocked resolves, reads, and checks every item, reporting
// every failing module rather than stopping at the first. Caller holds l.mu.
func (l *Loader) validateBatchLocked(items []Item) ([]*codeobj.CodeObject, error) {
	var result *multierror.Error

	counts := make(map[string]int, len(items))
	for _, item := range items {
		counts[item.Name]++
	}
	reported := make(map[string]bool)
	for _, item := range items {
		if counts[item.Name] > 1 && !reported[item.Name] {
			reported[item.Name] = true
			result = multierror.Append(result, errz.NewModuleError(item.Name, errz.Duplicated))
		}
	}

	objs := make([]*codeobj.CodeObject, 0, len(items))
	for _, item := range items {
		if reported[item.Name] {
			continue
		}
		obj, err := l.validateItemLocked(item)
		if err != nil {
			result = multierror.Append(result, err)
			continue
		}
		objs = append(objs, obj)
	}
	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}
	return objs, nil
}

// validateItemLocked runs the full single-module validation pipeline without
// installing anything.
func (l *Loader) validateItemLocked(item Item) (*codeobj.CodeObject, error) {
	name := item.Name
	if name == "" {
		return nil, errz.NewModuleError(name, errz.BadArgument)
	}
	if l.engine.PendingOnLoad(name) {
		return nil, errz.NewModuleError(name, errz.OnLoadNotAllowed)
	}
	if err := l.precheck(name); err != nil {
		return nil, err
	}
	if item.Binary != nil {
		return decodeObject(name, item.Origin, item.Binary)
	}
	dir, err := l.path.Resolve(name)
	if err != nil {
		return nil, errz.NewModuleErrorCause(name, errz.NoFile, err)
	}
	if l.isStickyDir(dir) {
		return nil, errz.NewModuleError(name, errz.Sticky)
	}
	file := filepath.Join(dir, name+codeobj.Ext)
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, errz.NewModuleErrorCause(name, errz.NoFile, err)
	}
	return decodeObject(name, file, data)
}

// applyBatchLocked re-checks store conflicts, hands every object to the
// engine, and commits the whole set under the store lock. Engine installs
// happen only after the final conflict check so a conflict never leaves the
// engine holding half a batch. When the engine itself rejects an object,
// the store stays unchanged but objects installed earlier in the same batch
// remain with the engine; a later successful load of those modules
// supersedes them. Caller holds l.mu.
func (l *Loader) applyBatchLocked(objs []*codeobj.CodeObject) error {
	var result *multierror.Error
	for _, obj := range objs {
		if l.store.HasOld(obj.Name()) {
			result = multierror.Append(result, errz.NewModuleError(obj.Name(), errz.NotPurged))
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		return err
	}
	for _, obj := range objs {
		if err := l.engine.Install(obj); err != nil {
			result = multierror.Append(result,
				errz.NewModuleErrorCause(obj.Name(), errz.OnLoadFailure, err))
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		return err
	}
	for _, err := range l.store.InstallAll(objs) {
		result = multierror.Append(result, err)
	}
	if err := result.ErrorOrNil(); err != nil {
		return err
	}
	l.log.Debug().Strs("modules", moduleNames(objs)).Msg("batch installed")
	return nil
}

func moduleNames(objs []*codeobj.CodeObject) []string {
	names := make([]string, len(objs))
	for i, obj := range objs {
		names[i] = obj.Name()
	}
	return names
}
