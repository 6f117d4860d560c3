package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/require"

	"github.com/modlink-io/modlink/codeobj"
	"github.com/modlink-io/modlink/codepath"
	"github.com/modlink-io/modlink/loader"
	"github.com/modlink-io/modlink/store"
)

func writeObject(t *testing.T, dir, module string, payload []byte) string {
	t.Helper()
	obj, err := codeobj.New(codeobj.Params{Name: module, Binary: payload})
	require.NoError(t, err)
	path := filepath.Join(dir, module+codeobj.Ext)
	require.NoError(t, codeobj.WriteFile(obj, path))
	return path
}

func TestWatcherRequiresLoader(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
}

func TestWatcherReportsModifiedModules(t *testing.T) {
	dir := t.TempDir()
	writeObject(t, dir, "alpha", []byte{1})
	writeObject(t, dir, "beta", []byte{2})

	p := codepath.New()
	require.NoError(t, p.Append(dir))
	l := loader.New(p, store.New())
	_, err := l.LoadByName("alpha")
	require.NoError(t, err)
	_, err = l.LoadByName("beta")
	require.NoError(t, err)

	changed := make(chan []string, 1)
	w, err := New(Config{
		Loader:   l,
		Debounce: 20 * time.Millisecond,
		OnModified: func(modules []string) {
			select {
			case changed <- modules:
			default:
			}
		},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Several rapid writes coalesce into one callback
	writeObject(t, dir, "beta", []byte{3})
	writeObject(t, dir, "beta", []byte{4})

	select {
	case modules := <-changed:
		require.Equal(t, []string{"beta"}, modules)
	case <-time.After(5 * time.Second):
		t.Fatal("no modification callback")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestWatcherReportsRemovedModules(t *testing.T) {
	dir := t.TempDir()
	writeObject(t, dir, "alpha", []byte{1})

	p := codepath.New()
	require.NoError(t, p.Append(dir))
	l := loader.New(p, store.New())
	_, err := l.LoadByName("alpha")
	require.NoError(t, err)

	changed := make(chan []string, 1)
	w, err := New(Config{
		Loader:   l,
		Debounce: 20 * time.Millisecond,
		OnModified: func(modules []string) {
			select {
			case changed <- modules:
			default:
			}
		},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	require.NoError(t, os.Remove(filepath.Join(dir, "alpha"+codeobj.Ext)))

	select {
	case modules := <-changed:
		require.Equal(t, []string{"alpha"}, modules)
	case <-time.After(5 * time.Second):
		t.Fatal("no removal callback")
	}
}

func TestRelevantFiltersNonObjectFiles(t *testing.T) {
	require.False(t, relevant(fsnotify.Event{Name: "notes.txt", Op: fsnotify.Write}))
	require.True(t, relevant(fsnotify.Event{Name: "alpha" + codeobj.Ext, Op: fsnotify.Write}))
	require.False(t, relevant(fsnotify.Event{Name: "alpha" + codeobj.Ext, Op: fsnotify.Chmod}))
}
