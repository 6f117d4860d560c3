package modlink

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/modlink-io/modlink/codeobj"
	"github.com/modlink-io/modlink/codepath"
	"github.com/modlink-io/modlink/errz"
	"github.com/modlink-io/modlink/loader"
	"github.com/modlink-io/modlink/process"
)

func writeObject(t *testing.T, dir, module string, payload []byte) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	obj, err := codeobj.New(codeobj.Params{Name: module, Binary: payload})
	require.NoError(t, err)
	path := filepath.Join(dir, module+codeobj.Ext)
	require.NoError(t, codeobj.WriteFile(obj, path))
	return path
}

func TestNewSeedsPathFromEnv(t *testing.T) {
	root := t.TempDir()
	objDir := filepath.Join(root, "mylib-1.0", codepath.ObjDir)
	writeObject(t, objDir, "alpha", []byte{1})
	t.Setenv(EnvLibs, root)

	rt, err := New()
	require.NoError(t, err)
	require.Equal(t, []string{objDir}, rt.Path().Dirs())

	obj, err := rt.Load("alpha")
	require.NoError(t, err)
	require.Equal(t, "alpha", obj.Name())
}

func TestWithoutEnv(t *testing.T) {
	root := t.TempDir()
	writeObject(t, filepath.Join(root, "mylib", codepath.ObjDir), "alpha", []byte{1})
	t.Setenv(EnvLibs, root)

	rt, err := New(WithoutEnv())
	require.NoError(t, err)
	require.Zero(t, rt.Path().Len())
}

func TestRuntimeLifecycle(t *testing.T) {
	dir := t.TempDir()
	writeObject(t, dir, "alpha", []byte{1})
	registry := process.NewTracker()

	rt, err := New(WithoutEnv(), WithPathDirs(dir), WithProcessRegistry(registry))
	require.NoError(t, err)

	v1, err := rt.Load("alpha")
	require.NoError(t, err)
	require.True(t, rt.IsLoaded("alpha"))

	// Reload, then purge with a lingering context
	writeObject(t, dir, "alpha", []byte{2})
	_, err = rt.Load("alpha")
	require.NoError(t, err)

	registry.Register(v1.ID(), "ctx-1")
	require.False(t, rt.SoftPurge("alpha"))

	forced, err := rt.Purge("alpha")
	require.NoError(t, err)
	require.True(t, forced)

	// Unload completely
	require.NoError(t, rt.DeleteCurrent("alpha"))
	_, err = rt.Purge("alpha")
	require.NoError(t, err)
	require.False(t, rt.IsLoaded("alpha"))
	require.Empty(t, rt.AllLoaded())
}

func TestRuntimeBatchAndIntrospection(t *testing.T) {
	dir := t.TempDir()
	writeObject(t, dir, "alpha", []byte{1})
	writeObject(t, dir, "beta", []byte{2})

	rt, err := New(WithoutEnv(), WithPathDirs(dir))
	require.NoError(t, err)

	batch, err := rt.PrepareLoading([]loader.Item{{Name: "alpha"}, {Name: "beta"}})
	require.NoError(t, err)
	require.NoError(t, rt.FinishLoading(batch))
	require.True(t, errz.IsKind(rt.FinishLoading(batch), errz.Consumed))

	require.Len(t, rt.AllLoaded(), 2)
	require.Len(t, rt.AllAvailable(), 2)

	where, err := rt.Which("alpha")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "alpha.mox"), where)

	writeObject(t, dir, "beta", []byte{9})
	require.Equal(t, []string{"beta"}, rt.ModifiedModules())
	require.Equal(t, loader.StatusModified, rt.ModuleStatus([]string{"beta"})["beta"])
}

func TestRuntimeStickyDirs(t *testing.T) {
	dir := t.TempDir()
	writeObject(t, dir, "alpha", []byte{1})

	rt, err := New(WithoutEnv(), WithPathDirs(dir), WithStickyDirs(dir))
	require.NoError(t, err)

	_, err = rt.Load("alpha")
	require.True(t, errz.IsKind(err, errz.Sticky))

	rt.Unstick(dir)
	_, err = rt.Load("alpha")
	require.NoError(t, err)
}

func TestRuntimeEmbedded(t *testing.T) {
	dir := t.TempDir()
	writeObject(t, dir, "alpha", []byte{1})

	rt, err := New(WithoutEnv(), WithPathDirs(dir), WithEmbedded())
	require.NoError(t, err)

	_, err = rt.LoadIfAbsent("alpha")
	require.True(t, errz.IsKind(err, errz.EmbeddedMode))
}

func TestRuntimeClashes(t *testing.T) {
	d1 := t.TempDir()
	d2 := t.TempDir()
	writeObject(t, d1, "alpha", []byte{1})
	writeObject(t, d2, "alpha", []byte{2})

	rt, err := New(WithoutEnv(), WithPathDirs(d1, d2))
	require.NoError(t, err)

	clashes := rt.Clashes()
	require.Len(t, clashes, 1)
	require.Equal(t, "alpha", clashes[0].Module)
	require.Equal(t, d1, clashes[0].Winner)
}
