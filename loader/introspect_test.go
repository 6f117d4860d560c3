package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/modlink-io/modlink/errz"
)

func TestAllLoadedRoundTrip(t *testing.T) {
	f := newFixture(t)
	writeObject(t, f.dir, "alpha", []byte{1})
	writeObject(t, f.dir, "beta", []byte{2})

	require.Empty(t, f.loader.AllLoaded())

	_, err := f.loader.LoadByName("alpha")
	require.NoError(t, err)
	_, err = f.loader.LoadByName("beta")
	require.NoError(t, err)

	loaded := f.loader.AllLoaded()
	require.Len(t, loaded, 2)
	require.Equal(t, "alpha", loaded[0].Name)
	require.Equal(t, "beta", loaded[1].Name)

	// Unloading removes from the set
	require.NoError(t, f.loader.DeleteCurrent("beta"))
	_, err = f.loader.Purge("beta")
	require.NoError(t, err)

	loaded = f.loader.AllLoaded()
	require.Len(t, loaded, 1)
	require.Equal(t, "alpha", loaded[0].Name)
}

func TestAllAvailable(t *testing.T) {
	f := newFixture(t)
	writeObject(t, f.dir, "alpha", []byte{1})
	writeObject(t, f.dir, "beta", []byte{2})

	_, err := f.loader.LoadByName("alpha")
	require.NoError(t, err)

	// A module loaded from binary with no on-disk file is still "available"
	_, err = f.loader.LoadBinary("mem", "preloaded", objectBytes(t, "mem", []byte{3}))
	require.NoError(t, err)

	available := f.loader.AllAvailable()
	require.Len(t, available, 3)
	byName := map[string]Module{}
	for _, m := range available {
		byName[m.Name] = m
	}
	require.True(t, byName["alpha"].Loaded)
	require.False(t, byName["beta"].Loaded)
	require.Equal(t, filepath.Join(f.dir, "beta.mox"), byName["beta"].Origin)
	require.True(t, byName["mem"].Loaded)
}

func TestWhich(t *testing.T) {
	f := newFixture(t)
	writeObject(t, f.dir, "alpha", []byte{1})
	writeObject(t, f.dir, "beta", []byte{2})

	_, err := f.loader.LoadByName("alpha")
	require.NoError(t, err)

	// Loaded: origin wins
	where, err := f.loader.Which("alpha")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(f.dir, "alpha.mox"), where)

	// Unloaded but resolvable
	where, err = f.loader.Which("beta")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(f.dir, "beta.mox"), where)

	// Neither loaded nor resolvable
	_, err = f.loader.Which("ghost")
	require.True(t, errz.IsKind(err, errz.NonExisting))
}

func TestModuleStatus(t *testing.T) {
	f := newFixture(t)
	writeObject(t, f.dir, "stable", []byte{1})
	writeObject(t, f.dir, "changed", []byte{1})
	writeObject(t, f.dir, "gone", []byte{1})

	for _, name := range []string{"stable", "changed", "gone"} {
		_, err := f.loader.LoadByName(name)
		require.NoError(t, err)
	}

	// Rewrite one object with new bytes, delete another
	writeObject(t, f.dir, "changed", []byte{2})
	require.NoError(t, os.Remove(filepath.Join(f.dir, "gone.mox")))

	status := f.loader.ModuleStatus([]string{"stable", "changed", "gone", "never"})
	require.Equal(t, StatusLoaded, status["stable"])
	require.Equal(t, StatusModified, status["changed"])
	require.Equal(t, StatusRemoved, status["gone"])
	require.Equal(t, StatusNotLoaded, status["never"])
}

func TestModuleStatusFallsBackToSearchPath(t *testing.T) {
	f := newFixture(t)
	data := objectBytes(t, "alpha", []byte{1})
	_, err := f.loader.LoadBinary("alpha", "some-label", data)
	require.NoError(t, err)

	// No file anywhere: removed
	status := f.loader.ModuleStatus([]string{"alpha"})
	require.Equal(t, StatusRemoved, status["alpha"])

	// Matching file appears on the search path: loaded
	writeObject(t, f.dir, "alpha", []byte{1})
	status = f.loader.ModuleStatus([]string{"alpha"})
	require.Equal(t, StatusLoaded, status["alpha"])
}

func TestModifiedModules(t *testing.T) {
	f := newFixture(t)
	writeObject(t, f.dir, "alpha", []byte{1})
	writeObject(t, f.dir, "beta", []byte{2})
	for _, name := range []string{"alpha", "beta"} {
		_, err := f.loader.LoadByName(name)
		require.NoError(t, err)
	}

	require.Empty(t, f.loader.ModifiedModules())

	writeObject(t, f.dir, "beta", []byte{3})
	require.Equal(t, []string{"beta"}, f.loader.ModifiedModules())
}

func TestStatusString(t *testing.T) {
	require.Equal(t, "not_loaded", StatusNotLoaded.String())
	require.Equal(t, "loaded", StatusLoaded.String())
	require.Equal(t, "modified", StatusModified.String())
	require.Equal(t, "removed", StatusRemoved.String())
}
