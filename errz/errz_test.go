package errz

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKindString(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{NotADirectory, "not_a_directory"},
		{BadName, "bad_name"},
		{NotFound, "not_found"},
		{BadDirectory, "bad_directory"},
		{BadArgument, "bad_argument"},
		{BadFile, "bad_file"},
		{NoFile, "no_file"},
		{NotPurged, "not_purged"},
		{OnLoadFailure, "on_load_failure"},
		{Sticky, "sticky_directory"},
		{Duplicated, "duplicated"},
		{OnLoadNotAllowed, "on_load_not_allowed"},
		{EmbeddedMode, "embedded"},
		{Consumed, "consumed"},
		{NonExisting, "non_existing"},
		{Missing, "missing"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			require.Equal(t, tt.want, tt.kind.String())
		})
	}
}

func TestModuleErrorMatching(t *testing.T) {
	err := NewModuleError("mymod", NotPurged)
	require.True(t, errors.Is(err, &ModuleError{Kind: NotPurged}))
	require.True(t, errors.Is(err, &ModuleError{Module: "mymod", Kind: NotPurged}))
	require.False(t, errors.Is(err, &ModuleError{Module: "other", Kind: NotPurged}))
	require.False(t, errors.Is(err, &ModuleError{Kind: BadFile}))
	require.True(t, IsKind(err, NotPurged))
	require.False(t, IsKind(err, Sticky))
}

func TestModuleErrorCause(t *testing.T) {
	cause := fmt.Errorf("bad magic")
	err := NewModuleErrorCause("mymod", BadFile, cause)
	require.Equal(t, `bad_file: module "mymod": bad magic`, err.Error())
	require.ErrorIs(t, err, cause)

	kind, ok := KindOf(fmt.Errorf("wrapped: %w", err))
	require.True(t, ok)
	require.Equal(t, BadFile, kind)
}

func TestPathError(t *testing.T) {
	err := &PathError{Kind: BadArgument, Name: "mymod", Dir: "/no/such"}
	require.Equal(t, `bad_argument: "mymod", "/no/such"`, err.Error())
	require.True(t, errors.Is(err, &PathError{Kind: BadArgument}))

	kind, ok := KindOf(err)
	require.True(t, ok)
	require.Equal(t, BadArgument, kind)

	_, ok = KindOf(errors.New("plain"))
	require.False(t, ok)
}
