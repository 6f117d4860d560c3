package fetch

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/modlink-io/modlink/codeobj"
	"github.com/modlink-io/modlink/codepath"
	"github.com/modlink-io/modlink/errz"
	"github.com/modlink-io/modlink/loader"
	"github.com/modlink-io/modlink/store"
)

func newLoader(t *testing.T) *loader.Loader {
	t.Helper()
	return loader.New(codepath.New(), store.New())
}

func container(t *testing.T, module string, payload []byte) []byte {
	t.Helper()
	obj, err := codeobj.New(codeobj.Params{Name: module, Binary: payload})
	require.NoError(t, err)
	data, err := codeobj.Marshal(obj)
	require.NoError(t, err)
	return data
}

type fakeS3 struct {
	objects map[string][]byte
	lastKey string
}

func (f *fakeS3) GetObject(ctx context.Context, params *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.lastKey = *params.Key
	data, ok := f.objects[*params.Key]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func TestS3Source(t *testing.T) {
	data := container(t, "alpha", []byte{1, 2})
	client := &fakeS3{objects: map[string][]byte{"rel/alpha.mox": data}}
	src := NewS3Source(client, "code-bucket", "rel")

	l := newLoader(t)
	obj, err := Load(context.Background(), l, src, "alpha")
	require.NoError(t, err)
	require.Equal(t, "s3://code-bucket/rel/alpha.mox", obj.Origin())
	require.True(t, l.IsLoaded("alpha"))
	require.Equal(t, "rel/alpha.mox", client.lastKey)
}

func TestS3SourceMissingKey(t *testing.T) {
	src := NewS3Source(&fakeS3{objects: map[string][]byte{}}, "code-bucket", "")
	_, _, err := src.Fetch(context.Background(), "ghost")
	require.Error(t, err)
}

type fakeRow struct {
	data []byte
	err  error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*dest[0].(*[]byte) = r.data
	return nil
}

type fakePG struct {
	rows map[string][]byte
}

func (f *fakePG) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	data, ok := f.rows[args[0].(string)]
	if !ok {
		return fakeRow{err: pgx.ErrNoRows}
	}
	return fakeRow{data: data}
}

func TestPGSource(t *testing.T) {
	data := container(t, "beta", []byte{3})
	src := NewPGSource(&fakePG{rows: map[string][]byte{"beta": data}}, "")

	l := newLoader(t)
	obj, err := Load(context.Background(), l, src, "beta")
	require.NoError(t, err)
	require.Equal(t, "pg://modules/beta", obj.Origin())
}

func TestPGSourceNoRows(t *testing.T) {
	src := NewPGSource(&fakePG{rows: map[string][]byte{}}, "modules")
	_, _, err := src.Fetch(context.Background(), "ghost")
	require.True(t, errz.IsKind(err, errz.NoFile))
}

func TestLoadAllAtomic(t *testing.T) {
	a := container(t, "alpha", []byte{1})
	b := container(t, "beta", []byte{2})
	client := &fakeS3{objects: map[string][]byte{"alpha.mox": a, "beta.mox": b}}
	src := NewS3Source(client, "bucket", "")

	l := newLoader(t)
	require.NoError(t, LoadAll(context.Background(), l, src, []string{"alpha", "beta"}))
	require.True(t, l.IsLoaded("alpha"))
	require.True(t, l.IsLoaded("beta"))

	// A missing module aborts before any install
	l2 := newLoader(t)
	err := LoadAll(context.Background(), l2, src, []string{"alpha", "ghost"})
	require.Error(t, err)
	require.False(t, l2.IsLoaded("alpha"))
}
