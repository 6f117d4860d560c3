// Package fetch retrieves object containers from remote stores so they can
// be installed with the loader's binary-load path. Sources return the raw
// container bytes plus an origin label describing provenance; the label is
// recorded on the installed code object without being read.
package fetch

import (
	"context"

	"github.com/modlink-io/modlink/codeobj"
	"github.com/modlink-io/modlink/loader"
)

// Source fetches the object container for a module.
type Source interface {
	// Fetch returns the container bytes for module and an origin label such
	// as "s3://bucket/key" or "pg://modules/name".
	Fetch(ctx context.Context, module string) (data []byte, origin string, err error)
}

// Load fetches module from src and installs it through the loader's binary
// pipeline. The container's embedded module tag is validated against module
// as usual.
func Load(ctx context.Context, l *loader.Loader, src Source, module string) (*codeobj.CodeObject, error) {
	data, origin, err := src.Fetch(ctx, module)
	if err != nil {
		return nil, err
	}
	return l.LoadBinary(module, origin, data)
}

// LoadAll fetches every module and installs them as one atomic batch:
// either all modules become current or none do.
func LoadAll(ctx context.Context, l *loader.Loader, src Source, modules []string) error {
	items := make([]loader.Item, 0, len(modules))
	for _, module := range modules {
		data, origin, err := src.Fetch(ctx, module)
		if err != nil {
			return err
		}
		items = append(items, loader.Item{Name: module, Binary: data, Origin: origin})
	}
	return l.AtomicLoad(items)
}
