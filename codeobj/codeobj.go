// Package codeobj defines the immutable code object held for each loaded
// module version, and the on-disk object container format.
package codeobj

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/gofrs/uuid"
)

// Ext is the file extension for compiled object containers.
const Ext = ".mox"

// CodeObject holds the compiled bytes and provenance for one version of a
// module. It is immutable after creation and safe for concurrent use.
type CodeObject struct {
	id       string
	name     string
	binary   []byte
	origin   string
	checksum uint64
}

// Params contains parameters for creating a new CodeObject.
type Params struct {
	Name   string
	Binary []byte
	Origin string
}

// New creates an immutable CodeObject from the given parameters. The binary
// payload is copied so later mutation of the input slice cannot leak in.
func New(params Params) (*CodeObject, error) {
	if params.Name == "" {
		return nil, fmt.Errorf("code object requires a module name")
	}
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	binary := make([]byte, len(params.Binary))
	copy(binary, params.Binary)
	return &CodeObject{
		id:       id.String(),
		name:     params.Name,
		binary:   binary,
		origin:   params.Origin,
		checksum: xxhash.Sum64(binary),
	}, nil
}

// ID returns the unique identifier for this code object. Two loads of
// identical bytes still yield distinct IDs, since the process registry tracks
// execution contexts per installed version, not per content.
func (c *CodeObject) ID() string {
	return c.id
}

// Name returns the module name this object implements.
func (c *CodeObject) Name() string {
	return c.name
}

// Origin returns the path or label the object was loaded from.
func (c *CodeObject) Origin() string {
	return c.origin
}

// Size returns the payload size in bytes.
func (c *CodeObject) Size() int {
	return len(c.binary)
}

// Checksum returns the xxhash64 of the payload.
func (c *CodeObject) Checksum() uint64 {
	return c.checksum
}

// Binary returns a copy of the compiled payload.
func (c *CodeObject) Binary() []byte {
	binary := make([]byte, len(c.binary))
	copy(binary, c.binary)
	return binary
}

func (c *CodeObject) String() string {
	return fmt.Sprintf("codeobj(%s, %d bytes, %s)", c.name, len(c.binary), c.origin)
}
