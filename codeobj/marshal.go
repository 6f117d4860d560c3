package codeobj

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"

	"github.com/cespare/xxhash/v2"
)

// formatTag identifies the object container format. Decoders reject any
// other value, so the tag doubles as the format version.
const formatTag = "modlink/object/v1"

// Serialization types

type objectState struct {
	Format   string `json:"format"`
	Module   string `json:"module"`
	Code     string `json:"code"`
	Checksum uint64 `json:"checksum"`
}

// Marshal converts a CodeObject into its container representation.
func Marshal(obj *CodeObject) ([]byte, error) {
	return json.Marshal(objectState{
		Format:   formatTag,
		Module:   obj.Name(),
		Code:     base64.StdEncoding.EncodeToString(obj.binary),
		Checksum: obj.Checksum(),
	})
}

// Unmarshal parses an object container, returning the module name tag and
// the compiled payload. The container's embedded checksum must match the
// payload.
func Unmarshal(data []byte) (string, []byte, error) {
	var state objectState
	if err := json.Unmarshal(data, &state); err != nil {
		return "", nil, fmt.Errorf("invalid object container: %w", err)
	}
	if state.Format != formatTag {
		return "", nil, fmt.Errorf("invalid object container: format %q", state.Format)
	}
	if state.Module == "" {
		return "", nil, fmt.Errorf("invalid object container: empty module tag")
	}
	payload, err := base64.StdEncoding.DecodeString(state.Code)
	if err != nil {
		return "", nil, fmt.Errorf("invalid object container: %w", err)
	}
	if sum := xxhash.Sum64(payload); sum != state.Checksum {
		return "", nil, fmt.Errorf("invalid object container: checksum mismatch (%#x != %#x)",
			sum, state.Checksum)
	}
	return state.Module, payload, nil
}

// ReadFile reads and parses an object container from disk, returning a
// CodeObject whose origin is the file path.
func ReadFile(path string) (*CodeObject, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	name, payload, err := Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return New(Params{Name: name, Binary: payload, Origin: path})
}

// WriteFile marshals obj and writes the container to path.
func WriteFile(obj *CodeObject, path string) error {
	data, err := Marshal(obj)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// FileChecksum returns the payload checksum of the object container at path
// without constructing a CodeObject.
func FileChecksum(path string) (uint64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	_, payload, err := Unmarshal(data)
	if err != nil {
		return 0, err
	}
	return xxhash.Sum64(payload), nil
}
