// Record encoding for build blobs.
//
// Format v1 is a one-byte version tag followed by a gob-encoded CMakeBuild.
// Blobs that start with '{' are the v0 JSON form and are still readable.
package bbolt

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"fmt"

	"github.com/corey/ccflags/internal/ports"
)

const formatV1 byte = 1

// encodeBuild encodes a build record in the current format.
func encodeBuild(b *ports.CMakeBuild) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(formatV1)
	if err := gob.NewEncoder(&buf).Encode(b); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodeBuild decodes a v1 or v0 record. Every format check happens before
// decoding so corrupt data returns an error instead of panicking.
func decodeBuild(data []byte) (*ports.CMakeBuild, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty record")
	}
	var b ports.CMakeBuild
	switch data[0] {
	case formatV1:
		if err := gob.NewDecoder(bytes.NewReader(data[1:])).Decode(&b); err != nil {
			return nil, fmt.Errorf("gob: %w", err)
		}
	case '{':
		if err := json.Unmarshal(data, &b); err != nil {
			return nil, fmt.Errorf("json: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown record format %#x", data[0])
	}
	return &b, nil
}
