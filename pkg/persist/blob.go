// Package persist defines the relational-store abstraction (the
// "persistence port" of spec §1) plus the data mapper that turns a
// completed Report into persistence commands, and an lz4-backed codec for
// the bounded report blob persisted on the Project row.
package persist

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/pierrec/lz4/v4"
)

// BlobCodec defines how the opaque report blob is serialized, mirroring
// the shape of a conventional encode/decode codec: a pluggable pair of
// Encode/Decode methods independent of the caller's storage medium.
type BlobCodec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, v any) error
}

// LZ4JSONCodec JSON-encodes the value, then compresses it with lz4. The
// report blob is schemaless (§6: "JSON document with keys scores, stack,
// files, judge, team, security, maturity, structure, forensics") and
// bounded to ~30 file entries, so lz4 frame compression over a JSON
// encoding is sufficient for an object this small.
type LZ4JSONCodec struct{}

// NewLZ4JSONCodec returns an LZ4JSONCodec.
func NewLZ4JSONCodec() *LZ4JSONCodec {
	return &LZ4JSONCodec{}
}

// Encode JSON-marshals v and compresses the result.
func (c *LZ4JSONCodec) Encode(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal report blob: %w", err)
	}

	var buf bytes.Buffer

	w := lz4.NewWriter(&buf)

	if _, err := w.Write(raw); err != nil {
		return nil, fmt.Errorf("compress report blob: %w", err)
	}

	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("flush report blob: %w", err)
	}

	return buf.Bytes(), nil
}

// Decode decompresses data and JSON-unmarshals it into v.
func (c *LZ4JSONCodec) Decode(data []byte, v any) error {
	r := lz4.NewReader(bytes.NewReader(data))

	raw, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("decompress report blob: %w", err)
	}

	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("unmarshal report blob: %w", err)
	}

	return nil
}
