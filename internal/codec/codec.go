// Package codec packs values for durable queues: JSON, zstd compressed, base64url encoded.
package codec

import (
	"encoding/base64"

	json "github.com/goccy/go-json"
	"github.com/klauspost/compress/zstd"
)

var enc, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
var dec, _ = zstd.NewReader(nil)

// Encode marshals v as JSON, compresses and base64url encodes it.
func Encode(v any) (string, error) {
	s, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	b := enc.EncodeAll(s, make([]byte, 0, len(s)))
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Decode reverses Encode into v.
func Decode(in string, v any) error {
	b, err := base64.RawURLEncoding.DecodeString(in)
	if err != nil {
		return err
	}
	out, err := dec.DecodeAll(b, nil)
	if err != nil {
		return err
	}
	return json.Unmarshal(out, v)
}
