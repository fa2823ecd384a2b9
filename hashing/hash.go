// Package hashing computes deterministic content hashes of JSON payloads for
// audit integrity. The same logical document always hashes to the same value
// regardless of object key ordering in the serialized form.
package hashing

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Hash returns the hex-encoded SHA-256 of the canonical JSON encoding of v.
// v may be any JSON-serializable value, including json.RawMessage.
func Hash(v interface{}) (string, error) {
	canonical, err := Canonicalize(v)
	if err != nil {
		return "", fmt.Errorf("failed to canonicalize payload: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// Canonicalize returns a canonical JSON encoding of v: object keys sorted,
// no insignificant whitespace. encoding/json marshals map keys in sorted
// order, so a decode-reencode round trip normalizes key ordering.
func Canonicalize(v interface{}) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	var decoded interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, err
	}

	return json.Marshal(decoded)
}
