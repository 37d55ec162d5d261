// Package hashing computes the content hashes used by the bot
// transparency protocol: a code hash and a manifest hash, both rendered
// as "sha256:<hex>".
package hashing

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

const prefix = "sha256:"

// Code returns the content hash of raw bot source text.
func Code(source string) string {
	sum := sha256.Sum256([]byte(source))
	return prefix + hex.EncodeToString(sum[:])
}

// Manifest returns the content hash of a manifest value, canonicalized by
// marshaling through encoding/json (Go already emits object keys in
// sorted order for map[string]any, so no explicit sort_keys step is
// needed here, unlike the Python original's json.dumps(sort_keys=True)).
func Manifest(manifest map[string]any) (string, error) {
	data, err := json.Marshal(manifest)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return prefix + hex.EncodeToString(sum[:]), nil
}
