package hashing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeIsStableAndPrefixed(t *testing.T) {
	h1 := Code("print('hello')")
	h2 := Code("print('hello')")
	assert.Equal(t, h1, h2)
	assert.Contains(t, h1, "sha256:")
}

func TestCodeDiffersOnContentChange(t *testing.T) {
	assert.NotEqual(t, Code("a"), Code("b"))
}

func TestManifestIsOrderIndependent(t *testing.T) {
	h1, err := Manifest(map[string]any{"a": 1, "b": 2})
	assert.NoError(t, err)
	h2, err := Manifest(map[string]any{"b": 2, "a": 1})
	assert.NoError(t, err)
	assert.Equal(t, h1, h2, "manifest hash must not depend on Go map iteration order")
}

func TestManifestDiffersOnValueChange(t *testing.T) {
	h1, err := Manifest(map[string]any{"target": 4})
	assert.NoError(t, err)
	h2, err := Manifest(map[string]any{"target": 5})
	assert.NoError(t, err)
	assert.NotEqual(t, h1, h2)
}
