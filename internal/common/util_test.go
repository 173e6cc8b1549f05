package common

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWipeByteArray(t *testing.T) {
	pw := []byte("archive password")
	alias := pw[:7]

	WipeByteArray(pw)

	assert.Equal(t, make([]byte, 16), pw)
	assert.Equal(t, make([]byte, 7), alias)
	assert.NotPanics(t, func() { WipeByteArray(nil) })
}

func TestGenerateRandByteArray(t *testing.T) {
	salt := GenerateRandByteArray(16)
	require.Len(t, salt, 16)
	assert.False(t, bytes.Equal(salt, GenerateRandByteArray(16)))
	assert.Empty(t, GenerateRandByteArray(0))
}
