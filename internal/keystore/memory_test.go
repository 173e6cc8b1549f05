package keystore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCustodian(t *testing.T) {
	m := NewMemoryCustodian()

	k1, err := m.GetOrCreateKey("chain-v1")
	require.NoError(t, err)
	k2, err := m.GetOrCreateKey("chain-v1")
	require.NoError(t, err)
	assert.Equal(t, k1, k2)

	k1[0] ^= 0xff
	k3, err := m.GetOrCreateKey("chain-v1")
	require.NoError(t, err)
	assert.Equal(t, k2, k3, "callers must not be able to mutate the stored key")

	ok, err := m.Exists("chain-v1")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, m.Delete("chain-v1"))
	ok, err = m.Exists("chain-v1")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = m.GetOrCreateKey("../x")
	assert.ErrorIs(t, err, ErrInvalidAlias)
}

func TestVersionedAlias(t *testing.T) {
	assert.Equal(t, "workwatch-chain-v3", VersionedAlias("workwatch-chain", 3))
}
