package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndCompare(t *testing.T) {
	hasher := NewBcryptHasher(0)

	hash, err := hasher.Hash("dr-okafor-2026")
	require.NoError(t, err)
	assert.NotEqual(t, "dr-okafor-2026", hash)

	assert.NoError(t, hasher.Compare(hash, "dr-okafor-2026"))
	assert.Error(t, hasher.Compare(hash, "wrong-password"))
}

func TestHashRejectsWeakCredential(t *testing.T) {
	hasher := NewBcryptHasher(0)

	_, err := hasher.Hash("short")
	assert.ErrorIs(t, err, ErrPasswordTooWeak)
}
