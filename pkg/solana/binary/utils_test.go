package binary

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOffsets(t *testing.T) {
	key, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	amount := uint64(42)
	const optionSize = 4

	buf := make([]byte, 32+(optionSize+32)+8+(optionSize+8)+4+1+1)

	var offset int
	PutKey32(buf[offset:], key, &offset)
	PutOptionalKey32(buf[offset:], nil, &offset, optionSize)
	PutUint64(buf[offset:], 1_000_000, &offset)
	PutOptionalUint64(buf[offset:], &amount, &offset, optionSize)
	PutUint32(buf[offset:], 7, &offset)
	PutUint8(buf[offset:], 255, &offset)
	PutBool(buf[offset:], true, &offset)
	require.Equal(t, len(buf), offset)

	var (
		actualKey      ed25519.PublicKey
		actualOptional ed25519.PublicKey
		actualU64      uint64
		actualOptU64   *uint64
		actualU32      uint32
		actualU8       uint8
		actualBool     bool
	)

	offset = 0
	GetKey32(buf[offset:], &actualKey, &offset)
	GetOptionalKey32(buf[offset:], &actualOptional, &offset, optionSize)
	GetUint64(buf[offset:], &actualU64, &offset)
	GetOptionalUint64(buf[offset:], &actualOptU64, &offset, optionSize)
	GetUint32(buf[offset:], &actualU32, &offset)
	GetUint8(buf[offset:], &actualU8, &offset)
	GetBool(buf[offset:], &actualBool, &offset)
	require.Equal(t, len(buf), offset)

	assert.EqualValues(t, key, actualKey)
	assert.Nil(t, actualOptional)
	assert.EqualValues(t, 1_000_000, actualU64)
	require.NotNil(t, actualOptU64)
	assert.EqualValues(t, 42, *actualOptU64)
	assert.EqualValues(t, 7, actualU32)
	assert.EqualValues(t, 255, actualU8)
	assert.True(t, actualBool)
}

func TestOptionalKey_ClearsStaleBytes(t *testing.T) {
	key, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	buf := make([]byte, 4+32)
	var offset int
	PutOptionalKey32(buf, key, &offset, 4)
	assert.EqualValues(t, 1, buf[0])

	offset = 0
	PutOptionalKey32(buf, nil, &offset, 4)
	assert.Equal(t, make([]byte, 4+32), buf)
}
