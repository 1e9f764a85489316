package rbtree //nolint:testpackage // exercises unexported column codecs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompressColumnRoundTrip(t *testing.T) {
	t.Parallel()

	data := make([]uint32, 1000)
	for idx := range data {
		data[idx] = 7
	}

	packed, err := compressColumn(data)
	require.NoError(t, err)
	assert.NotEmpty(t, packed)
	assert.Less(t, len(packed), len(data)*uint32ByteSize)
	assert.Equal(t, byte(1), packed[0])

	restored, err := decompressColumn(packed, len(data))
	require.NoError(t, err)
	assert.Equal(t, data, restored)
}

func TestCompressColumnIncompressible(t *testing.T) {
	t.Parallel()

	data := []uint32{0x9e3779b9}

	packed, err := compressColumn(data)
	require.NoError(t, err)

	restored, err := decompressColumn(packed, 1)
	require.NoError(t, err)
	assert.Equal(t, data, restored)
}

func TestCompressColumnEmpty(t *testing.T) {
	t.Parallel()

	packed, err := compressColumn(nil)
	require.NoError(t, err)
	assert.Nil(t, packed)

	restored, err := decompressColumn(packed, 0)
	require.NoError(t, err)
	assert.Empty(t, restored)
}

func TestDecompressColumnCorrupt(t *testing.T) {
	t.Parallel()

	_, err := decompressColumn(nil, 4)
	require.ErrorIs(t, err, ErrCorruptColumn)

	_, err = decompressColumn([]byte{0, 1, 2, 3}, 1)
	require.ErrorIs(t, err, ErrCorruptColumn)
}

func TestDeltaCoding(t *testing.T) {
	t.Parallel()

	data := []uint32{3, 5, 5, 10, 100}
	deltaEncode(data)
	assert.Equal(t, []uint32{3, 2, 0, 5, 90}, data)

	deltaDecode(data)
	assert.Equal(t, []uint32{3, 5, 5, 10, 100}, data)

	deltaEncode(nil)
	deltaDecode(nil)
}
