package rbtree

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/pierrec/lz4/v4"
)

// uint32ByteSize is the number of bytes in a uint32.
const uint32ByteSize = 4

// ErrCorruptColumn is returned when a compressed arena column does not
// decompress to the expected number of values.
var ErrCorruptColumn = errors.New("corrupt compressed column")

// compressColumn packs a column of uint32-s little-endian and compresses it
// with LZ4 block compression. An empty column compresses to nil.
func compressColumn(data []uint32) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	raw := make([]byte, 0, len(data)*uint32ByteSize)
	for _, val := range data {
		raw = binary.LittleEndian.AppendUint32(raw, val)
	}

	compressed := make([]byte, lz4.CompressBlockBound(len(raw)))

	written, err := lz4.CompressBlock(raw, compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("lz4 compress: %w", err)
	}

	// Incompressible input: CompressBlock reports 0 and the caller stores raw bytes.
	if written == 0 {
		return append([]byte{0}, raw...), nil
	}

	return append([]byte{1}, compressed[:written]...), nil
}

// decompressColumn reverses compressColumn. count is the number of uint32-s
// the column held before compression.
func decompressColumn(data []byte, count int) ([]uint32, error) {
	if count == 0 {
		return nil, nil
	}

	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty block for %d values", ErrCorruptColumn, count)
	}

	raw := data[1:]

	if data[0] == 1 {
		raw = make([]byte, count*uint32ByteSize)

		read, err := lz4.UncompressBlock(data[1:], raw)
		if err != nil {
			return nil, fmt.Errorf("lz4 uncompress: %w", err)
		}

		raw = raw[:read]
	}

	if len(raw) != count*uint32ByteSize {
		return nil, fmt.Errorf("%w: %d bytes for %d values", ErrCorruptColumn, len(raw), count)
	}

	result := make([]uint32, count)
	for idx := range result {
		result[idx] = binary.LittleEndian.Uint32(raw[idx*uint32ByteSize:])
	}

	return result, nil
}

// deltaEncode replaces each element with the difference from its
// predecessor, in place. Sorted columns become small repetitive values
// that LZ4 compresses far better.
func deltaEncode(data []uint32) {
	for i := len(data) - 1; i > 0; i-- {
		data[i] -= data[i-1]
	}
}

// deltaDecode is the prefix sum that undoes deltaEncode.
func deltaDecode(data []uint32) {
	for i := 1; i < len(data); i++ {
		data[i] += data[i-1]
	}
}
