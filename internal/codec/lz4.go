// Package codec implements the optional LZ4 block compression applied
// to read results and write payloads crossing the bridge.
package codec

import (
	"errors"
	"fmt"

	"github.com/pierrec/lz4/v4"
)

// ErrIncompressible is returned by CompressLZ4 when the output would
// not be smaller than the input.
var ErrIncompressible = errors.New("data is incompressible")

func CompressLZ4(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, ErrIncompressible
	}
	dst := make([]byte, lz4.CompressBlockBound(len(data)))
	n, err := lz4.CompressBlock(data, dst, nil)
	if err != nil {
		return nil, fmt.Errorf("lz4 compress: %w", err)
	}
	// 0 means lz4 gave up on the block
	if n == 0 || n >= len(data) {
		return nil, ErrIncompressible
	}
	return dst[:n], nil
}

// DecompressLZ4 expands a block that must decode to exactly size bytes.
func DecompressLZ4(compressed []byte, size int) ([]byte, error) {
	if size < 0 {
		return nil, fmt.Errorf("lz4 decompress: negative size %d", size)
	}
	if size == 0 {
		if len(compressed) != 0 {
			return nil, fmt.Errorf("lz4 decompress: %d bytes for empty output", len(compressed))
		}
		return []byte{}, nil
	}
	dst := make([]byte, size)
	n, err := lz4.UncompressBlock(compressed, dst)
	if err != nil {
		return nil, fmt.Errorf("lz4 decompress: %w", err)
	}
	if n != size {
		return nil, fmt.Errorf("lz4 decompress: got %d bytes, expected %d", n, size)
	}
	return dst, nil
}

// MaybeCompress compresses data when that makes it smaller and reports
// whether it did. Incompressible input comes back unchanged.
func MaybeCompress(data []byte) ([]byte, bool, error) {
	out, err := CompressLZ4(data)
	if errors.Is(err, ErrIncompressible) {
		return data, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return out, true, nil
}
