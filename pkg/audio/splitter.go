// Package audio splits recorded audio into request-sized byte ranges.
package audio

import (
	"errors"
	"fmt"
)

// DefaultChunkSize keeps a base64-inflated chunk under the model's request ceiling
const DefaultChunkSize int64 = 18 * 1024 * 1024

var (
	ErrEmptyPayload     = errors.New("audio payload is empty")
	ErrNegativeSize     = errors.New("audio size is negative")
	ErrInvalidChunkSize = errors.New("chunk size must be positive")
)

// Chunk is a half-open byte range [Start, End) of the original payload
type Chunk struct {
	Index int
	Start int64
	End   int64
}

// Len returns the chunk length in bytes
func (c Chunk) Len() int64 {
	return c.End - c.Start
}

// Split plans contiguous chunks of at most maxSize bytes covering [0, size).
// A payload that fits in one chunk yields exactly one chunk.
func Split(size, maxSize int64) ([]Chunk, error) {
	switch {
	case size < 0:
		return nil, fmt.Errorf("%w: %d", ErrNegativeSize, size)
	case maxSize <= 0:
		return nil, fmt.Errorf("%w: %d", ErrInvalidChunkSize, maxSize)
	case size == 0:
		return nil, ErrEmptyPayload
	}

	count := (size + maxSize - 1) / maxSize
	chunks := make([]Chunk, 0, count)
	for start := int64(0); start < size; start += maxSize {
		end := start + maxSize
		if end > size {
			end = size
		}
		chunks = append(chunks, Chunk{Index: len(chunks), Start: start, End: end})
	}
	return chunks, nil
}

// Slice returns views of data for each planned chunk, sharing the backing array
func Slice(data []byte, maxSize int64) ([][]byte, error) {
	chunks, err := Split(int64(len(data)), maxSize)
	if err != nil {
		return nil, err
	}
	parts := make([][]byte, len(chunks))
	for i, c := range chunks {
		parts[i] = data[c.Start:c.End:c.End]
	}
	return parts, nil
}
