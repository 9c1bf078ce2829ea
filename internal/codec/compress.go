package codec

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
)

// MaxInflatedSize bounds how far a compressed payload may expand.
const MaxInflatedSize = 64 << 20

// Compress gzips text at the given level. Out-of-range levels fall back
// to gzip.DefaultCompression.
func Compress(text string, level int) ([]byte, error) {
	if level < gzip.NoCompression || level > gzip.BestCompression {
		level = gzip.DefaultCompression
	}
	var buf bytes.Buffer
	buf.Grow(len(text) / 2)

	w, err := gzip.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, fmt.Errorf("codec: gzip writer: %w", err)
	}
	if _, err := io.WriteString(w, text); err != nil {
		return nil, fmt.Errorf("codec: gzip write: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("codec: gzip close: %w", err)
	}
	return buf.Bytes(), nil
}

// Decompress reverses Compress.
func Decompress(data []byte) (string, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: gzip header: %v", ErrMalformedFrame, err)
	}
	defer r.Close()

	out, err := io.ReadAll(io.LimitReader(r, MaxInflatedSize+1))
	if err != nil {
		return "", fmt.Errorf("%w: gzip body: %v", ErrMalformedFrame, err)
	}
	if len(out) > MaxInflatedSize {
		return "", ErrPayloadTooLarge
	}
	return string(out), nil
}
