// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sqlvalue

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects the stream format used for
// [TagEncodedCompressed] payloads on the write path. Decoding never
// consults it: the frame magic identifies the format.
type Compression uint8

const (
	// CompressionZstd writes zstd frames. Better ratio on the CBOR
	// maps and arrays that dominate structured blobs.
	CompressionZstd Compression = iota

	// CompressionLZ4 writes LZ4 frames. Cheaper to compress when
	// write latency matters more than size.
	CompressionLZ4
)

// String returns the configuration name of the compression format.
func (compression Compression) String() string {
	switch compression {
	case CompressionZstd:
		return "zstd"
	case CompressionLZ4:
		return "lz4"
	default:
		return fmt.Sprintf("unknown(%d)", compression)
	}
}

// ParseCompression parses a compression name as used in configuration
// files. The empty string selects zstd.
func ParseCompression(name string) (Compression, error) {
	switch name {
	case "", "zstd":
		return CompressionZstd, nil
	case "lz4":
		return CompressionLZ4, nil
	default:
		return 0, fmt.Errorf("unknown compression %q (want zstd or lz4)", name)
	}
}

// Compression levels are bounded to [MinLevel, MaxLevel]. Out of range
// values are clamped, not rejected.
const (
	MinLevel     = 1
	MaxLevel     = 9
	DefaultLevel = 3
)

// ClampLevel bounds level to [MinLevel, MaxLevel].
func ClampLevel(level int) int {
	if level < MinLevel {
		return MinLevel
	}
	if level > MaxLevel {
		return MaxLevel
	}
	return level
}

var lz4Levels = [MaxLevel]lz4.CompressionLevel{
	lz4.Level1, lz4.Level2, lz4.Level3, lz4.Level4, lz4.Level5,
	lz4.Level6, lz4.Level7, lz4.Level8, lz4.Level9,
}

// maxDecompressedSize bounds how much a single compressed payload may
// expand to. A frame claiming more is treated as malformed.
const maxDecompressedSize = 256 << 20

var (
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
	lz4Magic  = []byte{0x04, 0x22, 0x4d, 0x18}
)

// zstdDecoder is shared by every decode call. zstd.Decoder is safe for
// concurrent use through DecodeAll.
var zstdDecoder *zstd.Decoder

func init() {
	var err error
	zstdDecoder, err = zstd.NewReader(nil,
		zstd.WithDecoderMaxMemory(maxDecompressedSize),
	)
	if err != nil {
		panic("sqlvalue: zstd decoder initialization failed: " + err.Error())
	}
}

// compressor produces self-describing frames at a fixed level.
type compressor struct {
	format Compression
	level  int

	// zstdEncoder is set when format is CompressionZstd. EncodeAll is
	// safe for concurrent use.
	zstdEncoder *zstd.Encoder
}

func newCompressor(format Compression, level int) (*compressor, error) {
	level = ClampLevel(level)
	result := &compressor{format: format, level: level}
	switch format {
	case CompressionZstd:
		encoder, err := zstd.NewWriter(nil,
			zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)),
		)
		if err != nil {
			return nil, fmt.Errorf("sqlvalue: zstd encoder: %w", err)
		}
		result.zstdEncoder = encoder
	case CompressionLZ4:
	default:
		return nil, fmt.Errorf("sqlvalue: unsupported compression %s", format)
	}
	return result, nil
}

func (c *compressor) compress(data []byte) ([]byte, error) {
	if c.format == CompressionZstd {
		return c.zstdEncoder.EncodeAll(data, nil), nil
	}

	var buffer bytes.Buffer
	writer := lz4.NewWriter(&buffer)
	if err := writer.Apply(lz4.CompressionLevelOption(lz4Levels[c.level-1])); err != nil {
		return nil, fmt.Errorf("lz4 options: %w", err)
	}
	if _, err := writer.Write(data); err != nil {
		return nil, fmt.Errorf("lz4 compress: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("lz4 compress: %w", err)
	}
	return buffer.Bytes(), nil
}

// decompress identifies the frame format by its magic number and
// expands it.
func decompress(frame []byte) ([]byte, error) {
	switch {
	case bytes.HasPrefix(frame, zstdMagic):
		result, err := zstdDecoder.DecodeAll(frame, nil)
		if err != nil {
			return nil, protocolErrorf(err, "zstd frame")
		}
		return result, nil

	case bytes.HasPrefix(frame, lz4Magic):
		reader := io.LimitReader(lz4.NewReader(bytes.NewReader(frame)), maxDecompressedSize+1)
		result, err := io.ReadAll(reader)
		if err != nil {
			return nil, protocolErrorf(err, "lz4 frame")
		}
		if len(result) > maxDecompressedSize {
			return nil, protocolErrorf(nil, "lz4 frame expands beyond %d bytes", maxDecompressedSize)
		}
		return result, nil

	default:
		return nil, protocolErrorf(nil, "compressed payload has no recognized frame magic")
	}
}
