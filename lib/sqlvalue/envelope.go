// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sqlvalue

import (
	"fmt"
)

// Tag is the first byte of every blob envelope.
type Tag uint8

const (
	// TagRaw marks a payload that is returned verbatim.
	TagRaw Tag = 0x00

	// TagEncoded marks an uncompressed CBOR payload.
	TagEncoded Tag = 0x01

	// TagEncodedCompressed marks a compressed CBOR payload. The
	// compressed stream is a zstd or LZ4 frame.
	TagEncodedCompressed Tag = 0x02
)

// String returns the human-readable name of a tag.
func (tag Tag) String() string {
	switch tag {
	case TagRaw:
		return "raw"
	case TagEncoded:
		return "encoded"
	case TagEncodedCompressed:
		return "encoded_compressed"
	default:
		return fmt.Sprintf("unknown(0x%02x)", uint8(tag))
	}
}

// DefaultThreshold is the serialized size above which structured
// values are compressed.
const DefaultThreshold = 1000

// Envelope is a parsed blob: the tag and the bytes that follow it.
// Payload aliases the buffer it was parsed from.
type Envelope struct {
	Tag     Tag
	Payload []byte
}

// ParseEnvelope splits a blob into tag and payload. An empty blob
// parses as an empty raw envelope.
func ParseEnvelope(blob []byte) (Envelope, error) {
	if len(blob) == 0 {
		return Envelope{Tag: TagRaw, Payload: []byte{}}, nil
	}
	tag := Tag(blob[0])
	switch tag {
	case TagRaw, TagEncoded, TagEncodedCompressed:
		return Envelope{Tag: tag, Payload: blob[1:]}, nil
	default:
		return Envelope{}, protocolErrorf(nil, "unknown blob tag 0x%02x", blob[0])
	}
}

// Bytes serializes the envelope into a fresh buffer.
func (envelope Envelope) Bytes() []byte {
	blob := make([]byte, 1+len(envelope.Payload))
	blob[0] = byte(envelope.Tag)
	copy(blob[1:], envelope.Payload)
	return blob
}

// Value reconstructs the host value the envelope carries: a []byte
// for raw envelopes, the decoded CBOR value otherwise.
func (envelope Envelope) Value() (any, error) {
	switch envelope.Tag {
	case TagRaw:
		result := make([]byte, len(envelope.Payload))
		copy(result, envelope.Payload)
		return result, nil

	case TagEncoded:
		return decodeStructured(envelope.Payload)

	case TagEncodedCompressed:
		serialized, err := decompress(envelope.Payload)
		if err != nil {
			return nil, err
		}
		return decodeStructured(serialized)

	default:
		return nil, protocolErrorf(nil, "unknown blob tag %s", envelope.Tag)
	}
}

func decodeStructured(serialized []byte) (any, error) {
	var value any
	if err := structuredDecMode.Unmarshal(serialized, &value); err != nil {
		return nil, protocolErrorf(err, "structured payload")
	}
	return value, nil
}

// DecodeBlob decodes a blob column value.
func DecodeBlob(blob []byte) (any, error) {
	envelope, err := ParseEnvelope(blob)
	if err != nil {
		return nil, err
	}
	return envelope.Value()
}

// Options configures the write path of a Codec.
type Options struct {
	// Compression selects the frame format for large structured
	// values. Defaults to zstd.
	Compression Compression

	// Level is the compression level, clamped to [MinLevel,
	// MaxLevel]. Zero selects DefaultLevel.
	Level int

	// Threshold is the serialized size in bytes above which a
	// structured value is compressed. Zero selects DefaultThreshold.
	Threshold int
}

// Codec encodes host values for the engine. Decoding is independent of
// the write settings and is available as package functions; Codec
// exposes the same operations as methods for symmetry.
//
// A Codec is immutable and safe for concurrent use.
type Codec struct {
	threshold  int
	compressor *compressor
}

// New returns a Codec for the given write settings.
func New(options Options) (*Codec, error) {
	level := options.Level
	if level == 0 {
		level = DefaultLevel
	}
	threshold := options.Threshold
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	compressor, err := newCompressor(options.Compression, level)
	if err != nil {
		return nil, err
	}
	return &Codec{threshold: threshold, compressor: compressor}, nil
}

var defaultCodec = func() *Codec {
	codec, err := New(Options{})
	if err != nil {
		panic("sqlvalue: default codec initialization failed: " + err.Error())
	}
	return codec
}()

// Default returns the Codec with zstd compression at DefaultLevel and
// DefaultThreshold.
func Default() *Codec { return defaultCodec }

// Threshold returns the compression threshold in bytes.
func (c *Codec) Threshold() int { return c.threshold }

// Level returns the effective compression level.
func (c *Codec) Level() int { return c.compressor.level }

// Compression returns the write-path frame format.
func (c *Codec) Compression() Compression { return c.compressor.format }

// Envelope wraps value in a blob envelope. A []byte is tagged raw
// without serialization; anything else is serialized to CBOR and
// compressed when it exceeds the threshold.
func (c *Codec) Envelope(value any) (Envelope, error) {
	if raw, ok := value.([]byte); ok {
		return Envelope{Tag: TagRaw, Payload: raw}, nil
	}

	serialized, err := structuredEncMode.Marshal(value)
	if err != nil {
		return Envelope{}, fmt.Errorf("sqlvalue: encoding %T: %w", value, err)
	}
	if len(serialized) <= c.threshold {
		return Envelope{Tag: TagEncoded, Payload: serialized}, nil
	}

	compressed, err := c.compressor.compress(serialized)
	if err != nil {
		return Envelope{}, fmt.Errorf("sqlvalue: compressing %T: %w", value, err)
	}
	return Envelope{Tag: TagEncodedCompressed, Payload: compressed}, nil
}

// EncodeBlob returns the envelope bytes for value.
func (c *Codec) EncodeBlob(value any) ([]byte, error) {
	envelope, err := c.Envelope(value)
	if err != nil {
		return nil, err
	}
	return envelope.Bytes(), nil
}

// DecodeBlob decodes blob. The result does not depend on c's write
// settings.
func (c *Codec) DecodeBlob(blob []byte) (any, error) {
	return DecodeBlob(blob)
}
