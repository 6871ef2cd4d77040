// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sqlvalue

import (
	"bytes"
	"math/rand/v2"
	"reflect"
	"strings"
	"testing"
)

func TestRawBytesRoundTrip(t *testing.T) {
	random := rand.New(rand.NewPCG(1, 2))
	inputs := [][]byte{
		{},
		{0x00},
		{0x01},
		{0x02},
		{1, 2, 3},
		bytes.Repeat([]byte{0xff}, 4096),
	}
	for range 64 {
		data := make([]byte, random.IntN(3000))
		for i := range data {
			data[i] = byte(random.UintN(256))
		}
		inputs = append(inputs, data)
	}

	for _, codec := range testCodecs(t) {
		for _, input := range inputs {
			blob, err := codec.EncodeBlob(input)
			if err != nil {
				t.Fatalf("EncodeBlob(%d bytes): %v", len(input), err)
			}
			if Tag(blob[0]) != TagRaw {
				t.Fatalf("[]byte tagged %s, want raw", Tag(blob[0]))
			}
			decoded, err := DecodeBlob(blob)
			if err != nil {
				t.Fatalf("DecodeBlob: %v", err)
			}
			if !bytes.Equal(decoded.([]byte), input) {
				t.Fatalf("round trip of %d bytes changed the data", len(input))
			}
		}
	}
}

func TestStructuredRoundTrip(t *testing.T) {
	large := make([]any, 0, 400)
	for i := range 400 {
		large = append(large, map[string]any{
			"index": int64(i),
			"label": strings.Repeat("x", i%7),
		})
	}

	tests := []struct {
		name    string
		value   any
		wantTag Tag
	}{
		{"map", map[string]any{"name": "test", "count": int64(5)}, TagEncoded},
		{"bool", true, TagEncoded},
		{"nested", map[string]any{"tags": []any{"a", "b"}, "ratio": 0.5, "nil": nil}, TagEncoded},
		{"large array", large, TagEncodedCompressed},
		{"large string in map", map[string]any{"body": strings.Repeat("lorem ipsum ", 200)}, TagEncodedCompressed},
	}

	for _, codec := range testCodecs(t) {
		for _, test := range tests {
			t.Run(codec.Compression().String()+"/"+test.name, func(t *testing.T) {
				blob, err := codec.EncodeBlob(test.value)
				if err != nil {
					t.Fatalf("EncodeBlob: %v", err)
				}
				if Tag(blob[0]) != test.wantTag {
					t.Errorf("tag = %s, want %s", Tag(blob[0]), test.wantTag)
				}
				decoded, err := DecodeBlob(blob)
				if err != nil {
					t.Fatalf("DecodeBlob: %v", err)
				}
				if !reflect.DeepEqual(decoded, test.value) {
					t.Errorf("decoded %#v, want %#v", decoded, test.value)
				}
			})
		}
	}
}

func TestThresholdBoundary(t *testing.T) {
	codec, err := New(Options{Threshold: 64})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	small, err := codec.Envelope(strings.Repeat("a", 10))
	if err != nil {
		t.Fatalf("Envelope: %v", err)
	}
	if small.Tag != TagEncoded {
		t.Errorf("small value tag = %s, want encoded", small.Tag)
	}

	big, err := codec.Envelope(strings.Repeat("a", 200))
	if err != nil {
		t.Fatalf("Envelope: %v", err)
	}
	if big.Tag != TagEncodedCompressed {
		t.Errorf("big value tag = %s, want encoded_compressed", big.Tag)
	}
}

func TestZeroLengthBlobIsEmptyRaw(t *testing.T) {
	decoded, err := DecodeBlob(nil)
	if err != nil {
		t.Fatalf("DecodeBlob(nil): %v", err)
	}
	data, ok := decoded.([]byte)
	if !ok || len(data) != 0 || data == nil {
		t.Errorf("DecodeBlob(nil) = %#v, want empty non-nil []byte", decoded)
	}
}

func TestDecodeIgnoresWriteSettings(t *testing.T) {
	value := map[string]any{"body": strings.Repeat("zz", 2000)}
	lz4Codec, err := New(Options{Compression: CompressionLZ4, Level: 9})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	blob, err := lz4Codec.EncodeBlob(value)
	if err != nil {
		t.Fatalf("EncodeBlob: %v", err)
	}
	decoded, err := Default().DecodeBlob(blob)
	if err != nil {
		t.Fatalf("zstd-configured codec decoding lz4 frame: %v", err)
	}
	if !reflect.DeepEqual(decoded, value) {
		t.Errorf("decoded value differs")
	}
}

func TestMalformedEnvelopes(t *testing.T) {
	tests := []struct {
		name string
		blob []byte
	}{
		{"unknown tag", []byte{0x7f, 1, 2}},
		{"truncated cbor", []byte{byte(TagEncoded), 0xa2, 0x61}},
		{"compressed without magic", []byte{byte(TagEncodedCompressed), 1, 2, 3, 4, 5}},
		{"corrupt zstd frame", append([]byte{byte(TagEncodedCompressed)}, append(zstdMagic, 0xde, 0xad)...)},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := DecodeBlob(test.blob)
			if err == nil {
				t.Fatal("expected an error")
			}
			if !IsProtocolError(err) {
				t.Errorf("error %v is not a ProtocolError", err)
			}
		})
	}
}

func TestClampLevel(t *testing.T) {
	for _, test := range []struct{ in, want int }{
		{-5, MinLevel}, {0, MinLevel}, {1, 1}, {5, 5}, {9, 9}, {22, MaxLevel},
	} {
		if got := ClampLevel(test.in); got != test.want {
			t.Errorf("ClampLevel(%d) = %d, want %d", test.in, got, test.want)
		}
	}

	codec, err := New(Options{Level: 40})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if codec.Level() != MaxLevel {
		t.Errorf("Level = %d, want %d", codec.Level(), MaxLevel)
	}
}

func TestParseCompression(t *testing.T) {
	for name, want := range map[string]Compression{"": CompressionZstd, "zstd": CompressionZstd, "lz4": CompressionLZ4} {
		got, err := ParseCompression(name)
		if err != nil || got != want {
			t.Errorf("ParseCompression(%q) = %v, %v; want %v", name, got, err, want)
		}
	}
	if _, err := ParseCompression("gzip"); err == nil {
		t.Error("ParseCompression(gzip) should fail")
	}
}

func testCodecs(t *testing.T) []*Codec {
	t.Helper()
	lz4Codec, err := New(Options{Compression: CompressionLZ4})
	if err != nil {
		t.Fatalf("New(lz4): %v", err)
	}
	return []*Codec{Default(), lz4Codec}
}
