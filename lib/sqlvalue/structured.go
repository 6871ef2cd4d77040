// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sqlvalue

import (
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// Structured values are serialized as CBOR with Core Deterministic
// Encoding (RFC 8949 §4.2): equal values produce identical bytes, so
// encoded blobs compare and index consistently.
var (
	structuredEncMode cbor.EncMode
	structuredDecMode cbor.DecMode
)

func init() {
	var err error

	encOptions := cbor.CoreDetEncOptions()
	encOptions.TextMarshaler = cbor.TextMarshalerTextString
	structuredEncMode, err = encOptions.EncMode()
	if err != nil {
		panic("sqlvalue: CBOR encoder initialization failed: " + err.Error())
	}

	structuredDecMode, err = cbor.DecOptions{
		// Maps decoded into any become map[string]any, the shape
		// callers and application functions work with. Non-string
		// keys fail to decode rather than producing
		// map[interface{}]interface{}.
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
		// Integers decoded into any become int64, matching what an
		// INTEGER column yields, so a value read back from a blob
		// compares equal to the value that was written.
		IntDec:          cbor.IntDecConvertSigned,
		TextUnmarshaler: cbor.TextUnmarshalerTextString,
	}.DecMode()
	if err != nil {
		panic("sqlvalue: CBOR decoder initialization failed: " + err.Error())
	}
}

// MarshalStructured serializes v to CBOR without an envelope.
func MarshalStructured(v any) ([]byte, error) {
	return structuredEncMode.Marshal(v)
}

// UnmarshalStructured decodes CBOR into v. Use a pointer to a typed
// struct to decode an envelope payload into something other than the
// generic any representation.
func UnmarshalStructured(data []byte, v any) error {
	return structuredDecMode.Unmarshal(data, v)
}
