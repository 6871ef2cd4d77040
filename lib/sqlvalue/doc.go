// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlvalue converts Go values to and from SQLite storage
// classes and owns the blob envelope format.
//
// # Classification
//
// Outgoing values (statement parameters, application function
// results) are classified by Go type:
//
//   - nil binds NULL
//   - signed and unsigned integers that fit in int64 bind INTEGER
//   - float32 and float64 bind REAL
//   - string binds TEXT
//   - everything else binds a BLOB carrying an envelope
//
// Incoming values are classified by the storage class SQLite reports
// for the cell: INTEGER reads as int64, REAL as float64, TEXT as
// string, NULL as nil, and BLOB through [DecodeBlob].
//
// # Blob envelope
//
// Every blob written through this package starts with one tag byte:
//
//	+-----+------------------------------------------+
//	| tag | payload                                  |
//	+-----+------------------------------------------+
//	 0x00   raw bytes, returned verbatim
//	 0x01   CBOR (RFC 8949, core deterministic)
//	 0x02   zstd or lz4 frame wrapping CBOR
//
// A []byte value is always written as [TagRaw], so binary data
// round-trips losslessly. Any other value is serialized to CBOR; when
// the serialization exceeds the codec's threshold (1000 bytes by
// default) it is compressed and tagged [TagEncodedCompressed]. Both
// supported compression streams are self-describing frames, so the
// decoder needs neither the compression algorithm nor the level: it
// sniffs the frame magic. A zero-length blob decodes to an empty
// []byte regardless of how it was produced.
//
// The tag values are protocol constants. Changing them breaks every
// database written by an earlier build.
package sqlvalue
