// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sqlfunc

import (
	"fmt"
	"strings"
)

// Flags is the function flag bitmask passed to
// sqlite3_create_function_v2. The values are SQLite's published
// constants.
type Flags uint32

const (
	FlagDeterministic Flags = 0x000000800 // SQLITE_DETERMINISTIC
	FlagDirectOnly    Flags = 0x000080000 // SQLITE_DIRECTONLY
	FlagSubtype       Flags = 0x000100000 // SQLITE_SUBTYPE
	FlagInnocuous     Flags = 0x000200000 // SQLITE_INNOCUOUS
	FlagResultSubtype Flags = 0x001000000 // SQLITE_RESULT_SUBTYPE
	FlagSelfOrder1    Flags = 0x002000000 // SQLITE_SELFORDER1
)

// SupportedFlags are the flags the engine binding can install. The
// others are named so bitmasks read from SQLite print correctly, but
// registering with them fails with ErrUnsupportedFlags.
const SupportedFlags = FlagDeterministic | FlagDirectOnly

var flagNames = []struct {
	flag Flags
	name string
}{
	{FlagDeterministic, "deterministic"},
	{FlagDirectOnly, "direct_only"},
	{FlagSubtype, "subtype"},
	{FlagInnocuous, "innocuous"},
	{FlagResultSubtype, "result_subtype"},
	{FlagSelfOrder1, "self_order1"},
}

// Has reports whether every bit of flag is set.
func (flags Flags) Has(flag Flags) bool { return flags&flag == flag }

// String lists the set flags by name, joined with "|".
func (flags Flags) String() string {
	if flags == 0 {
		return "none"
	}
	var names []string
	remaining := flags
	for _, entry := range flagNames {
		if flags.Has(entry.flag) {
			names = append(names, entry.name)
			remaining &^= entry.flag
		}
	}
	if remaining != 0 {
		names = append(names, fmt.Sprintf("0x%x", uint32(remaining)))
	}
	return strings.Join(names, "|")
}

// Options configures a registration. The boolean capabilities combine
// into Flags by bitwise OR. Only Deterministic and DirectOnly can be
// registered; see SupportedFlags.
type Options struct {
	// Arity lists the argument counts to register. Required for
	// Register; inferred by RegisterFunc and RegisterBinding when
	// empty.
	Arity Arity

	// Deterministic lets SQLite assume equal arguments yield equal
	// results within one statement, and allows the function in
	// indexes and generated columns.
	Deterministic bool

	// DirectOnly forbids use from triggers, views, and schema
	// structures.
	DirectOnly bool

	// Innocuous marks the function as free of side effects and safe
	// to call from untrusted schema.
	Innocuous bool

	// Subtype declares that the function inspects argument subtypes.
	Subtype bool

	// ResultSubtype declares that the function may set a result
	// subtype.
	ResultSubtype bool

	// SelfOrder1 is the ordering hint for aggregate-like use, see
	// SQLITE_SELFORDER1.
	SelfOrder1 bool
}

// Flags returns the bitmask for the options.
func (options Options) Flags() Flags {
	var flags Flags
	if options.Deterministic {
		flags |= FlagDeterministic
	}
	if options.DirectOnly {
		flags |= FlagDirectOnly
	}
	if options.Innocuous {
		flags |= FlagInnocuous
	}
	if options.Subtype {
		flags |= FlagSubtype
	}
	if options.ResultSubtype {
		flags |= FlagResultSubtype
	}
	if options.SelfOrder1 {
		flags |= FlagSelfOrder1
	}
	return flags
}
