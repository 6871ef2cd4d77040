// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sqlfunc

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// AnyArgs is the argument count of a variadic registration.
const AnyArgs = -1

// maxArgs is SQLite's default SQLITE_MAX_FUNCTION_ARG.
const maxArgs = 127

// Arity describes the argument counts a function accepts.
type Arity struct {
	// Fixed lists exact argument counts, each in [0, 127].
	Fixed []int

	// Variadic registers the function for any argument count not
	// covered by a fixed registration.
	Variadic bool
}

// Args returns an Arity for the given fixed counts.
func Args(counts ...int) Arity { return Arity{Fixed: counts} }

// Variadic returns the variadic Arity.
func Variadic() Arity { return Arity{Variadic: true} }

// IsZero reports whether the arity names no argument count.
func (arity Arity) IsZero() bool { return len(arity.Fixed) == 0 && !arity.Variadic }

// nargs returns the sorted, deduplicated list of native argument
// counts, with AnyArgs first when variadic.
func (arity Arity) nargs() ([]int, error) {
	var counts []int
	if arity.Variadic {
		counts = append(counts, AnyArgs)
	}
	for _, count := range arity.Fixed {
		if count < 0 || count > maxArgs {
			return nil, fmt.Errorf("argument count %d out of range [0, %d]", count, maxArgs)
		}
		counts = append(counts, count)
	}
	slices.Sort(counts)
	return slices.Compact(counts), nil
}

func (arity Arity) String() string {
	var parts []string
	for _, count := range arity.Fixed {
		parts = append(parts, strconv.Itoa(count))
	}
	if arity.Variadic {
		parts = append(parts, "*")
	}
	return "(" + strings.Join(parts, ",") + ")"
}

func formatNArgs(nargs int) string {
	if nargs == AnyArgs {
		return "*"
	}
	return strconv.Itoa(nargs)
}
