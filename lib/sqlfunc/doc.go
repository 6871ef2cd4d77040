// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlfunc registers Go functions as SQLite scalar functions on
// every connection of a database.
//
// A [Registry] is keyed by (name, argument count). Several fixed
// counts may coexist for one name, and a variadic registration
// ([AnyArgs]) is consulted by SQLite only when no fixed count matches.
// Every mutation is applied to all connections of the owning
// [ConnectionSet] before it is published, and published as an
// immutable snapshot swapped in atomically, so concurrent readers
// (Get, Entries, call-time dispatch) never see a half-applied change.
//
// The native call goes through a trampoline that decodes arguments
// with lib/sqlvalue, calls the Go function, and encodes the result.
// Returned errors and panics become a [CallableError] for that single
// call; nothing unwinds through the engine. The binding does not pass
// the error code through, so the failure is also recorded per
// connection and whoever steps the statement collects it with
// [TakeFailure] and fails the statement. lib/sqlitepool does this on
// every step.
//
// # Flags
//
// [Options] names every SQLite function flag, but the binding can only
// install [SupportedFlags] (deterministic and direct-only). Registering
// with any other flag fails with [ErrUnsupportedFlags].
//
// # Arity
//
// Arity is explicit: [Options].Arity lists fixed counts and/or the
// variadic flag. [RegisterFunc] infers it by reflection for plain Go
// functions, so
//
//	registry.RegisterFunc("double", func(v int64) int64 { return 2 * v },
//	    sqlfunc.Options{Deterministic: true})
//
// registers double/1, and func(args ...any) int registers a variadic
// function.
//
// # Removal
//
// The Go SQLite binding has no call to delete a function. Removing
// (name, n) installs a tombstone in that slot instead. A tombstone
// resolves against the current snapshot at call time: it forwards to a
// variadic registration of the same name if one exists, and otherwise
// fails with SQLite's own "wrong number of arguments to function
// name()" message, or "no such function: name" once every arity of
// the name is gone.
//
// # Live bindings
//
// [RegisterBinding] registers the current value of a [Binding] and
// subscribes to it. [Binding.Set] re-registers every arity of the name
// against the new value with the original options; [Registry.Update]
// is the same operation as an explicit call.
//
// A function implementation must not register, update, or remove
// functions itself: the registry takes exclusive access to every
// connection, including the one executing the call.
package sqlfunc
