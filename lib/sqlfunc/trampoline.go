// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sqlfunc

import (
	"fmt"

	"zombiezen.com/go/sqlite"

	"github.com/bureau-foundation/sqlrt/lib/sqlvalue"
)

// trampoline adapts fn to the engine's scalar callback. Every failure,
// including a panic, becomes a *CallableError that is both returned to
// the engine and recorded for TakeFailure.
func (r *Registry) trampoline(name string, fn Func) scalarFunc {
	invocations := InvocationsTotal.WithLabelValues(name)
	failures := FailuresTotal.WithLabelValues(name)

	return func(ctx sqlite.Context, args []sqlite.Value) (result sqlite.Value, err error) {
		invocations.Inc()
		defer func() {
			if recovered := recover(); recovered != nil {
				cause, ok := recovered.(error)
				if !ok {
					cause = fmt.Errorf("%v", recovered)
				}
				r.logger.Error("application function panicked",
					"function", name,
					"args", len(args),
					"panic", recovered,
				)
				result = sqlite.Value{}
				err = &CallableError{Name: name, NArgs: len(args), Err: cause, Panicked: true}
			}
			if err != nil {
				failures.Inc()
				recordFailure(ctx, err)
			}
		}()

		decoded := make([]any, len(args))
		for index, arg := range args {
			value, decodeErr := sqlvalue.FromValue(arg)
			if decodeErr != nil {
				return sqlite.Value{}, &CallableError{
					Name:  name,
					NArgs: len(args),
					Err:   fmt.Errorf("argument %d: %w", index+1, decodeErr),
				}
			}
			decoded[index] = value
		}

		output, callErr := fn(decoded)
		if callErr != nil {
			return sqlite.Value{}, &CallableError{Name: name, NArgs: len(args), Err: callErr}
		}

		encoded, encodeErr := r.codec.Value(output)
		if encodeErr != nil {
			return sqlite.Value{}, &CallableError{
				Name:  name,
				NArgs: len(args),
				Err:   fmt.Errorf("result: %w", encodeErr),
			}
		}
		return encoded, nil
	}
}

// tombstone is installed in a removed (name, nargs) slot. It resolves
// the call against the snapshot current at call time.
func (r *Registry) tombstone(name string, nargs int) scalarFunc {
	return func(ctx sqlite.Context, args []sqlite.Value) (sqlite.Value, error) {
		function := r.current.Load().functions[name]
		if function != nil && nargs != AnyArgs {
			if variadic := function.arities[AnyArgs]; variadic != nil {
				return variadic.scalar(ctx, args)
			}
		}
		err := wrongArgumentCount(name)
		if function == nil {
			err = noSuchFunction(name)
		}
		recordFailure(ctx, err)
		return sqlite.Value{}, err
	}
}
