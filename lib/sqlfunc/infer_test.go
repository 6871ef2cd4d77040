// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sqlfunc

import (
	"errors"
	"reflect"
	"testing"
)

func TestInferFixed(t *testing.T) {
	fn, arity, err := Infer(func(value int64) int64 { return value * 2 })
	if err != nil {
		t.Fatalf("Infer: %v", err)
	}
	if !reflect.DeepEqual(arity, Args(1)) {
		t.Errorf("arity = %s, want (1)", arity)
	}
	got, err := fn([]any{int64(21)})
	if err != nil || got != int64(42) {
		t.Errorf("fn(21) = %v, %v; want 42", got, err)
	}

	// REAL arguments convert to integer parameters.
	got, err = fn([]any{2.0})
	if err != nil || got != int64(4) {
		t.Errorf("fn(2.0) = %v, %v; want 4", got, err)
	}

	if _, err := fn([]any{"nope"}); err == nil {
		t.Error("text argument for int64 parameter accepted")
	}
}

func TestInferVariadic(t *testing.T) {
	fn, arity, err := Infer(func(rest ...any) int { return len(rest) })
	if err != nil {
		t.Fatalf("Infer: %v", err)
	}
	if !arity.Variadic || len(arity.Fixed) != 0 {
		t.Errorf("arity = %s, want variadic", arity)
	}
	for _, args := range [][]any{nil, {int64(1), "two", nil}} {
		got, err := fn(args)
		if err != nil || got != len(args) {
			t.Errorf("fn(%v) = %v, %v; want %d", args, got, err, len(args))
		}
	}
}

func TestInferErrorResult(t *testing.T) {
	failure := errors.New("boom")
	fn, _, err := Infer(func(name string) (string, error) {
		if name == "" {
			return "", failure
		}
		return "hello " + name, nil
	})
	if err != nil {
		t.Fatalf("Infer: %v", err)
	}
	if got, err := fn([]any{"go"}); err != nil || got != "hello go" {
		t.Errorf("fn(go) = %v, %v", got, err)
	}
	if _, err := fn([]any{""}); !errors.Is(err, failure) {
		t.Errorf("fn('') error = %v, want %v", err, failure)
	}
}

func TestInferNilArgumentIsZero(t *testing.T) {
	fn, _, err := Infer(func(data map[string]any) bool { return data == nil })
	if err != nil {
		t.Fatalf("Infer: %v", err)
	}
	if got, err := fn([]any{nil}); err != nil || got != true {
		t.Errorf("fn(nil) = %v, %v", got, err)
	}
}

func TestInferRejects(t *testing.T) {
	tests := map[string]any{
		"nil":               nil,
		"not a function":    42,
		"no results":        func(int64) {},
		"bad second result": func(int64) (int64, int64) { return 0, 0 },
		"channel parameter": func(chan int) int { return 0 },
		"mixed variadic":    func(first int64, rest ...any) int { return 0 },
		"plain Func":        Func(func([]any) (any, error) { return nil, nil }),
	}
	for name, fn := range tests {
		if _, _, err := Infer(fn); err == nil {
			t.Errorf("%s: Infer accepted", name)
		}
	}
}

func TestResolvePrefersExplicitArity(t *testing.T) {
	_, arity, err := resolve(func(args []any) (any, error) { return len(args), nil }, Options{Arity: Args(1, 2)})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !reflect.DeepEqual(arity, Args(1, 2)) {
		t.Errorf("arity = %s, want (1,2)", arity)
	}

	if _, _, err := resolve(func(args []any) (any, error) { return nil, nil }, Options{}); err == nil {
		t.Error("resolve accepted a Func without arity")
	}
}
