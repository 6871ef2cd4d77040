// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sqlfunc

import (
	"fmt"
	"reflect"
)

// Func is the host side of an application function. args holds the
// decoded arguments; the returned value is encoded with the codec's
// classification rule.
type Func func(args []any) (any, error)

var (
	funcType  = reflect.TypeOf(Func(nil))
	errorType = reflect.TypeOf((*error)(nil)).Elem()
)

// Infer adapts an arbitrary Go function to Func and derives its arity
// from the signature. A function whose only parameter is variadic is
// variadic; any other function has a single fixed arity equal to its
// parameter count.
//
// Parameters may be any, bool, string, []byte, map[string]any, []any,
// or any integer or floating-point type; numeric arguments are
// converted. The function must return one value, or one value and an
// error.
func Infer(fn any) (Func, Arity, error) {
	if fn == nil {
		return nil, Arity{}, fmt.Errorf("nil function")
	}
	if reflect.TypeOf(fn).ConvertibleTo(funcType) {
		return nil, Arity{}, fmt.Errorf("cannot infer the arity of a Func; set Options.Arity")
	}

	value := reflect.ValueOf(fn)
	signature := value.Type()
	if signature.Kind() != reflect.Func {
		return nil, Arity{}, fmt.Errorf("%T is not a function", fn)
	}
	if err := checkResults(signature); err != nil {
		return nil, Arity{}, err
	}

	parameterCount := signature.NumIn()
	for index := range parameterCount {
		parameter := signature.In(index)
		if index == parameterCount-1 && signature.IsVariadic() {
			parameter = parameter.Elem()
		}
		if !supportedParameter(parameter) {
			return nil, Arity{}, fmt.Errorf("parameter %d has unsupported type %s", index, parameter)
		}
	}

	var arity Arity
	switch {
	case signature.IsVariadic() && parameterCount == 1:
		arity = Variadic()
	case signature.IsVariadic():
		return nil, Arity{}, fmt.Errorf("variadic functions with leading fixed parameters are not supported; set Options.Arity and use Func")
	default:
		arity = Args(parameterCount)
	}

	adapted := func(args []any) (any, error) {
		inputs, err := convertArguments(signature, args)
		if err != nil {
			return nil, err
		}
		var outputs []reflect.Value
		if signature.IsVariadic() {
			outputs = value.CallSlice(inputs)
		} else {
			outputs = value.Call(inputs)
		}
		if len(outputs) == 2 && !outputs[1].IsNil() {
			return nil, outputs[1].Interface().(error)
		}
		return outputs[0].Interface(), nil
	}
	return adapted, arity, nil
}

// resolve turns a registrable value into a Func and the arity to
// register. An explicit arity in options wins over inference.
func resolve(fn any, options Options) (Func, Arity, error) {
	if fn == nil {
		return nil, Arity{}, fmt.Errorf("nil function")
	}
	if reflect.TypeOf(fn).ConvertibleTo(funcType) {
		if options.Arity.IsZero() {
			return nil, Arity{}, fmt.Errorf("cannot infer the arity of a Func; set Options.Arity")
		}
		return reflect.ValueOf(fn).Convert(funcType).Interface().(Func), options.Arity, nil
	}
	adapted, inferred, err := Infer(fn)
	if err != nil {
		return nil, Arity{}, err
	}
	if !options.Arity.IsZero() {
		return adapted, options.Arity, nil
	}
	return adapted, inferred, nil
}

func checkResults(signature reflect.Type) error {
	switch signature.NumOut() {
	case 1:
		return nil
	case 2:
		if signature.Out(1) != errorType {
			return fmt.Errorf("second result must be error, not %s", signature.Out(1))
		}
		return nil
	default:
		return fmt.Errorf("function must return a value or a value and an error")
	}
}

func supportedParameter(parameter reflect.Type) bool {
	switch parameter.Kind() {
	case reflect.Interface:
		return parameter.NumMethod() == 0
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	case reflect.Slice:
		return parameter.Elem().Kind() == reflect.Uint8 ||
			(parameter.Elem().Kind() == reflect.Interface && parameter.Elem().NumMethod() == 0)
	case reflect.Map:
		return parameter.Key().Kind() == reflect.String &&
			parameter.Elem().Kind() == reflect.Interface && parameter.Elem().NumMethod() == 0
	default:
		return false
	}
}

func convertArguments(signature reflect.Type, args []any) ([]reflect.Value, error) {
	if signature.IsVariadic() {
		elementType := signature.In(0).Elem()
		slice := reflect.MakeSlice(signature.In(0), len(args), len(args))
		for index, arg := range args {
			converted, err := convertArgument(elementType, arg)
			if err != nil {
				return nil, fmt.Errorf("argument %d: %w", index+1, err)
			}
			slice.Index(index).Set(converted)
		}
		return []reflect.Value{slice}, nil
	}

	if len(args) != signature.NumIn() {
		return nil, fmt.Errorf("got %d arguments, want %d", len(args), signature.NumIn())
	}
	inputs := make([]reflect.Value, len(args))
	for index, arg := range args {
		converted, err := convertArgument(signature.In(index), arg)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", index+1, err)
		}
		inputs[index] = converted
	}
	return inputs, nil
}

func convertArgument(target reflect.Type, arg any) (reflect.Value, error) {
	if arg == nil {
		return reflect.Zero(target), nil
	}
	value := reflect.ValueOf(arg)
	if value.Type().AssignableTo(target) {
		result := reflect.New(target).Elem()
		result.Set(value)
		return result, nil
	}
	if isNumeric(value.Kind()) && isNumeric(target.Kind()) {
		return value.Convert(target), nil
	}
	return reflect.Value{}, fmt.Errorf("cannot use %T as %s", arg, target)
}

func isNumeric(kind reflect.Kind) bool {
	switch kind {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
