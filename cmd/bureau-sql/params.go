// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/tidwall/jsonc"
)

// loadParams parses the --params value: a JSON array, inline or read
// from the file named after "@". Comments and trailing commas are
// allowed. Integers become int64 and other numbers float64, so a value
// round-trips through an INTEGER column unchanged.
func loadParams(value string) ([]any, error) {
	if value == "" {
		return nil, nil
	}
	data := []byte(value)
	if path, ok := strings.CutPrefix(value, "@"); ok {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
	}
	return parseParams(data)
}

func parseParams(data []byte) ([]any, error) {
	decoder := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
	decoder.UseNumber()

	var params []any
	if err := decoder.Decode(&params); err != nil {
		return nil, fmt.Errorf("expected a JSON array: %w", err)
	}
	if decoder.More() {
		return nil, fmt.Errorf("unexpected data after the parameter array")
	}
	for index, param := range params {
		converted, err := convertNumbers(param)
		if err != nil {
			return nil, fmt.Errorf("parameter %d: %w", index+1, err)
		}
		params[index] = converted
	}
	return params, nil
}

func convertNumbers(value any) (any, error) {
	switch value := value.(type) {
	case json.Number:
		if integer, err := value.Int64(); err == nil {
			return integer, nil
		}
		return value.Float64()
	case []any:
		for index, element := range value {
			converted, err := convertNumbers(element)
			if err != nil {
				return nil, err
			}
			value[index] = converted
		}
		return value, nil
	case map[string]any:
		for key, element := range value {
			converted, err := convertNumbers(element)
			if err != nil {
				return nil, err
			}
			value[key] = converted
		}
		return value, nil
	default:
		return value, nil
	}
}
