// Package schema validates decoded JSON/YAML values against a small
// JSON Schema subset. It is used to tell structurally broken storage blobs
// and catalog files apart from I/O failures, with a path to the offending value.
package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("schema validation failed")

// Validate checks a decoded value against a schema.
// Returns nil if validation passes or the schema is nil.
//
// Supported keywords:
//   - type (a name or a list of names: string, number, integer, boolean, object, array, null)
//   - properties, required, additionalProperties (bool or schema)
//   - items, minItems
//   - minLength, minimum
//   - enum
func Validate(schema map[string]any, value any) error {
	if schema == nil {
		return nil
	}
	return validateValue(schema, normalize(value), "$")
}

func fail(path, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalid, path, fmt.Sprintf(format, args...))
}

// normalize turns YAML-decoded maps and typed slices into the JSON shapes
// the validator switches on.
func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = normalize(e)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[fmt.Sprint(k)] = normalize(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalize(e)
		}
		return out
	case []string:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = e
		}
		return out
	}
	return v
}

func validateValue(schema map[string]any, value any, path string) error {
	if t, ok := schema["type"]; ok {
		if err := checkType(typeNames(t), value, path); err != nil {
			return err
		}
	}

	if enumRaw, ok := schema["enum"]; ok {
		if enumList, ok := enumRaw.([]any); ok {
			if err := checkEnum(enumList, value, path); err != nil {
				return err
			}
		}
	}

	switch v := value.(type) {
	case map[string]any:
		return validateObject(schema, v, path)
	case []any:
		return validateArray(schema, v, path)
	case string:
		return validateString(schema, v, path)
	case float64:
		return validateNumber(schema, v, path)
	case int:
		return validateNumber(schema, float64(v), path)
	case json.Number:
		f, _ := v.Float64()
		return validateNumber(schema, f, path)
	}
	return nil
}

func typeNames(t any) []string {
	switch v := t.(type) {
	case string:
		return []string{v}
	case []string:
		return v
	case []any:
		names := make([]string, 0, len(v))
		for _, n := range v {
			if s, ok := n.(string); ok {
				names = append(names, s)
			}
		}
		return names
	}
	return nil
}

func checkType(expected []string, value any, path string) error {
	if len(expected) == 0 {
		return nil
	}
	actual := jsonType(value)
	for _, e := range expected {
		if e == actual {
			return nil
		}
		// "number" also accepts integer
		if e == "number" && actual == "integer" {
			return nil
		}
		if e == "integer" {
			if f, ok := value.(float64); ok && f == float64(int64(f)) {
				return nil
			}
		}
	}
	return fail(path, "expected type %s, got %q", strings.Join(expected, " or "), actual)
}

func jsonType(v any) string {
	if v == nil {
		return "null"
	}
	switch v.(type) {
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64, json.Number:
		return "number"
	case int, int64:
		return "integer"
	default:
		return reflect.TypeOf(v).String()
	}
}

func checkEnum(allowed []any, value any, path string) error {
	for _, a := range allowed {
		if reflect.DeepEqual(a, value) {
			return nil
		}
	}
	return fail(path, "value %v not in enum %v", value, allowed)
}

func validateObject(schema map[string]any, obj map[string]any, path string) error {
	if req, ok := schema["required"]; ok {
		for _, field := range typeNames(req) {
			if _, exists := obj[field]; !exists {
				return fail(path, "missing required field %q", field)
			}
		}
	}

	props, _ := schema["properties"].(map[string]any)

	// Walk keys in order so the reported path is stable.
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, field := range keys {
		val := obj[field]
		if ps, ok := props[field].(map[string]any); ok {
			if err := validateValue(ps, val, path+"."+field); err != nil {
				return err
			}
			continue
		}
		if _, defined := props[field]; defined {
			continue
		}
		switch ap := schema["additionalProperties"].(type) {
		case bool:
			if !ap {
				return fail(path, "additional property %q not allowed", field)
			}
		case map[string]any:
			if err := validateValue(ap, val, path+"."+field); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateArray(schema map[string]any, arr []any, path string) error {
	if v, ok := toFloat(schema["minItems"]); ok {
		if float64(len(arr)) < v {
			return fail(path, "array length %d is less than minItems %v", len(arr), v)
		}
	}
	if itemSchema, ok := schema["items"].(map[string]any); ok {
		for i, elem := range arr {
			if err := validateValue(itemSchema, elem, fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateString(schema map[string]any, s string, path string) error {
	if v, ok := toFloat(schema["minLength"]); ok {
		if float64(len(s)) < v {
			return fail(path, "string length %d is less than minLength %v", len(s), v)
		}
	}
	return nil
}

func validateNumber(schema map[string]any, n float64, path string) error {
	if v, ok := toFloat(schema["minimum"]); ok {
		if n < v {
			return fail(path, "%v is less than minimum %v", n, v)
		}
	}
	return nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
