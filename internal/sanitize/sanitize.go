// Package sanitize strips characters the collection endpoint cannot accept
// from event payloads.
package sanitize

import (
	"reflect"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

const (
	unsupportedKeyChars   = `.:$'"\`
	unsupportedValueChars = `'"\`
)

// Key returns k in NFC form without surrounding whitespace and without any of
// the characters . : $ ' " \.
func Key(k string) string {
	return clean(k, unsupportedKeyChars)
}

// Value returns v in NFC form without surrounding whitespace and without any
// of the characters ' " \.
func Value(v string) string {
	return clean(v, unsupportedValueChars)
}

func clean(s, unsupported string) string {
	s = norm.NFC.String(s)
	s = strings.TrimFunc(s, unicode.IsSpace)
	if !strings.ContainsAny(s, unsupported) {
		return s
	}
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(unsupported, r) {
			return -1
		}
		return r
	}, s)
}

// Map sanitizes keys and string values of m, recursing into nested maps and
// slices. The input is left untouched. Entries whose key becomes empty are
// dropped.
func Map(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		key := Key(k)
		if key == "" {
			continue
		}
		out[key] = value(v)
	}
	return out
}

func value(v interface{}) interface{} {
	switch v := v.(type) {
	case string:
		return Value(v)
	case map[string]interface{}:
		return Map(v)
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = value(item)
		}
		return out
	case []string:
		out := make([]string, len(v))
		for i, item := range v {
			out[i] = Value(item)
		}
		return out
	default:
		return namedMap(v)
	}
}

var genericMap = reflect.TypeOf(map[string]interface{}(nil))

// namedMap sanitizes maps whose type is defined as map[string]interface{}
// and returns them with their original type. Other values pass through.
func namedMap(v interface{}) interface{} {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || rv.Kind() != reflect.Map || !rv.Type().ConvertibleTo(genericMap) {
		return v
	}
	m := rv.Convert(genericMap).Interface().(map[string]interface{})
	return reflect.ValueOf(Map(m)).Convert(rv.Type()).Interface()
}
