package utils

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
)

// OrderedMap is a map that remembers the order keys were first inserted in, so that callers
// iterating over it (e.g. to emit class fields in declaration order) get deterministic output.
type OrderedMap[K comparable, V any] struct {
	index map[K]int
	keys  []K
	vals  []V
}

// Set inserts or updates the value associated with 'key', preserving its original
// position in iteration order if it was already present.
func (om *OrderedMap[K, V]) Set(key K, value V) {
	if om.index == nil {
		om.index = map[K]int{}
	}

	if i, found := om.index[key]; found {
		om.vals[i] = value
		return
	}

	om.index[key] = len(om.keys)
	om.keys = append(om.keys, key)
	om.vals = append(om.vals, value)
}

// Get looks up the value associated with 'key', the second return value reports whether it was found.
func (om *OrderedMap[K, V]) Get(key K) (V, bool) {
	if om.index == nil {
		var zero V
		return zero, false
	}

	i, found := om.index[key]
	if !found {
		var zero V
		return zero, false
	}
	return om.vals[i], true
}

// Size returns the number of entries currently stored.
func (om *OrderedMap[K, V]) Size() int {
	return len(om.keys)
}

// Entries returns the stored values in insertion order.
func (om *OrderedMap[K, V]) Entries() []V {
	return om.vals
}

// Keys returns the stored keys in insertion order.
func (om *OrderedMap[K, V]) Keys() []K {
	return om.keys
}

// UnmarshalJSON decodes a JSON object into the map, preserving the key order as it appears
// in the source document (the standard library's map[K]V unmarshal would scramble it). Only
// string-kinded key types are supported, which covers every concrete use in this codebase.
func (om *OrderedMap[K, V]) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	open, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := open.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("orderedmap: expected a JSON object")
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		keyStr, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("orderedmap: expected a string key, got %v", keyTok)
		}

		var value V
		if err := dec.Decode(&value); err != nil {
			return err
		}

		var key K
		ref := reflect.ValueOf(&key).Elem()
		if ref.Kind() != reflect.String {
			return fmt.Errorf("orderedmap: unsupported key kind %s for JSON decoding", ref.Kind())
		}
		ref.SetString(keyStr)

		om.Set(key, value)
	}

	_, err = dec.Token() // consume the closing '}'
	return err
}
