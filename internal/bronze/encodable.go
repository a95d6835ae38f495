package bronze

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
)

// ErrBinaryValue reports a raw byte slice inside a record. encoding/json would
// emit it as a base64 string, which does not decode back to the original value.
var ErrBinaryValue = errors.New("binary value has no JSON representation")

// maxWalkDepth matches the nesting at which encoding/json reports cycles.
const maxWalkDepth = 1000

var (
	rawMessageType = reflect.TypeOf(json.RawMessage(nil))
	marshalerType  = reflect.TypeOf((*json.Marshaler)(nil)).Elem()
)

// checkEncodable walks v and rejects values that encoding/json would encode
// lossily. Unsupported types and values are left to json.Marshal.
func checkEncodable(v reflect.Value, depth int) error {
	if !v.IsValid() || depth > maxWalkDepth {
		return nil
	}

	if v.Type() == rawMessageType {
		if v.Len() > 0 && !json.Valid(v.Bytes()) {
			return fmt.Errorf("invalid json.RawMessage: %q", truncate(v.Bytes(), 32))
		}
		return nil
	}

	switch v.Kind() {
	case reflect.Interface, reflect.Pointer:
		if v.IsNil() {
			return nil
		}
		return checkEncodable(v.Elem(), depth+1)
	}

	// Custom marshalers own their encoding.
	if v.Type().Implements(marshalerType) {
		return nil
	}

	switch v.Kind() {
	case reflect.Map:
		iter := v.MapRange()
		for iter.Next() {
			if err := checkEncodable(iter.Value(), depth+1); err != nil {
				return fmt.Errorf("key %v: %w", iter.Key(), err)
			}
		}
	case reflect.Slice, reflect.Array:
		if v.Kind() == reflect.Slice && v.Type().Elem().Kind() == reflect.Uint8 {
			return ErrBinaryValue
		}
		for i := 0; i < v.Len(); i++ {
			if err := checkEncodable(v.Index(i), depth+1); err != nil {
				return fmt.Errorf("index %d: %w", i, err)
			}
		}
	case reflect.Struct:
		t := v.Type()
		for i := 0; i < t.NumField(); i++ {
			if !t.Field(i).IsExported() {
				continue
			}
			if err := checkEncodable(v.Field(i), depth+1); err != nil {
				return fmt.Errorf("field %s: %w", t.Field(i).Name, err)
			}
		}
	}
	return nil
}

func truncate(b []byte, n int) []byte {
	if len(b) > n {
		return b[:n]
	}
	return b
}
