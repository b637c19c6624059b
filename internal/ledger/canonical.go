package ledger

import (
	"bytes"
	"encoding"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"unicode/utf8"
)

var (
	errNotObject   = errors.New("payload must encode to a JSON object")
	errInvalidUTF8 = errors.New("payload contains invalid UTF-8")
)

// canonicalize encodes v as compact JSON with object keys sorted at every
// nesting level. The value is first encoded with encoding/json (so structs,
// maps and tagged types are all accepted) and then re-decoded into generic
// maps, which the encoder always emits in key order. Numbers round-trip as
// json.Number so their textual form is preserved.
func canonicalize(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, &SerializationError{Err: err}
	}
	// encoding/json replaces invalid UTF-8 in strings with U+FFFD, which
	// would let distinct payloads share a content hash.
	if err := checkUTF8(reflect.ValueOf(v), ""); err != nil {
		return nil, &SerializationError{Err: err}
	}
	return canonicalizeJSON(raw)
}

var (
	textMarshalerType = reflect.TypeFor[encoding.TextMarshaler]()
	jsonMarshalerType = reflect.TypeFor[json.Marshaler]()
)

// checkUTF8 walks v the way encoding/json does and rejects any string or map
// key that is not valid UTF-8. Byte slices are skipped: they encode as base64.
// Output of custom marshalers is checked by canonicalizeJSON.
func checkUTF8(v reflect.Value, path string) error {
	if !v.IsValid() {
		return nil
	}
	t := v.Type()
	if v.CanInterface() && t.Implements(jsonMarshalerType) {
		return nil
	}
	if v.CanInterface() && t.Implements(textMarshalerType) {
		if (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) && v.IsNil() {
			return nil
		}
		text, err := v.Interface().(encoding.TextMarshaler).MarshalText()
		if err == nil && !utf8.Valid(text) {
			return fmt.Errorf("%w at %q", errInvalidUTF8, path)
		}
		return nil
	}

	switch v.Kind() {
	case reflect.Pointer, reflect.Interface:
		if v.IsNil() {
			return nil
		}
		return checkUTF8(v.Elem(), path)
	case reflect.String:
		if !utf8.ValidString(v.String()) {
			return fmt.Errorf("%w at %q", errInvalidUTF8, path)
		}
	case reflect.Map:
		iter := v.MapRange()
		for iter.Next() {
			key := iter.Key()
			if key.Kind() == reflect.String {
				if !utf8.ValidString(key.String()) {
					return fmt.Errorf("%w in a key under %q", errInvalidUTF8, path)
				}
			} else if err := checkUTF8(key, path); err != nil {
				return err
			}
			if err := checkUTF8(iter.Value(), path+"/"+fmt.Sprint(key)); err != nil {
				return err
			}
		}
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return nil
		}
		fallthrough
	case reflect.Array:
		for i := range v.Len() {
			if err := checkUTF8(v.Index(i), fmt.Sprintf("%s/%d", path, i)); err != nil {
				return err
			}
		}
	case reflect.Struct:
		for i := range v.NumField() {
			f := t.Field(i)
			if !f.IsExported() && !f.Anonymous || f.Tag.Get("json") == "-" {
				continue
			}
			if err := checkUTF8(v.Field(i), path+"/"+f.Name); err != nil {
				return err
			}
		}
	}
	return nil
}

// canonicalizeJSON re-encodes raw JSON bytes in canonical form.
func canonicalizeJSON(raw []byte) ([]byte, error) {
	if !utf8.Valid(raw) {
		return nil, &SerializationError{Err: errInvalidUTF8}
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, &SerializationError{Err: err}
	}
	if _, ok := generic.(map[string]any); !ok {
		return nil, &SerializationError{Err: errNotObject}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(generic); err != nil {
		return nil, &SerializationError{Err: err}
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
