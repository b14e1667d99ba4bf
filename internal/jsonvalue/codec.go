package jsonvalue

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Decode parses a complete JSON document. Trailing data after the first
// value is an error.
//
// Strings and member names remember their literal as written, escapes
// included, and Encode writes that literal back unchanged. Text the decoder
// cannot represent exactly, such as a lone surrogate escape or invalid
// UTF-8, therefore survives a round trip.
func Decode(data []byte) (Value, error) {
	d := &decoder{dec: json.NewDecoder(bytes.NewReader(data)), data: data}
	d.dec.UseNumber()

	v, err := d.value()
	if err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return Value{}, fmt.Errorf("jsonvalue: decode: %w", err)
	}
	if _, err := d.dec.Token(); !errors.Is(err, io.EOF) {
		return Value{}, fmt.Errorf("jsonvalue: decode: trailing data after document")
	}
	return v, nil
}

type decoder struct {
	dec  *json.Decoder
	data []byte
}

// token reads the next token and, for strings, the quoted literal it was
// decoded from. Between the previous token and the opening quote there is
// only whitespace or a separator.
func (d *decoder) token() (json.Token, string, error) {
	start := d.dec.InputOffset()
	tok, err := d.dec.Token()
	if err != nil {
		return nil, "", err
	}
	if _, ok := tok.(string); !ok {
		return tok, "", nil
	}
	end := d.dec.InputOffset()
	for start < end && d.data[start] != '"' {
		start++
	}
	return tok, string(d.data[start:end]), nil
}

func (d *decoder) value() (Value, error) {
	tok, raw, err := d.token()
	if err != nil {
		return Value{}, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			return d.object()
		case '[':
			return d.array()
		}
		return Value{}, fmt.Errorf("unexpected delimiter %q", t)
	case string:
		return Value{kind: String, s: t, raw: raw}, nil
	case json.Number:
		return NumberValue(t), nil
	case bool:
		return BoolValue(t), nil
	case nil:
		return NullValue(), nil
	}
	return Value{}, fmt.Errorf("unexpected token %v", tok)
}

func (d *decoder) object() (Value, error) {
	obj := orderedmap.New[string, Value]()
	keys := map[string]string{}
	for d.dec.More() {
		tok, raw, err := d.token()
		if err != nil {
			return Value{}, err
		}
		key, ok := tok.(string)
		if !ok {
			return Value{}, fmt.Errorf("object key is %T, want string", tok)
		}
		member, err := d.value()
		if err != nil {
			return Value{}, err
		}
		obj.Set(key, member)
		keys[key] = raw
	}
	// Closing brace.
	if _, err := d.dec.Token(); err != nil {
		return Value{}, err
	}
	return Value{kind: Object, obj: obj, keys: keys}, nil
}

func (d *decoder) array() (Value, error) {
	elems := []Value{}
	for d.dec.More() {
		e, err := d.value()
		if err != nil {
			return Value{}, err
		}
		elems = append(elems, e)
	}
	// Closing bracket.
	if _, err := d.dec.Token(); err != nil {
		return Value{}, err
	}
	return Value{kind: Array, arr: elems}, nil
}

// Encode serializes v. An empty indent produces compact output; otherwise
// nested levels are indented with the given string. HTML characters are not
// escaped so that embedded markers and paths stay readable.
func Encode(v Value, indent string) ([]byte, error) {
	var buf bytes.Buffer
	e := &encoder{buf: &buf, str: json.NewEncoder(&buf)}
	e.str.SetEscapeHTML(false)
	if err := e.value(v); err != nil {
		return nil, fmt.Errorf("jsonvalue: encode: %w", err)
	}
	if indent == "" {
		return buf.Bytes(), nil
	}
	var out bytes.Buffer
	out.Grow(buf.Len() + buf.Len()/8)
	if err := json.Indent(&out, buf.Bytes(), "", indent); err != nil {
		return nil, fmt.Errorf("jsonvalue: indent: %w", err)
	}
	return out.Bytes(), nil
}

type encoder struct {
	buf *bytes.Buffer
	str *json.Encoder
}

func (e *encoder) value(v Value) error {
	switch v.kind {
	case Null:
		e.buf.WriteString("null")
	case Bool:
		if v.b {
			e.buf.WriteString("true")
		} else {
			e.buf.WriteString("false")
		}
	case Number:
		if !json.Valid([]byte(v.s)) {
			return fmt.Errorf("invalid number literal %q", v.s)
		}
		e.buf.WriteString(v.s)
	case String:
		if v.raw != "" {
			e.buf.WriteString(v.raw)
			return nil
		}
		return e.string(v.s)
	case Array:
		e.buf.WriteByte('[')
		for i, el := range v.arr {
			if i > 0 {
				e.buf.WriteByte(',')
			}
			if err := e.value(el); err != nil {
				return err
			}
		}
		e.buf.WriteByte(']')
	case Object:
		e.buf.WriteByte('{')
		first := true
		for k, m := range v.Members() {
			if !first {
				e.buf.WriteByte(',')
			}
			first = false
			if raw, ok := v.keys[k]; ok {
				e.buf.WriteString(raw)
			} else if err := e.string(k); err != nil {
				return err
			}
			e.buf.WriteByte(':')
			if err := e.value(m); err != nil {
				return err
			}
		}
		e.buf.WriteByte('}')
	default:
		return fmt.Errorf("unknown kind %d", v.kind)
	}
	return nil
}

// string writes s as a quoted JSON string. json.Encoder terminates every
// value with a newline, which is dropped again.
func (e *encoder) string(s string) error {
	if err := e.str.Encode(s); err != nil {
		return err
	}
	e.buf.Truncate(e.buf.Len() - 1)
	return nil
}
