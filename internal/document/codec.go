package document

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"
)

// Parse decodes JSON text into a Node tree. Object key order, array order
// and number literals are kept as written. Trailing data after the first
// value is an error.
func Parse(data []byte) (*Node, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	n, err := parseValue(dec)
	if err != nil {
		return nil, toParseError(data, dec, err)
	}
	if tok, err := dec.Token(); err != io.EOF {
		if err == nil {
			err = fmt.Errorf("unexpected %v after top-level value", tok)
		}
		return nil, toParseError(data, dec, err)
	}
	return n, nil
}

// ParseString is Parse for string input.
func ParseString(s string) (*Node, error) {
	return Parse([]byte(s))
}

func toParseError(data []byte, dec *json.Decoder, err error) error {
	var syn *json.SyntaxError
	if errors.As(err, &syn) {
		return newParseError(data, syn.Offset, errors.New(syn.Error()))
	}
	if err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return newParseError(data, dec.InputOffset(), err)
}

func parseValue(dec *json.Decoder) (*Node, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			return parseObject(dec)
		case '[':
			return parseArray(dec)
		}
		return nil, fmt.Errorf("unexpected %q", rune(t))
	case nil:
		return Null(), nil
	case bool:
		return Bool(t), nil
	case json.Number:
		return &Node{Kind: NumberKind, Number: Number{text: t.String()}}, nil
	case string:
		return String(t), nil
	}
	return nil, fmt.Errorf("unexpected token %v", tok)
}

func parseObject(dec *json.Decoder) (*Node, error) {
	obj := &Node{Kind: ObjectKind, Keys: []string{}, Values: []*Node{}}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("expected object key, got %v", tok)
		}
		v, err := parseValue(dec)
		if err != nil {
			return nil, err
		}
		obj.put(key, v)
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return obj, nil
}

func parseArray(dec *json.Decoder) (*Node, error) {
	arr := &Node{Kind: ArrayKind, Values: []*Node{}}
	for dec.More() {
		v, err := parseValue(dec)
		if err != nil {
			return nil, err
		}
		arr.Values = append(arr.Values, v)
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return arr, nil
}

// Serialize encodes n as compact JSON text.
func Serialize(n *Node) []byte {
	var buf bytes.Buffer
	writeNode(&buf, n)
	return buf.Bytes()
}

// SerializeString is Serialize returning a string.
func SerializeString(n *Node) string {
	return string(Serialize(n))
}

// SerializeIndent encodes n with one element per line.
func SerializeIndent(n *Node, prefix, indent string) []byte {
	var buf bytes.Buffer
	if err := json.Indent(&buf, Serialize(n), prefix, indent); err != nil {
		// Serialize only emits valid JSON.
		panic(err)
	}
	return buf.Bytes()
}

func writeNode(buf *bytes.Buffer, n *Node) {
	switch kindOf(n) {
	case NullKind:
		buf.WriteString("null")
	case BoolKind:
		if n.Bool {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case NumberKind:
		buf.WriteString(n.Number.String())
	case StringKind:
		writeString(buf, n.String)
	case ArrayKind:
		buf.WriteByte('[')
		for i, v := range n.Values {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeNode(buf, v)
		}
		buf.WriteByte(']')
	case ObjectKind:
		buf.WriteByte('{')
		for i, k := range n.Keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeString(buf, k)
			buf.WriteByte(':')
			writeNode(buf, n.Values[i])
		}
		buf.WriteByte('}')
	}
}

const hexDigits = "0123456789abcdef"

// writeString quotes s the way encoding/json does, minus HTML escaping.
func writeString(buf *bytes.Buffer, s string) {
	buf.WriteByte('"')
	for i := 0; i < len(s); {
		c := s[i]
		if c < utf8.RuneSelf {
			switch {
			case c == '"' || c == '\\':
				buf.WriteByte('\\')
				buf.WriteByte(c)
			case c == '\n':
				buf.WriteString(`\n`)
			case c == '\r':
				buf.WriteString(`\r`)
			case c == '\t':
				buf.WriteString(`\t`)
			case c < 0x20:
				buf.WriteString(`\u00`)
				buf.WriteByte(hexDigits[c>>4])
				buf.WriteByte(hexDigits[c&0xf])
			default:
				buf.WriteByte(c)
			}
			i++
			continue
		}
		r, size := utf8.DecodeRuneInString(s[i:])
		switch {
		case r == utf8.RuneError && size == 1:
			buf.WriteString(`\ufffd`)
		case r == '\u2028' || r == '\u2029':
			buf.WriteString(`\u202`)
			buf.WriteByte(hexDigits[r&0xf])
		default:
			buf.WriteString(s[i : i+size])
		}
		i += size
	}
	buf.WriteByte('"')
}

// MarshalJSON implements json.Marshaler.
func (n *Node) MarshalJSON() ([]byte, error) {
	return Serialize(n), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (n *Node) UnmarshalJSON(data []byte) error {
	parsed, err := Parse(data)
	if err != nil {
		return err
	}
	*n = *parsed
	return nil
}
