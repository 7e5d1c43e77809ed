// Package document holds the case data document model: an ordered JSON
// tree, a codec that round-trips it through text without drift, the
// deep-merge used for partial updates and an RFC 6902 adapter.
package document

import (
	"strconv"
	"strings"
)

// Kind identifies the variant held by a Node.
type Kind uint8

const (
	NullKind Kind = iota
	BoolKind
	NumberKind
	StringKind
	ArrayKind
	ObjectKind
)

func (k Kind) String() string {
	switch k {
	case NullKind:
		return "null"
	case BoolKind:
		return "bool"
	case NumberKind:
		return "number"
	case StringKind:
		return "string"
	case ArrayKind:
		return "array"
	case ObjectKind:
		return "object"
	default:
		return "Kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Node is a JSON value. Objects keep their keys in insertion order, with
// Keys and Values kept parallel.
//
// Nodes are values: the functions in this package never modify a Node
// they did not create, and results may share subtrees with their inputs.
// Use Clone before changing a tree in place.
type Node struct {
	Kind   Kind
	Bool   bool
	Number Number
	String string
	Keys   []string
	Values []*Node
}

// Field is a key/value pair used to build objects.
type Field struct {
	Key   string
	Value *Node
}

// F is shorthand for a Field.
func F(key string, value *Node) Field {
	return Field{Key: key, Value: value}
}

func Null() *Node {
	return &Node{Kind: NullKind}
}

func Bool(b bool) *Node {
	return &Node{Kind: BoolKind, Bool: b}
}

func Int(i int64) *Node {
	return &Node{Kind: NumberKind, Number: IntNumber(i)}
}

// Float builds a number written with scale fraction digits.
func Float(f float64, scale int) *Node {
	return &Node{Kind: NumberKind, Number: FloatNumber(f, scale)}
}

func NumberNode(n Number) *Node {
	return &Node{Kind: NumberKind, Number: n}
}

func String(s string) *Node {
	return &Node{Kind: StringKind, String: s}
}

// Array builds an array; nil elements become null.
func Array(values ...*Node) *Node {
	res := &Node{Kind: ArrayKind, Values: make([]*Node, len(values))}
	for i, v := range values {
		res.Values[i] = orNull(v)
	}
	return res
}

// Object builds an object from fields in order. A repeated key keeps the
// position of its first occurrence and the value of its last.
func Object(fields ...Field) *Node {
	res := &Node{
		Kind:   ObjectKind,
		Keys:   make([]string, 0, len(fields)),
		Values: make([]*Node, 0, len(fields)),
	}
	for _, f := range fields {
		res.put(f.Key, f.Value)
	}
	return res
}

func orNull(n *Node) *Node {
	if n == nil {
		return Null()
	}
	return n
}

func kindOf(n *Node) Kind {
	if n == nil {
		return NullKind
	}
	return n.Kind
}

// put sets key on an object under construction.
func (n *Node) put(key string, value *Node) {
	if i := n.index(key); i >= 0 {
		n.Values[i] = orNull(value)
		return
	}
	n.Keys = append(n.Keys, key)
	n.Values = append(n.Values, orNull(value))
}

func (n *Node) index(key string) int {
	for i, k := range n.Keys {
		if k == key {
			return i
		}
	}
	return -1
}

// IsNull reports whether n is nil or a null value.
func (n *Node) IsNull() bool {
	return kindOf(n) == NullKind
}

// Len is the number of elements of an array or fields of an object.
func (n *Node) Len() int {
	if n == nil {
		return 0
	}
	return len(n.Values)
}

// Get returns the value stored under key in an object.
func (n *Node) Get(key string) (*Node, bool) {
	if kindOf(n) != ObjectKind {
		return nil, false
	}
	if i := n.index(key); i >= 0 {
		return n.Values[i], true
	}
	return nil, false
}

func (n *Node) Has(key string) bool {
	_, ok := n.Get(key)
	return ok
}

// Fields returns the fields of an object in order.
func (n *Node) Fields() []Field {
	if kindOf(n) != ObjectKind {
		return nil
	}
	res := make([]Field, len(n.Keys))
	for i, k := range n.Keys {
		res[i] = Field{Key: k, Value: n.Values[i]}
	}
	return res
}

// Lookup resolves an RFC 6901 JSON Pointer against n.
func (n *Node) Lookup(pointer string) (*Node, bool) {
	if pointer == "" {
		return n, n != nil
	}
	if !strings.HasPrefix(pointer, "/") {
		return nil, false
	}
	cur := n
	for _, raw := range strings.Split(pointer[1:], "/") {
		tok := unescapeToken(raw)
		switch kindOf(cur) {
		case ObjectKind:
			next, ok := cur.Get(tok)
			if !ok {
				return nil, false
			}
			cur = next
		case ArrayKind:
			if tok == "" || (len(tok) > 1 && tok[0] == '0') {
				return nil, false
			}
			i, err := strconv.Atoi(tok)
			if err != nil || i < 0 || i >= len(cur.Values) {
				return nil, false
			}
			cur = cur.Values[i]
		default:
			return nil, false
		}
	}
	return cur, true
}

var (
	tokenEscaper   = strings.NewReplacer("~", "~0", "/", "~1")
	tokenUnescaper = strings.NewReplacer("~1", "/", "~0", "~")
)

func escapeToken(s string) string {
	return tokenEscaper.Replace(s)
}

func unescapeToken(s string) string {
	return tokenUnescaper.Replace(s)
}

// Equal reports deep equality. Object key order is significant and numbers
// compare by literal, so 1 and 1.0 differ.
func (n *Node) Equal(other *Node) bool {
	if kindOf(n) != kindOf(other) {
		return false
	}
	switch kindOf(n) {
	case NullKind:
		return true
	case BoolKind:
		return n.Bool == other.Bool
	case NumberKind:
		return n.Number.String() == other.Number.String()
	case StringKind:
		return n.String == other.String
	case ObjectKind:
		if len(n.Keys) != len(other.Keys) {
			return false
		}
		for i, k := range n.Keys {
			if other.Keys[i] != k {
				return false
			}
		}
	}
	if len(n.Values) != len(other.Values) {
		return false
	}
	for i, v := range n.Values {
		if !v.Equal(other.Values[i]) {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of n.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	res := &Node{
		Kind:   n.Kind,
		Bool:   n.Bool,
		Number: n.Number,
		String: n.String,
	}
	if n.Keys != nil {
		res.Keys = make([]string, len(n.Keys))
		copy(res.Keys, n.Keys)
	}
	if n.Values != nil {
		res.Values = make([]*Node, len(n.Values))
		for i, v := range n.Values {
			res.Values[i] = v.Clone()
		}
	}
	return res
}
