// Package bank models a parsed soundbank document: a generic tree of
// scalars, ordered lists, and ordered maps, plus the hierarchy object and
// indexed object array built on top of it.
//
// Only a handful of structural fields are interpreted (ids, parents,
// children, actions, media sources). Everything else is opaque and passes
// through the tree untouched, so unknown object kinds survive a merge
// byte-for-byte.
package bank

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// NodeKind discriminates the variants of a Node.
type NodeKind int

const (
	// KindNull is a JSON null.
	KindNull NodeKind = iota
	// KindBool is a boolean scalar.
	KindBool
	// KindInt is an integer scalar (ids live here).
	KindInt
	// KindFloat is a non-integer numeric scalar.
	KindFloat
	// KindString is a string scalar.
	KindString
	// KindList is an ordered list of nodes.
	KindList
	// KindMap is an ordered string-keyed map of nodes.
	KindMap
)

func (k NodeKind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	default:
		return fmt.Sprintf("NodeKind(%d)", int(k))
	}
}

// Node is one value in a parsed bank document. Maps remember key insertion
// order so a document can be reserialized in its original shape.
type Node struct {
	kind   NodeKind
	b      bool
	i      int64
	f      float64
	s      string
	items  []*Node
	keys   []string
	fields map[string]*Node
}

// NewNull returns a null node.
func NewNull() *Node { return &Node{kind: KindNull} }

// NewBool returns a boolean node.
func NewBool(v bool) *Node { return &Node{kind: KindBool, b: v} }

// NewInt returns an integer node.
func NewInt(v int64) *Node { return &Node{kind: KindInt, i: v} }

// NewUint returns an integer node holding an unsigned 32-bit id.
func NewUint(v uint32) *Node { return &Node{kind: KindInt, i: int64(v)} }

// NewFloat returns a float node.
func NewFloat(v float64) *Node { return &Node{kind: KindFloat, f: v} }

// NewString returns a string node.
func NewString(v string) *Node { return &Node{kind: KindString, s: v} }

// NewList returns a list node holding items.
func NewList(items ...*Node) *Node { return &Node{kind: KindList, items: items} }

// NewMap returns an empty ordered map node.
func NewMap() *Node { return &Node{kind: KindMap, fields: map[string]*Node{}} }

// Kind returns the node's variant.
func (n *Node) Kind() NodeKind { return n.kind }

// Bool returns the boolean value. Valid only for KindBool.
func (n *Node) Bool() bool { return n.b }

// Int returns the integer value and whether the node is an integer.
func (n *Node) Int() (int64, bool) {
	if n.kind != KindInt {
		return 0, false
	}
	return n.i, true
}

// Uint returns the value as a uint32 id, reporting whether the node is an
// integer in uint32 range.
func (n *Node) Uint() (uint32, bool) {
	if n.kind != KindInt || n.i < 0 || n.i > 0xFFFFFFFF {
		return 0, false
	}
	return uint32(n.i), true
}

// Float returns the float value. Valid only for KindFloat.
func (n *Node) Float() float64 { return n.f }

// Str returns the string value and whether the node is a string.
func (n *Node) Str() (string, bool) {
	if n.kind != KindString {
		return "", false
	}
	return n.s, true
}

// Items returns the list elements. Valid only for KindList.
func (n *Node) Items() []*Node { return n.items }

// SetItems replaces the list elements. Valid only for KindList.
func (n *Node) SetItems(items []*Node) { n.items = items }

// Append adds elements to a list node.
func (n *Node) Append(items ...*Node) { n.items = append(n.items, items...) }

// Keys returns the map keys in insertion order.
func (n *Node) Keys() []string { return n.keys }

// Get returns the value for key in a map node.
func (n *Node) Get(key string) (*Node, bool) {
	if n.kind != KindMap {
		return nil, false
	}
	v, ok := n.fields[key]
	return v, ok
}

// Set stores a value under key, preserving the position of existing keys.
func (n *Node) Set(key string, v *Node) {
	if n.fields == nil {
		n.fields = map[string]*Node{}
	}
	if _, exists := n.fields[key]; !exists {
		n.keys = append(n.keys, key)
	}
	n.fields[key] = v
}

// Lookup walks a chain of map keys and returns the node at the end, or
// (nil, false) if any segment is missing or not a map.
func (n *Node) Lookup(path ...string) (*Node, bool) {
	cur := n
	for _, key := range path {
		next, ok := cur.Get(key)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

// DeepCopy returns a fully independent copy of the node tree.
func (n *Node) DeepCopy() *Node {
	if n == nil {
		return nil
	}
	out := &Node{kind: n.kind, b: n.b, i: n.i, f: n.f, s: n.s}
	if n.items != nil {
		out.items = make([]*Node, len(n.items))
		for i, item := range n.items {
			out.items[i] = item.DeepCopy()
		}
	}
	if n.fields != nil {
		out.keys = append([]string(nil), n.keys...)
		out.fields = make(map[string]*Node, len(n.fields))
		for k, v := range n.fields {
			out.fields[k] = v.DeepCopy()
		}
	}
	return out
}

// Equal reports whether two node trees hold the same values in the same
// order.
func (n *Node) Equal(other *Node) bool {
	if n == nil || other == nil {
		return n == other
	}
	if n.kind != other.kind {
		return false
	}
	switch n.kind {
	case KindNull:
		return true
	case KindBool:
		return n.b == other.b
	case KindInt:
		return n.i == other.i
	case KindFloat:
		return n.f == other.f
	case KindString:
		return n.s == other.s
	case KindList:
		if len(n.items) != len(other.items) {
			return false
		}
		for i := range n.items {
			if !n.items[i].Equal(other.items[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(n.keys) != len(other.keys) {
			return false
		}
		for i, k := range n.keys {
			if other.keys[i] != k {
				return false
			}
			if !n.fields[k].Equal(other.fields[k]) {
				return false
			}
		}
		return true
	}
	return false
}

// MarshalJSON serializes the node, keeping map keys in insertion order.
func (n *Node) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := n.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (n *Node) encode(buf *bytes.Buffer) error {
	switch n.kind {
	case KindNull:
		buf.WriteString("null")
	case KindBool:
		buf.WriteString(strconv.FormatBool(n.b))
	case KindInt:
		buf.WriteString(strconv.FormatInt(n.i, 10))
	case KindFloat:
		buf.WriteString(strconv.FormatFloat(n.f, 'g', -1, 64))
	case KindString:
		data, err := json.Marshal(n.s)
		if err != nil {
			return err
		}
		buf.Write(data)
	case KindList:
		buf.WriteByte('[')
		for i, item := range n.items {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := item.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindMap:
		buf.WriteByte('{')
		for i, k := range n.keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			keyData, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(keyData)
			buf.WriteByte(':')
			if err := n.fields[k].encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("cannot encode node of kind %s", n.kind)
	}
	return nil
}

// UnmarshalJSON parses JSON into the node, preserving map key order and
// keeping integers exact.
func (n *Node) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	parsed, err := decodeValue(dec)
	if err != nil {
		return err
	}
	*n = *parsed
	return nil
}

func decodeValue(dec *json.Decoder) (*Node, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	return decodeFromToken(dec, tok)
}

func decodeFromToken(dec *json.Decoder, tok json.Token) (*Node, error) {
	switch v := tok.(type) {
	case nil:
		return NewNull(), nil
	case bool:
		return NewBool(v), nil
	case string:
		return NewString(v), nil
	case json.Number:
		if i, err := strconv.ParseInt(v.String(), 10, 64); err == nil {
			return NewInt(i), nil
		}
		f, err := v.Float64()
		if err != nil {
			return nil, fmt.Errorf("invalid number %q: %w", v.String(), err)
		}
		return NewFloat(f), nil
	case json.Delim:
		switch v {
		case '[':
			list := NewList()
			for dec.More() {
				item, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				list.Append(item)
			}
			if _, err := dec.Token(); err != nil { // closing ]
				return nil, err
			}
			return list, nil
		case '{':
			m := NewMap()
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return nil, fmt.Errorf("expected object key, got %v", keyTok)
				}
				val, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				m.Set(key, val)
			}
			if _, err := dec.Token(); err != nil { // closing }
				return nil, err
			}
			return m, nil
		}
	}
	return nil, fmt.Errorf("unexpected JSON token %v", tok)
}
