package bank

import (
	"fmt"

	"github.com/caldw/bankforge/core/errors"
	"github.com/caldw/bankforge/core/fnv"
)

// IDForm discriminates the two ways an object id appears in a bank.
type IDForm int

const (
	// FormHash is a numeric 32-bit id ({"Hash": 123}).
	FormHash IDForm = iota
	// FormString is a named id ({"String": "Play_..."}); its numeric
	// identity is the FNV-1a hash of the name.
	FormString
)

// ObjectID is the tagged id of a hierarchy object. Two ids are equivalent
// when their numeric identities match, regardless of form.
type ObjectID struct {
	Form IDForm
	Hash uint32
	Name string
}

// HashID returns a numeric-form id.
func HashID(h uint32) ObjectID { return ObjectID{Form: FormHash, Hash: h} }

// StringID returns a string-form id.
func StringID(name string) ObjectID { return ObjectID{Form: FormString, Name: name} }

// Numeric returns the 32-bit identity of the id; string ids hash their name.
func (id ObjectID) Numeric() uint32 {
	if id.Form == FormString {
		return fnv.Hash(id.Name)
	}
	return id.Hash
}

// Equivalent reports whether two ids refer to the same logical object.
func (id ObjectID) Equivalent(other ObjectID) bool {
	return id.Numeric() == other.Numeric()
}

func (id ObjectID) String() string {
	if id.Form == FormString {
		return id.Name
	}
	return fmt.Sprintf("%d", id.Hash)
}

// IDFromNode reads a tagged id out of its document form, a single-entry map
// keyed "Hash" or "String".
func IDFromNode(n *Node) (ObjectID, error) {
	if n == nil || n.Kind() != KindMap {
		return ObjectID{}, &errors.ParseError{Format: "object id", Message: "id is not a map"}
	}
	if h, ok := n.Get("Hash"); ok {
		v, ok := h.Uint()
		if !ok {
			return ObjectID{}, &errors.ParseError{Format: "object id", Message: "Hash id is not a 32-bit integer"}
		}
		return HashID(v), nil
	}
	if s, ok := n.Get("String"); ok {
		name, ok := s.Str()
		if !ok {
			return ObjectID{}, &errors.ParseError{Format: "object id", Message: "String id is not a string"}
		}
		return StringID(name), nil
	}
	return ObjectID{}, &errors.ParseError{Format: "object id", Message: fmt.Sprintf("unknown id form with keys %v", n.Keys())}
}

// ToNode renders the id back into its document form.
func (id ObjectID) ToNode() *Node {
	m := NewMap()
	if id.Form == FormString {
		m.Set("String", NewString(id.Name))
	} else {
		m.Set("Hash", NewUint(id.Hash))
	}
	return m
}
