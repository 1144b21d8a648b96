package bank

import (
	"sort"

	"github.com/caldw/bankforge/core/errors"
)

// Object kinds the merge engine gives special treatment. The set of kinds in
// a bank is open-ended; everything else is moved opaquely.
const (
	KindEvent                   = "Event"
	KindAction                  = "Action"
	KindSound                   = "Sound"
	KindActorMixer              = "ActorMixer"
	KindRandomSequenceContainer = "RandomSequenceContainer"
	KindSwitchContainer         = "SwitchContainer"
)

// Object is one entry of a bank's HIRC array: {"id": ..., "body": {<kind>: ...}}.
// It wraps the generic node so the few structural fields can be read and
// rewritten while the rest of the body stays opaque.
type Object struct {
	node *Node
}

// WrapObject wraps a parsed hierarchy object node.
func WrapObject(n *Node) *Object { return &Object{node: n} }

// NewObject builds a hierarchy object from scratch: {"id": ..., "body": {kind: params}}.
func NewObject(id ObjectID, kind string, params *Node) *Object {
	if params == nil {
		params = NewMap()
	}
	body := NewMap()
	body.Set(kind, params)
	n := NewMap()
	n.Set("id", id.ToNode())
	n.Set("body", body)
	return &Object{node: n}
}

// Node returns the underlying document node.
func (o *Object) Node() *Node { return o.node }

// ID returns the object's tagged id.
func (o *Object) ID() (ObjectID, error) {
	idNode, ok := o.node.Get("id")
	if !ok {
		return ObjectID{}, &errors.ParseError{Format: "hierarchy object", Message: "object has no id"}
	}
	return IDFromNode(idNode)
}

// SetID rewrites the object's id in place, keeping whatever form id carries.
func (o *Object) SetID(id ObjectID) {
	o.node.Set("id", id.ToNode())
}

// Kind returns the object's kind tag: the single key of its body map.
// Unknown bodies yield "".
func (o *Object) Kind() string {
	body, ok := o.node.Get("body")
	if !ok || body.Kind() != KindMap || len(body.Keys()) == 0 {
		return ""
	}
	return body.Keys()[0]
}

// Body returns the kind-specific parameter map, or nil if absent.
func (o *Object) Body() *Node {
	body, ok := o.node.Get("body")
	if !ok {
		return nil
	}
	kind := o.Kind()
	if kind == "" {
		return nil
	}
	params, _ := body.Get(kind)
	return params
}

// ParentID returns direct_parent_id, or 0 when the object is a root or the
// field is absent.
func (o *Object) ParentID() uint32 {
	body := o.Body()
	if body == nil {
		return 0
	}
	n, ok := body.Lookup("node_base_params", "direct_parent_id")
	if !ok {
		return 0
	}
	v, _ := n.Uint()
	return v
}

// Children returns the ids in the object's children list, in stored order.
// Objects without a children field return nil.
func (o *Object) Children() []uint32 {
	items := o.childItems()
	if items == nil {
		return nil
	}
	out := make([]uint32, 0, len(items.Items()))
	for _, item := range items.Items() {
		if v, ok := item.Uint(); ok {
			out = append(out, v)
		}
	}
	return out
}

func (o *Object) childItems() *Node {
	body := o.Body()
	if body == nil {
		return nil
	}
	children, ok := body.Get("children")
	if !ok {
		return nil
	}
	items, ok := children.Get("items")
	if !ok {
		// A children map without items yet; create the list lazily so
		// AddChildren can fill it.
		items = NewList()
		children.Set("items", items)
	}
	return items
}

// AddChildren appends ids to the children list, de-duplicating and sorting
// on write. Objects without a children field (e.g. Sounds pointing at an
// effect as their parent) are left alone: they play without explicit
// children.
func (o *Object) AddChildren(ids ...uint32) {
	body := o.Body()
	if body == nil {
		return
	}
	if _, ok := body.Get("children"); !ok {
		return
	}
	items := o.childItems()
	merged := o.Children()
	merged = append(merged, ids...)
	sort.Slice(merged, func(i, j int) bool { return merged[i] < merged[j] })
	out := make([]*Node, 0, len(merged))
	var last uint32
	for i, id := range merged {
		if i > 0 && id == last {
			continue
		}
		out = append(out, NewUint(id))
		last = id
	}
	items.SetItems(out)
}

// ResetChildren replaces the children list with exactly ids. Used when an
// ancestor is staged for transfer: its pre-existing children will not exist
// in the destination, so only the child actually being moved survives.
func (o *Object) ResetChildren(ids ...uint32) {
	body := o.Body()
	if body == nil {
		return
	}
	if _, ok := body.Get("children"); !ok {
		return
	}
	items := o.childItems()
	items.SetItems(nil)
	o.AddChildren(ids...)
}

// Actions returns the action ids listed on an Event.
func (o *Object) Actions() ([]uint32, error) {
	body := o.Body()
	if body == nil {
		return nil, &errors.ParseError{Format: "hierarchy object", Message: "object has no body"}
	}
	actions, ok := body.Get("actions")
	if !ok {
		return nil, &errors.ParseError{Format: "hierarchy object", Message: "event has no actions list"}
	}
	out := make([]uint32, 0, len(actions.Items()))
	for _, item := range actions.Items() {
		v, ok := item.Uint()
		if !ok {
			return nil, &errors.ParseError{Format: "hierarchy object", Message: "action id is not a 32-bit integer"}
		}
		out = append(out, v)
	}
	return out, nil
}

// ExternalID returns an Action's target id.
func (o *Object) ExternalID() (uint32, bool) {
	body := o.Body()
	if body == nil {
		return 0, false
	}
	n, ok := body.Get("external_id")
	if !ok {
		return 0, false
	}
	return n.Uint()
}

// MediaSourceID returns the wem id carried by a Sound. This is a media
// reference, not a HIRC reference.
func (o *Object) MediaSourceID() (uint32, bool) {
	body := o.Body()
	if body == nil {
		return 0, false
	}
	n, ok := body.Lookup("bank_source_data", "media_information", "source_id")
	if !ok {
		return 0, false
	}
	return n.Uint()
}

// RewriteBankIDs rewrites every bank_id under params equal to src to dst and
// returns how many were rewritten plus any bank ids that matched neither
// bank (foreign references that may not resolve at runtime). Dumps carry
// params either as a list of entries or as a map keyed by parameter name;
// both shapes are scanned.
func (o *Object) RewriteBankIDs(src, dst uint32) (rewritten int, foreign []uint32) {
	body := o.Body()
	if body == nil {
		return 0, nil
	}
	params, ok := body.Get("params")
	if !ok {
		return 0, nil
	}

	var entries []*Node
	switch params.Kind() {
	case KindList:
		entries = params.Items()
	case KindMap:
		for _, key := range params.Keys() {
			entry, _ := params.Get(key)
			entries = append(entries, entry)
		}
	default:
		return 0, nil
	}

	for _, item := range entries {
		if item.Kind() != KindMap {
			continue
		}
		bid, ok := item.Get("bank_id")
		if !ok {
			continue
		}
		v, ok := bid.Uint()
		if !ok {
			continue
		}
		switch v {
		case src:
			item.Set("bank_id", NewUint(dst))
			rewritten++
		case dst:
			// Already points at the destination, nothing to do.
		default:
			foreign = append(foreign, v)
		}
	}
	return rewritten, foreign
}

// DeepCopy returns an independent copy of the object.
func (o *Object) DeepCopy() *Object {
	return &Object{node: o.node.DeepCopy()}
}
