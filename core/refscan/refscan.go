// Package refscan discovers implicit cross-references inside staged objects.
//
// The hierarchy walker only follows the structural fields (children,
// direct_parent_id). Object bodies can additionally point at shared
// dependencies (state groups, effects) through kind-specific parameters the
// engine has no schema for. The scanner finds them generically: any integer
// anywhere in a staged body that resolves in the source index but is not
// itself staged is a dependency that must move too.
package refscan

import (
	"github.com/caldw/bankforge/core/bank"
)

// Fields whose values are handled by the walker or are not HIRC references
// at all. Their subtrees are not scanned.
var excludedFields = map[string]bool{
	"source_id":        true,
	"direct_parent_id": true,
	"children":         true,
}

// Scanner scans staged object bodies against one source bank.
type Scanner struct {
	Bank *bank.SoundBank
}

// Extras returns the source positions of objects referenced from the staged
// set but not part of it, in discovery order. Newly discovered objects are
// scanned too, transitively, until no new references appear.
func (s *Scanner) Extras(staged map[int]bool) []int {
	known := make(map[int]bool, len(staged))
	for pos := range staged {
		known[pos] = true
	}

	queue := make([]int, 0, len(staged))
	for pos := 0; pos < s.Bank.Len(); pos++ {
		if staged[pos] {
			queue = append(queue, pos)
		}
	}

	var extras []int
	for len(queue) > 0 {
		pos := queue[0]
		queue = queue[1:]

		body := s.Bank.At(pos).Body()
		if body == nil {
			continue
		}
		s.scan(body, known, &extras, &queue)
	}
	return extras
}

func (s *Scanner) scan(n *bank.Node, known map[int]bool, extras *[]int, queue *[]int) {
	switch n.Kind() {
	case bank.KindInt:
		v, ok := n.Uint()
		if !ok {
			return
		}
		pos, ok := s.Bank.LookupHash(v)
		if !ok || known[pos] {
			return
		}
		known[pos] = true
		*extras = append(*extras, pos)
		*queue = append(*queue, pos)
	case bank.KindList:
		for _, item := range n.Items() {
			s.scan(item, known, extras, queue)
		}
	case bank.KindMap:
		for _, key := range n.Keys() {
			if excludedFields[key] {
				continue
			}
			child, _ := n.Get(key)
			s.scan(child, known, extras, queue)
		}
	}
}
