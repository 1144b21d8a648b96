// Package verify runs the post-merge consistency pass over a destination
// bank. It never mutates anything and never fails a run: every finding is an
// advisory diagnostic for the operator.
package verify

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/caldw/bankforge/core/bank"
	"github.com/caldw/bankforge/core/fnv"
)

// DefaultThreshold is the smallest integer treated as a possible object
// reference. The id space observed in real banks sits well above it; the
// cutoff is an empirical heuristic of this format, not a schema rule, so it
// stays configurable.
const DefaultThreshold uint32 = 1 << 20

// Verifier checks the final destination array position by position.
type Verifier struct {
	// Dst is the merged destination bank.
	Dst *bank.SoundBank
	// Src is consulted to tell "exists in source but was not
	// transferred" apart from "does not exist anywhere". Optional.
	Src *bank.SoundBank
	// Transferred holds the destination positions written by the run;
	// only these get the deep reference scan.
	Transferred map[int]bool
	// Threshold is the candidate-reference magnitude cutoff. Zero means
	// DefaultThreshold.
	Threshold uint32
}

// Verify walks the destination once and returns the diagnostics list.
func (v *Verifier) Verify() []string {
	threshold := v.Threshold
	if threshold == 0 {
		threshold = DefaultThreshold
	}

	var diags []string
	// The sentinel 0 (untracked root) is always considered discovered.
	discovered := map[uint32]bool{0: true}
	visited := map[int]bool{}

	for pos := 0; pos < v.Dst.Len(); pos++ {
		obj := v.Dst.At(pos)
		id, err := obj.ID()
		if err != nil {
			diags = append(diags, fmt.Sprintf("position %d: unreadable id: %v", pos, err))
			continue
		}
		num := id.Numeric()
		if discovered[num] {
			diags = append(diags, fmt.Sprintf("position %d: duplicate id %s", pos, id))
			continue
		}
		discovered[num] = true

		if !v.Transferred[pos] {
			continue
		}
		visited[pos] = true
		if body := obj.Body(); body != nil {
			v.scan(body, "", pos, id, discovered, threshold, &diags)
		}
	}

	if len(visited) < len(v.Transferred) {
		var missing []int
		for pos := range v.Transferred {
			if !visited[pos] {
				missing = append(missing, pos)
			}
		}
		sort.Ints(missing)
		parts := make([]string, len(missing))
		for i, pos := range missing {
			parts[i] = strconv.Itoa(pos)
		}
		diags = append(diags, fmt.Sprintf(
			"only %d of %d transferred objects visited; unvisited positions: %s",
			len(visited), len(v.Transferred), strings.Join(parts, ", ")))
	}
	return diags
}

func (v *Verifier) scan(n *bank.Node, path string, pos int, owner bank.ObjectID, discovered map[uint32]bool, threshold uint32, diags *[]string) {
	switch n.Kind() {
	case bank.KindInt:
		v.checkValue(n, path, pos, owner, discovered, threshold, diags)
	case bank.KindString:
		v.checkValue(n, path, pos, owner, discovered, threshold, diags)
	case bank.KindList:
		for i, item := range n.Items() {
			v.scan(item, fmt.Sprintf("%s[%d]", path, i), pos, owner, discovered, threshold, diags)
		}
	case bank.KindMap:
		for _, key := range n.Keys() {
			// Children ids point forward by construction (parents
			// precede their children); they are covered by the
			// walker, not the verifier.
			if key == "children" {
				continue
			}
			child, _ := n.Get(key)
			childPath := key
			if path != "" {
				childPath = path + "/" + key
			}
			v.scan(child, childPath, pos, owner, discovered, threshold, diags)
		}
	}
}

func (v *Verifier) checkValue(n *bank.Node, path string, pos int, owner bank.ObjectID, discovered map[uint32]bool, threshold uint32, diags *[]string) {
	switch {
	case strings.HasSuffix(path, "source_id"):
		// Media reference, not a HIRC object.
		return

	case strings.HasSuffix(path, "bank_id"):
		val, ok := n.Uint()
		if ok && val != v.Dst.BankID {
			*diags = append(*diags, fmt.Sprintf(
				"object %s (position %d): %s references bank %d, not this bank", owner, pos, path, val))
		}
		return

	case strings.HasSuffix(path, "id/Hash"):
		// A nested id declaration must not collide with an id that is
		// already defined above it.
		val, ok := n.Uint()
		if ok && discovered[val] {
			*diags = append(*diags, fmt.Sprintf(
				"object %s (position %d): %s duplicates already-defined id %d", owner, pos, path, val))
		}
		return

	case strings.HasSuffix(path, "id/String"):
		name, ok := n.Str()
		if !ok {
			return
		}
		if val := fnv.Hash(name); discovered[val] {
			*diags = append(*diags, fmt.Sprintf(
				"object %s (position %d): %s %q duplicates already-defined id %d", owner, pos, path, name, val))
		}
		return

	case strings.HasSuffix(path, "direct_parent_id"):
		val, ok := n.Uint()
		if ok && !discovered[val] {
			*diags = append(*diags, fmt.Sprintf(
				"object %s (position %d) is defined after its parent %d", owner, pos, val))
		}
		return
	}

	val, ok := n.Uint()
	if !ok || val < threshold || discovered[val] {
		return
	}
	v.reportUndiscovered(path, pos, owner, val, diags)
}

func (v *Verifier) reportUndiscovered(path string, pos int, owner bank.ObjectID, val uint32, diags *[]string) {
	if v.Src != nil {
		if _, inSrc := v.Src.LookupHash(val); inSrc {
			*diags = append(*diags, fmt.Sprintf(
				"object %s (position %d): %s references %d, which exists in the source but was not transferred",
				owner, pos, path, val))
			return
		}
	}
	if _, inDst := v.Dst.LookupHash(val); inDst {
		// Defined later in this bank; a forward reference outside the
		// parent/child structure is unusual but not itself a defect.
		*diags = append(*diags, fmt.Sprintf(
			"object %s (position %d): %s references %d before it is defined", owner, pos, path, val))
		return
	}
	*diags = append(*diags, fmt.Sprintf(
		"object %s (position %d): %s references %d, which is not defined anywhere (possibly a pre-existing external reference)",
		owner, pos, path, val))
}
