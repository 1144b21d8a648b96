// Package hierarchy walks a bank's object graph: downward through children
// lists to collect a playable subgraph, and upward through direct_parent_id
// to recover the mixer chain a container hangs from.
package hierarchy

import (
	"fmt"

	"github.com/caldw/bankforge/core/bank"
	"github.com/caldw/bankforge/core/decision"
	"github.com/caldw/bankforge/core/errors"
)

// TreeNode is one node of the printable hierarchy built during descendant
// collection. It exists purely for operator display.
type TreeNode struct {
	Label    string
	Children []*TreeNode
}

// Subgraph is the result of a descendant collection.
type Subgraph struct {
	// Positions lists the source positions of every collected object.
	// Each parent appears before all of its recorded children, so
	// inserting the sequence in order keeps the destination's
	// parent-before-child invariant.
	Positions []int
	// Media lists the wem ids carried by collected Sound objects, in
	// collection order.
	Media []uint32
	// Tree is the printable shape of the subgraph.
	Tree *TreeNode
}

// Walker traverses one bank.
type Walker struct {
	Bank *bank.SoundBank
}

// CollectSubgraph runs a pre-order depth-first traversal from the object at
// rootPos, following children lists. Nodes are recorded at first visit,
// before their children. Already-visited nodes are silently skipped, which
// guards against shared subtrees reached through more than one parent.
func (w *Walker) CollectSubgraph(rootPos int) (*Subgraph, error) {
	sub := &Subgraph{}
	visited := map[int]bool{}
	tree, err := w.collect(rootPos, visited, sub)
	if err != nil {
		return nil, err
	}
	sub.Tree = tree
	return sub, nil
}

func (w *Walker) collect(pos int, visited map[int]bool, sub *Subgraph) (*TreeNode, error) {
	if visited[pos] {
		return nil, nil
	}
	visited[pos] = true
	sub.Positions = append(sub.Positions, pos)

	obj := w.Bank.At(pos)
	id, err := obj.ID()
	if err != nil {
		return nil, fmt.Errorf("collecting subgraph: %w", err)
	}

	node := &TreeNode{Label: fmt.Sprintf("%s (%s)", obj.Kind(), id)}
	if wem, ok := obj.MediaSourceID(); ok {
		sub.Media = append(sub.Media, wem)
		node.Label = fmt.Sprintf("%s (%s) -> %d.wem", obj.Kind(), id, wem)
	}

	for _, childID := range obj.Children() {
		childPos, ok := w.Bank.LookupHash(childID)
		if !ok {
			return nil, &errors.LookupError{Bank: "source", Name: fmt.Sprintf("child %d of %s", childID, id)}
		}
		child, err := w.collect(childPos, visited, sub)
		if err != nil {
			return nil, err
		}
		if child != nil {
			node.Children = append(node.Children, child)
		}
	}
	return node, nil
}

// CollectAncestors follows direct_parent_id upward from the object at
// entryPos, returning the chain of ancestor ids nearest-first. The walk
// stops when the parent id is 0 or absent from this bank's index.
//
// If an id repeats inside the chain the bank is corrupt; the decision
// provider chooses between continuing with the chain truncated at the loop
// and aborting the run.
func (w *Walker) CollectAncestors(entryPos int, dp decision.Provider) ([]uint32, error) {
	var chain []uint32
	seen := map[uint32]bool{}

	parentID := w.Bank.At(entryPos).ParentID()
	for parentID != 0 {
		if seen[parentID] {
			cont, err := dp.ConfirmCycle(chain)
			if err != nil {
				return nil, fmt.Errorf("resolving ancestor cycle: %w", err)
			}
			if !cont {
				return nil, &errors.CancelledError{Stage: "ancestor cycle"}
			}
			break
		}
		pos, ok := w.Bank.LookupHash(parentID)
		if !ok {
			break
		}
		chain = append(chain, parentID)
		seen[parentID] = true
		parentID = w.Bank.At(pos).ParentID()
	}
	return chain, nil
}

// RenderTree pretty-prints a collected tree with box-drawing branches, one
// line per node.
func RenderTree(root *TreeNode) string {
	if root == nil {
		return ""
	}
	out := root.Label + "\n"
	out += renderChildren(root.Children, "")
	return out
}

func renderChildren(nodes []*TreeNode, prefix string) string {
	var out string
	for i, n := range nodes {
		branch, nested := "├── ", "│   "
		if i == len(nodes)-1 {
			branch, nested = "└── ", "    "
		}
		out += prefix + branch + n.Label + "\n"
		out += renderChildren(n.Children, prefix+nested)
	}
	return out
}
