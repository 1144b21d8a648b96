// Package decision defines the contract the merge engine uses to ask the
// operator about collisions, suspected corruption, and final persistence.
//
// The engine treats a provider as an ordinary synchronous call; interactive
// front ends sit behind this interface. The deterministic SkipAll provider
// mirrors the "no questions" mode for headless runs.
package decision

import "github.com/caldw/bankforge/core/bank"

// Choice is the operator's answer to an id collision.
type Choice int

const (
	// Skip leaves the existing destination object and drops the candidate.
	Skip Choice = iota
	// Cancel aborts the entire run; nothing is persisted.
	Cancel
	// Replace overwrites the existing destination object in place.
	Replace
)

func (c Choice) String() string {
	switch c {
	case Skip:
		return "skip"
	case Cancel:
		return "cancel"
	case Replace:
		return "replace"
	default:
		return "unknown"
	}
}

// Provider supplies operator decisions to the merge engine.
type Provider interface {
	// ResolveCollision is called when a candidate's id already exists in
	// the destination. kind is the candidate's object kind.
	ResolveCollision(existing bank.ObjectID, kind string) (Choice, error)

	// ConfirmCycle is called when the ancestor chain loops back on
	// itself. chain holds the ids walked so far, nearest ancestor first.
	// Returning true continues the run with the chain truncated at the
	// loop; false aborts.
	ConfirmCycle(chain []uint32) (bool, error)

	// ConfirmWrite is called once before the destination is persisted.
	ConfirmWrite() (bool, error)
}

// SkipAll is the headless provider: it skips every collision, continues
// through cycle warnings, and confirms the final write.
type SkipAll struct{}

// ResolveCollision always answers Skip.
func (SkipAll) ResolveCollision(bank.ObjectID, string) (Choice, error) { return Skip, nil }

// ConfirmCycle always continues.
func (SkipAll) ConfirmCycle([]uint32) (bool, error) { return true, nil }

// ConfirmWrite always confirms.
func (SkipAll) ConfirmWrite() (bool, error) { return true, nil }
