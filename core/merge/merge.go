// Package merge moves complete sound hierarchies between two parsed banks.
//
// For every link it resolves the source Play/Stop events, collects the
// playback subgraph and its mixer ancestry, picks an insertion point in the
// destination, and splices everything in while keeping the destination's
// object array and id index consistent under renaming. Collisions, suspected
// corruption, and the final write are delegated to a decision.Provider.
//
// All mutation is in memory. A cancel decision aborts the run with
// ErrCancelled and the caller must discard the destination document.
package merge

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/caldw/bankforge/core/bank"
	"github.com/caldw/bankforge/core/decision"
	"github.com/caldw/bankforge/core/errors"
	"github.com/caldw/bankforge/core/fnv"
	"github.com/caldw/bankforge/core/hierarchy"
	"github.com/caldw/bankforge/core/refscan"
	"github.com/caldw/bankforge/internal/logging"
)

// Link maps one source sound id onto the id it should carry in the
// destination bank.
type Link struct {
	Source fnv.WwiseID
	Dest   fnv.WwiseID
}

// LinkReport describes what one link moved.
type LinkReport struct {
	Link          Link
	Trees         []string // rendered subgraph per play-action target
	Ancestors     []uint32 // mixer chain of the last target, nearest first
	Extras        []bank.ObjectID
	Media         []uint32
	PlayEventHash uint32 // hash of the renamed Play event
	StopEventHash uint32
}

// Report summarizes a completed run.
type Report struct {
	RunID string
	Links []*LinkReport
	// Media lists wem ids to copy to the destination, in first-seen
	// order, de-duplicated.
	Media []uint32
	// Transferred holds the final destination positions of every object
	// this run inserted or replaced. The integrity verifier scans
	// exactly these.
	Transferred map[int]bool
	Skipped     []bank.ObjectID
	Replaced    []bank.ObjectID
	Warnings    []string
}

// Engine merges hierarchies from Src into Dst. Links are processed strictly
// in order; objects added by one link are visible to the next.
type Engine struct {
	Src      *bank.SoundBank
	Dst      *bank.SoundBank
	Provider decision.Provider

	walker  *hierarchy.Walker
	scanner *refscan.Scanner
	report  *Report

	// transferred is the live list of destination positions this run has
	// written; entries at or past an insertion cursor shift with it.
	transferred []int
	seenMedia   map[uint32]bool
}

// New returns an engine over the two banks.
func New(src, dst *bank.SoundBank, provider decision.Provider) *Engine {
	return &Engine{
		Src:      src,
		Dst:      dst,
		Provider: provider,
		walker:   &hierarchy.Walker{Bank: src},
		scanner:  &refscan.Scanner{Bank: src},
	}
}

// Run processes links in order and returns the run report. On any error the
// destination document may hold partial in-memory mutation and must be
// discarded by the caller.
func (e *Engine) Run(links []Link) (*Report, error) {
	e.report = &Report{
		RunID:       uuid.NewString(),
		Transferred: map[int]bool{},
	}
	e.transferred = nil
	e.seenMedia = map[uint32]bool{}

	for _, link := range links {
		if err := e.runLink(link); err != nil {
			return nil, err
		}
	}

	for _, pos := range e.transferred {
		e.report.Transferred[pos] = true
	}
	return e.report, nil
}

func (e *Engine) runLink(link Link) error {
	logging.Info("processing link", "source", link.Source.String(), "dest", link.Dest.String())

	lr := &LinkReport{
		Link:          link,
		PlayEventHash: fnv.Hash(link.Dest.PlayEvent()),
		StopEventHash: fnv.Hash(link.Dest.StopEvent()),
	}

	playPos, ok := e.Src.LookupName(link.Source.PlayEvent())
	if !ok {
		return &errors.LookupError{Bank: "source", Name: link.Source.PlayEvent()}
	}
	stopPos, ok := e.Src.LookupName(link.Source.StopEvent())
	if !ok {
		return &errors.LookupError{Bank: "source", Name: link.Source.StopEvent()}
	}

	// Event transfer set: each event's actions, then the event itself.
	// Stop's group goes first so the Play event lands last.
	eventSet, err := e.eventGroup(stopPos)
	if err != nil {
		return err
	}
	playGroup, err := e.eventGroup(playPos)
	if err != nil {
		return err
	}
	eventSet = append(eventSet, playGroup...)
	inEventSet := map[int]bool{}
	for _, pos := range eventSet {
		inEventSet[pos] = true
	}

	// Walk every play action's target. staged collects the source
	// positions of everything moved for this link so the reference
	// scanner can look for leftovers.
	staged := map[int]bool{}
	objCursor := -1

	playActions, err := e.Src.At(playPos).Actions()
	if err != nil {
		return fmt.Errorf("reading play actions: %w", err)
	}
	for _, actionID := range playActions {
		actionPos, ok := e.Src.LookupHash(actionID)
		if !ok {
			return &errors.LookupError{Bank: "source", Name: fmt.Sprintf("action %d", actionID)}
		}
		cursor, err := e.transferTarget(e.Src.At(actionPos), inEventSet, staged, lr)
		if err != nil {
			return err
		}
		if cursor >= 0 {
			objCursor = cursor
		}
	}

	// Events are renamed on their deep copy and spliced in after the
	// destination's event region.
	evStart, evCount, err := e.transferEvents(eventSet, playPos, stopPos, link)
	if err != nil {
		return err
	}
	if objCursor >= 0 && evStart <= objCursor {
		objCursor += evCount
	}

	// Implicit shared dependencies the walker cannot see.
	if err := e.transferExtras(staged, objCursor, lr); err != nil {
		return err
	}

	e.report.Links = append(e.report.Links, lr)
	return nil
}

// eventGroup returns the transfer positions for one event: its listed
// actions followed by the event itself.
func (e *Engine) eventGroup(eventPos int) ([]int, error) {
	actions, err := e.Src.At(eventPos).Actions()
	if err != nil {
		return nil, fmt.Errorf("reading event actions: %w", err)
	}
	group := make([]int, 0, len(actions)+1)
	for _, actionID := range actions {
		pos, ok := e.Src.LookupHash(actionID)
		if !ok {
			return nil, &errors.LookupError{Bank: "source", Name: fmt.Sprintf("action %d", actionID)}
		}
		group = append(group, pos)
	}
	return append(group, eventPos), nil
}

// transferTarget moves the playback subgraph behind one play action plus the
// mixer ancestors it needs, returning the object cursor after the last
// insertion (or -1 if nothing was walked).
func (e *Engine) transferTarget(action *bank.Object, inEventSet, staged map[int]bool, lr *LinkReport) (int, error) {
	actionID, _ := action.ID()
	targetID, ok := action.ExternalID()
	if !ok {
		return -1, &errors.StructuralError{ObjectID: actionID.String(), Message: "play action has no external_id target"}
	}
	targetPos, ok := e.Src.LookupHash(targetID)
	if !ok {
		return -1, &errors.LookupError{Bank: "source", Name: fmt.Sprintf("action target %d", targetID)}
	}

	if e.Src.At(targetPos).Kind() == bank.KindEvent {
		// An action triggering another event is only supported when
		// that event is part of this link's own transfer set.
		if !inEventSet[targetPos] {
			return -1, &errors.StructuralError{
				ObjectID: fmt.Sprintf("%d", targetID),
				Message:  "action references an event outside the staged transfer set",
			}
		}
		return -1, nil
	}
	if staged[targetPos] {
		return -1, nil
	}

	sub, err := e.walker.CollectSubgraph(targetPos)
	if err != nil {
		return -1, err
	}
	lr.Trees = append(lr.Trees, hierarchy.RenderTree(sub.Tree))
	for _, wem := range sub.Media {
		if !e.seenMedia[wem] {
			e.seenMedia[wem] = true
			e.report.Media = append(e.report.Media, wem)
		}
		lr.Media = append(lr.Media, wem)
	}

	chain, err := e.walker.CollectAncestors(targetPos, e.Provider)
	if err != nil {
		return -1, err
	}
	lr.Ancestors = chain

	// Walk the chain nearest-first. The first ancestor already in the
	// destination is the attach point; everything before it moves too,
	// with its children cut down to the one child actually arriving.
	cursor := -1
	var stagedChain []uint32
	childID := targetID
	for _, ancID := range chain {
		if pos, ok := e.Dst.LookupHash(ancID); ok {
			e.Dst.At(pos).AddChildren(childID)
			cursor = pos + 1
			break
		}
		stagedChain = append(stagedChain, ancID)
		childID = ancID
	}
	if cursor < 0 {
		cursor = e.fallbackCursor()
	}

	// Candidates: ancestors furthest-first, then the subgraph in
	// parent-before-child order.
	var candidates []*bank.Object
	childID = targetID
	copies := make([]*bank.Object, len(stagedChain))
	for i, ancID := range stagedChain {
		pos, ok := e.Src.LookupHash(ancID)
		if !ok {
			return -1, &errors.LookupError{Bank: "source", Name: fmt.Sprintf("ancestor %d", ancID)}
		}
		staged[pos] = true
		cp := e.Src.At(pos).DeepCopy()
		cp.ResetChildren(childID)
		copies[i] = cp
		childID = ancID
	}
	for i := len(copies) - 1; i >= 0; i-- {
		candidates = append(candidates, copies[i])
	}
	for _, pos := range sub.Positions {
		staged[pos] = true
		candidates = append(candidates, e.Src.At(pos).DeepCopy())
	}

	return e.insertAll(candidates, cursor, "object")
}

// fallbackCursor picks the insertion point when no ancestor resolves in the
// destination: right after the first RandomSequenceContainer, the bank's
// conventional playback root.
func (e *Engine) fallbackCursor() int {
	for pos := 0; pos < e.Dst.Len(); pos++ {
		if e.Dst.At(pos).Kind() == bank.KindRandomSequenceContainer {
			return pos + 1
		}
	}
	return e.Dst.Len()
}

// transferEvents deep-copies the event group, renames the Play/Stop events
// for the destination id, repoints action bank ids, and splices the group in
// after the destination's existing events. Returns where insertion started
// and how many objects went in.
func (e *Engine) transferEvents(eventSet []int, playPos, stopPos int, link Link) (int, int, error) {
	cursor := e.eventCursor()

	candidates := make([]*bank.Object, 0, len(eventSet))
	for _, pos := range eventSet {
		cp := e.Src.At(pos).DeepCopy()
		switch pos {
		case playPos:
			e.renameEvent(cp, link.Dest.PlayEvent())
		case stopPos:
			e.renameEvent(cp, link.Dest.StopEvent())
		}
		if cp.Kind() == bank.KindAction {
			rewritten, foreign := cp.RewriteBankIDs(e.Src.BankID, e.Dst.BankID)
			if rewritten > 0 {
				logging.Debug("repointed action bank id", "count", rewritten)
			}
			for _, f := range foreign {
				id, _ := cp.ID()
				e.warnf("action %s references foreign bank %d; it may not resolve at runtime", id, f)
			}
		}
		candidates = append(candidates, cp)
	}

	end, err := e.insertAll(candidates, cursor, "event")
	if err != nil {
		return 0, 0, err
	}
	return cursor, end - cursor, nil
}

// renameEvent rewrites an event's id to name, preserving the id form: a
// string id stays a string, a numeric id becomes the hash of the new name.
func (e *Engine) renameEvent(evt *bank.Object, name string) {
	id, err := evt.ID()
	if err != nil || id.Form == bank.FormHash {
		evt.SetID(bank.HashID(fnv.Hash(name)))
		return
	}
	evt.SetID(bank.StringID(name))
}

// eventCursor finds the event insertion point: right after the first
// destination object with a string id in the Play_ namespace. Banks without
// one get events appended at the end.
func (e *Engine) eventCursor() int {
	for pos := 0; pos < e.Dst.Len(); pos++ {
		id, err := e.Dst.At(pos).ID()
		if err != nil {
			continue
		}
		if id.Form == bank.FormString && len(id.Name) >= 5 && id.Name[:5] == "Play_" {
			return pos + 1
		}
	}
	return e.Dst.Len()
}

// transferExtras moves implicit dependencies discovered by the reference
// scanner, reporting them for operator visibility.
func (e *Engine) transferExtras(staged map[int]bool, cursor int, lr *LinkReport) error {
	extras := e.scanner.Extras(staged)
	if len(extras) == 0 {
		return nil
	}
	if cursor < 0 {
		cursor = e.fallbackCursor()
	}

	candidates := make([]*bank.Object, 0, len(extras))
	for _, pos := range extras {
		obj := e.Src.At(pos)
		id, err := obj.ID()
		if err != nil {
			return fmt.Errorf("reading extra object id: %w", err)
		}
		lr.Extras = append(lr.Extras, id)
		logging.Info("transferring implicit dependency", "id", id.String(), "kind", obj.Kind())
		candidates = append(candidates, obj.DeepCopy())
	}
	_, err := e.insertAll(candidates, cursor, "extra")
	return err
}

// insertAll runs the shared insertion protocol over candidates starting at
// cursor and returns the final cursor.
//
// An id collision asks the provider: skip keeps the destination object and
// leaves the cursor alone, replace overwrites in place, cancel aborts the
// run. Fresh candidates are inserted at the cursor; every recorded
// destination position at or past the cursor shifts up by one and the
// cursor advances. The reserved header slot 0 is never written.
func (e *Engine) insertAll(candidates []*bank.Object, cursor int, stage string) (int, error) {
	if cursor <= bank.ReservedSlot {
		cursor = bank.ReservedSlot + 1
	}
	for _, cand := range candidates {
		id, err := cand.ID()
		if err != nil {
			return cursor, fmt.Errorf("reading candidate id: %w", err)
		}

		if existing, ok := e.Dst.LookupID(id); ok {
			choice, err := e.Provider.ResolveCollision(id, cand.Kind())
			if err != nil {
				return cursor, fmt.Errorf("resolving collision for %s: %w", id, err)
			}
			switch choice {
			case decision.Skip:
				logging.Info("skipping existing object", "id", id.String(), "stage", stage)
				e.report.Skipped = append(e.report.Skipped, id)
				continue
			case decision.Cancel:
				return cursor, &errors.CancelledError{Stage: stage + " collision"}
			case decision.Replace:
				if err := e.Dst.Replace(existing, cand); err != nil {
					return cursor, err
				}
				e.report.Replaced = append(e.report.Replaced, id)
				e.markTransferred(existing)
				continue
			default:
				return cursor, fmt.Errorf("unknown collision choice %v: %w", choice, errors.ErrInternal)
			}
		}

		if err := e.Dst.Insert(cursor, cand); err != nil {
			return cursor, err
		}
		e.shiftTransferred(cursor)
		e.markTransferred(cursor)
		cursor++
	}
	return cursor, nil
}

func (e *Engine) shiftTransferred(cursor int) {
	for i, pos := range e.transferred {
		if pos >= cursor {
			e.transferred[i] = pos + 1
		}
	}
}

func (e *Engine) markTransferred(pos int) {
	for _, p := range e.transferred {
		if p == pos {
			return
		}
	}
	e.transferred = append(e.transferred, pos)
}

func (e *Engine) warnf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	logging.Warn(msg)
	e.report.Warnings = append(e.report.Warnings, msg)
}
