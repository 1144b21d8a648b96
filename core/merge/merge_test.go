package merge

import (
	"encoding/json"
	"testing"

	"github.com/caldw/bankforge/core/bank"
	"github.com/caldw/bankforge/core/decision"
	"github.com/caldw/bankforge/core/errors"
	"github.com/caldw/bankforge/core/fnv"
)

const (
	srcBankID = 1111
	dstBankID = 2222
)

func mixerObj(kind string, id, parent uint32, children ...uint32) *bank.Object {
	params := bank.NewMap()
	nbp := bank.NewMap()
	nbp.Set("direct_parent_id", bank.NewUint(parent))
	params.Set("node_base_params", nbp)
	items := bank.NewList()
	for _, c := range children {
		items.Append(bank.NewUint(c))
	}
	ch := bank.NewMap()
	ch.Set("items", items)
	params.Set("children", ch)
	return bank.NewObject(bank.HashID(id), kind, params)
}

func soundObj(id, parent, wem uint32) *bank.Object {
	params := bank.NewMap()
	nbp := bank.NewMap()
	nbp.Set("direct_parent_id", bank.NewUint(parent))
	params.Set("node_base_params", nbp)
	media := bank.NewMap()
	media.Set("source_id", bank.NewUint(wem))
	bsd := bank.NewMap()
	bsd.Set("media_information", media)
	params.Set("bank_source_data", bsd)
	return bank.NewObject(bank.HashID(id), bank.KindSound, params)
}

func actionObj(id, target, bankID uint32) *bank.Object {
	params := bank.NewMap()
	params.Set("external_id", bank.NewUint(target))
	entry := bank.NewMap()
	entry.Set("bank_id", bank.NewUint(bankID))
	params.Set("params", bank.NewList(entry))
	return bank.NewObject(bank.HashID(id), bank.KindAction, params)
}

func eventObj(name string, actions ...uint32) *bank.Object {
	params := bank.NewMap()
	list := bank.NewList()
	for _, a := range actions {
		list.Append(bank.NewUint(a))
	}
	params.Set("actions", list)
	return bank.NewObject(bank.StringID(name), bank.KindEvent, params)
}

func headerObj() *bank.Object {
	return bank.NewObject(bank.HashID(0), "StateGroup", bank.NewMap())
}

// sourceBank builds the canonical fixture:
// Play/Stop_c100000001 -> actions -> RandomSequenceContainer 800 under
// ActorMixer 900, with Sound 700 (wem 77) inside the container.
func sourceBank(t *testing.T) *bank.SoundBank {
	t.Helper()
	objs := []*bank.Object{
		headerObj(),
		mixerObj(bank.KindActorMixer, 900, 0, 800),
		mixerObj(bank.KindRandomSequenceContainer, 800, 900, 700),
		soundObj(700, 800, 77),
		actionObj(601, 800, srcBankID),
		eventObj("Stop_c100000001", 601),
		actionObj(600, 800, srcBankID),
		eventObj("Play_c100000001", 600),
	}
	b, diags := bank.NewSoundBank(srcBankID, objs)
	if len(diags) != 0 {
		t.Fatalf("source fixture diagnostics: %v", diags)
	}
	return b
}

func destBank(t *testing.T, extra ...*bank.Object) *bank.SoundBank {
	t.Helper()
	objs := []*bank.Object{
		headerObj(),
		mixerObj(bank.KindRandomSequenceContainer, 5000, 0),
		actionObj(5600, 5000, dstBankID),
		eventObj("Play_c000000009", 5600),
	}
	objs = append(objs, extra...)
	b, diags := bank.NewSoundBank(dstBankID, objs)
	if len(diags) != 0 {
		t.Fatalf("destination fixture diagnostics: %v", diags)
	}
	return b
}

func link(t *testing.T, src, dst string) Link {
	t.Helper()
	s, err := fnv.ParseWwiseID(src)
	if err != nil {
		t.Fatal(err)
	}
	d, err := fnv.ParseWwiseID(dst)
	if err != nil {
		t.Fatal(err)
	}
	return Link{Source: s, Dest: d}
}

// scripted answers collisions per numeric id, defaulting to skip.
type scripted struct {
	choices map[uint32]decision.Choice
}

func (s *scripted) ResolveCollision(existing bank.ObjectID, kind string) (decision.Choice, error) {
	if c, ok := s.choices[existing.Numeric()]; ok {
		return c, nil
	}
	return decision.Skip, nil
}

func (s *scripted) ConfirmCycle([]uint32) (bool, error) { return true, nil }
func (s *scripted) ConfirmWrite() (bool, error)         { return true, nil }

func snapshot(t *testing.T, b *bank.SoundBank) []string {
	t.Helper()
	out := make([]string, 0, b.Len())
	for _, obj := range b.Objects {
		data, err := json.Marshal(obj.Node())
		if err != nil {
			t.Fatal(err)
		}
		out = append(out, string(data))
	}
	return out
}

func TestMergeEndToEnd(t *testing.T) {
	src := sourceBank(t)
	dst := destBank(t)
	eng := New(src, dst, decision.SkipAll{})

	report, err := eng.Run([]Link{link(t, "c100000001", "s200000002")})
	if err != nil {
		t.Fatalf("merge failed: %v", err)
	}

	// The mixer arrived with only the new subtree's root as child.
	posMixer, ok := dst.LookupHash(900)
	if !ok {
		t.Fatal("ActorMixer 900 not transferred")
	}
	children := dst.At(posMixer).Children()
	if len(children) != 1 || children[0] != 800 {
		t.Errorf("mixer children = %v, want [800]", children)
	}

	// Renamed events resolve under the destination id, in string form.
	if _, ok := dst.LookupName("Play_s200000002"); !ok {
		t.Error("renamed Play event missing from destination")
	}
	if _, ok := dst.LookupHash(fnv.Hash("Stop_s200000002")); !ok {
		t.Error("renamed Stop event missing from destination")
	}
	// The source is untouched by the rename.
	if _, ok := src.LookupName("Play_c100000001"); !ok {
		t.Error("source event renamed in place; transfer must copy")
	}

	// Media queued for copy.
	if len(report.Media) != 1 || report.Media[0] != 77 {
		t.Errorf("media = %v, want [77]", report.Media)
	}

	// Parent-before-child for every transferred pair.
	for pos := range report.Transferred {
		parent := dst.At(pos).ParentID()
		if parent == 0 {
			continue
		}
		parentPos, ok := dst.LookupHash(parent)
		if !ok || !report.Transferred[parentPos] {
			continue
		}
		if parentPos >= pos {
			t.Errorf("transferred parent %d at %d does not precede child at %d", parent, parentPos, pos)
		}
	}

	if report.RunID == "" {
		t.Error("report should carry a run id")
	}
	if len(report.Links) != 1 {
		t.Fatalf("links reported = %d, want 1", len(report.Links))
	}
	if got, want := report.Links[0].PlayEventHash, fnv.Hash("Play_s200000002"); got != want {
		t.Errorf("play event hash = %d, want %d", got, want)
	}
}

func TestMergeIdempotentUnderSkipAll(t *testing.T) {
	src := sourceBank(t)
	dst := destBank(t)
	eng := New(src, dst, decision.SkipAll{})
	links := []Link{link(t, "c100000001", "s200000002")}

	if _, err := eng.Run(links); err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	first := snapshot(t, dst)

	if _, err := New(src, dst, decision.SkipAll{}).Run(links); err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	second := snapshot(t, dst)

	if len(first) != len(second) {
		t.Fatalf("second run changed length: %d -> %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("object %d changed on the second run:\n first %s\nsecond %s", i, first[i], second[i])
		}
	}
}

func TestMergeCollisionReplace(t *testing.T) {
	src := sourceBank(t)
	// Destination already holds a Sound with id 700 but different media.
	dst := destBank(t, soundObj(700, 0, 9999))
	prov := &scripted{choices: map[uint32]decision.Choice{700: decision.Replace}}
	eng := New(src, dst, prov)

	lenBefore := dst.Len()
	report, err := eng.Run([]Link{link(t, "c100000001", "s200000002")})
	if err != nil {
		t.Fatalf("merge failed: %v", err)
	}

	// 700 was replaced in place: mixer + container + 2 actions + 2 events
	// inserted, the sound itself is not.
	if got, want := dst.Len(), lenBefore+6; got != want {
		t.Errorf("destination length = %d, want %d", got, want)
	}
	pos, _ := dst.LookupHash(700)
	wem, ok := dst.At(pos).MediaSourceID()
	if !ok || wem != 77 {
		t.Errorf("replaced object media = %d, want the staged source's 77", wem)
	}
	if len(report.Replaced) != 1 || report.Replaced[0].Numeric() != 700 {
		t.Errorf("replaced = %v, want [700]", report.Replaced)
	}
}

func TestMergeCollisionCancelAbortsRun(t *testing.T) {
	src := sourceBank(t)
	dst := destBank(t, soundObj(700, 0, 9999))
	prov := &scripted{choices: map[uint32]decision.Choice{700: decision.Cancel}}

	_, err := New(src, dst, prov).Run([]Link{link(t, "c100000001", "s200000002")})
	if !errors.Is(err, errors.ErrCancelled) {
		t.Errorf("cancel should abort the run with ErrCancelled, got %v", err)
	}
}

func TestMergeMissingEventIsFatal(t *testing.T) {
	src := sourceBank(t)
	dst := destBank(t)

	_, err := New(src, dst, decision.SkipAll{}).Run([]Link{link(t, "c999999999", "s200000002")})
	if err == nil {
		t.Fatal("missing Play/Stop events must be fatal")
	}
	var le *errors.LookupError
	if !errors.As(err, &le) {
		t.Errorf("want LookupError, got %v", err)
	}
}

func TestMergeForeignEventTargetIsFatal(t *testing.T) {
	// The play action targets another event that is not part of the
	// staged set.
	objs := []*bank.Object{
		headerObj(),
		eventObj("Some_other_event", 650),
		actionObj(650, 800, srcBankID),
		mixerObj(bank.KindRandomSequenceContainer, 800, 0),
		actionObj(601, 800, srcBankID),
		eventObj("Stop_c100000001", 601),
		actionObj(600, fnv.Hash("Some_other_event"), srcBankID),
		eventObj("Play_c100000001", 600),
	}
	src, diags := bank.NewSoundBank(srcBankID, objs)
	if len(diags) != 0 {
		t.Fatalf("fixture diagnostics: %v", diags)
	}
	dst := destBank(t)

	_, err := New(src, dst, decision.SkipAll{}).Run([]Link{link(t, "c100000001", "s200000002")})
	if err == nil {
		t.Fatal("foreign event reference must be fatal")
	}
	var se *errors.StructuralError
	if !errors.As(err, &se) {
		t.Errorf("want StructuralError, got %v", err)
	}
}

func TestMergeSelfReferencedStagedEventIsSupported(t *testing.T) {
	// The play event carries a second action that triggers the stop
	// event, which is part of the staged set. That shape is allowed.
	objs := []*bank.Object{
		headerObj(),
		mixerObj(bank.KindActorMixer, 900, 0, 800),
		mixerObj(bank.KindRandomSequenceContainer, 800, 900, 700),
		soundObj(700, 800, 77),
		actionObj(601, 800, srcBankID),
		eventObj("Stop_c100000001", 601),
		actionObj(600, 800, srcBankID),
		actionObj(602, fnv.Hash("Stop_c100000001"), srcBankID),
		eventObj("Play_c100000001", 600, 602),
	}
	src, diags := bank.NewSoundBank(srcBankID, objs)
	if len(diags) != 0 {
		t.Fatalf("fixture diagnostics: %v", diags)
	}
	dst := destBank(t)

	if _, err := New(src, dst, decision.SkipAll{}).Run([]Link{link(t, "c100000001", "s200000002")}); err != nil {
		t.Fatalf("staged event reference should be supported: %v", err)
	}
}

func TestMergeRewritesActionBankID(t *testing.T) {
	src := sourceBank(t)
	dst := destBank(t)

	if _, err := New(src, dst, decision.SkipAll{}).Run([]Link{link(t, "c100000001", "s200000002")}); err != nil {
		t.Fatal(err)
	}

	pos, ok := dst.LookupHash(600)
	if !ok {
		t.Fatal("play action not transferred")
	}
	body := dst.At(pos).Body()
	params, _ := body.Get("params")
	entry := params.Items()[0]
	bid, _ := entry.Get("bank_id")
	if v, _ := bid.Uint(); v != dstBankID {
		t.Errorf("action bank_id = %d, want rewritten to %d", v, dstBankID)
	}

	// Source action untouched.
	srcPos, _ := src.LookupHash(600)
	srcEntry := func() *bank.Node {
		body := src.At(srcPos).Body()
		params, _ := body.Get("params")
		return params.Items()[0]
	}()
	bid, _ = srcEntry.Get("bank_id")
	if v, _ := bid.Uint(); v != srcBankID {
		t.Errorf("source action bank_id mutated to %d", v)
	}
}

func TestMergeRewritesMapShapedActionBankID(t *testing.T) {
	// Some dumps carry Action params as a map keyed by parameter name
	// rather than a list of entries.
	mapAction := func(id, target, bankID uint32) *bank.Object {
		params := bank.NewMap()
		params.Set("external_id", bank.NewUint(target))
		delay := bank.NewMap()
		delay.Set("bank_id", bank.NewUint(bankID))
		inner := bank.NewMap()
		inner.Set("delay", delay)
		params.Set("params", inner)
		return bank.NewObject(bank.HashID(id), bank.KindAction, params)
	}
	objs := []*bank.Object{
		headerObj(),
		mixerObj(bank.KindActorMixer, 900, 0, 800),
		mixerObj(bank.KindRandomSequenceContainer, 800, 900, 700),
		soundObj(700, 800, 77),
		mapAction(601, 800, srcBankID),
		eventObj("Stop_c100000001", 601),
		mapAction(600, 800, srcBankID),
		eventObj("Play_c100000001", 600),
	}
	src, diags := bank.NewSoundBank(srcBankID, objs)
	if len(diags) != 0 {
		t.Fatalf("fixture diagnostics: %v", diags)
	}
	dst := destBank(t)

	report, err := New(src, dst, decision.SkipAll{}).Run([]Link{link(t, "c100000001", "s200000002")})
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Warnings) != 0 {
		t.Errorf("warnings = %v, want none", report.Warnings)
	}

	pos, ok := dst.LookupHash(600)
	if !ok {
		t.Fatal("play action not transferred")
	}
	body := dst.At(pos).Body()
	params, _ := body.Get("params")
	delay, _ := params.Get("delay")
	bid, _ := delay.Get("bank_id")
	if v, _ := bid.Uint(); v != dstBankID {
		t.Errorf("action bank_id = %d, want rewritten to %d", v, dstBankID)
	}
}

func TestMergeForeignBankIDWarns(t *testing.T) {
	objs := []*bank.Object{
		headerObj(),
		mixerObj(bank.KindRandomSequenceContainer, 800, 0, 700),
		soundObj(700, 800, 77),
		actionObj(601, 800, 3333), // neither source nor destination bank
		eventObj("Stop_c100000001", 601),
		actionObj(600, 800, 3333),
		eventObj("Play_c100000001", 600),
	}
	src, diags := bank.NewSoundBank(srcBankID, objs)
	if len(diags) != 0 {
		t.Fatalf("fixture diagnostics: %v", diags)
	}
	dst := destBank(t)

	report, err := New(src, dst, decision.SkipAll{}).Run([]Link{link(t, "c100000001", "s200000002")})
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Warnings) == 0 {
		t.Error("foreign bank references should produce warnings")
	}
}

func TestMergeAttachesToExistingAncestor(t *testing.T) {
	src := sourceBank(t)
	// Destination already has the ActorMixer with unrelated children.
	dst := destBank(t, mixerObj(bank.KindActorMixer, 900, 0, 4444))
	eng := New(src, dst, decision.SkipAll{})

	if _, err := eng.Run([]Link{link(t, "c100000001", "s200000002")}); err != nil {
		t.Fatal(err)
	}

	posMixer, _ := dst.LookupHash(900)
	children := dst.At(posMixer).Children()
	if len(children) != 2 || children[0] != 800 || children[1] != 4444 {
		t.Errorf("attach point children = %v, want [800 4444]", children)
	}

	// The subtree sits after its attach point.
	posContainer, ok := dst.LookupHash(800)
	if !ok {
		t.Fatal("container not transferred")
	}
	if posContainer <= posMixer {
		t.Errorf("container at %d should follow its destination parent at %d", posContainer, posMixer)
	}
}

func TestMergeTransfersImplicitExtras(t *testing.T) {
	// The container body references a state group through an opaque key.
	objs := []*bank.Object{
		headerObj(),
		bank.NewObject(bank.HashID(950), "StateGroup", bank.NewMap()),
		func() *bank.Object {
			o := mixerObj(bank.KindRandomSequenceContainer, 800, 0, 700)
			o.Body().Set("state_group_id", bank.NewUint(950))
			return o
		}(),
		soundObj(700, 800, 77),
		actionObj(601, 800, srcBankID),
		eventObj("Stop_c100000001", 601),
		actionObj(600, 800, srcBankID),
		eventObj("Play_c100000001", 600),
	}
	src, diags := bank.NewSoundBank(srcBankID, objs)
	if len(diags) != 0 {
		t.Fatalf("fixture diagnostics: %v", diags)
	}
	dst := destBank(t)

	report, err := New(src, dst, decision.SkipAll{}).Run([]Link{link(t, "c100000001", "s200000002")})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := dst.LookupHash(950); !ok {
		t.Error("implicitly referenced state group not transferred")
	}
	if len(report.Links[0].Extras) != 1 {
		t.Errorf("extras = %v, want the state group reported", report.Links[0].Extras)
	}
}

func TestMergeSequentialLinksShareState(t *testing.T) {
	// Two links moving hierarchies under the same mixer: the second link
	// must see the mixer the first link inserted and attach to it.
	objs := []*bank.Object{
		headerObj(),
		mixerObj(bank.KindActorMixer, 900, 0, 800, 810),
		mixerObj(bank.KindRandomSequenceContainer, 800, 900, 700),
		soundObj(700, 800, 77),
		mixerObj(bank.KindRandomSequenceContainer, 810, 900, 710),
		soundObj(710, 810, 88),
		actionObj(601, 800, srcBankID),
		eventObj("Stop_c100000001", 601),
		actionObj(600, 800, srcBankID),
		eventObj("Play_c100000001", 600),
		actionObj(611, 810, srcBankID),
		eventObj("Stop_c100000002", 611),
		actionObj(610, 810, srcBankID),
		eventObj("Play_c100000002", 610),
	}
	src, diags := bank.NewSoundBank(srcBankID, objs)
	if len(diags) != 0 {
		t.Fatalf("fixture diagnostics: %v", diags)
	}
	dst := destBank(t)

	links := []Link{
		link(t, "c100000001", "s200000002"),
		link(t, "c100000002", "s200000003"),
	}
	if _, err := New(src, dst, decision.SkipAll{}).Run(links); err != nil {
		t.Fatal(err)
	}

	posMixer, ok := dst.LookupHash(900)
	if !ok {
		t.Fatal("mixer not transferred")
	}
	children := dst.At(posMixer).Children()
	if len(children) != 2 || children[0] != 800 || children[1] != 810 {
		t.Errorf("mixer children = %v, want [800 810]", children)
	}
	if _, ok := dst.LookupHash(710); !ok {
		t.Error("second link's sound not transferred")
	}
}
