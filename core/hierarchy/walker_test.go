package hierarchy

import (
	"strings"
	"testing"

	"github.com/caldw/bankforge/core/bank"
	"github.com/caldw/bankforge/core/decision"
	"github.com/caldw/bankforge/core/errors"
)

func container(id, parent uint32, children ...uint32) *bank.Object {
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
	return bank.NewObject(bank.HashID(id), bank.KindActorMixer, params)
}

func sound(id, parent, wem uint32) *bank.Object {
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

func testBank(t *testing.T, objs ...*bank.Object) *bank.SoundBank {
	t.Helper()
	all := append([]*bank.Object{bank.NewObject(bank.HashID(0), "StateGroup", bank.NewMap())}, objs...)
	b, diags := bank.NewSoundBank(1, all)
	if len(diags) != 0 {
		t.Fatalf("fixture bank has diagnostics: %v", diags)
	}
	return b
}

// decider records cycle prompts and answers with a fixed choice.
type decider struct {
	cycleContinue bool
	cycleCalls    int
	lastChain     []uint32
}

func (d *decider) ResolveCollision(bank.ObjectID, string) (decision.Choice, error) {
	return decision.Skip, nil
}

func (d *decider) ConfirmCycle(chain []uint32) (bool, error) {
	d.cycleCalls++
	d.lastChain = chain
	return d.cycleContinue, nil
}

func (d *decider) ConfirmWrite() (bool, error) { return true, nil }

func TestCollectSubgraphParentBeforeChild(t *testing.T) {
	// 100 -> {200 -> {301}, 302}
	b := testBank(t,
		container(100, 0, 200, 302),
		container(200, 100, 301),
		sound(301, 200, 77),
		sound(302, 100, 88),
	)
	w := &Walker{Bank: b}

	rootPos, _ := b.LookupHash(100)
	sub, err := w.CollectSubgraph(rootPos)
	if err != nil {
		t.Fatalf("CollectSubgraph failed: %v", err)
	}

	if len(sub.Positions) != 4 {
		t.Fatalf("collected %d positions, want 4", len(sub.Positions))
	}
	// Every object's parent (when collected) must come earlier in the
	// sequence.
	order := map[uint32]int{}
	for seq, pos := range sub.Positions {
		id, _ := b.At(pos).ID()
		order[id.Numeric()] = seq
	}
	for _, pos := range sub.Positions {
		obj := b.At(pos)
		parent := obj.ParentID()
		if parentSeq, ok := order[parent]; ok {
			id, _ := obj.ID()
			if parentSeq >= order[id.Numeric()] {
				t.Errorf("parent %d recorded at %d, after child %s at %d",
					parent, parentSeq, id, order[id.Numeric()])
			}
		}
	}
}

func TestCollectSubgraphMedia(t *testing.T) {
	b := testBank(t,
		container(100, 0, 301, 302),
		sound(301, 100, 77),
		sound(302, 100, 88),
	)
	w := &Walker{Bank: b}
	rootPos, _ := b.LookupHash(100)
	sub, err := w.CollectSubgraph(rootPos)
	if err != nil {
		t.Fatal(err)
	}
	if len(sub.Media) != 2 || sub.Media[0] != 77 || sub.Media[1] != 88 {
		t.Errorf("media = %v, want [77 88]", sub.Media)
	}
}

func TestCollectSubgraphSharedSubtreeVisitedOnce(t *testing.T) {
	// Both 200 and 201 list 301 as a child.
	b := testBank(t,
		container(100, 0, 200, 201),
		container(200, 100, 301),
		container(201, 100, 301),
		sound(301, 200, 77),
	)
	w := &Walker{Bank: b}
	rootPos, _ := b.LookupHash(100)
	sub, err := w.CollectSubgraph(rootPos)
	if err != nil {
		t.Fatal(err)
	}
	if len(sub.Positions) != 4 {
		t.Errorf("shared subtree should be collected once: %d positions, want 4", len(sub.Positions))
	}
	if len(sub.Media) != 1 {
		t.Errorf("media recorded %d times, want 1", len(sub.Media))
	}
}

func TestCollectSubgraphMissingChildIsLookupError(t *testing.T) {
	b := testBank(t, container(100, 0, 999))
	w := &Walker{Bank: b}
	rootPos, _ := b.LookupHash(100)
	_, err := w.CollectSubgraph(rootPos)
	if err == nil {
		t.Fatal("missing child should fail")
	}
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("error should unwrap to ErrNotFound, got %v", err)
	}
}

func TestCollectAncestorsNearestFirst(t *testing.T) {
	b := testBank(t,
		container(100, 0),
		container(200, 100),
		sound(301, 200, 77),
	)
	w := &Walker{Bank: b}
	pos, _ := b.LookupHash(301)
	chain, err := w.CollectAncestors(pos, decision.SkipAll{})
	if err != nil {
		t.Fatal(err)
	}
	if len(chain) != 2 || chain[0] != 200 || chain[1] != 100 {
		t.Errorf("chain = %v, want [200 100] (nearest first)", chain)
	}
}

func TestCollectAncestorsStopsAtUnknownParent(t *testing.T) {
	// 200's parent 555 is not in the bank; the chain ends there.
	b := testBank(t,
		container(200, 555),
		sound(301, 200, 77),
	)
	w := &Walker{Bank: b}
	pos, _ := b.LookupHash(301)
	chain, err := w.CollectAncestors(pos, decision.SkipAll{})
	if err != nil {
		t.Fatal(err)
	}
	if len(chain) != 1 || chain[0] != 200 {
		t.Errorf("chain = %v, want [200]", chain)
	}
}

func TestCollectAncestorsCycleAsksProvider(t *testing.T) {
	// A -> B -> A
	b := testBank(t,
		container(100, 200),
		container(200, 100),
		sound(301, 100, 77),
	)
	w := &Walker{Bank: b}
	pos, _ := b.LookupHash(301)

	d := &decider{cycleContinue: true}
	chain, err := w.CollectAncestors(pos, d)
	if err != nil {
		t.Fatalf("continue should not error: %v", err)
	}
	if d.cycleCalls != 1 {
		t.Fatalf("provider asked %d times, want 1", d.cycleCalls)
	}
	if len(chain) != 2 {
		t.Errorf("chain = %v, want the two nodes before the loop repeats", chain)
	}

	d = &decider{cycleContinue: false}
	if _, err := w.CollectAncestors(pos, d); !errors.Is(err, errors.ErrCancelled) {
		t.Errorf("abort should return a cancellation, got %v", err)
	}
}

func TestRenderTree(t *testing.T) {
	root := &TreeNode{
		Label: "ActorMixer (100)",
		Children: []*TreeNode{
			{Label: "RandomSequenceContainer (200)", Children: []*TreeNode{
				{Label: "Sound (301) -> 77.wem"},
			}},
			{Label: "Sound (302) -> 88.wem"},
		},
	}
	got := RenderTree(root)
	for _, want := range []string{"├── RandomSequenceContainer (200)", "│   └── Sound (301) -> 77.wem", "└── Sound (302) -> 88.wem"} {
		if !strings.Contains(got, want) {
			t.Errorf("rendered tree missing %q:\n%s", want, got)
		}
	}
}
