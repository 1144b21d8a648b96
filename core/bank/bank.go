package bank

import (
	"fmt"

	"github.com/caldw/bankforge/core/fnv"
)

// ReservedSlot is the HIRC position whose occupant carries header semantics.
// Nothing may ever be inserted at or before it.
const ReservedSlot = 0

// SoundBank is a bank's flat, order-sensitive hierarchy array plus the
// id-to-position index kept in lockstep with it. String-form ids are indexed
// twice: under the literal name and under its FNV-1a hash, because other
// objects refer to events only by hash.
type SoundBank struct {
	BankID  uint32
	Objects []*Object

	byHash map[uint32]int
	byName map[string]int
}

// NewSoundBank builds a bank over objects and indexes them. Objects whose id
// form is unrecognized stay in the array but are not indexed; each produces
// a diagnostic string.
func NewSoundBank(bankID uint32, objects []*Object) (*SoundBank, []string) {
	b := &SoundBank{
		BankID:  bankID,
		Objects: objects,
		byHash:  make(map[uint32]int, len(objects)),
		byName:  map[string]int{},
	}
	var diags []string
	for pos, obj := range objects {
		if err := b.indexObject(pos, obj); err != nil {
			diags = append(diags, fmt.Sprintf("object at position %d: %v", pos, err))
		}
	}
	return b, diags
}

func (b *SoundBank) indexObject(pos int, obj *Object) error {
	id, err := obj.ID()
	if err != nil {
		return err
	}
	if id.Form == FormString {
		b.byName[id.Name] = pos
		b.byHash[fnv.Hash(id.Name)] = pos
		return nil
	}
	b.byHash[id.Hash] = pos
	return nil
}

// Len returns the number of objects in the bank.
func (b *SoundBank) Len() int { return len(b.Objects) }

// At returns the object at pos.
func (b *SoundBank) At(pos int) *Object { return b.Objects[pos] }

// LookupHash returns the position of the object with numeric id h.
func (b *SoundBank) LookupHash(h uint32) (int, bool) {
	pos, ok := b.byHash[h]
	return pos, ok
}

// LookupName returns the position of an object by literal string id, falling
// back to the FNV-1a hash of the name.
func (b *SoundBank) LookupName(name string) (int, bool) {
	if pos, ok := b.byName[name]; ok {
		return pos, true
	}
	pos, ok := b.byHash[fnv.Hash(name)]
	return pos, ok
}

// LookupID returns the position of an object by tagged id, honoring id
// equivalence (a string id finds a numeric entry with the same hash and vice
// versa).
func (b *SoundBank) LookupID(id ObjectID) (int, bool) {
	if id.Form == FormString {
		return b.LookupName(id.Name)
	}
	return b.LookupHash(id.Hash)
}

// Contains reports whether an equivalent id is already present.
func (b *SoundBank) Contains(id ObjectID) bool {
	_, ok := b.LookupID(id)
	return ok
}

// Insert places obj at pos, shifting every indexed position >= pos up by
// one and indexing obj at pos. The reindex walk is O(n); arbitrary-position
// insertion into a flat array with a secondary index cannot avoid it without
// restructuring the whole document.
func (b *SoundBank) Insert(pos int, obj *Object) error {
	if pos <= ReservedSlot {
		return fmt.Errorf("cannot insert at reserved position %d", pos)
	}
	if pos > len(b.Objects) {
		return fmt.Errorf("insert position %d out of range (len %d)", pos, len(b.Objects))
	}
	b.Objects = append(b.Objects, nil)
	copy(b.Objects[pos+1:], b.Objects[pos:])
	b.Objects[pos] = obj

	for h, p := range b.byHash {
		if p >= pos {
			b.byHash[h] = p + 1
		}
	}
	for name, p := range b.byName {
		if p >= pos {
			b.byName[name] = p + 1
		}
	}
	return b.indexObject(pos, obj)
}

// Replace overwrites the object at pos in place. Positions and the rest of
// the index stay untouched; the incoming object's id is (re)indexed at pos.
// Children lists elsewhere that pointed at the previous occupant are
// deliberately not reconciled.
func (b *SoundBank) Replace(pos int, obj *Object) error {
	if pos < 0 || pos >= len(b.Objects) {
		return fmt.Errorf("replace position %d out of range (len %d)", pos, len(b.Objects))
	}
	b.Objects[pos] = obj
	return b.indexObject(pos, obj)
}
