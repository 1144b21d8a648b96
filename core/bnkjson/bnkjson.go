// Package bnkjson reads and writes the JSON form of a decompiled soundbank
// (the rewwise layout: a "sections" list where one section's body carries
// BKHD header data and another carries the HIRC object array).
//
// Only the sections, the bank id, and the HIRC objects are interpreted;
// everything else round-trips untouched, key order included.
package bnkjson

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/caldw/bankforge/core/bank"
	"github.com/caldw/bankforge/core/errors"
)

// Document is a parsed soundbank file. The bank's object array can be lifted
// out, merged into, and committed back without disturbing the rest of the
// tree.
type Document struct {
	root *bank.Node
	hirc *bank.Node // the HIRC section body holding "objects"
	id   uint32
}

// Parse decodes a soundbank JSON document.
func Parse(data []byte) (*Document, error) {
	root := &bank.Node{}
	if err := json.Unmarshal(data, root); err != nil {
		return nil, &errors.ParseError{Format: "soundbank JSON", Message: err.Error(), Err: err}
	}

	sections, ok := root.Get("sections")
	if !ok || sections.Kind() != bank.KindList {
		return nil, &errors.ParseError{Format: "soundbank JSON", Message: "could not find 'sections'"}
	}

	doc := &Document{root: root}
	for _, sec := range sections.Items() {
		body, ok := sec.Get("body")
		if !ok {
			continue
		}
		if bkhd, ok := body.Get("BKHD"); ok && doc.id == 0 {
			if idNode, ok := bkhd.Get("bank_id"); ok {
				doc.id, _ = idNode.Uint()
			}
		}
		if hirc, ok := body.Get("HIRC"); ok && doc.hirc == nil {
			doc.hirc = hirc
		}
	}
	if doc.hirc == nil {
		return nil, &errors.ParseError{Format: "soundbank JSON", Message: "could not find HIRC section"}
	}
	if _, ok := doc.hirc.Get("objects"); !ok {
		return nil, &errors.ParseError{Format: "soundbank JSON", Message: "HIRC section has no objects array"}
	}
	return doc, nil
}

// LoadFile parses the soundbank at path.
func LoadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading soundbank: %w", err)
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, &errors.ParseError{Format: "soundbank JSON", Path: path, Message: err.Error(), Err: err}
	}
	return doc, nil
}

// BankID returns the id from the BKHD header, or 0 when absent.
func (d *Document) BankID() uint32 { return d.id }

// Bank lifts the HIRC array into an indexed SoundBank. Diagnostics describe
// objects whose id form was not recognized; they stay in the array but are
// not indexed.
func (d *Document) Bank() (*bank.SoundBank, []string) {
	objsNode, _ := d.hirc.Get("objects")
	items := objsNode.Items()
	objs := make([]*bank.Object, len(items))
	for i, item := range items {
		objs[i] = bank.WrapObject(item)
	}
	return bank.NewSoundBank(d.id, objs)
}

// Commit writes a merged bank's object array back into the HIRC section.
func (d *Document) Commit(b *bank.SoundBank) {
	items := make([]*bank.Node, len(b.Objects))
	for i, obj := range b.Objects {
		items[i] = obj.Node()
	}
	objsNode, _ := d.hirc.Get("objects")
	objsNode.SetItems(items)
}

// Marshal serializes the document, indented the way the decompiler writes it.
func (d *Document) Marshal() ([]byte, error) {
	data, err := json.Marshal(d.root)
	if err != nil {
		return nil, err
	}
	var out bytes.Buffer
	if err := json.Indent(&out, data, "", "  "); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}
