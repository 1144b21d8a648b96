// Package bankinfo reads the SoundbanksInfo.xml that Wwise writes next to
// generated banks. The merge itself never needs it; it backs the inspect
// command and resolves wem file names when streamed media uses a language
// subfolder.
package bankinfo

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/antchfx/xmlquery"
)

// EventInfo is one event declared for a soundbank.
type EventInfo struct {
	ID   uint32
	Name string
}

// MediaInfo is one wem file referenced by a soundbank.
type MediaInfo struct {
	ID        uint32
	ShortName string
	Path      string
	Streaming bool
}

// BankInfo is the metadata for one soundbank.
type BankInfo struct {
	ID        uint32
	ShortName string
	Path      string
	Events    []EventInfo
	Media     []MediaInfo
}

// Info is the parsed SoundbanksInfo.xml.
type Info struct {
	root *xmlquery.Node
}

// Load parses a SoundbanksInfo.xml file.
func Load(path string) (*Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	root, err := xmlquery.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &Info{root: root}, nil
}

// Banks returns all soundbanks described by the file.
func (i *Info) Banks() ([]BankInfo, error) {
	nodes, err := xmlquery.QueryAll(i.root, "//SoundBanks/SoundBank")
	if err != nil {
		return nil, fmt.Errorf("querying soundbanks: %w", err)
	}
	banks := make([]BankInfo, 0, len(nodes))
	for _, n := range nodes {
		b, err := parseBank(n)
		if err != nil {
			return nil, err
		}
		banks = append(banks, b)
	}
	return banks, nil
}

// Bank returns the soundbank whose ShortName matches name.
func (i *Info) Bank(name string) (BankInfo, error) {
	banks, err := i.Banks()
	if err != nil {
		return BankInfo{}, err
	}
	for _, b := range banks {
		if b.ShortName == name {
			return b, nil
		}
	}
	return BankInfo{}, fmt.Errorf("soundbank %q not found", name)
}

// MediaPath returns the path recorded for a media id in the named bank.
func (i *Info) MediaPath(bankName string, id uint32) (string, error) {
	b, err := i.Bank(bankName)
	if err != nil {
		return "", err
	}
	for _, m := range b.Media {
		if m.ID == id {
			return m.Path, nil
		}
	}
	return "", fmt.Errorf("media %d not listed for soundbank %q", id, bankName)
}

func parseBank(n *xmlquery.Node) (BankInfo, error) {
	b := BankInfo{
		ShortName: childText(n, "ShortName"),
		Path:      childText(n, "Path"),
	}
	id, err := parseID(n.SelectAttr("Id"))
	if err != nil {
		return b, fmt.Errorf("soundbank %q: %w", b.ShortName, err)
	}
	b.ID = id

	events, err := xmlquery.QueryAll(n, "IncludedEvents/Event")
	if err != nil {
		return b, fmt.Errorf("querying events for %q: %w", b.ShortName, err)
	}
	for _, e := range events {
		eid, err := parseID(e.SelectAttr("Id"))
		if err != nil {
			return b, fmt.Errorf("event in %q: %w", b.ShortName, err)
		}
		b.Events = append(b.Events, EventInfo{ID: eid, Name: e.SelectAttr("Name")})
	}

	files, err := xmlquery.QueryAll(n, ".//File")
	if err != nil {
		return b, fmt.Errorf("querying media for %q: %w", b.ShortName, err)
	}
	for _, f := range files {
		mid, err := parseID(f.SelectAttr("Id"))
		if err != nil {
			return b, fmt.Errorf("media file in %q: %w", b.ShortName, err)
		}
		b.Media = append(b.Media, MediaInfo{
			ID:        mid,
			ShortName: childText(f, "ShortName"),
			Path:      childText(f, "Path"),
			Streaming: strings.EqualFold(f.SelectAttr("Streaming"), "true"),
		})
	}
	return b, nil
}

func childText(n *xmlquery.Node, name string) string {
	child := n.SelectElement(name)
	if child == nil {
		return ""
	}
	return strings.TrimSpace(child.InnerText())
}

func parseID(raw string) (uint32, error) {
	if raw == "" {
		return 0, fmt.Errorf("missing Id attribute")
	}
	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid Id %q: %w", raw, err)
	}
	return uint32(v), nil
}
