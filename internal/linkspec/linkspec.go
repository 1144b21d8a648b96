// Package linkspec parses .links files listing the events to transfer.
//
// Each meaningful line is either a pair "source := dest" or a bare id,
// which ports an event under the same name. Lines starting with # are
// comments.
package linkspec

import (
	"fmt"
	"os"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/caldw/bankforge/core/fnv"
	"github.com/caldw/bankforge/core/merge"
)

// File is a parsed .links file.
type File struct {
	Lines []Line `parser:"@@*"`
}

// Line is one link declaration.
type Line struct {
	Source string `parser:"@Ident"`
	Dest   string `parser:"( Assign @Ident )?"`
}

var linkLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Comment", Pattern: `#[^\r\n]*`},
	{Name: "Assign", Pattern: `:=`},
	{Name: "Ident", Pattern: `[a-zA-Z][a-zA-Z0-9]*`},
	{Name: "Whitespace", Pattern: `[ \t]+`},
	{Name: "Newline", Pattern: `[\r\n]+`},
})

var linkParser = participle.MustBuild[File](
	participle.Lexer(linkLexer),
	participle.Elide("Comment", "Whitespace", "Newline"),
)

// ParseString parses .links content.
func ParseString(input string) (*File, error) {
	return linkParser.ParseString("", input)
}

// ParseFile parses the .links file at path.
func ParseFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	f, err := linkParser.ParseBytes(path, data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return f, nil
}

// Links converts the parsed lines into merge links, validating every id.
// A bare id links to itself.
func (f *File) Links() ([]merge.Link, error) {
	links := make([]merge.Link, 0, len(f.Lines))
	for _, l := range f.Lines {
		src, err := fnv.ParseWwiseID(l.Source)
		if err != nil {
			return nil, fmt.Errorf("source %q: %w", l.Source, err)
		}
		dst := src
		if l.Dest != "" {
			dst, err = fnv.ParseWwiseID(l.Dest)
			if err != nil {
				return nil, fmt.Errorf("dest %q: %w", l.Dest, err)
			}
		}
		links = append(links, merge.Link{Source: src, Dest: dst})
	}
	return links, nil
}

// ParseInline parses link declarations given on the command line, either
// "src:=dst" or a bare id per argument.
func ParseInline(args []string) ([]merge.Link, error) {
	f, err := ParseString(strings.Join(args, "\n"))
	if err != nil {
		return nil, err
	}
	return f.Links()
}
