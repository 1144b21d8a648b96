package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/caldw/bankforge/core/bank"
	"github.com/caldw/bankforge/core/decision"
)

// promptProvider asks the operator on stdin how to handle collisions,
// hierarchy cycles, and the final write.
type promptProvider struct {
	in  *bufio.Reader
	out io.Writer
}

func newPromptProvider() *promptProvider {
	return &promptProvider{in: bufio.NewReader(os.Stdin), out: os.Stdout}
}

func (p *promptProvider) ResolveCollision(existing bank.ObjectID, kind string) (decision.Choice, error) {
	for {
		fmt.Fprintf(p.out, "%s %s already exists in the destination. [s]kip, [r]eplace, [c]ancel? ", kind, existing.String())
		answer, err := p.readLine()
		if err != nil {
			return decision.Cancel, err
		}
		switch answer {
		case "s", "skip", "":
			return decision.Skip, nil
		case "r", "replace":
			return decision.Replace, nil
		case "c", "cancel":
			return decision.Cancel, nil
		}
	}
}

func (p *promptProvider) ConfirmCycle(chain []uint32) (bool, error) {
	ids := make([]string, len(chain))
	for i, id := range chain {
		ids[i] = fmt.Sprintf("%d", id)
	}
	fmt.Fprintf(p.out, "parent chain loops: %s. Continue with the chain so far? [Y/n] ", strings.Join(ids, " -> "))
	return p.confirm(true)
}

func (p *promptProvider) ConfirmWrite() (bool, error) {
	fmt.Fprint(p.out, "Write the merged bank to disk? [y/N] ")
	return p.confirm(false)
}

func (p *promptProvider) confirm(byDefault bool) (bool, error) {
	answer, err := p.readLine()
	if err != nil {
		return false, err
	}
	switch answer {
	case "y", "yes":
		return true, nil
	case "n", "no":
		return false, nil
	case "":
		return byDefault, nil
	default:
		return false, nil
	}
}

func (p *promptProvider) readLine() (string, error) {
	line, err := p.in.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.ToLower(strings.TrimSpace(line)), nil
}
