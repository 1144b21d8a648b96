// Command bankforge ports event hierarchies between Wwise soundbank json
// dumps, copies their wem payloads, and verifies the merged result.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/alecthomas/kong"

	"github.com/caldw/bankforge/core/bank"
	"github.com/caldw/bankforge/core/bnkjson"
	"github.com/caldw/bankforge/core/decision"
	"github.com/caldw/bankforge/core/fnv"
	"github.com/caldw/bankforge/core/hierarchy"
	"github.com/caldw/bankforge/core/merge"
	"github.com/caldw/bankforge/core/verify"
	"github.com/caldw/bankforge/internal/backup"
	"github.com/caldw/bankforge/internal/bankinfo"
	"github.com/caldw/bankforge/internal/config"
	"github.com/caldw/bankforge/internal/ledger"
	"github.com/caldw/bankforge/internal/linkspec"
	"github.com/caldw/bankforge/internal/logging"
	"github.com/caldw/bankforge/internal/mediastore"
)

const version = "0.1.0"

// CLI defines the command-line interface for bankforge.
var CLI struct {
	LogLevel  string `name:"log-level" default:"info" enum:"debug,info,warn,error" help:"Log level"`
	LogFormat string `name:"log-format" default:"text" enum:"text,json" help:"Log format"`

	Merge   MergeCmd    `cmd:"" help:"Port linked events from a source bank into a destination bank"`
	Verify  VerifyCmd   `cmd:"" help:"Check a soundbank json for dangling references"`
	Hash    HashCmd     `cmd:"" help:"Print FNV hashes for object names"`
	Inspect InspectCmd  `cmd:"" help:"Summarize a soundbank or render an object's hierarchy"`
	Ledger  LedgerGroup `cmd:"" help:"Ported-event ledger operations"`
	Version VersionCmd  `cmd:"" help:"Print version information"`
}

// LedgerGroup contains ledger operations.
type LedgerGroup struct {
	List LedgerListCmd `cmd:"" help:"List recorded transfers"`
}

// MergeCmd runs the transfer described by a config file, with flags taking
// precedence over config values.
type MergeCmd struct {
	Config string `name:"config" short:"c" help:"Path to bankforge.yaml" type:"existingfile"`

	Source string   `name:"source" help:"Source soundbank json" type:"existingfile"`
	Dest   string   `name:"dest" help:"Destination soundbank json" type:"existingfile"`
	Links  []string `arg:"" optional:"" help:"Links as 'src:=dst' or bare ids"`

	LinksFile    string `name:"links-file" help:"File of link declarations" type:"existingfile"`
	SourceWemDir string `name:"source-wem-dir" help:"Directory holding the source bank's wem files" type:"existingdir"`
	DestWemDir   string `name:"dest-wem-dir" help:"Directory holding the destination bank's wem files"`

	Write       bool   `name:"write" help:"Commit the merged bank to disk (default is a dry run)"`
	DryRun      bool   `name:"dry-run" help:"Force a dry run even when the config enables writing"`
	Yes         bool   `name:"yes" short:"y" help:"Answer every prompt with the safe choice"`
	LedgerPath  string `name:"ledger" help:"SQLite ledger recording ported events"`
	HistoryDir  string `name:"history-dir" help:"Keep an xz-compressed copy of the previous bank here"`
	Threshold   int64  `name:"threshold" help:"Verification large-integer cutoff (0 = default)"`
	SkipWemCopy bool   `name:"skip-wem-copy" help:"Do not copy wem files even when wem dirs are known"`
}

func (c *MergeCmd) Run() error {
	cfg, err := c.effectiveConfig()
	if err != nil {
		return err
	}

	srcDoc, err := bnkjson.LoadFile(cfg.SourceBank)
	if err != nil {
		return err
	}
	dstDoc, err := bnkjson.LoadFile(cfg.DestBank)
	if err != nil {
		return err
	}
	srcBank, diags := srcDoc.Bank()
	for _, d := range diags {
		logging.Warn("source bank", "diagnostic", d)
	}
	dstBank, diags := dstDoc.Bank()
	for _, d := range diags {
		logging.Warn("destination bank", "diagnostic", d)
	}

	links, err := c.resolveLinks(cfg)
	if err != nil {
		return err
	}
	if len(links) == 0 {
		return fmt.Errorf("nothing to do: no links given")
	}

	var provider decision.Provider = decision.SkipAll{}
	if !cfg.NoQuestions {
		provider = newPromptProvider()
	}

	engine := merge.New(srcBank, dstBank, provider)
	report, err := engine.Run(links)
	if err != nil {
		return err
	}
	printReport(report)

	verifier := verify.Verifier{
		Dst:         dstBank,
		Src:         srcBank,
		Transferred: report.Transferred,
		Threshold:   uint32(cfg.VerifyThreshold),
	}
	findings := verifier.Verify()
	for _, f := range findings {
		fmt.Printf("verify: %s\n", f)
	}
	if len(findings) == 0 {
		fmt.Println("verify: no dangling references found")
	}

	if !cfg.EnableWrite {
		fmt.Println("dry run: destination bank left untouched (use --write to commit)")
		return nil
	}
	ok, err := provider.ConfirmWrite()
	if err != nil {
		return err
	}
	if !ok {
		fmt.Println("write declined, destination bank left untouched")
		return nil
	}

	if cfg.HistoryDir != "" {
		if _, err := backup.Archive(cfg.DestBank, cfg.HistoryDir); err != nil {
			return err
		}
	}
	if _, err := backup.Snapshot(cfg.DestBank); err != nil {
		return err
	}

	dstDoc.Commit(dstBank)
	data, err := dstDoc.Marshal()
	if err != nil {
		return err
	}
	if err := os.WriteFile(cfg.DestBank, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", cfg.DestBank, err)
	}
	logging.Info("wrote merged bank", "path", cfg.DestBank, "objects", dstBank.Len())

	if !c.SkipWemCopy && cfg.SourceWemDir != "" && cfg.DestWemDir != "" {
		res, err := mediastore.CopyAll(cfg.SourceWemDir, cfg.DestWemDir, report.Media)
		if err != nil {
			return err
		}
		fmt.Printf("wem files: %d copied, %d already present\n", len(res.Copied), len(res.Skipped))
	}

	if cfg.LedgerPath != "" {
		if err := recordRun(cfg, report); err != nil {
			return err
		}
	}
	return nil
}

// effectiveConfig merges the optional config file with command line flags.
// Flags win.
func (c *MergeCmd) effectiveConfig() (*config.Config, error) {
	cfg := &config.Config{}
	if c.Config != "" {
		loaded, err := config.Load(c.Config)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if c.Source != "" {
		cfg.SourceBank = c.Source
	}
	if c.Dest != "" {
		cfg.DestBank = c.Dest
	}
	if c.LinksFile != "" {
		cfg.LinksFile = c.LinksFile
	}
	if c.SourceWemDir != "" {
		cfg.SourceWemDir = c.SourceWemDir
	}
	if c.DestWemDir != "" {
		cfg.DestWemDir = c.DestWemDir
	}
	if c.Write {
		cfg.EnableWrite = true
	}
	if c.DryRun {
		cfg.EnableWrite = false
	}
	if c.Yes {
		cfg.NoQuestions = true
	}
	if c.LedgerPath != "" {
		cfg.LedgerPath = c.LedgerPath
	}
	if c.HistoryDir != "" {
		cfg.HistoryDir = c.HistoryDir
	}
	if c.Threshold != 0 {
		cfg.VerifyThreshold = c.Threshold
	}
	if cfg.SourceBank == "" || cfg.DestBank == "" {
		return nil, fmt.Errorf("source and destination banks are required (flags or --config)")
	}
	return cfg, nil
}

func (c *MergeCmd) resolveLinks(cfg *config.Config) ([]merge.Link, error) {
	if len(c.Links) > 0 {
		return linkspec.ParseInline(c.Links)
	}
	if cfg.LinksFile != "" {
		f, err := linkspec.ParseFile(cfg.LinksFile)
		if err != nil {
			return nil, err
		}
		return f.Links()
	}
	links := make([]merge.Link, 0, len(cfg.Links))
	for _, l := range cfg.Links {
		src, err := fnv.ParseWwiseID(l.Source)
		if err != nil {
			return nil, err
		}
		dst := src
		if l.Dest != "" {
			dst, err = fnv.ParseWwiseID(l.Dest)
			if err != nil {
				return nil, err
			}
		}
		links = append(links, merge.Link{Source: src, Dest: dst})
	}
	return links, nil
}

func printReport(r *merge.Report) {
	for _, lr := range r.Links {
		fmt.Printf("== %s -> %s ==\n", lr.Link.Source, lr.Link.Dest)
		for _, tree := range lr.Trees {
			fmt.Print(tree)
		}
		if len(lr.Extras) > 0 {
			names := make([]string, len(lr.Extras))
			for i, id := range lr.Extras {
				names[i] = id.String()
			}
			fmt.Printf("extra referenced objects: %s\n", strings.Join(names, ", "))
		}
	}
	if len(r.Media) > 0 {
		fmt.Printf("media to carry over: %d wem file(s)\n", len(r.Media))
	}
	for _, id := range r.Skipped {
		fmt.Printf("skipped existing object %s\n", id.String())
	}
	for _, id := range r.Replaced {
		fmt.Printf("replaced object %s\n", id.String())
	}
	for _, w := range r.Warnings {
		fmt.Printf("warning: %s\n", w)
	}
}

func recordRun(cfg *config.Config, report *merge.Report) error {
	l, err := ledger.Open(cfg.LedgerPath)
	if err != nil {
		return err
	}
	defer l.Close()

	srcName := bankName(cfg.SourceBank)
	dstName := bankName(cfg.DestBank)
	for _, lr := range report.Links {
		err := l.Record(ledger.Entry{
			RunID:         report.RunID,
			SourceName:    string(lr.Link.Source),
			DestName:      string(lr.Link.Dest),
			SourceBank:    srcName,
			DestBank:      dstName,
			PlayEventHash: lr.PlayEventHash,
			StopEventHash: lr.StopEventHash,
		})
		if err != nil {
			return err
		}
	}
	logging.Info("recorded run in ledger", "path", cfg.LedgerPath, "links", len(report.Links))
	return nil
}

func bankName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// VerifyCmd scans a whole bank for dangling references.
type VerifyCmd struct {
	Bank      string `arg:"" help:"Soundbank json to verify" type:"existingfile"`
	Source    string `name:"source" help:"Source bank for provenance of unresolved ids" type:"existingfile"`
	Threshold int64  `name:"threshold" help:"Large-integer cutoff (0 = default)"`
}

func (c *VerifyCmd) Run() error {
	doc, err := bnkjson.LoadFile(c.Bank)
	if err != nil {
		return err
	}
	dst, diags := doc.Bank()
	for _, d := range diags {
		logging.Warn("bank", "diagnostic", d)
	}

	var src *bank.SoundBank
	if c.Source != "" {
		srcDoc, err := bnkjson.LoadFile(c.Source)
		if err != nil {
			return err
		}
		src, _ = srcDoc.Bank()
	}

	// Standalone verification has no transfer set, so every object gets
	// the deep scan.
	all := make(map[int]bool, dst.Len())
	for i := 0; i < dst.Len(); i++ {
		all[i] = true
	}
	verifier := verify.Verifier{Dst: dst, Src: src, Transferred: all, Threshold: uint32(c.Threshold)}
	findings := verifier.Verify()
	for _, f := range findings {
		fmt.Println(f)
	}
	if len(findings) == 0 {
		fmt.Println("no dangling references found")
		return nil
	}
	return fmt.Errorf("%d finding(s)", len(findings))
}

// HashCmd prints FNV hashes.
type HashCmd struct {
	Names  []string `arg:"" help:"Names to hash"`
	Events bool     `name:"events" help:"Treat names as Wwise ids and print Play_/Stop_ event hashes"`
}

func (c *HashCmd) Run() error {
	for _, name := range c.Names {
		if !c.Events {
			fmt.Printf("%s\t%d\n", name, fnv.Hash(name))
			continue
		}
		id, err := fnv.ParseWwiseID(name)
		if err != nil {
			return err
		}
		fmt.Printf("%s\t%d\n", id.PlayEvent(), fnv.Hash(id.PlayEvent()))
		fmt.Printf("%s\t%d\n", id.StopEvent(), fnv.Hash(id.StopEvent()))
	}
	return nil
}

// InspectCmd summarizes a bank or renders one object's hierarchy.
type InspectCmd struct {
	Bank   string `arg:"" optional:"" help:"Soundbank json to inspect" type:"existingfile"`
	Object string `name:"object" help:"Render the hierarchy under this object name or hash"`
	Info   string `name:"info" help:"SoundbanksInfo.xml to list instead of a bank json" type:"existingfile"`
}

func (c *InspectCmd) Run() error {
	if c.Info != "" {
		return c.listInfo()
	}
	if c.Bank == "" {
		return fmt.Errorf("a bank json or --info file is required")
	}

	doc, err := bnkjson.LoadFile(c.Bank)
	if err != nil {
		return err
	}
	b, diags := doc.Bank()
	for _, d := range diags {
		logging.Warn("bank", "diagnostic", d)
	}

	if c.Object != "" {
		pos, ok := b.LookupName(c.Object)
		if !ok {
			return fmt.Errorf("object %q not found in %s", c.Object, c.Bank)
		}
		w := &hierarchy.Walker{Bank: b}
		sub, err := w.CollectSubgraph(pos)
		if err != nil {
			return err
		}
		fmt.Print(hierarchy.RenderTree(sub.Tree))
		if len(sub.Media) > 0 {
			fmt.Printf("media: %d wem file(s)\n", len(sub.Media))
		}
		return nil
	}

	fmt.Printf("bank id: %d\n", doc.BankID())
	fmt.Printf("objects: %d\n", b.Len())
	kinds := map[string]int{}
	order := []string{}
	for i := 0; i < b.Len(); i++ {
		k := b.At(i).Kind()
		if kinds[k] == 0 {
			order = append(order, k)
		}
		kinds[k]++
	}
	for _, k := range order {
		fmt.Printf("  %-28s %d\n", k, kinds[k])
	}
	for i := 0; i < b.Len(); i++ {
		obj := b.At(i)
		if obj.Kind() != bank.KindEvent {
			continue
		}
		id, err := obj.ID()
		if err != nil {
			continue
		}
		fmt.Printf("event %s\n", id.String())
	}
	return nil
}

func (c *InspectCmd) listInfo() error {
	info, err := bankinfo.Load(c.Info)
	if err != nil {
		return err
	}
	banks, err := info.Banks()
	if err != nil {
		return err
	}
	for _, b := range banks {
		fmt.Printf("%s (id %d, %s)\n", b.ShortName, b.ID, b.Path)
		for _, e := range b.Events {
			fmt.Printf("  event %-40s %d\n", e.Name, e.ID)
		}
		for _, m := range b.Media {
			stream := ""
			if m.Streaming {
				stream = " [streamed]"
			}
			fmt.Printf("  media %-10d %s%s\n", m.ID, m.Path, stream)
		}
	}
	return nil
}

// LedgerListCmd prints recorded transfers.
type LedgerListCmd struct {
	Path string `arg:"" help:"Ledger database" type:"existingfile"`
	Bank string `name:"bank" help:"Only show entries for this destination bank"`
}

func (c *LedgerListCmd) Run() error {
	l, err := ledger.Open(c.Path)
	if err != nil {
		return err
	}
	defer l.Close()

	entries, err := l.List(c.Bank)
	if err != nil {
		return err
	}
	for _, e := range entries {
		fmt.Printf("%s  %s -> %s  (%s -> %s, play %d, stop %d)\n",
			e.PortedAt.Format("2006-01-02 15:04"),
			e.SourceName, e.DestName, e.SourceBank, e.DestBank,
			e.PlayEventHash, e.StopEventHash)
	}
	if len(entries) == 0 {
		fmt.Println("no recorded transfers")
	}
	return nil
}

// VersionCmd prints version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Printf("bankforge %s (sqlite driver: %s)\n", version, ledger.DriverType())
	return nil
}

func parseLevel(s string) logging.Level {
	switch s {
	case "debug":
		return logging.LevelDebug
	case "warn":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}

func parseFormat(s string) logging.Format {
	if s == "json" {
		return logging.FormatJSON
	}
	return logging.FormatText
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("bankforge"),
		kong.Description("Wwise soundbank hierarchy extraction and merge tool"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)
	logging.InitLogger(parseLevel(CLI.LogLevel), parseFormat(CLI.LogFormat))
	err := ctx.Run(ctx)
	ctx.FatalIfErrorf(err)
}
