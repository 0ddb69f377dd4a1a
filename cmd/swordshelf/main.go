// Command swordshelf reads installed SWORD modules: Bibles,
// commentaries, dictionaries, and general books.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/alecthomas/kong"

	"github.com/FocuswithJustin/swordshelf/core/conf"
	"github.com/FocuswithJustin/swordshelf/core/module"
	"github.com/FocuswithJustin/swordshelf/core/versification"
	"github.com/FocuswithJustin/swordshelf/internal/catalog"
	"github.com/FocuswithJustin/swordshelf/internal/logging"
)

const version = "0.1.0"

// CLI defines the command-line interface for swordshelf.
var CLI struct {
	// Global flags
	SwordDir []string `name:"sword-dir" short:"d" help:"SWORD installation root (repeatable; default: /usr/share/sword, ~/.sword)" type:"path"`
	Catalog  string   `help:"Catalog database path (default: ~/.swordshelf/catalog.db)" type:"path"`
	Verbose  bool     `short:"v" help:"Enable debug logging"`

	Scan    ScanCmd    `cmd:"" help:"Scan search folders and refresh the module catalog"`
	List    ListCmd    `cmd:"" help:"List installed modules"`
	Show    ShowCmd    `cmd:"" help:"Show one module's configuration"`
	Verse   VerseCmd   `cmd:"" help:"Print a verse from a Bible or commentary module"`
	Dict    DictCmd    `cmd:"" help:"Print a dictionary or lexicon entry"`
	Genbook GenbookCmd `cmd:"" help:"Print a general book entry"`
	Version VersionCmd `cmd:"" help:"Print version information"`
}

func openRegistry() (*module.Registry, error) {
	r := module.NewRegistry(CLI.SwordDir...)
	if err := r.Scan(); err != nil {
		return nil, err
	}
	return r, nil
}

func catalogPath() (string, error) {
	if CLI.Catalog != "" {
		return CLI.Catalog, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".swordshelf", "catalog.db"), nil
}

// loadModule scans, loads one module, and returns it ready for reads.
func loadModule(name string, mode module.Mode) (*module.Module, error) {
	r, err := openRegistry()
	if err != nil {
		return nil, err
	}
	m, err := r.Module(name)
	if err != nil {
		return nil, err
	}
	if err := m.Load(mode); err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", name, err)
	}
	return m, nil
}

// ScanCmd refreshes the catalog from the search folders.
type ScanCmd struct{}

func (c *ScanCmd) Run() error {
	r, err := openRegistry()
	if err != nil {
		return err
	}

	path, err := catalogPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create catalog directory: %w", err)
	}
	cat, err := catalog.Open(path)
	if err != nil {
		return err
	}
	defer cat.Close()

	if _, err := cat.Invalidate(); err != nil {
		return err
	}

	var records []catalog.Record
	for _, name := range r.Names() {
		cfg, err := r.Config(name)
		if err != nil {
			continue
		}
		rec, err := catalog.RecordFor(cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "skipping %s: %v\n", name, err)
			continue
		}
		records = append(records, rec)
	}
	if err := cat.Save(records); err != nil {
		return err
	}

	fmt.Printf("Cataloged %d modules in %s\n", len(records), path)
	return nil
}

// ListCmd lists registered modules, optionally filtered.
type ListCmd struct {
	Category string `help:"Filter by category (Bible, Commentary, Dictionary, General)"`
	Type     string `help:"Filter by driver type (e.g. zText, RawLD)"`
	Lang     string `help:"Filter by language code"`
	Feature  string `help:"Filter by declared feature"`
}

func (c *ListCmd) Run() error {
	r, err := openRegistry()
	if err != nil {
		return err
	}

	filter := module.Filter{Language: c.Lang, Feature: c.Feature}
	if c.Category != "" {
		filter.Category = parseCategory(c.Category)
		if filter.Category == conf.CategoryUnknown {
			return fmt.Errorf("unknown category %q", c.Category)
		}
	}
	if c.Type != "" {
		d, ok := conf.ParseDriver(c.Type)
		if !ok {
			return fmt.Errorf("unknown driver type %q", c.Type)
		}
		filter.Driver = d
	}

	names := r.List(filter)
	fmt.Printf("%-20s %-12s %-10s %-6s %s\n", "MODULE", "CATEGORY", "DRIVER", "LANG", "DESCRIPTION")
	for _, name := range names {
		cfg, err := r.Config(name)
		if err != nil {
			continue
		}
		desc := cfg.Get("Description")
		if len(desc) > 50 {
			desc = desc[:47] + "..."
		}
		if cfg.Locked {
			desc += " [locked]"
		}
		fmt.Printf("%-20s %-12s %-10s %-6s %s\n",
			name, cfg.Category, cfg.Driver, cfg.Language(), desc)
	}
	fmt.Printf("\nTotal: %d modules\n", len(names))
	return nil
}

func parseCategory(s string) conf.Category {
	switch strings.ToLower(s) {
	case "bible":
		return conf.CategoryBible
	case "commentary":
		return conf.CategoryCommentary
	case "dictionary":
		return conf.CategoryDictionary
	case "general":
		return conf.CategoryGeneral
	}
	return conf.CategoryUnknown
}

// ShowCmd prints one module's parsed configuration.
type ShowCmd struct {
	Module string `arg:"" help:"Module name"`
}

func (c *ShowCmd) Run() error {
	r, err := openRegistry()
	if err != nil {
		return err
	}
	cfg, err := r.Config(c.Module)
	if err != nil {
		return err
	}

	fmt.Printf("Name:          %s\n", cfg.Name)
	fmt.Printf("Conf:          %s\n", cfg.ConfPath)
	fmt.Printf("Driver:        %s (%s)\n", cfg.Driver, conf.DriverDisplayName[cfg.Driver.String()])
	fmt.Printf("Category:      %s\n", cfg.Category)
	fmt.Printf("Language:      %s\n", cfg.Language())
	fmt.Printf("Encoding:      %s\n", cfg.Encoding)
	fmt.Printf("Versification: %s\n", cfg.Versification())
	fmt.Printf("DataPath:      %s\n", cfg.DataPath())
	if cfg.IsCompressed() {
		fmt.Printf("Compression:   %s (%s blocks)\n", cfg.CompressType(), cfg.BlockType())
	}
	if size := cfg.InstallSize(); size > 0 {
		fmt.Printf("InstallSize:   %d\n", size)
	}
	if features := cfg.Features(); len(features) > 0 {
		fmt.Printf("Features:      %s\n", strings.Join(features, ", "))
	}
	if cfg.Locked {
		fmt.Println("Locked:        yes (cipher key required)")
	}
	if !cfg.Usable {
		fmt.Println("Usable:        no")
	}
	return nil
}

// VerseCmd prints one verse.
type VerseCmd struct {
	Module string `arg:"" help:"Module name"`
	Ref    string `arg:"" help:"Verse reference, e.g. \"Gen 1:1\" or \"1 John 3:16\""`
	Eager  bool   `help:"Load the whole module into memory"`
}

func (c *VerseCmd) Run() error {
	ref, err := versification.ParseRef(c.Ref)
	if err != nil {
		return err
	}
	mode := module.Auto
	if c.Eager {
		mode = module.Eager
	}
	m, err := loadModule(c.Module, mode)
	if err != nil {
		return err
	}
	text, err := m.VerseText(ref)
	if err != nil {
		return err
	}
	fmt.Printf("%s (%s): %s\n", ref, c.Module, text)
	return nil
}

// DictCmd prints a dictionary entry.
type DictCmd struct {
	Module string `arg:"" help:"Module name"`
	Key    string `arg:"" help:"Entry key, e.g. AARON or G00025"`
	Eager  bool   `help:"Load the whole module into memory"`
}

func (c *DictCmd) Run() error {
	mode := module.Auto
	if c.Eager {
		mode = module.Eager
	}
	m, err := loadModule(c.Module, mode)
	if err != nil {
		return err
	}
	entries, err := m.DictEntry(c.Key)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		fmt.Println(entry)
	}
	return nil
}

// GenbookCmd prints a general book entry.
type GenbookCmd struct {
	Module string `arg:"" help:"Module name"`
	Key    string `arg:"" help:"Book node key"`
	Eager  bool   `help:"Load the whole module into memory"`
}

func (c *GenbookCmd) Run() error {
	mode := module.Auto
	if c.Eager {
		mode = module.Eager
	}
	m, err := loadModule(c.Module, mode)
	if err != nil {
		return err
	}
	entries, err := m.GenBookEntry(c.Key)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		fmt.Println(entry)
	}
	return nil
}

// VersionCmd prints version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Printf("swordshelf version %s (sqlite: %s)\n", version, catalog.DriverType())
	return nil
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("swordshelf"),
		kong.Description("SWORD module reader"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)
	level := logging.LevelWarn
	if CLI.Verbose {
		level = logging.LevelDebug
	}
	logging.InitLogger(level, logging.FormatText)

	err := ctx.Run(ctx)
	ctx.FatalIfErrorf(err)
}
