package module

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/FocuswithJustin/swordshelf/core/conf"
	swerrors "github.com/FocuswithJustin/swordshelf/core/errors"
	"github.com/FocuswithJustin/swordshelf/core/versification"
)

func TestRegistryScanAndIndices(t *testing.T) {
	root := t.TempDir()
	writeRawTextModule(t, root, "hello", "Hello", "")
	writeRawDictModule(t, root, "strongs", "Strongs")
	// A stray non-conf entry is warned about and skipped.
	if err := os.WriteFile(filepath.Join(root, "mods.d", "readme.txt"), []byte("x"), 0644); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	r := NewRegistry(root)
	if err := r.Scan(); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	names := r.Names()
	if len(names) != 2 || names[0] != "Hello" || names[1] != "Strongs" {
		t.Fatalf("Names() = %v", names)
	}

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"all", Filter{}, []string{"Hello", "Strongs"}},
		{"by category", Filter{Category: conf.CategoryBible}, []string{"Hello"}},
		{"by driver", Filter{Driver: conf.DriverRawLD}, []string{"Strongs"}},
		{"by language", Filter{Language: "en"}, []string{"Hello"}},
		{"by feature", Filter{Feature: "GreekDef"}, []string{"Strongs"}},
		{"no match", Filter{Language: "de"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.List(tt.filter)
			if len(got) != len(tt.want) {
				t.Fatalf("List(%+v) = %v, want %v", tt.filter, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("List(%+v) = %v, want %v", tt.filter, got, tt.want)
				}
			}
		})
	}
}

func TestRegistryDuplicateExcluded(t *testing.T) {
	first := t.TempDir()
	second := t.TempDir()
	writeRawTextModule(t, first, "hello", "Hello", "Description=first\n")
	writeRawTextModule(t, second, "hello2", "hello", "Description=second\n")

	r := NewRegistry(first)
	if err := r.Scan(); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	// Name collisions are case-insensitive; "hello" loses to "Hello".
	r.Augment(second)

	if got := len(r.Names()); got != 1 {
		t.Fatalf("Names() = %v, want one module", r.Names())
	}
	cfg, err := r.Config("HELLO")
	if err != nil {
		t.Fatalf("Config failed: %v", err)
	}
	if cfg.Get("Description") != "first" {
		t.Errorf("Description = %q, want the first registration kept", cfg.Get("Description"))
	}
}

func TestRegistryEmptyScan(t *testing.T) {
	r := NewRegistry(t.TempDir())
	if err := r.Scan(); !errors.Is(err, swerrors.ErrNotFound) {
		t.Errorf("Scan error = %v, want ErrNotFound", err)
	}
}

func TestRegistryModuleLazyInstantiation(t *testing.T) {
	root := t.TempDir()
	writeRawTextModule(t, root, "hello", "Hello", "")

	r := NewRegistry(root)
	if err := r.Scan(); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	m1, err := r.Module("Hello")
	if err != nil {
		t.Fatalf("Module failed: %v", err)
	}
	m2, err := r.Module("hello")
	if err != nil {
		t.Fatalf("Module failed: %v", err)
	}
	if m1 != m2 {
		t.Error("Module() should return the same instance for one name")
	}
	if _, err := r.Module("Nonexistent"); !errors.Is(err, swerrors.ErrNotFound) {
		t.Errorf("Module(Nonexistent) error = %v, want ErrNotFound", err)
	}
}

func TestRegistryLoadAll(t *testing.T) {
	root := t.TempDir()
	writeRawTextModule(t, root, "hello", "Hello", "")
	writeRawDictModule(t, root, "strongs", "Strongs")
	writeRawTextModule(t, root, "locked", "Locked", "CipherKey=\n")

	r := NewRegistry(root)
	if err := r.Scan(); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	results := r.LoadAll(Lazy, 0)
	if len(results) != 3 {
		t.Fatalf("LoadAll returned %d results, want 3", len(results))
	}
	byName := make(map[string]error)
	for _, res := range results {
		byName[res.Name] = res.Err
	}
	if byName["Hello"] != nil || byName["Strongs"] != nil {
		t.Errorf("unexpected load failures: %v", byName)
	}
	if !errors.Is(byName["Locked"], swerrors.ErrLocked) {
		t.Errorf("Locked load error = %v, want ErrLocked", byName["Locked"])
	}

	// Loaded modules answer queries without another Load call.
	m, err := r.Module("Hello")
	if err != nil {
		t.Fatalf("Module failed: %v", err)
	}
	if m.State() != Loaded {
		t.Fatalf("State() = %v, want Loaded", m.State())
	}
	text, err := m.VerseText(versification.Ref{Book: "Gen", Chapter: 1, Verse: 1})
	if err != nil || text != "Hello" {
		t.Errorf("VerseText = %q, %v", text, err)
	}
}

func TestRegistryLoadAllCap(t *testing.T) {
	root := t.TempDir()
	writeRawTextModule(t, root, "aaa", "Aaa", "")
	writeRawTextModule(t, root, "bbb", "Bbb", "")
	writeRawTextModule(t, root, "ccc", "Ccc", "")

	r := NewRegistry(root)
	if err := r.Scan(); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	results := r.LoadAll(Lazy, 2)
	if len(results) != 2 {
		t.Fatalf("LoadAll(limit=2) returned %d results, want 2", len(results))
	}
}
