package drivers

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/FocuswithJustin/swordshelf/core/conf"
	swerrors "github.com/FocuswithJustin/swordshelf/core/errors"
)

// writeRawDict lays out a RawLD .idx/.dat pair from key/entry pairs.
func writeRawDict(t *testing.T, dir, stem string, pairs [][2]string) {
	t.Helper()
	var dat bytes.Buffer
	var idx bytes.Buffer
	for _, p := range pairs {
		chunk := p[0] + "\n" + p[1] + "\n"
		var rec [6]byte
		binary.LittleEndian.PutUint32(rec[:], uint32(dat.Len()))
		binary.LittleEndian.PutUint16(rec[4:], uint16(len(chunk)))
		idx.Write(rec[:])
		dat.WriteString(chunk)
	}
	if err := os.WriteFile(filepath.Join(dir, stem+".idx"), idx.Bytes(), 0644); err != nil {
		t.Fatalf("write idx failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, stem+".dat"), dat.Bytes(), 0644); err != nil {
		t.Fatalf("write dat failed: %v", err)
	}
}

func rawDictConf(t *testing.T, abbrev string) *conf.ModuleConfig {
	t.Helper()
	return parseTestConf(t, abbrev, "["+abbrev+"]\nDataPath=./modules/lexdict/rawld/"+abbrev+"/"+abbrev+"\nModDrv=RawLD\nLang=en\n")
}

func TestRawDictEntries(t *testing.T) {
	dir := t.TempDir()
	writeRawDict(t, dir, "dict", [][2]string{
		{"Aaron", "Brother of Moses."},
		{"abel", "Son of Adam."},
		{"AARON", "A second Aaron entry."},
	})
	cfg := rawDictConf(t, "dict")

	for _, eager := range []bool{false, true} {
		d, err := OpenDictSource(cfg, dir, "dict", Options{Eager: eager})
		if err != nil {
			t.Fatalf("OpenDictSource(eager=%v) failed: %v", eager, err)
		}

		// Keys fold to upper case, duplicates accumulate.
		entries, err := d.Entry("aaron")
		if err != nil {
			t.Fatalf("Entry failed: %v", err)
		}
		if len(entries) != 2 || entries[0] != "Brother of Moses." || entries[1] != "A second Aaron entry." {
			t.Errorf("eager=%v: Entry(aaron) = %v", eager, entries)
		}

		entries, err = d.Entry("ABEL")
		if err != nil {
			t.Fatalf("Entry failed: %v", err)
		}
		if len(entries) != 1 || entries[0] != "Son of Adam." {
			t.Errorf("eager=%v: Entry(ABEL) = %v", eager, entries)
		}

		if _, err := d.Entry("MOSES"); !errors.Is(err, swerrors.ErrNotFound) {
			t.Errorf("Entry(MOSES) error = %v, want ErrNotFound", err)
		}
	}
}

func TestRawDictStrongsPrefix(t *testing.T) {
	tests := []struct {
		abbrev string
		want   string
	}{
		{"strongsgreek", "G00025"},
		{"strongshebrew", "H00025"},
		{"websters", "00025"}, // only the known lexicons get prefixed
	}

	for _, tt := range tests {
		t.Run(tt.abbrev, func(t *testing.T) {
			dir := t.TempDir()
			writeRawDict(t, dir, "d", [][2]string{{"00025", "agapao: to love."}})
			d, err := OpenDictSource(rawDictConf(t, tt.abbrev), dir, "d", Options{})
			if err != nil {
				t.Fatalf("OpenDictSource failed: %v", err)
			}
			if !d.Has(tt.want) {
				t.Errorf("key %q missing; have %v", tt.want, d.Keys())
			}
		})
	}
}

func TestDictCrossRefExpansion(t *testing.T) {
	dir := t.TempDir()
	writeRawDict(t, dir, "d", [][2]string{
		{"AARON; AARONITES", "Priestly line."},
		{"ABEL, CITY OF", "A city."},
		{"AARON", "Already present."},
	})
	d, err := OpenDictSource(rawDictConf(t, "d"), dir, "d", Options{})
	if err != nil {
		t.Fatalf("OpenDictSource failed: %v", err)
	}

	// AARON existed already and must keep its own entry.
	entries, err := d.Entry("AARON")
	if err != nil {
		t.Fatalf("Entry(AARON) failed: %v", err)
	}
	if len(entries) != 1 || entries[0] != "Already present." {
		t.Errorf("Entry(AARON) = %v, want the original entry", entries)
	}

	// AARONITES and ABEL are auto-added pointers.
	entries, err = d.Entry("AARONITES")
	if err != nil {
		t.Fatalf("Entry(AARONITES) failed: %v", err)
	}
	if entries[0] != "See ''AARON; AARONITES'' (auto-added)" {
		t.Errorf("Entry(AARONITES) = %q", entries[0])
	}

	entries, err = d.Entry("ABEL")
	if err != nil {
		t.Fatalf("Entry(ABEL) failed: %v", err)
	}
	if entries[0] != "See ''ABEL, CITY OF'' (auto-added)" {
		t.Errorf("Entry(ABEL) = %q", entries[0])
	}
}

func TestDictCrossRefMerging(t *testing.T) {
	dir := t.TempDir()
	writeRawDict(t, dir, "d", [][2]string{
		{"ZION; SION", "The hill."},
		{"ZION, MOUNT", "The mount."},
	})
	d, err := OpenDictSource(rawDictConf(t, "d"), dir, "d", Options{})
	if err != nil {
		t.Fatalf("OpenDictSource failed: %v", err)
	}

	// Both compound keys want to add ZION; the pointers merge.
	entries, err := d.Entry("ZION")
	if err != nil {
		t.Fatalf("Entry(ZION) failed: %v", err)
	}
	want := "See ''ZION; SION'' or ''ZION, MOUNT'' (auto-added)"
	if entries[0] != want {
		t.Errorf("Entry(ZION) = %q, want %q", entries[0], want)
	}
}

// Running the expansion again must not grow the key set or rewrite the
// auto-added pointers.
func TestDictCrossRefExpansionIdempotent(t *testing.T) {
	dir := t.TempDir()
	writeRawDict(t, dir, "d", [][2]string{
		{"AARON; AARONITES", "Priestly line."},
		{"ZION; SION", "The hill."},
		{"ZION, MOUNT", "The mount."},
	})
	d, err := OpenDictSource(rawDictConf(t, "d"), dir, "d", Options{})
	if err != nil {
		t.Fatalf("OpenDictSource failed: %v", err)
	}

	before := d.Keys()
	wantAaronites, err := d.Entry("AARONITES")
	if err != nil {
		t.Fatalf("Entry(AARONITES) failed: %v", err)
	}
	wantZion, err := d.Entry("ZION")
	if err != nil {
		t.Fatalf("Entry(ZION) failed: %v", err)
	}

	d.expandCrossRefs(d.store.(mutableStore))

	after := d.Keys()
	if len(after) != len(before) {
		t.Fatalf("second expansion grew keys from %d to %d: %v", len(before), len(after), after)
	}
	for i := range before {
		if after[i] != before[i] {
			t.Errorf("key %d changed: %q -> %q", i, before[i], after[i])
		}
	}

	entries, err := d.Entry("AARONITES")
	if err != nil {
		t.Fatalf("Entry(AARONITES) failed: %v", err)
	}
	if len(entries) != len(wantAaronites) || entries[0] != wantAaronites[0] {
		t.Errorf("Entry(AARONITES) changed: %v -> %v", wantAaronites, entries)
	}

	entries, err = d.Entry("ZION")
	if err != nil {
		t.Fatalf("Entry(ZION) failed: %v", err)
	}
	if len(entries) != len(wantZion) || entries[0] != wantZion[0] {
		t.Errorf("Entry(ZION) changed: %v -> %v", wantZion, entries)
	}
}

// buildZLDBlock packs entries into one inflatable block: a count,
// then (offset, size) pairs, then the NUL-terminated entries.
func buildZLDBlock(t *testing.T, entries []string) []byte {
	t.Helper()
	header := 4 + 8*len(entries)
	var body bytes.Buffer
	block := make([]byte, header)
	binary.LittleEndian.PutUint32(block, uint32(len(entries)))
	for i, e := range entries {
		binary.LittleEndian.PutUint32(block[4+i*8:], uint32(header+body.Len()))
		binary.LittleEndian.PutUint32(block[8+i*8:], uint32(len(e)+1))
		body.WriteString(e)
		body.WriteByte(0)
	}
	return append(block, body.Bytes()...)
}

func createZLDModule(t *testing.T, keys []string, entries []string) (*conf.ModuleConfig, string) {
	t.Helper()
	dir := t.TempDir()

	compressed := zlibCompress(t, buildZLDBlock(t, entries))
	if err := os.WriteFile(filepath.Join(dir, "d.zdt"), compressed, 0644); err != nil {
		t.Fatalf("write zdt failed: %v", err)
	}

	zdx := make([]byte, 8)
	binary.LittleEndian.PutUint32(zdx, 0)
	binary.LittleEndian.PutUint32(zdx[4:], uint32(len(compressed)))
	if err := os.WriteFile(filepath.Join(dir, "d.zdx"), zdx, 0644); err != nil {
		t.Fatalf("write zdx failed: %v", err)
	}

	var dat bytes.Buffer
	var idx bytes.Buffer
	for i, key := range keys {
		rec := []byte(key + "\r\n")
		var nums [8]byte
		binary.LittleEndian.PutUint32(nums[:], 0)         // block
		binary.LittleEndian.PutUint32(nums[4:], uint32(i)) // chunk
		rec = append(rec, nums[:]...)

		var ptr [8]byte
		binary.LittleEndian.PutUint32(ptr[:], uint32(dat.Len()))
		binary.LittleEndian.PutUint32(ptr[4:], uint32(len(rec)))
		idx.Write(ptr[:])
		dat.Write(rec)
	}
	if err := os.WriteFile(filepath.Join(dir, "d.idx"), idx.Bytes(), 0644); err != nil {
		t.Fatalf("write idx failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "d.dat"), dat.Bytes(), 0644); err != nil {
		t.Fatalf("write dat failed: %v", err)
	}

	cfg := parseTestConf(t, "zdict",
		"[ZDict]\nDataPath=./modules/lexdict/zld/zdict/d\nModDrv=zLD\nCompressType=ZIP\nLang=en\n")
	return cfg, dir
}

func TestZLDEntries(t *testing.T) {
	cfg, dir := createZLDModule(t,
		[]string{"Aaron", "Abel"},
		[]string{"Brother of Moses.", "Son of Adam."})

	for _, eager := range []bool{false, true} {
		d, err := OpenDictSource(cfg, dir, "d", Options{Eager: eager})
		if err != nil {
			t.Fatalf("OpenDictSource(eager=%v) failed: %v", eager, err)
		}

		// Compressed dictionaries keep original key case.
		entries, err := d.Entry("Aaron")
		if err != nil {
			t.Fatalf("Entry failed: %v", err)
		}
		if len(entries) != 1 || entries[0] != "Brother of Moses." {
			t.Errorf("eager=%v: Entry(Aaron) = %v", eager, entries)
		}
		if d.Has("AARON") {
			t.Errorf("eager=%v: upper-cased key should not resolve", eager)
		}

		entries, err = d.Entry("Abel")
		if err != nil {
			t.Fatalf("Entry failed: %v", err)
		}
		if entries[0] != "Son of Adam." {
			t.Errorf("eager=%v: Entry(Abel) = %v", eager, entries)
		}
	}
}

func TestZLDDuplicateKeys(t *testing.T) {
	cfg, dir := createZLDModule(t,
		[]string{"Aaron", "Aaron", "Aaron"},
		[]string{"First.", "Second.", "Third."})

	for _, eager := range []bool{false, true} {
		d, err := OpenDictSource(cfg, dir, "d", Options{Eager: eager})
		if err != nil {
			t.Fatalf("OpenDictSource(eager=%v) failed: %v", eager, err)
		}

		// Repeated keys are renamed rather than accumulated.
		for key, want := range map[string]string{
			"Aaron":     "First.",
			"Aaron (2)": "Second.",
			"Aaron (3)": "Third.",
		} {
			entries, err := d.Entry(key)
			if err != nil {
				t.Fatalf("eager=%v: Entry(%q) failed: %v", eager, key, err)
			}
			if entries[0] != want {
				t.Errorf("eager=%v: Entry(%q) = %q, want %q", eager, key, entries[0], want)
			}
		}
	}
}

// A compressed block that does not inflate is replaced with empty
// entries instead of refusing the module.
func TestZLDCorruptBlockSubstituted(t *testing.T) {
	cfg, dir := createZLDModule(t,
		[]string{"Aaron", "Abel"},
		[]string{"Brother of Moses.", "Son of Adam."})

	// Garbage of the original length keeps the .zdx offsets readable.
	zdtPath := filepath.Join(dir, "d.zdt")
	info, err := os.Stat(zdtPath)
	if err != nil {
		t.Fatalf("stat zdt failed: %v", err)
	}
	garbage := bytes.Repeat([]byte{0xff}, int(info.Size()))
	if err := os.WriteFile(zdtPath, garbage, 0644); err != nil {
		t.Fatalf("overwrite zdt failed: %v", err)
	}

	for _, eager := range []bool{false, true} {
		d, err := OpenDictSource(cfg, dir, "d", Options{Eager: eager})
		if err != nil {
			t.Fatalf("OpenDictSource(eager=%v) failed: %v", eager, err)
		}

		entries, err := d.Entry("Aaron")
		if err != nil {
			t.Fatalf("eager=%v: Entry(Aaron) failed: %v", eager, err)
		}
		if len(entries) != 1 || entries[0] != "" {
			t.Errorf("eager=%v: Entry(Aaron) = %v, want one empty entry", eager, entries)
		}
	}
}

func TestOpenDictSourceValidation(t *testing.T) {
	dir := t.TempDir()

	cfg := parseTestConf(t, "x", "[X]\nDataPath=./x/x\nModDrv=zLD\n")
	if _, err := OpenDictSource(cfg, dir, "x", Options{}); !errors.Is(err, swerrors.ErrConfig) {
		t.Errorf("zLD without CompressType error = %v, want ErrConfig", err)
	}

	cfg = parseTestConf(t, "x", "[X]\nDataPath=./x/x\nModDrv=zText\nCompressType=ZIP\n")
	if _, err := OpenDictSource(cfg, dir, "x", Options{}); !errors.Is(err, swerrors.ErrUnsupported) {
		t.Errorf("verse driver error = %v, want ErrUnsupported", err)
	}

	cfg = parseTestConf(t, "x", "[X]\nDataPath=./x/x\nModDrv=RawLD\n")
	if _, err := OpenDictSource(cfg, dir, "x", Options{}); !errors.Is(err, swerrors.ErrMissingFile) {
		t.Errorf("missing files error = %v, want ErrMissingFile", err)
	}
}
