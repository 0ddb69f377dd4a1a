// Package conf parses SWORD module .conf files from a mods.d directory
// and classifies the module they describe.
package conf

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/FocuswithJustin/swordshelf/core/errors"
	"github.com/FocuswithJustin/swordshelf/internal/logging"
)

// DriverKind identifies the content driver named by a conf's ModDrv
// field. The set is closed: anything else marks the module unusable.
type DriverKind int

const (
	DriverUnknown DriverKind = iota
	DriverRawText
	DriverZText
	DriverRawCom
	DriverRawCom4
	DriverZCom
	DriverRawLD
	DriverRawLD4
	DriverZLD
	DriverRawGenBook
	DriverRawFiles
)

var driverNames = map[DriverKind]string{
	DriverUnknown:    "Unknown",
	DriverRawText:    "RawText",
	DriverZText:      "zText",
	DriverRawCom:     "RawCom",
	DriverRawCom4:    "RawCom4",
	DriverZCom:       "zCom",
	DriverRawLD:      "RawLD",
	DriverRawLD4:     "RawLD4",
	DriverZLD:        "zLD",
	DriverRawGenBook: "RawGenBook",
	DriverRawFiles:   "RawFiles",
}

func (d DriverKind) String() string {
	if s, ok := driverNames[d]; ok {
		return s
	}
	return "Unknown"
}

// ParseDriver maps a ModDrv value to its DriverKind.
func ParseDriver(s string) (DriverKind, bool) {
	switch s {
	case "RawText":
		return DriverRawText, true
	case "zText":
		return DriverZText, true
	case "RawCom":
		return DriverRawCom, true
	case "RawCom4":
		return DriverRawCom4, true
	case "zCom":
		return DriverZCom, true
	case "RawLD":
		return DriverRawLD, true
	case "RawLD4":
		return DriverRawLD4, true
	case "zLD":
		return DriverZLD, true
	case "RawGenBook":
		return DriverRawGenBook, true
	case "RawFiles":
		return DriverRawFiles, true
	}
	return DriverUnknown, false
}

// Category is the broad content family a driver produces.
type Category int

const (
	CategoryUnknown Category = iota
	CategoryBible
	CategoryCommentary
	CategoryDictionary
	CategoryGeneral
)

func (c Category) String() string {
	switch c {
	case CategoryBible:
		return "Bible"
	case CategoryCommentary:
		return "Commentary"
	case CategoryDictionary:
		return "Dictionary"
	case CategoryGeneral:
		return "General"
	}
	return "Unknown"
}

// DriverCategory classifies a driver into its content category.
func DriverCategory(d DriverKind) Category {
	switch d {
	case DriverRawText, DriverZText:
		return CategoryBible
	case DriverRawCom, DriverRawCom4, DriverZCom:
		return CategoryCommentary
	case DriverRawLD, DriverRawLD4, DriverZLD:
		return CategoryDictionary
	case DriverRawGenBook, DriverRawFiles:
		return CategoryGeneral
	}
	return CategoryUnknown
}

// DriverDisplayName maps a ModDrv value to the name shown to users.
var DriverDisplayName = map[string]string{
	"RawText":    "Bible",
	"zText":      "compressed Bible",
	"RawCom":     "commentary",
	"RawCom4":    "commentary",
	"zCom":       "compressed commentary",
	"RawLD":      "dictionary",
	"RawLD4":     "dictionary",
	"zLD":        "compressed dictionary",
	"RawGenBook": "general book",
	"RawFiles":   "raw files",
}

// Pair is one suffixed entry of a multi-entry field, e.g.
// History_1.4=fixed typos parses to {"1.4", "fixed typos"}.
type Pair struct {
	Suffix string
	Value  string
}

// ModuleConfig is a parsed and classified .conf file.
type ModuleConfig struct {
	Name     string // from the [Name] header line
	Abbrev   string // conf file stem
	ConfPath string

	// Fields holds plain field values in file order. A field that
	// appeared more than once with differing values has all of them.
	Fields map[string][]string

	// Multi holds the suffixed multi-entry fields (History etc.).
	Multi map[string][]Pair

	Driver   DriverKind
	Category Category
	Encoding string
	Locked   bool   // CipherKey present but empty
	Key      string // CipherKey value when non-empty
	Usable   bool
}

// Get returns the first value of a plain field, or "".
func (mc *ModuleConfig) Get(field string) string {
	if vs := mc.Fields[field]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}

// GetAll returns every value a plain field accumulated.
func (mc *ModuleConfig) GetAll(field string) []string {
	return mc.Fields[field]
}

// Pairs returns the suffixed entries of a multi-entry field.
func (mc *ModuleConfig) Pairs(field string) []Pair {
	return mc.Multi[field]
}

// DataPath returns the module's data directory, relative to the SWORD
// root.
func (mc *ModuleConfig) DataPath() string {
	return mc.Get("DataPath")
}

// Language returns the module's Lang field, which may be absent.
func (mc *ModuleConfig) Language() string {
	return mc.Get("Lang")
}

// Features returns all declared Feature values.
func (mc *ModuleConfig) Features() []string {
	return mc.Fields["Feature"]
}

// InstallSize returns the declared install size in bytes, or 0.
func (mc *ModuleConfig) InstallSize() int {
	n, err := strconv.Atoi(mc.Get("InstallSize"))
	if err != nil {
		return 0
	}
	return n
}

// IsCompressed reports whether the driver reads compressed data files.
func (mc *ModuleConfig) IsCompressed() bool {
	switch mc.Driver {
	case DriverZText, DriverZCom, DriverZLD:
		return true
	}
	return false
}

// CompressType returns the declared compression ("ZIP", "XZ", "LZSS").
func (mc *ModuleConfig) CompressType() string {
	return mc.Get("CompressType")
}

// BlockType returns the compression block granularity, defaulting to
// BOOK when the conf omits it.
func (mc *ModuleConfig) BlockType() string {
	if v := mc.Get("BlockType"); v != "" {
		return v
	}
	return "BOOK"
}

// Versification returns the verse numbering scheme, defaulting to KJV.
func (mc *ModuleConfig) Versification() string {
	if v := mc.Get("Versification"); v != "" {
		return v
	}
	return "KJV"
}

// finish applies known module bug fixes and classifies the config.
// It mirrors the quirk list accumulated from real module archives.
func (mc *ModuleConfig) finish() {
	// Fix known module bugs or inconsistencies
	if vs, ok := mc.Fields["BlockType"]; ok && vs[0] == "Book" {
		vs[0] = "BOOK"
	}
	if vs, ok := mc.Fields["ModDrv"]; ok && vs[0] == "ztext" {
		vs[0] = "zText"
	}

	if mc.Name == "" {
		logging.Error("conf file has no [Name] header", "module", mc.Abbrev)
		mc.Name = mc.Abbrev
	}

	modDrv := mc.Get("ModDrv")
	if modDrv == "" {
		logging.Error("conf file has no ModDrv", "module", mc.Abbrev)
		mc.Usable = false
	} else if d, ok := ParseDriver(modDrv); ok {
		mc.Driver = d
		mc.Category = DriverCategory(d)
		mc.Usable = true
	} else {
		logging.Error("unknown ModDrv", "module", mc.Abbrev, "moddrv", modDrv)
		mc.Usable = false
	}

	mc.Encoding = "ISO-8859-1"
	if v := mc.Get("Encoding"); v != "" {
		if v != "UTF-8" {
			logging.Warn("unexpected Encoding value", "module", mc.Abbrev, "encoding", v)
		}
		mc.Encoding = v
		switch mc.Abbrev {
		// These modules declare an encoding but are really Latin-9
		case "ab", "barnes", "navelinked", "dandettebiblen":
			mc.Encoding = "ISO-8859-15"
		}
	}

	if vs, ok := mc.Fields["CipherKey"]; ok {
		if vs[0] == "" {
			mc.Locked = true
		} else {
			mc.Key = vs[0]
		}
	}
}

// FindConfFiles returns the sorted .conf paths under swordDir/mods.d.
// Non-conf entries are logged and skipped.
func FindConfFiles(swordDir string) ([]string, error) {
	modsDir := filepath.Join(swordDir, "mods.d")

	entries, err := os.ReadDir(modsDir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", modsDir)
	}

	var confFiles []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".conf") {
			logging.Warn("ignoring non-conf entry in mods.d", "entry", entry.Name())
			continue
		}
		confFiles = append(confFiles, filepath.Join(modsDir, entry.Name()))
	}
	return confFiles, nil
}
