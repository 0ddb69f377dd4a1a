package conf

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/FocuswithJustin/swordshelf/core/errors"
	"github.com/FocuswithJustin/swordshelf/internal/logging"
)

// confDocument is the parse tree for a .conf file.
type confDocument struct {
	Lines []confLine `parser:"@@*"`
}

// confLine is a single meaningful physical line.
type confLine struct {
	Section  string `parser:"  @Section"`
	Property string `parser:"| @Property"`
	Text     string `parser:"| @Text"`
}

// text returns the raw line content regardless of which token matched.
func (l confLine) text() string {
	if l.Section != "" {
		return l.Section
	}
	if l.Property != "" {
		return l.Property
	}
	return l.Text
}

// confLexer tokenizes .conf files line by line. Order matters: more
// specific patterns come first.
var confLexer = lexer.MustSimple([]lexer.SimpleRule{
	// Comment lines (full line starting with # or ;)
	{Name: "Comment", Pattern: `[#;][^\r\n]*`},
	// Section header line: [ModuleName]
	{Name: "Section", Pattern: `\[[^\]\r\n]+\]`},
	// Property line: Key=Value, split again at the first '=' later
	{Name: "Property", Pattern: `[^\[#;= \t\r\n][^=\r\n]*=[^\r\n]*`},
	// Whitespace (spaces/tabs)
	{Name: "Whitespace", Pattern: `[ \t]+`},
	// Any other non-blank line: continuation payload or junk
	{Name: "Text", Pattern: `[^\r\n]+`},
	// Newlines (blank lines collapse here)
	{Name: "Newline", Pattern: `[\r\n]+`},
})

var confParser = participle.MustBuild[confDocument](
	participle.Lexer(confLexer),
	participle.Elide("Comment", "Whitespace", "Newline"),
)

// specialFields accumulate suffixed entries (Field_suffix=value) and
// turn duplicate plain entries into suffix pairs.
var specialFields = map[string]bool{
	"History":           true,
	"Description":       true,
	"About":             true,
	"Copyright":         true,
	"ShortCopyright":    true,
	"DistributionNotes": true,
	"Notes":             true,
}

// knownFields is the union of descriptive and technical field names
// seen across module archives. Unknown fields are logged, not dropped.
var knownFields = map[string]bool{
	"Name": true, "Abbreviation": true, "Font": true, "Lang": true,
	"Direction": true, "Version": true, "History": true, "Description": true,
	"TextSource": true, "Source": true, "LCSH": true, "ShortPromo": true,
	"Promo": true, "Obsoletes": true, "GlbTextDir": true,
	"DistributionSource": true, "DistributionNotes": true,
	"DistributionLicense": true, "Category": true, "Feature": true,
	"Versification": true, "Scope": true, "About": true, "Notes": true,
	"NoticeLink": true, "NoticeText": true,
	"Copyright": true, "CopyrightHolder": true, "CopyrightDate": true,
	"CopyrightContactName": true, "CopyrightContactEmail": true,
	"CopyrightContactAddress": true, "CopyrightContactNotes": true,
	"ShortCopyright": true, "CopyrightNotes": true, "CopyrightYear": true,
	"DictionaryModule": true, "ReferenceBible": true,
	"Siglum1": true, "Siglum2": true,
	"ModDrv": true, "DataPath": true, "Encoding": true, "SourceType": true,
	"GlobalOptionFilter": true, "CaseSensitiveKeys": true, "SearchOption": true,
	"CompressType": true, "BlockType": true,
	"MinimumVersion": true, "MinimumSwordVersion": true, "SwordVersionDate": true,
	"OSISVersion": true, "minMKVersion": true,
	"DisplayLevel": true, "LangSortOrder": true, "LangSortSkipChars": true,
	"StrongsPadding": true,
	"CipherKey":      true, "InstallSize": true, "BlockCount": true,
	"OSISqToTick": true, "MinimumBlockNumber": true, "MaximumBlockNumber": true,
}

// ParseConfFile reads and parses one .conf file. The module
// abbreviation is the file stem.
func ParseConfFile(path string) (*ModuleConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewConfig(strings.TrimSuffix(filepath.Base(path), ".conf"), "", "read failed", err)
	}
	abbrev := strings.TrimSuffix(filepath.Base(path), ".conf")
	mc, err := ParseConf(abbrev, data)
	if err != nil {
		return nil, err
	}
	mc.ConfPath = path
	return mc, nil
}

// ParseConf parses conf content for a module known by abbrev. A
// leading byte-order mark in any of its encodings is stripped.
func ParseConf(abbrev string, data []byte) (*ModuleConfig, error) {
	content := string(data)
	switch {
	case strings.HasPrefix(content, "\uFEFF"):
		content = content[len("\uFEFF"):]
	case strings.HasPrefix(content, "\xfe\xff"), strings.HasPrefix(content, "\xff\xfe"):
		content = content[2:]
	}

	doc, err := confParser.ParseString(abbrev, content)
	if err != nil {
		return nil, &errors.ConfigError{Module: abbrev, Message: "tokenize failed", Err: err}
	}

	mc := &ModuleConfig{
		Abbrev: abbrev,
		Fields: make(map[string][]string),
		Multi:  make(map[string][]Pair),
	}

	pending := ""
	first := true
	for _, ln := range doc.Lines {
		raw := ln.text()
		if pending != "" {
			raw = pending + raw
			pending = ""
		}
		if strings.HasSuffix(raw, `\`) {
			pending = strings.TrimSuffix(raw, `\`)
			continue
		}
		// The burjudson module wraps a URL without a continuation
		// marker.
		if abbrev == "burjudson" && strings.HasSuffix(raw, " available from ") {
			logging.ConfQuirk(abbrev, "burjudson_continuation", raw)
			pending = raw
			continue
		}

		if first {
			first = false
			if strings.HasPrefix(raw, "[") && strings.HasSuffix(raw, "]") && !strings.Contains(raw, "=") {
				mc.Name = raw[1 : len(raw)-1]
				continue
			}
			logging.Error("first conf line is not a [Name] header", "module", abbrev, "line", raw)
			// fall through and treat it as an ordinary line
		}
		mc.addLine(raw)
	}
	if pending != "" {
		// Trailing continuation with no following line
		mc.addLine(pending)
	}

	mc.finish()
	return mc, nil
}

// addLine splits one logical Key=Value line into the field maps,
// applying the duplicate rules.
func (mc *ModuleConfig) addLine(raw string) {
	// strongsrealgreek has a History line with an extra '='
	if strings.HasPrefix(raw, "History=1.4-081031=") {
		logging.ConfQuirk(mc.Abbrev, "history_equals", raw)
		raw = strings.Replace(raw, "=", "_", 1)
	}

	idx := strings.Index(raw, "=")
	if idx < 0 {
		logging.Error("conf line has no '=' and will be ignored", "module", mc.Abbrev, "line", raw)
		return
	}
	field, value := raw[:idx], raw[idx+1:]

	// Spelling error in several modules (nheb, khmernt, morphgnt, ...)
	if field == "MinumumVersion" {
		field = "MinimumVersion"
	}
	// romcor declares "Zip"
	if field == "CompressType" && value == "Zip" {
		value = "ZIP"
	}

	// Suffixed multi-entry fields: History_1.4=... keeps its suffix.
	if us := strings.Index(field, "_"); us > 0 {
		if base := field[:us]; specialFields[base] {
			mc.Multi[base] = append(mc.Multi[base], Pair{Suffix: field[us+1:], Value: value})
			return
		}
	}

	if !knownFields[field] {
		logging.Warn("unknown conf field", "module", mc.Abbrev, "field", field)
	}

	existing := mc.Fields[field]
	if len(existing) > 0 {
		for _, v := range existing {
			if v == value {
				logging.Info("conf file has duplicate lines", "module", mc.Abbrev, "field", field)
				return
			}
		}
		if specialFields[field] {
			// Differing duplicates of a multi-entry field become
			// suffix pairs with an unknown suffix.
			for _, v := range existing {
				mc.Multi[field] = append(mc.Multi[field], Pair{Suffix: "???", Value: v})
			}
			mc.Multi[field] = append(mc.Multi[field], Pair{Suffix: "???", Value: value})
			delete(mc.Fields, field)
			return
		}
		mc.Fields[field] = append(existing, value)
		return
	}
	mc.Fields[field] = []string{value}
}
