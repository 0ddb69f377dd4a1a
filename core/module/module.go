// Package module ties a parsed configuration to its content driver and
// tracks the load lifecycle of one installed module.
package module

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/FocuswithJustin/swordshelf/core/cache"
	"github.com/FocuswithJustin/swordshelf/core/conf"
	"github.com/FocuswithJustin/swordshelf/core/drivers"
	swerrors "github.com/FocuswithJustin/swordshelf/core/errors"
	"github.com/FocuswithJustin/swordshelf/core/versification"
	"github.com/FocuswithJustin/swordshelf/internal/logging"
)

// autoMemoryMaxSize is the InstallSize threshold, in bytes, below which
// an auto-mode load reads the whole module into memory up front.
const autoMemoryMaxSize = 40000

// ErrNotLoaded is returned by read accessors before a successful Load.
var ErrNotLoaded = errors.New("module not loaded")

// State is a module's position in the load lifecycle.
type State int

const (
	Unloaded State = iota
	Loading
	Loaded
	Refused
)

func (s State) String() string {
	switch s {
	case Unloaded:
		return "unloaded"
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	case Refused:
		return "refused"
	}
	return "unknown"
}

// Mode selects how much of a module Load pulls into memory.
type Mode int

const (
	// Auto decides per module: small installs load eagerly, the rest
	// index lazily.
	Auto Mode = iota
	// Lazy builds the index only; entries are read and decoded on
	// first access.
	Lazy
	// Eager decodes the whole module at load time.
	Eager
)

// Module is one installed content unit: a configuration plus the
// driver that reads its index and data files.
type Module struct {
	cfg      *conf.ModuleConfig
	swordDir string

	state   State
	refusal error

	blocks  *cache.BlockCache
	verses  *drivers.VerseSource
	dict    *drivers.DictSource
	genbook *drivers.GenBookSource
}

// New wraps a parsed configuration. swordDir is the search root the
// conf was found under; DataPath resolves relative to it.
func New(cfg *conf.ModuleConfig, swordDir string) *Module {
	return &Module{cfg: cfg, swordDir: swordDir}
}

// Name returns the module's declared name.
func (m *Module) Name() string { return m.cfg.Name }

// Config returns the module's parsed configuration.
func (m *Module) Config() *conf.ModuleConfig { return m.cfg }

// State returns the module's load state.
func (m *Module) State() State { return m.state }

// Refusal returns why the module refused to load, or nil.
func (m *Module) Refusal() error { return m.refusal }

// Load reads the module's index files and, eagerly or lazily, its
// content. Loading an already-loaded module is a no-op; a refused
// module stays refused and returns the original cause.
func (m *Module) Load(mode Mode) error {
	switch m.state {
	case Loaded:
		return nil
	case Refused:
		return m.refusal
	}
	m.state = Loading

	if err := m.load(mode); err != nil {
		m.state = Refused
		m.refusal = err
		logging.ModuleError(m.cfg.Name, "load", err)
		return err
	}
	m.state = Loaded
	return nil
}

func (m *Module) load(mode Mode) error {
	if !m.cfg.Usable {
		return swerrors.NewConfig(m.cfg.Name, "ModDrv", "module is not usable", nil)
	}
	if m.cfg.Locked {
		return swerrors.NewLocked(m.cfg.Name)
	}

	eager := mode == Eager
	if mode == Auto {
		size := m.cfg.InstallSize()
		eager = size > 0 && size <= autoMemoryMaxSize
	}

	m.blocks = cache.NewDefaultBlockCache()
	opts := drivers.Options{Eager: eager, Cache: m.blocks}
	if m.cfg.Key != "" {
		opts.Key = []byte(m.cfg.Key)
	}

	dir, stem := m.dataLocation()
	logging.ModuleLoading(m.cfg.Name, m.cfg.Driver.String(), eager)

	var err error
	switch m.cfg.Driver {
	case conf.DriverRawText, conf.DriverZText,
		conf.DriverRawCom, conf.DriverRawCom4, conf.DriverZCom:
		m.verses, err = drivers.OpenVerseSource(m.cfg, dir, opts)
	case conf.DriverRawLD, conf.DriverRawLD4, conf.DriverZLD:
		m.dict, err = drivers.OpenDictSource(m.cfg, dir, stem, opts)
	case conf.DriverRawGenBook:
		m.genbook, err = drivers.OpenGenBookSource(m.cfg, dir, stem, opts)
	default:
		err = swerrors.NewUnsupported(m.cfg.Driver.String(), "no content loader for this driver", nil)
	}
	return err
}

// dataLocation resolves DataPath against the search root. Dictionary
// and book modules conventionally point DataPath at the data file stem
// rather than a directory; when the resolved path is not a directory,
// its last element becomes the stem.
func (m *Module) dataLocation() (dir, stem string) {
	rel := strings.TrimPrefix(m.cfg.DataPath(), "./")
	rel = strings.TrimSuffix(rel, "/")
	dir = filepath.Join(m.swordDir, filepath.FromSlash(rel))
	stem = m.cfg.Abbrev

	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		stem = filepath.Base(dir)
		dir = filepath.Dir(dir)
	}
	return dir, stem
}

// VerseText returns the text stored for a verse reference. Valid only
// for loaded Bible and commentary modules.
func (m *Module) VerseText(ref versification.Ref) (string, error) {
	if m.state != Loaded {
		return "", ErrNotLoaded
	}
	if m.verses == nil {
		return "", swerrors.NewUnsupported(m.cfg.Driver.String(), "module is not verse-keyed", nil)
	}
	return m.verses.VerseText(ref)
}

// DictEntry returns every entry stored under a dictionary key. Valid
// only for loaded dictionary modules.
func (m *Module) DictEntry(key string) ([]string, error) {
	if m.state != Loaded {
		return nil, ErrNotLoaded
	}
	if m.dict == nil {
		return nil, swerrors.NewUnsupported(m.cfg.Driver.String(), "module is not a dictionary", nil)
	}
	return m.dict.Entry(key)
}

// GenBookEntry returns every entry stored under a book node key. Valid
// only for loaded general book modules.
func (m *Module) GenBookEntry(key string) ([]string, error) {
	if m.state != Loaded {
		return nil, ErrNotLoaded
	}
	if m.genbook == nil {
		return nil, swerrors.NewUnsupported(m.cfg.Driver.String(), "module is not a general book", nil)
	}
	return m.genbook.Entry(key)
}

// Keys lists the lookup keys of a loaded dictionary or general book
// module.
func (m *Module) Keys() ([]string, error) {
	if m.state != Loaded {
		return nil, ErrNotLoaded
	}
	switch {
	case m.dict != nil:
		return m.dict.Keys(), nil
	case m.genbook != nil:
		return m.genbook.Keys(), nil
	}
	return nil, swerrors.NewUnsupported(m.cfg.Driver.String(), "module is not key-addressed", nil)
}
