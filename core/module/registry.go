package module

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/FocuswithJustin/swordshelf/core/conf"
	swerrors "github.com/FocuswithJustin/swordshelf/core/errors"
	"github.com/FocuswithJustin/swordshelf/internal/logging"
)

// maxBulkLoad caps how many modules one LoadAll call will load. Large
// installations carry hundreds of modules; loading them all eagerly at
// once is almost never what the caller wants.
const maxBulkLoad = 300

// bulkLoadWorkers is the LoadAll pool size. Workers share nothing;
// each builds one fully-formed Module and hands it back.
const bulkLoadWorkers = 4

// DefaultFolders returns the conventional SWORD search roots.
func DefaultFolders() []string {
	folders := []string{"/usr/share/sword"}
	if home, err := os.UserHomeDir(); err == nil {
		folders = append(folders, filepath.Join(home, ".sword"))
	}
	return folders
}

// entry is one registered module: its conf and the search root it was
// found under.
type entry struct {
	cfg      *conf.ModuleConfig
	swordDir string
}

// Registry discovers module configurations under search folders and
// instantiates Modules on demand.
type Registry struct {
	folders []string

	order   []string // registration order, by name
	entries map[string]*entry
	modules map[string]*Module

	byCategory map[conf.Category][]string
	byDriver   map[conf.DriverKind][]string
	byLanguage map[string][]string
	byFeature  map[string][]string
}

// NewRegistry creates a registry over the given search folders, or the
// default folders when none are given.
func NewRegistry(folders ...string) *Registry {
	if len(folders) == 0 {
		folders = DefaultFolders()
	}
	return &Registry{
		folders:    folders,
		entries:    make(map[string]*entry),
		modules:    make(map[string]*Module),
		byCategory: make(map[conf.Category][]string),
		byDriver:   make(map[conf.DriverKind][]string),
		byLanguage: make(map[string][]string),
		byFeature:  make(map[string][]string),
	}
}

// Scan walks every search folder's mods.d directory and registers the
// configurations found there. A folder without mods.d is skipped with
// a warning; an error in one conf never affects another.
func (r *Registry) Scan() error {
	for _, folder := range r.folders {
		r.scanFolder(folder)
	}
	if len(r.order) == 0 {
		return swerrors.NewNotFound("modules", strings.Join(r.folders, ", "), nil)
	}
	return nil
}

// Augment adds one more search folder and scans it immediately,
// keeping everything already registered.
func (r *Registry) Augment(folder string) {
	r.folders = append(r.folders, folder)
	r.scanFolder(folder)
}

func (r *Registry) scanFolder(folder string) {
	start := time.Now()

	confFiles, err := conf.FindConfFiles(folder)
	if err != nil {
		logging.Warn("skipping search folder", "folder", folder, "error", err)
		return
	}

	found, skipped := 0, 0
	for _, path := range confFiles {
		cfg, err := conf.ParseConfFile(path)
		if err != nil {
			logging.ModuleError(filepath.Base(path), "parse conf", err)
			skipped++
			continue
		}
		if prior, ok := r.entries[roughName(cfg.Name)]; ok {
			logging.Error("duplicate module name, excluding",
				"module", cfg.Name, "conf", path, "registered", prior.cfg.ConfPath)
			skipped++
			continue
		}
		r.register(cfg, folder)
		found++
	}
	logging.RegistryScan(folder, found, skipped, time.Since(start))
}

// roughName folds a module name for collision checks. Installers are
// inconsistent about case between the conf stem and the [Name] header.
func roughName(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

func (r *Registry) register(cfg *conf.ModuleConfig, swordDir string) {
	r.entries[roughName(cfg.Name)] = &entry{cfg: cfg, swordDir: swordDir}
	r.order = append(r.order, cfg.Name)

	r.byCategory[cfg.Category] = append(r.byCategory[cfg.Category], cfg.Name)
	r.byDriver[cfg.Driver] = append(r.byDriver[cfg.Driver], cfg.Name)
	if lang := cfg.Language(); lang != "" {
		r.byLanguage[lang] = append(r.byLanguage[lang], cfg.Name)
	}
	for _, feature := range cfg.Features() {
		r.byFeature[feature] = append(r.byFeature[feature], cfg.Name)
	}
}

// Names returns every registered module name in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Config returns the parsed configuration of a registered module.
func (r *Registry) Config(name string) (*conf.ModuleConfig, error) {
	e, ok := r.entries[roughName(name)]
	if !ok {
		return nil, swerrors.NewNotFound("module", name, nil)
	}
	return e.cfg, nil
}

// Filter narrows List output. Zero fields match everything.
type Filter struct {
	Category conf.Category
	Driver   conf.DriverKind
	Language string
	Feature  string
}

// List returns the names of registered modules matching the filter, in
// registration order.
func (r *Registry) List(f Filter) []string {
	var names []string
	for _, name := range r.order {
		e := r.entries[roughName(name)]
		if f.Category != conf.CategoryUnknown && e.cfg.Category != f.Category {
			continue
		}
		if f.Driver != conf.DriverUnknown && e.cfg.Driver != f.Driver {
			continue
		}
		if f.Language != "" && e.cfg.Language() != f.Language {
			continue
		}
		if f.Feature != "" && !hasFeature(e.cfg, f.Feature) {
			continue
		}
		names = append(names, name)
	}
	return names
}

func hasFeature(cfg *conf.ModuleConfig, feature string) bool {
	for _, f := range cfg.Features() {
		if f == feature {
			return true
		}
	}
	return false
}

// Module returns the Module for a registered name, creating it on
// first use. The caller still needs to Load it.
func (r *Registry) Module(name string) (*Module, error) {
	key := roughName(name)
	if m, ok := r.modules[key]; ok {
		return m, nil
	}
	e, ok := r.entries[key]
	if !ok {
		return nil, swerrors.NewNotFound("module", name, nil)
	}
	m := New(e.cfg, e.swordDir)
	r.modules[key] = m
	return m, nil
}

// LoadResult is one module's outcome from a LoadAll run.
type LoadResult struct {
	Name string
	Err  error
}

// LoadAll loads every registered module, at most limit of them
// (capped regardless at maxBulkLoad). Modules load in parallel across
// a small worker pool; workers share no state, and the coordinator
// alone mutates the registry as results come back.
func (r *Registry) LoadAll(mode Mode, limit int) []LoadResult {
	if limit <= 0 || limit > maxBulkLoad {
		limit = maxBulkLoad
	}
	names := r.order
	if len(names) > limit {
		logging.Warn("bulk load capped", "registered", len(names), "limit", limit)
		names = names[:limit]
	}

	ctx := logging.WithBatchID(context.Background(), uuid.NewString())
	logging.InfoContext(ctx, "bulk load starting", "modules", len(names))

	type loaded struct {
		name   string
		module *Module
		err    error
	}
	jobs := make(chan *entry)
	results := make(chan loaded)

	var wg sync.WaitGroup
	for w := 0; w < bulkLoadWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for e := range jobs {
				m := New(e.cfg, e.swordDir)
				results <- loaded{name: e.cfg.Name, module: m, err: m.Load(mode)}
			}
		}()
	}
	go func() {
		for _, name := range names {
			jobs <- r.entries[roughName(name)]
		}
		close(jobs)
		wg.Wait()
		close(results)
	}()

	out := make([]LoadResult, 0, len(names))
	failed := 0
	for res := range results {
		r.modules[roughName(res.name)] = res.module
		if res.err != nil {
			failed++
		}
		out = append(out, LoadResult{Name: res.name, Err: res.err})
	}
	logging.InfoContext(ctx, "bulk load finished",
		"modules", len(out), "failed", failed)
	return out
}
