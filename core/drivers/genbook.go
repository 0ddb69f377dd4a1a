// genbook.go reads the RawGenBook tree format.
//
//   - {stem}.idx  offset[4] per entry, pointing into .dat
//   - {stem}.dat  tree node records: three 4-byte numbers, a
//     NUL-terminated key, then a 10-byte trailer whose leading 2-byte
//     flag is 8 when the node carries content, followed by offset[4]
//     and size[4] into .bdt
//   - {stem}.bdt  entry text
package drivers

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/FocuswithJustin/swordshelf/core/conf"
	swerrors "github.com/FocuswithJustin/swordshelf/core/errors"
	"github.com/FocuswithJustin/swordshelf/internal/logging"
)

// GenBookSource reads a general book module.
type GenBookSource struct {
	cfg   *conf.ModuleConfig
	store ContentStore
}

// OpenGenBookSource opens a RawGenBook module. stem is the data file
// name without extension.
func OpenGenBookSource(cfg *conf.ModuleConfig, dir, stem string, opts Options) (*GenBookSource, error) {
	if cfg.Driver != conf.DriverRawGenBook {
		return nil, swerrors.NewUnsupported(cfg.Driver.String(), "not a general book driver", nil)
	}
	if cfg.IsCompressed() {
		return nil, swerrors.NewConfig(cfg.Name, "CompressType", "raw driver with CompressType set", nil)
	}

	idxPath := filepath.Join(dir, stem+".idx")
	idx, err := os.ReadFile(idxPath)
	if err != nil {
		return nil, swerrors.NewMissingFile(cfg.Name, idxPath, err)
	}
	if len(idx)%4 != 0 {
		return nil, swerrors.NewCorruptIndex(cfg.Name, idxPath, -1,
			fmt.Sprintf("size %d not a multiple of 4", len(idx)), nil)
	}
	datPath := filepath.Join(dir, stem+".dat")
	data, err := os.ReadFile(datPath)
	if err != nil {
		return nil, swerrors.NewMissingFile(cfg.Name, datPath, err)
	}

	bdtPath := filepath.Join(dir, stem+".bdt")
	g := &GenBookSource{cfg: cfg}

	var store mutableStore
	var bdt []byte
	if opts.Eager {
		bdt, err = os.ReadFile(bdtPath)
		if err != nil {
			return nil, swerrors.NewMissingFile(cfg.Name, bdtPath, err)
		}
		store = NewEagerStore(cfg.Name)
	} else {
		store = NewLazyStore(cfg.Name, func(loc Locator) (string, error) {
			chunk, err := readAt(cfg.Name, bdtPath, int64(loc.Offset), int(loc.Size))
			if err != nil {
				return "", err
			}
			return cleanEntry(decodeText(chunk, cfg.Encoding)), nil
		})
	}

	for i := 0; i < len(idx)/4; i++ {
		record := byteOrder.Uint32(idx[i*4:])
		key, loc, ok := g.parseNode(data, int(record), i, idxPath)
		if !ok {
			continue
		}
		key = strings.ToUpper(key)
		switch s := store.(type) {
		case *EagerStore:
			end := int(loc.Offset) + int(loc.Size)
			if end > len(bdt) {
				logging.RecordSkipped(cfg.Name, bdtPath, i, "entry extends past data file")
				continue
			}
			s.Add(key, cleanEntry(decodeText(bdt[loc.Offset:end], cfg.Encoding)))
		case *LazyStore:
			s.Add(key, loc)
		}
	}

	g.store = store
	return g, nil
}

// parseNode reads one tree node. Nodes without content (pure branch
// nodes, and the nameless root) report ok false.
func (g *GenBookSource) parseNode(data []byte, offset, record int, idxPath string) (string, Locator, bool) {
	if offset+12 > len(data) {
		logging.RecordSkipped(g.cfg.Name, idxPath, record, "node offset out of range")
		return "", Locator{}, false
	}
	num1 := int32(byteOrder.Uint32(data[offset:]))
	num3 := int32(byteOrder.Uint32(data[offset+8:]))

	// The link numbers follow a fixed pattern; anything else means
	// the record boundary is wrong.
	if record == 0 {
		if num1 != -1 || num3 != 4 {
			logging.RecordSkipped(g.cfg.Name, idxPath, record, "malformed root node")
			return "", Locator{}, false
		}
	} else {
		if num1 != -1 && num1 != 0 && num1 < 4 {
			logging.RecordSkipped(g.cfg.Name, idxPath, record, "malformed sibling link")
			return "", Locator{}, false
		}
		if num3 != -1 && num3 < 8 {
			logging.RecordSkipped(g.cfg.Name, idxPath, record, "malformed child link")
			return "", Locator{}, false
		}
	}

	rest := data[offset+12:]
	nul := bytes.IndexByte(rest, 0)
	if nul < 0 {
		logging.RecordSkipped(g.cfg.Name, idxPath, record, "unterminated node key")
		return "", Locator{}, false
	}
	if nul == 0 {
		return "", Locator{}, false // the root node has no key
	}
	key := decodeText(rest[:nul], g.cfg.Encoding)

	trailer := rest[nul+1:]
	if len(trailer) < 10 {
		logging.RecordSkipped(g.cfg.Name, idxPath, record, "truncated node trailer")
		return "", Locator{}, false
	}
	flag := int16(byteOrder.Uint16(trailer))
	if flag != 8 {
		return "", Locator{}, false // branch node, no content
	}
	entryOffset := int32(byteOrder.Uint32(trailer[2:]))
	entrySize := int32(byteOrder.Uint32(trailer[6:]))
	if entryOffset < 0 || entrySize < 0 {
		logging.RecordSkipped(g.cfg.Name, idxPath, record, "negative content pointer")
		return "", Locator{}, false
	}
	return key, Locator{Offset: uint32(entryOffset), Size: uint32(entrySize)}, true
}

// Entry returns every entry stored under key. Keys are stored
// upper-cased, so lookups fold case.
func (g *GenBookSource) Entry(key string) ([]string, error) {
	return g.store.Get(strings.ToUpper(key))
}

// Has reports whether the book defines key.
func (g *GenBookSource) Has(key string) bool {
	return g.store.Has(strings.ToUpper(key))
}

// Keys returns every content-bearing node key in index order.
func (g *GenBookSource) Keys() []string { return g.store.Keys() }
