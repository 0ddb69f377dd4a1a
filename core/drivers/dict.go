// dict.go reads dictionary and lexicon module formats.
//
// Raw (RawLD, RawLD4):
//   - {stem}.idx  offset[4] + size[2] per entry (RawLD4 widens size
//     to 4 bytes)
//   - {stem}.dat  "KEY\nentry text" chunks
//
// Compressed (zLD):
//   - {stem}.idx  offset[4] + size[4] pointers into the mixed index
//   - {stem}.dat  mixed index records: key string, CRLF, then
//     block[4] + chunk[4]
//   - {stem}.zdx  offset[4] + compressed size[4] per block
//   - {stem}.zdt  compressed blocks; each inflates to count[4]
//     followed by count (offset[4], size[4]) pairs and the
//     NUL-terminated entries they address
package drivers

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/FocuswithJustin/swordshelf/core/cache"
	"github.com/FocuswithJustin/swordshelf/core/conf"
	swerrors "github.com/FocuswithJustin/swordshelf/core/errors"
	"github.com/FocuswithJustin/swordshelf/internal/logging"
)

// DictSource reads a dictionary module.
type DictSource struct {
	cfg       *conf.ModuleConfig
	store     ContentStore
	upperKeys bool // raw formats fold keys to upper case
}

// mutableStore is what loaders and cross-reference expansion build on.
type mutableStore interface {
	ContentStore
	AddText(key, text string)
}

// OpenDictSource opens a dictionary module. stem is the data file
// name without extension, taken from the last element of the conf's
// DataPath.
func OpenDictSource(cfg *conf.ModuleConfig, dir, stem string, opts Options) (*DictSource, error) {
	d := &DictSource{cfg: cfg}
	var err error
	switch cfg.Driver {
	case conf.DriverRawLD, conf.DriverRawLD4:
		if cfg.IsCompressed() {
			return nil, swerrors.NewConfig(cfg.Name, "CompressType", "raw driver with CompressType set", nil)
		}
		d.upperKeys = true
		err = d.loadRaw(dir, stem, opts)
	case conf.DriverZLD:
		if !cfg.IsCompressed() {
			return nil, swerrors.NewConfig(cfg.Name, "CompressType", "compressed driver without CompressType", nil)
		}
		err = d.loadCompressed(dir, stem, opts)
	default:
		return nil, swerrors.NewUnsupported(cfg.Driver.String(), "not a dictionary driver", nil)
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

// Entry returns every entry stored under key, oldest first. Raw
// dictionary keys are stored upper-cased, so lookups fold case for
// those formats.
func (d *DictSource) Entry(key string) ([]string, error) {
	if d.upperKeys {
		key = strings.ToUpper(key)
	}
	return d.store.Get(key)
}

// Has reports whether the dictionary defines key.
func (d *DictSource) Has(key string) bool {
	if d.upperKeys {
		key = strings.ToUpper(key)
	}
	return d.store.Has(key)
}

// Keys returns every key in index order, auto-added cross-references
// last.
func (d *DictSource) Keys() []string { return d.store.Keys() }

func (d *DictSource) loadRaw(dir, stem string, opts Options) error {
	entrySize := 6
	if d.cfg.Driver == conf.DriverRawLD4 {
		entrySize = 8
	}
	idxPath := filepath.Join(dir, stem+".idx")
	idx, err := os.ReadFile(idxPath)
	if err != nil {
		return swerrors.NewMissingFile(d.cfg.Name, idxPath, err)
	}
	if len(idx)%entrySize != 0 {
		return swerrors.NewCorruptIndex(d.cfg.Name, idxPath, -1,
			fmt.Sprintf("size %d not a multiple of %d", len(idx), entrySize), nil)
	}

	datPath := filepath.Join(dir, stem+".dat")
	data, err := os.ReadFile(datPath)
	if err != nil {
		return swerrors.NewMissingFile(d.cfg.Name, datPath, err)
	}

	var store mutableStore
	if opts.Eager {
		store = NewEagerStore(d.cfg.Name)
	} else {
		store = NewLazyStore(d.cfg.Name, func(loc Locator) (string, error) {
			chunk, err := readAt(d.cfg.Name, datPath, int64(loc.Offset), int(loc.Size))
			if err != nil {
				return "", err
			}
			return cleanEntry(decodeText(chunk, d.cfg.Encoding)), nil
		})
	}

	for i := 0; i < len(idx)/entrySize; i++ {
		rec := idx[i*entrySize:]
		offset := byteOrder.Uint32(rec)
		size := int32(int16(byteOrder.Uint16(rec[4:])))
		if d.cfg.Driver == conf.DriverRawLD4 {
			size = int32(byteOrder.Uint32(rec[4:]))
		}
		if size <= 0 {
			continue
		}
		if int(offset)+int(size) > len(data) {
			logging.RecordSkipped(d.cfg.Name, idxPath, i, "entry extends past data file")
			continue
		}
		chunk := data[offset : offset+uint32(size)]

		// Each chunk is the key line followed by the entry body.
		nl := bytes.IndexByte(chunk, '\n')
		if nl < 0 {
			logging.RecordSkipped(d.cfg.Name, idxPath, i, "chunk has no key line")
			continue
		}
		key := d.adjustRawKey(strings.TrimSpace(decodeText(chunk[:nl], d.cfg.Encoding)))
		body := chunk[nl+1:]
		start := nl + 1 + leadingSpace(body)
		body = chunk[start : start+trimmedLen(chunk[start:])]

		switch s := store.(type) {
		case *EagerStore:
			s.Add(key, cleanEntry(decodeText(body, d.cfg.Encoding)))
		case *LazyStore:
			s.Add(key, Locator{Offset: offset + uint32(start), Size: uint32(len(body))})
		}
	}

	d.store = store
	d.expandCrossRefs(store)
	return nil
}

// adjustRawKey applies the Strong's number quirk: a handful of
// published lexicons store bare five-digit keys that every consumer
// expects with a G or H prefix.
func (d *DictSource) adjustRawKey(key string) string {
	key = strings.ToUpper(key)
	key = strings.TrimSuffix(key, "\\")
	if len(key) != 5 || !allDigits(key) {
		return key
	}
	switch strings.ToLower(d.cfg.Abbrev) {
	case "greekhebrew", "strongsgreek", "strongsrealgreek":
		return "G" + key
	case "hebrewgreek", "strongshebrew", "strongsrealhebrew":
		return "H" + key
	}
	return key
}

func (d *DictSource) loadCompressed(dir, stem string, opts Options) error {
	decoder, err := NewDecoder(d.cfg.Name, opts.Key, d.cfg.CompressType())
	if err != nil {
		return err
	}
	blockCache := opts.Cache
	if blockCache == nil {
		blockCache = cache.NewDefaultBlockCache()
	}

	// The .idx file points into the mixed index, which pairs each key
	// with the block and chunk holding its entry.
	idxPath := filepath.Join(dir, stem+".idx")
	idx, err := os.ReadFile(idxPath)
	if err != nil {
		return swerrors.NewMissingFile(d.cfg.Name, idxPath, err)
	}
	if len(idx)%8 != 0 {
		return swerrors.NewCorruptIndex(d.cfg.Name, idxPath, -1,
			fmt.Sprintf("size %d not a multiple of 8", len(idx)), nil)
	}
	datPath := filepath.Join(dir, stem+".dat")
	mixed, err := os.ReadFile(datPath)
	if err != nil {
		return swerrors.NewMissingFile(d.cfg.Name, datPath, err)
	}

	type keyRef struct {
		key          string
		block, chunk uint32
	}
	var refs []keyRef
	for i := 0; i < len(idx)/8; i++ {
		offset := byteOrder.Uint32(idx[i*8:])
		size := byteOrder.Uint32(idx[i*8+4:])
		if size == 0 {
			continue
		}
		if int(offset)+int(size) > len(mixed) || size < 10 {
			logging.RecordSkipped(d.cfg.Name, idxPath, i, "mixed index record out of range")
			continue
		}
		rec := mixed[offset : offset+size]
		// Key string, CRLF, then two 4-byte numbers.
		keyBytes := rec[:len(rec)-10]
		tail := rec[len(rec)-8:]
		refs = append(refs, keyRef{
			key:   decodeText(keyBytes, d.cfg.Encoding),
			block: byteOrder.Uint32(tail),
			chunk: byteOrder.Uint32(tail[4:]),
		})
	}

	// The .zdx file locates each compressed block in .zdt.
	zdxPath := filepath.Join(dir, stem+".zdx")
	zdx, err := os.ReadFile(zdxPath)
	if err != nil {
		return swerrors.NewMissingFile(d.cfg.Name, zdxPath, err)
	}
	if len(zdx)%8 != 0 {
		return swerrors.NewCorruptIndex(d.cfg.Name, zdxPath, -1,
			fmt.Sprintf("size %d not a multiple of 8", len(zdx)), nil)
	}
	blocks := make([]blockEntry, len(zdx)/8)
	for i := range blocks {
		blocks[i] = blockEntry{
			Offset:         byteOrder.Uint32(zdx[i*8:]),
			CompressedSize: byteOrder.Uint32(zdx[i*8+4:]),
		}
	}

	// A block that fails to decode is logged and replaced with an
	// empty block; its entries read back empty while the rest of the
	// dictionary stays usable.
	zdtPath := filepath.Join(dir, stem+".zdt")
	readBlock := func(b blockEntry) ([]byte, error) {
		key := cache.BlockKey{Book: "zld", Offset: b.Offset}
		if block, ok := blockCache.Get(key); ok {
			return block, nil
		}
		compressed, err := readAt(d.cfg.Name, zdtPath, int64(b.Offset), int(b.CompressedSize))
		if err != nil {
			return nil, err
		}
		block, err := decoder.Decode(compressed, 0)
		if err != nil {
			logging.ModuleError(d.cfg.Name, "decode dictionary block", err)
			block = nil
		}
		blockCache.Put(key, block)
		return block, nil
	}

	var store mutableStore
	if opts.Eager {
		eager := NewEagerStore(d.cfg.Name)
		for _, ref := range refs {
			if int(ref.block) >= len(blocks) {
				logging.RecordSkipped(d.cfg.Name, zdxPath, int(ref.block), "block number out of range")
				continue
			}
			block, err := readBlock(blocks[ref.block])
			if err != nil {
				return err
			}
			if len(block) == 0 {
				eager.Add(d.dedupeKey(eager, ref.key), "")
				continue
			}
			text, err := d.chunkFromBlock(block, ref.chunk)
			if err != nil {
				logging.ModuleError(d.cfg.Name, "extract chunk for "+ref.key, err)
				continue
			}
			eager.Add(d.dedupeKey(eager, ref.key), text)
		}
		store = eager
	} else {
		lazy := NewLazyStore(d.cfg.Name, func(loc Locator) (string, error) {
			block, err := readBlock(blockEntry{Offset: loc.Offset, CompressedSize: loc.Size})
			if err != nil {
				return "", err
			}
			if len(block) == 0 {
				return "", nil
			}
			return d.chunkFromBlock(block, loc.Chunk)
		})
		for _, ref := range refs {
			if int(ref.block) >= len(blocks) {
				logging.RecordSkipped(d.cfg.Name, zdxPath, int(ref.block), "block number out of range")
				continue
			}
			b := blocks[ref.block]
			lazy.Add(d.dedupeKey(lazy, ref.key), Locator{
				Offset: b.Offset,
				Size:   b.CompressedSize,
				Block:  ref.block,
				Chunk:  ref.chunk,
			})
		}
		store = lazy
	}

	d.store = store
	d.expandCrossRefs(store)
	return nil
}

// dedupeKey renames repeated compressed-dictionary keys "KEY (2)",
// "KEY (3)", and so on, so every entry stays addressable.
func (d *DictSource) dedupeKey(store ContentStore, key string) string {
	if !store.Has(key) {
		return key
	}
	for n := 2; ; n++ {
		adjusted := fmt.Sprintf("%s (%d)", key, n)
		if !store.Has(adjusted) {
			return adjusted
		}
	}
}

// chunkFromBlock extracts one entry from an inflated block. The block
// starts with a count followed by (offset, size) pairs; entries carry
// a trailing NUL that is not part of the text.
func (d *DictSource) chunkFromBlock(block []byte, chunk uint32) (string, error) {
	if len(block) < 4 {
		return "", swerrors.NewCorruptIndex(d.cfg.Name, "", -1, "block shorter than its header", nil)
	}
	count := byteOrder.Uint32(block)
	if chunk >= count {
		return "", swerrors.NewCorruptIndex(d.cfg.Name, "", int(chunk), "chunk number out of range", nil)
	}
	pos := 4 + int(chunk)*8
	if pos+8 > len(block) {
		return "", swerrors.NewCorruptIndex(d.cfg.Name, "", int(chunk), "chunk table truncated", nil)
	}
	offset := byteOrder.Uint32(block[pos:])
	size := byteOrder.Uint32(block[pos+4:])
	if size == 0 || int(offset)+int(size) > len(block) {
		return "", swerrors.NewCorruptIndex(d.cfg.Name, "", int(chunk), "chunk data out of range", nil)
	}
	return cleanEntry(decodeText(block[offset:offset+size-1], d.cfg.Encoding)), nil
}

// expandCrossRefs adds "See ..." entries so that the pieces of
// compound keys resolve on their own. A key "AARON; AARONITES" gains
// the keys AARON and AARONITES; a key "ABEL, CITY OF" gains ABEL.
// Existing keys are never overwritten.
func (d *DictSource) expandCrossRefs(store mutableStore) {
	added := make(map[string]string)
	var order []string

	addRef := func(newKey, fromKey string) {
		if newKey == "" || store.Has(newKey) {
			return
		}
		if old, ok := added[newKey]; ok {
			base := strings.TrimSuffix(old, " (auto-added)")
			added[newKey] = fmt.Sprintf("%s or ''%s'' (auto-added)", base, fromKey)
			return
		}
		added[newKey] = fmt.Sprintf("See ''%s'' (auto-added)", fromKey)
		order = append(order, newKey)
	}

	for _, key := range store.Keys() {
		if strings.Contains(key, ";") {
			for _, bit := range strings.Split(key, ";") {
				addRef(strings.TrimSpace(bit), key)
			}
		} else if i := strings.IndexAny(key, " ,-"); i > 0 {
			addRef(key[:i], key)
		}
	}
	for _, key := range order {
		store.AddText(key, added[key])
	}
	if len(order) > 0 {
		logging.Debug("auto-added cross-reference keys",
			"module", d.cfg.Name, "count", len(order))
	}
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

// leadingSpace counts leading ASCII whitespace bytes.
func leadingSpace(b []byte) int {
	i := 0
	for i < len(b) && (b[i] == ' ' || b[i] == '\t' || b[i] == '\r' || b[i] == '\n') {
		i++
	}
	return i
}

// trimmedLen is the length of b without trailing ASCII whitespace.
func trimmedLen(b []byte) int {
	n := len(b)
	for n > 0 {
		switch b[n-1] {
		case ' ', '\t', '\r', '\n', 0:
			n--
		default:
			return n
		}
	}
	return n
}
