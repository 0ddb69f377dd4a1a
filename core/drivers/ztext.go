// ztext.go reads verse-keyed module formats, compressed and raw.
//
// Compressed (zText, zCom), per testament:
//   - {ot,nt}.bzs  block index, 12 bytes per entry:
//     offset[4] + compressed size[4] + uncompressed size[4]
//   - {ot,nt}.bzv  verse index, 10 bytes per entry:
//     block[4] + offset[4] + size[2]
//   - {ot,nt}.bzz  compressed block data
//     (chapter-blocked modules use .czs/.czv/.czz)
//
// Raw (RawText, RawCom, RawCom4, RawFiles), per testament:
//   - {ot,nt}.vss  verse index, offset[4] + size[2] per entry
//     (RawCom4 widens size to 4 bytes)
//   - {ot,nt}      plain text data
package drivers

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/FocuswithJustin/swordshelf/core/cache"
	"github.com/FocuswithJustin/swordshelf/core/conf"
	swerrors "github.com/FocuswithJustin/swordshelf/core/errors"
	"github.com/FocuswithJustin/swordshelf/core/versification"
	"github.com/FocuswithJustin/swordshelf/internal/logging"
)

const (
	blockIndexEntrySize = 12
	verseIndexEntrySize = 10
)

// blockEntry is one record of a .bzs block index.
type blockEntry struct {
	Offset         uint32
	CompressedSize uint32
	UncompSize     uint32
}

// verseEntry locates one verse. Compressed formats use all three
// fields; raw formats leave Block at zero and Offset addresses the
// data file directly.
type verseEntry struct {
	Block  int32
	Offset uint32
	Size   int32
}

// testamentData holds one testament's indexes, plus resident text
// when the module was loaded eagerly.
type testamentData struct {
	present  bool
	dataPath string
	blocks   []blockEntry
	verses   []verseEntry
	raw      []byte   // eager raw modules: the whole data file
	decoded  [][]byte // eager compressed modules: one slice per block
}

// VerseSource reads any of the verse-keyed drivers.
type VerseSource struct {
	cfg        *conf.ModuleConfig
	table      *versification.SlotTable
	decoder    *Decoder
	blockCache *cache.BlockCache
	compressed bool
	eager      bool
	wideSize   bool // RawCom4 stores 4-byte verse sizes
	ot, nt     testamentData
}

// Options control how a driver loads its module.
type Options struct {
	// Eager loads all text at open time instead of indexing it.
	Eager bool
	// Key deciphers enciphered modules. nil leaves blocks untouched.
	Key []byte
	// Cache holds decoded blocks for lazy compressed access. A
	// default-sized cache is created when nil.
	Cache *cache.BlockCache
}

// OpenVerseSource opens a verse-keyed module rooted at dir.
func OpenVerseSource(cfg *conf.ModuleConfig, dir string, opts Options) (*VerseSource, error) {
	compressed := false
	switch cfg.Driver {
	case conf.DriverZText, conf.DriverZCom:
		if !cfg.IsCompressed() {
			return nil, swerrors.NewConfig(cfg.Name, "CompressType", "compressed driver without CompressType", nil)
		}
		compressed = true
	case conf.DriverRawText, conf.DriverRawCom, conf.DriverRawCom4, conf.DriverRawFiles:
		if cfg.IsCompressed() {
			return nil, swerrors.NewConfig(cfg.Name, "CompressType", "raw driver with CompressType set", nil)
		}
	default:
		return nil, swerrors.NewUnsupported(cfg.Driver.String(), "not a verse-keyed driver", nil)
	}

	decoder, err := NewDecoder(cfg.Name, opts.Key, cfg.CompressType())
	if err != nil {
		return nil, err
	}
	blockCache := opts.Cache
	if blockCache == nil {
		blockCache = cache.NewDefaultBlockCache()
	}

	s := &VerseSource{
		cfg:        cfg,
		table:      versification.NewSlotTable(versification.New(cfg.Versification())),
		decoder:    decoder,
		blockCache: blockCache,
		compressed: compressed,
		eager:      opts.Eager,
		wideSize:   cfg.Driver == conf.DriverRawCom4,
	}

	for _, testament := range []string{"ot", "nt"} {
		td := &s.ot
		if testament == "nt" {
			td = &s.nt
		}
		if compressed {
			err = s.openCompressedTestament(dir, testament, td)
		} else {
			err = s.openRawTestament(dir, testament, td)
		}
		if err != nil {
			return nil, err
		}
		if !td.present {
			logging.Info("testament not present in module",
				"module", cfg.Name, "testament", testament)
		}
	}
	if !s.ot.present && !s.nt.present {
		return nil, swerrors.NewMissingFile(cfg.Name, dir, nil)
	}
	return s, nil
}

// blockLetter returns the index-file letter for the module's block
// granularity: 'b' for book blocks, 'c' for chapter blocks. A few
// published chapter-blocked modules ship book-lettered files.
func blockLetter(cfg *conf.ModuleConfig) string {
	if cfg.BlockType() == "CHAPTER" {
		switch strings.ToLower(cfg.Abbrev) {
		case "byz", "tr", "whnu":
			return "b"
		}
		return "c"
	}
	return "b"
}

func (s *VerseSource) openCompressedTestament(dir, testament string, td *testamentData) error {
	letter := blockLetter(s.cfg)
	bzsPath := filepath.Join(dir, fmt.Sprintf("%s.%szs", testament, letter))
	if _, err := os.Stat(bzsPath); err != nil {
		return nil // testament absent
	}

	data, err := os.ReadFile(bzsPath)
	if err != nil {
		return swerrors.NewMissingFile(s.cfg.Name, bzsPath, err)
	}
	if len(data)%blockIndexEntrySize != 0 {
		return swerrors.NewCorruptIndex(s.cfg.Name, bzsPath, -1,
			fmt.Sprintf("size %d not a multiple of %d", len(data), blockIndexEntrySize), nil)
	}
	td.blocks = make([]blockEntry, len(data)/blockIndexEntrySize)
	for i := range td.blocks {
		rec := data[i*blockIndexEntrySize:]
		td.blocks[i] = blockEntry{
			Offset:         byteOrder.Uint32(rec),
			CompressedSize: byteOrder.Uint32(rec[4:]),
			UncompSize:     byteOrder.Uint32(rec[8:]),
		}
	}

	bzvPath := filepath.Join(dir, fmt.Sprintf("%s.%szv", testament, letter))
	data, err = os.ReadFile(bzvPath)
	if err != nil {
		return swerrors.NewMissingFile(s.cfg.Name, bzvPath, err)
	}
	if len(data)%verseIndexEntrySize != 0 {
		return swerrors.NewCorruptIndex(s.cfg.Name, bzvPath, -1,
			fmt.Sprintf("size %d not a multiple of %d", len(data), verseIndexEntrySize), nil)
	}
	td.verses = make([]verseEntry, len(data)/verseIndexEntrySize)
	for i := range td.verses {
		rec := data[i*verseIndexEntrySize:]
		entry := verseEntry{
			Block:  int32(byteOrder.Uint32(rec)),
			Offset: byteOrder.Uint32(rec[4:]),
			Size:   int32(int16(byteOrder.Uint16(rec[8:]))),
		}
		if entry.Block < 0 || int(entry.Block) >= len(td.blocks) {
			logging.RecordSkipped(s.cfg.Name, bzvPath, i, "block number out of range")
			entry.Size = 0
		}
		td.verses[i] = entry
	}

	td.dataPath = filepath.Join(dir, fmt.Sprintf("%s.%szz", testament, letter))
	td.present = true

	if s.eager {
		td.decoded = make([][]byte, len(td.blocks))
		for i, b := range td.blocks {
			if b.CompressedSize == 0 {
				continue
			}
			block, err := s.readDecodedBlock(td, testament, b)
			if err != nil {
				return err
			}
			td.decoded[i] = block
		}
	}
	return nil
}

func (s *VerseSource) openRawTestament(dir, testament string, td *testamentData) error {
	entrySize := 6
	if s.wideSize {
		entrySize = 8
	}
	vssPath := filepath.Join(dir, testament+".vss")
	if _, err := os.Stat(vssPath); err != nil {
		return nil // testament absent
	}

	data, err := os.ReadFile(vssPath)
	if err != nil {
		return swerrors.NewMissingFile(s.cfg.Name, vssPath, err)
	}
	if len(data)%entrySize != 0 {
		return swerrors.NewCorruptIndex(s.cfg.Name, vssPath, -1,
			fmt.Sprintf("size %d not a multiple of %d", len(data), entrySize), nil)
	}
	td.verses = make([]verseEntry, len(data)/entrySize)
	for i := range td.verses {
		rec := data[i*entrySize:]
		size := int32(int16(byteOrder.Uint16(rec[4:])))
		if s.wideSize {
			size = int32(byteOrder.Uint32(rec[4:]))
		}
		td.verses[i] = verseEntry{Offset: byteOrder.Uint32(rec), Size: size}
	}

	td.dataPath = filepath.Join(dir, testament)
	td.present = true

	if s.eager {
		td.raw, err = os.ReadFile(td.dataPath)
		if err != nil {
			return swerrors.NewMissingFile(s.cfg.Name, td.dataPath, err)
		}
	}
	return nil
}

// VerseText returns the decoded text of one verse. A verse the module
// leaves blank returns an empty string; a reference outside the
// scheme or outside the module's index returns ErrNotFound.
func (s *VerseSource) VerseText(ref versification.Ref) (string, error) {
	slots, err := s.table.SlotFor(ref)
	if err != nil {
		return "", err
	}
	td, slot := &s.ot, slots.OT
	testament := "ot"
	if slots.NT >= 0 {
		td, slot = &s.nt, slots.NT
		testament = "nt"
	}
	if !td.present {
		return "", swerrors.NewNotFound(s.cfg.Name, ref.String(), nil)
	}
	if slot < 0 || slot >= len(td.verses) {
		return "", swerrors.NewNotFound(s.cfg.Name, ref.String(), nil)
	}
	entry := td.verses[slot]
	if entry.Size <= 0 {
		return "", nil
	}

	if !s.compressed {
		chunk, err := s.readRaw(td, entry)
		if err != nil {
			return "", err
		}
		return cleanEntry(decodeText(chunk, s.cfg.Encoding)), nil
	}

	block, err := s.decodedBlock(td, testament, entry.Block)
	if err != nil {
		return "", err
	}
	start, end := int(entry.Offset), int(entry.Offset)+int(entry.Size)
	if end > len(block) {
		return "", swerrors.NewCorruptIndex(s.cfg.Name, td.dataPath, int(entry.Block),
			"verse data exceeds block size", nil)
	}
	return cleanEntry(decodeText(block[start:end], s.cfg.Encoding)), nil
}

func (s *VerseSource) readRaw(td *testamentData, entry verseEntry) ([]byte, error) {
	if s.eager {
		start, end := int(entry.Offset), int(entry.Offset)+int(entry.Size)
		if end > len(td.raw) {
			return nil, swerrors.NewCorruptIndex(s.cfg.Name, td.dataPath, -1,
				"verse offset exceeds data file", nil)
		}
		return td.raw[start:end], nil
	}
	return readAt(s.cfg.Name, td.dataPath, int64(entry.Offset), int(entry.Size))
}

// decodedBlock returns one inflated block, from resident data, the
// block cache, or the data file.
func (s *VerseSource) decodedBlock(td *testamentData, testament string, blockNum int32) ([]byte, error) {
	if s.eager {
		return td.decoded[blockNum], nil
	}
	b := td.blocks[blockNum]
	key := cache.BlockKey{Book: testament, Offset: b.Offset}
	if block, ok := s.blockCache.Get(key); ok {
		return block, nil
	}
	block, err := s.readDecodedBlock(td, testament, b)
	if err != nil {
		return nil, err
	}
	s.blockCache.Put(key, block)
	return block, nil
}

// readDecodedBlock inflates one block. A block that fails to decode is
// logged and replaced with a zero-filled block of the indexed size, so
// its verses read back empty while the rest of the module stays usable.
func (s *VerseSource) readDecodedBlock(td *testamentData, testament string, b blockEntry) ([]byte, error) {
	compressed, err := readAt(s.cfg.Name, td.dataPath, int64(b.Offset), int(b.CompressedSize))
	if err != nil {
		return nil, err
	}
	block, err := s.decoder.Decode(compressed, int(b.UncompSize))
	if err != nil {
		logging.ModuleError(s.cfg.Name, "decode "+testament+" block", err)
		return make([]byte, b.UncompSize), nil
	}
	if len(block) != int(b.UncompSize) {
		logging.ModuleError(s.cfg.Name, "decode "+testament+" block",
			fmt.Errorf("decoded %d bytes, index says %d", len(block), b.UncompSize))
	}
	return block, nil
}

// HasOT reports whether the module carries Old Testament data.
func (s *VerseSource) HasOT() bool { return s.ot.present }

// HasNT reports whether the module carries New Testament data.
func (s *VerseSource) HasNT() bool { return s.nt.present }

// Table returns the slot table the source resolves references with.
func (s *VerseSource) Table() *versification.SlotTable { return s.table }
