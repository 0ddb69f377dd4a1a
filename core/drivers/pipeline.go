// Package drivers reads the binary payload formats of SWORD modules.
//
// Every driver follows the same shape: small fixed-width index files
// locate entries inside one or more data files, and compressed formats
// group entries into zlib or xz blocks that may additionally be
// enciphered. The drivers here expose decoded text keyed either by
// verse reference (Bible and commentary formats) or by string key
// (dictionary and general book formats).
package drivers

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"io"
	"os"
	"strings"

	"github.com/ulikunitz/xz"
	"golang.org/x/text/encoding/charmap"

	"github.com/FocuswithJustin/swordshelf/core/cipher"
	swerrors "github.com/FocuswithJustin/swordshelf/core/errors"
)

// All SWORD index files are little-endian.
var byteOrder = binary.LittleEndian

// Decoder turns a raw block from a data file into plaintext bytes.
// Deciphering runs first when a key is set, then inflation.
type Decoder struct {
	module   string
	key      []byte
	compress string // "ZIP" or "XZ", empty for uncompressed formats
}

// NewDecoder builds a decoder for one module's blocks. key is nil for
// unenciphered modules; compressType comes from the conf file.
func NewDecoder(module string, key []byte, compressType string) (*Decoder, error) {
	switch compressType {
	case "", "ZIP", "XZ":
	default:
		return nil, swerrors.NewUnsupported("CompressType "+compressType,
			"only ZIP and XZ block compression are implemented", nil)
	}
	return &Decoder{module: module, key: key, compress: compressType}, nil
}

// Decode deciphers and inflates one block. uncompressedSize is the
// expected size from the block index; pass a value <= 0 when the
// format does not record it and the whole stream should be read.
func (d *Decoder) Decode(chunk []byte, uncompressedSize int) ([]byte, error) {
	if len(d.key) > 0 {
		chunk = cipher.DecodeBlock(chunk, d.key)
	}
	if d.compress == "" {
		return chunk, nil
	}

	var r io.Reader
	var err error
	switch d.compress {
	case "ZIP":
		var zr io.ReadCloser
		zr, err = zlib.NewReader(bytes.NewReader(chunk))
		if err == nil {
			defer zr.Close()
			r = zr
		}
	case "XZ":
		r, err = xz.NewReader(bytes.NewReader(chunk))
	}
	if err != nil {
		return nil, swerrors.NewDecode(d.module, "inflate init", err)
	}

	if uncompressedSize <= 0 {
		out, err := io.ReadAll(r)
		if err != nil {
			return nil, swerrors.NewDecode(d.module, "inflate", err)
		}
		return out, nil
	}
	out := make([]byte, uncompressedSize)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, swerrors.NewDecode(d.module, "inflate", err)
	}
	return out, nil
}

// decodeText converts stored bytes to a string in the module's
// character encoding. Conf parsing normalizes the encoding name, so
// anything unrecognized falls through as already-UTF-8 bytes.
func decodeText(b []byte, encoding string) string {
	switch encoding {
	case "ISO-8859-1", "Latin-1":
		out, err := charmap.ISO8859_1.NewDecoder().Bytes(b)
		if err == nil {
			return string(out)
		}
	case "ISO-8859-15":
		out, err := charmap.ISO8859_15.NewDecoder().Bytes(b)
		if err == nil {
			return string(out)
		}
	}
	return string(b)
}

// cleanEntry trims the padding real modules carry around payloads:
// trailing NULs from block packing and surrounding whitespace.
func cleanEntry(s string) string {
	return strings.TrimSpace(strings.TrimRight(s, "\x00"))
}

// readAt reads size bytes at offset from path.
func readAt(module, path string, offset int64, size int) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, swerrors.NewMissingFile(module, path, err)
	}
	defer f.Close()

	buf := make([]byte, size)
	if _, err := f.ReadAt(buf, offset); err != nil {
		return nil, swerrors.NewCorruptIndex(module, path, -1,
			"read past end of data file", err)
	}
	return buf, nil
}
