// Package versification maps Bible references to storage slots.
//
// SWORD verse-keyed modules do not store references; they store payloads
// at fixed positions determined by a versification scheme. The scheme
// dictates book order and per-chapter verse counts, and the slot table
// built from it converts between references and index-file positions.
package versification

import (
	"fmt"
	"strings"
)

// SchemeID identifies a versification scheme.
type SchemeID string

// Schemes named by module conf files.
const (
	KJV       SchemeID = "KJV"
	NRSV      SchemeID = "NRSV"
	NRSVA     SchemeID = "NRSVA"
	Vulgate   SchemeID = "Vulgate"
	Catholic  SchemeID = "Catholic"
	LXX       SchemeID = "LXX"
	MT        SchemeID = "MT"
	Synodal   SchemeID = "Synodal"
	German    SchemeID = "German"
	Luther    SchemeID = "Luther"
	Ethiopian SchemeID = "Ethiopian"
	LDS       SchemeID = "LDS" // LDS texts reuse KJV Bible versification
)

// Book holds the verse counts for each chapter of one book.
type Book struct {
	Name     string
	OSIS     string
	Chapters []int // verse count per chapter, Chapters[0] is chapter 1
}

// Scheme is a complete versification: an ordered book list with
// verse counts, Old Testament first.
type Scheme struct {
	ID    SchemeID
	Books []Book
}

// Ref is a verse reference within a scheme. Book is an OSIS code
// such as "Gen" or "1Cor". Chapter 0 with Verse 0 addresses the book
// introduction; Verse 0 alone addresses a chapter heading.
type Ref struct {
	Book    string
	Chapter int
	Verse   int
}

func (r Ref) String() string {
	return fmt.Sprintf("%s %d:%d", r.Book, r.Chapter, r.Verse)
}

// ntBookSet lists the 27 New Testament OSIS codes.
var ntBookSet = map[string]bool{
	"Matt": true, "Mark": true, "Luke": true, "John": true,
	"Acts": true, "Rom": true, "1Cor": true, "2Cor": true,
	"Gal": true, "Eph": true, "Phil": true, "Col": true,
	"1Thess": true, "2Thess": true, "1Tim": true, "2Tim": true,
	"Titus": true, "Phlm": true, "Heb": true, "Jas": true,
	"1Pet": true, "2Pet": true, "1John": true, "2John": true,
	"3John": true, "Jude": true, "Rev": true,
}

// IsNTBook reports whether the OSIS code names a New Testament book.
func IsNTBook(osis string) bool { return ntBookSet[osis] }

// New returns the scheme for the given name as it appears in a conf
// file's Versification field. Aliases used by published modules are
// accepted ("Vulg", "Orthodox", "Tewahedo"). Unknown or empty names
// fall back to KJV, which is the SWORD default.
func New(name string) *Scheme {
	switch SchemeID(strings.TrimSpace(name)) {
	case KJV, LDS, "":
		return kjvScheme()
	case NRSV:
		// Differences from KJV are minor; treated as identical here.
		s := kjvScheme()
		s.ID = NRSV
		return s
	case Vulgate, Catholic, "Vulg":
		return &Scheme{ID: Vulgate, Books: vulgateBooks}
	case Ethiopian, "Orthodox", "Tewahedo":
		return &Scheme{ID: Ethiopian, Books: ethiopianBooks}
	default:
		return kjvScheme()
	}
}

func kjvScheme() *Scheme {
	return &Scheme{ID: KJV, Books: kjvBooks}
}

// BookIndex returns the position of the book in the scheme's ordered
// list, or -1 if the scheme does not include it. Both OSIS codes and
// full names match, case-insensitively for names.
func (s *Scheme) BookIndex(book string) int {
	for i, b := range s.Books {
		if b.OSIS == book || strings.EqualFold(b.Name, book) {
			return i
		}
	}
	return -1
}

// ChapterCount returns the number of chapters in a book, or 0 if the
// scheme does not include it.
func (s *Scheme) ChapterCount(book string) int {
	idx := s.BookIndex(book)
	if idx < 0 {
		return 0
	}
	return len(s.Books[idx].Chapters)
}

// VerseCount returns the number of verses in the chapter, or 0 if the
// book or chapter is out of range. Chapters are numbered from 1.
func (s *Scheme) VerseCount(book string, chapter int) int {
	idx := s.BookIndex(book)
	if idx < 0 {
		return 0
	}
	if chapter < 1 || chapter > len(s.Books[idx].Chapters) {
		return 0
	}
	return s.Books[idx].Chapters[chapter-1]
}

// TotalVerses returns the verse count of the whole book.
func (s *Scheme) TotalVerses(book string) int {
	idx := s.BookIndex(book)
	if idx < 0 {
		return 0
	}
	total := 0
	for _, n := range s.Books[idx].Chapters {
		total += n
	}
	return total
}

// OTBookCount returns how many books precede the New Testament in
// this scheme. The boundary is the first book whose OSIS code is a
// New Testament code; a scheme with no NT books is all Old Testament.
func (s *Scheme) OTBookCount() int {
	for i, b := range s.Books {
		if ntBookSet[b.OSIS] {
			return i
		}
	}
	return len(s.Books)
}
