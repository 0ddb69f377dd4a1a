package versification

import (
	swerrors "github.com/FocuswithJustin/swordshelf/core/errors"
)

// Testament selects one of the two index files a verse-keyed module
// splits its content across.
type Testament int

const (
	OldTestament Testament = iota
	NewTestament
)

func (t Testament) String() string {
	if t == NewTestament {
		return "nt"
	}
	return "ot"
}

// Slots holds the three positions a verse can occupy in a module's
// index files. Combined counts every book in the scheme; OT and NT
// count only their own testament, which is the layout the per-testament
// index files actually use. A position is -1 when the verse's testament
// does not contribute to that layout.
type Slots struct {
	Combined int
	OT       int
	NT       int
}

// SlotTable converts between references and index positions for one
// scheme. The layout it models is fixed by the format:
//
//	slot 0  work heading
//	slot 1  front matter
//	then per book: one introduction slot, and per chapter one heading
//	slot followed by that chapter's verse slots.
type SlotTable struct {
	scheme *Scheme

	// chapterSlots[osis][c] is the slot triple for chapter c's first
	// verse; entry 0 belongs to the book introduction.
	chapterSlots map[string][]Slots

	// otIndex and ntIndex map a testament-local slot back to its
	// reference. Slots 0 and 1 are the work heading and front matter.
	otIndex []Ref
	ntIndex []Ref
}

// NewSlotTable builds the slot table for a scheme.
func NewSlotTable(s *Scheme) *SlotTable {
	t := &SlotTable{
		scheme:       s,
		chapterSlots: make(map[string][]Slots, len(s.Books)),
	}

	frontMatter := Ref{Book: "FRT"}
	otCount := s.OTBookCount()

	// Old Testament walk. While inside the OT the combined position
	// equals the OT-local one, so only two counters are live.
	ot := 2
	t.otIndex = append(t.otIndex, frontMatter, frontMatter)
	for _, b := range s.Books[:otCount] {
		ot++ // book introduction
		slots := []Slots{{Combined: ot, OT: ot, NT: -1}}
		last := 0
		c := 0
		for _, verses := range b.Chapters {
			t.otIndex = append(t.otIndex, Ref{Book: b.OSIS, Chapter: c})
			ot += 1 + last
			slots = append(slots, Slots{Combined: ot, OT: ot, NT: -1})
			for v := 1; v <= last; v++ {
				t.otIndex = append(t.otIndex, Ref{Book: b.OSIS, Chapter: c, Verse: v})
			}
			c++
			last = verses
		}
		t.otIndex = append(t.otIndex, Ref{Book: b.OSIS, Chapter: c})
		for v := 1; v <= last; v++ {
			t.otIndex = append(t.otIndex, Ref{Book: b.OSIS, Chapter: c, Verse: v})
		}
		ot += last
		t.chapterSlots[b.OSIS] = slots
	}

	// New Testament walk. The combined position continues past the OT
	// with its own heading pair; the NT-local position restarts at 2.
	combined := ot + 2
	nt := 2
	t.ntIndex = append(t.ntIndex, frontMatter, frontMatter)
	for _, b := range s.Books[otCount:] {
		combined++
		nt++
		slots := []Slots{{Combined: combined, OT: -1, NT: nt}}
		last := 0
		c := 0
		for _, verses := range b.Chapters {
			t.ntIndex = append(t.ntIndex, Ref{Book: b.OSIS, Chapter: c})
			combined += 1 + last
			nt += 1 + last
			slots = append(slots, Slots{Combined: combined, OT: -1, NT: nt})
			for v := 1; v <= last; v++ {
				t.ntIndex = append(t.ntIndex, Ref{Book: b.OSIS, Chapter: c, Verse: v})
			}
			c++
			last = verses
		}
		t.ntIndex = append(t.ntIndex, Ref{Book: b.OSIS, Chapter: c})
		for v := 1; v <= last; v++ {
			t.ntIndex = append(t.ntIndex, Ref{Book: b.OSIS, Chapter: c, Verse: v})
		}
		combined += last
		nt += last
		t.chapterSlots[b.OSIS] = slots
	}

	return t
}

// Scheme returns the scheme this table was built from.
func (t *SlotTable) Scheme() *Scheme { return t.scheme }

// SlotFor returns the index positions of a verse. Chapter and verse
// are numbered from 1; the work, book, and chapter headings are
// skipped over automatically.
func (t *SlotTable) SlotFor(ref Ref) (Slots, error) {
	slots, ok := t.chapterSlots[ref.Book]
	if !ok {
		// Accept full book names as well as OSIS codes.
		i := t.scheme.BookIndex(ref.Book)
		if i < 0 {
			return Slots{}, swerrors.NewNotFound("book", ref.Book, nil)
		}
		ref.Book = t.scheme.Books[i].OSIS
		slots = t.chapterSlots[ref.Book]
	}
	if ref.Chapter < 1 || ref.Chapter >= len(slots) {
		return Slots{}, swerrors.NewNotFound("chapter", ref.String(), nil)
	}
	if ref.Verse < 1 || ref.Verse > t.scheme.VerseCount(ref.Book, ref.Chapter) {
		return Slots{}, swerrors.NewNotFound("verse", ref.String(), nil)
	}
	s := slots[ref.Chapter]
	if s.Combined >= 0 {
		s.Combined += ref.Verse - 1
	}
	if s.OT >= 0 {
		s.OT += ref.Verse - 1
	}
	if s.NT >= 0 {
		s.NT += ref.Verse - 1
	}
	return s, nil
}

// RefAt maps a testament-local slot back to its reference. The first
// two slots of each testament return the front-matter placeholder
// {Book: "FRT"}. ok is false when the slot is past the end of the
// testament.
func (t *SlotTable) RefAt(testament Testament, slot int) (Ref, bool) {
	index := t.otIndex
	if testament == NewTestament {
		index = t.ntIndex
	}
	if slot < 0 || slot >= len(index) {
		return Ref{}, false
	}
	return index[slot], true
}

// SlotCount returns the number of slots in one testament's layout,
// including headings.
func (t *SlotTable) SlotCount(testament Testament) int {
	if testament == NewTestament {
		return len(t.ntIndex)
	}
	return len(t.otIndex)
}

// TestamentFor reports which testament holds the book, and whether the
// scheme includes it at all.
func (t *SlotTable) TestamentFor(book string) (Testament, bool) {
	if _, ok := t.chapterSlots[book]; !ok {
		return OldTestament, false
	}
	if ntBookSet[book] {
		return NewTestament, true
	}
	return OldTestament, true
}
