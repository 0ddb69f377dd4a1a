package versification

import (
	"errors"
	"testing"

	swerrors "github.com/FocuswithJustin/swordshelf/core/errors"
)

func TestSlotForKJV(t *testing.T) {
	table := NewSlotTable(New("KJV"))

	// Layout: slots 0-1 front matter, 2 Genesis intro, 3 chapter 1
	// heading, 4 first verse.
	tests := []struct {
		ref  Ref
		want Slots
	}{
		{Ref{"Gen", 1, 1}, Slots{Combined: 4, OT: 4, NT: -1}},
		{Ref{"Gen", 1, 31}, Slots{Combined: 34, OT: 34, NT: -1}},
		{Ref{"Gen", 2, 1}, Slots{Combined: 36, OT: 36, NT: -1}},
		{Ref{"Matt", 1, 1}, Slots{Combined: -1, OT: -1, NT: 4}},
	}

	for _, tt := range tests {
		t.Run(tt.ref.String(), func(t *testing.T) {
			got, err := table.SlotFor(tt.ref)
			if err != nil {
				t.Fatalf("SlotFor(%v) failed: %v", tt.ref, err)
			}
			if got.OT != tt.want.OT || got.NT != tt.want.NT {
				t.Errorf("SlotFor(%v) = %+v, want OT %d NT %d", tt.ref, got, tt.want.OT, tt.want.NT)
			}
			if tt.want.Combined >= 0 && got.Combined != tt.want.Combined {
				t.Errorf("SlotFor(%v).Combined = %d, want %d", tt.ref, got.Combined, tt.want.Combined)
			}
		})
	}
}

func TestSlotForNTCombined(t *testing.T) {
	table := NewSlotTable(New("KJV"))

	// The combined layout places the NT after the whole OT plus its
	// own heading pair, so Matt 1:1 sits four slots past the final
	// OT slot.
	mal, err := table.SlotFor(Ref{"Mal", 4, 6})
	if err != nil {
		t.Fatalf("SlotFor(Mal 4:6) failed: %v", err)
	}
	matt, err := table.SlotFor(Ref{"Matt", 1, 1})
	if err != nil {
		t.Fatalf("SlotFor(Matt 1:1) failed: %v", err)
	}
	if matt.Combined != mal.Combined+5 {
		t.Errorf("Matt 1:1 Combined = %d, want %d", matt.Combined, mal.Combined+5)
	}
	if matt.NT != 4 {
		t.Errorf("Matt 1:1 NT = %d, want 4", matt.NT)
	}
	if matt.OT != -1 || mal.NT != -1 {
		t.Errorf("testament-local slots leaked: Matt.OT=%d Mal.NT=%d", matt.OT, mal.NT)
	}
}

func TestSlotForErrors(t *testing.T) {
	table := NewSlotTable(New("KJV"))

	tests := []Ref{
		{"Nope", 1, 1},  // unknown book
		{"Gen", 0, 1},   // chapters start at 1
		{"Gen", 51, 1},  // past the last chapter
		{"Gen", 1, 0},   // verses start at 1
		{"Gen", 1, 32},  // past the last verse
		{"Obad", 1, 22}, // single chapter book overflow
	}

	for _, ref := range tests {
		t.Run(ref.String(), func(t *testing.T) {
			if _, err := table.SlotFor(ref); !errors.Is(err, swerrors.ErrNotFound) {
				t.Errorf("SlotFor(%v) error = %v, want ErrNotFound", ref, err)
			}
		})
	}
}

func TestRefAtRoundTrip(t *testing.T) {
	table := NewSlotTable(New("KJV"))

	refs := []Ref{
		{"Gen", 1, 1},
		{"Gen", 50, 26},
		{"Ps", 119, 176},
		{"Mal", 4, 6},
		{"Matt", 1, 1},
		{"John", 3, 16},
		{"Rev", 22, 21},
	}

	for _, ref := range refs {
		t.Run(ref.String(), func(t *testing.T) {
			slots, err := table.SlotFor(ref)
			if err != nil {
				t.Fatalf("SlotFor(%v) failed: %v", ref, err)
			}
			testament, slot := OldTestament, slots.OT
			if slots.NT >= 0 {
				testament, slot = NewTestament, slots.NT
			}
			got, ok := table.RefAt(testament, slot)
			if !ok {
				t.Fatalf("RefAt(%v, %d) not found", testament, slot)
			}
			if got != ref {
				t.Errorf("RefAt(%v, %d) = %v, want %v", testament, slot, got, ref)
			}
		})
	}
}

func TestRefAtHeadings(t *testing.T) {
	table := NewSlotTable(New("KJV"))

	// Slots 0 and 1 are front matter, 2 is the Genesis introduction,
	// 3 is the chapter 1 heading.
	for slot, want := range map[int]Ref{
		0: {Book: "FRT"},
		1: {Book: "FRT"},
		2: {Book: "Gen", Chapter: 0, Verse: 0},
		3: {Book: "Gen", Chapter: 1, Verse: 0},
	} {
		got, ok := table.RefAt(OldTestament, slot)
		if !ok {
			t.Fatalf("RefAt(OT, %d) not found", slot)
		}
		if got != want {
			t.Errorf("RefAt(OT, %d) = %v, want %v", slot, got, want)
		}
	}

	if _, ok := table.RefAt(OldTestament, -1); ok {
		t.Error("RefAt(OT, -1) = ok, want not found")
	}
	if _, ok := table.RefAt(OldTestament, table.SlotCount(OldTestament)); ok {
		t.Error("RefAt past the end = ok, want not found")
	}
}

func TestSlotCountMatchesLastVerse(t *testing.T) {
	table := NewSlotTable(New("KJV"))

	last, ok := table.RefAt(OldTestament, table.SlotCount(OldTestament)-1)
	if !ok {
		t.Fatal("final OT slot not found")
	}
	if (last != Ref{"Mal", 4, 6}) {
		t.Errorf("final OT slot = %v, want Mal 4:6", last)
	}

	last, ok = table.RefAt(NewTestament, table.SlotCount(NewTestament)-1)
	if !ok {
		t.Fatal("final NT slot not found")
	}
	if (last != Ref{"Rev", 22, 21}) {
		t.Errorf("final NT slot = %v, want Rev 22:21", last)
	}
}

// Walking every verse in scheme order must produce strictly increasing
// slots in all three layouts, with no slot assigned twice.
func TestSlotsMonotonic(t *testing.T) {
	for _, name := range []string{"KJV", "Vulgate", "Ethiopian"} {
		t.Run(name, func(t *testing.T) {
			s := New(name)
			table := NewSlotTable(s)
			prev := Slots{Combined: -1, OT: -1, NT: -1}
			for _, b := range s.Books {
				for c := 1; c <= len(b.Chapters); c++ {
					for v := 1; v <= b.Chapters[c-1]; v++ {
						got, err := table.SlotFor(Ref{b.OSIS, c, v})
						if err != nil {
							t.Fatalf("SlotFor(%s %d:%d) failed: %v", b.OSIS, c, v, err)
						}
						if got.Combined <= prev.Combined {
							t.Fatalf("%s %d:%d Combined %d not after %d", b.OSIS, c, v, got.Combined, prev.Combined)
						}
						if got.OT >= 0 && got.OT <= prev.OT {
							t.Fatalf("%s %d:%d OT %d not after %d", b.OSIS, c, v, got.OT, prev.OT)
						}
						if got.NT >= 0 && got.NT <= prev.NT {
							t.Fatalf("%s %d:%d NT %d not after %d", b.OSIS, c, v, got.NT, prev.NT)
						}
						if got.Combined >= 0 {
							prev.Combined = got.Combined
						}
						if got.OT >= 0 {
							prev.OT = got.OT
						}
						if got.NT >= 0 {
							prev.NT = got.NT
						}
					}
				}
			}
		})
	}
}

func TestTestamentFor(t *testing.T) {
	table := NewSlotTable(New("KJV"))

	tests := []struct {
		book string
		want Testament
		ok   bool
	}{
		{"Gen", OldTestament, true},
		{"Mal", OldTestament, true},
		{"Matt", NewTestament, true},
		{"Rev", NewTestament, true},
		{"Nope", OldTestament, false},
	}

	for _, tt := range tests {
		got, ok := table.TestamentFor(tt.book)
		if ok != tt.ok || (ok && got != tt.want) {
			t.Errorf("TestamentFor(%q) = %v, %v; want %v, %v", tt.book, got, ok, tt.want, tt.ok)
		}
	}
}
