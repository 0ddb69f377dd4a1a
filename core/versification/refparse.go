package versification

import (
	"strconv"
	"strings"

	swerrors "github.com/FocuswithJustin/swordshelf/core/errors"
)

// ParseRef parses a human-readable reference like "Gen 1:1",
// "1 John 3:16", or "Psalm 23". The verse defaults to 1 when omitted.
// The book part is not validated here; SlotFor does that against the
// module's scheme.
func ParseRef(s string) (Ref, error) {
	fields := strings.Fields(s)
	if len(fields) < 2 {
		return Ref{}, swerrors.NewNotFound("reference", s, nil)
	}

	book := strings.Join(fields[:len(fields)-1], " ")
	numbers := fields[len(fields)-1]

	chapterPart, versePart, hasVerse := strings.Cut(numbers, ":")
	chapter, err := strconv.Atoi(chapterPart)
	if err != nil || chapter < 1 {
		return Ref{}, swerrors.NewNotFound("reference", s, err)
	}
	verse := 1
	if hasVerse {
		verse, err = strconv.Atoi(versePart)
		if err != nil || verse < 1 {
			return Ref{}, swerrors.NewNotFound("reference", s, err)
		}
	}
	return Ref{Book: book, Chapter: chapter, Verse: verse}, nil
}
