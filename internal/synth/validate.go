package synth

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/nadzzz/narrator/internal/chunk"
)

// OversizePolicy decides what happens when text exceeds a configured ceiling.
type OversizePolicy string

const (
	OversizeWarn   OversizePolicy = "warn"
	OversizeReject OversizePolicy = "reject"
)

// Limits are the input ceilings checked before any synthesis call. A zero
// ceiling is disabled.
type Limits struct {
	MaxChars      int
	MaxWordsTotal int
	Policy        OversizePolicy
	LongTextWords int
}

// Stats describes accepted input.
type Stats struct {
	Words      int
	Characters int
	// Notices are soft, user-visible warnings (long text, oversize under the
	// warn policy).
	Notices []string
}

// Validate checks text against the limits. It returns an EmptyInput error
// for blank text and an OversizeInput error when a ceiling is exceeded under
// the reject policy.
func Validate(text string, l Limits) (Stats, error) {
	if strings.TrimSpace(text) == "" {
		return Stats{}, newError(KindEmptyInput, -1, nil)
	}

	st := Stats{
		Words:      chunk.CountWords(text),
		Characters: utf8.RuneCountInString(text),
	}

	var over string
	switch {
	case l.MaxChars > 0 && st.Characters > l.MaxChars:
		over = fmt.Sprintf("Text is %d characters; the limit is %d.", st.Characters, l.MaxChars)
	case l.MaxWordsTotal > 0 && st.Words > l.MaxWordsTotal:
		over = fmt.Sprintf("Text is %d words; the limit is %d.", st.Words, l.MaxWordsTotal)
	}
	if over != "" {
		if l.Policy == OversizeReject {
			return st, newError(KindOversizeInput, -1, errors.New(over))
		}
		st.Notices = append(st.Notices, over+" Generation may be slow.")
	}

	if l.LongTextWords > 0 && st.Words > l.LongTextWords {
		st.Notices = append(st.Notices,
			fmt.Sprintf("Long text detected (%d words). Audio will be generated in safe chunks.", st.Words))
	}
	return st, nil
}
