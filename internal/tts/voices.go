package tts

import (
	"context"
	"strings"
)

// Gender is the (possibly inferred) gender of a voice.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

// ParseGender accepts "male"/"female" (and "m"/"f") in any case. Empty
// input yields "" meaning no filter.
func ParseGender(s string) (Gender, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return "", true
	case "male", "m":
		return GenderMale, true
	case "female", "f":
		return GenderFemale, true
	default:
		return "", false
	}
}

// Voice describes one installed or offered voice.
type Voice struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Language string `json:"language,omitempty"`
	Gender   Gender `json:"gender"`
}

// Catalog is implemented by backends that can enumerate their voices.
type Catalog interface {
	Voices(ctx context.Context) ([]Voice, error)
}

// Language is a selectable language for backends keyed by language code.
type Language struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// LanguageLister is implemented by backends that take a fixed set of
// language codes instead of voices.
type LanguageLister interface {
	Languages() []Language
	DefaultLanguage() string
}

var femaleHints = []string{"female", "zira", "hazel", "woman", "girl"}

// InferGender guesses a voice gender from its name. Names that carry a
// known female hint are female, everything else is male.
func InferGender(name string) Gender {
	lower := strings.ToLower(name)
	for _, hint := range femaleHints {
		if strings.Contains(lower, hint) {
			return GenderFemale
		}
	}
	return GenderMale
}

// FilterByGender returns the voices of gender g, in catalog order. An empty
// gender returns voices unchanged.
func FilterByGender(voices []Voice, g Gender) []Voice {
	if g == "" {
		return voices
	}
	var out []Voice
	for _, v := range voices {
		if v.Gender == g {
			out = append(out, v)
		}
	}
	return out
}

// FindVoice looks up a voice by ID, then by case-insensitive name.
func FindVoice(voices []Voice, selector string) (Voice, bool) {
	if selector == "" {
		return Voice{}, false
	}
	for _, v := range voices {
		if v.ID == selector {
			return v, true
		}
	}
	for _, v := range voices {
		if strings.EqualFold(v.Name, selector) {
			return v, true
		}
	}
	return Voice{}, false
}
