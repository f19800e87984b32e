// Package prefs persists user preferences, currently the target language of
// spoken results.
package prefs

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/text/language"
)

// DefaultLanguage is used when nothing has been stored.
const DefaultLanguage = "en"

// LanguageKey is the storage key of the target language.
const LanguageKey = "targetLanguage"

// ErrUnsupportedLanguage is returned for languages the service cannot speak.
var ErrUnsupportedLanguage = errors.New("unsupported language")

// Language is a selectable target language.
type Language struct {
	Code string
	Name string
}

var supported = []Language{
	{Code: "en", Name: "English"},
	{Code: "hi", Name: "हिंदी"},
}

// SupportedLanguages lists the selectable languages.
func SupportedLanguages() []Language {
	out := make([]Language, len(supported))
	copy(out, supported)
	return out
}

// Normalize maps a BCP 47 tag such as "hi-IN" or "EN" to a supported code.
func Normalize(lang string) (string, error) {
	tag, err := language.Parse(lang)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedLanguage, lang)
	}
	base, _ := tag.Base()
	for _, l := range supported {
		if base.String() == l.Code {
			return l.Code, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedLanguage, lang)
}

// Store persists preferences.
type Store interface {
	// Language returns the stored target language, or DefaultLanguage when
	// none is stored.
	Language(ctx context.Context) (string, error)
	// SetLanguage normalizes and stores the target language.
	SetLanguage(ctx context.Context, lang string) error
}
