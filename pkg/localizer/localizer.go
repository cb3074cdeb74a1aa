// Package localizer loads the embedded message catalogues.
package localizer

import (
	"embed"
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

//go:embed locale/*.toml
var catalogues embed.FS

// InitLocalizer builds a bundle holding the catalogue of every configured
// language. A language without a catalogue is a deployment mistake and
// panics at startup.
func InitLocalizer(defaultLang language.Tag, languages []language.Tag) *i18n.Bundle {
	bundle, err := NewBundle(defaultLang, languages)
	if err != nil {
		panic(err)
	}

	return bundle
}

func NewBundle(defaultLang language.Tag, languages []language.Tag) (*i18n.Bundle, error) {
	bundle := i18n.NewBundle(defaultLang)
	bundle.RegisterUnmarshalFunc("toml", toml.Unmarshal)

	for _, l := range languages {
		path := fmt.Sprintf("locale/active.%s.toml", l.String())
		if _, err := bundle.LoadMessageFileFS(catalogues, path); err != nil {
			return nil, fmt.Errorf("localizer: load %s: %w", path, err)
		}
	}

	return bundle, nil
}
