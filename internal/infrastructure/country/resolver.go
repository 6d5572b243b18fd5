// Package country resolves free-form country names to ISO 3166-1 codes.
package country

import (
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/bicicare/invoicebridge/internal/domain/integration"
)

// displayLanguages are the languages whose region names are recognised.
var displayLanguages = []language.Tag{
	language.English,
	language.Dutch,
	language.German,
	language.French,
}

// aliases covers names customers type that CLDR does not list.
var aliases = map[string]string{
	"holland":                    "NL",
	"the netherlands":            "NL",
	"netherlands the":            "NL",
	"kingdom of the netherlands": "NL",
	"uk":                         "GB",
	"great britain":              "GB",
	"england":                    "GB",
	"usa":                        "US",
	"united states of america":   "US",
	"deutschland":                "DE",
}

// Resolver implements integration.CountryResolver from CLDR region names.
type Resolver struct {
	once  sync.Once
	names map[string]string
}

var _ integration.CountryResolver = (*Resolver)(nil)

// NewResolver creates a resolver. The name table is built on first use.
func NewResolver() *Resolver {
	return &Resolver{}
}

// Alpha2 returns the alpha-2 code for an English, Dutch, German or French
// country name, or for an alpha-2 or alpha-3 code.
func (r *Resolver) Alpha2(country string) (string, bool) {
	key := normalize(country)
	if key == "" {
		return "", false
	}
	r.once.Do(r.build)

	if code, ok := r.names[key]; ok {
		return code, true
	}
	if len(key) == 2 || len(key) == 3 {
		if region, err := language.ParseRegion(key); err == nil && region.IsCountry() {
			return region.String(), true
		}
	}
	return "", false
}

func (r *Resolver) build() {
	r.names = make(map[string]string, 1024)
	namers := make([]display.Namer, 0, len(displayLanguages))
	for _, tag := range displayLanguages {
		namers = append(namers, display.Regions(tag))
	}

	for a := 'A'; a <= 'Z'; a++ {
		for b := 'A'; b <= 'Z'; b++ {
			region, err := language.ParseRegion(string([]rune{a, b}))
			if err != nil || !region.IsCountry() {
				continue
			}
			code := region.String()
			for _, namer := range namers {
				if name := normalize(namer.Name(region)); name != "" {
					if _, taken := r.names[name]; !taken {
						r.names[name] = code
					}
				}
			}
		}
	}
	for name, code := range aliases {
		r.names[name] = code
	}
}

var stripMarks = runes.Remove(runes.In(unicode.Mn))

// normalize lower-cases, folds diacritics and collapses whitespace.
func normalize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	folded, _, err := transform.String(transform.Chain(norm.NFD, stripMarks, norm.NFC), s)
	if err == nil {
		s = folded
	}
	s = strings.ToLower(s)
	s = strings.NewReplacer(",", " ", ".", " ", "(", " ", ")", " ").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}
