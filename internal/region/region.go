// Package region resolves free-text region labels and national dex ranks
// to canonical region keys, display labels and map image URLs.
//
// Resolution is pure and deterministic: no I/O, no mutable state.
package region

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NationalSentinel marks a membership whose region must be inferred from
// the record's national dex number.
const NationalSentinel = "NATIONAL"

// band maps an inclusive national dex range to a region key. The final
// band is open-ended (max 0).
type band struct {
	min, max int
	key      string
}

var dexBands = []band{
	{1, 151, "KANTO"},
	{152, 251, "JOHTO"},
	{252, 386, "HOENN"},
	{387, 493, "SINNOH"},
	{494, 649, "UNYS"},
	{650, 721, "KALOS"},
	{722, 809, "ALOLA"},
	{810, 898, "GALAR"},
	{899, 905, "HISUI"},
	{906, 0, "PALDEA"},
}

var imageURLs = map[string]string{
	"KANTO":      "https://www.pokepedia.fr/images/thumb/4/44/Kanto_LGPE.png/275px-Kanto_LGPE.png",
	"JOHTO":      "https://www.pokepedia.fr/images/thumb/f/f2/Johto_HGSS.jpg/275px-Johto_HGSS.jpg",
	"HOENN":      "https://www.pokepedia.fr/images/thumb/4/4c/Carte_de_Hoenn_ROSA.png/275px-Carte_de_Hoenn_ROSA.png",
	"SINNOH":     "https://www.pokepedia.fr/images/thumb/9/99/Sinnoh-DEPS.png/275px-Sinnoh-DEPS.png",
	"HISUI":      "https://www.pokepedia.fr/images/thumb/c/cb/Hisui_-_LPA.png/275px-Hisui_-_LPA.png",
	"UNYS":       "https://www.pokepedia.fr/images/thumb/a/ae/Unys_-_NB2.png/275px-Unys_-_NB2.png",
	"KALOS":      "https://www.pokepedia.fr/images/thumb/d/d1/Kalos_-_XY.png/275px-Kalos_-_XY.png",
	"ALOLA":      "https://www.pokepedia.fr/images/thumb/4/4d/Alola_-_USUL.png/275px-Alola_-_USUL.png",
	"GALAR":      "https://www.pokepedia.fr/images/thumb/b/bc/Galar_-_EB.png/275px-Galar_-_EB.png",
	"PALDEA":     "https://www.pokepedia.fr/images/thumb/8/88/Paldea_-_EV.png/275px-Paldea_-_EV.png",
	"SEPTENTRIA": "https://www.pokepedia.fr/images/thumb/a/a4/Carte_Septentria_EV.png/275px-Carte_Septentria_EV.png",
	"FIORE":      "https://www.pokepedia.fr/images/thumb/f/f5/Fiore.png/275px-Fiore.png",
	"ALMIA":      "https://www.pokepedia.fr/images/thumb/f/f4/Almia.png/275px-Almia.png",
	"OBLIVIA":    "https://www.pokepedia.fr/images/thumb/9/90/Oblivia.png/275px-Oblivia.png",
}

var aliases = map[string]string{
	"UNOVA":    "UNYS",
	"KITAKAMI": "SEPTENTRIA",
}

var labels = map[string]string{
	"KANTO":      "Kanto",
	"JOHTO":      "Johto",
	"HOENN":      "Hoenn",
	"SINNOH":     "Sinnoh",
	"HISUI":      "Hisui",
	"UNYS":       "Unys",
	"KALOS":      "Kalos",
	"ALOLA":      "Alola",
	"GALAR":      "Galar",
	"PALDEA":     "Paldea",
	"SEPTENTRIA": "Septentria",
	"FIORE":      "Fiore",
	"ALMIA":      "Almia",
	"OBLIVIA":    "Oblivia",
}

var diacriticStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize trims the label, strips diacritics and uppercases it.
func Normalize(label string) string {
	trimmed := strings.TrimSpace(label)
	stripped, _, err := transform.String(diacriticStripper, trimmed)
	if err != nil {
		stripped = trimmed
	}
	return strings.ToUpper(stripped)
}

// InferKeyFromRank resolves a region key purely from a national dex
// number. Band boundaries are inclusive on both ends.
func InferKeyFromRank(rank int) string {
	if rank <= 0 {
		return ""
	}
	for _, b := range dexBands {
		if rank >= b.min && (b.max == 0 || rank <= b.max) {
			return b.key
		}
	}
	return ""
}

// ResolveKey maps a free-text region label and a dex rank to a canonical
// region key, or "" when neither yields a match.
//
// Label tokens win over the rank inference, left-to-right: the first
// token matching a known key decides, even when the rank alone would
// resolve differently.
func ResolveKey(label string, rank int) string {
	normalized := Normalize(label)
	inferred := InferKeyFromRank(rank)

	if normalized == "" || normalized == NationalSentinel {
		return inferred
	}

	tokens := strings.FieldsFunc(normalized, func(r rune) bool {
		return r == '/' || r == ',' || r == '-'
	})
	for _, token := range tokens {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		if token == NationalSentinel && inferred != "" {
			return inferred
		}
		key := token
		if alias, ok := aliases[token]; ok {
			key = alias
		}
		if _, ok := imageURLs[key]; ok {
			return key
		}
	}

	return inferred
}

// ResolveName returns the display label for the resolved key, falling
// back to the raw trimmed label when resolution fails.
func ResolveName(label string, rank int) string {
	if key := ResolveKey(label, rank); key != "" {
		if display, ok := labels[key]; ok {
			return display
		}
	}
	return strings.TrimSpace(label)
}

// ResolveImageURL returns the map image URL for the resolved key, or ""
// when resolution fails.
func ResolveImageURL(label string, rank int) string {
	if key := ResolveKey(label, rank); key != "" {
		return imageURLs[key]
	}
	return ""
}
