package strategy

import (
	"strings"
	"unicode"
)

// accentReplacer folds the French diacritics and typographic apostrophes
// found in social posts, so rule tables and lexicons can stay accent free.
// Input is lowercased before the replacer runs.
var accentReplacer = strings.NewReplacer(
	"à", "a", "â", "a", "ä", "a",
	"é", "e", "è", "e", "ê", "e", "ë", "e",
	"î", "i", "ï", "i",
	"ô", "o", "ö", "o",
	"ù", "u", "û", "u", "ü", "u",
	"ç", "c",
	"œ", "oe",
	"’", "'",
	"‘", "'",
)

func normalizeText(s string) string {
	return accentReplacer.Replace(strings.ToLower(s))
}

// tokens splits normalized text into its word set.
func tokens(s string) map[string]bool {
	words := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}
