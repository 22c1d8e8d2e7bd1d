package plate

import "strings"

const (
	heh     = 'ه'
	tatweel = 'ـ'
)

// Key returns the canonical registry key for a plate: Latin letters in upper
// case followed by the ASCII digits, e.g. "أ ب 1234" and "ab-1234" both give
// "AB1234". HEH is accepted with or without the trailing TATWEEL.
//
// ok is false when a letter has no counterpart in the table, when any other
// character is present, or when letters or digits are missing.
func Key(plate string) (string, bool) {
	letters, digits, ok := transliterate(plate)
	if !ok || letters == "" || digits == "" {
		return "", false
	}
	return letters + digits, true
}

// PartialKey transliterates a fragment of a plate the way Key does but
// accepts letters or digits alone, so "أب" gives "AB" for substring search.
func PartialKey(plate string) (string, bool) {
	letters, digits, ok := transliterate(plate)
	if !ok || letters+digits == "" {
		return "", false
	}
	return letters + digits, true
}

// LookupKey is Key with a fallback to the normalized, upper-cased plate, so
// that every non-empty plate has some key to store or search by.
func LookupKey(plate string) string {
	if key, ok := Key(plate); ok {
		return key
	}
	return strings.ToUpper(Normalize(plate))
}

func transliterate(plate string) (string, string, bool) {
	runes := []rune(Normalize(plate))
	var letters, digits strings.Builder

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r >= '0' && r <= '9':
			digits.WriteRune(r)
		case (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z'):
			if !HasArabicEquivalent(string(r)) {
				return "", "", false
			}
			letters.WriteString(strings.ToUpper(string(r)))
		case r == heh:
			if i+1 < len(runes) && runes[i+1] == tatweel {
				i++
			}
			letters.WriteString(arabicToLatin[string([]rune{heh, tatweel})])
		default:
			latin, ok := ArabicToLatin(string(r))
			if !ok {
				return "", "", false
			}
			letters.WriteString(latin)
		}
	}
	return letters.String(), digits.String(), true
}
