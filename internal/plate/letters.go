package plate

import "strings"

// Letter is one entry of the Saudi plate lettering scheme.
type Letter struct {
	Arabic string `json:"arabic"`
	Latin  string `json:"latin"`
}

// letterTable is the traffic authority's 17-letter scheme, in the order it is printed.
var letterTable = [...]Letter{
	{"أ", "A"}, {"ب", "B"}, {"ح", "J"}, {"د", "D"},
	{"ر", "R"}, {"س", "S"}, {"ص", "X"}, {"ط", "T"},
	{"ع", "E"}, {"ق", "G"}, {"ك", "K"}, {"ل", "L"},
	{"م", "Z"}, {"ن", "N"}, {"هـ", "H"}, {"و", "U"},
	{"ى", "V"},
}

var (
	arabicToLatin = make(map[string]string, len(letterTable))
	latinToArabic = make(map[string]string, len(letterTable))
)

func init() {
	for _, l := range letterTable {
		arabicToLatin[l.Arabic] = l.Latin
		latinToArabic[l.Latin] = l.Arabic
	}
}

// Letters returns a copy of the letter table.
func Letters() []Letter {
	out := make([]Letter, len(letterTable))
	copy(out, letterTable[:])
	return out
}

// PermittedArabicLetters returns the Arabic side of the table in table order.
func PermittedArabicLetters() []string {
	out := make([]string, 0, len(letterTable))
	for _, l := range letterTable {
		out = append(out, l.Arabic)
	}
	return out
}

// IsPermittedArabic reports whether letter is one of the table's Arabic letters.
func IsPermittedArabic(letter string) bool {
	_, ok := arabicToLatin[letter]
	return ok
}

// HasArabicEquivalent reports whether a Latin letter (any case) maps back to an Arabic one.
func HasArabicEquivalent(letter string) bool {
	_, ok := latinToArabic[strings.ToUpper(letter)]
	return ok
}

// ArabicToLatin returns the Latin equivalent of an Arabic plate letter.
func ArabicToLatin(letter string) (string, bool) {
	l, ok := arabicToLatin[letter]
	return l, ok
}

// LatinToArabic returns the Arabic equivalent of a Latin letter, case-insensitively.
func LatinToArabic(letter string) (string, bool) {
	a, ok := latinToArabic[strings.ToUpper(letter)]
	return a, ok
}
