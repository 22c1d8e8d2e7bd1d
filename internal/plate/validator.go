// Package plate validates Saudi vehicle plate strings and transliterates
// between the Arabic plate letters and their fixed Latin equivalents.
//
// Everything in this package is a pure function of its input; the letter
// table is built once at init and never modified, so all functions are safe
// for concurrent use.
package plate

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	MinLetters = 1
	MaxLetters = 3
	MinDigits  = 1
	MaxDigits  = 4
)

// Code identifies a validation issue.
type Code string

const (
	CodeNoLettersFound        Code = "no_letters_found"
	CodeNoDigitsFound         Code = "no_digits_found"
	CodeInvalidLetterCount    Code = "invalid_letter_count"
	CodeDisallowedLetter      Code = "disallowed_letter"
	CodeInvalidDigitCount     Code = "invalid_digit_count"
	CodeLatinCountAdvisory    Code = "latin_count_advisory"
	CodeUnmappableLatinLetter Code = "unmappable_latin_letter"
)

// Issue is a single error or warning, described in English and Arabic.
type Issue struct {
	Code      Code   `json:"code"`
	Message   string `json:"message"`
	MessageAR string `json:"message_ar"`
}

// Components is the letter/digit breakdown of one normalized plate string.
type Components struct {
	ArabicLetters []string `json:"arabic_letters"`
	LatinLetters  []string `json:"latin_letters"`
	Digits        []string `json:"digits"`
	Raw           string   `json:"raw"`
}

// Result is the outcome of Validate. LetterCount and DigitCount are only set
// when Valid is true.
type Result struct {
	Valid       bool       `json:"valid"`
	Message     string     `json:"message"`
	MessageAR   string     `json:"message_ar"`
	Plate       string     `json:"plate"`
	Normalized  string     `json:"normalized"`
	Components  Components `json:"components"`
	Errors      []Issue    `json:"errors"`
	Warnings    []Issue    `json:"warnings"`
	LetterCount int        `json:"letter_count,omitempty"`
	DigitCount  int        `json:"digit_count,omitempty"`
}

// Digits are matched as ASCII only. Arabic-Indic digits sit inside the
// Arabic block and end up in the Arabic runs.
var (
	arabicRunRe = regexp.MustCompile(`[\x{0600}-\x{06FF}]+`)
	latinRunRe  = regexp.MustCompile(`[A-Za-z]+`)
	digitRunRe  = regexp.MustCompile(`[0-9]+`)
)

// Normalize strips whitespace, hyphens and underscores. All other characters
// pass through unchanged.
func Normalize(plate string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == '-' || r == '_' {
			return -1
		}
		return r
	}, plate)
}

// ExtractComponents normalizes plate and splits it into Arabic, Latin and
// digit runs, each in input order.
func ExtractComponents(plate string) Components {
	normalized := Normalize(plate)
	return Components{
		ArabicLetters: findRuns(arabicRunRe, normalized),
		LatinLetters:  findRuns(latinRunRe, normalized),
		Digits:        findRuns(digitRunRe, normalized),
		Raw:           normalized,
	}
}

func findRuns(re *regexp.Regexp, s string) []string {
	runs := re.FindAllString(s, -1)
	if runs == nil {
		return []string{}
	}
	return runs
}

// Validate checks plate against the Saudi format rules. Arabic letter checks
// are fatal; Latin letter checks only add warnings.
func Validate(plate string) Result {
	c := ExtractComponents(plate)
	res := Result{
		Plate:      plate,
		Normalized: c.Raw,
		Components: c,
		Errors:     []Issue{},
		Warnings:   []Issue{},
	}

	hasArabic := len(c.ArabicLetters) > 0
	hasLatin := len(c.LatinLetters) > 0

	if !hasArabic && !hasLatin {
		return res.fail(Issue{
			Code:      CodeNoLettersFound,
			Message:   "no letters found",
			MessageAR: "لا توجد أحرف في اللوحة",
		})
	}
	if len(c.Digits) == 0 {
		return res.fail(Issue{
			Code:      CodeNoDigitsFound,
			Message:   "no digits found",
			MessageAR: "لا توجد أرقام في اللوحة",
		})
	}

	arabic := strings.Join(c.ArabicLetters, "")
	arabicCount := utf8.RuneCountInString(arabic)
	if hasArabic {
		if arabicCount < MinLetters || arabicCount > MaxLetters {
			return res.fail(Issue{
				Code:      CodeInvalidLetterCount,
				Message:   fmt.Sprintf("invalid letter count: got %d", arabicCount),
				MessageAR: fmt.Sprintf("عدد الأحرف غير صحيح: %d (المسموح: %d-%d)", arabicCount, MinLetters, MaxLetters),
			})
		}
		for _, r := range arabic {
			letter := string(r)
			if IsPermittedArabic(letter) {
				continue
			}
			permitted := strings.Join(PermittedArabicLetters(), ", ")
			res.Warnings = append(res.Warnings, Issue{
				Code:      CodeDisallowedLetter,
				Message:   "permitted letters: " + permitted,
				MessageAR: "الأحرف المسموحة: " + permitted,
			})
			return res.fail(Issue{
				Code:      CodeDisallowedLetter,
				Message:   "letter not permitted in Saudi plates: " + letter,
				MessageAR: "حرف غير مسموح في اللوحات السعودية: " + letter,
			})
		}
	}

	latin := strings.Join(c.LatinLetters, "")
	latinCount := utf8.RuneCountInString(latin)
	if hasLatin {
		if latinCount < MinLetters || latinCount > MaxLetters {
			res.Warnings = append(res.Warnings, Issue{
				Code:      CodeLatinCountAdvisory,
				Message:   fmt.Sprintf("invalid Latin letter count: got %d", latinCount),
				MessageAR: fmt.Sprintf("عدد الأحرف الإنجليزية غير صحيح: %d (المسموح: %d-%d)", latinCount, MinLetters, MaxLetters),
			})
		}
		for _, r := range latin {
			letter := string(r)
			if HasArabicEquivalent(letter) {
				continue
			}
			res.Warnings = append(res.Warnings, Issue{
				Code:      CodeUnmappableLatinLetter,
				Message:   "no Arabic equivalent for letter: " + letter,
				MessageAR: "حرف إنجليزي ليس له مقابل عربي مسموح: " + letter,
			})
		}
	}

	digitCount := len(strings.Join(c.Digits, ""))
	if digitCount < MinDigits || digitCount > MaxDigits {
		return res.fail(Issue{
			Code:      CodeInvalidDigitCount,
			Message:   fmt.Sprintf("invalid digit count: got %d", digitCount),
			MessageAR: fmt.Sprintf("عدد الأرقام غير صحيح: %d (المسموح: %d-%d)", digitCount, MinDigits, MaxDigits),
		})
	}

	res.Valid = true
	res.Message = "valid plate"
	res.MessageAR = "لوحة صحيحة"
	if hasArabic {
		res.LetterCount = arabicCount
	} else {
		res.LetterCount = latinCount
	}
	res.DigitCount = digitCount
	return res
}

func (r Result) fail(issue Issue) Result {
	r.Valid = false
	r.Errors = append(r.Errors, issue)
	r.Message = issue.Message
	r.MessageAR = issue.MessageAR
	return r
}

// SuggestCorrections offers an Arabic rendering of a Latin-lettered plate.
// Letters without an Arabic equivalent produce a note instead, and the
// combined suggestion is only emitted when every Latin letter mapped.
//
// A suggestion is not guaranteed to pass Validate: H renders as "هـ", and
// Validate checks Arabic letters one rune at a time, so it rejects the bare
// HEH. Key and LookupKey accept that form.
func SuggestCorrections(plate string) []string {
	c := ExtractComponents(plate)
	suggestions := []string{}
	if len(c.LatinLetters) == 0 {
		return suggestions
	}

	var arabic strings.Builder
	complete := true
	for _, r := range strings.Join(c.LatinLetters, "") {
		letter := string(r)
		a, ok := LatinToArabic(letter)
		if !ok {
			complete = false
			suggestions = append(suggestions, "no Arabic equivalent for letter: "+letter)
			continue
		}
		arabic.WriteString(a)
	}

	if complete {
		suggestions = append(suggestions, arabic.String()+" "+strings.Join(c.Digits, ""))
	}
	return suggestions
}
