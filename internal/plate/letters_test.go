package plate

import (
	"testing"
)

func TestLetterTableRoundTrip(t *testing.T) {
	letters := Letters()
	if len(letters) != 17 {
		t.Fatalf("expected 17 letters, got %d", len(letters))
	}

	seenLatin := map[string]bool{}
	for _, l := range letters {
		latin, ok := ArabicToLatin(l.Arabic)
		if !ok || latin != l.Latin {
			t.Errorf("ArabicToLatin(%q) = %q, %v; want %q", l.Arabic, latin, ok, l.Latin)
		}
		arabic, ok := LatinToArabic(latin)
		if !ok || arabic != l.Arabic {
			t.Errorf("LatinToArabic(%q) = %q, %v; want %q", latin, arabic, ok, l.Arabic)
		}
		if seenLatin[l.Latin] {
			t.Errorf("Latin letter %q mapped twice", l.Latin)
		}
		seenLatin[l.Latin] = true
	}
}

func TestLettersReturnsCopy(t *testing.T) {
	letters := Letters()
	letters[0].Latin = "Q"

	if latin, _ := ArabicToLatin("أ"); latin != "A" {
		t.Errorf("table mutated through Letters(): got %q", latin)
	}
	if Letters()[0].Latin != "A" {
		t.Error("Letters() exposed the backing array")
	}
}

func TestLatinToArabic(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   string
		wantOK bool
	}{
		{name: "upper", input: "J", want: "ح", wantOK: true},
		{name: "lower", input: "x", want: "ص", wantOK: true},
		{name: "h", input: "H", want: "هـ", wantOK: true},
		{name: "not in scheme", input: "C", wantOK: false},
		{name: "arabic input", input: "أ", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := LatinToArabic(tt.input)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("LatinToArabic(%q) = %q, %v; want %q, %v", tt.input, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestIsPermittedArabic(t *testing.T) {
	for _, letter := range PermittedArabicLetters() {
		if !IsPermittedArabic(letter) {
			t.Errorf("IsPermittedArabic(%q) = false", letter)
		}
	}
	for _, letter := range []string{"ث", "خ", "ذ", "ج", "ه", "A"} {
		if IsPermittedArabic(letter) {
			t.Errorf("IsPermittedArabic(%q) = true", letter)
		}
	}
}
