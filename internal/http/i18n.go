package http

import (
	"github.com/gin-gonic/gin"
	"golang.org/x/text/language"

	"plate-service/internal/plate"
)

var (
	supportedLanguages = []language.Tag{language.English, language.Arabic}
	languageMatcher    = language.NewMatcher(supportedLanguages)
)

// preferredLanguage picks "ar" or "en" from the lang query parameter or the
// Accept-Language header. English is the fallback.
func preferredLanguage(c *gin.Context) string {
	candidates := make([]language.Tag, 0, 4)
	if q := c.Query("lang"); q != "" {
		if tag, err := language.Parse(q); err == nil {
			candidates = append(candidates, tag)
		}
	}
	if tags, _, err := language.ParseAcceptLanguage(c.GetHeader("Accept-Language")); err == nil {
		candidates = append(candidates, tags...)
	}
	if len(candidates) == 0 {
		return "en"
	}

	_, index, confidence := languageMatcher.Match(candidates...)
	if confidence == language.No {
		return "en"
	}
	if supportedLanguages[index] == language.Arabic {
		return "ar"
	}
	return "en"
}

type issueView struct {
	Code    plate.Code `json:"code"`
	Message string     `json:"message"`
}

type validationView struct {
	Valid       bool             `json:"valid"`
	Message     string           `json:"message"`
	Language    string           `json:"language"`
	Plate       string           `json:"plate"`
	Normalized  string           `json:"normalized"`
	Components  plate.Components `json:"components"`
	Errors      []issueView      `json:"errors"`
	Warnings    []issueView      `json:"warnings"`
	LetterCount int              `json:"letter_count,omitempty"`
	DigitCount  int              `json:"digit_count,omitempty"`
	Suggestions []string         `json:"suggestions,omitempty"`
}

func newValidationView(result plate.Result, lang string) validationView {
	message := result.Message
	if lang == "ar" {
		message = result.MessageAR
	}
	return validationView{
		Valid:       result.Valid,
		Message:     message,
		Language:    lang,
		Plate:       result.Plate,
		Normalized:  result.Normalized,
		Components:  result.Components,
		Errors:      localizeIssues(result.Errors, lang),
		Warnings:    localizeIssues(result.Warnings, lang),
		LetterCount: result.LetterCount,
		DigitCount:  result.DigitCount,
	}
}

func localizeIssues(issues []plate.Issue, lang string) []issueView {
	views := make([]issueView, 0, len(issues))
	for _, issue := range issues {
		msg := issue.Message
		if lang == "ar" {
			msg = issue.MessageAR
		}
		views = append(views, issueView{Code: issue.Code, Message: msg})
	}
	return views
}
