// Command plate-validator prints the Saudi plate letter table and checks a
// list of plates against the format rules.
//
//	plate-validator                  # built-in sample plates
//	plate-validator -lang ar "أ ب 1234" AB1234
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"plate-service/internal/plate"
)

var samplePlates = []string{
	"أ ب ج ١٢٣٤",
	"أبج1234",
	"ABC1234",
	"س ص ٩٨٧",
	"ث خ ذ 123",
	"أب12345",
	"أبجد123",
	"1234",
	"أبج",
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("plate-validator", flag.ContinueOnError)
	fs.SetOutput(stderr)
	lang := fs.String("lang", "en", "message language: en or ar")
	quiet := fs.Bool("quiet", false, "skip the letter table")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *lang != "en" && *lang != "ar" {
		fmt.Fprintf(stderr, "unknown -lang %q\n", *lang)
		return 2
	}

	if !*quiet {
		printLetters(stdout)
	}

	plates := fs.Args()
	if len(plates) == 0 {
		plates = samplePlates
	}

	invalid := 0
	for _, p := range plates {
		if !printResult(stdout, p, *lang) {
			invalid++
		}
	}
	fmt.Fprintf(stdout, "\n%d/%d plates valid\n", len(plates)-invalid, len(plates))

	if invalid > 0 && len(fs.Args()) > 0 {
		return 1
	}
	return 0
}

func printLetters(w io.Writer) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ARABIC\tLATIN")
	for _, l := range plate.Letters() {
		fmt.Fprintf(tw, "%s\t%s\n", l.Arabic, l.Latin)
	}
	tw.Flush()
	fmt.Fprintf(w, "%d permitted letters\n\n", len(plate.Letters()))
}

func printResult(w io.Writer, p, lang string) bool {
	result := plate.Validate(p)

	status := "valid"
	if !result.Valid {
		status = "invalid"
	}
	fmt.Fprintf(w, "%-20s %s\n", p, status)
	fmt.Fprintf(w, "  message: %s\n", pick(lang, result.Message, result.MessageAR))

	if len(result.Errors) > 0 {
		fmt.Fprintf(w, "  errors: %s\n", joinIssues(result.Errors, lang))
	}
	if len(result.Warnings) > 0 {
		fmt.Fprintf(w, "  warnings: %s\n", joinIssues(result.Warnings, lang))
	}
	if !result.Valid {
		if suggestions := plate.SuggestCorrections(p); len(suggestions) > 0 {
			fmt.Fprintf(w, "  suggestions: %s\n", strings.Join(suggestions, "; "))
		}
	}
	return result.Valid
}

func joinIssues(issues []plate.Issue, lang string) string {
	parts := make([]string, 0, len(issues))
	for _, issue := range issues {
		parts = append(parts, pick(lang, issue.Message, issue.MessageAR))
	}
	return strings.Join(parts, "; ")
}

func pick(lang, en, ar string) string {
	if lang == "ar" {
		return ar
	}
	return en
}
