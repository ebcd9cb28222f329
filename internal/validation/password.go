package validation

import (
	"unicode"
	"unicode/utf8"

	"github.com/iliyamo/planbox/internal/apperr"
)

const (
	PasswordMinLen = 6
	PasswordMaxLen = 30
	// PasswordMaxBytes is bcrypt's input limit. Multi-byte characters can
	// hit it well under PasswordMaxLen.
	PasswordMaxBytes = 72
)

// Password reports every rule the value breaks, not just the first, so a
// client can show the full list at once.
func Password(path, value string) []apperr.Issue {
	label := Label(path)
	if value == "" {
		return []apperr.Issue{issue(path, label+" is required")}
	}

	var issues []apperr.Issue
	n := utf8.RuneCountInString(value)
	if n < PasswordMinLen {
		issues = append(issues, issue(path, label+" must be at least 6 characters"))
	}
	if n > PasswordMaxLen {
		issues = append(issues, issue(path, label+" must be at most 30 characters"))
	} else if len(value) > PasswordMaxBytes {
		issues = append(issues, issue(path, label+" is too long"))
	}

	var lower, upper, digit, symbol bool
	for _, r := range value {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			symbol = true
		}
	}
	if !lower {
		issues = append(issues, issue(path, label+" must contain a lowercase letter"))
	}
	if !upper {
		issues = append(issues, issue(path, label+" must contain an uppercase letter"))
	}
	if !digit {
		issues = append(issues, issue(path, label+" must contain a digit"))
	}
	if !symbol {
		issues = append(issues, issue(path, label+" must contain a symbol"))
	}
	return issues
}

func issue(path, msg string) apperr.Issue { return apperr.Issue{Path: path, Message: msg} }
