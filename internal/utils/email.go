package utils

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/customeros/mailsherpa/mailvalidate"
)

// NormalizeEmail returns the cleaned address, or the lower-cased input when it is not valid syntax.
func NormalizeEmail(email string) string {
	email = strings.TrimSpace(email)
	if email == "" {
		return ""
	}
	validation := mailvalidate.ValidateEmailSyntax(email)
	if validation.IsValid {
		return strings.ToLower(validation.CleanEmail)
	}
	return strings.ToLower(email)
}

func IsValidEmail(email string) bool {
	return mailvalidate.ValidateEmailSyntax(strings.TrimSpace(email)).IsValid
}

func SameEmailAddress(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return NormalizeEmail(a) == NormalizeEmail(b)
}

// HTMLToText returns the visible text content of an HTML document.
func HTMLToText(html string) string {
	if strings.TrimSpace(html) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	return doc.Text()
}
