package utils

import (
	"regexp"
	"strings"
)

const UnknownPhoneNumber = "unknown"

var phoneNumberRegex = regexp.MustCompile(`\+\d+`)

// ExtractPhoneNumber returns the first "+<digits>" run in the subject, or "unknown".
func ExtractPhoneNumber(subject string) string {
	match := phoneNumberRegex.FindString(subject)
	if match == "" {
		return UnknownPhoneNumber
	}
	return match
}

// TruncateText shortens text to maxLength runes, ending with "..." when cut.
func TruncateText(text string, maxLength int) string {
	runes := []rune(text)
	if len(runes) <= maxLength {
		return text
	}
	if maxLength <= 3 {
		return string(runes[:maxLength])
	}
	return string(runes[:maxLength-3]) + "..."
}

// Preview returns the first n runes of text followed by "..." if anything was cut.
func Preview(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n]) + "..."
}

func NormalizeMessageID(messageID string) string {
	messageID = strings.TrimSpace(messageID)
	messageID = strings.TrimPrefix(messageID, "<")
	messageID = strings.TrimSuffix(messageID, ">")
	return messageID
}

func IsStringInSlice(s string, slice []string) bool {
	for _, v := range slice {
		if v == s {
			return true
		}
	}
	return false
}
