package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExtractPhoneNumber(t *testing.T) {
	tests := []struct {
		name    string
		subject string
		want    string
	}{
		{"voicemail subject", "Voicemail from +4366412345", "+4366412345"},
		{"number in the middle", "Neue Nachricht +43 664 von Anrufer", "+43"},
		{"first match wins", "+111 then +222", "+111"},
		{"no plus sign", "Voicemail from 066412345", UnknownPhoneNumber},
		{"plus without digits", "Voicemail from +unknown", UnknownPhoneNumber},
		{"empty subject", "", UnknownPhoneNumber},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractPhoneNumber(tt.subject))
		})
	}
}

func TestTruncateText(t *testing.T) {
	assert.Equal(t, "short", TruncateText("short", 10))
	assert.Equal(t, "abcdefg...", TruncateText("abcdefghijklmnop", 10))
	assert.Equal(t, "Grüß...", TruncateText("Grüße aus Wien", 7))
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "Hallo", Preview("Hallo", 60))
	assert.Equal(t, "Hal...", Preview("Hallo", 3))
}

func TestNormalizeMessageID(t *testing.T) {
	assert.Equal(t, "abc@example.com", NormalizeMessageID(" <abc@example.com> "))
	assert.Equal(t, "abc@example.com", NormalizeMessageID("abc@example.com"))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "45.0s", FormatDuration(45*time.Second))
	assert.Equal(t, "0.5s", FormatDuration(500*time.Millisecond))
	assert.Equal(t, "2m 30.0s", FormatDuration(150*time.Second))
}

func TestFormatMessageSummary(t *testing.T) {
	received := time.Date(2024, 3, 1, 9, 5, 0, 0, time.UTC)
	assert.Equal(t, "'Voicemail from +43' from vm@example.com (2024-03-01 09:05)",
		FormatMessageSummary("Voicemail from +43", "vm@example.com", received))
	assert.Equal(t, "'(No Subject)' from vm@example.com (2024-03-01 09:05)",
		FormatMessageSummary("", "vm@example.com", received))
}

func TestHTMLToText(t *testing.T) {
	assert.Contains(t, HTMLToText("<html><body><p>--- MARKER ---</p></body></html>"), "--- MARKER ---")
	assert.Equal(t, "", HTMLToText("   "))
}
