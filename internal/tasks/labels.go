package tasks

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// TimeLayout is used by FormatTime.
const TimeLayout = "2006-01-02 15:04"

var titleCaser = cases.Title(language.English)

// ProviderLabel renders a model provider name.
func ProviderLabel(provider string) string {
	switch strings.ToLower(provider) {
	case ProviderOpenAI:
		return "OpenAI"
	case ProviderAnthropic:
		return "Anthropic"
	default:
		return titleCaser.String(provider)
	}
}

// InstanceLabel renders an instance type.
func InstanceLabel(instance string) string {
	return titleCaser.String(instance)
}

// FormatTime renders t, or fallback when t is nil.
func FormatTime(t *time.Time, fallback string) string {
	if t == nil || t.IsZero() {
		return fallback
	}
	return t.Format(TimeLayout)
}
