package enums

import (
	"fmt"
	"strings"
)

// PrintMode selects which surface receives auto-printed receipts.
type PrintMode string

const (
	PrintModeBrowser PrintMode = "browser"
	PrintModePDF     PrintMode = "pdf"
)

// IsValid reports whether the value is a known PrintMode.
func (p PrintMode) IsValid() bool {
	return p == PrintModeBrowser || p == PrintModePDF
}

// ParsePrintMode converts raw input into PrintMode, defaulting to the browser surface.
func ParsePrintMode(value string) (PrintMode, error) {
	normalized := PrintMode(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return PrintModeBrowser, nil
	}
	if !normalized.IsValid() {
		return "", fmt.Errorf("invalid print mode %q", value)
	}
	return normalized, nil
}
