package barcode

import (
	"fmt"
	"strings"
)

// ReadabilityThreshold is the length beyond which scanners start struggling
// with Code 39 symbols at typical print sizes.
const ReadabilityThreshold = 20

// Result carries the outcome of validating candidate barcode text. Invalid
// characters are reported as errors rather than raised, so callers can show
// all problems at once.
type Result struct {
	IsValid     bool     `json:"is_valid"`
	Errors      []string `json:"errors,omitempty"`
	Warnings    []string `json:"warnings,omitempty"`
	CleanedText string   `json:"cleaned_text"`
}

// Validate checks text against the 43-character Code 39 alphabet. The cleaned
// text is always upper-cased since the symbology is case-insensitive.
func Validate(text string) Result {
	cleaned := strings.ToUpper(strings.TrimSpace(text))
	result := Result{CleanedText: cleaned}

	if cleaned == "" {
		result.Errors = append(result.Errors, "text must not be empty")
		return result
	}

	seen := make(map[rune]bool)
	for _, r := range cleaned {
		if _, ok := nwTable[r]; ok && r != startStop {
			continue
		}
		if !seen[r] {
			seen[r] = true
			result.Errors = append(result.Errors, fmt.Sprintf("character %q is not encodable", r))
		}
	}

	if len(result.Errors) > 0 {
		return result
	}

	if len(cleaned) > ReadabilityThreshold {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("text length %d exceeds %d characters and may scan poorly", len(cleaned), ReadabilityThreshold))
	}

	result.IsValid = true
	return result
}
