// Package barcode encodes text into Code 39 bar patterns and renders them as
// SVG. It is a pure function of its input: no gateway, network, or image
// service involvement.
package barcode

import (
	"fmt"
	"strings"
)

// startStop is the reserved sentinel framing every symbol sequence. It is not
// part of the encodable alphabet.
const startStop = '*'

// nwTable lists the nine Code 39 elements per character, bars at even
// positions and spaces at odd ones, 'n' narrow and 'w' wide. Three of the
// nine are always wide.
var nwTable = map[rune]string{
	'0': "nnnwwnwnn", '1': "wnnwnnnnw", '2': "nnwwnnnnw", '3': "wnwwnnnnn",
	'4': "nnnwwnnnw", '5': "wnnwwnnnn", '6': "nnwwwnnnn", '7': "nnnwnnwnw",
	'8': "wnnwnnwnn", '9': "nnwwnnwnn",
	'A': "wnnnnwnnw", 'B': "nnwnnwnnw", 'C': "wnwnnwnnn", 'D': "nnnnwwnnw",
	'E': "wnnnwwnnn", 'F': "nnwnwwnnn", 'G': "nnnnnwwnw", 'H': "wnnnnwwnn",
	'I': "nnwnnwwnn", 'J': "nnnnwwwnn", 'K': "wnnnnnnww", 'L': "nnwnnnnww",
	'M': "wnwnnnnwn", 'N': "nnnnwnnww", 'O': "wnnnwnnwn", 'P': "nnwnwnnwn",
	'Q': "nnnnnnwww", 'R': "wnnnnnwwn", 'S': "nnwnnnwwn", 'T': "nnnnwnwwn",
	'U': "wwnnnnnnw", 'V': "nwwnnnnnw", 'W': "wwwnnnnnn", 'X': "nwnnwnnnw",
	'Y': "wwnnwnnnn", 'Z': "nwwnwnnnn",
	'-': "nwnnnnwnw", '.': "wwnnnnwnn", ' ': "nwwnnnwnn",
	'$': "nwnwnwnnn", '/': "nwnwnnnwn", '+': "nwnnnwnwn", '%': "nnnwnwnwn",
	startStop: "nwnnwnwnn",
}

// bitPatterns maps each character to its module bit string, narrow elements
// one module wide and wide elements two, 12 modules per character.
var bitPatterns = make(map[rune]string, len(nwTable))

func init() {
	for ch, nw := range nwTable {
		var b strings.Builder
		for i, elem := range nw {
			bit := byte('1')
			if i%2 == 1 {
				bit = '0'
			}
			b.WriteByte(bit)
			if elem == 'w' {
				b.WriteByte(bit)
			}
		}
		bitPatterns[ch] = b.String()
	}
}

// Pattern is a left-to-right module sequence, '1' for bar and '0' for space.
type Pattern string

func (p Pattern) Width() int { return len(p) }

// BarAt reports whether module i is a bar.
func (p Pattern) BarAt(i int) bool { return p[i] == '1' }

// EncodingError reports input that cannot be expressed in the symbology.
type EncodingError struct {
	Text    string
	Invalid []rune
}

func (e *EncodingError) Error() string {
	if len(e.Invalid) == 0 {
		return "barcode: empty input"
	}
	quoted := make([]string, len(e.Invalid))
	for i, r := range e.Invalid {
		quoted[i] = fmt.Sprintf("%q", r)
	}
	return fmt.Sprintf("barcode: invalid characters %s", strings.Join(quoted, ", "))
}

// Encode maps text onto a Code 39 module pattern: start sentinel, each
// character, stop sentinel, every adjacent pair separated by one gap module.
// Encoding is case-insensitive; lower-case letters are upper-cased first.
func Encode(text string) (Pattern, error) {
	cleaned := strings.ToUpper(text)
	if cleaned == "" {
		return "", &EncodingError{Text: text}
	}

	var invalid []rune
	for _, r := range cleaned {
		if _, ok := nwTable[r]; !ok || r == startStop {
			invalid = append(invalid, r)
		}
	}
	if len(invalid) > 0 {
		return "", &EncodingError{Text: text, Invalid: invalid}
	}

	parts := make([]string, 0, len(cleaned)+2)
	parts = append(parts, bitPatterns[startStop])
	for _, r := range cleaned {
		parts = append(parts, bitPatterns[r])
	}
	parts = append(parts, bitPatterns[startStop])

	return Pattern(strings.Join(parts, "0")), nil
}

// CharPatternWidth is the module width of every encoded character.
const CharPatternWidth = 12
