// Package chainage converts between rail mileage values (meters from a
// route origin) and their textual marker form, e.g. 10100 <-> "K10+100".
package chainage

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var numberPattern = regexp.MustCompile(`[-+]?\d+(?:\.\d+)?`)

// Format renders a chainage value in meters as a K marker. Whole-meter
// remainders are zero-padded to three digits ("K10+007"); fractional
// remainders keep up to three decimals with trailing zeros trimmed.
func Format(meters float64) string {
	km := math.Floor(meters / 1000)
	rem := meters - km*1000

	// Snap near-integer remainders so float noise does not leak into output.
	if math.Abs(rem-math.Round(rem)) < 1e-4 {
		rem = math.Round(rem)
	}

	if rem == math.Trunc(rem) {
		return fmt.Sprintf("K%d+%03d", int64(km), int64(rem))
	}
	text := strconv.FormatFloat(rem, 'f', 3, 64)
	text = strings.TrimRight(text, "0")
	text = strings.TrimRight(text, ".")
	return fmt.Sprintf("K%d+%s", int64(km), text)
}

// normalizeMarker folds the full-width variants commonly produced by CJK
// input methods (Ｋ＋，and full-width digits) via NFKC and strips spaces.
func normalizeMarker(text string) string {
	folded := norm.NFKC.String(text)
	folded = strings.ReplaceAll(folded, " ", "")
	return strings.ToUpper(folded)
}

// ParseMarker extracts a chainage value in meters from free text. With a K
// prefix (or the kilometer word 公里), or when the text carries a km+meters
// pair such as "10+100", the first number is kilometers and the second is
// meters; otherwise a single number is taken as raw meters. Returns false
// when no number is present.
func ParseMarker(text string) (float64, bool) {
	normalized := normalizeMarker(text)
	matches := numberPattern.FindAllString(normalized, 2)
	if len(matches) == 0 {
		return 0, false
	}

	numbers := make([]float64, 0, len(matches))
	for _, m := range matches {
		value, err := strconv.ParseFloat(m, 64)
		if err != nil {
			return 0, false
		}
		numbers = append(numbers, value)
	}

	hasK := strings.Contains(normalized, "K") || strings.Contains(text, "公里")
	if hasK || len(numbers) > 1 {
		km := numbers[0]
		meters := 0.0
		if len(numbers) > 1 {
			meters = numbers[1]
		}
		return km*1000 + meters, true
	}
	return numbers[0], true
}

// ParseNumber extracts the first signed decimal number from text, for
// longitude/latitude entry.
func ParseNumber(text string) (float64, bool) {
	match := numberPattern.FindString(text)
	if match == "" {
		return 0, false
	}
	value, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

// ParseNumbers extracts up to limit signed decimal numbers from text.
func ParseNumbers(text string, limit int) []float64 {
	matches := numberPattern.FindAllString(text, limit)
	values := make([]float64, 0, len(matches))
	for _, m := range matches {
		value, err := strconv.ParseFloat(m, 64)
		if err != nil {
			continue
		}
		values = append(values, value)
	}
	return values
}
