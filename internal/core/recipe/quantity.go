package recipe

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Quantity strings arrive from scrapers, user input and model output in every
// imaginable shape: "½", "1 1/2", "3/4", "2 - 3", "0.5". ParseQuantity runs an
// ordered chain of parse attempts, first match wins. Invalid input yields
// ok=false, never a panic. The same chain re-validates quantities after LLM
// structuring, since model output is untrusted text.

var unicodeFractions = map[string]float64{
	"½": 0.5, "⅓": 1.0 / 3, "⅔": 2.0 / 3,
	"¼": 0.25, "¾": 0.75, "⅛": 0.125,
	"⅜": 0.375, "⅝": 0.625, "⅞": 0.875,
}

var (
	mixedNumberPattern = regexp.MustCompile(`^\d+\s+\d+/\d+$`)
	fractionPattern    = regexp.MustCompile(`^\d+/\d+$`)
	rangePattern       = regexp.MustCompile(`^\d+(\.\d+)?\s*-\s*\d+(\.\d+)?$`)
	rangeSplitPattern  = regexp.MustCompile(`\s*-\s*`)
)

var quantityRules = []func(string) (float64, bool){
	parseUnicodeFraction,
	parseMixedNumber,
	parseFraction,
	parseRange,
	parsePlainNumber,
}

// ParseQuantity converts a quantity string to a float. The second return
// value is false when the input is not parseable.
func ParseQuantity(text string) (float64, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, false
	}
	for _, rule := range quantityRules {
		if v, ok := rule(text); ok {
			return v, true
		}
	}
	return 0, false
}

func parseUnicodeFraction(s string) (float64, bool) {
	v, ok := unicodeFractions[s]
	return v, ok
}

func parseMixedNumber(s string) (float64, bool) {
	if !mixedNumberPattern.MatchString(s) {
		return 0, false
	}
	parts := strings.Fields(s)
	whole, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return 0, false
	}
	frac, ok := parseFraction(parts[1])
	if !ok {
		return 0, false
	}
	return whole + frac, true
}

func parseFraction(s string) (float64, bool) {
	if !fractionPattern.MatchString(s) {
		return 0, false
	}
	parts := strings.SplitN(s, "/", 2)
	num, err1 := strconv.ParseFloat(parts[0], 64)
	den, err2 := strconv.ParseFloat(parts[1], 64)
	if err1 != nil || err2 != nil || den == 0 {
		return 0, false
	}
	return num / den, true
}

func parseRange(s string) (float64, bool) {
	if !rangePattern.MatchString(s) {
		return 0, false
	}
	bounds := rangeSplitPattern.Split(s, 2)
	a, err1 := strconv.ParseFloat(bounds[0], 64)
	b, err2 := strconv.ParseFloat(bounds[1], 64)
	if err1 != nil || err2 != nil {
		return 0, false
	}
	return math.Round((a+b)/2*100) / 100, true
}

func parsePlainNumber(s string) (float64, bool) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
