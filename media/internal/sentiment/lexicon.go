// Package sentiment scores financial text with a weighted lexicon.
// Scores range -1 (bearish) to +1 (bullish).
package sentiment

import (
	"strings"
	"unicode"
)

// Financial lexicon. Weights reflect how strongly a term moves
// sentiment; negation within three tokens flips the sign.
var lexicon = map[string]float64{
	// bullish
	"beat":       0.6,
	"beats":      0.6,
	"upgrade":    0.8,
	"upgraded":   0.8,
	"outperform": 0.7,
	"surge":      0.7,
	"surges":     0.7,
	"rally":      0.6,
	"rallies":    0.6,
	"record":     0.5,
	"growth":     0.5,
	"profit":     0.5,
	"profits":    0.5,
	"strong":     0.5,
	"bullish":    0.8,
	"buy":        0.4,
	"gain":       0.5,
	"gains":      0.5,
	"soar":       0.8,
	"soars":      0.8,
	"raise":      0.4,
	"raises":     0.4,
	"exceed":     0.6,
	"exceeds":    0.6,

	// bearish
	"miss":         -0.6,
	"misses":       -0.6,
	"downgrade":    -0.8,
	"downgraded":   -0.8,
	"underperform": -0.7,
	"plunge":       -0.8,
	"plunges":      -0.8,
	"crash":        -0.9,
	"crashes":      -0.9,
	"loss":         -0.5,
	"losses":       -0.5,
	"weak":         -0.5,
	"bearish":      -0.8,
	"sell":         -0.4,
	"selloff":      -0.7,
	"fall":         -0.5,
	"falls":        -0.5,
	"drop":         -0.5,
	"drops":        -0.5,
	"cut":          -0.4,
	"cuts":         -0.4,
	"lawsuit":      -0.6,
	"bankruptcy":   -0.9,
	"fraud":        -0.9,
	"warning":      -0.5,
	"recall":       -0.6,
}

var negators = map[string]bool{
	"not":     true,
	"no":      true,
	"never":   true,
	"without": true,
	"didnt":   true,
	"doesnt":  true,
	"wont":    true,
	"cant":    true,
	"failed":  true,
	"fails":   true,
}

const negationWindow = 3

// Score returns the average lexicon weight of the matched terms,
// clamped to [-1, 1]. Text with no matched terms scores 0.
func Score(text string) float64 {
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return 0
	}

	var sum float64
	matched := 0
	for i, tok := range tokens {
		weight, ok := lexicon[tok]
		if !ok {
			continue
		}
		if negated(tokens, i) {
			weight = -weight
		}
		sum += weight
		matched++
	}

	if matched == 0 {
		return 0
	}

	score := sum / float64(matched)
	if score > 1 {
		return 1
	}
	if score < -1 {
		return -1
	}
	return score
}

func negated(tokens []string, i int) bool {
	start := i - negationWindow
	if start < 0 {
		start = 0
	}
	for _, tok := range tokens[start:i] {
		if negators[tok] {
			return true
		}
	}
	return false
}

func tokenize(text string) []string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			return unicode.ToLower(r)
		}
		return -1
	}, text)
	return strings.Fields(cleaned)
}
