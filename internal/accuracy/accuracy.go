// Package accuracy compares extracted text against a known expected text.
package accuracy

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/arbovm/levenshtein"
	"github.com/codycollier/wer"
)

// Report holds error rates of an extraction against the expected text
type Report struct {
	CER        float64 `json:"character_error_rate"`
	WER        float64 `json:"word_error_rate"`
	MatchScore float64 `json:"match_score"`
}

// Score computes character and word error rates. Whitespace is normalized first;
// Japanese text without spaces is compared one line per word.
func Score(expected, extracted string) Report {
	exp := normalize(expected)
	got := normalize(extracted)

	if exp == "" {
		if got == "" {
			return Report{MatchScore: 100}
		}
		return Report{CER: 1, WER: 1, MatchScore: 0}
	}

	cer := float64(levenshtein.Distance(exp, got)) / float64(utf8.RuneCountInString(exp))
	var wordRate float64
	if ref := words(expected); len(ref) > 0 {
		wordRate, _ = wer.WER(ref, words(extracted))
	}

	return Report{
		CER:        round(cer),
		WER:        round(wordRate),
		MatchScore: round(math.Max(0, 1-cer) * 100),
	}
}

// Similar reports whether extracted matches expected with a CER at or below maxCER
func Similar(expected, extracted string, maxCER float64) bool {
	return Score(expected, extracted).CER <= maxCER
}

func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func words(s string) []string {
	fields := strings.Fields(s)
	if len(fields) > 0 {
		return fields
	}
	return nil
}

func round(v float64) float64 {
	return math.Round(v*10000) / 10000
}
