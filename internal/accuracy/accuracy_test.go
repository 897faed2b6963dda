package accuracy

import "testing"

func TestScore(t *testing.T) {
	tests := []struct {
		name      string
		expected  string
		extracted string
		wantCER   float64
		wantScore float64
	}{
		{"exact match", "こんにちは", "こんにちは", 0, 100},
		{"whitespace ignored", "こんにちは 世界", "  こんにちは\n世界 ", 0, 100},
		{"one substitution", "こんにちは", "こんにちわ", 0.2, 80},
		{"one insertion", "こんにちは", "こんにちは。", 0.2, 80},
		{"nothing extracted", "こんにちは", "", 1, 0},
		{"both empty", "", "", 0, 100},
		{"nothing expected", "", "noise", 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Score(tt.expected, tt.extracted)
			if got.CER != tt.wantCER {
				t.Errorf("CER = %v, want %v", got.CER, tt.wantCER)
			}
			if got.MatchScore != tt.wantScore {
				t.Errorf("MatchScore = %v, want %v", got.MatchScore, tt.wantScore)
			}
		})
	}
}

func TestScore_WordErrorRate(t *testing.T) {
	got := Score("the quick brown fox", "the quick brown fox")
	if got.WER != 0 {
		t.Errorf("WER = %v, want 0", got.WER)
	}

	got = Score("the quick brown fox", "the quick brown box")
	if got.WER != 0.25 {
		t.Errorf("WER = %v, want 0.25", got.WER)
	}
}

func TestScore_MatchScoreNeverNegative(t *testing.T) {
	got := Score("ab", "completely different and longer")
	if got.MatchScore != 0 {
		t.Errorf("MatchScore = %v, want 0", got.MatchScore)
	}
	if got.CER <= 1 {
		t.Errorf("CER = %v, expected above 1 for a longer wrong text", got.CER)
	}
}

func TestSimilar(t *testing.T) {
	if !Similar("こんにちは", "こんにちは\n", 0) {
		t.Error("expected trailing newline to be ignored")
	}
	if !Similar("こんにちは", "こんにちわ", 0.25) {
		t.Error("expected one wrong character to be within 25%")
	}
	if Similar("こんにちは", "さようなら", 0.25) {
		t.Error("expected unrelated text to be rejected")
	}
}
