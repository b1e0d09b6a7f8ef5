package output

import (
	"strings"
	"testing"
)

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{"empty", "", 0},
		{"four chars is one token", "xs=1", 1},
		{"rounds to nearest", "def fn", 2},
		{"longer snippet", strings.Repeat("x", 400), 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EstimateTokens(tt.text); got != tt.want {
				t.Errorf("EstimateTokens(%q) = %d, want %d", tt.text, got, tt.want)
			}
		})
	}
}

func TestEstimateTokensCountsRunes(t *testing.T) {
	// Multibyte text is measured in code points, not bytes.
	text := strings.Repeat("é", 8)
	if got := EstimateTokens(text); got != 2 {
		t.Errorf("EstimateTokens(8 runes) = %d, want 2", got)
	}
}

func TestFormatTokenCount(t *testing.T) {
	tests := []struct {
		tokens int
		want   string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1.0k"},
		{1500, "1.5k"},
		{128000, "128.0k"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := FormatTokenCount(tt.tokens); got != tt.want {
				t.Errorf("FormatTokenCount(%d) = %q, want %q", tt.tokens, got, tt.want)
			}
		})
	}
}
