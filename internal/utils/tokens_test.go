package utils_test

import (
	"strings"
	"testing"

	"github.com/KaramelBytes/insightloom/internal/utils"
)

func TestCountTokens(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want int
	}{
		{"empty", "", 0},
		{"short", "hi", 1},
		{"simple", "hello world", 2},
		{"long", strings.Repeat("a", 4000), 1000},
	}
	for _, c := range cases {
		if got := utils.CountTokens(c.in); got != c.want {
			t.Errorf("%s: got %d, want %d", c.name, got, c.want)
		}
	}
}

func TestTruncateToTokenLimit(t *testing.T) {
	text := strings.Repeat("abcd ", 1000)
	trunc := utils.TruncateToTokenLimit(text, 300)
	if n := utils.CountTokens(trunc); n > 300 || n == 0 {
		t.Fatalf("tokens=%d outside (0, 300]", n)
	}
	if utils.TruncateToTokenLimit("short", 10) != "short" {
		t.Fatalf("short text must be untouched")
	}
}

func TestFitLines(t *testing.T) {
	lines := []string{strings.Repeat("x", 40), strings.Repeat("y", 40), strings.Repeat("z", 40)}
	// each line costs 10 + 1 tokens
	if got := utils.FitLines(lines, 22); len(got) != 2 {
		t.Fatalf("kept %d lines, want 2", len(got))
	}
	if got := utils.FitLines(lines, 5); len(got) != 0 {
		t.Fatalf("kept %d lines, want 0", len(got))
	}
	if got := utils.FitLines(lines, 1000); len(got) != 3 {
		t.Fatalf("kept %d lines, want 3", len(got))
	}
}

func TestTokenBreakdown(t *testing.T) {
	got := utils.TokenBreakdown(map[string]string{"system": "abcdefgh", "facts": ""})
	if got["system"] != 2 || got["facts"] != 0 {
		t.Fatalf("breakdown: %v", got)
	}
}
