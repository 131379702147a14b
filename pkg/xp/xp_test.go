package xp

import (
	"math"
	"strings"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestScore_ShortBodyWithOneEmoji(t *testing.T) {
	// 7 characters, exactly one emoji glyph, no attachment.
	body := "hi all🎉"
	if got := Score(body, false); !almostEqual(got, 0.01+0.001) {
		t.Errorf("Score(%q) = %v, want 0.011", body, got)
	}
}

func TestScore_FileBonus(t *testing.T) {
	if got := Score("chart", true); !almostEqual(got, 0.01+20) {
		t.Errorf("Score with attachment = %v, want 20.01", got)
	}
}

func TestScore_LengthBonus(t *testing.T) {
	body := strings.Repeat("a", 120)
	if got := Score(body, false); !almostEqual(got, 0.01+2) {
		t.Errorf("Score(120 chars) = %v, want 2.01", got)
	}
}

func TestScore_LengthBonusCapped(t *testing.T) {
	body := strings.Repeat("a", 5000)
	if got := Score(body, false); !almostEqual(got, 0.01+20) {
		t.Errorf("Score(5000 chars) = %v, want capped 20.01", got)
	}
}

func TestLedger_Monotonic(t *testing.T) {
	l := NewLedger(0)
	prev := l.Total()
	bodies := []string{"hey", "", "🚀🚀🚀", strings.Repeat("x", 300), "gm"}
	for _, b := range bodies {
		total := l.Award(b, false)
		if total < prev {
			t.Fatalf("XP decreased: %v -> %v after %q", prev, total, b)
		}
		prev = total
	}
}

func TestLevelFor(t *testing.T) {
	cases := []struct {
		xp   float64
		want int
	}{
		{0, 1},
		{99, 1},
		{100, 2},
		{399, 2},
		{400, 3},
		{10000, 11},
	}
	for _, tc := range cases {
		if got := LevelFor(tc.xp); got != tc.want {
			t.Errorf("LevelFor(%v) = %d, want %d", tc.xp, got, tc.want)
		}
	}
}

func TestLedger_NegativeInitialClamped(t *testing.T) {
	l := NewLedger(-50)
	if l.Total() != 0 {
		t.Errorf("negative initial balance should clamp to 0, got %v", l.Total())
	}
}
