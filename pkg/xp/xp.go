// Package xp scores successfully persisted sends. Accrual is an accounting
// side effect: it never blocks, fails, or reorders a send.
package xp

import (
	"math"
	"sync"
)

const (
	baseXP        = 0.01
	fileBonus     = 20.0
	emojiBonus    = 0.001
	lengthDivisor = 50
	lengthCap     = 20
)

// Score computes the XP awarded for one persisted message. Deterministic:
// the same body and attachment flag always score the same.
func Score(body string, hasAttachment bool) float64 {
	xp := baseXP
	if hasAttachment {
		xp += fileBonus
	}
	xp += emojiBonus * float64(countEmoji(body))
	lengthBonus := len([]rune(body)) / lengthDivisor
	if lengthBonus > lengthCap {
		lengthBonus = lengthCap
	}
	xp += float64(lengthBonus)
	return xp
}

// countEmoji counts emoji glyphs by Unicode block. Modifier sequences count
// per glyph, matching how the scoring has always behaved.
func countEmoji(body string) int {
	n := 0
	for _, r := range body {
		if isEmoji(r) {
			n++
		}
	}
	return n
}

func isEmoji(r rune) bool {
	switch {
	case r >= 0x1F300 && r <= 0x1F5FF: // symbols & pictographs
		return true
	case r >= 0x1F600 && r <= 0x1F64F: // emoticons
		return true
	case r >= 0x1F680 && r <= 0x1F6FF: // transport & map
		return true
	case r >= 0x1F900 && r <= 0x1F9FF: // supplemental symbols
		return true
	case r >= 0x1FA70 && r <= 0x1FAFF: // symbols extended-A
		return true
	case r >= 0x2600 && r <= 0x26FF: // misc symbols
		return true
	case r >= 0x2700 && r <= 0x27BF: // dingbats
		return true
	default:
		return false
	}
}

// Ledger accumulates a viewer's XP. Total is monotonically non-decreasing.
type Ledger struct {
	mu    sync.Mutex
	total float64
}

// NewLedger starts a ledger at the given balance (zero for new sessions).
func NewLedger(initial float64) *Ledger {
	if initial < 0 {
		initial = 0
	}
	return &Ledger{total: initial}
}

// Award adds the score for one persisted send and returns the new total.
func (l *Ledger) Award(body string, hasAttachment bool) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.total += Score(body, hasAttachment)
	return l.total
}

// Total returns the cumulative XP.
func (l *Ledger) Total() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.total
}

// Level derives the viewer level from cumulative XP.
func (l *Ledger) Level() int {
	return LevelFor(l.Total())
}

// LevelFor converts an XP balance to a level.
func LevelFor(xp float64) int {
	if xp < 0 {
		xp = 0
	}
	return int(math.Floor(math.Sqrt(xp/100))) + 1
}
