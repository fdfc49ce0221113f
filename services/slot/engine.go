package slot

import (
	"omnilypro-gaming/services/prize"
)

// Engine draws reel triples and resolves them against the configured
// combination rules.
type Engine struct {
	selector *prize.Selector
}

func NewEngine() *Engine {
	return &Engine{selector: prize.NewSelector()}
}

func NewEngineWithRand(randFn func() float64) *Engine {
	return &Engine{selector: prize.NewSelectorWithRand(randFn)}
}

// SpinReels performs three independent weighted draws over the symbol
// alphabet.
func (e *Engine) SpinReels(symbols []SymbolWeight) ([3]string, error) {
	entries := make([]prize.Entry, 0, len(symbols))
	for _, s := range symbols {
		entries = append(entries, prize.Entry{Label: s.Symbol, Weight: s.Weight})
	}

	var reels [3]string
	for i := range reels {
		drawn, err := e.selector.Pick(entries)
		if err != nil {
			return reels, err
		}
		reels[i] = drawn.Label
	}

	return reels, nil
}

// MatchCombo resolves a reel triple against the rules in declared order
// and returns the first one that matches. At most one combo wins per
// spin; a triple that satisfies several rules pays out only the
// earliest.
func MatchCombo(reels [3]string, combos []Combo) (*Combo, bool) {
	for i := range combos {
		if matches(reels, combos[i]) {
			return &combos[i], true
		}
	}
	return nil, false
}

func matches(reels [3]string, combo Combo) bool {
	allEqual := reels[0] == reels[1] && reels[1] == reels[2]

	switch combo.Pattern {
	case PatternJackpot:
		return allEqual && combo.Symbol != "" && reels[0] == combo.Symbol
	case PatternThreeMatch:
		if combo.Symbol != "" {
			return allEqual && reels[0] == combo.Symbol
		}
		return allEqual
	case PatternTwoMatch:
		return reels[0] == reels[1] || reels[1] == reels[2] || reels[0] == reels[2]
	case PatternAnyDiamond:
		return contains(reels, SymbolDiamond)
	case PatternAnyStar:
		return contains(reels, SymbolStar)
	default:
		return false
	}
}

func contains(reels [3]string, symbol string) bool {
	for _, r := range reels {
		if r == symbol {
			return true
		}
	}
	return false
}
