package scratch

import (
	"math/rand"

	"omnilypro-gaming/pkg/errutil"
)

// Generator builds scratch card grids. The random source is injectable
// for deterministic tests.
type Generator struct {
	intn func(n int) int
	perm func(n int) []int
}

func NewGenerator() *Generator {
	return &Generator{intn: rand.Intn, perm: rand.Perm}
}

func NewGeneratorWithRand(rng *rand.Rand) *Generator {
	return &Generator{intn: rng.Intn, perm: rng.Perm}
}

// GenerateGridWithMatch plants winner in exactly 3 distinct cells and
// fills the remaining 6 with other symbols, so the card is guaranteed
// to pay out once fully revealed.
func (g *Generator) GenerateGridWithMatch(winner string, symbols []Symbol) ([]string, error) {
	others := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if s.Symbol != winner {
			others = append(others, s.Symbol)
		}
	}
	if len(others) == 0 {
		return nil, errutil.UnprocessableEntity("scratch alphabet needs at least one non-winning symbol", nil)
	}

	grid := make([]string, gridSize)
	for _, pos := range g.perm(gridSize)[:3] {
		grid[pos] = winner
	}

	for i := range grid {
		if grid[i] == "" {
			grid[i] = others[g.intn(len(others))]
		}
	}

	return grid, nil
}

// GenerateGridNoMatch fills the grid so that no symbol appears more
// than twice, which makes a 3-cell match impossible.
func (g *Generator) GenerateGridNoMatch(symbols []Symbol) ([]string, error) {
	if len(symbols)*2 < gridSize {
		return nil, errutil.UnprocessableEntity("scratch alphabet too small for a no-win grid", nil)
	}

	grid := make([]string, 0, gridSize)
	counts := make(map[string]int, len(symbols))
	for len(grid) < gridSize {
		s := symbols[g.intn(len(symbols))].Symbol
		if counts[s] >= 2 {
			continue
		}
		counts[s]++
		grid = append(grid, s)
	}

	return grid, nil
}

// DetectMatch scans the revealed cells for any symbol appearing at
// least 3 times. Symbols are checked in configured order, so when two
// symbols both reach 3 revealed cells the earlier one is declared the
// match.
func DetectMatch(grid []string, revealed []bool, symbols []Symbol) (string, bool) {
	counts := make(map[string]int, len(symbols))
	for i, cell := range grid {
		if i < len(revealed) && revealed[i] {
			counts[cell]++
		}
	}

	for _, s := range symbols {
		if counts[s.Symbol] >= 3 {
			return s.Symbol, true
		}
	}

	return "", false
}
