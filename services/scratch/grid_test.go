package scratch

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func testSymbols() []Symbol {
	return []Symbol{
		{Symbol: "🍒", Points: 50},
		{Symbol: "🍋", Points: 75},
		{Symbol: "💎", Points: 100},
		{Symbol: "⭐", Points: 200},
		{Symbol: "🎁", Points: 500},
	}
}

func TestGenerateGridWithMatchExactlyThreeWinners(t *testing.T) {
	g := NewGeneratorWithRand(rand.New(rand.NewSource(7)))

	for i := 0; i < 500; i++ {
		grid, err := g.GenerateGridWithMatch("💎", testSymbols())
		require.NoError(t, err)
		require.Len(t, grid, 9)

		winners := 0
		for _, cell := range grid {
			require.NotEmpty(t, cell)
			if cell == "💎" {
				winners++
			}
		}
		require.Equal(t, 3, winners)
	}
}

func TestGenerateGridWithMatchNeedsFillerSymbols(t *testing.T) {
	g := NewGenerator()

	_, err := g.GenerateGridWithMatch("💎", []Symbol{{Symbol: "💎", Points: 100}})
	require.Error(t, err)
}

func TestGenerateGridNoMatchNeverThreeOfAKind(t *testing.T) {
	g := NewGeneratorWithRand(rand.New(rand.NewSource(7)))

	for i := 0; i < 500; i++ {
		grid, err := g.GenerateGridNoMatch(testSymbols())
		require.NoError(t, err)
		require.Len(t, grid, 9)

		counts := map[string]int{}
		for _, cell := range grid {
			counts[cell]++
		}
		for symbol, n := range counts {
			require.LessOrEqual(t, n, 2, "symbol %s appears %d times", symbol, n)
		}
	}
}

func TestGenerateGridNoMatchRejectsSmallAlphabet(t *testing.T) {
	g := NewGenerator()

	_, err := g.GenerateGridNoMatch(testSymbols()[:4])
	require.Error(t, err)
}

func TestDetectMatchRequiresThreeRevealed(t *testing.T) {
	grid := []string{"💎", "💎", "💎", "🍒", "🍒", "🍋", "🍋", "⭐", "🎁"}

	revealed := make([]bool, 9)
	revealed[0], revealed[1] = true, true
	_, won := DetectMatch(grid, revealed, testSymbols())
	require.False(t, won)

	revealed[2] = true
	matched, won := DetectMatch(grid, revealed, testSymbols())
	require.True(t, won)
	require.Equal(t, "💎", matched)
}

func TestDetectMatchIgnoresUnrevealedCells(t *testing.T) {
	grid := []string{"💎", "💎", "💎", "💎", "💎", "💎", "💎", "💎", "💎"}

	_, won := DetectMatch(grid, make([]bool, 9), testSymbols())
	require.False(t, won)
}

// When two symbols both reach three revealed cells, the one declared
// earlier in the alphabet wins, so the scan order is part of the
// configuration.
func TestDetectMatchSymbolOrderBreaksTies(t *testing.T) {
	grid := []string{"💎", "💎", "💎", "🍒", "🍒", "🍒", "🍋", "⭐", "🎁"}
	revealed := []bool{true, true, true, true, true, true, false, false, false}

	matched, won := DetectMatch(grid, revealed, testSymbols())
	require.True(t, won)
	require.Equal(t, "🍒", matched)

	reordered := []Symbol{
		{Symbol: "💎", Points: 100},
		{Symbol: "🍒", Points: 50},
	}
	matched, won = DetectMatch(grid, revealed, reordered)
	require.True(t, won)
	require.Equal(t, "💎", matched)
}
