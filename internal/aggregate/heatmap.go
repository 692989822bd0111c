package aggregate

import "github.com/jwseok/lotto645-harvester/internal/draw"

// Smallest and largest ball in the 6/45 game.
const (
	minNumber = 1
	maxNumber = 45
)

// Heatmap is the frequency of each number over a trailing window of rounds.
// Counts[i] is the frequency of number i+1.
type Heatmap struct {
	Window int            `json:"window"`
	Rounds []draw.Round   `json:"rounds"`
	Counts [maxNumber]int `json:"counts"`
	Bonus  [maxNumber]int `json:"bonus"`
}

// BuildHeatmap folds draw results into number frequencies. Results outside
// [minNumber, maxNumber] are ignored rather than trusted.
func BuildHeatmap(results []draw.Result, window int) *Heatmap {
	if len(results) == 0 {
		return nil
	}
	h := &Heatmap{Window: window}
	for _, res := range results {
		h.Rounds = append(h.Rounds, res.Round)
		for _, n := range res.Numbers {
			if n >= minNumber && n <= maxNumber {
				h.Counts[n-1]++
			}
		}
		if res.Bonus >= minNumber && res.Bonus <= maxNumber {
			h.Bonus[res.Bonus-1]++
		}
	}
	return h
}
