package game

import (
	"fmt"

	"casinolab/internal/rng"
)

const SLOTS_GRID_SIZE = 9

type SlotSymbol struct {
	Name      string  `json:"name"`
	Weight    float64 `json:"weight"`
	Value     float64 `json:"value"`
	HighValue bool    `json:"high_value"`
}

// Reel symbols, most common first.
var SlotSymbols = []SlotSymbol{
	{Name: "cherry", Weight: 30, Value: 2},
	{Name: "lemon", Weight: 25, Value: 3},
	{Name: "orange", Weight: 20, Value: 4},
	{Name: "plum", Weight: 12, Value: 5},
	{Name: "bell", Weight: 7, Value: 10},
	{Name: "bar", Weight: 4, Value: 20, HighValue: true},
	{Name: "seven", Weight: 2, Value: 50, HighValue: true},
	{Name: "diamond", Weight: 1, Value: 100, HighValue: true},
}

type Payline struct {
	Name  string  `json:"name"`
	Cells [3]int  `json:"cells"`
	Base  float64 `json:"base"`
}

// Paylines index into the grid flattened row by row.
var Paylines = []Payline{
	{Name: "top", Cells: [3]int{0, 1, 2}, Base: 1},
	{Name: "middle", Cells: [3]int{3, 4, 5}, Base: 1},
	{Name: "bottom", Cells: [3]int{6, 7, 8}, Base: 1},
	{Name: "left", Cells: [3]int{0, 3, 6}, Base: 1},
	{Name: "center", Cells: [3]int{1, 4, 7}, Base: 1},
	{Name: "right", Cells: [3]int{2, 5, 8}, Base: 1},
	{Name: "diagonal-down", Cells: [3]int{0, 4, 8}, Base: 1.5},
	{Name: "diagonal-up", Cells: [3]int{6, 4, 2}, Base: 1.5},
	{Name: "v", Cells: [3]int{0, 4, 2}, Base: 2},
	{Name: "inverted-v", Cells: [3]int{6, 4, 8}, Base: 2},
}

type LineWin struct {
	Line       string  `json:"line"`
	Symbol     string  `json:"symbol"`
	Count      int     `json:"count"`
	Multiplier float64 `json:"multiplier"`
}

type SlotsDetail struct {
	Grid  []string  `json:"grid"`
	Lines []LineWin `json:"lines,omitempty"`
}

type SlotsEngine struct {
	symbols     []SlotSymbol
	totalWeight float64
}

func NewSlotsEngine() *SlotsEngine {
	total := 0.0
	for _, s := range SlotSymbols {
		total += s.Weight
	}
	return &SlotsEngine{symbols: SlotSymbols, totalWeight: total}
}

func (s *SlotsEngine) GetType() GameType {
	return GameTypeSlots
}

func (s *SlotsEngine) Validate(GameParams) error {
	return nil
}

func (s *SlotsEngine) Play(src rng.Source, stake float64, _ GameParams) (OutcomeResult, error) {
	grid := make([]string, SLOTS_GRID_SIZE)
	draws := make([]float64, SLOTS_GRID_SIZE)
	for i := range grid {
		d, err := src.Float01()
		if err != nil {
			return OutcomeResult{}, err
		}
		draws[i] = d
		grid[i] = s.pick(d).Name
	}

	total, lines := EvaluateGrid(grid)
	payout := RoundCents(stake * total)
	return OutcomeResult{
		Game:       GameTypeSlots,
		Stake:      stake,
		Draws:      draws,
		Multiplier: total,
		Win:        payout > 0,
		Payout:     payout,
		Slots:      &SlotsDetail{Grid: grid, Lines: lines},
	}, nil
}

// pick selects the first symbol whose cumulative weight exceeds draw*total.
func (s *SlotsEngine) pick(draw float64) SlotSymbol {
	target := draw * s.totalWeight
	cumulative := 0.0
	for _, sym := range s.symbols {
		cumulative += sym.Weight
		if target < cumulative {
			return sym
		}
	}
	// draw == 1 lands exactly on the total
	return s.symbols[len(s.symbols)-1]
}

func symbolByName(name string) (SlotSymbol, bool) {
	for _, s := range SlotSymbols {
		if s.Name == name {
			return s, true
		}
	}
	return SlotSymbol{}, false
}

// EvaluateGrid scores every payline once and sums the wins.
func EvaluateGrid(grid []string) (float64, []LineWin) {
	if len(grid) != SLOTS_GRID_SIZE {
		panic(fmt.Sprintf("slots: grid has %d cells", len(grid)))
	}

	total := 0.0
	var wins []LineWin
	for _, line := range Paylines {
		a, b, c := grid[line.Cells[0]], grid[line.Cells[1]], grid[line.Cells[2]]

		var name string
		count := 0
		switch {
		case a == b && b == c:
			name, count = a, 3
		case a == b || a == c:
			name, count = a, 2
		case b == c:
			name, count = b, 2
		}
		if count == 0 {
			continue
		}

		sym, ok := symbolByName(name)
		if !ok {
			continue
		}
		mult := line.Base * sym.Value
		if count == 2 {
			if !sym.HighValue {
				continue
			}
			mult /= 2
		}
		total += mult
		wins = append(wins, LineWin{Line: line.Name, Symbol: name, Count: count, Multiplier: mult})
	}
	return total, wins
}
