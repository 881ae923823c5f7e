// rating/rating.go
package rating

import "math"

// Outcome of a two-player match, from A's perspective.
type Outcome int

const (
	OutcomeAWins Outcome = iota
	OutcomeBWins
	OutcomeDraw
)

// Engine computes Elo rating updates. Pure and deterministic; no side
// effects.
type Engine struct {
	K     float64 // rating volatility, classic default 32
	Floor float64 // ratings clamp here instead of going below
}

// NewEngine returns an engine with the given K-factor and floor.
func NewEngine(k, floor float64) Engine {
	return Engine{K: k, Floor: floor}
}

// Default is the engine the shipped game used: K=32, floor 0.
var Default = Engine{K: 32, Floor: 0}

// Expected returns A's expected score against B.
func Expected(a, b float64) float64 {
	return 1 / (1 + math.Pow(10, (b-a)/400))
}

// Update returns the post-match ratings of A and B. Swapping A and B
// together with the outcome sense yields swapped results.
func (e Engine) Update(a, b float64, outcome Outcome) (float64, float64) {
	var actualA float64
	switch outcome {
	case OutcomeAWins:
		actualA = 1
	case OutcomeBWins:
		actualA = 0
	default:
		actualA = 0.5
	}
	expA := Expected(a, b)
	newA := a + e.K*(actualA-expA)
	newB := b + e.K*((1-actualA)-(1-expA))
	return e.clamp(newA), e.clamp(newB)
}

func (e Engine) clamp(r float64) float64 {
	if r < e.Floor {
		return e.Floor
	}
	return r
}

// Tier buckets a rating into the display bands of the shipped game.
func Tier(r float64) string {
	switch {
	case r < 1000:
		return "Beginner"
	case r < 1200:
		return "Amateur"
	case r < 1400:
		return "Pro"
	case r < 1600:
		return "Elite"
	default:
		return "Legend"
	}
}
