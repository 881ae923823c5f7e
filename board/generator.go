// board/generator.go
package board

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/wfunc/cricketbingo/dataset"
)

// ErrUnsatisfiableBoard is returned when no full grid inside the
// difficulty band could be assembled within the retry limit. Callers
// should fall back to a relaxed band before giving up.
var ErrUnsatisfiableBoard = errors.New("unsatisfiable board")

// Band bounds the accepted-answer count of a single cell. Too many
// candidates makes the cell trivial, too few (or zero) unsolvable.
type Band struct {
	Min int
	Max int
}

// Relaxed widens the band one step for the retry-with-relaxed-
// constraints fallback.
func (b Band) Relaxed() Band {
	min := b.Min / 2
	if min < 1 {
		min = 1
	}
	return Band{Min: min, Max: b.Max * 4}
}

func bandFor(d Difficulty) Band {
	switch d {
	case DifficultyEasy:
		return Band{Min: 8, Max: 64}
	case DifficultyHard:
		return Band{Min: 2, Max: 16}
	default:
		return Band{Min: 4, Max: 32}
	}
}

// kindsFor returns the challenge mix for one board, n cells total.
// Mirrors the shipped game: easy is teams only, normal mixes teams
// and nations, hard adds trophies and two-attribute combos.
func kindsFor(d Difficulty, n int) []string {
	kinds := make([]string, 0, n)
	switch d {
	case DifficultyEasy:
		for i := 0; i < n; i++ {
			kinds = append(kinds, dataset.KindTeam)
		}
	case DifficultyHard:
		third := n / 3
		for i := 0; i < third; i++ {
			kinds = append(kinds, dataset.KindTeam)
		}
		for i := 0; i < third; i++ {
			kinds = append(kinds, dataset.KindNation)
		}
		for i := 2 * third; i < n; i++ {
			kinds = append(kinds, "combo")
		}
	default:
		half := n / 2
		for i := 0; i < half; i++ {
			kinds = append(kinds, dataset.KindTeam)
		}
		for i := half; i < n; i++ {
			kinds = append(kinds, dataset.KindNation)
		}
	}
	return kinds
}

const (
	cellAttempts = 25 // draws per cell before the board attempt fails
	boardRetries = 4  // full-grid attempts before ErrUnsatisfiableBoard
)

// Generator produces boards from a dataset lookup. Safe for
// concurrent use: each Generate call owns its RNG.
type Generator struct {
	lookup *dataset.Lookup
}

func NewGenerator(lookup *dataset.Lookup) *Generator {
	return &Generator{lookup: lookup}
}

// Generate assembles a size×size board. Deterministic: the same
// (seed, size, difficulty, pool) always yields the same board.
func (g *Generator) Generate(seed int64, size int, pool string, diff Difficulty) (*Board, error) {
	return g.generate(seed, size, pool, diff, bandFor(diff))
}

// GenerateRelaxed retries with a widened difficulty band. The fallback
// for UnsatisfiableBoard.
func (g *Generator) GenerateRelaxed(seed int64, size int, pool string, diff Difficulty) (*Board, error) {
	return g.generate(seed, size, pool, diff, bandFor(diff).Relaxed())
}

func (g *Generator) generate(seed int64, size int, pool string, diff Difficulty, band Band) (*Board, error) {
	if size < 2 {
		return nil, fmt.Errorf("grid size %d too small", size)
	}
	p, err := g.lookup.Pool(pool)
	if err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(seed))
	for attempt := 0; attempt < boardRetries; attempt++ {
		cells, ok := g.tryGrid(rng, p, size, diff, band)
		if ok {
			return &Board{
				Size:       size,
				Seed:       seed,
				Pool:       pool,
				Difficulty: diff,
				Cells:      cells,
				CreatedAt:  time.Now(),
			}, nil
		}
	}
	return nil, fmt.Errorf("pool %q size %d %s: %w", pool, size, diff, ErrUnsatisfiableBoard)
}

func (g *Generator) tryGrid(rng *rand.Rand, p *dataset.Pool, size int, diff Difficulty, band Band) ([]Cell, bool) {
	n := size * size
	kinds := kindsFor(diff, n)
	rng.Shuffle(len(kinds), func(i, j int) { kinds[i], kinds[j] = kinds[j], kinds[i] })

	cells := make([]Cell, 0, n)
	seen := make(map[string]bool, n)
	for i, kind := range kinds {
		cell, ok := g.drawCell(rng, p, kind, band, seen)
		if !ok {
			return nil, false
		}
		cell.Row = i / size
		cell.Col = i % size
		seen[cell.Challenge.Label] = true
		cells = append(cells, cell)
	}
	return cells, true
}

// drawCell picks one challenge whose candidate count sits inside the
// band, avoiding labels already on the grid.
func (g *Generator) drawCell(rng *rand.Rand, p *dataset.Pool, kind string, band Band, seen map[string]bool) (Cell, bool) {
	for attempt := 0; attempt < cellAttempts; attempt++ {
		ch, ok := g.drawChallenge(rng, p, kind)
		if !ok {
			continue
		}
		if seen[ch.Label] {
			continue
		}
		candidates := p.CandidatesForAll(ch.Attrs)
		if len(candidates) < band.Min || len(candidates) > band.Max {
			continue
		}
		accepted := make(map[string]struct{}, len(candidates))
		for _, c := range candidates {
			accepted[dataset.Normalize(c.Name)] = struct{}{}
		}
		return Cell{Challenge: ch, Accepted: accepted}, true
	}
	return Cell{}, false
}

func (g *Generator) drawChallenge(rng *rand.Rand, p *dataset.Pool, kind string) (Challenge, bool) {
	if kind == "combo" {
		return g.drawCombo(rng, p)
	}
	attrs := p.Attributes(kind)
	if len(attrs) == 0 {
		// Pools without trophy data fall back to nations, as the
		// shipped game did.
		attrs = p.Attributes(dataset.KindNation)
		if len(attrs) == 0 {
			return Challenge{}, false
		}
	}
	a := attrs[rng.Intn(len(attrs))]
	return Challenge{Kind: a.Kind, Attrs: []dataset.Attribute{a}, Label: a.Value}, true
}

// drawCombo builds a two-attribute challenge from a randomly chosen
// player, so the combo is satisfiable by construction.
func (g *Generator) drawCombo(rng *rand.Rand, p *dataset.Pool) (Challenge, bool) {
	players := p.Players()
	pl := players[rng.Intn(len(players))]
	attrs := p.AttributesOf(pl.Name)
	if len(attrs) < 2 {
		return Challenge{}, false
	}
	i := rng.Intn(len(attrs))
	j := rng.Intn(len(attrs) - 1)
	if j >= i {
		j++
	}
	a, b := attrs[i], attrs[j]
	if a.Kind == b.Kind && a.Value == b.Value {
		return Challenge{}, false
	}
	return Challenge{
		Kind:  "combo",
		Attrs: []dataset.Attribute{a, b},
		Label: a.Value + " + " + b.Value,
	}, true
}
