// board/board.go
package board

import (
	"time"

	"github.com/wfunc/cricketbingo/dataset"
)

// Difficulty controls the cell mix and the candidate-count band.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyNormal Difficulty = "normal"
	DifficultyHard   Difficulty = "hard"
)

// Challenge 单元格的出题内容。Combo 题包含两个属性，二者都必须满足。
type Challenge struct {
	Kind  string              `json:"kind"` // team/nation/trophy/combo
	Attrs []dataset.Attribute `json:"attrs"`
	Label string              `json:"label"`
}

// Cell is one grid position. A cell resolves exactly once and never
// reverts.
type Cell struct {
	Row        int                 `json:"row"`
	Col        int                 `json:"col"`
	Challenge  Challenge           `json:"challenge"`
	Accepted   map[string]struct{} `json:"-"` // normalized player names
	ResolvedBy string              `json:"resolved_by,omitempty"`
	Answer     string              `json:"answer,omitempty"`
}

// Resolved reports whether the cell has been claimed.
func (c *Cell) Resolved() bool {
	return c.ResolvedBy != ""
}

// Accepts checks an answer against the precomputed accepted set.
func (c *Cell) Accepts(answer string) bool {
	_, ok := c.Accepted[dataset.Normalize(answer)]
	return ok
}

// Board 一局比赛的棋盘，生成后挑战内容不可变
type Board struct {
	Size       int        `json:"size"`
	Seed       int64      `json:"seed"`
	Pool       string     `json:"pool"`
	Difficulty Difficulty `json:"difficulty"`
	Cells      []Cell     `json:"cells"` // row-major, len == Size*Size
	CreatedAt  time.Time  `json:"created_at"`
}

// Cell returns the cell at (row, col), or nil when out of range.
func (b *Board) Cell(row, col int) *Cell {
	if row < 0 || row >= b.Size || col < 0 || col >= b.Size {
		return nil
	}
	return &b.Cells[row*b.Size+col]
}

// Clone deep-copies the board with all resolution state cleared.
// Daily challenge sessions share challenge content but not progress.
func (b *Board) Clone() *Board {
	nb := &Board{
		Size:       b.Size,
		Seed:       b.Seed,
		Pool:       b.Pool,
		Difficulty: b.Difficulty,
		Cells:      make([]Cell, len(b.Cells)),
		CreatedAt:  time.Now(),
	}
	for i, c := range b.Cells {
		nc := c
		nc.ResolvedBy = ""
		nc.Answer = ""
		nc.Accepted = make(map[string]struct{}, len(c.Accepted))
		for k := range c.Accepted {
			nc.Accepted[k] = struct{}{}
		}
		nb.Cells[i] = nc
	}
	return nb
}

// Line is a set of cell indices whose joint resolution by one
// participant wins the match.
type Line []int

// Lines returns the fixed line set for a grid size: size rows, size
// columns and the two diagonals. Every board of one size shares it.
func Lines(size int) []Line {
	lines := make([]Line, 0, 2*size+2)
	for r := 0; r < size; r++ {
		line := make(Line, size)
		for c := 0; c < size; c++ {
			line[c] = r*size + c
		}
		lines = append(lines, line)
	}
	for c := 0; c < size; c++ {
		line := make(Line, size)
		for r := 0; r < size; r++ {
			line[r] = r*size + c
		}
		lines = append(lines, line)
	}
	diag := make(Line, size)
	anti := make(Line, size)
	for i := 0; i < size; i++ {
		diag[i] = i*size + i
		anti[i] = i*size + (size - 1 - i)
	}
	return append(lines, diag, anti)
}
