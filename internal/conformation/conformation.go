// Package conformation models one folding of an HP sequence as a walk of
// relative moves on the square lattice, anchored at (0,0) and (1,0) with an
// initial heading of (1,0).
package conformation

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"

	"hpfold/internal/lattice"
	"hpfold/internal/protein"
)

var ErrInvalidConformation = errors.New("invalid conformation")

var (
	anchorStart   = lattice.Point{X: 0, Y: 0}
	anchorSecond  = lattice.Point{X: 1, Y: 0}
	anchorHeading = lattice.East
)

// Weighter scores a candidate move at a slot. The colony's pheromone matrix is
// the production implementation.
type Weighter interface {
	Weight(position int, move lattice.Move, heuristic float64) float64
}

// Conformation owns one move per free residue. Slots [0, cursor) are assigned
// and slots [cursor, len) are Unset. It is not safe for concurrent mutation.
type Conformation struct {
	seq    protein.Sequence
	moves  []lattice.Move
	cursor int
}

func New(seq protein.Sequence) *Conformation {
	moves := make([]lattice.Move, seq.Free())
	for i := range moves {
		moves[i] = lattice.Unset
	}
	return &Conformation{seq: seq, moves: moves}
}

// Parse rebuilds a fully grown conformation from its S/L/R encoding.
func Parse(seq protein.Sequence, encoded string) (*Conformation, error) {
	encoded = strings.TrimSpace(encoded)
	c := New(seq)
	if len(encoded) != len(c.moves) {
		return nil, fmt.Errorf("%w: got %d moves want %d", ErrInvalidConformation, len(encoded), len(c.moves))
	}
	for i, r := range encoded {
		m, err := lattice.ParseMove(r)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConformation, err)
		}
		c.moves[i] = m
	}
	c.cursor = len(c.moves)
	if !c.IsValid() {
		return nil, fmt.Errorf("%w: %s self-overlaps", ErrInvalidConformation, encoded)
	}
	return c, nil
}

func (c *Conformation) Sequence() protein.Sequence { return c.seq }

func (c *Conformation) Len() int { return len(c.moves) }

func (c *Conformation) Cursor() int { return c.cursor }

// Move returns the move at slot i, or lattice.Unset.
func (c *Conformation) Move(i int) lattice.Move { return c.moves[i] }

func (c *Conformation) Moves() []lattice.Move {
	return append([]lattice.Move(nil), c.moves...)
}

func (c *Conformation) IsFullyGrown() bool { return c.cursor == len(c.moves) }

func (c *Conformation) Clone() *Conformation {
	return &Conformation{
		seq:    c.seq,
		moves:  append([]lattice.Move(nil), c.moves...),
		cursor: c.cursor,
	}
}

// Grow places the residue at the cursor. It returns false, leaving the
// conformation unchanged, when every move collides or dead-ends; the caller is
// expected to Rewind.
func (c *Conformation) Grow(w Weighter, rng *rand.Rand) bool {
	if c.IsFullyGrown() {
		return true
	}

	slot := c.cursor
	before := c.Evaluate()

	var (
		valid   [3]lattice.Move
		weights [3]float64
		count   int
		total   float64
	)
	for _, m := range lattice.Moves {
		c.moves[slot] = m
		if !c.IsValid() {
			continue
		}
		h := c.Evaluate() - before + 1
		valid[count] = m
		weights[count] = w.Weight(slot, m, h)
		total += weights[count]
		count++
	}

	if count == 0 {
		c.moves[slot] = lattice.Unset
		return false
	}

	if total > 0 {
		c.moves[slot] = valid[pickWeighted(rng, weights[:count], total)]
	} else {
		c.moves[slot] = valid[rng.Intn(count)]
	}
	c.cursor++
	return true
}

func pickWeighted(rng *rand.Rand, weights []float64, total float64) int {
	r := rng.Float64() * total
	for i, w := range weights {
		if r < w {
			return i
		}
		r -= w
	}
	// Float rounding can leave r marginally above the last bucket.
	for i := len(weights) - 1; i >= 0; i-- {
		if weights[i] > 0 {
			return i
		}
	}
	return len(weights) - 1
}

// Rewind halves the cursor and clears every slot from the new cursor on.
func (c *Conformation) Rewind() {
	c.cursor /= 2
	for i := c.cursor; i < len(c.moves); i++ {
		c.moves[i] = lattice.Unset
	}
}

// IsValid replays the assigned prefix and reports whether it is
// self-avoiding. A non-final residue whose four neighbours are already taken
// is rejected too, since nothing can follow it.
func (c *Conformation) IsValid() bool {
	filled := make(map[lattice.Point]struct{}, len(c.moves)+2)
	filled[anchorStart] = struct{}{}
	filled[anchorSecond] = struct{}{}

	pos := anchorSecond
	v := anchorHeading
	last := len(c.moves) - 1
	for i, m := range c.moves {
		if m == lattice.Unset {
			break
		}
		v = lattice.Turn(v, m)
		pos = pos.Add(v)

		if _, taken := filled[pos]; taken {
			return false
		}
		if i > 0 && i < last && surrounded(filled, pos) {
			return false
		}
		filled[pos] = struct{}{}
	}
	return true
}

func surrounded(filled map[lattice.Point]struct{}, p lattice.Point) bool {
	for _, n := range p.Neighbors() {
		if _, ok := filled[n]; !ok {
			return false
		}
	}
	return true
}

// Points replays the assigned prefix into lattice cells, anchors included.
func (c *Conformation) Points() []lattice.Point {
	points := make([]lattice.Point, 0, len(c.moves)+2)
	points = append(points, anchorStart, anchorSecond)

	pos := anchorSecond
	v := anchorHeading
	for _, m := range c.moves {
		if m == lattice.Unset {
			break
		}
		v = lattice.Turn(v, m)
		pos = pos.Add(v)
		points = append(points, pos)
	}
	return points
}

// Evaluate counts topological H-H contacts: lattice neighbours that are both
// hydrophobic and not adjacent in the chain. Each contact is seen from both
// ends, so the count is halved.
func (c *Conformation) Evaluate() float64 {
	points := c.Points()
	fold := make(map[lattice.Point]int, len(points))
	for i, p := range points {
		fold[p] = i
	}

	hh := 0
	for i, p := range points {
		if !c.seq.IsHydrophobic(i) {
			continue
		}
		for _, n := range p.Neighbors() {
			j, ok := fold[n]
			if !ok || !c.seq.IsHydrophobic(j) {
				continue
			}
			if j-i > 1 || i-j > 1 {
				hh++
			}
		}
	}
	return float64(hh / 2)
}

// String encodes the assigned moves as S/L/R; unassigned slots render as '?'.
func (c *Conformation) String() string {
	var b strings.Builder
	b.Grow(len(c.moves))
	for _, m := range c.moves {
		b.WriteRune(m.Rune())
	}
	return b.String()
}
