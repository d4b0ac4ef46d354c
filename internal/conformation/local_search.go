package conformation

import (
	"math/rand"

	"hpfold/internal/lattice"
)

// LocalSearch runs one point-mutation pass followed by one macro-mutation on a
// fully grown conformation and reports whether either strictly improved
// fitness. Fitness never decreases.
func (c *Conformation) LocalSearch(rng *rand.Rand, neutralRate float64) bool {
	improved := c.PointMutation(rng, neutralRate)
	if c.MacroMutation(rng, neutralRate) {
		improved = true
	}
	return improved
}

// PointMutation visits slots in random order and hill-climbs each one over the
// whole alphabet. Equal-fitness moves are taken with probability neutralRate.
func (c *Conformation) PointMutation(rng *rand.Rand, neutralRate float64) bool {
	if len(c.moves) == 0 || !c.IsFullyGrown() {
		return false
	}

	current := c.Evaluate()
	improved := false
	for _, i := range rng.Perm(len(c.moves)) {
		kept := c.moves[i]
		for _, m := range lattice.Moves {
			c.moves[i] = m
			if !c.IsValid() {
				c.moves[i] = kept
				continue
			}

			fitness := c.Evaluate()
			switch {
			case fitness > current:
				current = fitness
				kept = m
				improved = true
			case fitness == current && rng.Float64() < neutralRate:
				kept = m
			default:
				c.moves[i] = kept
			}
		}
	}
	return improved
}

// MacroMutation reassigns a random contiguous slot range. Improvements are
// kept, ties are kept with probability 1-neutralRate and regressions are
// always rolled back.
func (c *Conformation) MacroMutation(rng *rand.Rand, neutralRate float64) bool {
	n := len(c.moves)
	if n == 0 || !c.IsFullyGrown() {
		return false
	}

	backup := append([]lattice.Move(nil), c.moves...)
	fitness := c.Evaluate()

	i, j := rng.Intn(n), rng.Intn(n)
	if j < i {
		i, j = j, i
	}

	for k := i; k <= j; k++ {
		original := c.moves[k]
		alternatives := otherMoves(original)
		if rng.Intn(2) == 1 {
			alternatives[0], alternatives[1] = alternatives[1], alternatives[0]
		}

		c.moves[k] = alternatives[0]
		if c.IsValid() {
			continue
		}
		c.moves[k] = alternatives[1]
		if c.IsValid() {
			continue
		}
		c.moves[k] = original
	}

	next := c.Evaluate()
	switch {
	case next > fitness:
		return true
	case next == fitness && rng.Float64() >= neutralRate:
		return false
	default:
		copy(c.moves, backup)
		return false
	}
}

func otherMoves(m lattice.Move) [2]lattice.Move {
	var out [2]lattice.Move
	k := 0
	for _, candidate := range lattice.Moves {
		if candidate != m {
			out[k] = candidate
			k++
		}
	}
	return out
}
