package colony

import (
	"math"
	"math/rand"
	"testing"

	"hpfold/internal/conformation"
	"hpfold/internal/lattice"
	"hpfold/internal/protein"
)

func mustConformation(t *testing.T, seq protein.Sequence, encoded string) *conformation.Conformation {
	t.Helper()
	c, err := conformation.Parse(seq, encoded)
	if err != nil {
		t.Fatalf("parse conformation %s: %v", encoded, err)
	}
	return c
}

func TestPheromonesStartUniform(t *testing.T) {
	p := NewPheromones(protein.MustParse("HHPHH"), DefaultConfig())
	if p.Len() != 3 {
		t.Fatalf("unexpected matrix length: %d", p.Len())
	}
	for i := 0; i < p.Len(); i++ {
		for _, m := range lattice.Moves {
			if p.Value(i, m) != 0.5 {
				t.Fatalf("unexpected initial trail at %d/%s: %v", i, m, p.Value(i, m))
			}
		}
	}
}

func TestPheromonesUpdateWithoutAntsOnlyEvaporates(t *testing.T) {
	for _, evaporation := range []float64{0, 0.25, 0.5, 0.8, 1} {
		cfg := DefaultConfig()
		cfg.Evaporation = evaporation
		p := NewPheromones(protein.MustParse("HPHPPHHPH"), cfg)
		p.Update(nil)

		want := 0.5 * (1 - evaporation)
		for i, row := range p.Snapshot() {
			for j, v := range row {
				if v != want {
					t.Fatalf("evaporation=%v: trail %d/%d = %v want %v", evaporation, i, j, v, want)
				}
			}
		}
	}
}

func TestPheromonesDenseDeposit(t *testing.T) {
	seq := protein.MustParse("HHPHH")
	best := mustConformation(t, seq, "LLS")
	flat := mustConformation(t, seq, "SSS")

	cfg := DefaultConfig()
	cfg.Evaporation = 0.5
	p := NewPheromones(seq, cfg)
	p.Update([]*conformation.Conformation{best, flat})

	// best scores 1 over 4 hydrophobic residues; flat scores 0.
	want := [][]float64{
		{0.25, 0.5, 0.25},
		{0.25, 0.5, 0.25},
		{0.5, 0.25, 0.25},
	}
	for i, row := range p.Snapshot() {
		for j, v := range row {
			if v != want[i][j] {
				t.Fatalf("normalized trail %d/%d = %v want %v", i, j, v, want[i][j])
			}
		}
	}

	cfg.Deposit = DepositRaw
	raw := NewPheromones(seq, cfg)
	raw.Update([]*conformation.Conformation{best})
	if got := raw.Value(0, lattice.Left); got != 1.25 {
		t.Fatalf("raw deposit: got %v want 1.25", got)
	}
	if got := raw.Value(0, lattice.Right); got != 0.25 {
		t.Fatalf("unused move must only evaporate: got %v", got)
	}
}

func TestPheromonesWeight(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Alpha = 2
	cfg.Beta = 1
	p := NewPheromones(protein.MustParse("HHPHH"), cfg)
	if got := p.Weight(1, lattice.Right, 3); got != 0.75 {
		t.Fatalf("unexpected weight: %v", got)
	}

	cfg.Alpha = 0
	cfg.Beta = 0
	p = NewPheromones(protein.MustParse("HHPHH"), cfg)
	if got := p.Weight(0, lattice.Left, 5); got != 1 {
		t.Fatalf("zero exponents must yield weight 1, got %v", got)
	}
}

func TestPheromonesStayNonNegative(t *testing.T) {
	seq := protein.MustParse("HPHPPHHPHPPHPHHPPHPH")
	rng := rand.New(rand.NewSource(13))
	for _, evaporation := range []float64{0, 0.3, 0.9, 1} {
		cfg := DefaultConfig()
		cfg.Evaporation = evaporation
		p := NewPheromones(seq, cfg)
		for iter := 0; iter < 5; iter++ {
			population := make([]*conformation.Conformation, 0, 6)
			for i := 0; i < 6; i++ {
				c := conformation.New(seq)
				for !c.IsFullyGrown() {
					if !c.Grow(p, rng) {
						c.Rewind()
					}
				}
				population = append(population, c)
			}
			p.Update(population)
			for i, row := range p.Snapshot() {
				for j, v := range row {
					if v < 0 || math.IsNaN(v) {
						t.Fatalf("evaporation=%v: trail %d/%d = %v", evaporation, i, j, v)
					}
				}
			}
		}
	}
}

func TestPheromonesWithoutHydrophobicResidues(t *testing.T) {
	seq := protein.MustParse("PPPPP")
	p := NewPheromones(seq, DefaultConfig())
	p.Update([]*conformation.Conformation{mustConformation(t, seq, "LLS")})
	for _, row := range p.Snapshot() {
		for _, v := range row {
			if math.IsNaN(v) || v < 0 {
				t.Fatalf("unexpected trail value %v", v)
			}
		}
	}
}
