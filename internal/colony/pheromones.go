package colony

import (
	"math"

	"hpfold/internal/conformation"
	"hpfold/internal/lattice"
	"hpfold/internal/protein"
)

const initialPheromone = 0.5

// Pheromones is the slot × move trail matrix. Ants only read it while
// building; Update is called by the colony after every ant has finished.
type Pheromones struct {
	trails      [][3]float64
	evaporation float64
	alpha       float64
	beta        float64
	divisor     float64
}

func NewPheromones(seq protein.Sequence, cfg Config) *Pheromones {
	trails := make([][3]float64, seq.Free())
	for i := range trails {
		trails[i] = [3]float64{initialPheromone, initialPheromone, initialPheromone}
	}

	divisor := 1.0
	if cfg.Deposit != DepositRaw {
		divisor = float64(seq.HydrophobicCount())
	}
	return &Pheromones{
		trails:      trails,
		evaporation: cfg.Evaporation,
		alpha:       cfg.Alpha,
		beta:        cfg.Beta,
		divisor:     divisor,
	}
}

func (p *Pheromones) Len() int { return len(p.trails) }

func (p *Pheromones) Value(position int, m lattice.Move) float64 {
	return p.trails[position][m.Index()]
}

// Weight returns tau^alpha * heuristic^beta for a move at a slot.
func (p *Pheromones) Weight(position int, m lattice.Move, heuristic float64) float64 {
	return math.Pow(p.trails[position][m.Index()], p.alpha) * math.Pow(heuristic, p.beta)
}

// Update evaporates every trail and then lets each conformation deposit its
// fitness on the move it used at every slot.
func (p *Pheromones) Update(conformations []*conformation.Conformation) {
	p.evaporate()

	for _, conf := range conformations {
		delta := p.deposit(conf.Evaluate())
		if delta == 0 {
			continue
		}
		for i := range p.trails {
			m := conf.Move(i)
			if !m.Valid() {
				continue
			}
			p.trails[i][m.Index()] += delta
		}
	}
}

func (p *Pheromones) evaporate() {
	keep := 1 - p.evaporation
	for i := range p.trails {
		for j := range p.trails[i] {
			p.trails[i][j] *= keep
		}
	}
}

func (p *Pheromones) deposit(fitness float64) float64 {
	// Sequences without H residues never score, so there is nothing to lay.
	if p.divisor == 0 {
		return 0
	}
	return fitness / p.divisor
}

// Snapshot copies the matrix, one row per slot in move index order.
func (p *Pheromones) Snapshot() [][]float64 {
	out := make([][]float64, len(p.trails))
	for i, row := range p.trails {
		out[i] = []float64{row[0], row[1], row[2]}
	}
	return out
}
