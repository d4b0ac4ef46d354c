// Package sweep expands parameter grids into colony runs and executes them
// with bounded parallelism.
package sweep

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"hpfold/internal/colony"
)

// Grid is the YAML description of a parameter sweep. Every list axis is
// crossed with every other; MaxIter stays fixed across cells.
type Grid struct {
	Name                string    `yaml:"name"`
	MaxIter             int       `yaml:"max_iter"`
	Repeats             int       `yaml:"repeats"`
	Parallel            int       `yaml:"parallel"`
	Seed                int64     `yaml:"seed"`
	Workers             int       `yaml:"workers"`
	Deposit             string    `yaml:"deposit"`
	Benchmarks          []int     `yaml:"benchmarks"`
	AntCount            []int     `yaml:"ant_count"`
	NoImprMax           []int     `yaml:"no_impr_max"`
	Evaporation         []float64 `yaml:"evaporation"`
	Alpha               []float64 `yaml:"alpha"`
	Beta                []float64 `yaml:"beta"`
	NeutralMutationRate []float64 `yaml:"neutral_mutation_rate"`
}

// DefaultGrid is the full study grid: 2 ant counts, 2 patience limits,
// 3 evaporation rates, 3 alphas, 3 betas and 2 neutral rates, each cell run
// three times for 60 iterations.
func DefaultGrid() Grid {
	return Grid{
		Name:                "default",
		MaxIter:             60,
		Repeats:             3,
		Parallel:            1,
		Seed:                1,
		AntCount:            []int{10, 20},
		NoImprMax:           []int{10, 20},
		Evaporation:         []float64{0.5, 0.7, 0.9},
		Alpha:               []float64{1, 2, 3},
		Beta:                []float64{1, 2, 3},
		NeutralMutationRate: []float64{0, 0.5},
	}
}

func LoadGrid(path string) (Grid, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Grid{}, err
	}
	grid, err := ParseGrid(data)
	if err != nil {
		return Grid{}, fmt.Errorf("load grid %s: %w", path, err)
	}
	return grid, nil
}

// ParseGrid decodes a YAML grid. Unknown keys are rejected; missing axes and
// counters take their values from DefaultGrid. The seed is only defaulted when
// the key is absent, so "seed: 0" is honoured.
func ParseGrid(data []byte) (Grid, error) {
	raw := Grid{Seed: DefaultGrid().Seed}
	if err := decodeStrict(data, &raw); err != nil {
		return Grid{}, err
	}
	grid := raw.withDefaults()
	if err := grid.Validate(); err != nil {
		return Grid{}, err
	}
	return grid, nil
}

func (g Grid) withDefaults() Grid {
	def := DefaultGrid()
	if g.Name == "" {
		g.Name = def.Name
	}
	if g.MaxIter == 0 {
		g.MaxIter = def.MaxIter
	}
	if g.Repeats == 0 {
		g.Repeats = def.Repeats
	}
	if g.Parallel == 0 {
		g.Parallel = def.Parallel
	}
	if len(g.AntCount) == 0 {
		g.AntCount = def.AntCount
	}
	if len(g.NoImprMax) == 0 {
		g.NoImprMax = def.NoImprMax
	}
	if len(g.Evaporation) == 0 {
		g.Evaporation = def.Evaporation
	}
	if len(g.Alpha) == 0 {
		g.Alpha = def.Alpha
	}
	if len(g.Beta) == 0 {
		g.Beta = def.Beta
	}
	if len(g.NeutralMutationRate) == 0 {
		g.NeutralMutationRate = def.NeutralMutationRate
	}
	return g
}

func (g Grid) Validate() error {
	if g.Repeats <= 0 {
		return fmt.Errorf("repeats must be > 0")
	}
	if g.Parallel <= 0 {
		return fmt.Errorf("parallel must be > 0")
	}
	for _, idx := range g.Benchmarks {
		if idx < 0 {
			return fmt.Errorf("benchmark index must be >= 0, got %d", idx)
		}
	}
	for _, cfg := range g.Expand() {
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid cell %+v: %w", cfg, err)
		}
	}
	return nil
}

// Expand returns one config per cell of the Cartesian product, ordered with
// the neutral mutation rate varying fastest and the ant count slowest.
func (g Grid) Expand() []colony.Config {
	cells := make([]colony.Config, 0, g.Size())
	for _, ants := range g.AntCount {
		for _, noImpr := range g.NoImprMax {
			for _, evaporation := range g.Evaporation {
				for _, alpha := range g.Alpha {
					for _, beta := range g.Beta {
						for _, neutral := range g.NeutralMutationRate {
							cells = append(cells, colony.Config{
								AntCount:            ants,
								MaxIter:             g.MaxIter,
								NoImprMax:           noImpr,
								Evaporation:         evaporation,
								Alpha:               alpha,
								Beta:                beta,
								NeutralMutationRate: neutral,
								Deposit:             colony.DepositRule(g.Deposit),
								Workers:             g.Workers,
								Seed:                g.Seed,
							})
						}
					}
				}
			}
		}
	}
	return cells
}

func (g Grid) Size() int {
	return len(g.AntCount) * len(g.NoImprMax) * len(g.Evaporation) * len(g.Alpha) * len(g.Beta) * len(g.NeutralMutationRate)
}

func decodeStrict(data []byte, out any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
