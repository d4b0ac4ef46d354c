package colony

import (
	"fmt"
	"math"
)

// DepositRule selects how much pheromone an ant lays per slot.
type DepositRule string

const (
	// DepositNormalized lays fitness divided by the sequence's H count.
	DepositNormalized DepositRule = "normalized"
	// DepositRaw lays the raw fitness.
	DepositRaw DepositRule = "raw"
)

// Config is immutable once a run starts and is passed by value.
type Config struct {
	AntCount            int         `json:"ant_count"`
	MaxIter             int         `json:"max_iter"`
	NoImprMax           int         `json:"no_impr_max"`
	Evaporation         float64     `json:"evaporation"`
	Alpha               float64     `json:"alpha"`
	Beta                float64     `json:"beta"`
	NeutralMutationRate float64     `json:"neutral_mutation_rate"`
	Deposit             DepositRule `json:"deposit,omitempty"`
	Workers             int         `json:"workers,omitempty"`
	Seed                int64       `json:"seed"`
}

func DefaultConfig() Config {
	return Config{
		AntCount:            20,
		MaxIter:             60,
		NoImprMax:           10,
		Evaporation:         0.8,
		Alpha:               3,
		Beta:                1,
		NeutralMutationRate: 0.5,
		Deposit:             DepositNormalized,
		Seed:                1,
	}
}

func (c Config) Validate() error {
	if c.AntCount <= 0 {
		return fmt.Errorf("ant count must be > 0")
	}
	if c.MaxIter <= 0 {
		return fmt.Errorf("max iterations must be > 0")
	}
	if c.NoImprMax < 0 {
		return fmt.Errorf("no-improvement limit must be >= 0")
	}
	if !inUnitInterval(c.Evaporation) {
		return fmt.Errorf("evaporation must be in [0, 1], got %v", c.Evaporation)
	}
	if c.Alpha < 0 || math.IsNaN(c.Alpha) || math.IsInf(c.Alpha, 0) {
		return fmt.Errorf("alpha must be a finite value >= 0, got %v", c.Alpha)
	}
	if c.Beta < 0 || math.IsNaN(c.Beta) || math.IsInf(c.Beta, 0) {
		return fmt.Errorf("beta must be a finite value >= 0, got %v", c.Beta)
	}
	if !inUnitInterval(c.NeutralMutationRate) {
		return fmt.Errorf("neutral mutation rate must be in [0, 1], got %v", c.NeutralMutationRate)
	}
	switch c.Deposit {
	case "", DepositNormalized, DepositRaw:
	default:
		return fmt.Errorf("unsupported deposit rule: %s", c.Deposit)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must be >= 0")
	}
	return nil
}

func inUnitInterval(v float64) bool {
	return v >= 0 && v <= 1
}
