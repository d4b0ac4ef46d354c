package stats

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

const sweepsDir = "sweeps"

type SweepExperiment struct {
	ID             string        `json:"id"`
	GridName       string        `json:"grid_name"`
	StartedAtUTC   string        `json:"started_at_utc,omitempty"`
	CompletedAtUTC string        `json:"completed_at_utc,omitempty"`
	TotalRuns      int           `json:"total_runs"`
	ResultsPath    string        `json:"results_path,omitempty"`
	RunIDs         []string      `json:"run_ids,omitempty"`
	Summaries      []CellSummary `json:"summaries,omitempty"`
}

// WriteSweepExperiment stores sweep.json and summary.csv under
// <baseDir>/sweeps/<id>.
func WriteSweepExperiment(baseDir string, exp SweepExperiment) (string, error) {
	if exp.ID == "" {
		return "", fmt.Errorf("sweep id is required")
	}
	dir := SweepDir(baseDir, exp.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(dir, "sweep.json"), exp); err != nil {
		return "", err
	}
	if err := WriteSweepSummaryCSV(filepath.Join(dir, "summary.csv"), exp.Summaries); err != nil {
		return "", err
	}
	return dir, nil
}

// SweepDir is the directory holding a sweep's summary and convergence files.
func SweepDir(baseDir, id string) string {
	return filepath.Join(baseDir, sweepsDir, id)
}

func ReadSweepExperiment(baseDir, id string) (SweepExperiment, bool, error) {
	if id == "" {
		return SweepExperiment{}, false, fmt.Errorf("sweep id is required")
	}
	var exp SweepExperiment
	ok, err := readJSON(filepath.Join(baseDir, sweepsDir, id, "sweep.json"), &exp)
	return exp, ok, err
}

// ListSweepExperiments returns sweeps newest first.
func ListSweepExperiments(baseDir string) ([]SweepExperiment, error) {
	root := filepath.Join(baseDir, sweepsDir)
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return []SweepExperiment{}, nil
		}
		return nil, err
	}

	exps := make([]SweepExperiment, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		exp, ok, err := ReadSweepExperiment(baseDir, entry.Name())
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		exps = append(exps, exp)
	}
	sort.Slice(exps, func(i, j int) bool {
		switch {
		case exps[i].StartedAtUTC == exps[j].StartedAtUTC:
			return exps[i].ID < exps[j].ID
		case exps[i].StartedAtUTC == "":
			return false
		case exps[j].StartedAtUTC == "":
			return true
		default:
			return exps[i].StartedAtUTC > exps[j].StartedAtUTC
		}
	})
	return exps, nil
}
