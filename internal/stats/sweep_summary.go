package stats

import (
	"encoding/csv"
	"math"
	"os"
	"strconv"
)

// CellKey identifies one parameter combination of a sweep.
type CellKey struct {
	AntCount            int     `json:"ant_count"`
	NoImprMax           int     `json:"no_impr_max"`
	Evaporation         float64 `json:"evaporation"`
	Alpha               float64 `json:"alpha"`
	Beta                float64 `json:"beta"`
	NeutralMutationRate float64 `json:"neutral_mutation_rate"`
}

// CellSummary aggregates the repeats of one cell on one benchmark. Hits
// counts runs that reached the reference optimum.
type CellSummary struct {
	CellKey
	BenchmarkIndex int     `json:"benchmark_index"`
	Reference      int     `json:"reference"`
	Runs           int     `json:"runs"`
	Hits           int     `json:"hits"`
	BestFound      float64 `json:"best_found"`
	MeanFound      float64 `json:"mean_found"`
	StdFound       float64 `json:"std_found"`
}

func keyOf(line ResultLine) CellKey {
	return CellKey{
		AntCount:            line.AntCount,
		NoImprMax:           line.NoImprMax,
		Evaporation:         line.Evaporation,
		Alpha:               line.Alpha,
		Beta:                line.Beta,
		NeutralMutationRate: line.NeutralMutationRate,
	}
}

// SummarizeResults groups lines by cell and benchmark, in order of first
// appearance.
func SummarizeResults(lines []ResultLine) []CellSummary {
	type groupKey struct {
		cell      CellKey
		benchmark int
	}
	order := make([]groupKey, 0)
	found := make(map[groupKey][]float64)
	refs := make(map[groupKey]int)
	for _, line := range lines {
		key := groupKey{cell: keyOf(line), benchmark: line.BenchmarkIndex}
		if _, ok := found[key]; !ok {
			order = append(order, key)
		}
		found[key] = append(found[key], line.Found)
		refs[key] = line.Reference
	}

	out := make([]CellSummary, 0, len(order))
	for _, key := range order {
		values := found[key]
		summary := CellSummary{
			CellKey:        key.cell,
			BenchmarkIndex: key.benchmark,
			Reference:      refs[key],
			Runs:           len(values),
			BestFound:      math.Inf(-1),
		}
		for _, v := range values {
			summary.BestFound = math.Max(summary.BestFound, v)
			if summary.Reference > 0 && v >= float64(summary.Reference) {
				summary.Hits++
			}
		}
		summary.MeanFound, summary.StdFound = meanStd(values)
		out = append(out, summary)
	}
	return out
}

func WriteSweepSummaryCSV(path string, summaries []CellSummary) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{
		"benchmark_index", "ant_count", "no_impr_max", "evaporation", "alpha", "beta",
		"neutral_mutation_rate", "runs", "hits", "best_found", "mean_found", "std_found", "reference",
	}); err != nil {
		return err
	}
	for _, s := range summaries {
		if err := writer.Write([]string{
			strconv.Itoa(s.BenchmarkIndex),
			strconv.Itoa(s.AntCount),
			strconv.Itoa(s.NoImprMax),
			formatFloat(s.Evaporation),
			formatFloat(s.Alpha),
			formatFloat(s.Beta),
			formatFloat(s.NeutralMutationRate),
			strconv.Itoa(s.Runs),
			strconv.Itoa(s.Hits),
			formatFloat(s.BestFound),
			formatFloat(s.MeanFound),
			formatFloat(s.StdFound),
			strconv.Itoa(s.Reference),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
