package stats

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

type ConvergencePoint struct {
	Iteration int     `json:"iteration"`
	Mean      float64 `json:"mean"`
	Std       float64 `json:"std"`
	Max       float64 `json:"max"`
}

// ConvergenceCurve is the best-so-far fitness of one cell on one benchmark,
// averaged over its repeats.
type ConvergenceCurve struct {
	CellKey
	BenchmarkIndex int                `json:"benchmark_index"`
	Runs           int                `json:"runs"`
	Points         []ConvergencePoint `json:"points"`
}

// BuildConvergence averages best-by-iteration series column by column. A
// shorter series stops contributing once it runs out.
func BuildConvergence(series [][]float64) []ConvergencePoint {
	points := make([]ConvergencePoint, 0, 64)
	current := cloneSeries(series)
	for iteration := 0; ; iteration++ {
		values := make([]float64, 0, len(current))
		next := make([][]float64, 0, len(current))
		for _, list := range current {
			if len(list) == 0 {
				continue
			}
			values = append(values, list[0])
			if len(list) > 1 {
				next = append(next, list[1:])
			}
		}
		if len(values) == 0 {
			break
		}
		mean, std := meanStd(values)
		points = append(points, ConvergencePoint{
			Iteration: iteration,
			Mean:      mean,
			Std:       std,
			Max:       maxFloat(values),
		})
		current = next
	}
	return points
}

// GroupConvergence pairs each result line with the series of the same run
// and builds one curve per cell and benchmark, in order of first appearance.
func GroupConvergence(lines []ResultLine, series [][]float64) ([]ConvergenceCurve, error) {
	if len(lines) != len(series) {
		return nil, fmt.Errorf("convergence: %d result lines but %d series", len(lines), len(series))
	}
	type groupKey struct {
		cell      CellKey
		benchmark int
	}
	order := make([]groupKey, 0)
	grouped := make(map[groupKey][][]float64)
	for i, line := range lines {
		key := groupKey{cell: keyOf(line), benchmark: line.BenchmarkIndex}
		if _, ok := grouped[key]; !ok {
			order = append(order, key)
		}
		grouped[key] = append(grouped[key], series[i])
	}

	curves := make([]ConvergenceCurve, 0, len(order))
	for _, key := range order {
		curves = append(curves, ConvergenceCurve{
			CellKey:        key.cell,
			BenchmarkIndex: key.benchmark,
			Runs:           len(grouped[key]),
			Points:         BuildConvergence(grouped[key]),
		})
	}
	return curves, nil
}

// WriteConvergenceCurves writes one whitespace-separated
// "iteration mean std max" file per curve, ready for gnuplot.
func WriteConvergenceCurves(dir string, curves []ConvergenceCurve) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(curves))
	for _, curve := range curves {
		path := filepath.Join(dir, convergenceFileName(curve))
		if err := writeConvergenceFile(path, curve); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func convergenceFileName(curve ConvergenceCurve) string {
	token := sanitizeToken(fmt.Sprintf("b%d_a%d_n%d_e%s_al%s_be%s_nm%s",
		curve.BenchmarkIndex,
		curve.AntCount,
		curve.NoImprMax,
		formatFloat(curve.Evaporation),
		formatFloat(curve.Alpha),
		formatFloat(curve.Beta),
		formatFloat(curve.NeutralMutationRate),
	))
	return "convergence_" + token + ".dat"
}

func writeConvergenceFile(path string, curve ConvergenceCurve) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	if _, err := fmt.Fprintf(file, "# benchmark=%d runs=%d\n# iteration mean std max\n", curve.BenchmarkIndex, curve.Runs); err != nil {
		return err
	}
	for _, p := range curve.Points {
		if _, err := fmt.Fprintf(file, "%d %g %g %g\n", p.Iteration, p.Mean, p.Std, p.Max); err != nil {
			return err
		}
	}
	return nil
}

func sanitizeToken(value string) string {
	var b strings.Builder
	for _, r := range value {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			continue
		}
		b.WriteByte('_')
	}
	token := strings.Trim(b.String(), "_")
	if token == "" {
		return "unknown"
	}
	return token
}

// meanStd returns the mean and population standard deviation.
func meanStd(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	total := 0.0
	for _, v := range values {
		total += v
	}
	mean := total / float64(len(values))
	variance := 0.0
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	return mean, math.Sqrt(variance / float64(len(values)))
}

func maxFloat(values []float64) float64 {
	max := values[0]
	for _, value := range values[1:] {
		if value > max {
			max = value
		}
	}
	return max
}

func cloneSeries(lists [][]float64) [][]float64 {
	cloned := make([][]float64, 0, len(lists))
	for _, list := range lists {
		cloned = append(cloned, append([]float64(nil), list...))
	}
	return cloned
}
