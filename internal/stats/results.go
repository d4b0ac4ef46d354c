package stats

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
)

// ResultLine is one colon-separated line of the results log:
// index:ants:no_impr_max:evaporation:alpha:beta:neutral_rate:conformation:found/reference
type ResultLine struct {
	BenchmarkIndex      int
	AntCount            int
	NoImprMax           int
	Evaporation         float64
	Alpha               float64
	Beta                float64
	NeutralMutationRate float64
	Conformation        string
	Found               float64
	Reference           int
}

func (r ResultLine) String() string {
	return fmt.Sprintf("%d:%d:%d:%s:%s:%s:%s:%s:%s/%d",
		r.BenchmarkIndex,
		r.AntCount,
		r.NoImprMax,
		formatFloat(r.Evaporation),
		formatFloat(r.Alpha),
		formatFloat(r.Beta),
		formatFloat(r.NeutralMutationRate),
		r.Conformation,
		formatFloat(r.Found),
		r.Reference,
	)
}

func ParseResultLine(line string) (ResultLine, error) {
	fields := strings.Split(strings.TrimSpace(line), ":")
	if len(fields) != 9 {
		return ResultLine{}, fmt.Errorf("result line must have 9 fields, got %d", len(fields))
	}
	found, reference, ok := strings.Cut(fields[8], "/")
	if !ok {
		return ResultLine{}, fmt.Errorf("result line score must be found/reference, got %q", fields[8])
	}

	var (
		out  ResultLine
		errs []error
	)
	parseInt := func(s string, dst *int) {
		v, err := strconv.Atoi(s)
		if err != nil {
			errs = append(errs, err)
		}
		*dst = v
	}
	parseFloat := func(s string, dst *float64) {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			errs = append(errs, err)
		}
		*dst = v
	}
	parseInt(fields[0], &out.BenchmarkIndex)
	parseInt(fields[1], &out.AntCount)
	parseInt(fields[2], &out.NoImprMax)
	parseFloat(fields[3], &out.Evaporation)
	parseFloat(fields[4], &out.Alpha)
	parseFloat(fields[5], &out.Beta)
	parseFloat(fields[6], &out.NeutralMutationRate)
	out.Conformation = fields[7]
	parseFloat(found, &out.Found)
	parseInt(reference, &out.Reference)
	if len(errs) > 0 {
		return ResultLine{}, fmt.Errorf("parse result line %q: %w", line, errs[0])
	}
	return out, nil
}

// ResultSink appends result lines to a file. Appends are serialised so
// concurrent sweep cells never interleave partial lines.
type ResultSink struct {
	mu   sync.Mutex
	path string
}

func NewResultSink(path string) *ResultSink {
	return &ResultSink{path: path}
}

func (s *ResultSink) Path() string {
	return s.path
}

func (s *ResultSink) Append(line ResultLine) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := file.WriteString(line.String() + "\n"); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}

// ReadResults parses a results log, skipping blank lines. A missing file is
// an empty log.
func ReadResults(path string) ([]ResultLine, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []ResultLine{}, nil
		}
		return nil, err
	}
	defer file.Close()

	var out []ResultLine
	scanner := bufio.NewScanner(file)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		line, err := ParseResultLine(text)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		out = append(out, line)
	}
	return out, scanner.Err()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
