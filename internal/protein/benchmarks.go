package protein

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Benchmark is one line of a benchmark file: the best known fitness for a
// sequence and the sequence itself.
type Benchmark struct {
	Index     int
	Reference int
	Sequence  Sequence
}

// ReadBenchmarks parses "reference:SEQUENCE" lines. Blank lines and lines
// starting with '#' are skipped and do not consume an index.
func ReadBenchmarks(r io.Reader) ([]Benchmark, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var out []Benchmark
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		refText, seqText, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("benchmark line %d: expected reference:sequence", lineNo)
		}
		ref, err := strconv.Atoi(strings.TrimSpace(refText))
		if err != nil {
			return nil, fmt.Errorf("benchmark line %d: parse reference: %w", lineNo, err)
		}
		seq, err := Parse(seqText)
		if err != nil {
			return nil, fmt.Errorf("benchmark line %d: %w", lineNo, err)
		}
		out = append(out, Benchmark{Index: len(out), Reference: ref, Sequence: seq})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func LoadBenchmarks(path string) ([]Benchmark, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	benchmarks, err := ReadBenchmarks(f)
	if err != nil {
		return nil, fmt.Errorf("load benchmarks %s: %w", path, err)
	}
	return benchmarks, nil
}

// LoadBenchmark returns the benchmark at a 0-based index.
func LoadBenchmark(path string, index int) (Benchmark, error) {
	benchmarks, err := LoadBenchmarks(path)
	if err != nil {
		return Benchmark{}, err
	}
	if index < 0 || index >= len(benchmarks) {
		return Benchmark{}, fmt.Errorf("benchmark index %d out of range [0,%d)", index, len(benchmarks))
	}
	return benchmarks[index], nil
}
