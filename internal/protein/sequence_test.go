package protein

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseSequence(t *testing.T) {
	seq, err := Parse("  hHpPH \n")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if seq.Len() != 5 {
		t.Fatalf("unexpected length: %d", seq.Len())
	}
	if seq.String() != "HHPPH" {
		t.Fatalf("unexpected canonical form: %s", seq.String())
	}
	if seq.HydrophobicCount() != 3 {
		t.Fatalf("unexpected hydrophobic count: %d", seq.HydrophobicCount())
	}
	if seq.Free() != 3 {
		t.Fatalf("unexpected free residue count: %d", seq.Free())
	}
	if !seq.IsHydrophobic(0) || seq.IsHydrophobic(2) {
		t.Fatalf("unexpected residue classes: %s", seq)
	}
}

func TestParseSequenceRejectsInput(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  error
	}{
		{name: "unknown symbol", input: "HHXPH", want: ErrInvalidResidue},
		{name: "inner space", input: "HH PH", want: ErrInvalidResidue},
		{name: "too short", input: "HP", want: ErrSequenceTooShort},
		{name: "empty", input: "", want: ErrSequenceTooShort},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(tc.input)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestNewCopiesResidues(t *testing.T) {
	residues := []Residue{Hydrophobic, Polar, Hydrophobic}
	seq, err := New(residues)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	residues[0] = Polar
	if seq.At(0) != Hydrophobic {
		t.Fatal("expected sequence to own its residues")
	}
}

func TestReadBenchmarks(t *testing.T) {
	input := strings.Join([]string{
		"# reference:sequence",
		"4:HPHPPHHPHPPHPHHPPHPH",
		"",
		"1:HHPHH",
	}, "\n")

	benchmarks, err := ReadBenchmarks(strings.NewReader(input))
	if err != nil {
		t.Fatalf("read benchmarks: %v", err)
	}
	if len(benchmarks) != 2 {
		t.Fatalf("unexpected benchmark count: %d", len(benchmarks))
	}
	if benchmarks[1].Index != 1 || benchmarks[1].Reference != 1 || benchmarks[1].Sequence.String() != "HHPHH" {
		t.Fatalf("unexpected second benchmark: %+v", benchmarks[1])
	}
}

func TestReadBenchmarksRejectsMalformedLines(t *testing.T) {
	for _, input := range []string{"HHPHH", "x:HHPHH", "3:HHQHH"} {
		if _, err := ReadBenchmarks(strings.NewReader(input)); err == nil {
			t.Fatalf("expected error for %q", input)
		}
	}
}

func TestLoadBenchmarkIndex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "benchmarks.txt")
	if err := os.WriteFile(path, []byte("2:HPHPH\n9:HHHHHHHH\n"), 0o644); err != nil {
		t.Fatalf("write benchmarks: %v", err)
	}

	b, err := LoadBenchmark(path, 1)
	if err != nil {
		t.Fatalf("load benchmark: %v", err)
	}
	if b.Reference != 9 || b.Sequence.Len() != 8 {
		t.Fatalf("unexpected benchmark: %+v", b)
	}
	if _, err := LoadBenchmark(path, 2); err == nil {
		t.Fatal("expected out of range error")
	}
}
