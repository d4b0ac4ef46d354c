package protein

import (
	"errors"
	"fmt"
	"strings"
)

// Residue is the HP-model class of a single amino acid.
type Residue uint8

const (
	Polar Residue = iota
	Hydrophobic
)

// MinLength is two anchored residues plus one free residue.
const MinLength = 3

var (
	ErrInvalidResidue   = errors.New("invalid residue symbol")
	ErrSequenceTooShort = errors.New("sequence too short")
)

func (r Residue) Rune() rune {
	if r == Hydrophobic {
		return 'H'
	}
	return 'P'
}

func (r Residue) String() string {
	return string(r.Rune())
}

// Sequence is an immutable HP chain. The zero value is empty and invalid for
// folding; build sequences with Parse or New.
type Sequence struct {
	residues []Residue
	hCount   int
}

func New(residues []Residue) (Sequence, error) {
	if len(residues) < MinLength {
		return Sequence{}, fmt.Errorf("%w: got=%d want>=%d", ErrSequenceTooShort, len(residues), MinLength)
	}
	owned := make([]Residue, len(residues))
	hCount := 0
	for i, r := range residues {
		switch r {
		case Hydrophobic:
			hCount++
		case Polar:
		default:
			return Sequence{}, fmt.Errorf("%w: residue %d has class %d", ErrInvalidResidue, i, r)
		}
		owned[i] = r
	}
	return Sequence{residues: owned, hCount: hCount}, nil
}

// Parse reads an H/P string. Case is ignored and surrounding whitespace is
// trimmed; any other symbol fails with ErrInvalidResidue.
func Parse(s string) (Sequence, error) {
	s = strings.TrimSpace(s)
	residues := make([]Residue, 0, len(s))
	for i, c := range s {
		switch c {
		case 'H', 'h':
			residues = append(residues, Hydrophobic)
		case 'P', 'p':
			residues = append(residues, Polar)
		default:
			return Sequence{}, fmt.Errorf("%w: %q at offset %d", ErrInvalidResidue, c, i)
		}
	}
	return New(residues)
}

func MustParse(s string) Sequence {
	seq, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return seq
}

func (s Sequence) Len() int { return len(s.residues) }

func (s Sequence) At(i int) Residue { return s.residues[i] }

func (s Sequence) IsHydrophobic(i int) bool { return s.residues[i] == Hydrophobic }

func (s Sequence) HydrophobicCount() int { return s.hCount }

// Free is the number of residues placed by moves; the first two are anchored.
func (s Sequence) Free() int {
	if len(s.residues) < 2 {
		return 0
	}
	return len(s.residues) - 2
}

func (s Sequence) String() string {
	var b strings.Builder
	b.Grow(len(s.residues))
	for _, r := range s.residues {
		b.WriteRune(r.Rune())
	}
	return b.String()
}
