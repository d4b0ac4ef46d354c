// Package lattice holds the 2D square-lattice geometry shared by folding code:
// cells, unit headings and the relative move alphabet.
package lattice

import "fmt"

type Point struct {
	X int
	Y int
}

func (p Point) Add(v Velocity) Point {
	return Point{X: p.X + v.DX, Y: p.Y + v.DY}
}

// Neighbors returns the four lattice cells sharing an edge with p.
func (p Point) Neighbors() [4]Point {
	return [4]Point{
		{X: p.X + 1, Y: p.Y},
		{X: p.X - 1, Y: p.Y},
		{X: p.X, Y: p.Y + 1},
		{X: p.X, Y: p.Y - 1},
	}
}

// Velocity is a unit heading.
type Velocity struct {
	DX int
	DY int
}

var (
	East  = Velocity{DX: 1}
	West  = Velocity{DX: -1}
	North = Velocity{DY: 1}
	South = Velocity{DY: -1}
)

// Move is a turn relative to the current heading.
type Move int8

const (
	// Unset marks a slot that has not been assigned yet.
	Unset Move = iota - 1
	Straight
	Left
	Right
)

// Moves lists the alphabet in index order.
var Moves = [3]Move{Straight, Left, Right}

func (m Move) Index() int { return int(m) }

func (m Move) Valid() bool { return m >= Straight && m <= Right }

func (m Move) Rune() rune {
	switch m {
	case Straight:
		return 'S'
	case Left:
		return 'L'
	case Right:
		return 'R'
	default:
		return '?'
	}
}

func (m Move) String() string { return string(m.Rune()) }

func ParseMove(r rune) (Move, error) {
	switch r {
	case 'S', 's':
		return Straight, nil
	case 'L', 'l':
		return Left, nil
	case 'R', 'r':
		return Right, nil
	default:
		return Unset, fmt.Errorf("invalid move symbol %q", r)
	}
}

var (
	leftTurn = map[Velocity]Velocity{
		East:  North,
		West:  South,
		North: West,
		South: East,
	}
	rightTurn = map[Velocity]Velocity{
		East:  South,
		West:  North,
		North: East,
		South: West,
	}
)

// Turn applies m to heading v. A heading that is not a unit vector means the
// caller corrupted its walk state, so it panics.
func Turn(v Velocity, m Move) Velocity {
	var table map[Velocity]Velocity
	switch m {
	case Straight:
		if _, ok := leftTurn[v]; !ok {
			panic(fmt.Sprintf("lattice: invalid heading %+v", v))
		}
		return v
	case Left:
		table = leftTurn
	case Right:
		table = rightTurn
	default:
		panic(fmt.Sprintf("lattice: invalid move %d", m))
	}
	next, ok := table[v]
	if !ok {
		panic(fmt.Sprintf("lattice: invalid heading %+v", v))
	}
	return next
}
