// Package report implements colony observers: terminal progress, structured
// logs, prometheus metrics and an improvement recorder.
package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"hpfold/internal/colony"
	"hpfold/internal/conformation"
	"hpfold/internal/render"
)

type Mode string

const (
	ModeIteration Mode = "iteration"
	ModeAnt       Mode = "ant"
	ModeNone      Mode = "none"
)

func ParseMode(name string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(name))) {
	case "", ModeIteration:
		return ModeIteration, nil
	case ModeAnt:
		return ModeAnt, nil
	case ModeNone:
		return ModeNone, nil
	default:
		return "", fmt.Errorf("unsupported report mode: %s", name)
	}
}

const ruleWidth = 93

var (
	ruleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	counterStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	fitnessStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	antStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("13"))
	countStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Bold(true)
)

// Console prints colony progress. In ModeAnt every ant is reported in
// addition to the iteration banners; ModeNone prints nothing until Summary.
type Console struct {
	out   io.Writer
	mode  Mode
	color bool
}

// NewConsole styles output only when out is a terminal.
func NewConsole(out io.Writer, mode Mode) *Console {
	return &Console{out: out, mode: mode, color: isTerminal(out)}
}

func isTerminal(out io.Writer) bool {
	f, ok := out.(interface{ Fd() uintptr })
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (c *Console) paint(style lipgloss.Style, text string) string {
	if !c.color {
		return text
	}
	return style.Render(text)
}

func (c *Console) AntDone(_ colony.Config, _ int, ant int, _ *conformation.Conformation, fitness float64) {
	if c.mode != ModeAnt {
		return
	}
	fmt.Fprintf(c.out, " %s: %s  |  fitness: %s\n",
		c.paint(antStyle, "ant"),
		c.paint(counterStyle, fmt.Sprintf("%02d", ant+1)),
		c.paint(fitnessStyle, formatFitness(fitness)),
	)
}

func (c *Console) IterationDone(cfg colony.Config, iteration int, _ *conformation.Conformation, bestFitness float64) {
	if c.mode != ModeIteration && c.mode != ModeAnt {
		return
	}
	rule := c.paint(ruleStyle, strings.Repeat("=", ruleWidth))
	fmt.Fprintln(c.out, rule)
	fmt.Fprintf(c.out, "%s %s/%s  |  best fitness: %s  |  %s ants  |  evaporation: %.2f  |  alpha: %.2f beta: %.2f\n",
		c.paint(labelStyle, " ITERATION:"),
		c.paint(counterStyle, fmt.Sprintf("%02d", iteration+1)),
		c.paint(counterStyle, fmt.Sprintf("%02d", cfg.MaxIter)),
		c.paint(fitnessStyle, formatFitness(bestFitness)),
		c.paint(countStyle, strconv.Itoa(cfg.AntCount)),
		cfg.Evaporation,
		cfg.Alpha,
		cfg.Beta,
	)
	fmt.Fprintln(c.out, rule)
}

// Summary prints the final conformation, its lattice drawing and, when the
// reference optimum is known, how far the run got towards it.
func (c *Console) Summary(best *conformation.Conformation, fitness float64, reference int) {
	fmt.Fprintf(c.out, "%s %s  |  fitness: %s",
		c.paint(labelStyle, "best:"),
		best.String(),
		c.paint(fitnessStyle, formatFitness(fitness)),
	)
	if reference > 0 {
		fmt.Fprintf(c.out, "/%d", reference)
	}
	fmt.Fprintln(c.out)
	fmt.Fprint(c.out, render.ASCII(best))
}

func formatFitness(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
