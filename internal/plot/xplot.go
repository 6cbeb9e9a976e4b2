package plot

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"text/template"

	"github.com/signalsfoundry/contention-simulator/model"
)

const xplotHeader = `{{.X.Type}} {{.Y.Type}}
title
{{.Title}}
{{if .X.Label -}}
xlabel
{{.X.Label}}
{{end -}}
{{if .Y.Label -}}
ylabel
{{.Y.Label}}
{{end -}}
{{if not .NonzeroAxis -}}
invisible 0 0
{{end -}}
`

var xplotTemplate = template.Must(template.New("xplot").Parse(xplotHeader))

// Series colors in xplot's palette.
const (
	ColorThroughput = 2
	ColorCollision  = 4
	ColorFairness   = 6
)

// Axis names an xplot coordinate type (unsigned, double, ...) and its label.
type Axis struct {
	Type  string
	Label string
}

// Xplot writes one dot per series per summary. Fairness variance is plotted
// as a ratio (divided by 100) so the three series share an axis.
type Xplot struct {
	Title       string
	X           Axis
	Y           Axis
	NonzeroAxis bool

	file   *os.File
	writer *bufio.Writer
}

// NewXplot returns an Xplot with the sweep's title and axes.
func NewXplot() *Xplot {
	return &Xplot{
		Title: "CSMA/CA contention sweep",
		X:     Axis{Type: "unsigned", Label: "# of Stations"},
		Y:     Axis{Type: "double", Label: "Ratio"},
	}
}

// Open creates name and writes the header.
func (p *Xplot) Open(name string) (err error) {
	if p.file, err = os.Create(name); err != nil {
		return fmt.Errorf("failed to create xplot file: %w", err)
	}
	p.writer = bufio.NewWriter(p.file)
	if err = xplotTemplate.Execute(p.writer, p); err != nil {
		p.file.Close()
		return fmt.Errorf("failed to render xplot header: %w", err)
	}
	return nil
}

// Dot buffers one point in the given color.
func (p *Xplot) Dot(x, y any, color int) error {
	_, err := fmt.Fprintf(p.writer, "dot %v %v %d\n", x, y, color)
	return err
}

// Write plots the three series for s and flushes, so a failing file is
// reported on the record that hit it.
func (p *Xplot) Write(_ context.Context, s model.Summary) error {
	dots := []struct {
		y     float64
		color int
	}{
		{s.OccupiedFraction, ColorThroughput},
		{s.CollisionProbability, ColorCollision},
		{s.FairnessVariance / 100, ColorFairness},
	}
	for _, d := range dots {
		if err := p.Dot(s.StationCount, d.y, d.color); err != nil {
			return fmt.Errorf("write xplot dot: %w", err)
		}
	}
	if err := p.writer.Flush(); err != nil {
		return fmt.Errorf("flush xplot: %w", err)
	}
	return nil
}

// Close terminates the plot with "go" and closes the file.
func (p *Xplot) Close() error {
	fmt.Fprintf(p.writer, "go\n")
	if err := p.writer.Flush(); err != nil {
		p.file.Close()
		return err
	}
	return p.file.Close()
}
