// Package plot renders sweep results for external plotting tools.
package plot

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"text/template"

	"github.com/signalsfoundry/contention-simulator/internal/logging"
)

// ErrGnuplotNotFound is returned by RunGnuplot when the gnuplot binary is
// not on PATH.
var ErrGnuplotNotFound = errors.New("gnuplot not found")

const gnuplotScript = `set xlabel '# of Stations'
set ylabel 'Ratio'
plot '{{.DataPath}}' using 1:2 title 'Throughput' with linespoints, \
     '{{.DataPath}}' using 1:3 title 'Collision Probability' with linespoints, \
     '{{.DataPath}}' using 1:4 title 'Variance of % of packets sent' with linespoints
{{if .Pause -}}
pause -1
{{end -}}
`

var gnuplotTemplate = template.Must(template.New("gnuplot").Parse(gnuplotScript))

// Script describes a gnuplot program over a text results file.
type Script struct {
	DataPath string
	Pause    bool
}

// WriteScript writes the gnuplot program for s to path.
func WriteScript(path string, s Script) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create gnuplot script: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	w := bufio.NewWriter(f)
	if err := gnuplotTemplate.Execute(w, s); err != nil {
		return fmt.Errorf("failed to render gnuplot script: %w", err)
	}
	return w.Flush()
}

// Runner invokes gnuplot on a written script.
type Runner struct {
	// Binary defaults to "gnuplot".
	Binary string
	// Logger defaults to the logger carried by the context.
	Logger logging.Logger
}

// RunGnuplot runs "<binary> -persist <script>" under ctx. A missing binary is
// logged as a warning and reported as ErrGnuplotNotFound.
func (r Runner) RunGnuplot(ctx context.Context, script string) error {
	bin := r.Binary
	if bin == "" {
		bin = "gnuplot"
	}
	log := r.Logger
	if log == nil {
		log = logging.LoggerFromContext(ctx)
	}
	if log == nil {
		log = logging.Noop()
	}

	path, err := exec.LookPath(bin)
	if err != nil {
		log.Warn(ctx, "gnuplot unavailable, skipping plot",
			logging.String("binary", bin),
			logging.Error(err),
		)
		return fmt.Errorf("%w: %v", ErrGnuplotNotFound, err)
	}

	cmd := exec.CommandContext(ctx, path, "-persist", script)
	cmd.Stdout = os.Stderr
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("gnuplot %s: %w", script, err)
	}
	log.Info(ctx, "gnuplot finished", logging.String("script", script))
	return nil
}
