// Package report renders an evaluation report as plain-text tables.
package report

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/crimson-sun/repairclass/internal/engine/evaluate"
)

// Options tune Render.
type Options struct {
	// MaxMismatches caps the listed mismatches; 0 lists none, negative lists all.
	MaxMismatches int
}

// Render writes the summary, per-class metrics and the normalized confusion
// matrix. Classes are numbered by code; the per-class table doubles as the legend.
func Render(w io.Writer, r *evaluate.Report, opts Options) error {
	ew := &errWriter{w: w}

	ew.printf("samples\t%d\n", r.Samples)
	ew.printf("classes\t%d\n", len(r.Classes))
	ew.printf("micro F1\t%.4f\n", r.MicroF1)
	ew.printf("macro F1\t%.4f\n", r.MacroF1)
	ew.printf("mean diagonal accuracy\t%.4f\n", r.MeanDiagonal)
	ew.printf("mismatched\t%d (%.2f%%)\n", len(r.Mismatches), 100*r.MismatchRate)
	ew.printf("MSE (class codes)\t%.4f\n\n", r.MSE)
	if ew.err != nil {
		return ew.err
	}

	if err := renderClasses(w, r); err != nil {
		return err
	}
	ew.printf("\n")
	if err := renderConfusion(w, r); err != nil {
		return err
	}

	n := len(r.Mismatches)
	if opts.MaxMismatches >= 0 && n > opts.MaxMismatches {
		n = opts.MaxMismatches
	}
	if n > 0 {
		ew.printf("\nmismatches (first %d of %d)\n", n, len(r.Mismatches))
		for _, m := range r.Mismatches[:n] {
			ew.printf("  #%d: %s -> %s\n", m.Index, m.Actual, m.Predicted)
		}
	}
	return ew.err
}

func renderClasses(w io.Writer, r *evaluate.Report) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "#\tsupport\tprecision\trecall\tf1\tsubset f1\tdominant\tshare\tclass\t")
	for i, c := range r.PerClass {
		fmt.Fprintf(tw, "%d\t%d\t%.3f\t%.3f\t%.3f\t%.3f\t%d\t%.3f\t%s\t\n",
			i, c.Support, c.Precision, c.Recall, c.F1, c.SubsetF1,
			classIndex(r.Classes, c.Dominant), c.DominantShare, c.Class)
	}
	return tw.Flush()
}

func renderConfusion(w io.Writer, r *evaluate.Report) error {
	tw := tabwriter.NewWriter(w, 0, 0, 1, ' ', tabwriter.AlignRight)
	header := make([]string, 0, len(r.Classes)+1)
	header = append(header, "true\\pred")
	for j := range r.Classes {
		header = append(header, fmt.Sprint(j))
	}
	fmt.Fprintln(tw, strings.Join(header, "\t")+"\t")
	for i, row := range r.Confusion {
		cells := make([]string, 0, len(row)+1)
		cells = append(cells, fmt.Sprint(i))
		for _, v := range row {
			cells = append(cells, fmt.Sprintf("%.2f", v))
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t")+"\t")
	}
	return tw.Flush()
}

func classIndex(classes []string, name string) int {
	for i, c := range classes {
		if c == name {
			return i
		}
	}
	return -1
}

type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(format string, args ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}
