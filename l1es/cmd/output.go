package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/xid"
	"github.com/spf13/cobra"

	"github.com/sarchlab/l1es/simulation"
)

// Output file names inside the output directory.
const (
	JSONFile       = "results.json"
	CSVFile        = "results.csv"
	TimingCSVFile  = "timing.csv"
	databasePrefix = "results_"
)

type experiment func(s *simulation.Simulation, w io.Writer) error

// run creates the output directory, runs e on a new simulation, and saves
// what it collected in the requested formats.
func (o *globalOptions) run(cmd *cobra.Command, e experiment) error {
	if err := os.MkdirAll(o.output, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	builder := simulation.MakeBuilder()

	var dbPath string
	if o.sqlite {
		name := filepath.Join(o.output, databasePrefix+xid.New().String())
		builder = builder.WithOutputFileName(name)
		dbPath = name + ".sqlite3"
	}

	s := builder.Build()
	w := cmd.OutOrStdout()

	if err := e(s, w); err != nil {
		_ = s.Terminate()
		return err
	}

	if err := o.save(s, w); err != nil {
		_ = s.Terminate()
		return err
	}

	if err := s.Terminate(); err != nil {
		return err
	}

	if dbPath != "" {
		fmt.Fprintf(w, "Database saved to: %s\n", dbPath)
	}

	if o.verbose {
		fmt.Fprintf(w, "\n%s", s.GetCollector().Summary())
	}

	fmt.Fprintf(w, "Results saved to: %s\n", o.output)

	return nil
}

func (o *globalOptions) save(s *simulation.Simulation, w io.Writer) error {
	collector := s.GetCollector()

	if o.json {
		path := filepath.Join(o.output, JSONFile)
		if err := collector.SaveJSON(path); err != nil {
			return err
		}

		fmt.Fprintf(w, "JSON results saved to: %s\n", path)
	}

	if o.csv {
		path := filepath.Join(o.output, CSVFile)
		if err := collector.SaveCSV(path); err != nil {
			return err
		}

		fmt.Fprintf(w, "CSV results saved to: %s\n", path)

		path = filepath.Join(o.output, TimingCSVFile)
		if err := collector.SaveTimingCSV(path); err != nil {
			return err
		}

		fmt.Fprintf(w, "Timing data saved to: %s\n", path)
	}

	return nil
}

func hitOrMiss(hit bool) string {
	if hit {
		return "HIT"
	}

	return "MISS"
}
