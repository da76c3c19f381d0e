package simulation

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/sarchlab/l1es/measurement"
	"github.com/sarchlab/l1es/mem/cache"
)

// ReportPresets are the short names of cache.AttackConfigs, in order.
var ReportPresets = []string{
	"direct-mapped", "2-way", "8-way", "fully-associative",
}

// ReportRow is the effectiveness of one attack on one configuration.
type ReportRow struct {
	ConfigName string
	Attack     string
	Results    measurement.AttackResults
}

// Report is an attack effectiveness matrix.
type Report struct {
	Rows []ReportRow
}

// ResolveReportConfigs maps preset names or full configuration names to
// configurations. An empty list selects every attack configuration.
func ResolveReportConfigs(names []string) ([]cache.Config, error) {
	all := cache.AttackConfigs()
	if len(names) == 0 {
		return all, nil
	}

	configs := make([]cache.Config, 0, len(names))

	for _, name := range names {
		config, ok := findReportConfig(all, name)
		if !ok {
			return nil, fmt.Errorf("unknown configuration %q, expected one of %s",
				name, strings.Join(ReportPresets, ", "))
		}

		configs = append(configs, config)
	}

	return configs, nil
}

func findReportConfig(all []cache.Config, name string) (cache.Config, bool) {
	name = strings.ToLower(strings.TrimSpace(name))

	for i, preset := range ReportPresets {
		if name == preset {
			return all[i], true
		}
	}

	for _, config := range all {
		if strings.EqualFold(config.Name, name) {
			return config, true
		}
	}

	return cache.Config{}, false
}

// ResolveReportScenarios checks attack names against AttackNames. An empty
// list selects every attack.
func ResolveReportScenarios(names []string) ([]string, error) {
	known := AttackNames()
	if len(names) == 0 {
		return known, nil
	}

	scenarios := make([]string, 0, len(names))

	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))

		if !slices.Contains(known, name) {
			return nil, fmt.Errorf("unknown attack %q, expected one of %s",
				name, strings.Join(known, ", "))
		}

		scenarios = append(scenarios, name)
	}

	return scenarios, nil
}

// RunReport runs every selected attack on every selected configuration.
func (s *Simulation) RunReport(configNames, scenarioNames []string) (*Report, error) {
	configs, err := ResolveReportConfigs(configNames)
	if err != nil {
		return nil, err
	}

	scenarios, err := ResolveReportScenarios(scenarioNames)
	if err != nil {
		return nil, err
	}

	report := &Report{}

	for _, config := range configs {
		for _, scenario := range scenarios {
			outcome, err := s.runAttack(scenario, config)
			if err != nil {
				return nil, fmt.Errorf("%s on %s: %w", scenario, config.Name, err)
			}

			report.Rows = append(report.Rows, ReportRow{
				ConfigName: config.Name,
				Attack:     outcome.Attack,
				Results:    outcome.Results,
			})
		}
	}

	return report, nil
}

// Render writes the report as an aligned table.
func (r *Report) Render(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintln(tw, "Configuration\tAttack\tSuccess\tFalse Pos.\tFalse Neg.\tLeaked")

	for _, row := range r.Rows {
		leaked := "-"
		if row.Results.TotalBytes > 0 {
			leaked = fmt.Sprintf("%d/%d",
				row.Results.LeakedBytes, row.Results.TotalBytes)
		}

		fmt.Fprintf(tw, "%s\t%s\t%.1f%%\t%.1f%%\t%.1f%%\t%s\n",
			row.ConfigName,
			row.Attack,
			row.Results.SuccessRate*100,
			row.Results.FalsePositiveRate*100,
			row.Results.FalseNegativeRate*100,
			leaked,
		)
	}

	return tw.Flush()
}
