package measurement

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"
)

// SaveJSON writes all results to path as indented JSON.
func (c *Collector) SaveJSON(path string) error {
	return writeFile(path, c.WriteJSON)
}

// WriteJSON writes all results as indented JSON.
func (c *Collector) WriteJSON(w io.Writer) error {
	results := c.results
	if results == nil {
		results = []SimulationResult{}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(results)
}

// SaveCSV writes one summary row per result to path.
func (c *Collector) SaveCSV(path string) error {
	return writeFile(path, c.WriteCSV)
}

// WriteCSV writes one summary row per result.
func (c *Collector) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)

	err := cw.Write([]string{
		"timestamp", "config_name", "test_name", "hit_rate", "miss_rate",
		"avg_access_time", "cache_size_kb", "associativity",
		"attack_success", "leaked_bytes", "total_accesses",
	})
	if err != nil {
		return err
	}

	for _, r := range c.results {
		success, leaked := "N/A", "0"
		if r.AttackResults != nil {
			success = formatFloat(r.AttackResults.SuccessRate)
			leaked = strconv.Itoa(r.AttackResults.LeakedBytes)
		}

		err := cw.Write([]string{
			r.Timestamp.Format(time.RFC3339Nano),
			r.ConfigName,
			r.TestName,
			formatFloat(r.CacheStats.HitRate),
			formatFloat(r.CacheStats.MissRate),
			formatFloat(r.CacheStats.AverageAccessTime),
			strconv.Itoa(r.CacheStats.CacheSizeKB),
			strconv.Itoa(r.CacheStats.Associativity),
			success,
			leaked,
			strconv.FormatUint(r.CacheStats.TotalAccesses, 10),
		})
		if err != nil {
			return err
		}
	}

	cw.Flush()

	return cw.Error()
}

// SaveTimingCSV writes every recorded access to path, keyed by the index of
// its result.
func (c *Collector) SaveTimingCSV(path string) error {
	return writeFile(path, c.WriteTimingCSV)
}

// WriteTimingCSV writes every recorded access, keyed by the index of its
// result.
func (c *Collector) WriteTimingCSV(w io.Writer) error {
	cw := csv.NewWriter(w)

	err := cw.Write([]string{
		"simulation_id", "address", "access_time", "cache_hit", "timestamp",
	})
	if err != nil {
		return err
	}

	for id, r := range c.results {
		for _, t := range r.Timings {
			err := cw.Write([]string{
				strconv.Itoa(id),
				fmt.Sprintf("0x%x", t.Address),
				strconv.FormatUint(t.Cycles, 10),
				strconv.FormatBool(t.Hit),
				strconv.FormatUint(t.Timestamp, 10),
			})
			if err != nil {
				return err
			}
		}
	}

	cw.Flush()

	return cw.Error()
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}

	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}

	return nil
}
