package measurement

import (
	"fmt"
	"slices"
	"time"

	"github.com/sarchlab/l1es/datarecording"
)

// Table names used by Record.
const (
	SimulationTable = "simulations"
	TimingTable     = "access_timings"
)

// SimulationRecord is the flat database row of a SimulationResult.
type SimulationRecord struct {
	SimulationID      string
	Run               int
	Timestamp         string
	ConfigName        string
	TestName          string
	TotalAccesses     uint64
	TotalHits         uint64
	TotalMisses       uint64
	HitRate           float64
	MissRate          float64
	AverageAccessTime float64
	CacheSizeKB       int
	Associativity     int
	LineSize          int
	NumSets           int
	AttackType        string
	SuccessRate       float64
	LeakedBytes       int
	TotalBytes        int
}

// TimingRecord is the flat database row of an AccessTiming.
type TimingRecord struct {
	SimulationID string
	Run          int
	Address      string
	Cycles       uint64
	Hit          bool
	Timestamp    uint64
}

// Record writes all results and their timings to a recorder, tagging every
// row with simulationID. Tables are created on first use.
func (c *Collector) Record(r datarecording.DataRecorder, simulationID string) {
	tables := r.ListTables()
	if !slices.Contains(tables, SimulationTable) {
		r.CreateTable(SimulationTable, SimulationRecord{})
	}

	if !slices.Contains(tables, TimingTable) {
		r.CreateTable(TimingTable, TimingRecord{})
	}

	for run, result := range c.results {
		r.InsertData(SimulationTable, toSimulationRecord(simulationID, run, result))

		for _, t := range result.Timings {
			r.InsertData(TimingTable, TimingRecord{
				SimulationID: simulationID,
				Run:          run,
				Address:      fmt.Sprintf("0x%x", t.Address),
				Cycles:       t.Cycles,
				Hit:          t.Hit,
				Timestamp:    t.Timestamp,
			})
		}
	}

	r.Flush()
}

func toSimulationRecord(
	simulationID string,
	run int,
	result SimulationResult,
) SimulationRecord {
	rec := SimulationRecord{
		SimulationID:      simulationID,
		Run:               run,
		Timestamp:         result.Timestamp.Format(time.RFC3339Nano),
		ConfigName:        result.ConfigName,
		TestName:          result.TestName,
		TotalAccesses:     result.CacheStats.TotalAccesses,
		TotalHits:         result.CacheStats.TotalHits,
		TotalMisses:       result.CacheStats.TotalMisses,
		HitRate:           result.CacheStats.HitRate,
		MissRate:          result.CacheStats.MissRate,
		AverageAccessTime: result.CacheStats.AverageAccessTime,
		CacheSizeKB:       result.CacheStats.CacheSizeKB,
		Associativity:     result.CacheStats.Associativity,
		LineSize:          result.CacheStats.LineSize,
		NumSets:           result.CacheStats.NumSets,
	}

	if a := result.AttackResults; a != nil {
		rec.AttackType = a.AttackType
		rec.SuccessRate = a.SuccessRate
		rec.LeakedBytes = a.LeakedBytes
		rec.TotalBytes = a.TotalBytes
	}

	return rec
}
