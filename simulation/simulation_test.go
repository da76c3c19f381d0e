package simulation

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/l1es/attack/flushreload"
	"github.com/sarchlab/l1es/datarecording"
	"github.com/sarchlab/l1es/measurement"
	"github.com/sarchlab/l1es/mem/cache"
)

var _ = Describe("Builder", func() {
	It("should refuse a port without monitoring", func() {
		Expect(func() {
			MakeBuilder().WithMonitorPort(8080).Build()
		}).To(Panic())
	})

	It("should refuse two recorders", func() {
		mockCtrl := gomock.NewController(GinkgoT())
		recorder := NewMockDataRecorder(mockCtrl)

		Expect(func() {
			MakeBuilder().WithDataRecorder(recorder).WithRecording().Build()
		}).To(Panic())
	})

	It("should give every simulation its own ID", func() {
		a := MakeBuilder().Build()
		b := MakeBuilder().Build()

		Expect(a.ID()).NotTo(BeEmpty())
		Expect(a.ID()).NotTo(Equal(b.ID()))
		Expect(a.GetDataRecorder()).To(BeNil())
		Expect(a.GetMonitor()).To(BeNil())
	})
})

var _ = Describe("Simulation", func() {
	var s *Simulation

	BeforeEach(func() {
		s = MakeBuilder().Build()
	})

	AfterEach(func() {
		Expect(s.Terminate()).To(Succeed())
	})

	Context("basic test", func() {
		It("should replay the pattern on a direct-mapped cache", func() {
			accesses, err := s.RunBasic(cache.DirectMappedConfig(16*1024, 64))
			Expect(err).NotTo(HaveOccurred())

			hits := make([]bool, len(accesses))
			cycles := make([]uint64, len(accesses))
			for i, a := range accesses {
				Expect(a.Address).To(Equal(BasicPattern[i]))
				hits[i] = a.Hit
				cycles[i] = a.Cycles
			}

			Expect(hits).To(Equal(
				[]bool{false, false, false, true, false, true}))
			Expect(cycles).To(Equal(
				[]uint64{100, 100, 100, 1, 100, 1}))
		})

		It("should thrash a small set", func() {
			accesses, err := s.RunBasic(
				cache.SetAssociativeConfig(512, 64, 2, cache.LRU))
			Expect(err).NotTo(HaveOccurred())

			for _, a := range accesses {
				Expect(a.Hit).To(BeFalse())
			}
		})

		It("should record a result", func() {
			config := cache.DirectMappedConfig(16*1024, 64)
			_, err := s.RunBasic(config)
			Expect(err).NotTo(HaveOccurred())

			results := s.GetCollector().Results()
			Expect(results).To(HaveLen(1))

			r := results[0]
			Expect(r.TestName).To(Equal("basic_test"))
			Expect(r.ConfigName).To(Equal(config.Name))
			Expect(r.AttackResults).To(BeNil())
			Expect(r.Timings).To(HaveLen(len(BasicPattern)))
			Expect(r.CacheStats.TotalAccesses).To(Equal(uint64(6)))
			Expect(r.CacheStats.TotalHits).To(Equal(uint64(2)))
			Expect(r.CacheStats.NumSets).To(Equal(256))
			Expect(r.CacheStats.AverageAccessTime).
				To(BeNumerically("~", 402.0/6))
			Expect(r.Metadata).To(HaveKeyWithValue("simulation_id", s.ID()))
			Expect(r.Metadata).To(HaveKeyWithValue("policy", "LRU"))
		})

		It("should reject an invalid configuration", func() {
			_, err := s.RunBasic(cache.SetAssociativeConfig(1000, 64, 2, cache.LRU))
			Expect(err).To(MatchError(cache.ErrInvalidGeometry))
			Expect(s.GetCollector().Results()).To(BeEmpty())
		})
	})

	Context("comparison", func() {
		It("should select configurations", func() {
			Expect(ComparisonConfigs(false, false)).To(HaveLen(5))
			Expect(ComparisonConfigs(true, false)).To(HaveLen(8))
			Expect(ComparisonConfigs(false, true)).To(HaveLen(7))
			Expect(ComparisonConfigs(true, true)).To(HaveLen(10))

			for _, config := range ComparisonConfigs(true, true) {
				Expect(config.Validate()).To(Succeed())
			}
		})

		It("should produce one row per configuration", func() {
			configs := ComparisonConfigs(false, false)

			rows, err := s.RunComparison(configs)
			Expect(err).NotTo(HaveOccurred())
			Expect(rows).To(HaveLen(len(configs)))

			for i, row := range rows {
				Expect(row.Config).To(Equal(configs[i]))
				Expect(row.Stats.TotalAccesses).
					To(Equal(uint64(len(ComparisonPattern))))
			}

			hits := make([]uint64, len(rows))
			for i, row := range rows {
				hits[i] = row.Stats.TotalHits
			}

			// The first five lines share one set of the 4-way cache.
			Expect(hits).To(Equal([]uint64{1, 1, 0, 2, 2}))
			Expect(s.GetCollector().Results()).To(HaveLen(len(configs)))
		})
	})

	Context("attacks", func() {
		var config cache.Config

		BeforeEach(func() {
			config = cache.SetAssociativeConfig(32*1024, 64, 8, cache.LRU)
		})

		It("should detect a victim with Prime+Probe", func() {
			outcome, err := s.RunPrimeProbe(config, DefaultTargetSet)
			Expect(err).NotTo(HaveOccurred())

			Expect(outcome.Attack).To(Equal(PrimeProbeAttack))
			Expect(outcome.Trials).To(Equal([]Trial{
				{Name: "idle", Expected: false, Observed: false},
				{Name: "victim-in-target-set", Expected: true, Observed: true},
				{Name: "victim-in-other-set", Expected: false, Observed: false},
			}))
			Expect(outcome.Results.SuccessRate).To(Equal(1.0))
			Expect(outcome.Results.DetectionAccuracy).To(Equal(1.0))
			Expect(outcome.Results.FalsePositiveRate).To(BeZero())
		})

		It("should skip the other-set trial on a single set", func() {
			outcome, err := s.RunPrimeProbe(
				cache.FullyAssociativeConfig(1024, 64, cache.LRU), 0)
			Expect(err).NotTo(HaveOccurred())

			Expect(outcome.Trials).To(HaveLen(2))
			Expect(outcome.Results.SuccessRate).To(Equal(1.0))
		})

		It("should reject a target set out of range", func() {
			_, err := s.RunPrimeProbe(config, config.NumSets())
			Expect(err).To(HaveOccurred())

			_, err = s.RunPrimeProbe(config, -1)
			Expect(err).To(HaveOccurred())
		})

		It("should flag exactly the touched lines with Flush+Reload", func() {
			outcome, err := s.RunFlushReload(config,
				flushreload.Scenarios(), flushreload.DefaultMonitored)
			Expect(err).NotTo(HaveOccurred())

			Expect(outcome.Trials).To(HaveLen(
				len(flushreload.Scenarios()) * len(flushreload.DefaultMonitored)))
			Expect(outcome.Trials[0].Name).To(Equal("none@0x10000"))
			Expect(outcome.Results.SuccessRate).To(Equal(1.0))
			Expect(outcome.Results.FalsePositiveRate).To(BeZero())
			Expect(outcome.Results.FalseNegativeRate).To(BeZero())
		})

		It("should leak the secret with Spectre", func() {
			outcome, err := s.RunSpectre(config, DefaultSecret,
				DefaultTrainingRounds)
			Expect(err).NotTo(HaveOccurred())

			Expect(string(outcome.Leaked)).To(Equal(DefaultSecret))
			Expect(outcome.Results.LeakedBytes).To(Equal(len(DefaultSecret)))
			Expect(outcome.Results.TotalBytes).To(Equal(len(DefaultSecret)))
			Expect(outcome.Results.SuccessRate).To(Equal(1.0))
		})

		It("should dump kernel memory with Meltdown", func() {
			outcome, err := s.RunMeltdown(config, DefaultKernelData)
			Expect(err).NotTo(HaveOccurred())

			Expect(string(outcome.Leaked)).To(Equal(DefaultKernelData))
			Expect(outcome.Results.SuccessRate).To(Equal(1.0))
		})

		It("should run all attacks in order", func() {
			outcomes, err := s.RunAllAttacks(config)
			Expect(err).NotTo(HaveOccurred())

			names := make([]string, len(outcomes))
			for i, o := range outcomes {
				names[i] = o.Attack
			}

			Expect(names).To(Equal([]string{
				PrimeProbeAttack, FlushReloadAttack,
				SpectreAttack, MeltdownAttack,
			}))

			results := s.GetCollector().Results()
			Expect(results).To(HaveLen(4))
			for _, r := range results {
				Expect(r.AttackResults).NotTo(BeNil())
				Expect(r.Metadata).To(HaveKey("attack"))
			}
		})

		It("should refuse an unknown attack", func() {
			_, err := s.runAttack("rowhammer", config)
			Expect(err).To(MatchError(ContainSubstring("rowhammer")))
		})
	})

	Context("benchmark", func() {
		It("should generate the same stream every time", func() {
			a := BenchmarkStream(500)
			b := BenchmarkStream(500)

			Expect(a).To(Equal(b))

			hot := 0
			for _, addr := range a {
				Expect(addr % 64).To(BeZero())
				if addr >= hotBase && addr < hotBase+hotLines*64 {
					hot++
				}
			}

			Expect(hot).To(BeNumerically(">", 300))
		})

		It("should run every test configuration", func() {
			rows, err := s.RunBenchmark(200, false)
			Expect(err).NotTo(HaveOccurred())
			Expect(rows).To(HaveLen(len(cache.TestConfigs())))

			for _, row := range rows {
				Expect(row.Stats.TotalAccesses).To(Equal(uint64(200)))
				Expect(row.Stats.AverageAccessTime).To(BeNumerically(">", 1))
			}

			for _, r := range s.GetCollector().Results() {
				Expect(r.TestName).To(Equal("benchmark"))
				Expect(r.Timings).To(BeEmpty())
				Expect(r.Metadata).To(HaveKeyWithValue("iterations", "200"))
			}
		})

		It("should keep timings when detailed", func() {
			_, err := s.RunBenchmark(100, true)
			Expect(err).NotTo(HaveOccurred())

			for _, r := range s.GetCollector().Results() {
				Expect(r.Timings).To(HaveLen(100))
			}
		})

		It("should be deterministic", func() {
			first, err := s.RunBenchmark(300, false)
			Expect(err).NotTo(HaveOccurred())

			other := MakeBuilder().Build()
			second, err := other.RunBenchmark(300, false)
			Expect(err).NotTo(HaveOccurred())

			for i := range first {
				Expect(second[i].Stats.TotalHits).
					To(Equal(first[i].Stats.TotalHits))
			}
		})

		It("should refuse a non-positive iteration count", func() {
			_, err := s.RunBenchmark(0, false)
			Expect(err).To(HaveOccurred())
		})
	})

	Context("report", func() {
		It("should resolve presets and full names", func() {
			all := cache.AttackConfigs()

			configs, err := ResolveReportConfigs(nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(configs).To(Equal(all))

			configs, err = ResolveReportConfigs(
				[]string{" 8-WAY ", strings.ToUpper(all[0].Name)})
			Expect(err).NotTo(HaveOccurred())
			Expect(configs).To(Equal([]cache.Config{all[2], all[0]}))

			_, err = ResolveReportConfigs([]string{"3-way"})
			Expect(err).To(MatchError(ContainSubstring("3-way")))
		})

		It("should resolve attack names", func() {
			names, err := ResolveReportScenarios(nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(names).To(Equal(AttackNames()))

			names, err = ResolveReportScenarios([]string{"Spectre"})
			Expect(err).NotTo(HaveOccurred())
			Expect(names).To(Equal([]string{"spectre"}))

			_, err = ResolveReportScenarios([]string{"rowhammer"})
			Expect(err).To(HaveOccurred())
		})

		It("should build the matrix", func() {
			report, err := s.RunReport(
				[]string{"2-way", "8-way"},
				[]string{"prime-probe", "flush-reload", "meltdown"})
			Expect(err).NotTo(HaveOccurred())

			Expect(report.Rows).To(HaveLen(6))
			Expect(report.Rows[0].ConfigName).
				To(Equal(cache.AttackConfigs()[1].Name))
			Expect(report.Rows[0].Attack).To(Equal(PrimeProbeAttack))
			Expect(report.Rows[5].Attack).To(Equal(MeltdownAttack))

			for _, row := range report.Rows {
				Expect(row.Results.SuccessRate).To(Equal(1.0))
				Expect(row.Results.FalsePositiveRate).To(BeZero())
			}
		})

		It("should fail before running anything", func() {
			_, err := s.RunReport([]string{"8-way"}, []string{"rowhammer"})
			Expect(err).To(HaveOccurred())
			Expect(s.GetCollector().Results()).To(BeEmpty())
		})

		It("should render a table", func() {
			report := &Report{Rows: []ReportRow{
				{
					ConfigName: "cfg",
					Attack:     PrimeProbeAttack,
					Results: measurement.AttackResults{
						SuccessRate:       1,
						FalsePositiveRate: 0.25,
					},
				},
				{
					ConfigName: "cfg",
					Attack:     SpectreAttack,
					Results: measurement.AttackResults{
						SuccessRate: 0.5,
						LeakedBytes: 2,
						TotalBytes:  4,
					},
				},
			}}

			buf := new(bytes.Buffer)
			Expect(report.Render(buf)).To(Succeed())

			lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
			Expect(lines).To(HaveLen(3))
			Expect(lines[0]).To(HavePrefix("Configuration"))
			Expect(lines[1]).To(ContainSubstring("100.0%"))
			Expect(lines[1]).To(ContainSubstring("25.0%"))
			Expect(lines[1]).To(HaveSuffix("-"))
			Expect(lines[2]).To(HaveSuffix("2/4"))
		})
	})
})

var _ = Describe("Recording", func() {
	var mockCtrl *gomock.Controller

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should write results to the recorder on terminate", func() {
		recorder := NewMockDataRecorder(mockCtrl)
		s := MakeBuilder().WithDataRecorder(recorder).Build()

		_, err := s.RunBasic(cache.DirectMappedConfig(16*1024, 64))
		Expect(err).NotTo(HaveOccurred())

		gomock.InOrder(
			recorder.EXPECT().ListTables().Return(nil),
			recorder.EXPECT().CreateTable(measurement.SimulationTable, gomock.Any()),
			recorder.EXPECT().CreateTable(measurement.TimingTable, gomock.Any()),
			recorder.EXPECT().
				InsertData(measurement.SimulationTable, gomock.Any()),
		)
		recorder.EXPECT().
			InsertData(measurement.TimingTable, gomock.Any()).
			Times(len(BasicPattern))
		recorder.EXPECT().Flush()
		recorder.EXPECT().Close().Return(nil)

		Expect(s.Terminate()).To(Succeed())
	})

	It("should report a failing close", func() {
		recorder := NewMockDataRecorder(mockCtrl)
		s := MakeBuilder().WithDataRecorder(recorder).Build()

		recorder.EXPECT().ListTables().
			Return([]string{measurement.SimulationTable, measurement.TimingTable})
		recorder.EXPECT().Flush()
		recorder.EXPECT().Close().Return(context.Canceled)

		Expect(s.Terminate()).To(MatchError(context.Canceled))
	})

	It("should write an SQLite database", func() {
		path := filepath.Join(GinkgoT().TempDir(), "run")
		s := MakeBuilder().WithOutputFileName(path).Build()

		_, err := s.RunBasic(cache.DirectMappedConfig(16*1024, 64))
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Terminate()).To(Succeed())

		reader, err := datarecording.NewReader(path + ".sqlite3")
		Expect(err).NotTo(HaveOccurred())
		defer reader.Close()

		tables, err := reader.Tables(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(tables).To(ContainElements(
			measurement.SimulationTable, measurement.TimingTable))
	})
})

var _ = Describe("Monitoring", func() {
	It("should serve while experiments run", func() {
		s := MakeBuilder().WithMonitoring().Build()

		Expect(s.GetMonitor()).NotTo(BeNil())
		Expect(s.MonitorURL()).To(HavePrefix("http://"))

		_, err := s.RunBenchmark(2048, false)
		Expect(err).NotTo(HaveOccurred())

		Expect(s.Terminate()).To(Succeed())
	})
})
