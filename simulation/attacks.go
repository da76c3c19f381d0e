package simulation

import (
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/l1es/attack/flushreload"
	"github.com/sarchlab/l1es/attack/meltdown"
	"github.com/sarchlab/l1es/attack/primeprobe"
	"github.com/sarchlab/l1es/attack/spectre"
	"github.com/sarchlab/l1es/measurement"
	"github.com/sarchlab/l1es/mem/cache"
)

// Attack names as they appear in results.
const (
	PrimeProbeAttack  = "Prime+Probe"
	FlushReloadAttack = "Flush+Reload"
	SpectreAttack     = "Spectre"
	MeltdownAttack    = "Meltdown"
)

// Defaults of the attack demonstrations.
const (
	DefaultTargetSet      = 3
	DefaultTrainingRounds = 5
	DefaultSecret         = "SECRET_DATA"
	DefaultKernelData     = "KERNEL_SECRET"
)

// A Trial is one detection attempt with a known answer.
type Trial struct {
	Name     string
	Expected bool
	Observed bool
}

// AttackOutcome is what an attack demonstration found.
type AttackOutcome struct {
	Attack   string
	Config   cache.Config
	Trials   []Trial
	Expected []byte
	Leaked   []byte
	Results  measurement.AttackResults
}

func scoreTrials(
	attack string,
	trials []Trial,
	elapsed time.Duration,
) measurement.AttackResults {
	var tp, tn, fp, fn int

	for _, t := range trials {
		switch {
		case t.Expected && t.Observed:
			tp++
		case t.Expected:
			fn++
		case t.Observed:
			fp++
		default:
			tn++
		}
	}

	r := measurement.AttackResults{
		AttackType:   attack,
		AttackTimeMs: float64(elapsed.Microseconds()) / 1000,
	}

	if len(trials) > 0 {
		r.DetectionAccuracy = float64(tp+tn) / float64(len(trials))
	}

	if tp+fn > 0 {
		r.SuccessRate = float64(tp) / float64(tp+fn)
		r.FalseNegativeRate = float64(fn) / float64(tp+fn)
	} else {
		r.SuccessRate = r.DetectionAccuracy
	}

	if fp+tn > 0 {
		r.FalsePositiveRate = float64(fp) / float64(fp+tn)
	}

	return r
}

func scoreBytes(
	attack string,
	expected, leaked []byte,
	elapsed time.Duration,
) measurement.AttackResults {
	correct := 0
	for i, b := range leaked {
		if i < len(expected) && expected[i] == b {
			correct++
		}
	}

	r := measurement.AttackResults{
		AttackType:   attack,
		LeakedBytes:  correct,
		TotalBytes:   len(expected),
		AttackTimeMs: float64(elapsed.Microseconds()) / 1000,
	}

	if len(expected) > 0 {
		r.SuccessRate = float64(correct) / float64(len(expected))
		r.DetectionAccuracy = r.SuccessRate
	}

	return r
}

func (s *Simulation) finishAttack(
	c *cache.Cache,
	testName string,
	outcome *AttackOutcome,
) {
	s.complete(c, testName, &outcome.Results, map[string]string{
		"attack": outcome.Attack,
	})

	logrus.WithFields(logrus.Fields{
		"attack":       outcome.Attack,
		"config":       outcome.Config.Name,
		"success_rate": outcome.Results.SuccessRate,
	}).Info("attack finished")
}

// RunPrimeProbe primes and probes targetSet with an idle victim, with a
// victim in the target set, and, when there is more than one set, with a
// victim in another set.
func (s *Simulation) RunPrimeProbe(
	config cache.Config,
	targetSet int,
) (*AttackOutcome, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	if targetSet < 0 || targetSet >= config.NumSets() {
		return nil, fmt.Errorf("target set %d out of range for %s",
			targetSet, config.Name)
	}

	c, err := s.newCache(config)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	attack := primeprobe.NewAttack(c, targetSet)

	trial := func(name string, expected bool, victimSet int) Trial {
		var detected bool

		s.exclusive(func() {
			attack.Prime()
			if victimSet >= 0 {
				primeprobe.SimulateVictimAccess(c, victimSet)
			}
			detected = attack.Probe()
		})

		return Trial{Name: name, Expected: expected, Observed: detected}
	}

	trials := []Trial{
		trial("idle", false, -1),
		trial("victim-in-target-set", true, targetSet),
	}

	if c.NumSets() > 1 {
		other := (targetSet + 1) % c.NumSets()
		trials = append(trials, trial("victim-in-other-set", false, other))
	}

	outcome := &AttackOutcome{
		Attack:  PrimeProbeAttack,
		Config:  config,
		Trials:  trials,
		Results: scoreTrials(PrimeProbeAttack, trials, time.Since(start)),
	}
	s.finishAttack(c, "prime_probe", outcome)

	return outcome, nil
}

// MonitoredAddresses returns n consecutive lines of the shared lookup table
// at 0x10000.
func MonitoredAddresses(n int) []uint64 {
	addrs := make([]uint64, n)
	for i := range addrs {
		addrs[i] = 0x10000 + uint64(i)*64
	}

	return addrs
}

// RunFlushReload runs each victim scenario between a flush and a reload of
// monitored. Every monitored address is a trial, expected to be flagged when
// the scenario touches it.
func (s *Simulation) RunFlushReload(
	config cache.Config,
	scenarios []flushreload.Scenario,
	monitored []uint64,
) (*AttackOutcome, error) {
	c, err := s.newCache(config)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	attack := flushreload.NewAttack(c, monitored)

	var trials []Trial

	for _, scenario := range scenarios {
		var results []bool

		s.exclusive(func() {
			attack.Flush()
			scenario.Run(c)
			results = attack.Reload()
		})

		touched := scenario.Addresses()
		for i, addr := range monitored {
			trials = append(trials, Trial{
				Name:     scenario.String() + "@0x" + strconv.FormatUint(addr, 16),
				Expected: slices.Contains(touched, addr),
				Observed: results[i],
			})
		}
	}

	outcome := &AttackOutcome{
		Attack:  FlushReloadAttack,
		Config:  config,
		Trials:  trials,
		Results: scoreTrials(FlushReloadAttack, trials, time.Since(start)),
	}
	s.finishAttack(c, "flush_reload", outcome)

	return outcome, nil
}

// RunSpectre places secret right behind a public buffer of the same length
// and leaks it byte by byte through the victim's bounds check.
func (s *Simulation) RunSpectre(
	config cache.Config,
	secret string,
	trainingRounds int,
) (*AttackOutcome, error) {
	c, err := s.newCache(config)
	if err != nil {
		return nil, err
	}

	public := make([]byte, len(secret))
	for i := range public {
		public[i] = '_'
	}

	sim := spectre.MakeBuilder().
		WithCache(c).
		WithMemory(append(public, secret...)).
		WithBound(len(public)).
		Build()

	start := time.Now()

	var leaked []byte
	s.exclusive(func() {
		leaked = sim.Leak(len(secret), trainingRounds)
	})

	outcome := &AttackOutcome{
		Attack:   SpectreAttack,
		Config:   config,
		Expected: []byte(secret),
		Leaked:   leaked,
		Results: scoreBytes(SpectreAttack, []byte(secret), leaked,
			time.Since(start)),
	}
	s.finishAttack(c, "spectre", outcome)

	return outcome, nil
}

// RunMeltdown dumps kernel through the Meltdown covert channel.
func (s *Simulation) RunMeltdown(
	config cache.Config,
	kernel string,
) (*AttackOutcome, error) {
	c, err := s.newCache(config)
	if err != nil {
		return nil, err
	}

	sim := meltdown.MakeBuilder().
		WithCache(c).
		WithKernelMemory([]byte(kernel)).
		Build()

	start := time.Now()

	var dumped []byte
	s.exclusive(func() {
		dumped = sim.Dump(len(kernel))
	})

	outcome := &AttackOutcome{
		Attack:   MeltdownAttack,
		Config:   config,
		Expected: []byte(kernel),
		Leaked:   dumped,
		Results: scoreBytes(MeltdownAttack, []byte(kernel), dumped,
			time.Since(start)),
	}
	s.finishAttack(c, "meltdown", outcome)

	return outcome, nil
}

// RunAllAttacks runs every attack on config with the default parameters.
func (s *Simulation) RunAllAttacks(config cache.Config) ([]*AttackOutcome, error) {
	var outcomes []*AttackOutcome

	for _, name := range AttackNames() {
		outcome, err := s.runAttack(name, config)
		if err != nil {
			return nil, err
		}

		outcomes = append(outcomes, outcome)
	}

	return outcomes, nil
}

// AttackNames lists the attack keys RunReport accepts, in run order.
func AttackNames() []string {
	return []string{"prime-probe", "flush-reload", "spectre", "meltdown"}
}

func (s *Simulation) runAttack(
	name string,
	config cache.Config,
) (*AttackOutcome, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch name {
	case "prime-probe":
		return s.RunPrimeProbe(config, DefaultTargetSet%config.NumSets())
	case "flush-reload":
		return s.RunFlushReload(config, flushreload.Scenarios(),
			flushreload.DefaultMonitored)
	case "spectre":
		return s.RunSpectre(config, DefaultSecret, DefaultTrainingRounds)
	case "meltdown":
		return s.RunMeltdown(config, DefaultKernelData)
	default:
		return nil, fmt.Errorf("unknown attack %q", name)
	}
}
