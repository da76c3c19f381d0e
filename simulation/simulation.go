// Package simulation runs cache experiments: access pattern tests,
// configuration comparisons, attack demonstrations, benchmarks, and attack
// effectiveness reports. Every experiment records its timings and results in
// a measurement collector.
package simulation

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/l1es/datarecording"
	"github.com/sarchlab/l1es/measurement"
	"github.com/sarchlab/l1es/mem/cache"
	"github.com/sarchlab/l1es/monitoring"
)

// A Simulation provides the services that experiments share.
type Simulation struct {
	id           string
	collector    *measurement.Collector
	dataRecorder datarecording.DataRecorder
	monitor      *monitoring.Monitor
	monitorURL   string
}

// ID returns the unique ID of the simulation.
func (s *Simulation) ID() string {
	return s.id
}

// GetCollector returns the collector that holds the results.
func (s *Simulation) GetCollector() *measurement.Collector {
	return s.collector
}

// GetDataRecorder returns the data recorder, or nil if results are not
// recorded.
func (s *Simulation) GetDataRecorder() datarecording.DataRecorder {
	return s.dataRecorder
}

// GetMonitor returns the monitor, or nil if monitoring is off.
func (s *Simulation) GetMonitor() *monitoring.Monitor {
	return s.monitor
}

// MonitorURL returns the address of the monitoring page.
func (s *Simulation) MonitorURL() string {
	return s.monitorURL
}

// Terminate records the results, closes the recorder, and stops the
// monitor.
func (s *Simulation) Terminate() error {
	if s.dataRecorder != nil {
		s.collector.Record(s.dataRecorder, s.id)

		if err := s.dataRecorder.Close(); err != nil {
			return fmt.Errorf("closing data recorder: %w", err)
		}
	}

	if s.monitor != nil {
		if err := s.monitor.Shutdown(context.Background()); err != nil {
			return fmt.Errorf("stopping monitor: %w", err)
		}
	}

	return nil
}

// newCache builds a cache for an experiment, hooks the collector to it and
// shows it on the monitor.
func (s *Simulation) newCache(config cache.Config) (*cache.Cache, error) {
	return s.buildCache(config, true)
}

func (s *Simulation) buildCache(
	config cache.Config,
	collectTimings bool,
) (*cache.Cache, error) {
	c, err := cache.NewFromConfig(config)
	if err != nil {
		return nil, err
	}

	if collectTimings {
		c.AcceptHook(s.collector)
	}

	if s.monitor != nil {
		s.monitor.Attach(c)
	}

	logrus.WithFields(logrus.Fields{
		"config": config.Name,
		"sets":   c.NumSets(),
		"ways":   c.Associativity(),
	}).Debug("cache created")

	return c, nil
}

// exclusive runs f so that the monitor does not observe the cache halfway
// through a step.
func (s *Simulation) exclusive(f func()) {
	if s.monitor == nil {
		f()
		return
	}

	s.monitor.Do(func(*cache.Cache) { f() })
}

func (s *Simulation) complete(
	c *cache.Cache,
	testName string,
	attack *measurement.AttackResults,
	metadata map[string]string,
) measurement.SimulationResult {
	stats := measurement.NewCacheStatistics(c, s.collector.CurrentTimings())

	if metadata == nil {
		metadata = map[string]string{}
	}

	metadata["simulation_id"] = s.id
	metadata["policy"] = c.Config().Policy.String()

	return s.collector.CompleteSimulation(
		c.Config().Name, testName, stats, attack, metadata)
}
