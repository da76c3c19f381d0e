package simulation

import (
	"github.com/rs/xid"

	"github.com/sarchlab/l1es/datarecording"
	"github.com/sarchlab/l1es/measurement"
	"github.com/sarchlab/l1es/mem/cache"
	"github.com/sarchlab/l1es/monitoring"
)

// Builder can be used to build a simulation.
type Builder struct {
	recorder       datarecording.DataRecorder
	recordingOn    bool
	outputFileName string
	monitorOn      bool
	monitorPort    int
}

// MakeBuilder creates a new builder. Recording and monitoring are off.
func MakeBuilder() Builder {
	return Builder{}
}

// WithDataRecorder makes the simulation record its results into r.
func (b Builder) WithDataRecorder(r datarecording.DataRecorder) Builder {
	b.recorder = r
	return b
}

// WithRecording makes the simulation record its results into an SQLite
// database named after the simulation ID.
func (b Builder) WithRecording() Builder {
	b.recordingOn = true
	return b
}

// WithOutputFileName sets the database name, without extension, and turns
// recording on.
func (b Builder) WithOutputFileName(filename string) Builder {
	b.recordingOn = true
	b.outputFileName = filename

	return b
}

// WithMonitoring starts a monitoring server that shows the cache of the
// experiment in progress.
func (b Builder) WithMonitoring() Builder {
	b.monitorOn = true
	return b
}

// WithMonitorPort sets the port number for the monitoring server.
func (b Builder) WithMonitorPort(port int) Builder {
	b.monitorPort = port
	return b
}

func (b Builder) parametersMustBeValid() {
	if !b.monitorOn && b.monitorPort != 0 {
		panic("monitor port cannot be set when monitoring is disabled")
	}

	if b.recorder != nil && b.recordingOn {
		panic("cannot record into both a given recorder and a new database")
	}
}

// Build builds the simulation.
func (b Builder) Build() *Simulation {
	b.parametersMustBeValid()

	s := &Simulation{
		id:           xid.New().String(),
		collector:    measurement.NewCollector(),
		dataRecorder: b.recorder,
	}

	if b.recordingOn {
		outputPath := b.outputFileName
		if outputPath == "" {
			outputPath = "l1es_sim_" + s.id
		}

		s.dataRecorder = datarecording.New(outputPath)
	}

	if b.monitorOn {
		s.monitor = monitoring.NewMonitor(cache.MakeBuilder().Build())
		if b.monitorPort > 0 {
			s.monitor.WithPortNumber(b.monitorPort)
		}

		s.monitorURL = s.monitor.StartServer()
	}

	return s
}
