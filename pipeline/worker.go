// Package pipeline implements the processing loop of the logger. Updates
// to remote variables are assembled into records, each record is
// appended to the durable log and buffered, and every full batch is
// exported and handed to the visualizer.
//
// All the processing happens in a single goroutine, so the assembler
// and buffer need no locking.
package pipeline

import (
	"context"
	"time"

	"github.com/juju/loggo"
	"gopkg.in/errgo.v1"

	"github.com/rogpeppe/accellog/accel"
	"github.com/rogpeppe/accellog/cloudlink"
)

var logger = loggo.GetLogger("accellog.pipeline")

// Clock provides the time used to stamp records.
type Clock interface {
	Now() time.Time
}

// RecordLog is implemented by the durable record log.
type RecordLog interface {
	// Append appends a record to the log.
	Append(accel.Record) error
}

// Exporter is used to save each complete batch.
type Exporter interface {
	Export(accel.Batch) error
}

// Visualizer is used to display each complete batch.
// Implementations should not block.
type Visualizer interface {
	SetBatch(accel.Batch)
}

// Params holds the parameters for a call to New.
type Params struct {
	// Updates holds the channel that variable updates are read from.
	// The worker stops when it is closed.
	Updates <-chan cloudlink.Update
	// Axes maps each remote variable name to the axis it holds.
	// Every axis must be mapped exactly once.
	Axes map[string]accel.Axis
	// Log is used to store every record.
	Log RecordLog
	// Exporter is used to save every batch.
	Exporter Exporter
	// Visualizer is used to display every batch.
	Visualizer Visualizer
	// BatchSize holds the number of records in a batch.
	// If it's zero, DefaultBatchSize is used.
	BatchSize int
	// Clock is used to time-stamp records.
	// If it's nil, the system clock is used.
	Clock Clock
}

// Worker represents the processing goroutine.
type Worker struct {
	p         Params
	assembler Assembler
	buffer    *Buffer
	ctx       context.Context
	close     func()
	done      chan struct{}
}

// New starts a worker that processes updates from p.Updates
// until the channel is closed or the worker is closed.
func New(p Params) (*Worker, error) {
	if p.Updates == nil {
		return nil, errgo.Newf("no updates channel provided")
	}
	if p.Log == nil || p.Exporter == nil || p.Visualizer == nil {
		return nil, errgo.Newf("log, exporter and visualizer must all be provided")
	}
	if err := checkAxes(p.Axes); err != nil {
		return nil, errgo.Mask(err)
	}
	if p.Clock == nil {
		p.Clock = systemClock{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	w := &Worker{
		p:      p,
		buffer: NewBuffer(p.BatchSize),
		ctx:    ctx,
		close:  cancel,
		done:   make(chan struct{}),
	}
	go w.run()
	return w, nil
}

func checkAxes(axes map[string]accel.Axis) error {
	var found [accel.NumAxes]string
	for name, a := range axes {
		if a < 0 || a >= accel.NumAxes {
			return errgo.Newf("variable %q mapped to invalid axis %d", name, int(a))
		}
		if found[a] != "" {
			return errgo.Newf("axis %v mapped from both %q and %q", a, found[a], name)
		}
		found[a] = name
	}
	for i, name := range found {
		if name == "" {
			return errgo.Newf("no variable provided for axis %v", accel.Axis(i))
		}
	}
	return nil
}

// Close stops the worker and waits for it to finish.
// Any partially assembled record or partially filled
// batch is discarded.
func (w *Worker) Close() {
	w.close()
	<-w.done
}

// Done returns a channel that's closed when the worker
// has stopped.
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

func (w *Worker) run() {
	defer close(w.done)
	for {
		select {
		case <-w.ctx.Done():
			return
		case u, ok := <-w.p.Updates:
			if !ok {
				logger.Infof("update channel closed; %d records left unbatched", w.buffer.Len())
				return
			}
			if err := w.handle(u); err != nil {
				logger.Warningf("dropping update %s=%g: %v", u.Name, u.Value, err)
			}
		}
	}
}

// handle processes a single update. An error is returned only
// if the update itself could not be processed; batch export failures
// are logged but do not cause an error.
func (w *Worker) handle(u cloudlink.Update) error {
	axis, ok := w.p.Axes[u.Name]
	if !ok {
		return errgo.Newf("unknown variable %q", u.Name)
	}
	r, ok := w.assembler.Add(accel.AxisSample{
		Axis:  axis,
		Value: u.Value,
	}, w.p.Clock.Now)
	if !ok {
		return nil
	}
	if err := w.p.Log.Append(r); err != nil {
		return errgo.Notef(err, "cannot log record")
	}
	logger.Infof("data recorded: %v", r)
	if b, ok := w.buffer.Add(r); ok {
		w.flush(b)
	}
	return nil
}

// flush exports and displays a complete batch. The batch has already
// been removed from the buffer, so it is lost if the export fails.
func (w *Worker) flush(b accel.Batch) {
	if err := w.p.Exporter.Export(b); err != nil {
		logger.Errorf("cannot export batch %s: %v", b.ID, err)
		return
	}
	w.p.Visualizer.SetBatch(b)
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}
