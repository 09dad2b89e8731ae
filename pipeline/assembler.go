package pipeline

import (
	"time"

	"github.com/rogpeppe/accellog/accel"
)

// Assembler collects independently arriving axis readings
// into complete records. The zero value is ready to use.
// It is not safe to call its methods concurrently.
type Assembler struct {
	pending [accel.NumAxes]float64
	set     [accel.NumAxes]bool
}

// Add stores the value of s in the pending slot for its axis,
// overwriting any value already there. When all three axes hold a
// value, Add returns a record stamped with the result of calling now
// (truncated to the second), clears all the pending slots and reports
// true. The now function is called only when a record is returned.
func (a *Assembler) Add(s accel.AxisSample, now func() time.Time) (accel.Record, bool) {
	if s.Axis < 0 || s.Axis >= accel.NumAxes {
		return accel.Record{}, false
	}
	a.pending[s.Axis] = s.Value
	a.set[s.Axis] = true
	for _, ok := range a.set {
		if !ok {
			return accel.Record{}, false
		}
	}
	r := accel.Record{
		Time: now().Truncate(time.Second),
		X:    a.pending[accel.X],
		Y:    a.pending[accel.Y],
		Z:    a.pending[accel.Z],
	}
	a.Reset()
	return r, true
}

// Pending returns the axes that currently hold a value.
func (a *Assembler) Pending() []accel.Axis {
	var axes []accel.Axis
	for i, ok := range a.set {
		if ok {
			axes = append(axes, accel.Axis(i))
		}
	}
	return axes
}

// Reset discards any pending values.
func (a *Assembler) Reset() {
	*a = Assembler{}
}
