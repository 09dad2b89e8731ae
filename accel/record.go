// Package accel holds the accelerometer data model shared by the rest of
// the logger: axis readings, assembled records and batches, and the CSV
// format used to store them.
package accel

import (
	"fmt"
	"time"
)

// Axis identifies one of the three accelerometer axes.
type Axis int

const (
	X Axis = iota
	Y
	Z
	NumAxes
)

var axisNames = [NumAxes]string{"x", "y", "z"}

func (a Axis) String() string {
	if a < 0 || a >= NumAxes {
		return fmt.Sprintf("Axis(%d)", int(a))
	}
	return axisNames[a]
}

// ParseAxis returns the axis with the given name.
func ParseAxis(s string) (Axis, error) {
	for i, name := range axisNames {
		if name == s {
			return Axis(i), nil
		}
	}
	return 0, fmt.Errorf("unknown axis %q", s)
}

// AxisSample holds a single reading for one axis.
type AxisSample struct {
	Axis  Axis
	Value float64
}

// Record holds one complete accelerometer reading.
type Record struct {
	// Time holds the time the record was assembled,
	// with second resolution.
	Time time.Time
	X    float64
	Y    float64
	Z    float64
}

// Value returns the value of the given axis.
func (r Record) Value(a Axis) float64 {
	switch a {
	case X:
		return r.X
	case Y:
		return r.Y
	case Z:
		return r.Z
	}
	panic(fmt.Errorf("invalid axis %d", a))
}

func (r Record) String() string {
	return fmt.Sprintf("x=%g y=%g z=%g at %s", r.X, r.Y, r.Z, r.Time.Format(TimeFormat))
}

// Batch holds a fixed-size window of records that are
// exported and displayed together.
type Batch struct {
	// ID uniquely identifies the batch.
	ID      string
	Records []Record
}
