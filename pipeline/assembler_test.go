package pipeline_test

import (
	"testing"
	"time"

	qt "github.com/frankban/quicktest"

	"github.com/rogpeppe/accellog/accel"
	"github.com/rogpeppe/accellog/pipeline"
)

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

var assemblerTests = []struct {
	about         string
	samples       []accel.AxisSample
	expectRecords []accel.Record
	expectPending []accel.Axis
}{{
	about: "one of each axis",
	samples: []accel.AxisSample{
		{Axis: accel.X, Value: 1},
		{Axis: accel.Y, Value: 2},
		{Axis: accel.Z, Value: 3},
	},
	expectRecords: []accel.Record{{
		Time: epoch,
		X:    1,
		Y:    2,
		Z:    3,
	}},
}, {
	about: "later value overwrites pending value",
	samples: []accel.AxisSample{
		{Axis: accel.X, Value: 1},
		{Axis: accel.X, Value: 5},
		{Axis: accel.Y, Value: 2},
		{Axis: accel.Z, Value: 3},
	},
	expectRecords: []accel.Record{{
		Time: epoch,
		X:    5,
		Y:    2,
		Z:    3,
	}},
}, {
	about: "any arrival order",
	samples: []accel.AxisSample{
		{Axis: accel.Z, Value: 3},
		{Axis: accel.Y, Value: 2},
		{Axis: accel.X, Value: 1},
		{Axis: accel.Y, Value: 20},
		{Axis: accel.Z, Value: 30},
		{Axis: accel.X, Value: 10},
	},
	expectRecords: []accel.Record{{
		Time: epoch,
		X:    1,
		Y:    2,
		Z:    3,
	}, {
		Time: epoch,
		X:    10,
		Y:    20,
		Z:    30,
	}},
}, {
	about: "incomplete record",
	samples: []accel.AxisSample{
		{Axis: accel.X, Value: 1},
		{Axis: accel.Z, Value: 3},
		{Axis: accel.X, Value: 4},
	},
	expectPending: []accel.Axis{accel.X, accel.Z},
}, {
	about: "partial record after complete one",
	samples: []accel.AxisSample{
		{Axis: accel.X, Value: 1},
		{Axis: accel.Y, Value: 2},
		{Axis: accel.Z, Value: 3},
		{Axis: accel.Y, Value: 6},
	},
	expectRecords: []accel.Record{{
		Time: epoch,
		X:    1,
		Y:    2,
		Z:    3,
	}},
	expectPending: []accel.Axis{accel.Y},
}, {
	about: "invalid axis ignored",
	samples: []accel.AxisSample{
		{Axis: accel.X, Value: 1},
		{Axis: accel.NumAxes, Value: 2},
		{Axis: accel.Y, Value: 2},
	},
	expectPending: []accel.Axis{accel.X, accel.Y},
}}

func TestAssembler(t *testing.T) {
	c := qt.New(t)
	for _, test := range assemblerTests {
		c.Run(test.about, func(c *qt.C) {
			var a pipeline.Assembler
			var records []accel.Record
			for _, s := range test.samples {
				// Sub-second parts of the time are discarded.
				if r, ok := a.Add(s, fixedTime(epoch.Add(250*time.Millisecond))); ok {
					records = append(records, r)
				}
			}
			c.Assert(records, qt.DeepEquals, test.expectRecords)
			c.Assert(a.Pending(), qt.DeepEquals, test.expectPending)
		})
	}
}

func fixedTime(t time.Time) func() time.Time {
	return func() time.Time {
		return t
	}
}

func TestAssemblerCallsNowOnlyOnCompletion(t *testing.T) {
	c := qt.New(t)
	var a pipeline.Assembler
	calls := 0
	now := func() time.Time {
		calls++
		return epoch.Add(time.Duration(calls) * time.Second)
	}
	a.Add(accel.AxisSample{Axis: accel.X, Value: 1}, now)
	a.Add(accel.AxisSample{Axis: accel.Y, Value: 2}, now)
	c.Assert(calls, qt.Equals, 0)
	r, ok := a.Add(accel.AxisSample{Axis: accel.Z, Value: 3}, now)
	c.Assert(ok, qt.IsTrue)
	c.Assert(calls, qt.Equals, 1)
	c.Assert(r.Time, qt.Equals, epoch.Add(time.Second))
}

func TestAssemblerReset(t *testing.T) {
	c := qt.New(t)
	var a pipeline.Assembler
	a.Add(accel.AxisSample{Axis: accel.X, Value: 1}, fixedTime(epoch))
	a.Add(accel.AxisSample{Axis: accel.Y, Value: 2}, fixedTime(epoch))
	a.Reset()
	c.Assert(a.Pending(), qt.HasLen, 0)
	_, ok := a.Add(accel.AxisSample{Axis: accel.Z, Value: 3}, fixedTime(epoch))
	c.Assert(ok, qt.IsFalse)
}
