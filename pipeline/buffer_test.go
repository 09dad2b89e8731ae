package pipeline_test

import (
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/rogpeppe/accellog/accel"
	"github.com/rogpeppe/accellog/pipeline"
)

// ignoreBatchID ignores the randomly generated batch ID
// when comparing batches.
var ignoreBatchID = cmpopts.IgnoreFields(accel.Batch{}, "ID")

func mkRecords(n int) []accel.Record {
	records := make([]accel.Record, n)
	for i := range records {
		v := float64(i)
		records[i] = accel.Record{
			Time: epoch.Add(time.Duration(i) * time.Second),
			X:    v,
			Y:    v + 0.5,
			Z:    v - 10,
		}
	}
	return records
}

func TestBufferDefaultSize(t *testing.T) {
	c := qt.New(t)
	c.Assert(pipeline.NewBuffer(0).Size(), qt.Equals, pipeline.DefaultBatchSize)
	c.Assert(pipeline.NewBuffer(-1).Size(), qt.Equals, pipeline.DefaultBatchSize)
	c.Assert(pipeline.NewBuffer(3).Size(), qt.Equals, 3)
}

func TestBufferBatches(t *testing.T) {
	c := qt.New(t)
	b := pipeline.NewBuffer(3)
	records := mkRecords(7)
	var batches []accel.Batch
	for i, r := range records {
		batch, ok := b.Add(r)
		if !ok {
			continue
		}
		c.Check(i%3, qt.Equals, 2)
		batches = append(batches, batch)
		c.Check(b.Len(), qt.Equals, 0)
	}
	c.Assert(batches, qt.CmpEquals(ignoreBatchID), []accel.Batch{{
		Records: records[0:3],
	}, {
		Records: records[3:6],
	}})
	c.Assert(batches[0].ID, qt.Not(qt.Equals), "")
	c.Assert(batches[0].ID, qt.Not(qt.Equals), batches[1].ID)
	c.Assert(b.Len(), qt.Equals, 1)
}

func TestBufferBatchNotAliased(t *testing.T) {
	c := qt.New(t)
	b := pipeline.NewBuffer(2)
	records := mkRecords(4)
	b.Add(records[0])
	batch, ok := b.Add(records[1])
	c.Assert(ok, qt.IsTrue)
	b.Add(records[2])
	b.Add(records[3])
	// Later additions must not change an earlier batch.
	c.Assert(batch.Records, qt.DeepEquals, records[0:2])
}
