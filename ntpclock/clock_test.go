package ntpclock

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/beevik/ntp"
	qt "github.com/frankban/quicktest"
)

type fakeNTP struct {
	mu      sync.Mutex
	offset  time.Duration
	err     error
	queries []string
}

func (f *fakeNTP) query(host string, opts ntp.QueryOptions) (*ntp.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, host)
	if f.err != nil {
		return nil, f.err
	}
	return &ntp.Response{
		ClockOffset: f.offset,
	}, nil
}

func (f *fakeNTP) numQueries() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries)
}

func patchNTP(c *qt.C, f *fakeNTP) {
	c.Patch(&ntpQuery, f.query)
}

func TestNowUsesOffset(t *testing.T) {
	c := qt.New(t)
	f := &fakeNTP{
		offset: time.Hour,
	}
	patchNTP(c, f)
	var elapsed time.Duration
	c.Patch(&sinceT0, func(time.Time) time.Duration {
		return elapsed
	})
	clock, err := New(Params{})
	c.Assert(err, qt.IsNil)
	defer clock.Close()
	c.Assert(f.queries, qt.DeepEquals, []string{DefaultHost})

	t0 := clock.Now()
	c.Assert(t0.Location(), qt.Equals, time.UTC)
	// The reported time is about an hour ahead of the system clock.
	diff := t0.Sub(time.Now())
	c.Assert(diff > 59*time.Minute && diff < 61*time.Minute, qt.IsTrue, qt.Commentf("diff %v", diff))

	elapsed = 10 * time.Second
	c.Assert(clock.Now().Sub(t0), qt.Equals, 10*time.Second)
}

func TestNowNeverGoesBackwards(t *testing.T) {
	c := qt.New(t)
	patchNTP(c, &fakeNTP{})
	elapsed := 10 * time.Second
	c.Patch(&sinceT0, func(time.Time) time.Duration {
		return elapsed
	})
	clock, err := New(Params{Host: "example.com"})
	c.Assert(err, qt.IsNil)
	defer clock.Close()
	t0 := clock.Now()
	elapsed = 5 * time.Second
	c.Assert(clock.Now(), qt.Equals, t0)
}

func TestNewError(t *testing.T) {
	c := qt.New(t)
	patchNTP(c, &fakeNTP{
		err: errors.New("no route to host"),
	})
	_, err := New(Params{Host: "example.com"})
	c.Assert(err, qt.ErrorMatches, `cannot get time from "example.com": no route to host`)
}

func TestLocation(t *testing.T) {
	c := qt.New(t)
	patchNTP(c, &fakeNTP{})
	loc := time.FixedZone("test", 3600)
	clock, err := New(Params{Location: loc})
	c.Assert(err, qt.IsNil)
	defer clock.Close()
	c.Assert(clock.Now().Location(), qt.Equals, loc)
}

func TestPeriodicUpdate(t *testing.T) {
	c := qt.New(t)
	f := &fakeNTP{}
	patchNTP(c, f)
	clock, err := New(Params{
		UpdateInterval: time.Millisecond,
	})
	c.Assert(err, qt.IsNil)
	deadline := time.Now().Add(5 * time.Second)
	for f.numQueries() < 3 {
		if time.Now().After(deadline) {
			c.Fatalf("timed out waiting for clock updates")
		}
		time.Sleep(time.Millisecond)
	}
	clock.Close()
	clock.Close()
}
