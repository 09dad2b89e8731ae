// Package ntpclock provides an NTP-backed source of time values
// for use when the system clock can't always be relied upon to produce
// NTP-synchronized timestamps, for example on a small device
// with no real-time clock.
package ntpclock

import (
	"sync"
	"time"

	"github.com/beevik/ntp"
	"github.com/juju/loggo"
	"gopkg.in/errgo.v1"
)

var logger = loggo.GetLogger("accellog.ntpclock")

// ntpQuery is used to query the current NTP time.
// It's overridden for tests.
var ntpQuery = ntp.QueryWithOptions

// sinceT0 returns the time elapsed since t. It's overridden for tests.
var sinceT0 = time.Since

const (
	DefaultHost           = "pool.ntp.org"
	DefaultTimeout        = 30 * time.Second
	DefaultUpdateInterval = 30 * time.Minute
)

// Params holds the parameters for a call to New.
type Params struct {
	// Host holds the the NTP host to use.
	// If it's empty, DefaultHost is used.
	Host string
	// Timeout holds the timeout on making the initial Clock instance.
	// If it's zero, DefaultTimeout is used.
	Timeout time.Duration
	// UpdateInterval holds how often the NTP host is queried again.
	// If it's zero, DefaultUpdateInterval is used.
	UpdateInterval time.Duration
	// Location holds the time zone location to use for the returned time.
	// If it's nil, the times are returned in UTC.
	Location *time.Location
}

// Clock provides the current time as reported by an NTP server.
type Clock struct {
	p         Params
	closed    chan struct{}
	closeOnce sync.Once
	// mu guards the fields below it.
	mu sync.Mutex
	// t0 holds the system clock time
	t0 time.Time
	// absT0 holds the absolute time corresponding to t0.
	absT0 time.Time
	// prevTime holds the previous time reading returned from Now.
	prevTime time.Time
}

// New returns a Clock that queries an NTP host for the time.
// New might block for up to p.Timeout while it tries to
// find out the time.
// The Clock should be closed after use.
func New(p Params) (*Clock, error) {
	if p.Host == "" {
		p.Host = DefaultHost
	}
	if p.Timeout == 0 {
		p.Timeout = DefaultTimeout
	}
	if p.UpdateInterval == 0 {
		p.UpdateInterval = DefaultUpdateInterval
	}
	if p.Location == nil {
		p.Location = time.UTC
	}
	c := &Clock{
		p:      p,
		closed: make(chan struct{}),
	}
	if err := c.update(p.Timeout); err != nil {
		return nil, errgo.Notef(err, "cannot get time from %q", p.Host)
	}
	go c.updater()
	return c, nil
}

// Now returns a best-effort representation of the absolute time.
// The returned time does not contain a monotonic clock reading
// and never goes backwards.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.absT0.Add(sinceT0(c.t0)).In(c.p.Location)
	// Try to make sure that the time increases monotonically.
	// This can't work across restarts, of course.
	if t.Before(c.prevTime) {
		return c.prevTime
	}
	c.prevTime = t
	return t
}

func (c *Clock) updater() {
	for {
		select {
		case <-c.closed:
			return
		case <-time.After(c.p.UpdateInterval):
		}
		if err := c.update(20 * time.Second); err != nil {
			logger.Warningf("cannot update time from NTP: %v", err)
		}
	}
}

func (c *Clock) update(timeout time.Duration) error {
	resp, err := ntpQuery(c.p.Host, ntp.QueryOptions{
		Timeout: timeout,
	})
	if err != nil {
		return errgo.Mask(err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t0 = time.Now()
	c.absT0 = c.t0.Add(resp.ClockOffset).Round(0)
	logger.Debugf("clock offset from %s is %v", c.p.Host, resp.ClockOffset)
	return nil
}

// Close stops the clock's background updates.
// It's OK to call Close more than once.
func (c *Clock) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)
	})
}
