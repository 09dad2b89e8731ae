package notifier

import (
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestWatcher(t *testing.T) {
	c := qt.New(t)

	// blocking on the channel forces the scheduler to let the other goroutine
	// run for a bit, so we get predictable results.  This is not necessary for
	// normal use of the watcher.
	ch := make(chan bool)

	var v Value
	go func() {
		for i := 0; i < 3; i++ {
			v.Set(i)
			ch <- true
		}
		v.Close()
	}()

	w := v.Watch()
	c.Assert(w.Next(), qt.IsTrue)
	c.Assert(w.Value(), qt.Equals, 0)
	<-ch

	c.Assert(w.Next(), qt.IsTrue)
	c.Assert(w.Value(), qt.Equals, 1)
	<-ch

	c.Assert(w.Next(), qt.IsTrue)
	c.Assert(w.Value(), qt.Equals, 2)
	<-ch

	c.Assert(w.Next(), qt.IsFalse)
}

func TestDoubleSet(t *testing.T) {
	c := qt.New(t)

	ch := make(chan bool)
	var v Value
	go func() {
		v.Set("a")
		ch <- true
		v.Set("b")
		v.Set("c")
		ch <- true
		v.Close()
		ch <- true
	}()

	w := v.Watch()
	c.Assert(w.Next(), qt.IsTrue)
	c.Assert(w.Value(), qt.Equals, "a")
	<-ch
	<-ch

	// Since we did two sets before sending on the channel,
	// we should just get "c" here and not get "b".
	c.Assert(w.Next(), qt.IsTrue)
	c.Assert(w.Value(), qt.Equals, "c")
	<-ch
	c.Assert(w.Next(), qt.IsFalse)
}

func TestTwoReceivers(t *testing.T) {
	c := qt.New(t)

	ch := make(chan bool)
	var v Value

	watcher := func() {
		w := v.Watch()
		x := 0
		for w.Next() {
			c.Check(w.Value(), qt.Equals, x)
			x++
			<-ch
		}
		c.Check(x, qt.Equals, 3)
		<-ch
	}

	go watcher()
	go watcher()

	for i := 0; i < 3; i++ {
		v.Set(i)
		ch <- true
		ch <- true
	}

	v.Close()
	ch <- true
	ch <- true
}

func TestCloseWatcher(t *testing.T) {
	c := qt.New(t)

	ch := make(chan bool)
	var v Value
	w := v.Watch()
	go func() {
		x := 0
		for w.Next() {
			c.Check(w.Value(), qt.Equals, x+1)
			x++
			<-ch
		}
		// the value will only get set once before the watcher is closed
		c.Check(x, qt.Equals, 1)
		<-ch
	}()

	v.Set(1)
	ch <- true
	w.Close()
	ch <- true

	// prove the value is not closed, even though the watcher is
	c.Assert(v.Closed(), qt.IsFalse)
}

func TestWatchZeroValue(t *testing.T) {
	c := qt.New(t)
	var v Value
	ch := make(chan bool)
	go func() {
		w := v.Watch()
		ch <- true
		ch <- w.Next()
	}()
	<-ch
	v.Set(nil)
	c.Assert(<-ch, qt.IsTrue)
}

func TestGet(t *testing.T) {
	c := qt.New(t)
	var v Value
	x, ok := v.Get()
	c.Assert(ok, qt.IsFalse)
	c.Assert(x, qt.IsNil)
	v.Set("hello")
	x, ok = v.Get()
	c.Assert(ok, qt.IsTrue)
	c.Assert(x, qt.Equals, "hello")
}

func TestWatchAfterSet(t *testing.T) {
	c := qt.New(t)
	var v Value
	v.Set(42)
	w := v.Watch()
	// A new watcher sees the current value immediately.
	c.Assert(w.Next(), qt.IsTrue)
	c.Assert(w.Value(), qt.Equals, 42)
}
