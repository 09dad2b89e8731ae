// Package recordfile implements the files that accelerometer records
// are stored in: an append-only log holding every record ever
// assembled, and a snapshot file holding only the most recent batch.
package recordfile

import (
	"bytes"
	"encoding/csv"
	"os"
	"time"

	"github.com/juju/loggo"
	"gopkg.in/errgo.v1"

	"github.com/rogpeppe/accellog/accel"
)

var logger = loggo.GetLogger("accellog.recordfile")

// LogWriter appends records to a CSV log file.
// The file is never truncated: records from earlier
// runs are preserved.
type LogWriter struct {
	path  string
	f     *os.File
	loc   *time.Location
	buf   bytes.Buffer
	csv   *csv.Writer
	count int
}

// OpenLog opens the log file at the given path for appending, creating
// it if it does not exist. If the file is empty, a header row is written.
// Timestamps are written in the given location, or UTC if loc is nil.
func OpenLog(path string, loc *time.Location) (*LogWriter, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND|os.O_SYNC, 0666)
	if err != nil {
		return nil, errgo.Notef(err, "cannot open log file")
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errgo.Notef(err, "cannot stat log file")
	}
	if loc == nil {
		loc = time.UTC
	}
	w := &LogWriter{
		path: path,
		f:    f,
		loc:  loc,
	}
	w.csv = csv.NewWriter(&w.buf)
	if info.Size() == 0 {
		if err := accel.WriteHeader(w.csv); err != nil {
			f.Close()
			return nil, errgo.Mask(err)
		}
		if err := w.flush(); err != nil {
			f.Close()
			return nil, errgo.Notef(err, "cannot write log header")
		}
	}
	logger.Debugf("opened log file %q (%d bytes)", path, info.Size())
	return w, nil
}

// Append writes r to the end of the log. The record is on disk by
// the time Append returns.
func (w *LogWriter) Append(r accel.Record) error {
	if w.f == nil {
		return errgo.Newf("append to closed log %q", w.path)
	}
	if err := accel.WriteRecord(w.csv, r, w.loc); err != nil {
		return errgo.Mask(err)
	}
	if err := w.flush(); err != nil {
		return errgo.Notef(err, "cannot write record to %q", w.path)
	}
	w.count++
	return nil
}

// flush writes any buffered CSV data to the file as a single write.
func (w *LogWriter) flush() error {
	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		return err
	}
	data := w.buf.Bytes()
	defer w.buf.Reset()
	if n, err := w.f.Write(data); err != nil {
		if n > 0 {
			logger.Warningf("log file %q partially written (%d/%d bytes)", w.path, n, len(data))
		}
		return err
	}
	return nil
}

// Count returns the number of records appended since the log was opened.
func (w *LogWriter) Count() int {
	return w.count
}

// Path returns the path of the log file.
func (w *LogWriter) Path() string {
	return w.path
}

// Close closes the log file.
func (w *LogWriter) Close() error {
	if w.f == nil {
		return nil
	}
	err := w.f.Close()
	w.f = nil
	return errgo.Mask(err)
}
