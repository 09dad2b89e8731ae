package recordfile

import (
	"bufio"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/errgo.v1"

	"github.com/rogpeppe/accellog/accel"
)

// WriteSnapshot replaces the contents of the file at path with a
// header row followed by the given records. The new contents are
// written to a temporary file which is then renamed over the old
// one, so a reader never sees a partially written snapshot.
func WriteSnapshot(path string, records []accel.Record, loc *time.Location) (err error) {
	f, err := os.CreateTemp(filepath.Dir(path), ".snapshot")
	if err != nil {
		return errgo.Notef(err, "cannot create temp file")
	}
	defer func() {
		f.Close()
		if err != nil {
			os.Remove(f.Name())
		}
	}()
	bufw := bufio.NewWriter(f)
	if err := accel.WriteRecords(bufw, records, loc); err != nil {
		return errgo.Notef(err, "cannot write records")
	}
	if err := bufw.Flush(); err != nil {
		return errgo.Notef(err, "cannot write records")
	}
	if err := f.Chmod(0666); err != nil {
		return errgo.Notef(err, "cannot set snapshot permissions")
	}
	if err := f.Close(); err != nil {
		return errgo.Notef(err, "cannot close output file")
	}
	if err := os.Rename(f.Name(), path); err != nil {
		return errgo.Notef(err, "cannot rename temp file")
	}
	return nil
}

// Snapshot exports batches to a fixed snapshot file.
type Snapshot struct {
	// Path holds the path of the snapshot file.
	Path string
	// Location holds the time zone used for timestamps.
	// If it's nil, UTC is used.
	Location *time.Location
}

// Reset replaces the snapshot with one holding no records.
func (s Snapshot) Reset() error {
	return s.write(nil)
}

// Export replaces the snapshot with the records in the given batch.
func (s Snapshot) Export(b accel.Batch) error {
	if err := s.write(b.Records); err != nil {
		return err
	}
	logger.Infof("batch %s saved to %s", b.ID, s.Path)
	return nil
}

func (s Snapshot) write(records []accel.Record) error {
	if err := WriteSnapshot(s.Path, records, s.Location); err != nil {
		return errgo.Notef(err, "cannot write snapshot %q", s.Path)
	}
	return nil
}

// Read reads all the records currently in the snapshot.
func (s Snapshot) Read() ([]accel.Record, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, errgo.Mask(err, os.IsNotExist)
	}
	defer f.Close()
	rs, err := accel.ReadAllRecords(accel.NewRecordReader(f, s.Location))
	if err != nil {
		return nil, errgo.Notef(err, "cannot read snapshot %q", s.Path)
	}
	return rs, nil
}
