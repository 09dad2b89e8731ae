package accel

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"
)

// TimeFormat is the layout used for record timestamps in CSV files.
const TimeFormat = "2006-01-02 15:04:05"

// CSVHeader holds the header row of the log and snapshot files.
var CSVHeader = []string{"Timestamp", "x", "y", "z"}

// RecordReader represents a source of records.
type RecordReader interface {
	// ReadRecord returns the next record in the stream.
	// It returns io.EOF at the end of the available records.
	ReadRecord() (Record, error)
}

// WriteHeader writes the CSV header row to w.
func WriteHeader(w *csv.Writer) error {
	return w.Write(CSVHeader)
}

// WriteRecord writes a single record to w as a CSV row. The timestamp
// is formatted in the given location, or UTC if loc is nil.
// It does not flush w.
func WriteRecord(w *csv.Writer, r Record, loc *time.Location) error {
	if loc == nil {
		loc = time.UTC
	}
	fields := make([]string, 0, 1+NumAxes)
	fields = append(fields, r.Time.In(loc).Format(TimeFormat))
	for a := X; a < NumAxes; a++ {
		fields = append(fields, formatValue(r.Value(a)))
	}
	return w.Write(fields)
}

// WriteRecords writes a header row followed by all the given
// records to w and flushes it.
func WriteRecords(w io.Writer, rs []Record, loc *time.Location) error {
	cw := csv.NewWriter(w)
	if err := WriteHeader(cw); err != nil {
		return err
	}
	for _, r := range rs {
		if err := WriteRecord(cw, r, loc); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatValue(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// NewRecordReader returns a RecordReader that reads records in the
// format written by WriteRecord. A header row, if present, is skipped.
// Timestamps are interpreted in the given location, or UTC if loc is nil.
func NewRecordReader(r io.Reader, loc *time.Location) RecordReader {
	if loc == nil {
		loc = time.UTC
	}
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(CSVHeader)
	return &csvRecordReader{
		r:   cr,
		loc: loc,
	}
}

type csvRecordReader struct {
	r    *csv.Reader
	loc  *time.Location
	line int
}

func (r *csvRecordReader) ReadRecord() (Record, error) {
	for {
		fields, err := r.r.Read()
		if err != nil {
			return Record{}, err
		}
		r.line++
		if r.line == 1 && fields[0] == CSVHeader[0] {
			continue
		}
		return r.parse(fields)
	}
}

func (r *csvRecordReader) parse(fields []string) (Record, error) {
	t, err := time.ParseInLocation(TimeFormat, fields[0], r.loc)
	if err != nil {
		return Record{}, fmt.Errorf("invalid timestamp %q on line %d", fields[0], r.line)
	}
	var vals [NumAxes]float64
	for i := range vals {
		f, err := strconv.ParseFloat(fields[i+1], 64)
		if err != nil {
			return Record{}, fmt.Errorf("invalid %v value %q on line %d", Axis(i), fields[i+1], r.line)
		}
		vals[i] = f
	}
	return Record{
		Time: t,
		X:    vals[X],
		Y:    vals[Y],
		Z:    vals[Z],
	}, nil
}

// ReadAllRecords reads all the records from r.
func ReadAllRecords(r RecordReader) ([]Record, error) {
	var rs []Record
	for {
		rec, err := r.ReadRecord()
		if err == io.EOF {
			return rs, nil
		}
		if err != nil {
			return nil, err
		}
		rs = append(rs, rec)
	}
}
