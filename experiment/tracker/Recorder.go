package tracker

import (
	"bytes"
	"encoding/csv"
	"encoding/gob"
	"fmt"
	"io"
	"os"
	"strconv"
)

// Recorder is a Sink which keeps every recorded value in memory. Values
// are stored as append-only series, one per metric name, in the order
// they were recorded.
type Recorder struct {
	names  []string
	series map[string][]float64
}

// NewRecorder returns a new, empty Recorder
func NewRecorder() *Recorder {
	return &Recorder{series: make(map[string][]float64)}
}

// Record implements the Sink interface
func (r *Recorder) Record(name string, value float64) {
	if _, ok := r.series[name]; !ok {
		r.names = append(r.names, name)
	}
	r.series[name] = append(r.series[name], value)
}

// Names returns the names of all recorded metrics in the order in which
// each was first recorded
func (r *Recorder) Names() []string {
	return append([]string{}, r.names...)
}

// Series returns a copy of the values recorded for a metric
func (r *Recorder) Series(name string) []float64 {
	return append([]float64{}, r.series[name]...)
}

// WriteCSV writes all recorded values to w as CSV with the header
// metric,step,value. The step of a value is its index in the metric's
// series.
func (r *Recorder) WriteCSV(w io.Writer) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"metric", "step", "value"}); err != nil {
		return fmt.Errorf("writecsv: %w", err)
	}

	for _, name := range r.names {
		for step, value := range r.series[name] {
			record := []string{
				name,
				strconv.Itoa(step),
				strconv.FormatFloat(value, 'g', -1, 64),
			}
			if err := writer.Write(record); err != nil {
				return fmt.Errorf("writecsv: %w", err)
			}
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("writecsv: %w", err)
	}
	return nil
}

// ReadCSV reads values written by WriteCSV into a new Recorder
func ReadCSV(r io.Reader) (*Recorder, error) {
	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("readcsv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("readcsv: missing header")
	}

	recorder := NewRecorder()
	for i, record := range records[1:] {
		if len(record) != 3 {
			return nil, fmt.Errorf("readcsv: line %v: expected 3 fields but "+
				"got %v", i+2, len(record))
		}
		value, err := strconv.ParseFloat(record[2], 64)
		if err != nil {
			return nil, fmt.Errorf("readcsv: line %v: %w", i+2, err)
		}
		recorder.Record(record[0], value)
	}
	return recorder, nil
}

// SaveCSV writes all recorded values to a CSV file, see WriteCSV
func (r *Recorder) SaveCSV(filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("savecsv: could not create file: %w", err)
	}

	if err := r.WriteCSV(file); err != nil {
		file.Close()
		return fmt.Errorf("savecsv: %w", err)
	}
	return file.Close()
}

// recorderData is the gob representation of a Recorder
type recorderData struct {
	Names  []string
	Series map[string][]float64
}

// GobEncode implements the gob.GobEncoder interface
func (r *Recorder) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	data := recorderData{Names: r.names, Series: r.series}
	if err := gob.NewEncoder(&buf).Encode(data); err != nil {
		return nil, fmt.Errorf("gobencode: %w", err)
	}
	return buf.Bytes(), nil
}

// GobDecode implements the gob.GobDecoder interface
func (r *Recorder) GobDecode(in []byte) error {
	var data recorderData
	if err := gob.NewDecoder(bytes.NewReader(in)).Decode(&data); err != nil {
		return fmt.Errorf("gobdecode: %w", err)
	}

	r.names = data.Names
	r.series = data.Series
	if r.series == nil {
		r.series = make(map[string][]float64)
	}
	return nil
}

// Save saves the Recorder to a gob file
func (r *Recorder) Save(filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("save: could not create file: %w", err)
	}

	if err := gob.NewEncoder(file).Encode(r); err != nil {
		file.Close()
		return fmt.Errorf("save: could not encode recorder: %w", err)
	}
	return file.Close()
}

// Load loads a Recorder saved with Save
func Load(filename string) (*Recorder, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("load: could not open file: %w", err)
	}
	defer file.Close()

	r := NewRecorder()
	if err := gob.NewDecoder(file).Decode(r); err != nil {
		return nil, fmt.Errorf("load: could not decode recorder: %w", err)
	}
	return r, nil
}
