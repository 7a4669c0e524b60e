// Package dataset reads and writes the files of the regression engine: labeled training
// data in sparse index:value form, binary model files and prediction files.
package dataset

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ErrMalformedToken is returned when a feature token is not a valid index:value pair.
var ErrMalformedToken = errors.New("dataset: malformed token")

// Dataset is a dense feature matrix with one label per row. Labels are +1 or -1.
type Dataset struct {
	X [][]float64
	Y []float64
}

// Rows returns the number of examples.
func (d *Dataset) Rows() int {
	return len(d.X)
}

// Features returns the width of the feature rows.
func (d *Dataset) Features() int {
	if len(d.X) == 0 {
		return 0
	}
	return len(d.X[0])
}

// Parse reads training data from r.
//
// Each non-blank line holds a label followed by sparse index:value features with
// 1-based, strictly increasing indices. A label equal to 1 maps to +1, anything else to
// -1. Rows are zero-padded to the widest row.
func Parse(r io.Reader) (*Dataset, error) {
	d := &Dataset{}
	width := 0

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	for line := 1; scanner.Scan(); line++ {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		label := -1.0
		if v, err := strconv.ParseFloat(fields[0], 64); err == nil && v == 1 {
			label = 1
		}

		row := []float64{}
		last := 0
		for _, token := range fields[1:] {
			index, value, err := parseToken(token)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			if index <= last {
				return nil, fmt.Errorf("line %d: %w: index %d after %d in %q", line, ErrMalformedToken, index, last, token)
			}
			for j := last + 1; j < index; j++ {
				row = append(row, 0)
			}
			row = append(row, value)
			last = index
		}

		width = max(width, len(row))
		d.X = append(d.X, row)
		d.Y = append(d.Y, label)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read data: %w", err)
	}

	for i, row := range d.X {
		for len(row) < width {
			row = append(row, 0)
		}
		d.X[i] = row
	}

	return d, nil
}

func parseToken(token string) (int, float64, error) {
	idx, val, ok := strings.Cut(token, ":")
	if !ok || strings.Contains(val, ":") {
		return 0, 0, fmt.Errorf("%w: %q", ErrMalformedToken, token)
	}

	index, err := strconv.Atoi(idx)
	if err != nil || index < 1 {
		return 0, 0, fmt.Errorf("%w: bad index in %q", ErrMalformedToken, token)
	}

	value, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: bad value in %q", ErrMalformedToken, token)
	}

	return index, value, nil
}

// ParseFile reads training data from the file at path.
func ParseFile(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	d, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return d, nil
}
