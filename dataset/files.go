package dataset

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// ErrMalformedModel is returned when a model file cannot be decoded.
var ErrMalformedModel = errors.New("dataset: malformed model file")

// DebugSuffix is appended to the model path for its human-readable companion.
const DebugSuffix = ".debug.txt"

// WriteModel writes beta as a little-endian u64 length followed by the f64 weights, and
// the weights one per line to path + DebugSuffix.
func WriteModel(path string, beta []float64) error {
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, uint64(len(beta))); err != nil {
		return err
	}
	if len(beta) > 0 {
		if err := binary.Write(buf, binary.LittleEndian, beta); err != nil {
			return err
		}
	}

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write model: %w", err)
	}

	if err := writeFloats(path+DebugSuffix, beta); err != nil {
		return fmt.Errorf("write model: %w", err)
	}

	return nil
}

// ReadModel reads a model file written by WriteModel.
func ReadModel(path string) ([]float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model: %w", err)
	}
	return DecodeModel(data)
}

// DecodeModel decodes the binary model encoding.
func DecodeModel(data []byte) ([]float64, error) {
	r := bytes.NewReader(data)

	var n uint64
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedModel, err)
	}
	if n != uint64(r.Len())/8 || r.Len()%8 != 0 {
		return nil, fmt.Errorf("%w: length %d does not match %d payload bytes", ErrMalformedModel, n, r.Len())
	}

	beta := make([]float64, n)
	if n == 0 {
		return beta, nil
	}
	if err := binary.Read(r, binary.LittleEndian, beta); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedModel, err)
	}

	return beta, nil
}

// WritePredictions writes one prediction per line.
func WritePredictions(path string, predictions []float64) error {
	if err := writeFloats(path, predictions); err != nil {
		return fmt.Errorf("write predictions: %w", err)
	}
	return nil
}

// ReadPredictions reads a file of one float per line. Blank lines are skipped.
func ReadPredictions(path string) ([]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read predictions: %w", err)
	}
	defer f.Close()

	values, err := readFloats(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return values, nil
}

func writeFloats(path string, values []float64) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	w := bufio.NewWriter(f)
	for _, v := range values {
		w.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
		w.WriteByte('\n')
	}

	if err = w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func readFloats(r io.Reader) ([]float64, error) {
	var values []float64

	scanner := bufio.NewScanner(r)
	for line := 1; scanner.Scan(); line++ {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		v, err := strconv.ParseFloat(text, 64)
		if err != nil || math.IsNaN(v) {
			return nil, fmt.Errorf("line %d: %w: %q", line, ErrMalformedToken, text)
		}
		values = append(values, v)
	}

	return values, scanner.Err()
}
