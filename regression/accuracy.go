package regression

import (
	"fmt"

	"github.com/z3rotig4r/tfhe_logreg/dataset"
)

// Accuracy returns the share of predictions equal to their label.
func Accuracy(predictions, labels []float64) (float64, error) {
	if len(predictions) != len(labels) {
		return 0, fmt.Errorf("%w: %d predictions and %d labels", ErrLengthMismatch, len(predictions), len(labels))
	}
	if len(labels) == 0 {
		return 0, fmt.Errorf("accuracy: %w", ErrEmpty)
	}

	correct := 0
	for i, p := range predictions {
		if p == labels[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(labels)), nil
}

// AccuracyFiles compares a prediction file against the labels of a data file and returns
// the accuracy together with the number of records.
func AccuracyFiles(predictionFile, dataFile string) (float64, int, error) {
	predictions, err := dataset.ReadPredictions(predictionFile)
	if err != nil {
		return 0, 0, err
	}

	data, err := dataset.ParseFile(dataFile)
	if err != nil {
		return 0, 0, err
	}

	acc, err := Accuracy(predictions, data.Y)
	if err != nil {
		return 0, 0, err
	}
	return acc, len(data.Y), nil
}
