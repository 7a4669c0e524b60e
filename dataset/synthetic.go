package dataset

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"
)

// ClusterOffset is the distance of each cluster center from the origin along every
// feature axis.
const ClusterOffset = 1.5

// Synthetic returns n rows of d features drawn from two unit-variance Gaussian clusters
// centered at ±ClusterOffset on every axis. The label is the sign of the cluster. The
// same seed yields the same dataset.
func Synthetic(n, d int, seed uint64) *Dataset {
	src := rand.NewSource(seed)
	coin := distuv.Bernoulli{P: 0.5, Src: src}
	noise := distuv.Normal{Mu: 0, Sigma: 1, Src: src}

	ds := &Dataset{X: make([][]float64, n), Y: make([]float64, n)}
	for i := 0; i < n; i++ {
		label := 2*coin.Rand() - 1

		row := make([]float64, d)
		for j := range row {
			row[j] = noise.Rand()
		}
		floats.AddConst(label*ClusterOffset, row)

		ds.X[i] = row
		ds.Y[i] = label
	}

	return ds
}

// Format writes d in the sparse index:value form read by Parse. Zero features are
// omitted.
func (d *Dataset) Format() string {
	var sb strings.Builder
	for i, row := range d.X {
		if d.Y[i] == 1 {
			sb.WriteString("+1")
		} else {
			sb.WriteString("-1")
		}
		for j, v := range row {
			if v == 0 {
				continue
			}
			fmt.Fprintf(&sb, " %d:%s", j+1, strconv.FormatFloat(v, 'g', -1, 64))
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
