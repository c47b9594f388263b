package analysis

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"nidwatch/internal/models"
)

// DefaultPCARows caps the number of rows fed to PCA.
const DefaultPCARows = 50000

// ErrTooFewFeatures is returned when a table has fewer than two usable
// numeric columns.
var ErrTooFewFeatures = errors.New("pca needs at least 2 numeric features")

// ErrTooFewRows is returned when fewer than two rows are available.
var ErrTooFewRows = errors.New("pca needs at least 2 rows")

// Point is one row projected onto the first two components.
type Point struct {
	PC1, PC2 float64
}

// Projection is the result of a two-component PCA.
type Projection struct {
	Features       []string
	Points         []Point
	ExplainedRatio [2]float64
	Sampled        bool // true when rows were stride-sampled
	TotalRows      int
}

// numericColumns returns the columns whose non-null cells are all int64
// or float64, skipping columns with no values at all.
func numericColumns(t *models.Table) []int {
	var out []int
	for idx := range t.Columns {
		seen, numeric := false, true
		for _, row := range t.Rows {
			switch v := row[idx].(type) {
			case nil:
			case int64:
				seen = true
			case float64:
				if !math.IsNaN(v) {
					seen = true
				}
			default:
				numeric = false
			}
			if !numeric {
				break
			}
		}
		if numeric && seen {
			out = append(out, idx)
		}
	}
	return out
}

// PCA projects the numeric columns of t onto two principal components.
// Nulls are treated as zero. Tables larger than maxRows are sampled at a
// fixed stride; maxRows <= 0 selects DefaultPCARows.
func PCA(t *models.Table, maxRows int) (*Projection, error) {
	if maxRows <= 0 {
		maxRows = DefaultPCARows
	}
	cols := numericColumns(t)
	if len(cols) < 2 {
		return nil, fmt.Errorf("%w: found %d", ErrTooFewFeatures, len(cols))
	}
	n := t.Len()
	if n < 2 {
		return nil, fmt.Errorf("%w: found %d", ErrTooFewRows, n)
	}

	stride := 1
	if n > maxRows {
		stride = (n + maxRows - 1) / maxRows
	}
	rows := (n + stride - 1) / stride

	data := mat.NewDense(rows, len(cols), nil)
	for r := 0; r < rows; r++ {
		src := t.Rows[r*stride]
		for c, idx := range cols {
			if f, ok := models.Float(src[idx]); ok {
				data.Set(r, c, f)
			}
		}
	}

	var pc stat.PC
	if ok := pc.PrincipalComponents(data, nil); !ok {
		return nil, errors.New("pca: decomposition failed")
	}
	var vecs mat.Dense
	pc.VectorsTo(&vecs)
	vars := pc.VarsTo(nil)

	// Center before projecting.
	for c := 0; c < len(cols); c++ {
		mean := stat.Mean(mat.Col(nil, c, data), nil)
		for r := 0; r < rows; r++ {
			data.Set(r, c, data.At(r, c)-mean)
		}
	}
	var proj mat.Dense
	proj.Mul(data, vecs.Slice(0, len(cols), 0, 2))

	p := &Projection{
		Points:    make([]Point, rows),
		Sampled:   stride > 1,
		TotalRows: n,
	}
	for _, idx := range cols {
		p.Features = append(p.Features, t.Columns[idx])
	}
	for r := 0; r < rows; r++ {
		p.Points[r] = Point{PC1: proj.At(r, 0), PC2: proj.At(r, 1)}
	}
	var total float64
	for _, v := range vars {
		total += v
	}
	if total > 0 {
		p.ExplainedRatio[0] = vars[0] / total
		if len(vars) > 1 {
			p.ExplainedRatio[1] = vars[1] / total
		}
	}
	return p, nil
}
