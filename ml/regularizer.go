package ml

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"
)

// RegularizerKind tags the active per-weight update policy.
type RegularizerKind int

const (
	RegIdentity RegularizerKind = iota
	RegDropout
	RegDilution
)

func (k RegularizerKind) String() string {
	switch k {
	case RegDropout:
		return "dropout"
	case RegDilution:
		return "dilution"
	default:
		return "identity"
	}
}

// Regularizer yields the multiplier applied to the update of weight (row, col).
type Regularizer interface {
	Kind() RegularizerKind
	Multiplier(row, col int) float64
}

// ColumnRegularizer draws one multiplier per column, shared by every row.
// Updates masked by it are applied column by column.
type ColumnRegularizer interface {
	Regularizer
	ColumnMultiplier(col int) float64
}

// Identity never masks an update.
type Identity struct{}

func (Identity) Kind() RegularizerKind { return RegIdentity }

func (Identity) Multiplier(int, int) float64 { return 1 }

// Dropout keeps a whole column of updates with probability P.
type Dropout struct {
	keep distuv.Bernoulli
}

func NewDropout(p float64, src rand.Source) *Dropout {
	return &Dropout{keep: distuv.Bernoulli{P: p, Src: src}}
}

func (*Dropout) Kind() RegularizerKind { return RegDropout }

func (d *Dropout) ColumnMultiplier(int) float64 { return d.keep.Rand() }

// Multiplier draws afresh on every call. Update loops use ColumnMultiplier
// once per column instead.
func (d *Dropout) Multiplier(_, col int) float64 { return d.ColumnMultiplier(col) }

// Dilution keeps each individual weight update with probability P.
type Dilution struct {
	keep distuv.Bernoulli
}

func NewDilution(p float64, src rand.Source) *Dilution {
	return &Dilution{keep: distuv.Bernoulli{P: p, Src: src}}
}

func (*Dilution) Kind() RegularizerKind { return RegDilution }

func (d *Dilution) Multiplier(int, int) float64 { return d.keep.Rand() }

// selectRegularizer picks the policy for the given settings. Dropout wins
// when both are configured.
func selectRegularizer(dropout, dilution float64, src rand.Source) Regularizer {
	switch {
	case dropout != 1:
		return NewDropout(dropout, src)
	case dilution != 1:
		return NewDilution(dilution, src)
	default:
		return Identity{}
	}
}

// addOuter adds scale * a[i] * b[j] * multiplier(i, j) to dst over its
// logical region. b must cover dst.Width() elements.
func addOuter(dst *Matrix, a, b []float64, scale float64, reg Regularizer) {
	height, width := dst.height, dst.width
	switch r := reg.(type) {
	case Identity:
		for i := 0; i < height; i++ {
			if s := scale * a[i]; s != 0 {
				floats.AddScaled(dst.row(i)[:width], s, b[:width])
			}
		}
	case ColumnRegularizer:
		sw := dst.storageWidth
		for j := 0; j < width; j++ {
			if r.ColumnMultiplier(j) == 0 {
				continue
			}
			bj := scale * b[j]
			for i, ij := 0, j; i < height; i, ij = i+1, ij+sw {
				dst.v[ij] += a[i] * bj
			}
		}
	default:
		for i := 0; i < height; i++ {
			row := dst.row(i)
			ai := scale * a[i]
			for j := 0; j < width; j++ {
				row[j] += ai * b[j] * r.Multiplier(i, j)
			}
		}
	}
}

// addMasked adds src to dst element-wise, masked by reg.
func addMasked(dst, src *Matrix, reg Regularizer) {
	height, width, sw := dst.height, dst.width, dst.storageWidth
	switch r := reg.(type) {
	case Identity:
		floats.Add(dst.v, src.v)
	case ColumnRegularizer:
		for j := 0; j < width; j++ {
			if r.ColumnMultiplier(j) == 0 {
				continue
			}
			for ij := j; ij < height*sw; ij += sw {
				dst.v[ij] += src.v[ij]
			}
		}
	default:
		for i := 0; i < height; i++ {
			drow, srow := dst.row(i), src.row(i)
			for j := 0; j < width; j++ {
				drow[j] += srow[j] * r.Multiplier(i, j)
			}
		}
	}
}
