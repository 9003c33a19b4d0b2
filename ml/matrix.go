package ml

import (
	"fmt"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Stride is the alignment unit of every physical dimension.
const Stride = 8

// roundup rounds n up to the next multiple of Stride.
func roundup(n int) int {
	return (n + Stride - 1) &^ (Stride - 1)
}

func checkIndex(i, n int) {
	if i < 0 || i >= n {
		panic(errors.Errorf("index %d out of range [0,%d)", i, n))
	}
}

// -------- VECTOR -------- //

// Vector is a padded vector. Slot Len() is the bias slot and is always
// allocated; everything past it is padding and stays zero.
type Vector struct {
	size        int
	storageSize int
	v           []float64
}

func NewVector(size int) *Vector {
	if size < 0 {
		panic(errors.Errorf("negative vector size %d", size))
	}
	storage := roundup(size + 1)
	return &Vector{
		size:        size,
		storageSize: storage,
		v:           make([]float64, storage),
	}
}

// Len returns the logical length.
func (v *Vector) Len() int { return v.size }

// StorageSize returns the physical, padded length.
func (v *Vector) StorageSize() int { return v.storageSize }

func (v *Vector) At(i int) float64 {
	checkIndex(i, v.size)
	return v.v[i]
}

func (v *Vector) Set(i int, x float64) {
	checkIndex(i, v.size)
	v.v[i] = x
}

// Slice returns the logical elements, aliasing the storage.
func (v *Vector) Slice() []float64 { return v.v[:v.size:v.size] }

// Data returns the whole padded storage, bias slot and padding included.
// Callers must keep the padding zero.
func (v *Vector) Data() []float64 { return v.v }

// CopyFrom copies src into the logical range.
func (v *Vector) CopyFrom(src []float64) {
	if len(src) != v.size {
		mismatch("copy of %d values into vector of size %d", len(src), v.size)
	}
	copy(v.v, src)
}

// Zero clears the logical range. The bias slot is left alone.
func (v *Vector) Zero() {
	clear(v.v[:v.size])
}

// NormL1 sums absolute values over the logical range. The bias slot is
// not included.
func (v *Vector) NormL1() float64 {
	return floats.Norm(v.v[:v.size], 1)
}

func (v *Vector) String() string {
	return fmt.Sprint(v.v[:v.size])
}

// bias returns the reserved slot at index Len().
func (v *Vector) bias() float64 { return v.v[v.size] }

func (v *Vector) setBias(x float64) { v.v[v.size] = x }

// paddingClean reports whether every element past the bias slot is zero.
func (v *Vector) paddingClean() bool {
	for _, x := range v.v[v.size+1:] {
		if x != 0 {
			return false
		}
	}
	return true
}

// -------- THIN VECTOR -------- //

// ThinVector is a non-owning view of one matrix row.
type ThinVector struct {
	v           []float64
	size        int
	storageSize int
}

func (t ThinVector) Len() int { return t.size }

func (t ThinVector) StorageSize() int { return t.storageSize }

func (t ThinVector) At(j int) float64 {
	checkIndex(j, t.size)
	return t.v[j]
}

func (t ThinVector) Set(j int, x float64) {
	checkIndex(j, t.size)
	t.v[j] = x
}

// Slice returns the logical row elements, aliasing the matrix.
func (t ThinVector) Slice() []float64 { return t.v[:t.size:t.size] }

func (t ThinVector) NormL1() float64 {
	return floats.Norm(t.v[:t.size], 1)
}

// -------- MATRIX -------- //

// Matrix is a row-major padded matrix. Both physical dimensions are
// multiples of Stride and the padding of every row stays zero.
type Matrix struct {
	height, width               int
	storageHeight, storageWidth int
	v                           []float64
}

func NewMatrix(height, width int) *Matrix {
	if height < 0 || width < 0 {
		panic(errors.Errorf("negative matrix shape %dx%d", height, width))
	}
	sh, sw := roundup(height), roundup(width)
	return &Matrix{
		height:        height,
		width:         width,
		storageHeight: sh,
		storageWidth:  sw,
		v:             make([]float64, sh*sw),
	}
}

func (m *Matrix) Height() int { return m.height }

func (m *Matrix) Width() int { return m.width }

func (m *Matrix) StorageHeight() int { return m.storageHeight }

func (m *Matrix) StorageWidth() int { return m.storageWidth }

func (m *Matrix) At(i, j int) float64 {
	checkIndex(i, m.height)
	checkIndex(j, m.width)
	return m.v[i*m.storageWidth+j]
}

func (m *Matrix) Set(i, j int, x float64) {
	checkIndex(i, m.height)
	checkIndex(j, m.width)
	m.v[i*m.storageWidth+j] = x
}

// Row returns a view of row i with stride StorageWidth.
func (m *Matrix) Row(i int) ThinVector {
	checkIndex(i, m.height)
	off := i * m.storageWidth
	return ThinVector{
		v:           m.v[off : off+m.storageWidth],
		size:        m.width,
		storageSize: m.storageWidth,
	}
}

// row returns the full padded storage of row i.
func (m *Matrix) row(i int) []float64 {
	off := i * m.storageWidth
	return m.v[off : off+m.storageWidth]
}

// Data returns the padded storage. Callers must keep the padding zero.
func (m *Matrix) Data() []float64 { return m.v }

// Fill sets every logical element to fn(i, j).
func (m *Matrix) Fill(fn func(i, j int) float64) {
	for i := 0; i < m.height; i++ {
		row := m.row(i)
		for j := 0; j < m.width; j++ {
			row[j] = fn(i, j)
		}
	}
}

func (m *Matrix) Reset() {
	clear(m.v)
}

// NormL1 sums absolute values over the logical region.
func (m *Matrix) NormL1() float64 {
	var sum float64
	for i := 0; i < m.height; i++ {
		sum += floats.Norm(m.row(i)[:m.width], 1)
	}
	return sum
}

// Dense returns a gonum view of the logical region sharing the storage.
func (m *Matrix) Dense() *mat.Dense {
	if m.height == 0 || m.width == 0 {
		return &mat.Dense{}
	}
	full := mat.NewDense(m.storageHeight, m.storageWidth, m.v)
	return full.Slice(0, m.height, 0, m.width).(*mat.Dense)
}

func (m *Matrix) String() string {
	if m.height == 0 || m.width == 0 {
		return "[]"
	}
	return fmt.Sprintf("%v", mat.Formatted(m.Dense(), mat.Squeeze()))
}

// paddingClean reports whether every element outside the logical region is zero.
func (m *Matrix) paddingClean() bool {
	for i := 0; i < m.storageHeight; i++ {
		row := m.row(i)
		start := m.width
		if i >= m.height {
			start = 0
		}
		for _, x := range row[start:] {
			if x != 0 {
				return false
			}
		}
	}
	return true
}
