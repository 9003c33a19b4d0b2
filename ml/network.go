package ml

import (
	"math/rand/v2"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"
)

// Network is an ordered chain of layers. Layer k writes its activated output
// straight into the X of layer k+1, and the last layer writes into Output.
//
// A Network is not safe for concurrent use.
type Network struct {
	Layers []*Layer

	// last-layer feed-forward components
	Output      *Vector
	OutputError *Vector
	// training target
	Desired *Vector

	// DT is the learning rate used by BackPropagateDefault.
	DT float64

	// UseBatch > 0 accumulates updates into each layer's DW and flushes them
	// every UseBatch calls to BackPropagate.
	UseBatch          int
	BatchCounter      int
	TotalBatchCounter int

	// Keep probabilities in (0,1]; 1 disables.
	Dropout  float64
	Dilution float64

	rng *rand.Rand
}

// Option configures a Network at construction.
type Option func(*Network)

// WithSeed seeds the network's random source.
func WithSeed(seed uint64) Option {
	return func(nw *Network) {
		nw.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
}

// WithRand uses r for weight initialization and regularization draws.
func WithRand(r *rand.Rand) Option {
	return func(nw *Network) { nw.rng = r }
}

func WithLearningRate(dt float64) Option {
	return func(nw *Network) { nw.DT = dt }
}

// WithBatch enables batch accumulation flushed every n steps.
func WithBatch(n int) Option {
	return func(nw *Network) { nw.UseBatch = n }
}

func WithDropout(p float64) Option {
	return func(nw *Network) { nw.Dropout = p }
}

func WithDilution(p float64) Option {
	return func(nw *Network) { nw.Dilution = p }
}

// NewNetwork builds a network from at least two layer sizes. Weights are
// drawn uniformly from [-1, 1].
func NewNetwork(sizes []int, opts ...Option) (*Network, error) {
	if len(sizes) < 2 {
		return nil, errors.Wrapf(ErrConfig, "network needs at least 2 layer sizes, got %d", len(sizes))
	}
	for i, n := range sizes {
		if n < 1 {
			return nil, errors.Wrapf(ErrConfig, "layer size %d is %d, must be positive", i, n)
		}
	}

	nw := &Network{
		DT:       1,
		Dropout:  1,
		Dilution: 1,
	}
	for _, opt := range opts {
		opt(nw)
	}
	if nw.rng == nil {
		nw.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if err := nw.validate(); err != nil {
		return nil, err
	}

	uniform := distuv.Uniform{Min: -1, Max: 1, Src: nw.rng}
	for i := 1; i < len(sizes); i++ {
		layer := NewLayer(sizes[i-1], sizes[i])
		layer.W.Fill(func(int, int) float64 { return uniform.Rand() })
		nw.Layers = append(nw.Layers, layer)
	}

	last := sizes[len(sizes)-1]
	nw.Output = NewVector(last)
	nw.OutputError = NewVector(last)
	nw.Desired = NewVector(last)
	return nw, nil
}

func (nw *Network) validate() error {
	if nw.UseBatch < 0 {
		return errors.Wrapf(ErrConfig, "batch size %d is negative", nw.UseBatch)
	}
	if !(nw.Dropout > 0 && nw.Dropout <= 1) {
		return errors.Wrapf(ErrConfig, "dropout %v outside (0,1]", nw.Dropout)
	}
	if !(nw.Dilution > 0 && nw.Dilution <= 1) {
		return errors.Wrapf(ErrConfig, "dilution %v outside (0,1]", nw.Dilution)
	}
	return nil
}

// Input aliases the first layer's X.
func (nw *Network) Input() *Vector { return nw.Layers[0].X }

// InputError aliases the first layer's XErr.
func (nw *Network) InputError() *Vector { return nw.Layers[0].XErr }

// Rand returns the network's random source.
func (nw *Network) Rand() *rand.Rand { return nw.rng }

// Regularizer returns a fresh policy for the current Dropout and Dilution.
func (nw *Network) Regularizer() Regularizer {
	return selectRegularizer(nw.Dropout, nw.Dilution, nw.rng)
}

// y returns the vector layer k writes into.
func (nw *Network) y(k int) *Vector {
	if k == len(nw.Layers)-1 {
		return nw.Output
	}
	return nw.Layers[k+1].X
}

// yErr returns the error vector arriving at layer k's output.
func (nw *Network) yErr(k int) *Vector {
	if k == len(nw.Layers)-1 {
		return nw.OutputError
	}
	return nw.Layers[k+1].XErr
}

// FeedForward propagates Input through every layer into Output.
func (nw *Network) FeedForward() {
	for k, layer := range nw.Layers {
		w, x, net := layer.W, layer.X, layer.Net
		y := nw.y(k)

		if w.width != x.size+1 {
			mismatch("layer %d: weight width %d, input size %d", k, w.width, x.size)
		}
		if w.storageWidth != x.storageSize {
			mismatch("layer %d: weight stride %d, input storage %d", k, w.storageWidth, x.storageSize)
		}
		if net.size != w.height {
			mismatch("layer %d: net size %d, weight height %d", k, net.size, w.height)
		}
		if y.storageSize != net.storageSize {
			mismatch("layer %d: output storage %d, net storage %d", k, y.storageSize, net.storageSize)
		}

		// padding of w and x is zero, so the dot runs over the full stride
		for i := 0; i < w.height; i++ {
			n := floats.Dot(w.row(i), x.v)
			net.v[i] = n
			y.v[i] = layer.activation(n)
		}
	}
}

// CalcError sets OutputError = Desired - Output and returns half the sum of
// squared errors.
func (nw *Network) CalcError() float64 {
	if nw.Desired.size != nw.OutputError.size || nw.Output.size != nw.OutputError.size {
		mismatch("desired size %d, output size %d, output error size %d",
			nw.Desired.size, nw.Output.size, nw.OutputError.size)
	}
	n := nw.OutputError.size
	e := nw.OutputError.v[:n]
	floats.SubTo(e, nw.Desired.v[:n], nw.Output.v[:n])
	return .5 * floats.Dot(e, e)
}
