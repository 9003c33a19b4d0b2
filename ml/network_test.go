package ml

import (
	"math"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/diff/fd"
)

func newTestNetwork(t *testing.T, sizes []int, opts ...Option) *Network {
	t.Helper()
	nw, err := NewNetwork(sizes, append([]Option{WithSeed(42)}, opts...)...)
	require.NoError(t, err)
	return nw
}

// requireMismatch asserts fn panics with an ErrDimensionMismatch error.
func requireMismatch(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		require.NotNil(t, r, "expected a panic")
		err, ok := r.(error)
		require.True(t, ok, "panic value %v is not an error", r)
		assert.True(t, errors.Is(err, ErrDimensionMismatch), "got %v", err)
	}()
	fn()
}

func requirePaddingClean(t *testing.T, nw *Network) {
	t.Helper()
	for k, l := range nw.Layers {
		for name, v := range map[string]*Vector{"x": l.X, "net": l.Net, "xErr": l.XErr, "netErr": l.NetErr} {
			require.True(t, v.paddingClean(), "layer %d %s padding", k, name)
		}
		require.True(t, l.W.paddingClean(), "layer %d w padding", k)
		require.True(t, l.DW.paddingClean(), "layer %d dw padding", k)

		bias := 0.0
		if l.Bias() {
			bias = 1
		}
		require.Equal(t, bias, l.X.bias(), "layer %d bias slot", k)
	}
	for _, v := range []*Vector{nw.Output, nw.OutputError, nw.Desired} {
		require.True(t, v.paddingClean())
	}
}

func snapshot(nw *Network) [][]float64 {
	out := make([][]float64, len(nw.Layers))
	for k, l := range nw.Layers {
		out[k] = append([]float64(nil), l.W.Data()...)
	}
	return out
}

func TestNewNetwork_Layers(t *testing.T) {
	tests := [][]int{
		{2, 2},
		{3, 5, 1},
		{222, 80, 40, 2},
	}
	for _, sizes := range tests {
		nw := newTestNetwork(t, sizes)
		require.Len(t, nw.Layers, len(sizes)-1)
		assert.Equal(t, sizes[len(sizes)-1], nw.Output.Len())
		assert.Equal(t, sizes[len(sizes)-1], nw.OutputError.Len())
		assert.Equal(t, sizes[len(sizes)-1], nw.Desired.Len())

		for k, l := range nw.Layers {
			assert.Equal(t, sizes[k], l.X.Len())
			assert.Equal(t, sizes[k+1], l.Net.Len())
			assert.Equal(t, sizes[k+1], l.W.Height())
			assert.Equal(t, sizes[k]+1, l.W.Width())
			assert.Equal(t, "tanh", l.ActivationName())
			assert.Equal(t, "tanhDeriv", l.ActivationDerivName())
			assert.True(t, l.Bias())
		}
		// zero-copy chain
		for k := 0; k+1 < len(nw.Layers); k++ {
			assert.Same(t, nw.Layers[k+1].X, nw.y(k))
		}
		assert.Same(t, nw.Output, nw.y(len(nw.Layers)-1))
		assert.Same(t, nw.Layers[0].X, nw.Input())
		assert.Same(t, nw.Layers[0].XErr, nw.InputError())
		requirePaddingClean(t, nw)
	}
}

func TestNewNetwork_WeightsInRange(t *testing.T) {
	nw := newTestNetwork(t, []int{30, 20})
	w := nw.Layers[0].W
	var sum float64
	for i := 0; i < w.Height(); i++ {
		for j := 0; j < w.Width(); j++ {
			v := w.At(i, j)
			require.GreaterOrEqual(t, v, -1.0)
			require.LessOrEqual(t, v, 1.0)
			sum += v
		}
	}
	mean := sum / float64(w.Height()*w.Width())
	assert.InDelta(t, 0, mean, 0.15)
}

func TestNewNetwork_Seeded(t *testing.T) {
	a := newTestNetwork(t, []int{4, 3})
	b := newTestNetwork(t, []int{4, 3})
	assert.Equal(t, a.Layers[0].W.Data(), b.Layers[0].W.Data())
}

func TestNewNetwork_ConfigErrors(t *testing.T) {
	tests := []struct {
		name  string
		sizes []int
		opts  []Option
	}{
		{"no sizes", nil, nil},
		{"one size", []int{3}, nil},
		{"zero width", []int{3, 0}, nil},
		{"negative batch", []int{2, 2}, []Option{WithBatch(-1)}},
		{"zero dropout", []int{2, 2}, []Option{WithDropout(0)}},
		{"dilution above one", []int{2, 2}, []Option{WithDilution(1.5)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nw, err := NewNetwork(tt.sizes, tt.opts...)
			require.Error(t, err)
			assert.Nil(t, nw)
			assert.True(t, errors.Is(err, ErrConfig), "got %v", err)
		})
	}
}

func TestLayer_SetBias(t *testing.T) {
	nw := newTestNetwork(t, []int{3, 4})
	l := nw.Layers[0]

	l.SetBias(false)
	for i := 0; i < l.W.Height(); i++ {
		assert.Equal(t, 0.0, l.W.At(i, l.W.Width()-1))
	}
	assert.Equal(t, 0.0, l.X.bias())

	l.SetBias(true)
	for i := 0; i < l.W.Height(); i++ {
		assert.Equal(t, 1.0, l.W.At(i, l.W.Width()-1))
	}
	assert.Equal(t, 1.0, l.X.bias())
	requirePaddingClean(t, nw)
}

func TestLayer_SetActivationUnknown(t *testing.T) {
	l := NewLayer(2, 2)
	err := l.SetActivation("nope")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, "tanh", l.ActivationName(), "failed lookup must leave the layer unchanged")

	err = l.SetActivationDeriv("nope")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, "tanhDeriv", l.ActivationDerivName())

	require.NoError(t, l.SetActivation("ReLU"))
	require.NoError(t, l.SetActivationDeriv("ReLUDeriv"))
	assert.Equal(t, "ReLU", l.ActivationName())
}

// identityNetwork returns a [2,2] identity network with W = I.
func identityNetwork(t *testing.T) *Network {
	nw := newTestNetwork(t, []int{2, 2})
	l := nw.Layers[0]
	l.SetBias(false)
	l.SetActivationType(ActIdentity)
	l.W.Fill(func(i, j int) float64 {
		if i == j {
			return 1
		}
		return 0
	})
	return nw
}

func TestFeedForward_Identity(t *testing.T) {
	nw := identityNetwork(t)
	nw.Input().CopyFrom([]float64{1, 2})
	nw.FeedForward()
	assert.Equal(t, []float64{1, 2}, nw.Layers[0].Net.Slice())
	assert.Equal(t, []float64{1, 2}, nw.Output.Slice())

	nw.Desired.CopyFrom([]float64{0, 1})
	loss := nw.CalcError()
	assert.Equal(t, []float64{-1, -1}, nw.OutputError.Slice())
	assert.Equal(t, 1.0, loss)
}

func TestFeedForward_SingleWeightIsolation(t *testing.T) {
	const n, m = 5, 3 // inputs, outputs
	nw := newTestNetwork(t, []int{n, m})
	l := nw.Layers[0]
	l.SetBias(false)
	l.SetActivationType(ActIdentity)

	for i := 0; i < n; i++ {
		for j := 0; j < m; j++ {
			l.W.Fill(func(r, c int) float64 {
				if r == j && c == i {
					return 1
				}
				return 0
			})
			for k := 0; k < n; k++ {
				nw.Input().Zero()
				nw.Input().Set(k, 1)
				nw.FeedForward()
				for o := 0; o < m; o++ {
					want := 0.0
					if o == j && k == i {
						want = 1
					}
					require.Equal(t, want, l.Net.At(o), "w[%d][%d] input e_%d net[%d]", j, i, k, o)
				}
			}
		}
	}
}

func TestFeedForward_Bias(t *testing.T) {
	nw := newTestNetwork(t, []int{1, 1})
	l := nw.Layers[0]
	l.SetActivationType(ActIdentity)
	l.W.Set(0, 0, 2)
	l.W.Set(0, 1, 0.5)
	nw.Input().Set(0, 3)

	nw.FeedForward()
	assert.Equal(t, 6.5, nw.Output.At(0))

	l.SetBias(false)
	nw.FeedForward()
	assert.Equal(t, 6.0, nw.Output.At(0))
}

func TestFeedForward_Deep(t *testing.T) {
	nw := newTestNetwork(t, []int{3, 4, 2})
	nw.Input().CopyFrom([]float64{0.5, -0.25, 1})
	nw.FeedForward()

	// recompute naively from the logical elements
	x := []float64{0.5, -0.25, 1}
	for _, l := range nw.Layers {
		y := make([]float64, l.W.Height())
		for i := range y {
			sum := l.W.At(i, l.W.Width()-1)
			for j, xj := range x {
				sum += l.W.At(i, j) * xj
			}
			y[i] = math.Tanh(sum)
		}
		x = y
	}
	assert.InDeltaSlice(t, x, nw.Output.Slice(), 1e-12)
}

func TestCalcError_ZeroWhenEqual(t *testing.T) {
	nw := newTestNetwork(t, []int{3, 4})
	nw.Input().CopyFrom([]float64{1, 2, 3})
	nw.FeedForward()
	nw.Desired.CopyFrom(nw.Output.Slice())
	assert.Equal(t, 0.0, nw.CalcError())
	assert.Equal(t, []float64{0, 0, 0, 0}, nw.OutputError.Slice())
}

func TestFeedForward_DimensionMismatch(t *testing.T) {
	nw := newTestNetwork(t, []int{3, 4, 2})
	nw.Layers[1].X = NewVector(5)
	requireMismatch(t, nw.FeedForward)

	nw = newTestNetwork(t, []int{3, 4})
	nw.Layers[0].Net = NewVector(9)
	requireMismatch(t, nw.FeedForward)

	nw = newTestNetwork(t, []int{3, 4})
	nw.Output = NewVector(12)
	requireMismatch(t, nw.FeedForward)
}

func TestCalcError_DimensionMismatch(t *testing.T) {
	nw := newTestNetwork(t, []int{3, 4})
	nw.Desired = NewVector(3)
	requireMismatch(t, func() { nw.CalcError() })
}

func TestBackPropagate_DimensionMismatch(t *testing.T) {
	nw := newTestNetwork(t, []int{3, 4})
	nw.FeedForward()
	nw.Layers[0].XErr = NewVector(2)
	requireMismatch(t, nw.BackPropagateDefault)
}

func TestBackPropagate_ZeroRate(t *testing.T) {
	nw := newTestNetwork(t, []int{3, 5, 2})
	nw.Input().CopyFrom([]float64{0.1, 0.2, 0.3})
	nw.Desired.CopyFrom([]float64{1, -1})
	before := snapshot(nw)

	nw.FeedForward()
	nw.CalcError()
	nw.BackPropagate(0)

	assert.Equal(t, before, snapshot(nw))
	assert.NotZero(t, nw.InputError().NormL1(), "error vectors are still computed")
	assert.NotZero(t, nw.Layers[1].NetErr.NormL1())
}

func TestBackPropagate_SingleLayerUpdate(t *testing.T) {
	nw := identityNetwork(t)
	nw.Input().CopyFrom([]float64{1, 2})
	nw.Desired.CopyFrom([]float64{0, 1})
	nw.FeedForward()
	nw.CalcError() // outputError = [-1, -1]
	nw.BackPropagate(0.5)

	l := nw.Layers[0]
	assert.Equal(t, []float64{-1, -1}, l.NetErr.Slice())
	// xErr = wᵀ netErr with the untouched identity weights
	assert.Equal(t, []float64{-1, -1}, l.XErr.Slice())
	// w += 0.5 * netErr ⊗ [x, bias=0]
	want := [][]float64{
		{1 - 0.5, -1, 0},
		{-0.5, 1 - 1, 0},
	}
	for i := range want {
		assert.Equal(t, want[i], l.W.Row(i).Slice())
	}
	requirePaddingClean(t, nw)
}

func TestBackPropagate_GradientMatchesNumeric(t *testing.T) {
	nw := newTestNetwork(t, []int{3, 4, 2}, WithBatch(1000))
	nw.Layers[1].SetActivationType(ActSigmoid)
	input := []float64{0.3, -0.7, 0.9}
	desired := []float64{0.2, 0.8}

	loss := func(k int) func([]float64) float64 {
		w := nw.Layers[k].W
		return func(params []float64) float64 {
			saved := append([]float64(nil), w.Data()...)
			defer copy(w.Data(), saved)
			idx := 0
			w.Fill(func(int, int) float64 { idx++; return params[idx-1] })
			nw.Input().CopyFrom(input)
			nw.Desired.CopyFrom(desired)
			nw.FeedForward()
			return nw.CalcError()
		}
	}

	numeric := make([][]float64, len(nw.Layers))
	for k, l := range nw.Layers {
		var params []float64
		for i := 0; i < l.W.Height(); i++ {
			params = append(params, l.W.Row(i).Slice()...)
		}
		numeric[k] = fd.Gradient(nil, loss(k), params, &fd.Settings{Formula: fd.Central})
	}

	nw.Input().CopyFrom(input)
	nw.Desired.CopyFrom(desired)
	nw.FeedForward()
	nw.CalcError()
	nw.BackPropagate(1)

	// in batch mode DW holds -dE/dW
	for k, l := range nw.Layers {
		var got []float64
		for i := 0; i < l.DW.Height(); i++ {
			for _, v := range l.DW.Row(i).Slice() {
				got = append(got, -v)
			}
		}
		assert.InDeltaSlice(t, numeric[k], got, 1e-6, "layer %d", k)
	}
}

func TestBackPropagate_Batch(t *testing.T) {
	const batch = 3
	nw := newTestNetwork(t, []int{4, 3, 2}, WithBatch(batch))
	ref := newTestNetwork(t, []int{4, 3, 2})
	initial := snapshot(nw)
	require.Equal(t, initial, snapshot(ref))

	inputs := [][]float64{{1, 0, -1, 0.5}, {0.2, 0.4, 0.6, 0.8}, {-1, -1, 1, 1}}
	targets := [][]float64{{1, 0}, {0, 1}, {0.5, 0.5}}

	// reference: accumulate the updates by hand at fixed weights
	accum := make([]*Matrix, len(ref.Layers))
	for k, l := range ref.Layers {
		accum[k] = NewMatrix(l.W.Height(), l.W.Width())
	}
	for s := range inputs {
		ref.Input().CopyFrom(inputs[s])
		ref.Desired.CopyFrom(targets[s])
		ref.FeedForward()
		ref.CalcError()
		ref.UseBatch = 1000
		ref.ClearBatch()
		ref.BackPropagate(0.1)
		for k, l := range ref.Layers {
			addMasked(accum[k], l.DW, Identity{})
		}
	}

	for s := range inputs {
		nw.Input().CopyFrom(inputs[s])
		nw.Desired.CopyFrom(targets[s])
		nw.FeedForward()
		nw.CalcError()
		nw.BackPropagate(0.1)
		if s < batch-1 {
			assert.Equal(t, initial, snapshot(nw), "weights untouched before the batch fills")
			assert.Equal(t, s+1, nw.BatchCounter)
		}
	}

	assert.Equal(t, 0, nw.BatchCounter)
	assert.Equal(t, batch, nw.TotalBatchCounter)
	for k, l := range nw.Layers {
		for i := 0; i < l.W.Height(); i++ {
			for j := 0; j < l.W.Width(); j++ {
				want := initial[k][i*l.W.StorageWidth()+j] + accum[k].At(i, j)
				assert.InDelta(t, want, l.W.At(i, j), 1e-12)
			}
		}
		assert.Zero(t, l.DW.NormL1(), "dw cleared after flush")
	}
	requirePaddingClean(t, nw)
}

func TestUpdateBatch_NoopWithoutBatching(t *testing.T) {
	nw := newTestNetwork(t, []int{2, 2})
	nw.Layers[0].DW.Set(0, 0, 5)
	before := snapshot(nw)
	nw.UpdateBatch()
	nw.ClearBatch()
	assert.Equal(t, before, snapshot(nw))
	assert.Equal(t, 5.0, nw.Layers[0].DW.At(0, 0))
}

func TestPadding_StaysZeroAfterTraining(t *testing.T) {
	nw := newTestNetwork(t, []int{5, 9, 7, 3}, WithBatch(4), WithDropout(0.6))
	rng := nw.Rand()
	for step := 0; step < 200; step++ {
		if step%17 == 0 {
			l := nw.Layers[step%len(nw.Layers)]
			l.SetBias(!l.Bias())
		}
		if step == 100 {
			nw.Dropout, nw.Dilution = 1, 0.5
		}
		in := nw.Input()
		for i := 0; i < in.Len(); i++ {
			in.Set(i, rng.Float64()*2-1)
		}
		for i := 0; i < nw.Desired.Len(); i++ {
			nw.Desired.Set(i, rng.Float64())
		}
		nw.FeedForward()
		nw.CalcError()
		nw.BackPropagate(0.05)
		requirePaddingClean(t, nw)
	}
}
