package ml

import (
	"gonum.org/v1/gonum/floats"
)

// BackPropagateDefault runs BackPropagate with the network's DT.
func (nw *Network) BackPropagateDefault() { nw.BackPropagate(nw.DT) }

// BackPropagate walks the layers last to first, computing NetErr and XErr
// from OutputError and applying dt-scaled weight updates, either directly to
// W or, when UseBatch > 0, into DW. FeedForward must have run first.
func (nw *Network) BackPropagate(dt float64) {
	reg := nw.Regularizer()
	for k := len(nw.Layers) - 1; k >= 0; k-- {
		layer := nw.Layers[k]
		y, yErr := nw.y(k), nw.yErr(k)
		height := layer.W.height

		if height != y.size || height != layer.NetErr.size || height != yErr.size {
			mismatch("layer %d: weight height %d, output size %d, net error size %d",
				k, height, y.size, layer.NetErr.size)
		}
		if layer.X.size != layer.XErr.size || layer.X.size != layer.W.width-1 {
			mismatch("layer %d: input size %d, input error size %d, weight width %d",
				k, layer.X.size, layer.XErr.size, layer.W.width)
		}

		// 1. Error at the pre-activation
		deriv := layer.activationDeriv
		net, netErr := layer.Net.v, layer.NetErr.v
		for i := 0; i < height; i++ {
			netErr[i] = yErr.v[i] * deriv(net[i], y.v[i])
		}

		// 2. Error at the input, xErr = wᵀ netErr without the bias column
		n := layer.XErr.size
		xErr := layer.XErr.v[:n]
		clear(xErr)
		for i := 0; i < height; i++ {
			if e := netErr[i]; e != 0 {
				floats.AddScaled(xErr, e, layer.W.row(i)[:n])
			}
		}

		// 3. Weight update
		target := layer.W
		if nw.UseBatch > 0 {
			target = layer.DW
		}
		addOuter(target, netErr[:height], layer.X.v, dt, reg)
	}

	if nw.UseBatch > 0 {
		nw.TotalBatchCounter++
		nw.BatchCounter++
		if nw.BatchCounter >= nw.UseBatch {
			nw.UpdateBatch()
			nw.BatchCounter = 0
		}
	}
}

// UpdateBatch adds every layer's DW into W, masked by fresh regularizer
// draws, and clears DW. It is a no-op when batching is disabled.
func (nw *Network) UpdateBatch() {
	if nw.UseBatch <= 0 {
		return
	}
	reg := nw.Regularizer()
	for k := len(nw.Layers) - 1; k >= 0; k-- {
		layer := nw.Layers[k]
		addMasked(layer.W, layer.DW, reg)
	}
	nw.ClearBatch()
}

// ClearBatch zeroes every layer's DW. It is a no-op when batching is disabled.
func (nw *Network) ClearBatch() {
	if nw.UseBatch <= 0 {
		return
	}
	for _, layer := range nw.Layers {
		layer.DW.Reset()
	}
}
