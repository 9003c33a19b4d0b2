package qnn

import (
	"github.com/b0tShaman/neuralnet/ml"
)

const (
	WalkLeft = iota
	WalkRight
	walkActions
)

type WalkState struct {
	Index int
}

// RandomWalk is a corridor of Size cells starting in the middle. Leaving on
// the left pays -1, leaving on the right pays +1, and both end the episode.
type RandomWalk struct {
	Size int
	Seed uint64 // 0 seeds randomly
}

// NewNetwork returns a single bias-free identity layer with zero weights,
// one-hot state in and one Q value per action out. The identity activation
// is paired with the unit derivative, not tanhDeriv.
func (w RandomWalk) NewNetwork() (*ml.Network, error) {
	var opts []ml.Option
	if w.Seed != 0 {
		opts = append(opts, ml.WithSeed(w.Seed))
	}
	nw, err := ml.NewNetwork([]int{w.Size, walkActions}, opts...)
	if err != nil {
		return nil, err
	}
	layer := nw.Layers[0]
	layer.SetBias(false)
	layer.SetActivationType(ml.ActIdentity)
	layer.W.Fill(func(int, int) float64 { return 0 })
	return nw, nil
}

func (w RandomWalk) InitState() WalkState {
	return WalkState{Index: w.Size / 2}
}

func (w RandomWalk) Observe(state WalkState, nw *ml.Network) {
	in := nw.Input()
	in.Zero()
	if state.Index >= 0 && state.Index < in.Len() {
		in.Set(state.Index, 1)
	}
}

func (w RandomWalk) PerformAction(state WalkState, action int, _ float64) WalkState {
	switch action {
	case WalkLeft:
		state.Index--
	case WalkRight:
		state.Index++
	}
	return state
}

func (w RandomWalk) Reward(state WalkState) (float64, bool) {
	switch {
	case state.Index <= -1:
		return -1, true
	case state.Index >= w.Size:
		return 1, true
	default:
		return 0, false
	}
}
