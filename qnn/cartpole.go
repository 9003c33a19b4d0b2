package qnn

import (
	"log"
	"math"
	"math/rand/v2"

	"github.com/b0tShaman/neuralnet/ml"
)

const (
	CartLeft = iota
	CartIdle
	CartRight
	cartActions
)

// Observation bins per state variable.
const (
	xBins       = 3
	dxBins      = 3
	thetaBins   = 6
	dthetaBins  = 3
	CartInputs  = xBins * dxBins * thetaBins * dthetaBins
	cartSuccess = 100000
)

const (
	gravity        = 9.8
	massCart       = 1.
	massPole       = .1
	totalMass      = massPole + massCart
	poleLength     = .5
	poleMassLength = massPole * poleLength
	forceMag       = 20.
	tau            = .02
)

func rad(deg float64) float64 { return deg * math.Pi / 180 }

type CartState struct {
	X, DX         float64
	Theta, DTheta float64
	ItersUpright  int
}

func (s CartState) failed() bool {
	return s.X < -2.4 || s.X > 2.4 || s.Theta < rad(-12) || s.Theta > rad(12)
}

// CartPole balances a pole on a cart pushed left, right or not at all.
// States are one-hot encoded over CartInputs bins.
type CartPole struct {
	Rand   *rand.Rand
	Logger *log.Logger // logs the episode length on reset when set
}

func NewCartPole(rng *rand.Rand) *CartPole {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &CartPole{Rand: rng}
}

// NewNetwork returns a single bias-free identity layer with zero weights
// over the one-hot state bins. The identity activation is paired with the
// unit derivative, not tanhDeriv.
func (c *CartPole) NewNetwork() (*ml.Network, error) {
	nw, err := ml.NewNetwork([]int{CartInputs, cartActions}, ml.WithRand(c.Rand))
	if err != nil {
		return nil, err
	}
	layer := nw.Layers[0]
	layer.SetBias(false)
	layer.SetActivationType(ml.ActIdentity)
	layer.W.Fill(func(int, int) float64 { return 0 })
	return nw, nil
}

// InitState tilts the pole up to ±6 degrees.
func (c *CartPole) InitState() CartState {
	return CartState{Theta: (c.Rand.Float64()*2 - 1) * rad(6)}
}

func (c *CartPole) PerformAction(s CartState, action int, _ float64) CartState {
	var force float64
	switch action {
	case CartLeft:
		force = -forceMag
	case CartRight:
		force = forceMag
	}

	cos, sin := math.Cos(s.Theta), math.Sin(s.Theta)
	temp := (force + poleMassLength*s.DTheta*s.DTheta*sin) / totalMass
	ddTheta := (gravity*sin - cos*temp) / (poleLength * (4./3. - massPole*cos*cos/totalMass))
	ddX := temp - poleMassLength*ddTheta*cos/totalMass

	s.ItersUpright++
	s.X += tau * s.DX
	s.Theta += tau * s.DTheta
	s.DX += tau * ddX
	s.DTheta += tau * ddTheta
	return s
}

func (c *CartPole) Reward(s CartState) (float64, bool) {
	fail := s.failed()
	reset := fail || s.ItersUpright > cartSuccess
	if reset && c.Logger != nil {
		c.Logger.Printf("upright for %d steps", s.ItersUpright)
	}
	if fail {
		return -1, reset
	}
	return .001, reset
}

func bin(x, lo, hi float64, n int) int {
	i := int((x - lo) / (hi - lo) * float64(n-2))
	return max(-1, min(i, n-2)) + 1
}

func thetaBin(theta float64) int {
	switch {
	case theta < rad(-6):
		return 0
	case theta < rad(-1):
		return 1
	case theta < 0:
		return 2
	case theta < rad(1):
		return 3
	case theta < rad(6):
		return 4
	default:
		return 5
	}
}

// StateIndex returns the input cell of s, or -1 for a failed state.
func (c *CartPole) StateIndex(s CartState) int {
	if s.failed() {
		return -1
	}
	xi := bin(s.X, -.8, .8, xBins)
	dxi := bin(s.DX, -.5, .5, dxBins)
	ti := thetaBin(s.Theta)
	dti := bin(s.DTheta, rad(-50), rad(50), dthetaBins)
	return xi + xBins*(dxi+dxBins*(ti+thetaBins*dti))
}

// Observe leaves the input all zero for a failed state.
func (c *CartPole) Observe(s CartState, nw *ml.Network) {
	in := nw.Input()
	in.Zero()
	if idx := c.StateIndex(s); idx >= 0 {
		in.Set(idx, 1)
	}
}
