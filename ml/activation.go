package ml

import (
	"math"
	"sort"

	"github.com/pkg/errors"
)

// ActivationType selects a built-in activation y(x).
type ActivationType int

// DerivType selects a built-in derivative dy/dx(x, y).
type DerivType int

const (
	ActIdentity ActivationType = iota
	ActTanh
	ActSigmoid
	ActPoorLinearTanh
	ActPoorQuadraticTanh
	ActPoorCubicTanh
	ActReLU
)

const (
	DerivOne DerivType = iota
	DerivTanh
	DerivSigmoid
	DerivPoorLinearTanh
	DerivPoorQuadraticTanh
	DerivPoorCubicTanh
	DerivReLU
)

var activationMap = map[string]ActivationType{
	"identity":          ActIdentity,
	"tanh":              ActTanh,
	"sigmoid":           ActSigmoid,
	"poorLinearTanh":    ActPoorLinearTanh,
	"poorQuadraticTanh": ActPoorQuadraticTanh,
	"poorCubicTanh":     ActPoorCubicTanh,
	"ReLU":              ActReLU,
}

var derivMap = map[string]DerivType{
	"one":                    DerivOne,
	"tanhDeriv":              DerivTanh,
	"sigmoidDeriv":           DerivSigmoid,
	"poorLinearTanhDeriv":    DerivPoorLinearTanh,
	"poorQuadraticTanhDeriv": DerivPoorQuadraticTanh,
	"poorCubicTanhDeriv":     DerivPoorCubicTanh,
	"ReLUDeriv":              DerivReLU,
}

// LookupActivation returns the activation registered under name.
func LookupActivation(name string) (ActivationType, error) {
	act, ok := activationMap[name]
	if !ok {
		return 0, errors.Wrapf(ErrNotFound, "activation %q", name)
	}
	return act, nil
}

// LookupActivationDeriv returns the derivative registered under name. An
// activation name resolves to that activation's derivative.
func LookupActivationDeriv(name string) (DerivType, error) {
	if d, ok := derivMap[name]; ok {
		return d, nil
	}
	if act, ok := activationMap[name]; ok {
		return act.Deriv(), nil
	}
	return 0, errors.Wrapf(ErrNotFound, "activation derivative %q", name)
}

// Activations lists the registered activation names in sorted order.
func Activations() []string {
	names := make([]string, 0, len(activationMap))
	for name := range activationMap {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Apply evaluates y(x).
func (a ActivationType) Apply(x float64) float64 {
	switch a {
	case ActIdentity:
		return x
	case ActTanh:
		return math.Tanh(x)
	case ActSigmoid:
		return 1 / (1 + math.Exp(-x))
	case ActPoorLinearTanh:
		return math.Max(-1, math.Min(1, x))
	case ActPoorQuadraticTanh:
		switch {
		case x < -2:
			return -1
		case x < 0:
			return x * (1 + .25*x)
		case x < 2:
			return x * (1 - .25*x)
		default:
			return 1
		}
	case ActPoorCubicTanh:
		switch {
		case x < -2.5:
			return -1
		case x < 0:
			return x * (1 + x*(.32+x*.032))
		case x < 2.5:
			return x * (1 + x*(-.32+x*.032))
		default:
			return 1
		}
	case ActReLU:
		return math.Max(x, 0)
	default:
		panic("Unknown activation type")
	}
}

// Deriv returns the derivative paired with a.
func (a ActivationType) Deriv() DerivType {
	switch a {
	case ActTanh:
		return DerivTanh
	case ActSigmoid:
		return DerivSigmoid
	case ActPoorLinearTanh:
		return DerivPoorLinearTanh
	case ActPoorQuadraticTanh:
		return DerivPoorQuadraticTanh
	case ActPoorCubicTanh:
		return DerivPoorCubicTanh
	case ActReLU:
		return DerivReLU
	default:
		return DerivOne
	}
}

func (a ActivationType) String() string {
	for name, act := range activationMap {
		if act == a {
			return name
		}
	}
	return "unknown"
}

// Apply evaluates dy/dx given the pre-activation x and the activated y.
func (d DerivType) Apply(x, y float64) float64 {
	switch d {
	case DerivOne:
		return 1
	case DerivTanh:
		return 1 - y*y
	case DerivSigmoid:
		return y * (1 - y)
	case DerivPoorLinearTanh:
		if x >= -1 && x <= 1 {
			return 1
		}
		return 0
	case DerivPoorQuadraticTanh:
		switch {
		case x < -2:
			return 0
		case x < 0:
			return 1 + .5*x
		case x < 2:
			return 1 - .5*x
		default:
			return 0
		}
	case DerivPoorCubicTanh:
		switch {
		case x < -2.5:
			return 0
		case x < 0:
			return 1 + x*(.64+x*.096)
		case x < 2.5:
			return 1 + x*(-.64+x*.096)
		default:
			return 0
		}
	case DerivReLU:
		if x < 0 {
			return 0
		}
		return 1
	default:
		panic("Unknown activation derivative type")
	}
}

func (d DerivType) String() string {
	for name, dt := range derivMap {
		if dt == d {
			return name
		}
	}
	return "unknown"
}
