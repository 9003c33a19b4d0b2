package ml

// Layer is one affine transform followed by an activation. W has one row per
// output and one column per input plus a trailing bias column.
type Layer struct {
	// Forward State
	X   *Vector
	Net *Vector
	W   *Matrix

	// Backward State
	XErr   *Vector
	NetErr *Vector

	// Batch accumulation, same shape as W
	DW *Matrix

	activation      func(float64) float64
	activationDeriv func(x, y float64) float64
	activationName  string
	derivName       string

	useBias bool
}

// NewLayer allocates a layer mapping sizeIn inputs to sizeOut outputs with
// bias enabled and the tanh activation.
func NewLayer(sizeIn, sizeOut int) *Layer {
	l := &Layer{
		X:       NewVector(sizeIn),
		Net:     NewVector(sizeOut),
		W:       NewMatrix(sizeOut, sizeIn+1),
		XErr:    NewVector(sizeIn),
		NetErr:  NewVector(sizeOut),
		DW:      NewMatrix(sizeOut, sizeIn+1),
		useBias: true,
	}
	l.setActivation(ActTanh)
	l.setActivationDeriv(DerivTanh)
	l.X.setBias(1)
	return l
}

// SizeIn returns the input dimension.
func (l *Layer) SizeIn() int { return l.X.size }

// SizeOut returns the output dimension.
func (l *Layer) SizeOut() int { return l.Net.size }

func (l *Layer) Bias() bool { return l.useBias }

// SetBias toggles the bias term. The bias weight of every row and the bias
// slot of X are set to 1 when enabled and 0 when disabled.
func (l *Layer) SetBias(enabled bool) {
	l.useBias = enabled
	b := 0.0
	if enabled {
		b = 1
	}
	col := l.W.width - 1
	for i := 0; i < l.W.height; i++ {
		l.W.row(i)[col] = b
	}
	l.X.setBias(b)
}

// SetActivation selects a registered activation by name.
func (l *Layer) SetActivation(name string) error {
	act, err := LookupActivation(name)
	if err != nil {
		return err
	}
	l.setActivation(act)
	return nil
}

// SetActivationDeriv selects a registered derivative by name.
func (l *Layer) SetActivationDeriv(name string) error {
	d, err := LookupActivationDeriv(name)
	if err != nil {
		return err
	}
	l.setActivationDeriv(d)
	return nil
}

// SetActivationType sets both the activation and its paired derivative.
func (l *Layer) SetActivationType(act ActivationType) {
	l.setActivation(act)
	l.setActivationDeriv(act.Deriv())
}

// SetActivationFunc installs a custom activation.
func (l *Layer) SetActivationFunc(name string, fn func(float64) float64) {
	l.activation = fn
	l.activationName = name
}

// SetActivationDerivFunc installs a custom derivative dy/dx(x, y).
func (l *Layer) SetActivationDerivFunc(name string, fn func(x, y float64) float64) {
	l.activationDeriv = fn
	l.derivName = name
}

func (l *Layer) ActivationName() string { return l.activationName }

func (l *Layer) ActivationDerivName() string { return l.derivName }

func (l *Layer) setActivation(act ActivationType) {
	l.activation = act.Apply
	l.activationName = act.String()
}

func (l *Layer) setActivationDeriv(d DerivType) {
	l.activationDeriv = d.Apply
	l.derivName = d.String()
}
