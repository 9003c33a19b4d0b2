// Package qnn drives an ml.Network as a Q-function through an environment
// loop, with TD(λ) replay of recent transitions.
package qnn

import (
	"context"
	"log"
	"math/rand/v2"

	"github.com/pkg/errors"

	"github.com/b0tShaman/neuralnet/ml"
)

// Controller describes an environment over states of type S. Each network
// output is the Q value of one action.
type Controller[S any] interface {
	NewNetwork() (*ml.Network, error)
	InitState() S
	// Observe fills nw.Input() from state.
	Observe(state S, nw *ml.Network)
	PerformAction(state S, action int, actionQ float64) S
	Reward(state S) (reward float64, reset bool)
}

// Transition is one remembered (state, action, Q) triple.
type Transition[S any] struct {
	State   S
	Action  int
	ActionQ float64
}

type Env[S any] struct {
	State S
	Net   *ml.Network

	Alpha  float64 // learning rate
	Gamma  float64 // discount
	Lambda float64 // trace decay
	Noise  float64 // action selection noise amplitude

	History     []Transition[S] // most recent first
	HistorySize int

	ActionCount []int

	Logger *log.Logger

	ctrl Controller[S]
	rng  *rand.Rand
}

// New builds an environment around ctrl. A nil rng is seeded randomly.
func New[S any](ctrl Controller[S], rng *rand.Rand) (*Env[S], error) {
	nw, err := ctrl.NewNetwork()
	if err != nil {
		return nil, errors.Wrap(err, "creating network")
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	env := &Env[S]{
		Net:         nw,
		Alpha:       .1,
		Gamma:       .99,
		Lambda:      .7,
		HistorySize: 10,
		ctrl:        ctrl,
		rng:         rng,
	}
	env.State = ctrl.InitState()
	env.ResetActionCount()
	return env, nil
}

func (e *Env[S]) ResetActionCount() {
	e.ActionCount = make([]int, e.Net.Output.Len())
}

func (e *Env[S]) feedForwardForState(state S) {
	e.ctrl.Observe(state, e.Net)
	e.Net.FeedForward()
}

// DetermineAction returns the action with the highest output for state,
// each output perturbed by noise * U[0,1). The returned Q is unperturbed.
func (e *Env[S]) DetermineAction(state S, noise float64) (int, float64) {
	e.feedForwardForState(state)

	out := e.Net.Output.Slice()
	best, bestValue := 0, out[0]
	if noise != 0 {
		bestValue += noise * e.rng.Float64()
	}
	for i := 1; i < len(out); i++ {
		v := out[i]
		if noise != 0 {
			v += noise * e.rng.Float64()
		}
		if bestValue < v {
			best, bestValue = i, v
		}
	}
	return best, out[best]
}

// setActionError clears OutputError and sets err on one action.
func (e *Env[S]) setActionError(action int, err float64) {
	e.Net.OutputError.Zero()
	e.Net.OutputError.Set(action, err)
}

// ApplyReward trains the Q value of lastAction toward
// reward + Gamma * max Q(newState), then replays History with the error
// decayed by Lambda per step back. It returns the last applied error.
func (e *Env[S]) ApplyReward(newState S, reward float64, lastState S, lastAction int, lastActionQ float64) float64 {
	_, maxNextQ := e.DetermineAction(newState, 0)

	// restore the forward state of lastState for backprop
	e.feedForwardForState(lastState)
	err := reward + e.Gamma*maxNextQ - lastActionQ
	e.setActionError(lastAction, err)
	e.Net.BackPropagate(e.Alpha)

	for _, h := range e.History {
		err *= e.Lambda
		e.feedForwardForState(h.State)
		e.setActionError(h.Action, err)
		e.Net.BackPropagate(e.Alpha)
	}
	return err
}

// Step takes one action from the current state, learns from its reward and
// advances the state, resetting it when the controller asks.
func (e *Env[S]) Step() (float64, bool) {
	action, actionQ := e.DetermineAction(e.State, e.Noise)
	e.ActionCount[action]++

	newState := e.ctrl.PerformAction(e.State, action, actionQ)
	reward, reset := e.ctrl.Reward(newState)

	e.ApplyReward(newState, reward, e.State, action, actionQ)

	// added after ApplyReward so the current step is not replayed twice
	if e.HistorySize > 0 {
		e.History = append([]Transition[S]{{State: e.State, Action: action, ActionQ: actionQ}}, e.History...)
		if len(e.History) > e.HistorySize {
			e.History = e.History[:e.HistorySize]
		}
	}

	e.State = newState
	if reset {
		e.State = e.ctrl.InitState()
	}
	return reward, reset
}

// Run takes maxSteps steps, logging the average reward and action counts
// every numEval steps. It returns the average reward of the last window.
func (e *Env[S]) Run(maxSteps, numEval int) float64 {
	if numEval <= 0 {
		numEval = maxSteps + 1
	}
	var sum float64
	var last float64
	for stepIndex, eval := 0, 0; stepIndex < maxSteps; stepIndex, eval = stepIndex+1, eval+1 {
		reward, _ := e.Step()
		sum += reward
		if eval >= numEval {
			last = sum / float64(numEval)
			if e.Logger != nil {
				e.Logger.Printf("stepIndex=%d avgReward=%g actionCount=%v", stepIndex, last, e.ActionCount)
			}
			e.ResetActionCount()
			eval = 0
			sum = 0
		}
	}
	return last
}

// RunContext steps until ctx is done.
func (e *Env[S]) RunContext(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		e.Step()
	}
}
