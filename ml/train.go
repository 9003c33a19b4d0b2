package ml

import (
	"log"
	"time"

	"github.com/pkg/errors"
)

// Sample is one supervised training pair.
type Sample struct {
	Input  []float64
	Target []float64
}

type TrainingConfig struct {
	Epochs       int
	LearningRate float64 // 0 uses the network's DT
	BatchSize    int     // > 0 overrides the network's UseBatch for this run
	Shuffle      bool
	VerboseEvery int         // How often to log progress (in epochs)
	Logger       *log.Logger // nil disables logging
}

// Train runs online gradient descent over samples and returns the mean loss
// of every epoch. In batch mode a partially filled batch is flushed at the end.
func Train(nw *Network, samples []Sample, cfg TrainingConfig) ([]float64, error) {
	if err := validateConfig(nw, samples, cfg); err != nil {
		return nil, err
	}
	if cfg.BatchSize > 0 {
		defer func(prev int) { nw.UseBatch = prev }(nw.UseBatch)
		nw.UseBatch = cfg.BatchSize
	}
	lr := cfg.LearningRate
	if lr == 0 {
		lr = nw.DT
	}

	indices := NewIndexList(len(samples))
	losses := make([]float64, 0, cfg.Epochs)
	start := time.Now()

	for epoch := 1; epoch <= cfg.Epochs; epoch++ {
		if cfg.Shuffle {
			nw.ShuffleIndices(indices)
		}

		var totalLoss float64
		for _, idx := range indices {
			nw.Gather(samples[idx])
			nw.FeedForward()
			totalLoss += nw.CalcError()
			nw.BackPropagate(lr)
		}

		avgLoss := totalLoss / float64(len(samples))
		losses = append(losses, avgLoss)
		if cfg.Logger != nil && cfg.VerboseEvery > 0 && (epoch%cfg.VerboseEvery == 0 || epoch == 1) {
			cfg.Logger.Printf("Epoch %d | Loss: %.6f | Time: %v", epoch, avgLoss, time.Since(start))
		}
	}

	if nw.UseBatch > 0 && nw.BatchCounter > 0 {
		nw.UpdateBatch()
		nw.BatchCounter = 0
	}
	return losses, nil
}

func validateConfig(nw *Network, samples []Sample, cfg TrainingConfig) error {
	if cfg.Epochs < 0 {
		return errors.Wrapf(ErrConfig, "epochs %d is negative", cfg.Epochs)
	}
	if cfg.BatchSize < 0 {
		return errors.Wrapf(ErrConfig, "batch size %d is negative", cfg.BatchSize)
	}
	if len(samples) == 0 {
		return errors.Wrap(ErrConfig, "no training samples")
	}
	in, out := nw.Input().Len(), nw.Output.Len()
	for i, s := range samples {
		if len(s.Input) != in || len(s.Target) != out {
			return errors.Wrapf(ErrDimensionMismatch, "sample %d is %d->%d, network is %d->%d",
				i, len(s.Input), len(s.Target), in, out)
		}
	}
	return nil
}

// ------ DATA HANDLING HELPERS ------
func NewIndexList(size int) []int {
	indices := make([]int, size)
	for i := range indices {
		indices[i] = i
	}
	return indices
}

// ShuffleIndices permutes indices with the network's random source.
func (nw *Network) ShuffleIndices(indices []int) {
	nw.rng.Shuffle(len(indices), func(i, j int) {
		indices[i], indices[j] = indices[j], indices[i]
	})
}

// Gather copies a sample into Input and Desired.
func (nw *Network) Gather(s Sample) {
	nw.Input().CopyFrom(s.Input)
	nw.Desired.CopyFrom(s.Target)
}
