package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"runtime"
	"time"

	"github.com/klauspost/cpuid/v2"

	. "github.com/b0tShaman/neuralnet/ml"
)

// -------- MAIN -------- //
func main() {
	mode := flag.String("mode", "performance", "accuracy | performance | xor")
	iters := flag.Int("iters", 10000, "iterations for performance mode")
	epochs := flag.Int("epochs", 2000, "epochs for xor mode")
	seed := flag.Uint64("seed", 1, "random seed")
	flag.Parse()

	logger := log.New(os.Stdout, "", 0)
	reportCPU(logger)

	var err error
	switch *mode {
	case "accuracy":
		err = accuracy(logger)
	case "performance":
		err = performance(logger, *iters, *seed)
	case "xor":
		err = xor(logger, *epochs, *seed)
	default:
		err = fmt.Errorf("unknown mode %q", *mode)
	}
	if err != nil {
		logger.Fatal(err)
	}
}

// reportCPU prints the vector extensions the padded stride can benefit from.
func reportCPU(logger *log.Logger) {
	logger.Printf("%s, %d cores (GOMAXPROCS=%d)", cpuid.CPU.BrandName, cpuid.CPU.LogicalCores, runtime.GOMAXPROCS(0))
	logger.Printf("AVX=%v AVX2=%v FMA3=%v AVX512F=%v, stride=%d",
		cpuid.CPU.Supports(cpuid.AVX), cpuid.CPU.Supports(cpuid.AVX2),
		cpuid.CPU.Supports(cpuid.FMA3), cpuid.CPU.Supports(cpuid.AVX512F), Stride)
}

// accuracy runs one deterministic forward and backward pass through an
// identity network and prints every intermediate vector.
func accuracy(logger *log.Logger) error {
	nw, err := NewNetwork([]int{222, 80, 40, 2})
	if err != nil {
		return err
	}
	for _, layer := range nw.Layers {
		layer.SetActivationType(ActIdentity)
	}

	x := 0.0
	src := func() float64 {
		x++
		return math.Sin(1 / x)
	}
	for _, layer := range nw.Layers {
		layer.W.Fill(func(int, int) float64 { return src() })
	}
	in := nw.Input()
	for i := 0; i < in.Len(); i++ {
		in.Set(i, src())
	}
	nw.FeedForward()

	logger.Printf("input L1 norm %g", in.NormL1())
	for k := 1; k < len(nw.Layers); k++ {
		logger.Printf("hidden %v", nw.Layers[k].X)
		logger.Printf("hidden L1 norm %g", nw.Layers[k].X.NormL1())
	}
	logger.Printf("output %v", nw.Output)
	logger.Printf("output L1 norm %g", nw.Output.NormL1())

	nw.Desired.Set(0, src())
	nw.Desired.Set(1, src())
	logger.Printf("desired %v", nw.Desired)
	logger.Printf("loss %g", nw.CalcError())
	nw.BackPropagateDefault()
	logger.Printf("input error L1 norm %g", nw.InputError().NormL1())
	return nil
}

func performance(logger *log.Logger, iters int, seed uint64) error {
	nw, err := NewNetwork([]int{222, 80, 40, 2}, WithSeed(seed))
	if err != nil {
		return err
	}
	rng := nw.Rand()
	in := nw.Input()
	for i := 0; i < in.Len(); i++ {
		in.Set(i, rng.Float64())
	}

	start := time.Now()
	for i := 0; i < iters; i++ {
		nw.FeedForward()
		nw.Desired.Set(0, rng.Float64())
		nw.Desired.Set(1, rng.Float64())
		nw.CalcError()
		nw.BackPropagateDefault()
	}
	logger.Printf("feedForward + backPropagate: %v (%v/iter)", time.Since(start), time.Since(start)/time.Duration(max(iters, 1)))

	start = time.Now()
	for i := 0; i < iters; i++ {
		nw.FeedForward()
	}
	logger.Printf("feedForward only: %v (%v/iter)", time.Since(start), time.Since(start)/time.Duration(max(iters, 1)))
	return nil
}

// xor trains a 2-4-1 tanh network on the XOR table.
func xor(logger *log.Logger, epochs int, seed uint64) error {
	nw, err := NewNetwork([]int{2, 4, 1}, WithSeed(seed))
	if err != nil {
		return err
	}
	samples := []Sample{
		{Input: []float64{-1, -1}, Target: []float64{-1}},
		{Input: []float64{-1, 1}, Target: []float64{1}},
		{Input: []float64{1, -1}, Target: []float64{1}},
		{Input: []float64{1, 1}, Target: []float64{-1}},
	}
	config := TrainingConfig{
		Epochs:       epochs,
		LearningRate: 0.05,
		Shuffle:      true,
		VerboseEvery: max(epochs/10, 1),
		Logger:       logger,
	}
	if _, err := Train(nw, samples, config); err != nil {
		return err
	}
	for _, s := range samples {
		nw.Gather(s)
		nw.FeedForward()
		logger.Printf("%v -> %.4f (want %v)", s.Input, nw.Output.At(0), s.Target[0])
	}
	return nil
}
