// Command cartpole trains a linear Q-network to balance a pole until
// interrupted, logging the length of every episode.
package main

import (
	"context"
	"flag"
	"log"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"

	"github.com/b0tShaman/neuralnet/qnn"
)

func main() {
	seed := flag.Uint64("seed", 0, "random seed (0 for random)")
	steps := flag.Int("steps", 0, "number of steps (0 runs until interrupted)")
	eval := flag.Int("eval", 10000, "steps per progress report, with -steps")
	flag.Parse()

	logger := log.New(os.Stdout, "", log.LstdFlags)

	var rng *rand.Rand
	if *seed != 0 {
		rng = rand.New(rand.NewPCG(*seed, *seed))
	}
	problem := qnn.NewCartPole(rng)
	problem.Logger = logger

	env, err := qnn.New[qnn.CartState](problem, problem.Rand)
	if err != nil {
		logger.Fatalf("cartpole: %v", err)
	}
	env.Alpha = .1
	env.Gamma = .9
	env.Lambda = .7
	env.HistorySize = 10
	env.Logger = logger

	if *steps > 0 {
		env.Run(*steps, *eval)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := env.RunContext(ctx); err != nil {
		logger.Printf("stopped: %v", err)
	}
}
