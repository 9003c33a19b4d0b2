// Command randomwalk trains a linear Q-network on an 11-cell corridor and
// prints the weights after every step.
package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/b0tShaman/neuralnet/qnn"
)

func main() {
	size := flag.Int("size", 11, "corridor length")
	steps := flag.Int("steps", 100, "number of steps")
	seed := flag.Uint64("seed", 0, "random seed (0 for random)")
	flag.Parse()

	env, err := qnn.New[qnn.WalkState](qnn.RandomWalk{Size: *size, Seed: *seed}, nil)
	if err != nil {
		log.Fatalf("randomwalk: %v", err)
	}
	env.Lambda = .1
	env.HistorySize = 100

	for i := 0; i < *steps; i++ {
		env.Step()
		fmt.Println(env.Net.Layers[0].W)
	}
}
