// Command tally runs the reference accumulator flow: starting from 0, add 5,
// multiply by 2, print the result. With -greet it emits the greeting first.
package main

import (
	"flag"
	"fmt"

	"github.com/blueledger/tally-go/internal/tally/calc"
)

func main() {
	greet := flag.Bool("greet", false, "print the greeting before the reference flow")
	flag.Parse()

	if *greet {
		calc.NewGreeter().Greet()
	}

	acc := calc.New()
	acc.Add(5)
	acc.Multiply(2)

	fmt.Println(acc.Result())
}
