package calc

import (
	"fmt"
	"io"
	"os"
	"strconv"
)

// Accumulator holds a single running numeric value. The value starts at 0 and
// is mutated only by Add and Multiply, so at any point it equals the
// left-to-right fold of every operation applied since construction.
//
// An Accumulator is owned by a single caller; it is not safe for concurrent
// use. Shared running totals belong in the store package, which serializes
// access.
type Accumulator struct {
	value float64
}

// New returns a fresh Accumulator with value 0.
func New() *Accumulator {
	return &Accumulator{}
}

// Add applies value <- value + n and returns the new value.
func (a *Accumulator) Add(n float64) float64 {
	a.value += n
	return a.value
}

// Multiply applies value <- value * n and returns the new value.
func (a *Accumulator) Multiply(n float64) float64 {
	a.value *= n
	return a.value
}

// Value returns the current value.
func (a *Accumulator) Value() float64 {
	return a.value
}

// String renders the value as decimal text without a float exponent, so a
// whole number prints as "10" rather than "1e+01".
func (a *Accumulator) String() string {
	return FormatValue(a.value)
}

// Result renders the final state line printed by the reference flow.
func (a *Accumulator) Result() string {
	return "Result: " + a.String()
}

// FormatValue is the canonical decimal rendering used everywhere a value
// crosses a text boundary (CLI output, API responses, Redis keys).
func FormatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// GreetingMessage is the literal text the Greeter emits.
const GreetingMessage = "Hello World!"

// GreetingStatus is the literal status the Greeter reports.
const GreetingStatus = "success"

// Greeter writes a fixed greeting to an output stream.
type Greeter struct {
	out io.Writer
}

// NewGreeter returns a Greeter writing to stdout.
func NewGreeter() *Greeter {
	return &Greeter{out: os.Stdout}
}

// NewGreeterTo returns a Greeter writing to w.
func NewGreeterTo(w io.Writer) *Greeter {
	return &Greeter{out: w}
}

// Greet writes "Hello World!" followed by a newline and returns "success".
// A failed write is not handled here; it is a fatal condition left to the
// hosting environment, matching the reference behavior.
func (g *Greeter) Greet() string {
	fmt.Fprintln(g.out, GreetingMessage)
	return GreetingStatus
}
