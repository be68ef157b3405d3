package events

import (
	"iter"

	"github.com/GoCodeAlone/colibri/pattern"
)

// Matched is a registration whose pattern matched an input, together with
// the extracted placeholder values.
type Matched struct {
	Registration *Registration
	Params       pattern.Params
}

// Match lazily yields the registrations in regs whose pattern matches
// input, preserving the order of regs. A registration whose pattern cannot
// be compiled yields its error and ends the sequence.
func Match(regs []*Registration, input string) iter.Seq2[Matched, error] {
	return func(yield func(Matched, error) bool) {
		for hit, err := range pattern.Scan(regs, input) {
			if !yield(Matched{Registration: hit.Item, Params: hit.Params}, err) {
				return
			}
		}
	}
}
