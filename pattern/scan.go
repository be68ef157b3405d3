package pattern

import "iter"

// Matchable is anything carrying a lazily compiled pattern, such as an
// event registration or a route.
type Matchable interface {
	Compiled() (*Compiled, error)
}

// Hit is an item whose pattern matched, with the extracted values.
type Hit[T Matchable] struct {
	Item   T
	Params Params
}

// Scan lazily yields the items whose pattern matches input, preserving
// the order of items. Every range over the sequence scans items again, and
// the scan stops as soon as the consumer stops pulling. An item whose
// pattern cannot be compiled yields its error and ends the sequence.
func Scan[T Matchable](items []T, input string) iter.Seq2[Hit[T], error] {
	return func(yield func(Hit[T], error) bool) {
		for _, item := range items {
			compiled, err := item.Compiled()
			if err != nil {
				yield(Hit[T]{Item: item}, err)
				return
			}
			params, ok := compiled.Match(input)
			if !ok {
				continue
			}
			if !yield(Hit[T]{Item: item, Params: params}, nil) {
				return
			}
		}
	}
}
