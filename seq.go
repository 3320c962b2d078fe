package unifs

import "iter"

// Collect drains an enumeration, stopping at the first error.
func Collect[T any](seq iter.Seq2[T, error]) ([]T, error) {
	var result []T
	for item, err := range seq {
		if err != nil {
			return result, err
		}
		result = append(result, item)
	}
	return result, nil
}

// EmptySeq yields nothing. Backends without enumeration return it.
func EmptySeq[T any]() iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {}
}

// ErrorSeq yields a single error.
func ErrorSeq[T any](err error) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		yield(zero, err)
	}
}
