package util

// Partition splits s into the elements keep accepts and the rest, both in order
func Partition[T any](s []T, keep func(T) bool) ([]T, []T) {
	var kept, removed []T

	for _, e := range s {
		if keep(e) {
			kept = append(kept, e)
		} else {
			removed = append(removed, e)
		}
	}

	return kept, removed
}
