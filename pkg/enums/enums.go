package enums

import "slices"

func known[T ~string](set []T, value T) bool {
	return slices.Contains(set, value)
}
